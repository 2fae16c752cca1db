package storage

import (
	"context"
	"errors"
	"mime"
	"os"
	"path/filepath"
	"sort"

	"TaskAgent/backend/go/internal/capability"

	"github.com/djherbis/times"
	"github.com/gabriel-vasile/mimetype"
)

// Local implements capability.Files on the host filesystem. It refuses to
// delete the storage root itself and never deletes non-empty directories.
type Local struct {
	sandbox *Sandbox
}

// NewLocal creates a Local bound to the sandbox root.
func NewLocal(sandbox *Sandbox) *Local {
	return &Local{sandbox: sandbox}
}

func (l *Local) List(ctx context.Context, hostPath string) ([]capability.FileEntry, error) {
	info, err := os.Stat(hostPath)
	if err != nil {
		return nil, capability.Fail(failureCode(err), err)
	}
	if !info.IsDir() {
		return nil, capability.Fail("not_a_directory", nil)
	}
	entries, err := os.ReadDir(hostPath)
	if err != nil {
		return nil, capability.Fail("read_dir_failed", err)
	}
	out := make([]capability.FileEntry, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := capability.FileEntry{Name: e.Name(), Dir: e.IsDir()}
		if fi, err := e.Info(); err == nil {
			entry.Size = fi.Size()
			entry.Modified = fi.ModTime()
		}
		if !entry.Dir {
			entry.MimeType = detectMimeType(filepath.Join(hostPath, e.Name()))
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l *Local) Delete(ctx context.Context, hostPath string) error {
	if filepath.Clean(hostPath) == l.sandbox.hostRoot {
		return capability.Fail("refuse_root", nil)
	}
	info, err := os.Lstat(hostPath)
	if err != nil {
		return capability.Fail(failureCode(err), err)
	}
	if info.IsDir() {
		// os.Remove only removes empty directories.
		if err := os.Remove(hostPath); err != nil {
			return capability.Fail("directory_not_empty", err)
		}
		return nil
	}
	if err := os.Remove(hostPath); err != nil {
		return capability.Fail("delete_failed", err)
	}
	return nil
}

func (l *Local) Stat(ctx context.Context, hostPath string) (capability.FileEntry, error) {
	info, err := os.Stat(hostPath)
	if err != nil {
		return capability.FileEntry{}, capability.Fail(failureCode(err), err)
	}
	entry := capability.FileEntry{
		Name:     info.Name(),
		Dir:      info.IsDir(),
		Size:     info.Size(),
		Modified: info.ModTime(),
	}
	if ts, err := times.Stat(hostPath); err == nil {
		entry.Modified = ts.ModTime()
		entry.Accessed = ts.AccessTime()
		if ts.HasBirthTime() {
			entry.Created = ts.BirthTime()
		}
	}
	if !entry.Dir {
		entry.MimeType = detectMimeType(hostPath)
	}
	return entry, nil
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "not_found"
	case errors.Is(err, os.ErrPermission):
		return "permission_denied"
	default:
		return "io_error"
	}
}

// detectMimeType sniffs content first and falls back to the extension.
func detectMimeType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		if ext := filepath.Ext(path); ext != "" {
			if byExt := mime.TypeByExtension(ext); byExt != "" {
				return byExt
			}
		}
		return "application/octet-stream"
	}
	return mtype.String()
}
