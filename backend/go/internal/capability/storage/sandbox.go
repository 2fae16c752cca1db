// Package storage confines task file paths to the storage root and
// implements the filesystem capability on top of the host directory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for any path that resolves outside the root.
var ErrOutsideRoot = errors.New("access denied - path outside storage root")

// Sandbox maps the logical storage root seen by tasks (for example
// /storage/emulated/0) onto a host directory.
type Sandbox struct {
	logicalRoot string
	hostRoot    string // absolute, symlinks resolved
}

// NewSandbox validates hostRoot and returns a Sandbox.
func NewSandbox(logicalRoot, hostRoot string) (*Sandbox, error) {
	if logicalRoot == "" || !path.IsAbs(logicalRoot) {
		return nil, fmt.Errorf("logical storage root must be absolute: %q", logicalRoot)
	}
	abs, err := filepath.Abs(hostRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", hostRoot, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory %s: %w", abs, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory %s: %w", resolved, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", resolved)
	}
	return &Sandbox{logicalRoot: path.Clean(logicalRoot), hostRoot: filepath.Clean(resolved)}, nil
}

// Resolve returns the host path and the cleaned logical path for p.
// Relative paths are taken relative to the logical root. Symlinks are
// followed, and a path escaping the root lexically or through a symlink
// returns ErrOutsideRoot.
func (s *Sandbox) Resolve(p string) (host string, logical string, err error) {
	host, logical, err = s.hostPath(p)
	if err != nil {
		return "", "", err
	}
	resolved, err := s.follow(host)
	if err != nil {
		return "", "", err
	}
	return resolved, logical, nil
}

// ResolveEntry is Resolve for operations on the directory entry itself,
// such as delete. Symlinks in the parent are followed; the last component
// is kept as named, so a symlink resolves to the link and not its target.
func (s *Sandbox) ResolveEntry(p string) (host string, logical string, err error) {
	host, logical, err = s.hostPath(p)
	if err != nil {
		return "", "", err
	}
	if host == s.hostRoot {
		return host, logical, nil
	}
	parent, err := s.follow(filepath.Dir(host))
	if err != nil {
		return "", "", err
	}
	return filepath.Join(parent, filepath.Base(host)), logical, nil
}

// hostPath maps p onto the host root without touching the filesystem.
func (s *Sandbox) hostPath(p string) (host string, logical string, err error) {
	if p == "" {
		p = s.logicalRoot
	}
	if !path.IsAbs(p) {
		p = path.Join(s.logicalRoot, p)
	}
	logical = path.Clean(p)
	if !within(logical, s.logicalRoot, "/") {
		return "", "", ErrOutsideRoot
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(logical, s.logicalRoot), "/")
	return filepath.Join(s.hostRoot, filepath.FromSlash(rel)), logical, nil
}

// follow evaluates symlinks on the deepest existing ancestor of host,
// checks that it stays under the root and re-attaches the missing tail.
// A dangling symlink on the way is refused since its target is unknown.
func (s *Sandbox) follow(host string) (string, error) {
	sep := string(filepath.Separator)
	existing, tail := host, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			if !within(resolved, s.hostRoot, sep) {
				return "", ErrOutsideRoot
			}
			return filepath.Join(resolved, tail), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		if fi, lerr := os.Lstat(existing); lerr == nil && fi.Mode()&os.ModeSymlink != 0 {
			return "", ErrOutsideRoot
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", ErrOutsideRoot
		}
		tail = filepath.Join(filepath.Base(existing), tail)
		existing = parent
	}
}

// within reports whether p equals root or lies below it. The separator
// suffix keeps /tmp/foo from matching /tmp/foobar.
func within(p, root, sep string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, sep) {
		prefix += sep
	}
	return strings.HasPrefix(p, prefix)
}
