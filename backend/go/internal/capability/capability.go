// Package capability defines the platform primitives the executor drives.
// Implementations are thin bindings and are invoked only by the executor.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TaskAgent/backend/go/internal/capability/uitree"
)

// ErrUnsupportedPlatform is returned when the platform lacks a primitive,
// for example synthetic gesture dispatch on old OS versions.
var ErrUnsupportedPlatform = errors.New("capability not supported on this platform")

// Error is an adapter failure carrying an adapter-specific code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail wraps err with an adapter-specific code.
func Fail(code string, err error) error {
	return &Error{Code: code, Err: err}
}

// NodeAction is performed on a single UI node.
type NodeAction struct {
	Type      string // "click", "set_text" or "scroll"
	Text      string
	Direction string
}

// Click presses a node.
var Click = NodeAction{Type: "click"}

// SetText returns the action filling a node with text.
func SetText(text string) NodeAction { return NodeAction{Type: "set_text", Text: text} }

// Scroll returns the action scrolling a node in direction.
func Scroll(direction string) NodeAction { return NodeAction{Type: "scroll", Direction: direction} }

// UIAutomation exposes the active window as a tree and acts on its nodes.
type UIAutomation interface {
	// Snapshot returns the root of the active window, or nil when there is none.
	Snapshot(ctx context.Context) (*uitree.Node, error)
	Perform(ctx context.Context, node *uitree.Node, action NodeAction) error
	Global(ctx context.Context, action string) error
}

// Gestures dispatches synthetic gestures.
type Gestures interface {
	Tap(ctx context.Context, x, y float64) error
}

// AppLauncher starts an installed application by its identifier.
type AppLauncher interface {
	Launch(ctx context.Context, pkg string) error
}

// FileEntry describes one filesystem object.
type FileEntry struct {
	Name     string
	Dir      bool
	Size     int64
	MimeType string
	Modified time.Time
	Accessed time.Time
	// Created is zero when the filesystem does not record birth time.
	Created time.Time
}

// Files operates on host paths that were already confined to the storage root.
type Files interface {
	List(ctx context.Context, hostPath string) ([]FileEntry, error)
	Delete(ctx context.Context, hostPath string) error
	Stat(ctx context.Context, hostPath string) (FileEntry, error)
}
