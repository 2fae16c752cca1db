// Package sim provides an in-process simulated device implementing the UI,
// gesture and app-launch capabilities. It backs local runs and tests; a
// real platform binding satisfies the same interfaces.
package sim

import (
	"context"
	"fmt"
	"os"
	"sync"

	"TaskAgent/backend/go/internal/capability"
	"TaskAgent/backend/go/internal/capability/uitree"

	"gopkg.in/yaml.v3"
)

// Event records one primitive the device performed.
type Event struct {
	Op     string
	Target string
	Text   string
	X, Y   float64
}

// Device is a simulated screen plus an app catalogue. It is safe for
// concurrent use.
type Device struct {
	mu         sync.Mutex
	screen     *uitree.Node
	apps       map[string]bool
	noGestures bool
	events     []Event
}

// Option configures a Device.
type Option func(*Device)

// WithoutGestures makes Tap report capability.ErrUnsupportedPlatform.
func WithoutGestures() Option {
	return func(d *Device) { d.noGestures = true }
}

// WithApps sets the installed application identifiers.
func WithApps(pkgs ...string) Option {
	return func(d *Device) {
		for _, p := range pkgs {
			d.apps[p] = true
		}
	}
}

// NewDevice creates a device showing screen.
func NewDevice(screen *uitree.Node, opts ...Option) *Device {
	d := &Device{apps: make(map[string]bool)}
	if screen != nil {
		d.screen = screen.Link()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fixture is the YAML layout of a screen file.
type Fixture struct {
	Apps   []string     `yaml:"apps"`
	Screen *uitree.Node `yaml:"screen"`
}

// LoadFixture reads a screen file and builds a device from it.
func LoadFixture(path string, opts ...Option) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取界面文件 '%s': %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析界面文件失败: %w", err)
	}
	return NewDevice(f.Screen, append([]Option{WithApps(f.Apps...)}, opts...)...), nil
}

// SetScreen replaces the visible tree.
func (d *Device) SetScreen(root *uitree.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if root != nil {
		root.Link()
	}
	d.screen = root
}

// Events returns a copy of everything performed so far.
func (d *Device) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

func (d *Device) record(e Event) {
	d.mu.Lock()
	d.events = append(d.events, e)
	d.mu.Unlock()
}

func (d *Device) Snapshot(ctx context.Context) (*uitree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screen, nil
}

func (d *Device) Perform(ctx context.Context, node *uitree.Node, action capability.NodeAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch action.Type {
	case "click":
		if !node.Clickable {
			return capability.Fail("not_clickable", nil)
		}
	case "set_text":
		if !node.Editable {
			return capability.Fail("not_editable", nil)
		}
		d.mu.Lock()
		node.Text = action.Text
		d.mu.Unlock()
	case "scroll":
		if !node.Scrollable {
			return capability.Fail("not_scrollable", nil)
		}
	default:
		return capability.Fail("unknown_action", fmt.Errorf("%q", action.Type))
	}
	d.record(Event{Op: action.Type, Target: node.Label(), Text: action.Text + action.Direction})
	return nil
}

func (d *Device) Global(ctx context.Context, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record(Event{Op: "global", Target: action})
	return nil
}

func (d *Device) Tap(ctx context.Context, x, y float64) error {
	if d.noGestures {
		return capability.ErrUnsupportedPlatform
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record(Event{Op: "tap", X: x, Y: y})
	return nil
}

func (d *Device) Launch(ctx context.Context, pkg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	installed := d.apps[pkg]
	d.mu.Unlock()
	if !installed {
		return capability.Fail("app_not_installed", fmt.Errorf("%s", pkg))
	}
	d.record(Event{Op: "launch", Target: pkg})
	return nil
}
