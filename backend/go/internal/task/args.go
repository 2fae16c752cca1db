package task

import (
	"math"
	"strings"
	"time"

	"TaskAgent/backend/go/internal/models"

	"github.com/gobwas/glob"
)

// Args is the typed payload produced by a kind's validator. The executor
// only ever inspects Args, never the raw payload.
type Args interface {
	kind() Kind
}

type ClickTextArgs struct{ Text string }

type ClickIDArgs struct{ ViewID string }

type SetTextArgs struct {
	Text string
	// Target optionally names the field to fill, by text or view id.
	Target string
}

type ScrollArgs struct{ Direction string }

type GlobalActionArgs struct{ Action string }

type TapArgs struct{ X, Y float64 }

// WaitArgs holds the duration as requested. The executor clamps it.
type WaitArgs struct{ Requested time.Duration }

type OpenAppArgs struct{ Package string }

// PathArgs is shared by the file kinds. Path is the caller's path before
// it is resolved against the storage root.
type PathArgs struct {
	Op   Kind
	Path string
	// Pattern filters list_files entries by name, e.g. "*.jpg".
	Pattern string
}

type RawArgs struct{ Text string }

func (ClickTextArgs) kind() Kind    { return KindClickText }
func (ClickIDArgs) kind() Kind      { return KindClickID }
func (SetTextArgs) kind() Kind      { return KindSetText }
func (ScrollArgs) kind() Kind       { return KindScroll }
func (GlobalActionArgs) kind() Kind { return KindGlobalAction }
func (TapArgs) kind() Kind          { return KindTap }
func (WaitArgs) kind() Kind         { return KindWait }
func (OpenAppArgs) kind() Kind      { return KindOpenApp }
func (a PathArgs) kind() Kind       { return a.Op }
func (RawArgs) kind() Kind          { return KindRaw }

const (
	// MaxCoordinate bounds tap coordinates in either direction.
	MaxCoordinate = 10000
	// MaxWait is the longest a wait task may block the worker.
	MaxWait = 120000 * time.Millisecond
	// MinWait is the shortest wait the executor performs.
	MinWait = time.Millisecond

	maxPackageLength = 255
)

var (
	scrollDirections = map[string]bool{"up": true, "down": true, "left": true, "right": true}
	globalActions    = map[string]bool{"back": true, "home": true, "recents": true, "notifications": true}
)

type validator func(payload map[string]models.Value) (Args, error)

var validators = map[Kind]validator{
	KindClickText: func(p map[string]models.Value) (Args, error) {
		text, err := requireText(p, KindClickText, "text")
		return ClickTextArgs{Text: text}, err
	},
	KindClickID: func(p map[string]models.Value) (Args, error) {
		field := "view_id"
		if _, ok := p[field]; !ok {
			field = "id"
		}
		id, err := requireText(p, KindClickID, field)
		return ClickIDArgs{ViewID: id}, err
	},
	KindSetText: func(p map[string]models.Value) (Args, error) {
		text, err := requireText(p, KindSetText, "text")
		if err != nil {
			return nil, err
		}
		target, err := optionalText(p, KindSetText, "target")
		return SetTextArgs{Text: text, Target: target}, err
	},
	KindScroll: func(p map[string]models.Value) (Args, error) {
		dir, err := optionalText(p, KindScroll, "direction")
		if err != nil {
			return nil, err
		}
		dir = strings.ToLower(dir)
		if dir == "" {
			dir = "down"
		}
		if !scrollDirections[dir] {
			return nil, invalidField(KindScroll, "direction", "must be one of up, down, left, right")
		}
		return ScrollArgs{Direction: dir}, nil
	},
	KindGlobalAction: func(p map[string]models.Value) (Args, error) {
		action, err := requireText(p, KindGlobalAction, "action")
		if err != nil {
			return nil, err
		}
		action = strings.ToLower(action)
		if !globalActions[action] {
			return nil, invalidField(KindGlobalAction, "action", "unsupported global action")
		}
		return GlobalActionArgs{Action: action}, nil
	},
	KindTap: func(p map[string]models.Value) (Args, error) {
		x, err := requireCoordinate(p, "x")
		if err != nil {
			return nil, err
		}
		y, err := requireCoordinate(p, "y")
		if err != nil {
			return nil, err
		}
		return TapArgs{X: x, Y: y}, nil
	},
	KindWait: func(p map[string]models.Value) (Args, error) {
		v, ok := p["ms"]
		if !ok {
			return nil, invalidField(KindWait, "ms", "required")
		}
		ms, ok := v.Numeric()
		if !ok {
			return nil, invalidField(KindWait, "ms", "must be a number")
		}
		// Out-of-range durations are clamped at execution time, not rejected.
		if ms > float64(math.MaxInt32) {
			ms = float64(math.MaxInt32)
		}
		if ms < 0 {
			ms = 0
		}
		return WaitArgs{Requested: time.Duration(ms * float64(time.Millisecond))}, nil
	},
	KindOpenApp: func(p map[string]models.Value) (Args, error) {
		pkg, err := requireText(p, KindOpenApp, "package")
		if err != nil {
			return nil, err
		}
		if strings.ContainsAny(pkg, " \t\r\n") || len(pkg) > maxPackageLength {
			return nil, invalidField(KindOpenApp, "package", "must be a single identifier")
		}
		return OpenAppArgs{Package: pkg}, nil
	},
	KindListFiles: func(p map[string]models.Value) (Args, error) {
		path, err := optionalText(p, KindListFiles, "path")
		if err != nil {
			return nil, err
		}
		pattern, err := optionalText(p, KindListFiles, "pattern")
		if err != nil {
			return nil, err
		}
		if pattern != "" {
			if _, err := glob.Compile(pattern); err != nil {
				return nil, invalidField(KindListFiles, "pattern", "not a valid glob")
			}
		}
		return PathArgs{Op: KindListFiles, Path: path, Pattern: pattern}, nil
	},
	KindDeleteFile: func(p map[string]models.Value) (Args, error) {
		path, err := requireText(p, KindDeleteFile, "path")
		return PathArgs{Op: KindDeleteFile, Path: path}, err
	},
	KindFileInfo: func(p map[string]models.Value) (Args, error) {
		path, err := requireText(p, KindFileInfo, "path")
		return PathArgs{Op: KindFileInfo, Path: path}, err
	},
	KindRaw: func(p map[string]models.Value) (Args, error) {
		text, err := requireText(p, KindRaw, "text")
		return RawArgs{Text: text}, err
	},
}

func requireText(p map[string]models.Value, kind Kind, field string) (string, error) {
	v, ok := p[field]
	if !ok || v.IsNull() {
		return "", invalidField(kind, field, "required")
	}
	s, ok := v.AsString()
	if !ok {
		return "", invalidField(kind, field, "must be a string")
	}
	if s == "" {
		return "", invalidField(kind, field, "must not be empty")
	}
	return s, nil
}

func optionalText(p map[string]models.Value, kind Kind, field string) (string, error) {
	v, ok := p[field]
	if !ok || v.IsNull() {
		return "", nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", invalidField(kind, field, "must be a string")
	}
	return s, nil
}

func requireCoordinate(p map[string]models.Value, field string) (float64, error) {
	v, ok := p[field]
	if !ok {
		return 0, invalidField(KindTap, field, "required")
	}
	n, ok := v.Numeric()
	if !ok {
		return 0, invalidField(KindTap, field, "must be a number")
	}
	if math.Abs(n) > MaxCoordinate {
		return 0, invalidField(KindTap, field, "out of range")
	}
	return n, nil
}

// ClampWait bounds d into [MinWait, max].
func ClampWait(d, max time.Duration) time.Duration {
	if max <= 0 || max > MaxWait {
		max = MaxWait
	}
	if d < MinWait {
		return MinWait
	}
	if d > max {
		return max
	}
	return d
}
