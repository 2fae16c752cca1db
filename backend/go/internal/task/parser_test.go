package task

import (
	"errors"
	"strings"
	"testing"
	"time"

	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/pkg/clock"
	"TaskAgent/backend/go/pkg/ratelimiter"
)

const testSource = "dev_01"

func newTestParser() (*Parser, *ratelimiter.KeyedSlidingWindow) {
	clk := clock.NewManual(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	limiter := ratelimiter.NewKeyedSlidingWindow(3, 60*time.Second, clk)
	return NewParser(DefaultLimits(), limiter), limiter
}

func descriptor(action string, payload map[string]interface{}) models.TaskDescriptor {
	return models.TaskDescriptor{ID: "1", SourceID: testSource, Action: action, Payload: payload}
}

func TestParse_Tap(t *testing.T) {
	p, _ := newTestParser()
	task, err := p.Parse(descriptor("tap", map[string]interface{}{"x": 100, "y": 200}), testSource)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if task.Kind != KindTap {
		t.Errorf("Expected kind tap, got %s", task.Kind)
	}
	args, ok := task.Args.(TapArgs)
	if !ok || args.X != 100 || args.Y != 200 {
		t.Errorf("Unexpected args: %#v", task.Args)
	}
	if task.Origin != models.OriginSync {
		t.Errorf("Expected default origin sync, got %s", task.Origin)
	}
}

func TestParse_IdentityChecks(t *testing.T) {
	p, _ := newTestParser()

	cases := []struct {
		name string
		raw  models.TaskDescriptor
		want *Error
	}{
		{"missing id", models.TaskDescriptor{SourceID: testSource, Action: "tap"}, ErrMissingField},
		{"missing source", models.TaskDescriptor{ID: "1", Action: "tap"}, ErrMissingField},
		{"missing kind", models.TaskDescriptor{ID: "1", SourceID: testSource}, ErrMissingField},
		{"blank command", models.TaskDescriptor{ID: "1", SourceID: testSource, Command: "   "}, ErrMissingField},
		{"long id", models.TaskDescriptor{ID: strings.Repeat("a", 129), SourceID: testSource, Action: "tap"}, ErrInvalidField},
		{"other source", models.TaskDescriptor{ID: "1", SourceID: "dev_02", Action: "tap"}, ErrSourceMismatch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			task, err := p.Parse(c.raw, testSource)
			if task != nil {
				t.Errorf("no task may be constructed on failure")
			}
			if !errors.Is(err, c.want) {
				t.Errorf("Expected %s, got %v", c.want.Code, err)
			}
		})
	}
}

func TestParse_UnknownKindDoesNotTouchLimiter(t *testing.T) {
	p, limiter := newTestParser()

	for _, action := range []string{"detonate", "raw", "", "  CLICK_EVERYTHING "} {
		raw := descriptor(action, nil)
		if action == "" {
			raw.Command = ""
		}
		_, err := p.Parse(raw, testSource)
		if action == "" {
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("Expected MissingField for empty action, got %v", err)
			}
			continue
		}
		if !errors.Is(err, ErrUnknownKind) {
			t.Errorf("action %q: expected UnknownKind, got %v", action, err)
		}
	}
	if limiter.Keys() != 0 {
		t.Errorf("Expected no rate limiter state, got %d keys", limiter.Keys())
	}
}

func TestParse_AliasNormalization(t *testing.T) {
	p := NewParser(DefaultLimits(), nil)

	cases := map[string]Kind{
		" Click ":         KindClickText,
		"CLICK_TEXT":      KindClickText,
		"click-by-id":     KindClickID,
		"Type":            KindSetText,
		"rm":              KindDeleteFile,
		"ls":              KindListFiles,
		"tap_coordinates": KindTap,
		"sleep":           KindWait,
		"back":            KindGlobalAction,
	}
	payloads := map[Kind]map[string]interface{}{
		KindClickText:    {"text": "OK"},
		KindClickID:      {"view_id": "com.example:id/ok"},
		KindSetText:      {"text": "hello"},
		KindDeleteFile:   {"path": "a.txt"},
		KindListFiles:    {},
		KindTap:          {"x": 1, "y": 2},
		KindWait:         {"ms": 10},
		KindGlobalAction: {},
	}
	for action, want := range cases {
		task, err := p.Parse(descriptor(action, payloads[want]), testSource)
		if err != nil {
			t.Errorf("action %q: unexpected error %v", action, err)
			continue
		}
		if task.Kind != want {
			t.Errorf("action %q: expected %s, got %s", action, want, task.Kind)
		}
	}
}

func TestParse_GlobalActionAliasSuppliesAction(t *testing.T) {
	p := NewParser(DefaultLimits(), nil)
	task, err := p.Parse(descriptor("home", nil), testSource)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if args := task.Args.(GlobalActionArgs); args.Action != "home" {
		t.Errorf("Expected action home, got %q", args.Action)
	}
}

func TestParse_RateLimitedBeforeValidation(t *testing.T) {
	p, _ := newTestParser()
	// Payload is invalid, but the fourth call must still be reported as rate limited.
	for i := 0; i < 3; i++ {
		_, err := p.Parse(descriptor("tap", map[string]interface{}{"x": "left"}), testSource)
		if !errors.Is(err, ErrInvalidField) {
			t.Fatalf("call %d: expected InvalidField, got %v", i+1, err)
		}
	}
	_, err := p.Parse(descriptor("tap", map[string]interface{}{"x": 1, "y": 1}), testSource)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected RateLimited, got %v", err)
	}
}

func TestParse_FieldValidators(t *testing.T) {
	p := NewParser(DefaultLimits(), nil)

	cases := []struct {
		action  string
		payload map[string]interface{}
		field   string
	}{
		{"set_text", map[string]interface{}{"text": "   "}, "text"},
		{"set_text", map[string]interface{}{"text": 12}, "text"},
		{"tap", map[string]interface{}{"x": 10}, "y"},
		{"tap", map[string]interface{}{"x": 10001, "y": 0}, "x"},
		{"tap", map[string]interface{}{"x": "abc", "y": 0}, "x"},
		{"wait", map[string]interface{}{}, "ms"},
		{"wait", map[string]interface{}{"ms": "soon"}, "ms"},
		{"scroll", map[string]interface{}{"direction": "sideways"}, "direction"},
		{"global_action", map[string]interface{}{"action": "reboot"}, "action"},
		{"open_app", map[string]interface{}{"package": "com.example app"}, "package"},
		{"delete_file", map[string]interface{}{}, "path"},
		{"list_files", map[string]interface{}{"pattern": 5}, "pattern"},
		{"click", map[string]interface{}{}, "text"},
	}
	for _, c := range cases {
		_, err := p.Parse(descriptor(c.action, c.payload), testSource)
		var te *Error
		if !errors.As(err, &te) || te.Code != models.ErrInvalidField {
			t.Errorf("%s %v: expected InvalidField, got %v", c.action, c.payload, err)
			continue
		}
		if te.Field != c.field {
			t.Errorf("%s: expected field %q, got %q", c.action, c.field, te.Field)
		}
	}
}

func TestParse_WaitIsClampedNotRejected(t *testing.T) {
	p := NewParser(DefaultLimits(), nil)
	task, err := p.Parse(descriptor("wait", map[string]interface{}{"ms": 500000}), testSource)
	if err != nil {
		t.Fatalf("Expected oversized wait to parse, got %v", err)
	}
	args := task.Args.(WaitArgs)
	if got := ClampWait(args.Requested, MaxWait); got != MaxWait {
		t.Errorf("Expected clamp to %v, got %v", MaxWait, got)
	}
	if got := ClampWait(0, MaxWait); got != MinWait {
		t.Errorf("Expected clamp to %v, got %v", MinWait, got)
	}
}

func TestParse_TooManyPayloadKeys(t *testing.T) {
	p := NewParser(DefaultLimits(), nil)
	payload := map[string]interface{}{"text": "x"}
	for i := 0; i < 40; i++ {
		payload[strings.Repeat("k", i+1)] = i
	}
	_, err := p.Parse(descriptor("click", payload), testSource)
	if !errors.Is(err, ErrInvalidField) {
		t.Errorf("Expected InvalidField for oversized payload, got %v", err)
	}
}

func TestParse_LegacyCommands(t *testing.T) {
	p := NewParser(DefaultLimits(), nil)

	cases := []struct {
		command string
		kind    Kind
		check   func(Args) bool
	}{
		{"/tap 100 200", KindTap, func(a Args) bool { tap := a.(TapArgs); return tap.X == 100 && tap.Y == 200 }},
		{"click  Sign in ", KindClickText, func(a Args) bool { return a.(ClickTextArgs).Text == "Sign in" }},
		{"/TYPE hello world", KindSetText, func(a Args) bool { return a.(SetTextArgs).Text == "hello world" }},
		{"/back", KindGlobalAction, func(a Args) bool { return a.(GlobalActionArgs).Action == "back" }},
		{"/wait 250", KindWait, func(a Args) bool { return a.(WaitArgs).Requested == 250*time.Millisecond }},
		{"/open com.example.notes", KindOpenApp, func(a Args) bool { return a.(OpenAppArgs).Package == "com.example.notes" }},
		{"/ls", KindListFiles, func(a Args) bool { return a.(PathArgs).Path == "" }},
		{"/rm Download/a.txt", KindDeleteFile, func(a Args) bool { return a.(PathArgs).Path == "Download/a.txt" }},
		{"/selfie now please", KindRaw, func(a Args) bool { return a.(RawArgs).Text == "/selfie now please" }},
	}
	for _, c := range cases {
		raw := models.TaskDescriptor{ID: "1", SourceID: testSource, Command: c.command}
		task, err := p.Parse(raw, testSource)
		if err != nil {
			t.Errorf("%q: unexpected error %v", c.command, err)
			continue
		}
		if task.Kind != c.kind {
			t.Errorf("%q: expected %s, got %s", c.command, c.kind, task.Kind)
			continue
		}
		if !c.check(task.Args) {
			t.Errorf("%q: unexpected args %#v", c.command, task.Args)
		}
	}

	_, err := p.Parse(models.TaskDescriptor{ID: "1", SourceID: testSource, Command: "/tap left 2"}, testSource)
	if !errors.Is(err, ErrInvalidField) {
		t.Errorf("Expected InvalidField for non-numeric legacy tap, got %v", err)
	}
}

func TestParse_ActionWinsOverCommand(t *testing.T) {
	p := NewParser(DefaultLimits(), nil)
	raw := descriptor("wait", map[string]interface{}{"ms": 5})
	raw.Command = "/rm everything"
	task, err := p.Parse(raw, testSource)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if task.Kind != KindWait {
		t.Errorf("Expected action to win, got %s", task.Kind)
	}
}
