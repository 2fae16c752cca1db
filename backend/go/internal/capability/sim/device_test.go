package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"TaskAgent/backend/go/internal/capability"
)

const fixture = `
apps: [com.example.notes]
screen:
  class: Window
  children:
    - class: Button
      text: OK
      clickable: true
    - class: EditText
      view_id: app:id/name
      editable: true
`

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.yaml")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture failed: %v", err)
	}
	root, _ := d.Snapshot(context.Background())
	if root == nil || len(root.Children) != 2 {
		t.Fatalf("Unexpected screen: %#v", root)
	}
	if root.Children[0].Parent != root {
		t.Errorf("Expected parents to be linked")
	}
	if err := d.Launch(context.Background(), "com.example.notes"); err != nil {
		t.Errorf("Launch failed: %v", err)
	}
	var ce *capability.Error
	if err := d.Launch(context.Background(), "com.other"); !errors.As(err, &ce) || ce.Code != "app_not_installed" {
		t.Errorf("Expected app_not_installed, got %v", err)
	}
}

func TestTap_WithoutGestures(t *testing.T) {
	d := NewDevice(nil, WithoutGestures())
	if err := d.Tap(context.Background(), 1, 2); !errors.Is(err, capability.ErrUnsupportedPlatform) {
		t.Errorf("Expected ErrUnsupportedPlatform, got %v", err)
	}
	if len(d.Events()) != 0 {
		t.Errorf("Expected no events to be recorded")
	}
}
