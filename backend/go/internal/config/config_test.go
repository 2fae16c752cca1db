package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigExample(t *testing.T) {
	cfg, err := LoadConfig("config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Agent.SourceID != "dev_01" {
		t.Errorf("Expected sourceID dev_01, got %q", cfg.Agent.SourceID)
	}
	if cfg.Databases.Kafka.JournalTopic != "agent_task_journal" {
		t.Errorf("Unexpected journal topic %q", cfg.Databases.Kafka.JournalTopic)
	}
	if Duration(cfg.Poll.Interval, 0) != 5*time.Second {
		t.Errorf("Unexpected poll interval %q", cfg.Poll.Interval)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  sourceID: dev_02\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Agent.StorageRoot != "/storage/emulated/0" || cfg.Executor.QueueSize != 64 {
		t.Errorf("Defaults were not kept: %+v", cfg.Agent)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected an error for an empty sourceID")
	}
	cfg.Agent.SourceID = "dev_01"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults with a sourceID should validate: %v", err)
	}
	cfg.Poll.Interval = "soon"
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected an error for an invalid duration")
	}
	cfg.Poll.Interval = "-1s"
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected an error for a negative duration")
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Errorf("Expected fallback, got %v", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", got)
	}
}

func TestValidate_PublicAddressRequiresSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.SourceID = "dev_01"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Loopback default without a secret should validate: %v", err)
	}
	for _, addr := range []string{":8080", "0.0.0.0:8080", "192.168.1.20:8080"} {
		cfg.Server.Address = addr
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected an error without auth.jwtSecret", addr)
		}
	}
	cfg.Auth.JwtSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected a public address with a secret to validate: %v", err)
	}
	cfg.Auth.JwtSecret = ""
	cfg.Server.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected a disabled server to skip the check: %v", err)
	}
}

func TestLoopback(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:80":   true,
		"[::1]:8080":     true,
		":8080":          false,
		"10.0.0.5:8080":  false,
		"not-an-address": false,
	}
	for addr, want := range cases {
		if got := Loopback(addr); got != want {
			t.Errorf("Loopback(%q) = %v, want %v", addr, got, want)
		}
	}
}
