package config

import (
	"sync"
	"testing"
)

func resetGlobal() {
	SetConfig(nil)
	initOnce = *new(sync.Once)
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	path := writeConfig(t, `
policy:
  file_path: "./first.yaml"
`)

	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("GetConfig() = nil after Initialize")
	}
	if cfg.Policy.FilePath != "./first.yaml" {
		t.Errorf("policy.file_path = %q, want ./first.yaml", cfg.Policy.FilePath)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	first := writeConfig(t, "policy:\n  file_path: \"./first.yaml\"\n")
	second := writeConfig(t, "policy:\n  file_path: \"./second.yaml\"\n")

	if err := Initialize(first); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}
	if err := Initialize(second); err != nil {
		t.Fatalf("second Initialize() error = %v, want nil", err)
	}

	if got := GetConfig().Policy.FilePath; got != "./first.yaml" {
		t.Errorf("policy.file_path = %q, want ./first.yaml", got)
	}
}

func TestReloadConfig(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	if err := Initialize(writeConfig(t, "policy:\n  file_path: \"./first.yaml\"\n")); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}

	if err := ReloadConfig(writeConfig(t, "policy:\n  file_path: \"./second.yaml\"\n")); err != nil {
		t.Fatalf("ReloadConfig() error = %v, want nil", err)
	}
	if got := GetConfig().Policy.FilePath; got != "./second.yaml" {
		t.Errorf("policy.file_path = %q, want ./second.yaml", got)
	}
}

func TestReloadConfig_ValidationFailureKeepsCurrent(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	if err := Initialize(writeConfig(t, "policy:\n  file_path: \"./first.yaml\"\n")); err != nil {
		t.Fatalf("Initialize() error = %v, want nil", err)
	}

	if err := ReloadConfig(writeConfig(t, "engine:\n  sink_count: -1\n")); err == nil {
		t.Fatal("ReloadConfig() error = nil, want validation error")
	}
	if got := GetConfig().Policy.FilePath; got != "./first.yaml" {
		t.Errorf("policy.file_path = %q, want ./first.yaml", got)
	}
}

func TestMustGetConfig(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() did not panic before Initialize")
		}
	}()
	MustGetConfig()
}
