package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/config"
)

const testBindings = `
policies:
  - id: greet
    template: set-variable
    parameters:
      name: greeting
      value: hello
    source:
      namespace: http
      name: listener
  - id: deny-delete
    template: deny
    order: 10
    parameters:
      attribute: method
      equals: DELETE
    source:
      namespace: http
      name: listener
  - id: tag
    template: set-attribute
    parameters:
      name: tagged
      value: true
    operation:
      namespace: http
      name: request
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// useConfig installs a default configuration pointing at a temporary
// bindings file and journal.
func useConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.NewDefault()
	cfg.Policy.FilePath = writeFile(t, dir, "policies.yaml", testBindings)
	cfg.Engine.Cache.SweepSchedule = ""
	cfg.Journal.Path = filepath.Join(dir, "journal.db")

	orig := config.GetConfig()
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(orig) })
	return cfg
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}
