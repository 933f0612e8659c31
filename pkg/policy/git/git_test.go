package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/saturn/pkg/config"
)

// createTestRepo creates a repository with one commit of policies.yaml.
func createTestRepo(t *testing.T, dir string) *gogit.Repository {
	t.Helper()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitFile(t, repo, dir, "policies.yaml", "policies: []\n", "initial commit")
	return repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content, message string) string {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := worktree.Add(name); err != nil {
		t.Fatalf("failed to add %s: %v", name, err)
	}

	hash, err := worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

func testConfig(t *testing.T, source string) *config.GitPolicyConfig {
	t.Helper()
	return &config.GitPolicyConfig{
		Enabled:    true,
		Repository: source,
		Branch:     "master", // go-git init creates "master"
		Path:       "policies.yaml",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Auth:       config.GitAuthConfig{Type: "none"},
		Timeout:    10 * time.Second,
	}
}

func cloneTestRepo(t *testing.T, cfg *config.GitPolicyConfig) *Repository {
	t.Helper()

	repo, err := NewRepository(cfg, nil)
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}
	if err := repo.Clone(context.Background()); err != nil {
		t.Fatalf("Clone() error = %v, want nil", err)
	}
	return repo
}

func readBindings(t *testing.T, repo *Repository) string {
	t.Helper()
	data, err := os.ReadFile(repo.BindingsPath())
	if err != nil {
		t.Fatalf("failed to read bindings: %v", err)
	}
	return string(data)
}

func TestNewRepository(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.GitPolicyConfig)
		wantErr bool
	}{
		{name: "valid"},
		{name: "empty repository", modify: func(c *config.GitPolicyConfig) { c.Repository = "" }, wantErr: true},
		{name: "empty branch", modify: func(c *config.GitPolicyConfig) { c.Branch = "" }, wantErr: true},
		{name: "empty local path", modify: func(c *config.GitPolicyConfig) { c.LocalPath = "" }, wantErr: true},
		{name: "token without token", modify: func(c *config.GitPolicyConfig) { c.Auth.Type = "token" }, wantErr: true},
		{name: "unknown auth", modify: func(c *config.GitPolicyConfig) { c.Auth.Type = "kerberos" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "https://example.com/policies.git")
			if tt.modify != nil {
				tt.modify(cfg)
			}

			_, err := NewRepository(cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRepository_Clone(t *testing.T) {
	source := t.TempDir()
	createTestRepo(t, source)

	cfg := testConfig(t, source)
	repo := cloneTestRepo(t, cfg)

	if got := readBindings(t, repo); got != "policies: []\n" {
		t.Errorf("bindings = %q", got)
	}

	commit, err := repo.CurrentCommit()
	if err != nil {
		t.Fatalf("CurrentCommit() error = %v, want nil", err)
	}
	if commit.Message != "initial commit" || commit.Branch != "master" {
		t.Errorf("commit = %+v", commit)
	}

	// A second Clone opens the existing checkout.
	again := cloneTestRepo(t, cfg)
	if c, _ := again.CurrentCommit(); c == nil || c.SHA != commit.SHA {
		t.Errorf("reopened commit = %v, want %s", c, commit.SHA)
	}
}

func TestRepository_CloneNonexistent(t *testing.T) {
	repo, err := NewRepository(testConfig(t, filepath.Join(t.TempDir(), "missing")), nil)
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}
	if err := repo.Clone(context.Background()); err == nil {
		t.Fatal("Clone() error = nil, want error")
	}
}

func TestRepository_NotCloned(t *testing.T) {
	repo, err := NewRepository(testConfig(t, "https://example.com/policies.git"), nil)
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}

	if _, err := repo.Fetch(context.Background()); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Fetch() error = %v, want ErrNotCloned", err)
	}
	if _, err := repo.CurrentCommit(); !errors.Is(err, ErrNotCloned) {
		t.Errorf("CurrentCommit() error = %v, want ErrNotCloned", err)
	}
	if err := repo.Rollback("abc"); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Rollback() error = %v, want ErrNotCloned", err)
	}
}

func TestRepository_PullAndRollback(t *testing.T) {
	source := t.TempDir()
	origin := createTestRepo(t, source)
	repo := cloneTestRepo(t, testConfig(t, source))

	initial, _ := repo.CurrentCommit()

	result, err := repo.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v, want nil", err)
	}
	if result.HadChanges {
		t.Errorf("Pull() without new commits reported changes: %+v", result)
	}

	commitFile(t, origin, source, "policies.yaml", "policies:\n  - id: a\n", "add a")
	commitFile(t, origin, source, "README.md", "docs", "docs")

	result, err = repo.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v, want nil", err)
	}
	if !result.HadChanges || result.FromSHA != initial.SHA {
		t.Fatalf("Pull() = %+v, want changes from %s", result, initial.SHA)
	}
	if len(result.ChangedFiles) != 2 {
		t.Errorf("ChangedFiles = %v, want policies.yaml and README.md", result.ChangedFiles)
	}
	if got := readBindings(t, repo); got != "policies:\n  - id: a\n" {
		t.Errorf("bindings after pull = %q", got)
	}

	if err := repo.Rollback(initial.SHA); err != nil {
		t.Fatalf("Rollback() error = %v, want nil", err)
	}
	if got := readBindings(t, repo); got != "policies: []\n" {
		t.Errorf("bindings after rollback = %q", got)
	}
	if err := repo.Rollback("0000000000000000000000000000000000000000"); err == nil {
		t.Error("Rollback(unknown) error = nil, want error")
	}

	stats := repo.Stats()
	if stats.SuccessfulPulls != 2 || stats.CloneDuration == 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	source := t.TempDir()
	createTestRepo(t, source)
	repo := cloneTestRepo(t, testConfig(t, source))

	w := NewWatcher(repo, time.Hour, func() error { return nil }, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if !w.IsRunning() || w.LastCommitSHA() == "" {
		t.Fatalf("watcher not running after Start(): sha %q", w.LastCommitSHA())
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil, want error")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v, want nil", err)
	}
	if w.IsRunning() {
		t.Error("watcher running after Stop()")
	}
	if err := w.Stop(); err == nil {
		t.Error("second Stop() error = nil, want error")
	}
}

func TestWatcher_StartRequiresInterval(t *testing.T) {
	source := t.TempDir()
	createTestRepo(t, source)
	repo := cloneTestRepo(t, testConfig(t, source))

	if err := NewWatcher(repo, 0, nil, nil).Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want error for zero interval")
	}
}

func TestWatcher_Check(t *testing.T) {
	source := t.TempDir()
	origin := createTestRepo(t, source)
	repo := cloneTestRepo(t, testConfig(t, source))

	reloads := 0
	var reloadErr error
	w := NewWatcher(repo, time.Hour, func() error {
		reloads++
		return reloadErr
	}, nil)
	ctx := context.Background()

	// No new commit.
	if err := w.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	if reloads != 0 {
		t.Fatalf("reloads = %d, want 0", reloads)
	}

	// A commit not touching the bindings file is skipped.
	docsSHA := commitFile(t, origin, source, "README.md", "docs", "docs")
	if err := w.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	if reloads != 0 || w.LastCommitSHA() != docsSHA {
		t.Fatalf("reloads = %d, last = %s, want 0 and %s", reloads, w.LastCommitSHA(), docsSHA)
	}

	// A bindings change reloads.
	goodSHA := commitFile(t, origin, source, "policies.yaml", "policies:\n  - id: a\n", "add a")
	if err := w.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	if reloads != 1 || w.LastCommitSHA() != goodSHA {
		t.Fatalf("reloads = %d, last = %s, want 1 and %s", reloads, w.LastCommitSHA(), goodSHA)
	}

	// A rejected change rolls back and is not retried.
	reloadErr = errors.New("invalid bindings")
	commitFile(t, origin, source, "policies.yaml", "broken", "break")
	if err := w.Check(ctx); err == nil {
		t.Fatal("Check() error = nil, want reload error")
	}
	if got := readBindings(t, repo); got != "policies:\n  - id: a\n" {
		t.Errorf("bindings after rollback = %q", got)
	}
	if w.LastCommitSHA() != goodSHA {
		t.Errorf("LastCommitSHA() = %s, want %s", w.LastCommitSHA(), goodSHA)
	}

	if err := w.Check(ctx); err != nil {
		t.Fatalf("Check() on rejected commit error = %v, want nil", err)
	}
	if reloads != 2 {
		t.Errorf("reloads = %d, want 2 (rejected commit not retried)", reloads)
	}

	stats := w.Stats()
	if stats.SuccessfulReloads != 1 || stats.FailedReloads != 1 || stats.Rollbacks != 1 || stats.SkippedChanges != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestAuthProviders(t *testing.T) {
	if auth, err := NewTokenAuth("secret").GetAuth(); err != nil || auth == nil {
		t.Errorf("TokenAuth.GetAuth() = %v, %v", auth, err)
	}
	if _, err := NewTokenAuth("").GetAuth(); err == nil {
		t.Error("TokenAuth.GetAuth() with empty token error = nil, want error")
	}

	if auth, err := (NoAuth{}).GetAuth(); err != nil || auth != nil {
		t.Errorf("NoAuth.GetAuth() = %v, %v, want nil, nil", auth, err)
	}

	key := filepath.Join(t.TempDir(), "id_rsa")
	if err := os.WriteFile(key, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSSHAuth(key, "").GetAuth(); err == nil {
		t.Error("SSHAuth.GetAuth() with open permissions error = nil, want error")
	}
	if err := os.Chmod(key, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSSHAuth(key, "").GetAuth(); err == nil {
		t.Error("SSHAuth.GetAuth() with invalid key error = nil, want error")
	}
}
