package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/saturn/pkg/config"
)

// ErrNotCloned is returned by operations requiring a cloned repository.
var ErrNotCloned = errors.New("git: repository not initialized, call Clone first")

// Repository is the local clone of a bindings repository.
type Repository struct {
	config *config.GitPolicyConfig
	auth   AuthProvider
	logger *slog.Logger

	mu    sync.RWMutex
	repo  *gogit.Repository
	stats RepositoryStats
}

// NewRepository creates a repository manager for cfg. Nothing is cloned
// until Clone.
func NewRepository(cfg *config.GitPolicyConfig, logger *slog.Logger) (*Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("local path cannot be empty")
	}

	auth, err := NewAuthProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Repository{
		config: cfg,
		auth:   auth,
		logger: logger.With("component", "policy_git", "repository", cfg.Repository),
	}, nil
}

// Clone clones the configured branch to LocalPath. An existing clone is
// opened instead and brought up to date by the next Pull.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.stats.CloneDuration = time.Since(start)
	}()

	if _, err := os.Stat(filepath.Join(r.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo: %w", err)
		}
		r.repo = repo
		r.logger.Info("opened existing policy repository", "path", r.config.LocalPath)
		return nil
	}

	if err := os.MkdirAll(r.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	auth, err := r.auth.GetAuth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.config.LocalPath, false, &gogit.CloneOptions{
		URL:           r.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	r.repo = repo
	r.logger.Info("cloned policy repository",
		"branch", r.config.Branch,
		"path", r.config.LocalPath,
		"auth", r.auth.Type(),
	)
	return nil
}

// Fetch fetches the tracked branch and returns the SHA of its remote head.
// The working tree is not changed.
func (r *Repository) Fetch(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.stats.PullDuration = time.Since(start)
		r.stats.LastPullTime = time.Now()
	}()

	if r.repo == nil {
		return "", ErrNotCloned
	}

	auth, err := r.auth.GetAuth()
	if err != nil {
		return "", fmt.Errorf("failed to get auth: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	remoteRef := plumbing.NewRemoteReferenceName("origin", r.config.Branch)
	refSpec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", plumbing.NewBranchReferenceName(r.config.Branch), remoteRef))

	err = r.repo.FetchContext(fetchCtx, &gogit.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		r.stats.FailedPulls++
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	r.stats.SuccessfulPulls++

	ref, err := r.repo.Reference(remoteRef, true)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", remoteRef, err)
	}
	return ref.Hash().String(), nil
}

// Update hard resets the working tree and the tracked branch to sha and
// returns the files changed relative to the previous head.
func (r *Repository) Update(sha string) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	result := &PullResult{FromSHA: head.Hash().String(), ToSHA: sha}
	if result.FromSHA == sha {
		return result, nil
	}

	if err := r.reset(sha); err != nil {
		return nil, err
	}

	result.HadChanges = true
	if result.ChangedFiles, err = r.changedFiles(result.FromSHA, sha); err != nil {
		return nil, fmt.Errorf("failed to get changed files: %w", err)
	}
	return result, nil
}

// Pull fetches the tracked branch and updates the working tree to it.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	sha, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return r.Update(sha)
}

// Rollback hard resets the working tree to sha.
func (r *Repository) Rollback(sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return ErrNotCloned
	}
	return r.reset(sha)
}

func (r *Repository) reset(sha string) error {
	hash := plumbing.NewHash(sha)
	if _, err := r.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("commit %s not found: %w", shortSHA(sha), err)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := worktree.Reset(&gogit.ResetOptions{Commit: hash, Mode: gogit.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", shortSHA(sha), err)
	}
	return nil
}

// changedFiles returns the paths changed between two commits.
func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// CurrentCommit returns the metadata of the checked out commit.
func (r *Repository) CurrentCommit() (*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	return &CommitInfo{
		SHA:        commit.Hash.String(),
		Author:     commit.Author.Name,
		Email:      commit.Author.Email,
		Timestamp:  commit.Author.When,
		Message:    commit.Message,
		Branch:     r.config.Branch,
		Repository: r.config.Repository,
	}, nil
}

// Stats returns a copy of the repository statistics.
func (r *Repository) Stats() RepositoryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// BindingsFile returns the path of the bindings file relative to the
// repository root, in slash form.
func (r *Repository) BindingsFile() string {
	return filepath.ToSlash(filepath.Clean(r.config.Path))
}

// BindingsPath returns the local path of the bindings file.
func (r *Repository) BindingsPath() string {
	return filepath.Join(r.config.LocalPath, r.config.Path)
}
