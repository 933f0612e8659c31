package git

import "time"

// CommitInfo contains metadata about a Git commit.
type CommitInfo struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	Branch     string    `json:"branch"`
	Repository string    `json:"repository"`
}

// ShortSHA returns the first 8 characters of the commit SHA.
func (c *CommitInfo) ShortSHA() string {
	return shortSHA(c.SHA)
}

// PullResult contains the result of a pull.
type PullResult struct {
	FromSHA      string
	ToSHA        string
	ChangedFiles []string
	HadChanges   bool
}

// RepositoryStats tracks Git operation statistics.
type RepositoryStats struct {
	CloneDuration   time.Duration
	PullDuration    time.Duration
	LastPullTime    time.Time
	FailedPulls     int64
	SuccessfulPulls int64
}

// WatcherStats tracks watcher statistics.
type WatcherStats struct {
	Polls             int64
	SuccessfulReloads int64
	FailedReloads     int64
	Rollbacks         int64
	SkippedChanges    int64
	LastReloadTime    time.Time
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
