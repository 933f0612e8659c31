// Package git loads the policy bindings file from a Git repository.
//
// A Repository clones the configured branch to a local directory; the
// bindings file is then read from BindingsPath by the file provider. A
// Watcher polls the remote, and when a pull changes the bindings file it
// calls the reload callback. If the reload fails the working tree is rolled
// back to the last commit that loaded successfully.
//
// # Usage
//
//	repo, err := git.NewRepository(&cfg.Policy.Git, logger)
//	if err != nil {
//		return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//		return err
//	}
//
//	watcher := git.NewWatcher(repo, cfg.Policy.Git.PollInterval, provider.Load, logger)
//	if err := watcher.Start(ctx); err != nil {
//		return err
//	}
//	defer watcher.Stop()
//
// # Authentication
//
// Supported auth types are "none" (public repositories and local paths),
// "token" (HTTPS basic auth with a personal access token) and "ssh"
// (private key file, optionally passphrase protected). SSH key files must
// not be group or world readable.
package git
