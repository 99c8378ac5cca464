// Package syncer orchestrates one synchronization run:
// it resolves the repositories involved, collects the
// local commits a branch is ahead of its base, pushes
// them to the remote host, reconciles the pull request,
// and optionally writes a machine-readable summary.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/prsync/sync/commitmsg"
	"github.com/byte4ever/prsync/sync/config"
	"github.com/byte4ever/prsync/sync/githost"
)

// CommitSource supplies the local commits to sync.
type CommitSource interface {
	// Commits lists the commits on head's first-parent
	// chain that are not yet in base's history, oldest
	// first.
	Commits(
		ctx context.Context,
		base string,
		head string,
	) ([]githost.Commit, error)

	// ChangeSet flattens commits into their net change
	// set for the single-commit push path.
	ChangeSet(
		commits []githost.Commit,
	) (githost.ChangeSet, error)
}

// Config holds all settings for one synchronization run.
// Use a Config struct instead of many arguments.
type Config struct {
	// Repository is the "owner/name" the pull request
	// targets. Empty means: derive it from the head
	// repository's fork parent.
	Repository string

	// HeadRepository is the "owner/name" the branch is
	// pushed to. Empty means same as Repository.
	HeadRepository string

	// Branch is the head branch to push and open the
	// pull request from.
	Branch string

	// Base is the branch the pull request targets, and
	// the local revision the commit range starts from.
	Base string

	// Signed pushes one flattened commit through the
	// host's signing endpoint instead of replaying each
	// local commit.
	Signed bool

	// DryRun stops after collecting commits, before any
	// remote mutation.
	DryRun bool

	// CommitMessage overrides the message of the
	// flattened commit on the signed path. Supports the
	// same {{VAR}} templates as the pull request title.
	CommitMessage string

	// PR is the pull request metadata. An empty title
	// gets a generated one.
	PR config.PullRequest

	// ResultFile, when set, receives a JSON summary of
	// the reconciled pull request.
	ResultFile string

	// Host talks to the remote platform.
	Host githost.Host

	// Source reads local history.
	Source CommitSource
}

// Result is the JSON summary written to the result file
// after a successful run.
type Result struct {
	Number  int    `json:"number"`
	URL     string `json:"url"`
	Created bool   `json:"created"`
	HeadSHA string `json:"head_sha"`
}

// Run executes one synchronization end to end.
func Run(ctx context.Context, cfg Config) error {
	const errCtx = "running branch sync"

	if cfg.Branch == "" || cfg.Base == "" {
		return fmt.Errorf(
			"%s: branch and base are required", errCtx,
		)
	}

	if cfg.Branch == cfg.Base {
		return fmt.Errorf(
			"%s: branch %s cannot be its own base",
			errCtx, cfg.Branch,
		)
	}

	// Step 1: resolve the repositories involved.
	base, head, err := resolveRepos(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	// Step 2: collect the commits to sync.
	commits, err := cfg.Source.Commits(
		ctx, cfg.Base, cfg.Branch,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if len(commits) == 0 {
		slog.Info(
			"branch is not ahead of base, nothing to sync",
			"branch", cfg.Branch,
			"base", cfg.Base,
		)

		return nil
	}

	if cfg.DryRun {
		slog.Info(
			"dry run: skipping push and pull request",
			"commits", len(commits),
			"branch", cfg.Branch,
		)

		return nil
	}

	vars := templateVars(cfg, base, commits)

	// Step 3: push the branch.
	headSHA, err := push(ctx, cfg, head, commits, vars)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"pushed branch",
		"repo", head.String(),
		"branch", cfg.Branch,
		"head", headSHA,
	)

	// Step 4: reconcile the pull request.
	pr := cfg.PR.Expanded(vars)
	if pr.Title == "" {
		pr.Title = defaultTitle(cfg)
	}

	reconciled, err := cfg.Host.EnsurePullRequest(
		ctx, base, head, pr.Spec(cfg.Branch, cfg.Base),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"pull request reconciled",
		"number", reconciled.Number,
		"url", reconciled.URL,
		"created", reconciled.Created,
	)

	// Step 5: write the summary.
	if cfg.ResultFile != "" {
		if err := writeResult(
			cfg.ResultFile, reconciled, headSHA,
		); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	return nil
}

// resolveRepos determines the base and head repository
// refs. An empty base repository falls back to the head
// repository's fork parent.
func resolveRepos(
	ctx context.Context,
	cfg Config,
) (githost.RepositoryRef, githost.RepositoryRef, error) {
	if cfg.Repository == "" && cfg.HeadRepository == "" {
		return githost.RepositoryRef{},
			githost.RepositoryRef{},
			errors.New("a repository is required")
	}

	base := githost.ParseRepoSpec(cfg.Repository)
	head := githost.ParseRepoSpec(cfg.HeadRepository)

	if cfg.HeadRepository == "" {
		head = base
	}

	if cfg.Repository == "" {
		parent, err := cfg.Host.ForkParent(ctx, head)
		if err != nil {
			return githost.RepositoryRef{},
				githost.RepositoryRef{},
				fmt.Errorf(
					"resolving fork parent: %w", err,
				)
		}

		if parent == "" {
			return githost.RepositoryRef{},
				githost.RepositoryRef{},
				fmt.Errorf(
					"%s is not a fork and no base "+
						"repository was given",
					head,
				)
		}

		base = githost.ParseRepoSpec(parent)

		slog.Info(
			"resolved base from fork parent",
			"base", base.String(),
			"head", head.String(),
		)
	}

	return base, head, nil
}

// push sends the collected commits to the head
// repository, replaying each commit or flattening them
// into one signed commit.
func push(
	ctx context.Context,
	cfg Config,
	head githost.RepositoryRef,
	commits []githost.Commit,
	vars map[string]string,
) (string, error) {
	if !cfg.Signed {
		return cfg.Host.PushCommits(
			ctx, head, cfg.Branch, commits,
		)
	}

	set, err := cfg.Source.ChangeSet(commits)
	if err != nil {
		return "", err
	}

	return cfg.Host.PushChanges(
		ctx,
		head,
		cfg.Branch,
		cfg.Base,
		flattenedMessage(cfg, vars),
		set,
	)
}

// flattenedMessage picks the message of the single
// signed commit: the explicit override, or the pull
// request title, or the generated default.
func flattenedMessage(
	cfg Config,
	vars map[string]string,
) commitmsg.Message {
	if cfg.CommitMessage != "" {
		return commitmsg.Parse(
			config.Expand(cfg.CommitMessage, vars),
		)
	}

	if cfg.PR.Title != "" {
		return commitmsg.Parse(
			config.Expand(cfg.PR.Title, vars),
		)
	}

	return commitmsg.Parse(defaultTitle(cfg))
}

// templateVars is the substitution context for title,
// body, and commit message templates. GIT_COMMIT is the
// local head of the synced range.
func templateVars(
	cfg Config,
	base githost.RepositoryRef,
	commits []githost.Commit,
) map[string]string {
	return map[string]string{
		"GIT_BRANCH": cfg.Branch,
		"GIT_BASE":   cfg.Base,
		"GIT_COMMIT": commits[len(commits)-1].SHA,
		"REPOSITORY": base.String(),
	}
}

// defaultTitle labels a pull request whose metadata
// carries no title of its own.
func defaultTitle(cfg Config) string {
	return fmt.Sprintf(
		"Sync %s into %s", cfg.Branch, cfg.Base,
	)
}

// writeResult writes the JSON run summary.
func writeResult(
	path string,
	pr githost.PullRequest,
	headSHA string,
) error {
	out, err := json.MarshalIndent(
		Result{
			Number:  pr.Number,
			URL:     pr.URL,
			Created: pr.Created,
			HeadSHA: headSHA,
		},
		"", "  ",
	)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	//nolint:gosec // result file is not sensitive
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing result file: %w", err)
	}

	slog.Info("wrote result file", "path", path)

	return nil
}
