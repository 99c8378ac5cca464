// Command prsync pushes the commits a local branch is
// ahead of its base to a git hosting platform and
// creates or updates the matching pull request.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/byte4ever/prsync/sync/config"
	"github.com/byte4ever/prsync/sync/githost"
	"github.com/byte4ever/prsync/sync/githost/github"
	"github.com/byte4ever/prsync/sync/githost/gitlab"
	"github.com/byte4ever/prsync/sync/localgit"
	"github.com/byte4ever/prsync/sync/syncer"
)

// sliceFlag implements flag.Value for multi-value
// string flags (repeated --flag=val usage).
type sliceFlag []string

// String returns the flag value as a comma-separated
// string representation.
func (s *sliceFlag) String() string {
	if s == nil {
		return ""
	}

	return strings.Join(*s, ",")
}

// Set appends a value to the slice.
func (s *sliceFlag) Set(val string) error {
	*s = append(*s, val)

	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running prsync"

	// Repository flags.
	repository := flag.String(
		"repository", "",
		"Base repository as owner/name (defaults to "+
			"the head repository's fork parent)",
	)
	headRepository := flag.String(
		"head_repository", "",
		"Repository the branch is pushed to, as "+
			"owner/name (defaults to -repository)",
	)
	branch := flag.String(
		"branch", "",
		"Head branch to push and open the pull "+
			"request from",
	)
	base := flag.String(
		"base", "main",
		"Branch the pull request targets",
	)
	repoDir := flag.String(
		"repo_dir", ".",
		"Local clone to read commits from",
	)

	// Push flags.
	signed := flag.Bool(
		"signed", false,
		"Push one flattened commit through the host's "+
			"signing endpoint",
	)
	commitMessage := flag.String(
		"commit_message", "",
		"Message of the flattened commit (signed "+
			"path only)",
	)

	// Pull request flags.
	prFile := flag.String(
		"pr_file", "",
		"YAML pull request metadata file",
	)
	prTitle := flag.String(
		"pr_title", "",
		"Pull request title (overrides the metadata "+
			"file)",
	)
	prBody := flag.String(
		"pr_body", "",
		"Pull request body (overrides the metadata "+
			"file)",
	)
	draft := flag.Bool(
		"draft", false,
		"Open the pull request as a draft",
	)
	milestone := flag.Int(
		"milestone", 0,
		"Milestone to apply (overrides the metadata "+
			"file)",
	)

	var labels sliceFlag

	flag.Var(
		&labels,
		"label",
		"Label to apply (repeatable, overrides the "+
			"metadata file)",
	)

	var assignees sliceFlag

	flag.Var(
		&assignees,
		"assignee",
		"Assignee login (repeatable, overrides the "+
			"metadata file)",
	)

	var reviewers sliceFlag

	flag.Var(
		&reviewers,
		"reviewer",
		"Reviewer login (repeatable, overrides the "+
			"metadata file)",
	)

	var teamReviewers sliceFlag

	flag.Var(
		&teamReviewers,
		"team_reviewer",
		"Team reviewer (repeatable, overrides the "+
			"metadata file)",
	)

	// Run flags.
	dryRun := flag.Bool(
		"dry_run", false,
		"Collect commits but skip push and pull request",
	)
	resultFile := flag.String(
		"result_file", "",
		"Path for the JSON run summary",
	)

	// Git host selection.
	gitServer := flag.String(
		"git_server", "github",
		"Git hosting platform: github or gitlab",
	)

	// GitHub-specific flags.
	ghToken := flag.String(
		"github_access_token", "",
		"GitHub access token (defaults to "+
			"$GITHUB_TOKEN)",
	)
	ghEnterprise := flag.String(
		"github_enterprise_host", "",
		"GitHub Enterprise hostname",
	)

	// GitLab-specific flags.
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	glToken := flag.String(
		"gitlab_access_token", "",
		"GitLab access token (defaults to "+
			"$GITLAB_TOKEN)",
	)

	flag.Parse()

	source, err := localgit.Open(*repoDir)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	host, err := newHost(
		*gitServer,
		hostFlags{
			ghToken:      *ghToken,
			ghEnterprise: *ghEnterprise,
			glHost:       *glHost,
			glToken:      *glToken,
		},
		source,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: create host: %w", errCtx, err,
		)
	}

	pr, err := loadPR(*prFile, prOverrides{
		title:         *prTitle,
		body:          *prBody,
		draft:         *draft,
		milestone:     *milestone,
		labels:        labels,
		assignees:     assignees,
		reviewers:     reviewers,
		teamReviewers: teamReviewers,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg := syncer.Config{
		Repository:     *repository,
		HeadRepository: *headRepository,
		Branch:         *branch,
		Base:           *base,
		Signed:         *signed,
		DryRun:         *dryRun,
		CommitMessage:  *commitMessage,
		PR:             pr,
		ResultFile:     *resultFile,
		Host:           host,
		Source:         source,
	}

	if err := syncer.Run(
		context.Background(), cfg,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// prOverrides bundles the CLI-level pull request
// settings that win over the metadata file.
type prOverrides struct {
	title         string
	body          string
	draft         bool
	milestone     int
	labels        []string
	assignees     []string
	reviewers     []string
	teamReviewers []string
}

// loadPR reads the metadata file when given and applies
// the CLI overrides on top.
func loadPR(
	path string,
	o prOverrides,
) (config.PullRequest, error) {
	var pr config.PullRequest

	if path != "" {
		var err error

		pr, err = config.LoadPullRequest(path)
		if err != nil {
			return config.PullRequest{}, err
		}
	}

	if o.title != "" {
		pr.Title = o.title
	}

	if o.body != "" {
		pr.Body = o.body
	}

	if o.draft {
		pr.Draft = true
	}

	if o.milestone > 0 {
		pr.Milestone = o.milestone
	}

	if len(o.labels) > 0 {
		pr.Labels = o.labels
	}

	if len(o.assignees) > 0 {
		pr.Assignees = o.assignees
	}

	if len(o.reviewers) > 0 {
		pr.Reviewers = o.reviewers
	}

	if len(o.teamReviewers) > 0 {
		pr.TeamReviewers = o.teamReviewers
	}

	return pr, nil
}

// hostFlags bundles host-specific flag values to keep
// newHost under the 4-argument limit.
type hostFlags struct {
	ghToken      string
	ghEnterprise string
	glHost       string
	glToken      string
}

// newHost creates a githost.Host for the named platform.
// Pattern: Factory -- selects platform implementation
// at runtime.
func newHost(
	server string,
	hf hostFlags,
	source githost.ContentSource,
) (githost.Host, error) {
	const errCtx = "creating git host"

	switch server {
	case "github":
		token := hf.ghToken
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}

		h, err := github.NewHost(
			github.Config{
				AccessToken:    token,
				EnterpriseHost: hf.ghEnterprise,
			},
			source,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return h, nil

	case "gitlab":
		token := hf.glToken
		if token == "" {
			token = os.Getenv("GITLAB_TOKEN")
		}

		h, err := gitlab.NewHost(
			gitlab.Config{
				Host:        hf.glHost,
				AccessToken: token,
			},
			source,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return h, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown server %q", errCtx, server,
		)
	}
}
