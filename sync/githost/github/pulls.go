package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/prsync/sync/githost"
)

// EnsurePullRequest creates the pull request from
// head's branch into base, or updates the one that
// already exists for that head/base pair, then applies
// the requested metadata. Metadata steps already
// applied stay applied when a later one fails; nothing
// is rolled back.
func (c *Client) EnsurePullRequest(
	ctx context.Context,
	base githost.RepositoryRef,
	head githost.RepositoryRef,
	pr githost.PullRequestSpec,
) (githost.PullRequest, error) {
	const errCtx = "ensuring pull request"

	headLabel := head.Owner + ":" + pr.Branch

	created, err := c.createPullRequest(
		ctx, base, headLabel, pr,
	)

	switch {
	case err == nil:

	case isPullRequestExists(err):
		slog.Info(
			"pull request already exists, updating",
			"head", headLabel,
			"base", pr.Base,
		)

		created, err = c.updateExisting(
			ctx, base, headLabel, pr,
		)
		if err != nil {
			return githost.PullRequest{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

	default:
		return githost.PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if err := c.applyMetadata(
		ctx, base, created.Number, pr,
	); err != nil {
		return githost.PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return created, nil
}

// createPullRequest opens a new pull request for
// headLabel into pr.Base.
func (c *Client) createPullRequest(
	ctx context.Context,
	base githost.RepositoryRef,
	headLabel string,
	pr githost.PullRequestSpec,
) (githost.PullRequest, error) {
	const errCtx = "creating pull request"

	slog.Info(
		"creating pull request",
		"head", headLabel,
		"base", pr.Base,
	)

	newPR := &gh.NewPullRequest{
		Title: &pr.Title,
		Head:  &headLabel,
		Base:  &pr.Base,
		Body:  &pr.Body,
		Draft: &pr.Draft,
	}

	created, _, err := c.rest.PullRequests.Create(
		ctx, base.Owner, base.Name, newPR,
	)
	if err != nil {
		return githost.PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	slog.Info(
		"created pull request",
		"number", created.GetNumber(),
		"url", created.GetHTMLURL(),
	)

	return githost.PullRequest{
		Number:  created.GetNumber(),
		URL:     created.GetHTMLURL(),
		Created: true,
	}, nil
}

// updateExisting finds the open pull request for the
// head/base pair (the host guarantees at most one) and
// refreshes its title and body.
func (c *Client) updateExisting(
	ctx context.Context,
	base githost.RepositoryRef,
	headLabel string,
	pr githost.PullRequestSpec,
) (githost.PullRequest, error) {
	const errCtx = "updating existing pull request"

	open, _, err := c.rest.PullRequests.List(
		ctx, base.Owner, base.Name,
		&gh.PullRequestListOptions{
			State: "open",
			Head:  headLabel,
			Base:  pr.Base,
		},
	)
	if err != nil {
		return githost.PullRequest{}, fmt.Errorf(
			"%s: list: %w", errCtx, err,
		)
	}

	if len(open) == 0 {
		return githost.PullRequest{}, fmt.Errorf(
			"%s: no open pull request for %s",
			errCtx, headLabel,
		)
	}

	number := open[0].GetNumber()

	updated, _, err := c.rest.PullRequests.Edit(
		ctx, base.Owner, base.Name, number,
		&gh.PullRequest{
			Title: &pr.Title,
			Body:  &pr.Body,
		},
	)
	if err != nil {
		return githost.PullRequest{}, fmt.Errorf(
			"%s %d: %w", errCtx, number, err,
		)
	}

	slog.Info(
		"updated pull request",
		"number", number,
		"url", updated.GetHTMLURL(),
	)

	return githost.PullRequest{
		Number:  number,
		URL:     updated.GetHTMLURL(),
		Created: false,
	}, nil
}

// applyMetadata applies milestone, labels, assignees,
// and reviewer requests in that order, one call each.
func (c *Client) applyMetadata(
	ctx context.Context,
	repo githost.RepositoryRef,
	number int,
	pr githost.PullRequestSpec,
) error {
	const errCtx = "applying pull request metadata"

	if pr.Milestone > 0 {
		slog.Info(
			"setting milestone",
			"number", number,
			"milestone", pr.Milestone,
		)

		_, _, err := c.rest.Issues.Edit(
			ctx, repo.Owner, repo.Name, number,
			&gh.IssueRequest{
				Milestone: &pr.Milestone,
			},
		)
		if err != nil {
			return fmt.Errorf(
				"%s: milestone: %w", errCtx, err,
			)
		}
	}

	if len(pr.Labels) > 0 {
		slog.Info(
			"adding labels",
			"number", number,
			"labels", pr.Labels,
		)

		_, _, err := c.rest.Issues.AddLabelsToIssue(
			ctx, repo.Owner, repo.Name, number,
			pr.Labels,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: labels: %w", errCtx, err,
			)
		}
	}

	if len(pr.Assignees) > 0 {
		slog.Info(
			"adding assignees",
			"number", number,
			"assignees", pr.Assignees,
		)

		_, _, err := c.rest.Issues.AddAssignees(
			ctx, repo.Owner, repo.Name, number,
			pr.Assignees,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: assignees: %w", errCtx, err,
			)
		}
	}

	if len(pr.Reviewers) == 0 &&
		len(pr.TeamReviewers) == 0 {
		return nil
	}

	teams := stripTeamPrefix(pr.TeamReviewers)

	slog.Info(
		"requesting reviewers",
		"number", number,
		"users", pr.Reviewers,
		"teams", teams,
	)

	_, _, err := c.rest.PullRequests.RequestReviewers(
		ctx, repo.Owner, repo.Name, number,
		gh.ReviewersRequest{
			Reviewers:     pr.Reviewers,
			TeamReviewers: teams,
		},
	)
	if err != nil {
		if isTokenScopeError(err) {
			slog.Error(
				"requesting team reviewers needs a "+
					"token with read:org scope",
				"error", err,
			)
		}

		return fmt.Errorf(
			"%s: reviewers: %w", errCtx, err,
		)
	}

	return nil
}

// ForkParent returns the full name of the repository
// repo was forked from, or "" when it is not a fork.
func (c *Client) ForkParent(
	ctx context.Context,
	repo githost.RepositoryRef,
) (string, error) {
	const errCtx = "reading repository parent"

	r, _, err := c.rest.Repositories.Get(
		ctx, repo.Owner, repo.Name,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, repo, err,
		)
	}

	return r.GetParent().GetFullName(), nil
}

// stripTeamPrefix strips an organisation prefix from
// team names: "org/team" becomes "team". The reviewer
// endpoint expects bare team slugs.
func stripTeamPrefix(teams []string) []string {
	if len(teams) == 0 {
		return nil
	}

	out := make([]string, len(teams))

	for i, team := range teams {
		if idx := strings.LastIndexByte(
			team, '/',
		); idx >= 0 {
			team = team[idx+1:]
		}

		out[i] = team
	}

	return out
}

// isPullRequestExists reports whether err is the host's
// rejection of a duplicate pull request: HTTP 422 whose
// error detail says one already exists for the
// head/base pair. The response carries no structured
// code, so the detail message is matched.
func isPullRequestExists(err error) bool {
	var ghErr *gh.ErrorResponse
	if !errors.As(err, &ghErr) {
		return false
	}

	if ghErr.Response == nil ||
		ghErr.Response.StatusCode !=
			http.StatusUnprocessableEntity {
		return false
	}

	for _, e := range ghErr.Errors {
		if strings.Contains(
			e.Message, "already exists",
		) {
			return true
		}
	}

	return strings.Contains(
		ghErr.Message, "already exists",
	)
}

// isTokenScopeError recognises the validation failure
// GitHub returns when team reviewers are requested with
// a token lacking read:org: the team node id cannot be
// resolved. Message match only; the response carries no
// structured code for it.
func isTokenScopeError(err error) bool {
	var ghErr *gh.ErrorResponse
	if !errors.As(err, &ghErr) {
		return false
	}

	const marker = "Could not resolve to a node"

	if strings.Contains(ghErr.Message, marker) {
		return true
	}

	for _, e := range ghErr.Errors {
		if strings.Contains(e.Message, marker) {
			return true
		}
	}

	return false
}
