package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/prsync/sync/githost"
)

// EnsurePullRequest creates the merge request from
// head's branch into base, or updates the open one that
// already exists for the branch pair (HTTP 409 on
// creation), then applies the requested metadata in a
// single update call. Merge requests are numbered by the
// target project, so lookups and updates go through base
// even when head is a fork.
func (h *Host) EnsurePullRequest(
	ctx context.Context,
	base githost.RepositoryRef,
	head githost.RepositoryRef,
	pr githost.PullRequestSpec,
) (githost.PullRequest, error) {
	const errCtx = "ensuring merge request"

	created, resp, err := h.createMergeRequest(
		ctx, base, head, pr,
	)

	switch {
	case err == nil:

	case statusIs(resp, http.StatusConflict):
		// HTTP 409: a merge request already exists for
		// this source branch.
		slog.Info(
			"merge request already exists, updating",
			"source", pr.Branch,
			"target", pr.Base,
		)

		created, err = h.updateExisting(ctx, base, pr)
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

	if err := h.applyMetadata(
		ctx, base, created.Number, pr,
	); err != nil {
		return githost.PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return created, nil
}

// createMergeRequest opens a new merge request. In a
// fork flow the request is created on the head project
// and targets base by project id.
func (h *Host) createMergeRequest(
	ctx context.Context,
	base githost.RepositoryRef,
	head githost.RepositoryRef,
	pr githost.PullRequestSpec,
) (githost.PullRequest, *gl.Response, error) {
	const errCtx = "creating merge request"

	title := mrTitle(pr)

	opts := gl.CreateMergeRequestOptions{
		Title:        &title,
		Description:  &pr.Body,
		SourceBranch: &pr.Branch,
		TargetBranch: &pr.Base,
	}

	if head != base {
		proj, _, err := h.client.Projects.GetProject(
			base.String(), nil, gl.WithContext(ctx),
		)
		if err != nil {
			return githost.PullRequest{}, nil,
				fmt.Errorf(
					"%s: resolving target %s: %w",
					errCtx, base, err,
				)
		}

		opts.TargetProjectID = &proj.ID
	}

	slog.Info(
		"creating merge request",
		"source", pr.Branch,
		"target", pr.Base,
	)

	created, resp, err := h.client.MergeRequests.CreateMergeRequest(
		head.String(), &opts, gl.WithContext(ctx),
	)
	if err != nil {
		return githost.PullRequest{}, resp, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	slog.Info(
		"created merge request",
		"iid", created.IID,
		"url", created.WebURL,
	)

	return githost.PullRequest{
		Number:  created.IID,
		URL:     created.WebURL,
		Created: true,
	}, resp, nil
}

// updateExisting finds the open merge request for the
// branch pair (the host rejects duplicates, so there is
// at most one) and refreshes its title and description.
func (h *Host) updateExisting(
	ctx context.Context,
	base githost.RepositoryRef,
	pr githost.PullRequestSpec,
) (githost.PullRequest, error) {
	const errCtx = "updating existing merge request"

	open, _, err := h.client.MergeRequests.ListProjectMergeRequests(
		base.String(),
		&gl.ListProjectMergeRequestsOptions{
			State:        gl.Ptr("opened"),
			SourceBranch: &pr.Branch,
			TargetBranch: &pr.Base,
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return githost.PullRequest{}, fmt.Errorf(
			"%s: list: %w", errCtx, err,
		)
	}

	if len(open) == 0 {
		return githost.PullRequest{}, fmt.Errorf(
			"%s: no open merge request for %s",
			errCtx, pr.Branch,
		)
	}

	iid := open[0].IID
	title := mrTitle(pr)

	updated, _, err := h.client.MergeRequests.UpdateMergeRequest(
		base.String(), iid,
		&gl.UpdateMergeRequestOptions{
			Title:       &title,
			Description: &pr.Body,
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return githost.PullRequest{}, fmt.Errorf(
			"%s %d: %w", errCtx, iid, err,
		)
	}

	slog.Info(
		"updated merge request",
		"iid", iid,
		"url", updated.WebURL,
	)

	return githost.PullRequest{
		Number:  iid,
		URL:     updated.WebURL,
		Created: false,
	}, nil
}

// applyMetadata pushes milestone, labels, assignees, and
// reviewers in one update; the merge request resource
// takes them all directly. Team reviewers have no GitLab
// analog and are skipped with a warning.
func (h *Host) applyMetadata(
	ctx context.Context,
	base githost.RepositoryRef,
	iid int,
	pr githost.PullRequestSpec,
) error {
	const errCtx = "applying merge request metadata"

	var (
		opts  gl.UpdateMergeRequestOptions
		dirty bool
	)

	if pr.Milestone > 0 {
		opts.MilestoneID = &pr.Milestone
		dirty = true
	}

	if len(pr.Labels) > 0 {
		labels := gl.LabelOptions(pr.Labels)
		opts.Labels = &labels
		dirty = true
	}

	if len(pr.Assignees) > 0 {
		ids, err := h.userIDs(ctx, pr.Assignees)
		if err != nil {
			return fmt.Errorf(
				"%s: assignees: %w", errCtx, err,
			)
		}

		opts.AssigneeIDs = &ids
		dirty = true
	}

	if len(pr.Reviewers) > 0 {
		ids, err := h.userIDs(ctx, pr.Reviewers)
		if err != nil {
			return fmt.Errorf(
				"%s: reviewers: %w", errCtx, err,
			)
		}

		opts.ReviewerIDs = &ids
		dirty = true
	}

	if len(pr.TeamReviewers) > 0 {
		slog.Warn(
			"team reviewers are not supported on "+
				"gitlab, skipping",
			"teams", pr.TeamReviewers,
		)
	}

	if !dirty {
		return nil
	}

	slog.Info(
		"applying merge request metadata",
		"iid", iid,
	)

	if _, _, err := h.client.MergeRequests.UpdateMergeRequest(
		base.String(), iid, &opts,
		gl.WithContext(ctx),
	); err != nil {
		return fmt.Errorf(
			"%s %d: %w", errCtx, iid, err,
		)
	}

	return nil
}

// userIDs resolves usernames to user ids; the merge
// request endpoints take ids only.
func (h *Host) userIDs(
	ctx context.Context,
	usernames []string,
) ([]int, error) {
	ids := make([]int, 0, len(usernames))

	for _, name := range usernames {
		users, _, err := h.client.Users.ListUsers(
			&gl.ListUsersOptions{
				Username: gl.Ptr(name),
			},
			gl.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"looking up user %s: %w", name, err,
			)
		}

		if len(users) == 0 {
			return nil, fmt.Errorf(
				"user %s not found", name,
			)
		}

		ids = append(ids, users[0].ID)
	}

	return ids, nil
}

// ForkParent returns the path of the project repo was
// forked from, or "" when it is not a fork.
func (h *Host) ForkParent(
	ctx context.Context,
	repo githost.RepositoryRef,
) (string, error) {
	const errCtx = "reading project fork origin"

	proj, _, err := h.client.Projects.GetProject(
		repo.String(), nil, gl.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, repo, err,
		)
	}

	if proj.ForkedFromProject == nil {
		return "", nil
	}

	return proj.ForkedFromProject.PathWithNamespace, nil
}

// mrTitle renders the merge request title; draft state
// travels in the title prefix on GitLab.
func mrTitle(pr githost.PullRequestSpec) string {
	if pr.Draft &&
		!strings.HasPrefix(pr.Title, "Draft:") {
		return "Draft: " + pr.Title
	}

	return pr.Title
}
