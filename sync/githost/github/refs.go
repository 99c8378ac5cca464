package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/prsync/sync/githost"
)

// branchSHA looks up the current head of branch. The
// result is three-state: found with a hash, cleanly
// absent, or a real error. A missing ref (HTTP 404) is
// control flow here, never conflated with transport
// failures.
func (c *Client) branchSHA(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
) (string, bool, error) {
	const errCtx = "reading branch ref"

	ref, resp, err := c.rest.Git.GetRef(
		ctx, repo.Owner, repo.Name, "heads/"+branch,
	)
	if err != nil {
		if resp != nil &&
			resp.StatusCode == http.StatusNotFound {
			return "", false, nil
		}

		return "", false, fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	return ref.GetObject().GetSHA(), true, nil
}

// EnsureBranch points heads/<branch> at sha: a
// fast-forward update when the ref exists, a create
// otherwise. Lookup and mutation are separate calls, so
// losing a creation race surfaces as the host's error.
func (c *Client) EnsureBranch(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
	sha string,
) error {
	const errCtx = "ensuring branch ref"

	_, found, err := c.branchSHA(ctx, repo, branch)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	refName := "refs/heads/" + branch
	ref := &gh.Reference{
		Ref:    &refName,
		Object: &gh.GitObject{SHA: &sha},
	}

	if found {
		slog.Info(
			"updating branch ref",
			"branch", branch,
			"sha", sha,
		)

		_, _, err = c.rest.Git.UpdateRef(
			ctx, repo.Owner, repo.Name, ref, false,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: update %s: %w",
				errCtx, branch, err,
			)
		}

		slog.Info("updated branch ref", "branch", branch)

		return nil
	}

	slog.Info(
		"creating branch ref",
		"branch", branch,
		"sha", sha,
	)

	_, _, err = c.rest.Git.CreateRef(
		ctx, repo.Owner, repo.Name, ref,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: create %s: %w", errCtx, branch, err,
		)
	}

	slog.Info("created branch ref", "branch", branch)

	return nil
}
