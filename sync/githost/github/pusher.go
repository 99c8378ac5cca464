package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byte4ever/prsync/sync/githost"
)

// Pusher replays local commits one by one through the
// REST object API.
//
// Pattern: Strategy -- the sequential alternative to
// AtomicPusher; resulting commits are unsigned.
type Pusher struct {
	client  *Client
	builder *ObjectBuilder
}

// NewPusher returns a Pusher reading file content from
// source.
func NewPusher(
	client *Client,
	source githost.ContentSource,
) *Pusher {
	return &Pusher{
		client:  client,
		builder: NewObjectBuilder(client, source),
	}
}

// Push recreates commits oldest-first on repo and
// points heads/<branch> at the final result. Parent and
// base tree thread through the loop: each commit is
// built on the hash and tree minted for its
// predecessor, seeded by the first commit's recorded
// parent and base tree. The branch ref moves exactly
// once, after the last commit exists; intermediate
// hashes never become the branch head. A mid-sequence
// failure aborts the rest and leaves the objects
// created so far unreferenced on the host.
func (p *Pusher) Push(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
	commits []githost.Commit,
) (string, error) {
	const errCtx = "pushing commits"

	if len(commits) == 0 {
		return "", fmt.Errorf(
			"%s: no commits to push", errCtx,
		)
	}

	slog.Info(
		"pushing commits sequentially",
		"repo", repo,
		"branch", branch,
		"count", len(commits),
	)

	parent := ""
	if len(commits[0].Parents) > 0 {
		parent = commits[0].Parents[0]
	}

	baseTree := commits[0].BaseTree

	for _, c := range commits {
		tree := baseTree

		if len(c.Changes) > 0 {
			var err error

			tree, err = p.builder.BuildTree(
				ctx, repo, baseTree, c,
			)
			if err != nil {
				return "", fmt.Errorf(
					"%s: commit %s: %w",
					errCtx, c.SHA, err,
				)
			}
		}

		var parents []string
		if parent != "" {
			parents = []string{parent}
		}

		sha, err := p.builder.BuildCommit(
			ctx, repo, parents, tree, c.Message,
		)
		if err != nil {
			return "", fmt.Errorf(
				"%s: commit %s: %w",
				errCtx, c.SHA, err,
			)
		}

		parent = sha
		baseTree = tree
	}

	if err := p.client.EnsureBranch(
		ctx, repo, branch, parent,
	); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return parent, nil
}
