package github

import (
	"context"

	"github.com/byte4ever/prsync/sync/commitmsg"
	"github.com/byte4ever/prsync/sync/githost"
)

// Host bundles the GitHub push and pull request
// operations behind the githost.Host strategy
// interface.
type Host struct {
	client *Client
	pusher *Pusher
	atomic *AtomicPusher
}

// NewHost wires a Host from cfg and the content source
// used by the sequential push path.
func NewHost(
	cfg Config,
	source githost.ContentSource,
) (*Host, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}

	return &Host{
		client: client,
		pusher: NewPusher(client, source),
		atomic: NewAtomicPusher(client),
	}, nil
}

// PushCommits implements githost.Host.
func (h *Host) PushCommits(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
	commits []githost.Commit,
) (string, error) {
	return h.pusher.Push(ctx, repo, branch, commits)
}

// PushChanges implements githost.Host.
func (h *Host) PushChanges(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
	base string,
	msg commitmsg.Message,
	changes githost.ChangeSet,
) (string, error) {
	res, err := h.atomic.Push(
		ctx, repo, branch, base, msg, changes,
	)
	if err != nil {
		return "", err
	}

	return res.SHA, nil
}

// EnsurePullRequest implements githost.Host.
func (h *Host) EnsurePullRequest(
	ctx context.Context,
	base githost.RepositoryRef,
	head githost.RepositoryRef,
	pr githost.PullRequestSpec,
) (githost.PullRequest, error) {
	return h.client.EnsurePullRequest(
		ctx, base, head, pr,
	)
}

// ForkParent implements githost.Host.
func (h *Host) ForkParent(
	ctx context.Context,
	repo githost.RepositoryRef,
) (string, error) {
	return h.client.ForkParent(ctx, repo)
}
