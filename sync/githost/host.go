package githost

import (
	"context"

	"github.com/byte4ever/prsync/sync/commitmsg"
)

// Pattern: Strategy -- swap git platform without
// changing the synchronization logic.

// PullRequestSpec describes the desired state of a pull
// request. Optional metadata is explicit here rather
// than a dynamic parameter bag: zero values mean "not
// requested".
type PullRequestSpec struct {
	// Title and Body of the pull request.
	Title string
	Body  string
	// Branch is the head branch name; Base is the
	// branch the pull request targets.
	Branch string
	Base   string
	// Draft opens the pull request as a draft.
	Draft bool
	// Milestone is applied when greater than zero.
	Milestone int
	// Labels and Assignees are applied when non-empty.
	Labels    []string
	Assignees []string
	// Reviewers are user logins; TeamReviewers are
	// team names, submitted with any organisation
	// prefix stripped.
	Reviewers     []string
	TeamReviewers []string
}

// PullRequest is the reconciled pull request. Created
// distinguishes a freshly opened pull request from an
// updated pre-existing one.
type PullRequest struct {
	Number  int
	URL     string
	Created bool
}

// Host synchronizes local history to a remote git
// hosting platform and reconciles pull requests there.
type Host interface {
	// PushCommits replays commits oldest-first onto
	// branch and returns the final head hash. The
	// branch pointer moves only after every commit
	// exists; a mid-sequence failure aborts the rest
	// and may leave unreferenced objects behind.
	PushCommits(
		ctx context.Context,
		repo RepositoryRef,
		branch string,
		commits []Commit,
	) (string, error)

	// PushChanges creates a single commit carrying the
	// flattened change set on branch, creating the
	// branch from base when it does not exist yet, and
	// returns the new head hash. Hosts that support a
	// head precondition reject concurrent branch moves
	// with a HeadMovedError.
	PushChanges(
		ctx context.Context,
		repo RepositoryRef,
		branch string,
		base string,
		msg commitmsg.Message,
		changes ChangeSet,
	) (string, error)

	// EnsurePullRequest creates the pull request from
	// head's branch into base, or updates the one that
	// already exists for that head/base pair, then
	// applies the requested metadata.
	EnsurePullRequest(
		ctx context.Context,
		base RepositoryRef,
		head RepositoryRef,
		pr PullRequestSpec,
	) (PullRequest, error)

	// ForkParent returns the full name of the
	// repository this one was forked from, or "" when
	// it is not a fork.
	ForkParent(
		ctx context.Context,
		repo RepositoryRef,
	) (string, error)
}
