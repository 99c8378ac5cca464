package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shurcooL/githubv4"

	"github.com/byte4ever/prsync/sync/commitmsg"
	"github.com/byte4ever/prsync/sync/githost"
)

// AtomicPusher pushes one commit per call through the
// GraphQL createCommitOnBranch mutation. Commits minted
// this way are signed by the host's web-flow key.
//
// Pattern: Strategy -- the atomic alternative to
// Pusher.
type AtomicPusher struct {
	client *Client
}

// NewAtomicPusher returns an AtomicPusher on client.
func NewAtomicPusher(client *Client) *AtomicPusher {
	return &AtomicPusher{client: client}
}

// AtomicResult is the outcome of a single-commit push.
type AtomicResult struct {
	// SHA of the new head commit.
	SHA string
	// Ref is the branch ref the commit landed on.
	Ref string
}

// Push creates one commit carrying changes on branch.
// When the branch does not exist it is first created at
// base's current head, and that head becomes the
// expected head of the commit mutation. A branch that
// moves between lookup and mutation is rejected by the
// host; the rejection surfaces as a
// githost.HeadMovedError and is never retried here.
// Payload size limits are the caller's concern.
func (a *AtomicPusher) Push(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
	base string,
	msg commitmsg.Message,
	changes githost.ChangeSet,
) (AtomicResult, error) {
	const errCtx = "pushing atomic commit"

	repoID, head, found, err := a.lookupBranch(
		ctx, repo, branch,
	)
	if err != nil {
		return AtomicResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if !found {
		head, err = a.createBranch(
			ctx, repo, repoID, branch, base,
		)
		if err != nil {
			return AtomicResult{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	res, err := a.createCommit(
		ctx, repo, branch, head, msg, changes,
	)
	if err != nil {
		if isExpectedHeadError(err) {
			return AtomicResult{}, fmt.Errorf(
				"%s: %w",
				errCtx,
				&githost.HeadMovedError{
					Branch:       branch,
					ExpectedHead: head,
					Err:          err,
				},
			)
		}

		return AtomicResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return res, nil
}

// lookupBranch returns the repository node id and the
// branch head in one query. The ref field comes back
// null for a missing branch, which surfaces here as
// found == false: absence is control flow, not an
// error.
func (a *AtomicPusher) lookupBranch(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
) (githubv4.ID, string, bool, error) {
	var q struct {
		Repository struct {
			ID  githubv4.ID
			Ref struct {
				Target struct {
					Oid githubv4.GitObjectID
				}
			} `graphql:"ref(qualifiedName: $ref)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]interface{}{
		"owner": githubv4.String(repo.Owner),
		"name":  githubv4.String(repo.Name),
		"ref": githubv4.String(
			"refs/heads/" + branch,
		),
	}

	if err := a.client.v4.Query(
		ctx, &q, vars,
	); err != nil {
		return nil, "", false, fmt.Errorf(
			"querying branch %s: %w", branch, err,
		)
	}

	head := string(q.Repository.Ref.Target.Oid)

	return q.Repository.ID, head, head != "", nil
}

// createBranch creates refs/heads/<branch> at base's
// current head and returns that head. A missing base is
// a real error: there is nothing to branch from.
func (a *AtomicPusher) createBranch(
	ctx context.Context,
	repo githost.RepositoryRef,
	repoID githubv4.ID,
	branch string,
	base string,
) (string, error) {
	const errCtx = "creating branch"

	var q struct {
		Repository struct {
			Ref struct {
				Target struct {
					Oid githubv4.GitObjectID
				}
			} `graphql:"ref(qualifiedName: $ref)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]interface{}{
		"owner": githubv4.String(repo.Owner),
		"name":  githubv4.String(repo.Name),
		"ref": githubv4.String(
			"refs/heads/" + base,
		),
	}

	if err := a.client.v4.Query(
		ctx, &q, vars,
	); err != nil {
		return "", fmt.Errorf(
			"%s: query base %s: %w",
			errCtx, base, err,
		)
	}

	baseOid := string(q.Repository.Ref.Target.Oid)
	if baseOid == "" {
		return "", fmt.Errorf(
			"%s: base ref %s not found",
			errCtx, base,
		)
	}

	slog.Info(
		"creating branch",
		"branch", branch,
		"base", base,
		"sha", baseOid,
	)

	var m struct {
		CreateRef struct {
			Ref struct {
				Name githubv4.String
			}
		} `graphql:"createRef(input: $input)"`
	}

	mutationID := githubv4.String(uuid.NewString())

	input := githubv4.CreateRefInput{
		RepositoryID: repoID,
		Name: githubv4.String(
			"refs/heads/" + branch,
		),
		Oid:              githubv4.GitObjectID(baseOid),
		ClientMutationID: &mutationID,
	}

	if err := a.client.v4.Mutate(
		ctx, &m, input, nil,
	); err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	slog.Info(
		"created branch",
		"ref", string(m.CreateRef.Ref.Name),
	)

	return baseOid, nil
}

// createCommit runs the createCommitOnBranch mutation
// with the flattened file changes and the expected head
// precondition.
func (a *AtomicPusher) createCommit(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
	expectedHead string,
	msg commitmsg.Message,
	changes githost.ChangeSet,
) (AtomicResult, error) {
	const errCtx = "creating commit on branch"

	slog.Info(
		"creating commit on branch",
		"branch", branch,
		"expected_head", expectedHead,
		"additions", len(changes.Additions),
		"deletions", len(changes.Deletions),
	)

	additions := make(
		[]githubv4.FileAddition,
		0, len(changes.Additions),
	)

	for _, add := range changes.Additions {
		additions = append(
			additions, githubv4.FileAddition{
				Path: githubv4.String(add.Path),
				Contents: githubv4.Base64String(
					base64.StdEncoding.
						EncodeToString(add.Content),
				),
			},
		)
	}

	deletions := make(
		[]githubv4.FileDeletion,
		0, len(changes.Deletions),
	)

	for _, del := range changes.Deletions {
		deletions = append(
			deletions, githubv4.FileDeletion{
				Path: githubv4.String(del.Path),
			},
		)
	}

	repoWithOwner := githubv4.String(repo.String())
	branchName := githubv4.String(branch)

	var body *githubv4.String

	if msg.Body != "" {
		b := githubv4.String(msg.Body)
		body = &b
	}

	mutationID := githubv4.String(uuid.NewString())

	input := githubv4.CreateCommitOnBranchInput{
		Branch: githubv4.CommittableBranch{
			RepositoryNameWithOwner: &repoWithOwner,
			BranchName:              &branchName,
		},
		Message: githubv4.CommitMessage{
			Headline: githubv4.String(msg.Subject),
			Body:     body,
		},
		ExpectedHeadOid: githubv4.GitObjectID(
			expectedHead,
		),
		FileChanges: &githubv4.FileChanges{
			Additions: &additions,
			Deletions: &deletions,
		},
		ClientMutationID: &mutationID,
	}

	var m struct {
		CreateCommitOnBranch struct {
			Commit struct {
				Oid githubv4.GitObjectID
			}
			Ref struct {
				Name githubv4.String
			}
		} `graphql:"createCommitOnBranch(input: $input)"`
	}

	if err := a.client.v4.Mutate(
		ctx, &m, input, nil,
	); err != nil {
		return AtomicResult{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	res := AtomicResult{
		SHA: string(
			m.CreateCommitOnBranch.Commit.Oid,
		),
		Ref: string(m.CreateCommitOnBranch.Ref.Name),
	}

	slog.Info(
		"created signed commit",
		"sha", res.SHA,
		"ref", res.Ref,
	)

	return res, nil
}

// isExpectedHeadError recognises the host's
// optimistic-concurrency rejection. The GraphQL
// transport exposes it only as message text, so this is
// a deliberate match on the documented wording, kept in
// one place.
func isExpectedHeadError(err error) bool {
	return err != nil && strings.Contains(
		err.Error(), "Expected branch to point to",
	)
}
