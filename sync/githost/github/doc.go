// Package github implements the githost.Host strategy for GitHub (cloud
// or enterprise).
//
// Two push paths exist. Pusher replays every local commit through the REST
// git object API: blobs are uploaded concurrently per tree, trees apply
// differentially on top of the threaded base tree, commits chain through
// the threaded parent hash, and the branch ref moves once at the end.
// AtomicPusher pushes one flattened commit through the GraphQL
// createCommitOnBranch mutation with an expectedHeadOid precondition,
// creating the branch from its base first when needed; the host signs
// commits minted this way.
//
// Client.EnsurePullRequest reconciles a pull request idempotently and
// applies milestone, labels, assignees, and reviewers without rollback.
package github
