package gitlab

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/prsync/sync/commitmsg"
	"github.com/byte4ever/prsync/sync/githost"
)

// PushCommits replays commits oldest-first through the
// commits API. Each call lands one commit on branch and
// moves the branch as part of the call, so there is no
// separate ref update here and a mid-sequence failure
// leaves the branch on the last landed commit rather
// than untouched. A missing branch is created by the
// first commit, started at that commit's recorded
// parent.
func (h *Host) PushCommits(
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

	_, found, err := h.branchHead(ctx, repo, branch)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"pushing commits sequentially",
		"repo", repo,
		"branch", branch,
		"count", len(commits),
	)

	head := ""

	for i, c := range commits {
		actions, err := h.commitActions(c)
		if err != nil {
			return "", fmt.Errorf(
				"%s: commit %s: %w", errCtx, c.SHA, err,
			)
		}

		message := c.Message.String()

		opts := gl.CreateCommitOptions{
			Branch:        &branch,
			CommitMessage: &message,
			Actions:       actions,
		}

		if i == 0 && !found && len(c.Parents) > 0 {
			opts.StartSHA = &c.Parents[0]
		}

		created, _, err := h.client.Commits.CreateCommit(
			repo.String(), &opts, gl.WithContext(ctx),
		)
		if err != nil {
			return "", fmt.Errorf(
				"%s: commit %s: %w", errCtx, c.SHA, err,
			)
		}

		slog.Info("created commit", "sha", created.ID)

		head = created.ID
	}

	return head, nil
}

// PushChanges lands the flattened change set as one
// commit on branch. GitLab exposes no expected-head
// precondition, so unlike the low-level object flow this
// push carries no optimistic concurrency guard. A
// missing branch is started from base by the same call.
// Each addition is probed first: the API rejects a
// create on an existing path and an update on a missing
// one.
func (h *Host) PushChanges(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
	base string,
	msg commitmsg.Message,
	changes githost.ChangeSet,
) (string, error) {
	const errCtx = "pushing change set"

	_, found, err := h.branchHead(ctx, repo, branch)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	ref := branch
	if !found {
		ref = base
	}

	actions := make(
		[]*gl.CommitActionOptions, 0,
		len(changes.Additions)+len(changes.Deletions),
	)

	for _, add := range changes.Additions {
		exists, err := h.fileExists(
			ctx, repo, ref, add.Path,
		)
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		action := gl.FileCreate
		if exists {
			action = gl.FileUpdate
		}

		actions = append(
			actions, &gl.CommitActionOptions{
				Action:   gl.Ptr(action),
				FilePath: gl.Ptr(add.Path),
				Content: gl.Ptr(
					base64.StdEncoding.
						EncodeToString(add.Content),
				),
				Encoding: gl.Ptr("base64"),
			},
		)
	}

	for _, del := range changes.Deletions {
		actions = append(
			actions, &gl.CommitActionOptions{
				Action:   gl.Ptr(gl.FileDelete),
				FilePath: gl.Ptr(del.Path),
			},
		)
	}

	message := msg.String()

	opts := gl.CreateCommitOptions{
		Branch:        &branch,
		CommitMessage: &message,
		Actions:       actions,
	}

	if !found {
		opts.StartBranch = &base
	}

	slog.Info(
		"pushing change set",
		"repo", repo,
		"branch", branch,
		"additions", len(changes.Additions),
		"deletions", len(changes.Deletions),
	)

	created, _, err := h.client.Commits.CreateCommit(
		repo.String(), &opts, gl.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info("created commit", "sha", created.ID)

	return created.ID, nil
}

// branchHead returns the current head of branch, with
// found == false when the branch does not exist.
func (h *Host) branchHead(
	ctx context.Context,
	repo githost.RepositoryRef,
	branch string,
) (string, bool, error) {
	b, resp, err := h.client.Branches.GetBranch(
		repo.String(), branch, gl.WithContext(ctx),
	)
	if err != nil {
		if statusIs(resp, http.StatusNotFound) {
			return "", false, nil
		}

		return "", false, fmt.Errorf(
			"looking up branch %s: %w", branch, err,
		)
	}

	if b.Commit == nil {
		return "", true, nil
	}

	return b.Commit.ID, true, nil
}

// commitActions maps one commit's change list to commit
// API actions. Added and modified paths carry base64
// content read at that commit; an executable mode gets a
// follow-up chmod action in the same commit.
func (h *Host) commitActions(
	commit githost.Commit,
) ([]*gl.CommitActionOptions, error) {
	actions := make(
		[]*gl.CommitActionOptions,
		0, len(commit.Changes),
	)

	for _, ch := range commit.Changes {
		if !ch.Status.UploadsContent() {
			actions = append(
				actions, &gl.CommitActionOptions{
					Action:   gl.Ptr(gl.FileDelete),
					FilePath: gl.Ptr(ch.Path),
				},
			)

			continue
		}

		content, err := h.source.FileContent(
			commit.SHA, ch.Path,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"reading %s: %w", ch.Path, err,
			)
		}

		action := gl.FileUpdate
		if ch.Status == githost.StatusAdded {
			action = gl.FileCreate
		}

		actions = append(
			actions, &gl.CommitActionOptions{
				Action:   gl.Ptr(action),
				FilePath: gl.Ptr(ch.Path),
				Content: gl.Ptr(
					base64.StdEncoding.
						EncodeToString(content),
				),
				Encoding: gl.Ptr("base64"),
			},
		)

		if ch.Mode == githost.ModeExecutable {
			actions = append(
				actions, &gl.CommitActionOptions{
					Action:          gl.Ptr(gl.FileChmod),
					FilePath:        gl.Ptr(ch.Path),
					ExecuteFilemode: gl.Ptr(true),
				},
			)
		}
	}

	return actions, nil
}

// fileExists probes path at ref through the repository
// file metadata endpoint.
func (h *Host) fileExists(
	ctx context.Context,
	repo githost.RepositoryRef,
	ref string,
	path string,
) (bool, error) {
	_, resp, err := h.client.RepositoryFiles.
		GetFileMetaData(
			repo.String(), path,
			&gl.GetFileMetaDataOptions{Ref: &ref},
			gl.WithContext(ctx),
		)
	if err != nil {
		if statusIs(resp, http.StatusNotFound) {
			return false, nil
		}

		return false, fmt.Errorf(
			"probing file %s: %w", path, err,
		)
	}

	return true, nil
}
