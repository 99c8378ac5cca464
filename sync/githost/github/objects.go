package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/prsync/sync/commitmsg"
	"github.com/byte4ever/prsync/sync/githost"
)

// ObjectBuilder creates git objects (blobs, trees,
// commits) through the REST API. Content for added and
// modified paths comes from the ContentSource, pinned
// at the commit being replayed.
type ObjectBuilder struct {
	client *Client
	source githost.ContentSource
}

// NewObjectBuilder returns an ObjectBuilder reading
// file content from source.
func NewObjectBuilder(
	client *Client,
	source githost.ContentSource,
) *ObjectBuilder {
	return &ObjectBuilder{
		client: client,
		source: source,
	}
}

// BuildTree uploads one blob per added or modified
// change and creates a tree on top of baseTree. Blob
// uploads run concurrently; everything else in the sync
// flow stays sequential. Deleted paths become entries
// with a null hash, which removes them server-side. An
// empty change list returns baseTree verbatim with no
// network calls.
func (b *ObjectBuilder) BuildTree(
	ctx context.Context,
	repo githost.RepositoryRef,
	baseTree string,
	commit githost.Commit,
) (string, error) {
	const errCtx = "building tree"

	if len(commit.Changes) == 0 {
		return baseTree, nil
	}

	slog.Info(
		"creating tree objects",
		"commit", commit.SHA,
		"changes", len(commit.Changes),
	)

	entries := make(
		[]*gh.TreeEntry, len(commit.Changes),
	)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for i, ch := range commit.Changes {
		path := ch.Path
		mode := string(ch.Mode)

		if !ch.Status.UploadsContent() {
			// Nil SHA with nil content serialises as
			// "sha": null, removing the entry from the
			// tree.
			entries[i] = &gh.TreeEntry{
				Path: &path,
				Mode: &mode,
			}

			continue
		}

		wg.Add(1)

		go func(i int, ch githost.Change) {
			defer wg.Done()

			sha, blobErr := b.uploadBlob(
				ctx, repo, commit.SHA, ch,
			)
			if blobErr != nil {
				mu.Lock()
				errs = append(errs, blobErr)
				mu.Unlock()

				return
			}

			path := ch.Path
			mode := string(ch.Mode)

			entries[i] = &gh.TreeEntry{
				Path: &path,
				Mode: &mode,
				SHA:  &sha,
			}
		}(i, ch)
	}

	wg.Wait()

	if len(errs) > 0 {
		return "", fmt.Errorf(
			"%s: %d blob uploads failed, first: %w",
			errCtx, len(errs), errs[0],
		)
	}

	tree, _, err := b.client.rest.Git.CreateTree(
		ctx, repo.Owner, repo.Name, baseTree, entries,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info("created tree", "sha", tree.GetSHA())

	return tree.GetSHA(), nil
}

// uploadBlob reads the file as of the change's commit,
// uploads it base64-encoded, and returns the new blob
// hash.
func (b *ObjectBuilder) uploadBlob(
	ctx context.Context,
	repo githost.RepositoryRef,
	commit string,
	ch githost.Change,
) (string, error) {
	const errCtx = "uploading blob"

	content, err := b.source.FileContent(
		commit, ch.Path,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: read: %w", errCtx, ch.Path, err,
		)
	}

	encoded := base64.StdEncoding.
		EncodeToString(content)
	encoding := "base64"

	blob, _, err := b.client.rest.Git.CreateBlob(
		ctx, repo.Owner, repo.Name, &gh.Blob{
			Content:  &encoded,
			Encoding: &encoding,
		},
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, ch.Path, err,
		)
	}

	return blob.GetSHA(), nil
}

// BuildCommit creates a commit object pointing at tree
// with the given parents. The message renders as
// subject, blank line, body. Transport failures surface
// unchanged; there are no retries here.
func (b *ObjectBuilder) BuildCommit(
	ctx context.Context,
	repo githost.RepositoryRef,
	parents []string,
	tree string,
	msg commitmsg.Message,
) (string, error) {
	const errCtx = "building commit"

	message := msg.String()

	parentCommits := make(
		[]*gh.Commit, 0, len(parents),
	)

	for _, p := range parents {
		sha := p
		parentCommits = append(
			parentCommits, &gh.Commit{SHA: &sha},
		)
	}

	commit := &gh.Commit{
		Message: &message,
		Tree:    &gh.Tree{SHA: &tree},
		Parents: parentCommits,
	}

	created, _, err := b.client.rest.Git.CreateCommit(
		ctx, repo.Owner, repo.Name, commit, nil,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"created commit", "sha", created.GetSHA(),
	)

	return created.GetSHA(), nil
}
