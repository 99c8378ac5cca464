package localgit

import (
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/byte4ever/prsync/sync/githost"
)

// FileContent returns the raw bytes of path at commit.
// Symlink entries yield the link target as bytes.
func (s *Source) FileContent(
	commit string,
	path string,
) ([]byte, error) {
	const errCtx = "reading file content"

	c, err := s.repo.CommitObject(
		plumbing.NewHash(commit),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: commit %s: %w", errCtx, commit, err,
		)
	}

	file, err := c.File(path)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s at %s: %w", errCtx, path, commit, err,
		)
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}
	defer reader.Close() //nolint:errcheck

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return content, nil
}

// ChangeSet flattens commits into their net change set.
// Content for surviving paths is read at the newest
// commit, so intermediate states never appear in the
// result.
func (s *Source) ChangeSet(
	commits []githost.Commit,
) (githost.ChangeSet, error) {
	const errCtx = "flattening commits"

	if len(commits) == 0 {
		return githost.ChangeSet{}, nil
	}

	head := commits[len(commits)-1].SHA

	var set githost.ChangeSet

	for _, change := range githost.MergeChanges(commits) {
		if !change.Status.UploadsContent() {
			set.Deletions = append(
				set.Deletions,
				githost.FileDeletion{Path: change.Path},
			)

			continue
		}

		content, err := s.FileContent(head, change.Path)
		if err != nil {
			return githost.ChangeSet{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		set.Additions = append(
			set.Additions,
			githost.FileAddition{
				Path:    change.Path,
				Content: content,
			},
		)
	}

	return set, nil
}
