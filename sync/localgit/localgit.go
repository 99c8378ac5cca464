package localgit

import (
	"context"
	"fmt"
	"log/slog"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/byte4ever/prsync/sync/commitmsg"
	"github.com/byte4ever/prsync/sync/githost"
)

// Source reads commits and file content from a local
// repository clone.
type Source struct {
	repo *gitlib.Repository
}

// Open opens the repository containing dir, searching
// upward for the .git directory the way the git CLI
// does.
func Open(dir string) (*Source, error) {
	const errCtx = "opening local repository"

	repo, err := gitlib.PlainOpenWithOptions(
		dir,
		&gitlib.PlainOpenOptions{DetectDotGit: true},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s %s: %w", errCtx, dir, err,
		)
	}

	return &Source{repo: repo}, nil
}

// Commits lists the commits on head's first-parent chain
// that are not yet in base's history, oldest first. Each
// commit carries its parent hashes, its parent's tree
// hash, the parsed message, and the parent-to-commit
// file changes. Merge commits along the chain flatten to
// their first-parent diff.
func (s *Source) Commits(
	ctx context.Context,
	base string,
	head string,
) ([]githost.Commit, error) {
	const errCtx = "collecting commits"

	slog.Info(
		"collecting commits",
		"base", base,
		"head", head,
	)

	baseCommit, err := s.commitAt(base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	headCommit, err := s.commitAt(head)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	chain, err := commitsSince(baseCommit, headCommit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	commits := make([]githost.Commit, 0, len(chain))

	for i := len(chain) - 1; i >= 0; i-- {
		c, err := convertCommit(ctx, chain[i])
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		commits = append(commits, c)
	}

	slog.Info(
		"collected commits", "count", len(commits),
	)

	return commits, nil
}

// commitAt resolves a revision (branch, tag, hash) to
// its commit object.
func (s *Source) commitAt(
	rev string,
) (*object.Commit, error) {
	hash, err := s.repo.ResolveRevision(
		plumbing.Revision(rev),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"resolving %s: %w", rev, err,
		)
	}

	commit, err := s.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf(
			"reading commit %s: %w", hash, err,
		)
	}

	return commit, nil
}

// commitsSince walks head's first parents back to the
// first commit already contained in base's history and
// returns the commits above it, newest first. A head
// that is itself in base's history yields an empty
// chain.
func commitsSince(
	base *object.Commit,
	head *object.Commit,
) ([]*object.Commit, error) {
	var chain []*object.Commit

	for current := head; ; {
		inBase, err := current.IsAncestor(base)
		if err != nil {
			return nil, fmt.Errorf(
				"checking ancestry of %s: %w",
				current.Hash, err,
			)
		}

		if inBase {
			return chain, nil
		}

		chain = append(chain, current)

		if current.NumParents() == 0 {
			return nil, fmt.Errorf(
				"no common history between %s and %s",
				base.Hash, head.Hash,
			)
		}

		parent, err := current.Parent(0)
		if err != nil {
			return nil, fmt.Errorf(
				"reading parent of %s: %w",
				current.Hash, err,
			)
		}

		current = parent
	}
}

// convertCommit maps one repository commit to the
// transport shape.
func convertCommit(
	ctx context.Context,
	c *object.Commit,
) (githost.Commit, error) {
	tree, err := c.Tree()
	if err != nil {
		return githost.Commit{}, fmt.Errorf(
			"reading tree of %s: %w", c.Hash, err,
		)
	}

	var (
		parentTree *object.Tree
		baseTree   string
	)

	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return githost.Commit{}, fmt.Errorf(
				"reading parent of %s: %w", c.Hash, err,
			)
		}

		parentTree, err = parent.Tree()
		if err != nil {
			return githost.Commit{}, fmt.Errorf(
				"reading parent tree of %s: %w",
				c.Hash, err,
			)
		}

		baseTree = parentTree.Hash.String()
	}

	changes, err := diffChanges(ctx, c, parentTree, tree)
	if err != nil {
		return githost.Commit{}, err
	}

	parents := make([]string, 0, c.NumParents())
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}

	return githost.Commit{
		SHA:      c.Hash.String(),
		Parents:  parents,
		BaseTree: baseTree,
		Message:  commitmsg.Parse(c.Message),
		Changes:  changes,
	}, nil
}

// diffChanges diffs from against to and maps every entry
// to a path change. Submodule pointers cannot be replayed
// through content upload and are skipped with a warning.
func diffChanges(
	ctx context.Context,
	c *object.Commit,
	from *object.Tree,
	to *object.Tree,
) ([]githost.Change, error) {
	diff, err := object.DiffTreeContext(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf(
			"diffing trees of %s: %w", c.Hash, err,
		)
	}

	changes := make([]githost.Change, 0, len(diff))

	for _, change := range diff {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf(
				"reading change action: %w", err,
			)
		}

		entry := change.To
		status := githost.StatusModified

		switch action {
		case merkletrie.Insert:
			status = githost.StatusAdded
		case merkletrie.Delete:
			entry = change.From
			status = githost.StatusDeleted
		case merkletrie.Modify:
		}

		if entry.TreeEntry.Mode == filemode.Submodule {
			slog.Warn(
				"skipping submodule change",
				"path", entry.Name,
				"commit", c.Hash.String(),
			)

			continue
		}

		changes = append(changes, githost.Change{
			Path:   entry.Name,
			Mode:   hostMode(entry.TreeEntry.Mode),
			Status: status,
		})
	}

	return changes, nil
}

// hostMode maps repository file modes to the wire
// strings the hosts expect. Legacy group-writable
// regular files collapse to the plain blob mode.
func hostMode(m filemode.FileMode) githost.FileMode {
	switch m {
	case filemode.Executable:
		return githost.ModeExecutable
	case filemode.Symlink:
		return githost.ModeSymlink
	default:
		return githost.ModeRegular
	}
}
