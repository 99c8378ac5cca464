package githost

import "github.com/byte4ever/prsync/sync/commitmsg"

// FileMode is the git tree-entry mode of a changed
// path, in the octal string form host APIs expect.
type FileMode string

// Tree-entry modes understood by remote hosts.
const (
	ModeRegular    FileMode = "100644"
	ModeExecutable FileMode = "100755"
	ModeTree       FileMode = "040000"
	ModeSubmodule  FileMode = "160000"
	ModeSymlink    FileMode = "120000"
)

// ChangeStatus describes what happened to a path within
// one commit.
type ChangeStatus string

// Change statuses. Only added and modified paths carry
// content to upload; a deleted path is signalled to the
// host with a null content hash.
const (
	StatusAdded    ChangeStatus = "added"
	StatusModified ChangeStatus = "modified"
	StatusDeleted  ChangeStatus = "deleted"
)

// UploadsContent reports whether a change with this
// status uploads file content to the host.
func (s ChangeStatus) UploadsContent() bool {
	return s == StatusAdded || s == StatusModified
}

// Change is a single path-level difference carried by a
// commit.
type Change struct {
	Path   string
	Mode   FileMode
	Status ChangeStatus
}

// Commit is one local commit to be recreated remotely.
// Commits arrive oldest-first; Parents[0] is the commit
// whose tree the changes apply on top of. BaseTree is
// that parent's tree hash and doubles as the commit's
// own tree when Changes is empty (an empty replay
// commit).
type Commit struct {
	SHA      string
	Parents  []string
	BaseTree string
	Message  commitmsg.Message
	Changes  []Change
}

// FileAddition is one file to create or overwrite in a
// single-commit push. Content travels inline and is
// base64-encoded at the wire.
type FileAddition struct {
	Path    string
	Content []byte
}

// FileDeletion is one path to remove in a single-commit
// push.
type FileDeletion struct {
	Path string
}

// ChangeSet is the flattened payload of the atomic push
// path: every surviving addition with its content, and
// every net deletion.
type ChangeSet struct {
	Additions []FileAddition
	Deletions []FileDeletion
}

// Empty reports whether the set carries no changes.
func (cs ChangeSet) Empty() bool {
	return len(cs.Additions) == 0 &&
		len(cs.Deletions) == 0
}

// ContentSource supplies raw file bytes as of a given
// commit. Implementations read from a local repository;
// symlink entries yield the link target bytes.
type ContentSource interface {
	FileContent(commit string, path string) ([]byte, error)
}

// MergeChanges flattens the per-commit change lists of
// an oldest-first commit sequence into the net per-path
// outcome relative to the first commit's base:
//
//   - a path added then deleted inside the range drops
//     out entirely (it never existed at the base),
//   - a path deleted then re-added collapses to
//     modified,
//   - otherwise the latest status wins, except that a
//     path first seen as added stays added.
//
// Path order is first encounter order, so output is
// deterministic for a given input.
func MergeChanges(commits []Commit) []Change {
	merged := make(map[string]Change)

	var order []string

	for _, c := range commits {
		for _, ch := range c.Changes {
			prev, seen := merged[ch.Path]
			if !seen {
				merged[ch.Path] = ch
				order = append(order, ch.Path)

				continue
			}

			merged[ch.Path] = combine(prev, ch)
		}
	}

	out := make([]Change, 0, len(order))

	for _, path := range order {
		next := merged[path]
		if next.Status == "" {
			// Added then deleted: no net change.
			continue
		}

		out = append(out, next)
	}

	return out
}

// combine folds a later change for the same path onto
// an earlier one. A zero-status result marks the path
// as dropped.
func combine(prev, next Change) Change {
	switch {
	case prev.Status == StatusAdded &&
		next.Status == StatusDeleted:
		// Net effect: the path never existed.
		return Change{Path: prev.Path}

	case prev.Status == StatusAdded:
		next.Status = StatusAdded

		return next

	case prev.Status == StatusDeleted &&
		next.Status.UploadsContent():
		next.Status = StatusModified

		return next

	case prev.Status == "" &&
		next.Status.UploadsContent():
		// Previously dropped (added+deleted): a new
		// appearance is an addition again.
		next.Status = StatusAdded

		return next

	default:
		return next
	}
}
