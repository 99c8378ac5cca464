// Package localgit reads the commit range to sync out of
// a local repository clone.
//
// A Source walks the first-parent chain between a base
// and a head revision, turning each commit into the
// transport shape the githost package pushes: parent
// hashes, the parent's tree hash, the parsed message,
// and the per-path changes of the commit. It also serves
// raw file content by commit, both per path for commit
// replay and flattened into a net change set for the
// single-commit push path.
package localgit
