// Package githost defines the domain model and strategy interface for
// synchronizing locally computed commits to a remote git hosting platform
// and reconciling pull requests there.
//
// The Host interface abstracts the platform. Implementations exist for
// GitHub and GitLab in sub-packages; both offer a sequential path that
// replays every local commit and an atomic path that pushes one flattened
// commit (on GitHub the atomic path yields commits signed by the host).
//
// Commit, Change, and ChangeSet describe what to push. MergeChanges
// flattens a commit sequence into its net per-path outcome for the atomic
// path. ParseRepoSpec turns "owner/name" specs into RepositoryRef values
// without local validation.
package githost
