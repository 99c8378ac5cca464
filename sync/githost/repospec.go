package githost

import "strings"

// RepositoryRef identifies a remote repository by its
// owner (user or organisation) and name.
type RepositoryRef struct {
	Owner string
	Name  string
}

// ParseRepoSpec splits an "owner/name" spec once on the
// first slash. No further validation happens here: a
// malformed spec surfaces later as a not-found error
// from the host, not as a local failure.
func ParseRepoSpec(spec string) RepositoryRef {
	owner, name, _ := strings.Cut(spec, "/")

	return RepositoryRef{
		Owner: owner,
		Name:  name,
	}
}

// String renders the ref back to "owner/name" form, the
// shape host APIs expect for qualified repository names.
func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether the ref is entirely unset.
func (r RepositoryRef) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}
