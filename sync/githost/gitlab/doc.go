// Package gitlab implements the githost.Host strategy
// on top of the GitLab REST API: commit replay through
// the commits API action lists and merge request
// reconciliation with metadata.
package gitlab
