package github

import (
	gh "github.com/google/go-github/v68/github"
	"github.com/shurcooL/githubv4"
)

// Exported aliases for testing internal helpers from
// the github_test package.

// NewClientForTest assembles a Client around pre-built
// API clients, letting tests aim it at a local fake
// server.
func NewClientForTest(
	rest *gh.Client,
	v4 *githubv4.Client,
) *Client {
	return &Client{rest: rest, v4: v4}
}

// StripTeamPrefixForTest exposes stripTeamPrefix.
var StripTeamPrefixForTest = stripTeamPrefix

// IsPullRequestExistsForTest exposes
// isPullRequestExists.
var IsPullRequestExistsForTest = isPullRequestExists

// IsExpectedHeadErrorForTest exposes
// isExpectedHeadError.
var IsExpectedHeadErrorForTest = isExpectedHeadError

// BranchSHAForTest exposes Client.branchSHA.
var BranchSHAForTest = (*Client).branchSHA
