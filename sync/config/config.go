// Package config loads the pull request metadata file
// and expands the {{VAR}} templates its title and body
// may carry.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/prsync/sync/githost"
)

// PullRequest is the on-disk pull request metadata:
// title and body templates plus the metadata applied
// after reconciliation. Zero values mean "not
// requested".
type PullRequest struct {
	Title         string   `yaml:"title"`
	Body          string   `yaml:"body"`
	Draft         bool     `yaml:"draft"`
	Milestone     int      `yaml:"milestone"`
	Labels        []string `yaml:"labels"`
	Assignees     []string `yaml:"assignees"`
	Reviewers     []string `yaml:"reviewers"`
	TeamReviewers []string `yaml:"team_reviewers"`
}

// LoadPullRequest reads a YAML metadata file. Unknown
// and duplicated keys are rejected so a typo fails
// loudly instead of silently dropping metadata.
func LoadPullRequest(path string) (PullRequest, error) {
	const errCtx = "loading pull request file"

	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return PullRequest{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var pr PullRequest

	if err := yaml.UnmarshalWithOptions(
		data, &pr, yaml.Strict(),
	); err != nil {
		return PullRequest{}, fmt.Errorf(
			"%s %s: %w", errCtx, path, err,
		)
	}

	return pr, nil
}

// Expand substitutes {{VAR}} placeholders in s from
// vars. Unknown placeholders pass through unchanged.
func Expand(s string, vars map[string]string) string {
	m := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		m[k] = v
	}

	return fasttemplate.ExecuteStringStd(s, "{{", "}}", m)
}

// Expanded returns a copy with the title and body
// templates expanded against vars.
func (p PullRequest) Expanded(
	vars map[string]string,
) PullRequest {
	p.Title = Expand(p.Title, vars)
	p.Body = Expand(p.Body, vars)

	return p
}

// Spec maps the metadata onto the host-facing pull
// request spec for the given head branch and base.
func (p PullRequest) Spec(
	branch string,
	base string,
) githost.PullRequestSpec {
	return githost.PullRequestSpec{
		Title:         p.Title,
		Body:          p.Body,
		Branch:        branch,
		Base:          base,
		Draft:         p.Draft,
		Milestone:     p.Milestone,
		Labels:        p.Labels,
		Assignees:     p.Assignees,
		Reviewers:     p.Reviewers,
		TeamReviewers: p.TeamReviewers,
	}
}
