package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/prsync/sync/config"
	"github.com/byte4ever/prsync/sync/githost"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pr.yaml")
	require.NoError(
		t, os.WriteFile(path, []byte(content), 0o644),
	)

	return path
}

func TestLoadPullRequest(t *testing.T) {
	t.Parallel()

	path := writeFile(t, `
title: "Sync {{GIT_BRANCH}}"
body: |
  Automated update.
draft: true
milestone: 3
labels:
  - sync
  - automated
assignees:
  - alice
reviewers:
  - bob
team_reviewers:
  - acme/platform
`)

	pr, err := config.LoadPullRequest(path)
	require.NoError(t, err)

	assert.Equal(
		t,
		config.PullRequest{
			Title:         "Sync {{GIT_BRANCH}}",
			Body:          "Automated update.\n",
			Draft:         true,
			Milestone:     3,
			Labels:        []string{"sync", "automated"},
			Assignees:     []string{"alice"},
			Reviewers:     []string{"bob"},
			TeamReviewers: []string{"acme/platform"},
		},
		pr,
	)
}

func TestLoadPullRequest_unknown_key(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "titel: oops\n")

	_, err := config.LoadPullRequest(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "titel")
}

func TestLoadPullRequest_missing_file(t *testing.T) {
	t.Parallel()

	_, err := config.LoadPullRequest(
		filepath.Join(t.TempDir(), "absent.yaml"),
	)
	assert.ErrorContains(
		t, err, "loading pull request file",
	)
}

func TestExpand(t *testing.T) {
	t.Parallel()

	vars := map[string]string{
		"GIT_BRANCH": "feature",
		"GIT_BASE":   "main",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single_var",
			in:   "sync {{GIT_BRANCH}}",
			want: "sync feature",
		},
		{
			name: "multiple_vars",
			in:   "{{GIT_BRANCH}} into {{GIT_BASE}}",
			want: "feature into main",
		},
		{
			name: "unknown_var_passes_through",
			in:   "keep {{NOPE}} as is",
			want: "keep {{NOPE}} as is",
		},
		{
			name: "no_tags",
			in:   "plain text",
			want: "plain text",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := config.Expand(tc.in, vars)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPullRequest_Expanded(t *testing.T) {
	t.Parallel()

	pr := config.PullRequest{
		Title:  "Sync {{GIT_BRANCH}}",
		Body:   "From {{GIT_BRANCH}} into {{GIT_BASE}}",
		Labels: []string{"{{GIT_BRANCH}}"},
	}

	got := pr.Expanded(map[string]string{
		"GIT_BRANCH": "feature",
		"GIT_BASE":   "main",
	})

	assert.Equal(t, "Sync feature", got.Title)
	assert.Equal(
		t, "From feature into main", got.Body,
	)
	// Only title and body are templated.
	assert.Equal(
		t, []string{"{{GIT_BRANCH}}"}, got.Labels,
	)
}

func TestPullRequest_Spec(t *testing.T) {
	t.Parallel()

	pr := config.PullRequest{
		Title:         "Sync feature",
		Body:          "body",
		Draft:         true,
		Milestone:     5,
		Labels:        []string{"sync"},
		Assignees:     []string{"alice"},
		Reviewers:     []string{"bob"},
		TeamReviewers: []string{"platform"},
	}

	spec := pr.Spec("feature", "main")

	assert.Equal(
		t,
		githost.PullRequestSpec{
			Title:         "Sync feature",
			Body:          "body",
			Branch:        "feature",
			Base:          "main",
			Draft:         true,
			Milestone:     5,
			Labels:        []string{"sync"},
			Assignees:     []string{"alice"},
			Reviewers:     []string{"bob"},
			TeamReviewers: []string{"platform"},
		},
		spec,
	)
}
