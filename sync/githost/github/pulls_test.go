package github_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	gh "github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/prsync/sync/githost"
	ghsync "github.com/byte4ever/prsync/sync/githost/github"
)

const prURL = "https://github.example/octo/hello/pull/7"

var headRepo = githost.RepositoryRef{
	Owner: "forker",
	Name:  "hello",
}

func TestEnsurePullRequest_create_then_update(
	t *testing.T,
) {
	t.Parallel()

	var (
		mu      sync.Mutex
		creates int
		listQ   url.Values
		edits   []map[string]any
	)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"POST /repos/octo/hello/pulls",
		func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)

			mu.Lock()
			creates++
			n := creates
			mu.Unlock()

			if n == 1 {
				assert.Equal(
					t, "forker:feature", body["head"],
				)
				assert.Equal(t, "main", body["base"])
				assert.Equal(
					t, "sync upstream", body["title"],
				)
				assert.Equal(
					t,
					"keeps the fork current",
					body["body"],
				)
				assert.Equal(t, false, body["draft"])

				writeJSON(
					t, w, http.StatusCreated,
					map[string]any{
						"number":   7,
						"html_url": prURL,
					},
				)

				return
			}

			writeJSON(
				t, w,
				http.StatusUnprocessableEntity,
				map[string]any{
					"message": "Validation Failed",
					"errors": []map[string]any{{
						"resource": "PullRequest",
						"code":     "custom",
						"message": "A pull request " +
							"already exists for " +
							"forker:feature.",
					}},
				},
			)
		},
	)

	mux.HandleFunc(
		"GET /repos/octo/hello/pulls",
		func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			listQ = r.URL.Query()
			mu.Unlock()

			writeJSON(
				t, w, http.StatusOK,
				[]map[string]any{{
					"number":   7,
					"html_url": prURL,
				}},
			)
		},
	)

	mux.HandleFunc(
		"PATCH /repos/octo/hello/pulls/7",
		func(w http.ResponseWriter, r *http.Request) {
			body := decodeBody(t, r)

			mu.Lock()
			edits = append(edits, body)
			mu.Unlock()

			writeJSON(t, w, http.StatusOK, map[string]any{
				"number":   7,
				"html_url": prURL,
			})
		},
	)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	spec := githost.PullRequestSpec{
		Title:  "sync upstream",
		Body:   "keeps the fork current",
		Branch: "feature",
		Base:   "main",
	}

	first, err := client.EnsurePullRequest(
		context.Background(),
		testRepo, headRepo, spec,
	)

	require.NoError(t, err)
	assert.Equal(t, githost.PullRequest{
		Number:  7,
		URL:     prURL,
		Created: true,
	}, first)

	second, err := client.EnsurePullRequest(
		context.Background(),
		testRepo, headRepo, spec,
	)

	require.NoError(t, err)
	assert.Equal(t, githost.PullRequest{
		Number:  7,
		URL:     prURL,
		Created: false,
	}, second)

	mu.Lock()
	defer mu.Unlock()

	// The duplicate rejection routes through the open
	// pull request lookup and a refresh of its text.
	assert.Equal(t, "open", listQ.Get("state"))
	assert.Equal(
		t, "forker:feature", listQ.Get("head"),
	)
	assert.Equal(t, "main", listQ.Get("base"))

	require.Len(t, edits, 1)
	assert.Equal(t, "sync upstream", edits[0]["title"])
	assert.Equal(
		t, "keeps the fork current", edits[0]["body"],
	)
}

func TestEnsurePullRequest_other_422_is_fatal(
	t *testing.T,
) {
	t.Parallel()

	var (
		mu     sync.Mutex
		listed bool
	)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"POST /repos/octo/hello/pulls",
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(
				t, w,
				http.StatusUnprocessableEntity,
				map[string]any{
					"message": "Validation Failed",
					"errors": []map[string]any{{
						"resource": "PullRequest",
						"code":     "custom",
						"message": "No commits between " +
							"main and feature",
					}},
				},
			)
		},
	)

	mux.HandleFunc(
		"GET /repos/octo/hello/pulls",
		func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			listed = true
			mu.Unlock()

			writeJSON(
				t, w, http.StatusOK, []map[string]any{},
			)
		},
	)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	_, err := client.EnsurePullRequest(
		context.Background(),
		testRepo, headRepo,
		githost.PullRequestSpec{
			Title:  "sync upstream",
			Branch: "feature",
			Base:   "main",
		},
	)

	require.Error(t, err)
	assert.ErrorContains(t, err, "No commits between")

	mu.Lock()
	defer mu.Unlock()

	// Only the duplicate rejection falls back to the
	// lookup; every other validation failure stops.
	assert.False(t, listed)
}

// metadataAPI serves the pull request creation plus all
// four metadata endpoints, recording the order they are
// hit in and the bodies they receive. A non-zero status
// in fail makes that endpoint reject.
type metadataAPI struct {
	t *testing.T

	fail map[string]int

	mu        sync.Mutex
	order     []string
	milestone map[string]any
	labels    any
	assignees map[string]any
	reviewers map[string]any
}

func (m *metadataAPI) record(name string) {
	m.mu.Lock()
	m.order = append(m.order, name)
	m.mu.Unlock()
}

func (m *metadataAPI) failed(
	w http.ResponseWriter,
	name string,
) bool {
	status, ok := m.fail[name]
	if !ok {
		return false
	}

	writeJSON(
		m.t, w, status,
		map[string]any{"message": "nope"},
	)

	return true
}

func (m *metadataAPI) install(mux *http.ServeMux) {
	mux.HandleFunc(
		"POST /repos/octo/hello/pulls",
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(
				m.t, w, http.StatusCreated,
				map[string]any{
					"number":   7,
					"html_url": prURL,
				},
			)
		},
	)

	mux.HandleFunc(
		"PATCH /repos/octo/hello/issues/7",
		func(w http.ResponseWriter, r *http.Request) {
			m.record("milestone")

			if m.failed(w, "milestone") {
				return
			}

			body := decodeBody(m.t, r)

			m.mu.Lock()
			m.milestone = body
			m.mu.Unlock()

			writeJSON(
				m.t, w, http.StatusOK,
				map[string]any{"number": 7},
			)
		},
	)

	mux.HandleFunc(
		"POST /repos/octo/hello/issues/7/labels",
		func(w http.ResponseWriter, r *http.Request) {
			m.record("labels")

			if m.failed(w, "labels") {
				return
			}

			body := decodeAny(m.t, r)

			m.mu.Lock()
			m.labels = body
			m.mu.Unlock()

			writeJSON(
				m.t, w, http.StatusOK, []map[string]any{},
			)
		},
	)

	mux.HandleFunc(
		"POST /repos/octo/hello/issues/7/assignees",
		func(w http.ResponseWriter, r *http.Request) {
			m.record("assignees")

			if m.failed(w, "assignees") {
				return
			}

			body := decodeBody(m.t, r)

			m.mu.Lock()
			m.assignees = body
			m.mu.Unlock()

			writeJSON(
				m.t, w, http.StatusCreated,
				map[string]any{"number": 7},
			)
		},
	)

	mux.HandleFunc(
		"POST /repos/octo/hello/pulls/7/requested_reviewers",
		func(w http.ResponseWriter, r *http.Request) {
			m.record("reviewers")

			if m.failed(w, "reviewers") {
				return
			}

			body := decodeBody(m.t, r)

			m.mu.Lock()
			m.reviewers = body
			m.mu.Unlock()

			writeJSON(
				m.t, w, http.StatusCreated,
				map[string]any{"number": 7},
			)
		},
	)
}

func newMetadataServer(
	t *testing.T,
	api *metadataAPI,
) *ghsync.Client {
	t.Helper()

	api.t = t

	mux := http.NewServeMux()
	api.install(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return newTestClient(t, srv)
}

func fullMetadataSpec() githost.PullRequestSpec {
	return githost.PullRequestSpec{
		Title:         "sync upstream",
		Branch:        "feature",
		Base:          "main",
		Milestone:     3,
		Labels:        []string{"sync", "automated"},
		Assignees:     []string{"alice"},
		Reviewers:     []string{"bob"},
		TeamReviewers: []string{"acme/platform"},
	}
}

func TestEnsurePullRequest_metadata_order(
	t *testing.T,
) {
	t.Parallel()

	api := &metadataAPI{}
	client := newMetadataServer(t, api)

	created, err := client.EnsurePullRequest(
		context.Background(),
		testRepo, headRepo, fullMetadataSpec(),
	)

	require.NoError(t, err)
	assert.True(t, created.Created)

	api.mu.Lock()
	defer api.mu.Unlock()

	assert.Equal(
		t,
		[]string{
			"milestone",
			"labels",
			"assignees",
			"reviewers",
		},
		api.order,
	)

	assert.Equal(
		t, float64(3), api.milestone["milestone"],
	)
	assert.Equal(
		t, []any{"sync", "automated"}, api.labels,
	)
	assert.Equal(
		t,
		[]any{"alice"},
		api.assignees["assignees"],
	)
	assert.Equal(
		t,
		[]any{"bob"},
		api.reviewers["reviewers"],
	)

	// The organisation prefix never reaches the host;
	// the endpoint wants bare team slugs.
	assert.Equal(
		t,
		[]any{"platform"},
		api.reviewers["team_reviewers"],
	)
}

func TestEnsurePullRequest_metadata_no_rollback(
	t *testing.T,
) {
	t.Parallel()

	api := &metadataAPI{
		fail: map[string]int{
			"labels": http.StatusInternalServerError,
		},
	}
	client := newMetadataServer(t, api)

	_, err := client.EnsurePullRequest(
		context.Background(),
		testRepo, headRepo, fullMetadataSpec(),
	)

	require.Error(t, err)
	assert.ErrorContains(t, err, "labels")

	api.mu.Lock()
	defer api.mu.Unlock()

	// The milestone stays applied; nothing after the
	// failing step runs.
	assert.Equal(
		t, []string{"milestone", "labels"}, api.order,
	)
	assert.Equal(
		t, float64(3), api.milestone["milestone"],
	)
}

func TestEnsurePullRequest_team_reviewer_scope(
	t *testing.T,
) {
	t.Parallel()

	srv := httptest.NewServer(newScopeFailMux(t))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv)

	_, err := client.EnsurePullRequest(
		context.Background(),
		testRepo, headRepo,
		githost.PullRequestSpec{
			Title:         "sync upstream",
			Branch:        "feature",
			Base:          "main",
			TeamReviewers: []string{"acme/platform"},
		},
	)

	require.Error(t, err)
	assert.ErrorContains(t, err, "reviewers")
	assert.ErrorContains(
		t, err, "Could not resolve to a node",
	)
}

func newScopeFailMux(t *testing.T) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc(
		"POST /repos/octo/hello/pulls",
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(
				t, w, http.StatusCreated,
				map[string]any{
					"number":   7,
					"html_url": prURL,
				},
			)
		},
	)

	mux.HandleFunc(
		"POST /repos/octo/hello/pulls/7/requested_reviewers",
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(
				t, w,
				http.StatusUnprocessableEntity,
				map[string]any{
					"message": "Could not resolve to " +
						"a node with the global id of " +
						"'MDQ6VGVhbTE='",
				},
			)
		},
	)

	return mux
}

func TestForkParent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	mux.HandleFunc(
		"GET /repos/forker/hello",
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"full_name": "forker/hello",
				"fork":      true,
				"parent": map[string]any{
					"full_name": "octo/hello",
				},
			})
		},
	)
	mux.HandleFunc(
		"GET /repos/octo/hello",
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"full_name": "octo/hello",
			})
		},
	)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	parent, err := client.ForkParent(
		context.Background(), headRepo,
	)

	require.NoError(t, err)
	assert.Equal(t, "octo/hello", parent)

	parent, err = client.ForkParent(
		context.Background(), testRepo,
	)

	require.NoError(t, err)
	assert.Empty(t, parent)
}

func TestStripTeamPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		teams []string
		want  []string
	}{
		{
			name:  "empty",
			teams: nil,
			want:  nil,
		},
		{
			name:  "org prefix stripped",
			teams: []string{"acme/platform"},
			want:  []string{"platform"},
		},
		{
			name:  "bare slug untouched",
			teams: []string{"platform"},
			want:  []string{"platform"},
		},
		{
			name:  "last separator wins",
			teams: []string{"acme/infra/platform"},
			want:  []string{"platform"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(
				t,
				tc.want,
				ghsync.StripTeamPrefixForTest(tc.teams),
			)
		})
	}
}

func existsErr(
	status int,
	message string,
	details ...string,
) *gh.ErrorResponse {
	resp := &gh.ErrorResponse{
		Response: &http.Response{StatusCode: status},
		Message:  message,
	}

	for _, d := range details {
		resp.Errors = append(
			resp.Errors, gh.Error{
				Resource: "PullRequest",
				Code:     "custom",
				Message:  d,
			},
		)
	}

	return resp
}

func TestIsPullRequestExists(t *testing.T) {
	t.Parallel()

	exists := ghsync.IsPullRequestExistsForTest

	assert.True(t, exists(existsErr(
		http.StatusUnprocessableEntity,
		"Validation Failed",
		"A pull request already exists for "+
			"forker:feature.",
	)))

	// Wrapping must not hide the classification.
	assert.True(t, exists(fmt.Errorf(
		"creating pull request: %w",
		existsErr(
			http.StatusUnprocessableEntity,
			"Validation Failed",
			"A pull request already exists for "+
				"forker:feature.",
		),
	)))

	// Some deployments report it in the top-level
	// message instead of the detail list.
	assert.True(t, exists(existsErr(
		http.StatusUnprocessableEntity,
		"pull request already exists",
	)))

	assert.False(t, exists(existsErr(
		http.StatusUnprocessableEntity,
		"Validation Failed",
		"No commits between main and feature",
	)))
	assert.False(t, exists(existsErr(
		http.StatusNotFound,
		"Not Found",
		"A pull request already exists for x",
	)))
	assert.False(
		t, exists(errors.New("already exists")),
	)
	assert.False(t, exists(nil))
}
