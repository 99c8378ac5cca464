package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v68/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// Config holds the settings needed to create a GitHub
// client.
type Config struct {
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
}

// Client wraps the GitHub REST and GraphQL APIs behind
// the operations the sync engine needs: git object
// creation, branch refs, and pull requests.
type Client struct {
	rest *gh.Client
	v4   *githubv4.Client
}

// New validates cfg and returns a Client speaking to
// github.com or the configured enterprise host.
func New(cfg Config) (*Client, error) {
	const errCtx = "creating github client"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	rest := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
	})
	httpClient := oauth2.NewClient(
		context.Background(), src,
	)

	var v4 *githubv4.Client

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		rest, err = rest.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}

		v4 = githubv4.NewEnterpriseClient(
			"https://"+cfg.EnterpriseHost+
				"/api/graphql",
			httpClient,
		)
	} else {
		v4 = githubv4.NewClient(httpClient)
	}

	return &Client{
		rest: rest,
		v4:   v4,
	}, nil
}
