package gitlab

import (
	"fmt"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/prsync/sync/githost"
)

// Config holds the settings needed to talk to a GitLab
// instance.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
}

// Host pushes commits and reconciles merge requests on
// GitLab.
//
// Pattern: Strategy -- implements githost.Host.
type Host struct {
	client *gl.Client
	source githost.ContentSource
}

// NewHost validates cfg and returns a Host reading file
// content from source.
func NewHost(
	cfg Config,
	source githost.ContentSource,
) (*Host, error) {
	const errCtx = "creating gitlab host"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Host{
		client: client,
		source: source,
	}, nil
}

// statusIs reports whether resp carries the given HTTP
// status.
func statusIs(resp *gl.Response, status int) bool {
	return resp != nil && resp.StatusCode == status
}
