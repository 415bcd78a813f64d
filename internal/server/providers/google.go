package providers

import (
	"context"
	"net/http"
	"net/url"
)

// Google resolves an access token via the OAuth2 tokeninfo endpoint.
type Google struct {
	endpoint string
	client   *http.Client
}

// NewGoogle constructs a Google fetcher against the given tokeninfo endpoint.
func NewGoogle(endpoint string) *Google {
	return &Google{endpoint: endpoint, client: newClient()}
}

func (g *Google) FetchEmail(ctx context.Context, accessToken string) (string, error) {
	var payload struct {
		Email string `json:"email"`
	}

	target := withQuery(g.endpoint, url.Values{"access_token": {accessToken}})
	if err := fetchJSON(ctx, g.client, target, &payload); err != nil {
		return "", err
	}

	if payload.Email == "" {
		return "", ErrEmailNotVerified
	}
	return payload.Email, nil
}
