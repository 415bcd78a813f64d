package providers

import (
	"context"
	"net/http"
	"net/url"
)

// Yandex resolves an access token via the login info endpoint.
type Yandex struct {
	endpoint string
	client   *http.Client
}

// NewYandex constructs a Yandex fetcher against the given login info endpoint.
func NewYandex(endpoint string) *Yandex {
	return &Yandex{endpoint: endpoint, client: newClient()}
}

func (y *Yandex) FetchEmail(ctx context.Context, accessToken string) (string, error) {
	var payload struct {
		DefaultEmail string `json:"default_email"`
	}

	target := withQuery(y.endpoint, url.Values{"format": {"json"}, "oauth_token": {accessToken}})
	if err := fetchJSON(ctx, y.client, target, &payload); err != nil {
		return "", err
	}

	if payload.DefaultEmail == "" {
		return "", ErrEmailNotVerified
	}
	return payload.DefaultEmail, nil
}
