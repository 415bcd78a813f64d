// Package providers resolves federated provider access tokens into verified
// email addresses. Each provider is a black box to the rest of the server:
// a token goes in, a verified email comes out.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const requestTimeout = 10 * time.Second

var ErrEmailNotVerified = errors.New("provider did not return a verified email")

// EmailFetcher resolves a provider access token into a verified email.
type EmailFetcher interface {
	FetchEmail(ctx context.Context, accessToken string) (string, error)
}

func fetchJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func newClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func withQuery(base string, params url.Values) string {
	return base + "?" + params.Encode()
}
