package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client is the HTTP helper shared by the source variants. It maps
// transport and status failures onto the fetch-error taxonomy
type Client struct {
	http *http.Client
}

// NewClient creates a new source HTTP client with the given request timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetJSON executes a GET request against rawURL with the given query
// parameters and decodes the JSON response body into out
func (c *Client) GetJSON(
	ctx context.Context,
	rawURL string,
	query url.Values,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return newFetchError(KindUnknown, fmt.Sprintf("unable to create GET request: %s", err), err)
	}

	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return newFetchError(KindRateLimited, "request limit exceeded", nil)
	case resp.StatusCode == http.StatusUnauthorized:
		return newFetchError(KindUnauthorized, "invalid API key", nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return newFetchError(
			KindHTTP,
			fmt.Sprintf("invalid status code received: %d", resp.StatusCode),
			nil,
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newFetchError(KindUnknown, fmt.Sprintf("unable to decode response: %s", err), err)
	}

	return nil
}

// classifyTransportError maps a request execution failure onto the
// timeout / connection / unknown kinds
func classifyTransportError(rawURL string, err error) *FetchError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newFetchError(KindTimeout, fmt.Sprintf("request to %s timed out", rawURL), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newFetchError(KindTimeout, fmt.Sprintf("request to %s timed out", rawURL), err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return newFetchError(KindConnection, fmt.Sprintf("unable to connect to %s", rawURL), err)
	}

	return newFetchError(KindUnknown, err.Error(), err)
}
