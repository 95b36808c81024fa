package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetwatch/pkg/log"
	"fleetwatch/pkg/models"

	"github.com/hashicorp/go-retryablehttp"
)

const maxErrorBody = 4096

// Client talks to one agent. It is safe for concurrent use.
type Client struct {
	endpoint string
	baseURL  string
	key      string
	timeout  time.Duration
	http     *retryablehttp.Client
}

// Endpoint returns the endpoint the client was created for.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// BaseURL returns the rewritten base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetOverview fetches a fresh overview. Nothing is cached.
func (c *Client) GetOverview(ctx context.Context) (*models.OverviewSummary, error) {
	var overview models.OverviewSummary
	if err := c.getJSON(ctx, "/overview", nil, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// Health calls the unauthenticated health operation.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var health models.HealthStatus
	if err := c.getJSON(ctx, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetContainerLogs opens a follow-mode log stream. The stream stays open
// until ctx is cancelled, the stream is closed or the agent ends it.
func (c *Client) GetContainerLogs(ctx context.Context, containerID string) (*LogStream, error) {
	query := url.Values{}
	query.Set("id", containerID)
	query.Set("follow", "true")

	resp, err := c.do(ctx, "/container/logs", query)
	if err != nil {
		return nil, err
	}
	return newLogStream(resp.Body), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, path, query)
	if err != nil {
		return err
	}
	defer c.closeBody(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return nil
}

// do sends a GET request and returns the response for 2xx answers only.
func (c *Client) do(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &UnreachableError{Endpoint: c.endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer c.closeBody(resp.Body)
		return nil, &StatusError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	return resp, nil
}

// closeBody drains the body so the connection can be reused.
func (c *Client) closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	if err := body.Close(); err != nil {
		log.Warn().Err(err).Str("endpoint", c.endpoint).Msg("Failed to close agent response body")
	}
}

func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload models.ErrorResponse
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
