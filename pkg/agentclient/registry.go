// Package agentclient keeps one HTTP client per agent endpoint and speaks
// the agent RPC surface.
package agentclient

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"fleetwatch/pkg/config"
	"fleetwatch/pkg/log"
	"fleetwatch/pkg/transport"
)

// Registry maps agent endpoints to clients. Clients are created lazily and
// live until the endpoint is evicted.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	key     string
	scheme  string
	timeout time.Duration
	retries int
}

// NewRegistry creates an empty registry using the given client settings.
func NewRegistry(cfg config.AgentClient) *Registry {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = config.DefaultAgentScheme
	}
	return &Registry{
		clients: make(map[string]*Client),
		key:     cfg.Key,
		scheme:  scheme,
		timeout: cfg.RequestTimeout,
		retries: cfg.RetryMax,
	}
}

// Client returns the client for endpoint, creating it on first use. Lookup
// and creation happen under one lock so concurrent callers share a client.
func (r *Registry) Client(endpoint string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[endpoint]; ok {
		return client, nil
	}

	baseURL, err := BaseURL(r.scheme, endpoint)
	if err != nil {
		return nil, err
	}

	client := &Client{
		endpoint: endpoint,
		baseURL:  baseURL,
		key:      r.key,
		timeout:  r.timeout,
		http:     transport.NewRetryableClient(transport.Options{RetryMax: r.retries}),
	}
	r.clients[endpoint] = client

	log.Debug().
		Str("endpoint", endpoint).
		Str("base_url", baseURL).
		Msg("Agent client created")

	return client, nil
}

// Evict drops the client for endpoint and closes its idle connections.
// Evicting an unknown endpoint does nothing.
func (r *Registry) Evict(endpoint string) {
	r.mu.Lock()
	client, ok := r.clients[endpoint]
	delete(r.clients, endpoint)
	r.mu.Unlock()

	if !ok {
		return
	}
	client.http.HTTPClient.CloseIdleConnections()
	log.Debug().Str("endpoint", endpoint).Msg("Agent client evicted")
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// BaseURL rewrites an endpoint into an absolute base URL. Endpoints that
// already carry a scheme are kept as they are.
func BaseURL(scheme, endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("%w: empty endpoint", ErrInvalidEndpoint)
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = scheme + "://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, endpoint)
	}

	return parsed.Scheme + "://" + parsed.Host + strings.TrimRight(parsed.Path, "/"), nil
}
