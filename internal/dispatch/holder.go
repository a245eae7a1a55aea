package dispatch

import (
	"log/slog"
	"sync"
)

// Holder owns the Client for the current endpoint and replaces it whenever
// the endpoint changes.
type Holder struct {
	mu      sync.RWMutex
	client  *Client
	headers map[string]string
	opts    []Option
	logger  *slog.Logger
	builds  int
}

// NewHolder creates a holder and builds the first client for endpoint.
func NewHolder(endpoint string, headers map[string]string, logger *slog.Logger, opts ...Option) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Holder{
		headers: headers,
		opts:    opts,
		logger:  logger,
	}
	h.Rebuild(endpoint)
	return h
}

// Rebuild constructs a fresh client for endpoint. Calling it with the
// endpoint already in use is a no-op.
func (h *Holder) Rebuild(endpoint string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil && h.client.Endpoint() == endpoint {
		return
	}

	h.client = New(Target{Endpoint: endpoint, Headers: h.headers}, h.opts...)
	h.builds++
	h.logger.Debug("dispatcher rebuilt", slog.String("endpoint", endpoint))
}

// Client returns the client for the current endpoint.
func (h *Holder) Client() *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

// Builds returns how many clients have been constructed.
func (h *Holder) Builds() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.builds
}
