// Package dispatch sends GraphQL operations to the current endpoint.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// Common errors
var (
	ErrEmptyEndpoint = errors.New("no endpoint selected")
	ErrBadHeaders    = errors.New("headers must be a JSON object of strings")
)

// Target is what the dispatcher is built from.
type Target struct {
	Endpoint string
	Headers  map[string]string
}

// Request is a GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// GraphQLError is one entry of a response's errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Response is a decoded GraphQL response.
type Response struct {
	ID         string          `json:"-"`
	StatusCode int             `json:"-"`
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Duration   time.Duration   `json:"-"`
}

// HasErrors reports whether the server returned GraphQL errors.
func (r *Response) HasErrors() bool {
	return len(r.Errors) > 0
}

// HTTPError is returned when the server answers with a body that is not a
// GraphQL response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("unexpected HTTP %d: %s", e.StatusCode, body)
}

// Client performs GraphQL requests against one fixed Target. It is never
// mutated: a new endpoint means a new Client.
type Client struct {
	target     Target
	httpClient *http.Client
	timeout    time.Duration
}

// Option is a function that configures the Client.
type Option func(*Client)

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// WithTransport sets a custom HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = transport
	}
}

// New creates a client for target.
func New(target Target, opts ...Option) *Client {
	headers := make(map[string]string, len(target.Headers))
	for k, v := range target.Headers {
		headers[k] = v
	}
	target.Headers = headers

	c := &Client{
		target: target,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     newJar(),
		},
		timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func newJar() http.CookieJar {
	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil
	}
	return jar
}

// Endpoint returns the endpoint this client talks to.
func (c *Client) Endpoint() string {
	return c.target.Endpoint
}

// Headers returns a copy of the static headers sent with every request.
func (c *Client) Headers() map[string]string {
	out := make(map[string]string, len(c.target.Headers))
	for k, v := range c.target.Headers {
		out[k] = v
	}
	return out
}

// Do sends req and decodes the GraphQL response. GraphQL-level errors are
// returned in Response.Errors, not as an error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.target.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/graphql-response+json, application/json")
	for k, v := range c.target.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	resp := &Response{
		ID:         uuid.New().String(),
		StatusCode: httpResp.StatusCode,
		Duration:   time.Since(start),
	}
	if err := json.Unmarshal(body, resp); err != nil || (resp.Data == nil && resp.Errors == nil) {
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

// ParseHeaders decodes the static header blob, a JSON object such as
// {"X-API-KEY": "..."}. An empty blob yields no headers.
func ParseHeaders(blob string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(blob) == "" {
		return headers, nil
	}
	if err := json.Unmarshal([]byte(blob), &headers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeaders, err)
	}
	if headers == nil {
		headers = make(map[string]string)
	}
	return headers, nil
}
