package schema

import (
	"bytes"
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/artpar/gqlswitch/internal/dispatch"
)

// IntrospectionQuery is the probe sent to an endpoint. It asks only for the
// root types so that large schemas stay cheap to fetch.
const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types { name kind }
  }
}`

// Fetcher probes endpoints for their schema. Concurrent probes of one
// endpoint share a single request, and the last status of every endpoint is
// kept in an LRU cache.
type Fetcher struct {
	group  singleflight.Group
	cache  *lru.Cache[string, Status]
	logger *slog.Logger
}

// NewFetcher creates a fetcher remembering up to cacheSize endpoints.
func NewFetcher(cacheSize int, logger *slog.Logger) (*Fetcher, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	c, err := lru.New[string, Status](cacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{cache: c, logger: logger}, nil
}

// Fetch probes the endpoint of client. The returned status is tagged with
// that endpoint so a caller can discard it if the endpoint changed meanwhile.
func (f *Fetcher) Fetch(ctx context.Context, client *dispatch.Client) Status {
	endpoint := client.Endpoint()

	v, _, _ := f.group.Do(endpoint, func() (any, error) {
		return f.probe(ctx, client), nil
	})
	status := v.(Status)

	f.cache.Add(endpoint, status)
	return status
}

// Cached returns the last status fetched for endpoint.
func (f *Fetcher) Cached(endpoint string) (Status, bool) {
	return f.cache.Get(endpoint)
}

func (f *Fetcher) probe(ctx context.Context, client *dispatch.Client) Status {
	endpoint := client.Endpoint()
	f.logger.Debug("fetching schema", slog.String("endpoint", endpoint))

	resp, err := client.Do(ctx, dispatch.Request{
		Query:         IntrospectionQuery,
		OperationName: "IntrospectionQuery",
	})
	if err != nil {
		f.logger.Warn("schema fetch failed",
			slog.String("endpoint", endpoint),
			slog.Any("error", err))
		return Status{Endpoint: endpoint, FetchError: EncodeFetchError(err.Error())}
	}

	if resp.HasErrors() {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return Status{Endpoint: endpoint, FetchError: EncodeFetchError(msgs...)}
	}

	if len(resp.Data) == 0 || bytes.Equal(resp.Data, []byte("null")) {
		return Status{Endpoint: endpoint, FetchError: EncodeFetchError("no schema returned")}
	}

	f.logger.Debug("schema fetched",
		slog.String("endpoint", endpoint),
		slog.Duration("duration", resp.Duration))
	return Status{Endpoint: endpoint, Schema: resp.Data}
}
