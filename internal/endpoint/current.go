package endpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/gqlswitch/internal/kv"
)

// Current holds the single active endpoint and mirrors it to the store.
type Current struct {
	store    kv.Store
	fallback string
	value    string
	logger   *slog.Logger
}

// NewCurrent creates the current endpoint state. fallback is used when the
// store has no last-used value.
func NewCurrent(store kv.Store, fallback string, logger *slog.Logger) *Current {
	if logger == nil {
		logger = slog.Default()
	}
	return &Current{
		store:    store,
		fallback: fallback,
		value:    fallback,
		logger:   logger,
	}
}

// Load seeds the in-memory value from the store and returns it.
// Read failures are treated as an absent value.
func (c *Current) Load(ctx context.Context) string {
	v, ok, err := c.store.Get(ctx, LastURLKey)
	switch {
	case err != nil:
		c.logger.Warn("failed to read last used endpoint", slog.Any("error", err))
		c.value = c.fallback
	case ok:
		c.value = v
	default:
		c.value = c.fallback
	}
	return c.value
}

// Get returns the current endpoint. It is never undefined: at worst "".
func (c *Current) Get() string {
	return c.value
}

// Set makes url current and writes it to the last-used slot. Any string is
// accepted; validation happens before this is called.
func (c *Current) Set(ctx context.Context, url string) error {
	c.value = url
	if err := c.store.Set(ctx, LastURLKey, url); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersist, LastURLKey, err)
	}
	c.logger.Debug("current endpoint set", slog.String("endpoint", url))
	return nil
}
