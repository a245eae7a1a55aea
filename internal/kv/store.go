package kv

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrStoreClosed   = errors.New("kv store is closed")
	ErrUnknownDriver = errors.New("unknown kv store driver")
	ErrEmptyKey      = errors.New("kv key must not be empty")
)

// Store is the persistent key-value capability supplied by the host.
// Values survive across sessions. A missing key is reported with ok=false,
// never with an error.
type Store interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Close releases resources held by the store.
	Close() error
}
