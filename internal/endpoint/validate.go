// Package endpoint tracks the GraphQL endpoint the client talks to and the
// deduplicated history of endpoints used before.
package endpoint

import (
	"errors"
	"strings"
)

// Persisted key names.
const (
	LastURLKey  = "lastURL"
	PrevURLsKey = "previousURLs"
)

// Common errors
var (
	// ErrInvalidURL carries the fixed user-facing message shown inline.
	ErrInvalidURL = errors.New("invalid url")
	// ErrPersist wraps store write failures. The in-memory state has still
	// been updated when it is returned.
	ErrPersist = errors.New("failed to persist endpoint state")
)

// Validate trims raw and accepts it iff it starts with "http".
// This is a cheap heuristic, not a reachability or syntax check.
func Validate(raw string) (string, error) {
	url := strings.TrimSpace(raw)
	if !strings.HasPrefix(url, "http") {
		return "", ErrInvalidURL
	}
	return url, nil
}

// Unchanged reports whether raw, once trimmed, is exactly the current endpoint.
// Committing such input is a no-op.
func Unchanged(raw, current string) bool {
	return strings.TrimSpace(raw) == current
}
