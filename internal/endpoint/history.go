package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/artpar/gqlswitch/internal/kv"
)

// Getter supplies the endpoint used to seed a missing or broken history.
type Getter interface {
	Get() string
}

// History is the ordered, duplicate-free list of endpoints used before.
// Every successful change rewrites the whole persisted slot.
type History struct {
	store      kv.Store
	current    Getter
	entries    []string
	maxEntries int
	logger     *slog.Logger
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithMaxEntries bounds the history. Loading and adding keep only the newest
// n entries. n <= 0 means unbounded, which is the default.
func WithMaxEntries(n int) HistoryOption {
	return func(h *History) {
		h.maxEntries = n
	}
}

// WithHistoryLogger sets the logger used for recovered read failures.
func WithHistoryLogger(logger *slog.Logger) HistoryOption {
	return func(h *History) {
		h.logger = logger
	}
}

// NewHistory creates a history manager. Call Load before use.
func NewHistory(store kv.Store, current Getter, opts ...HistoryOption) *History {
	h := &History{
		store:   store,
		current: current,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load reads the persisted history. An absent, unreadable or malformed slot
// yields a single entry holding the current endpoint instead of an error.
func (h *History) Load(ctx context.Context) []string {
	h.entries = h.read(ctx)
	return h.Entries()
}

func (h *History) read(ctx context.Context) []string {
	fallback := []string{h.current.Get()}

	raw, ok, err := h.store.Get(ctx, PrevURLsKey)
	if err != nil {
		h.logger.Warn("failed to read endpoint history", slog.Any("error", err))
		return fallback
	}
	if !ok {
		return fallback
	}

	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		h.logger.Warn("malformed endpoint history, using default",
			slog.String("key", PrevURLsKey),
			slog.Any("error", err))
		return fallback
	}
	if urls == nil {
		return fallback
	}

	deduped := make([]string, 0, len(urls))
	for _, u := range urls {
		if !slices.Contains(deduped, u) {
			deduped = append(deduped, u)
		}
	}
	return h.bound(deduped)
}

// bound keeps the newest maxEntries entries.
func (h *History) bound(entries []string) []string {
	if h.maxEntries <= 0 || len(entries) <= h.maxEntries {
		return entries
	}
	return slices.Clone(entries[len(entries)-h.maxEntries:])
}

// Entries returns a copy of the in-memory history.
func (h *History) Entries() []string {
	return slices.Clone(h.entries)
}

// Contains reports whether url is in the history.
func (h *History) Contains(url string) bool {
	return slices.Contains(h.entries, url)
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Add appends url unless it is already present. A duplicate is a silent
// no-op and does not touch the store.
func (h *History) Add(ctx context.Context, url string) (bool, error) {
	if h.Contains(url) {
		return false, nil
	}

	h.entries = h.bound(append(h.entries, url))

	return true, h.persist(ctx)
}

// Remove deletes url if present. An absent url is a silent no-op and does not
// touch the store.
func (h *History) Remove(ctx context.Context, url string) (bool, error) {
	i := slices.Index(h.entries, url)
	if i == -1 {
		return false, nil
	}

	h.entries = slices.Delete(slices.Clone(h.entries), i, i+1)
	return true, h.persist(ctx)
}

func (h *History) persist(ctx context.Context) error {
	data, err := json.Marshal(h.entries)
	if err != nil {
		return fmt.Errorf("%w: marshal history: %w", ErrPersist, err)
	}
	if err := h.store.Set(ctx, PrevURLsKey, string(data)); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersist, PrevURLsKey, err)
	}

	h.logger.Debug("endpoint history saved", slog.Int("count", len(h.entries)))
	return nil
}
