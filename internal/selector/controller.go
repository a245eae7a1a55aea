// Package selector binds input validation, the current endpoint and the
// endpoint history into the state behind the "Select Server" surface.
//
// A Controller is owned by a single goroutine (the UI event loop). Mutations
// are serialized by that loop; the controller itself takes no locks.
package selector

import (
	"context"
	"errors"
	"log/slog"

	"github.com/artpar/gqlswitch/internal/endpoint"
	"github.com/artpar/gqlswitch/internal/schema"
)

// Outcome is the result of a commit attempt.
type Outcome int

const (
	// OutcomeUnchanged means the input equals the current endpoint.
	OutcomeUnchanged Outcome = iota
	// OutcomeRejected means validation failed.
	OutcomeRejected
	// OutcomeCommitted means the input became the current endpoint.
	OutcomeCommitted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeCommitted:
		return "committed"
	default:
		return "unchanged"
	}
}

// PersistWarning is shown when the store refused a write.
const PersistWarning = "Could not save endpoint settings; changes last until exit"

// Snapshot is everything the UI needs to render.
type Snapshot struct {
	Input         string
	Current       string
	Error         string
	CommitEnabled bool
	History       []string
	Schema        schema.Status
	Warning       string
}

// Listener receives a snapshot after every mutation.
type Listener func(Snapshot)

// Controller drives endpoint selection.
type Controller struct {
	current *endpoint.Current
	history *endpoint.History
	logger  *slog.Logger

	input   string
	errText string
	status  schema.Status
	warning string

	listeners       map[int]Listener
	nextListener    int
	endpointChanged []func(string)
	cachedStatus    func(endpoint string) (schema.Status, bool)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithCachedStatus sets the lookup used to restore the last known schema
// status of an endpoint when it becomes current.
func WithCachedStatus(fn func(endpoint string) (schema.Status, bool)) Option {
	return func(c *Controller) {
		c.cachedStatus = fn
	}
}

// New creates a controller over already loaded state. The input starts out
// holding the current endpoint.
func New(current *endpoint.Current, history *endpoint.History, opts ...Option) *Controller {
	c := &Controller{
		current:   current,
		history:   history,
		logger:    slog.Default(),
		input:     current.Get(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for resyncs and returns a function removing it.
func (c *Controller) Subscribe(fn Listener) func() {
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		delete(c.listeners, id)
	}
}

// OnEndpointChange registers fn to be called with the new endpoint each time
// the current endpoint changes.
func (c *Controller) OnEndpointChange(fn func(string)) {
	c.endpointChanged = append(c.endpointChanged, fn)
}

// Current returns the current endpoint.
func (c *Controller) Current() string {
	return c.current.Get()
}

// Input returns the text being edited.
func (c *Controller) Input() string {
	return c.input
}

// Error returns the visible validation error, if any.
func (c *Controller) Error() string {
	return c.errText
}

// History returns the endpoint history.
func (c *Controller) History() []string {
	return c.history.Entries()
}

// SchemaStatus returns the most recently received schema status.
func (c *Controller) SchemaStatus() schema.Status {
	return c.status
}

// CanCommit reports whether the commit affordance is enabled.
func (c *Controller) CanCommit() bool {
	return !endpoint.Unchanged(c.input, c.current.Get())
}

// Snapshot returns the render state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Input:         c.input,
		Current:       c.current.Get(),
		Error:         c.errText,
		CommitEnabled: c.CanCommit(),
		History:       c.history.Entries(),
		Schema:        c.status,
		Warning:       c.warning,
	}
}

// Edit replaces the input text and hides any validation error.
func (c *Controller) Edit(text string) {
	c.input = text
	c.errText = ""
	c.resync()
}

// Commit validates the input and, if accepted, makes it the current
// endpoint and records it in the history.
func (c *Controller) Commit(ctx context.Context) (Outcome, error) {
	if !c.CanCommit() {
		return OutcomeUnchanged, nil
	}

	url, err := endpoint.Validate(c.input)
	if err != nil {
		c.errText = err.Error()
		c.logger.Debug("endpoint rejected", slog.String("input", c.input))
		c.resync()
		return OutcomeRejected, err
	}

	err = c.apply(ctx, url)
	c.resync()
	return OutcomeCommitted, err
}

// SwitchTo makes a history entry current without validating it.
func (c *Controller) SwitchTo(ctx context.Context, url string) error {
	err := c.apply(ctx, url)
	c.resync()
	return err
}

// apply is the committed transition shared by Commit and SwitchTo.
func (c *Controller) apply(ctx context.Context, url string) error {
	previous := c.current.Get()

	setErr := c.current.Set(ctx, url)
	_, addErr := c.history.Add(ctx, url)

	c.input = url
	c.errText = ""
	c.notePersist(errors.Join(setErr, addErr))

	if url != previous {
		c.status = c.statusFor(url)
		c.logger.Info("endpoint switched",
			slog.String("from", previous),
			slog.String("to", url))
		for _, fn := range c.endpointChanged {
			fn(url)
		}
	}

	return errors.Join(setErr, addErr)
}

// Remove deletes url from the history. The current endpoint is never
// changed, even when it equals url.
func (c *Controller) Remove(ctx context.Context, url string) (bool, error) {
	removed, err := c.history.Remove(ctx, url)
	if !removed {
		return false, nil
	}
	c.notePersist(err)
	c.resync()
	return true, err
}

// SetSchemaStatus records the latest status reported by the fetch
// collaborator. The last status received wins.
func (c *Controller) SetSchemaStatus(status schema.Status) {
	c.status = status
	c.resync()
}

// statusFor is the schema status shown right after url becomes current: the
// cached one if any, idle otherwise. A status of the previous endpoint,
// including a probe still in flight, never carries over.
func (c *Controller) statusFor(url string) schema.Status {
	if c.cachedStatus != nil {
		if status, ok := c.cachedStatus(url); ok && status.Endpoint == url {
			return status
		}
	}
	return schema.Status{Endpoint: url}
}

func (c *Controller) notePersist(err error) {
	if err == nil {
		c.warning = ""
		return
	}
	c.warning = PersistWarning
	c.logger.Warn("failed to persist endpoint state", slog.Any("error", err))
}

func (c *Controller) resync() {
	if len(c.listeners) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range c.listeners {
		fn(snap)
	}
}
