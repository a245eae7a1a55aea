// Package schema models schema-fetch status as reported by the fetch
// collaborator and provides a small probe that produces it.
package schema

import (
	"encoding/json"
	"strings"
)

// Phase is the user-visible projection of a Status.
type Phase int

const (
	// PhaseIdle means no fetch has run for the endpoint.
	PhaseIdle Phase = iota
	// PhaseLoading means a fetch is in flight.
	PhaseLoading
	// PhaseSucceeded means the last fetch returned a schema.
	PhaseSucceeded
	// PhaseFailed means the last fetch reported errors.
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Status lines shown to the user.
const (
	LoadingLine = "Schema loading..."
	SuccessLine = "Schema retrieved successfully"
	ErrorLine   = "There was an error fetching your schema:"
)

// Status is the schema-fetch state of one endpoint.
type Status struct {
	Endpoint   string          `json:"endpoint,omitempty"`
	IsFetching bool            `json:"isFetching"`
	Schema     json.RawMessage `json:"schema,omitempty"`
	// FetchError is a JSON document of the form {"errors":[{"message":...}]}.
	FetchError string `json:"fetchError,omitempty"`
}

// Loading returns the status of a fetch in flight for endpoint.
func Loading(endpoint string) Status {
	return Status{Endpoint: endpoint, IsFetching: true}
}

// Phase projects the status onto one of the mutually exclusive phases.
// A fetch in flight hides the result of the previous one.
func (s Status) Phase() Phase {
	switch {
	case s.IsFetching:
		return PhaseLoading
	case s.FetchError != "":
		return PhaseFailed
	case len(s.Schema) > 0:
		return PhaseSucceeded
	default:
		return PhaseIdle
	}
}

type fetchErrorDoc struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Messages returns the error messages carried by FetchError. Text that does
// not decode is returned verbatim as a single message; a document with an
// empty errors list yields no messages.
func (s Status) Messages() []string {
	if s.FetchError == "" {
		return nil
	}

	var doc fetchErrorDoc
	if err := json.Unmarshal([]byte(s.FetchError), &doc); err != nil || doc.Errors == nil {
		return []string{s.FetchError}
	}

	msgs := make([]string, 0, len(doc.Errors))
	for _, e := range doc.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// Line renders the status as a single user-facing line. Idle renders empty.
func (s Status) Line() string {
	switch s.Phase() {
	case PhaseLoading:
		return LoadingLine
	case PhaseSucceeded:
		return SuccessLine
	case PhaseFailed:
		msgs := s.Messages()
		if len(msgs) == 0 {
			return ErrorLine
		}
		return ErrorLine + " " + strings.Join(msgs, "; ")
	default:
		return ""
	}
}

// EncodeFetchError builds a FetchError document from messages.
func EncodeFetchError(messages ...string) string {
	var doc fetchErrorDoc
	for _, m := range messages {
		doc.Errors = append(doc.Errors, struct {
			Message string `json:"message"`
		}{Message: m})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return strings.Join(messages, "; ")
	}
	return string(data)
}
