package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Subprotocol is the GraphQL over WebSocket protocol spoken by Subscribe.
const Subprotocol = "graphql-transport-ws"

// Message types of the graphql-transport-ws protocol.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// ErrNotAcknowledged is returned when the server closes or misbehaves before
// acknowledging the connection.
var ErrNotAcknowledged = errors.New("subscription connection not acknowledged")

// SubscriptionError carries the errors of an "error" message.
type SubscriptionError struct {
	Errors []GraphQLError
}

func (e *SubscriptionError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "subscription failed: " + strings.Join(msgs, "; ")
}

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebSocketURL maps an http(s) endpoint to its ws(s) equivalent.
func WebSocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

// Subscribe runs req as a subscription and calls onNext for every result
// until the server completes it, an error occurs, or ctx is cancelled.
// The static headers are sent both on the handshake and as the
// connection_init payload.
func (c *Client) Subscribe(ctx context.Context, req Request, onNext func(*Response)) error {
	if c.target.Endpoint == "" {
		return ErrEmptyEndpoint
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.timeout,
		Subprotocols:     []string{Subprotocol},
		Jar:              c.httpClient.Jar,
	}

	header := make(http.Header)
	for k, v := range c.target.Headers {
		header.Set(k, v)
	}

	conn, resp, err := dialer.DialContext(ctx, WebSocketURL(c.target.Endpoint), header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	initPayload, err := json.Marshal(c.target.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode connection payload: %w", err)
	}
	if err := conn.WriteJSON(wsMessage{Type: msgConnectionInit, Payload: initPayload}); err != nil {
		return fmt.Errorf("failed to send connection_init: %w", err)
	}

	if err := awaitAck(conn); err != nil {
		return ctxErr(ctx, err)
	}

	id := uuid.New().String()
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	if err := conn.WriteJSON(wsMessage{ID: id, Type: msgSubscribe, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return ctxErr(ctx, fmt.Errorf("failed to read message: %w", err))
		}

		switch msg.Type {
		case msgPing:
			if err := conn.WriteJSON(wsMessage{Type: msgPong}); err != nil {
				return ctxErr(ctx, fmt.Errorf("failed to send pong: %w", err))
			}
		case msgNext:
			if msg.ID != id {
				continue
			}
			result := &Response{ID: id}
			if err := json.Unmarshal(msg.Payload, result); err != nil {
				return fmt.Errorf("failed to decode result: %w", err)
			}
			onNext(result)
		case msgError:
			if msg.ID != id {
				continue
			}
			var errs []GraphQLError
			if err := json.Unmarshal(msg.Payload, &errs); err != nil {
				return fmt.Errorf("failed to decode error: %w", err)
			}
			return &SubscriptionError{Errors: errs}
		case msgComplete:
			if msg.ID == id {
				return nil
			}
		}
	}
}

func awaitAck(conn *websocket.Conn) error {
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("%w: %w", ErrNotAcknowledged, err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgPing:
			if err := conn.WriteJSON(wsMessage{Type: msgPong}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: got %q", ErrNotAcknowledged, msg.Type)
		}
	}
}

// ctxErr prefers the context's error when a read failed because ctx ended.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
