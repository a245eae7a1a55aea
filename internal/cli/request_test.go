package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/gqlswitch/internal/dispatch"
)

func graphqlServer(t *testing.T, handler func(req dispatch.Request, r *http.Request) string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dispatch.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(handler(req, r)))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStatusCommand(t *testing.T) {
	t.Run("reports success", func(t *testing.T) {
		isolate(t)
		server := graphqlServer(t, func(req dispatch.Request, r *http.Request) string {
			assert.Contains(t, req.Query, "__schema")
			return `{"data":{"__schema":{"queryType":{"name":"Query"}}}}`
		})

		out, err := execute(t, "status", "--store", "memory", "--default-url", server.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "Endpoint: "+server.URL)
		assert.Contains(t, out, "Schema retrieved successfully")
	})

	t.Run("reports failure", func(t *testing.T) {
		isolate(t)
		server := graphqlServer(t, func(dispatch.Request, *http.Request) string {
			return `{"errors":[{"message":"introspection disabled"}]}`
		})

		out, err := execute(t, "status", "--store", "memory", "--default-url", server.URL)
		assert.ErrorIs(t, err, ErrSchemaUnavailable)
		assert.Contains(t, out, "There was an error fetching your schema:")
		assert.Contains(t, out, "introspection disabled")
	})
}

func TestQueryCommand(t *testing.T) {
	t.Run("sends variables operation and headers", func(t *testing.T) {
		isolate(t)
		server := graphqlServer(t, func(req dispatch.Request, r *http.Request) string {
			assert.Equal(t, "da2-key", r.Header.Get("X-API-KEY"))
			assert.Equal(t, "query GetUser($id: ID!, $n: Int) { user(id: $id) { name } }", req.Query)
			assert.Equal(t, "GetUser", req.OperationName)
			assert.Equal(t, "u1", req.Variables["id"])
			assert.Equal(t, float64(3), req.Variables["n"])
			return `{"data":{"user":{"name":"Ada"}}}`
		})

		out, err := execute(t, "query",
			"query GetUser($id: ID!, $n: Int) { user(id: $id) { name } }",
			"--var", "id=u1", "--var", "n=3",
			"--operation", "GetUser",
			"--store", "memory",
			"--default-url", server.URL,
			"--headers", `{"X-API-KEY":"da2-key"}`)
		require.NoError(t, err)
		assert.Contains(t, out, "HTTP 200")
		assert.Contains(t, out, `"name": "Ada"`)
	})

	t.Run("json output", func(t *testing.T) {
		isolate(t)
		server := graphqlServer(t, func(dispatch.Request, *http.Request) string {
			return `{"data":{"ok":true}}`
		})

		out, err := execute(t, "query", "{ ok }", "--json", "--store", "memory", "--default-url", server.URL)
		require.NoError(t, err)

		var result map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, float64(200), result["status"])
		assert.Equal(t, map[string]any{"ok": true}, result["data"])
	})

	t.Run("graphql errors fail the command", func(t *testing.T) {
		isolate(t)
		server := graphqlServer(t, func(dispatch.Request, *http.Request) string {
			return `{"errors":[{"message":"Cannot query field"}]}`
		})

		out, err := execute(t, "query", "{ nope }", "--store", "memory", "--default-url", server.URL)
		assert.Error(t, err)
		assert.Contains(t, out, "Cannot query field")
	})

	t.Run("reads query from stdin", func(t *testing.T) {
		isolate(t)
		server := graphqlServer(t, func(req dispatch.Request, r *http.Request) string {
			assert.Equal(t, "{ fromStdin }", req.Query)
			return `{"data":{"fromStdin":1}}`
		})

		cmd := NewRootCommand("test")
		out := &strings.Builder{}
		cmd.SetOut(out)
		cmd.SetIn(strings.NewReader("{ fromStdin }"))
		cmd.SetArgs([]string{"query", "-", "--store", "memory", "--default-url", server.URL})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "fromStdin")
	})

	t.Run("empty endpoint", func(t *testing.T) {
		isolate(t)
		_, err := execute(t, "query", "{ ok }", "--store", "memory")
		assert.ErrorIs(t, err, dispatch.ErrEmptyEndpoint)
	})

	t.Run("empty query", func(t *testing.T) {
		isolate(t)
		_, err := execute(t, "query", "  ", "--store", "memory", "--default-url", "http://a.test")
		assert.ErrorContains(t, err, "query is empty")
	})
}

func TestParseVariables(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"string", []string{"id=u1"}, map[string]any{"id": "u1"}, false},
		{"number", []string{"n=3"}, map[string]any{"n": float64(3)}, false},
		{"object", []string{`in={"a":true}`}, map[string]any{"in": map[string]any{"a": true}}, false},
		{"quoted string", []string{`s="3"`}, map[string]any{"s": "3"}, false},
		{"value with equals", []string{"q=a=b"}, map[string]any{"q": "a=b"}, false},
		{"missing equals", []string{"id"}, nil, true},
		{"missing name", []string{"=x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVariables(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubscribeCommand(t *testing.T) {
	isolate(t)
	upgrader := websocket.Upgrader{Subprotocols: []string{dispatch.Subprotocol}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg map[string]json.RawMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "connection_ack"}))

		var sub struct {
			ID      string           `json:"id"`
			Type    string           `json:"type"`
			Payload dispatch.Request `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub.Type)
		assert.Equal(t, "subscription { tick }", sub.Payload.Query)

		for _, n := range []int{1, 2, 3} {
			conn.WriteJSON(map[string]any{
				"id":      sub.ID,
				"type":    "next",
				"payload": map[string]any{"data": map[string]int{"tick": n}},
			})
		}
		conn.ReadMessage()
	}))
	defer server.Close()

	out, err := execute(t, "subscribe", "subscription { tick }", "--count", "2",
		"--store", "memory", "--default-url", server.URL)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"data":{"tick":1}}`, lines[0])
	assert.JSONEq(t, `{"data":{"tick":2}}`, lines[1])
}
