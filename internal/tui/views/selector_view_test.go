package views

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/gqlswitch/internal/app"
	"github.com/artpar/gqlswitch/internal/config"
	"github.com/artpar/gqlswitch/internal/endpoint"
	"github.com/artpar/gqlswitch/internal/kv"
	"github.com/artpar/gqlswitch/internal/logging"
	"github.com/artpar/gqlswitch/internal/schema"
)

func newSession(t *testing.T, defaultURL string, seed map[string]string) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Driver: config.DriverMemory}
	cfg.DefaultURL = defaultURL

	a, err := app.New(context.Background(), cfg,
		app.WithStore(kv.NewMemoryStoreWith(seed)),
		app.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	return a
}

func schemaServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"__schema":{"queryType":{"name":"Query"}}}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func typeText(view *SelectorView, text string) *SelectorView {
	updated, _ := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(*SelectorView)
}

func press(view *SelectorView, key tea.KeyType) (*SelectorView, tea.Cmd) {
	updated, cmd := view.Update(tea.KeyMsg{Type: key})
	return updated.(*SelectorView), cmd
}

func pressRune(view *SelectorView, r rune) (*SelectorView, tea.Cmd) {
	updated, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return updated.(*SelectorView), cmd
}

// drain runs cmd and feeds every resulting message back into the view.
func drain(view *SelectorView, cmd tea.Cmd) *SelectorView {
	if cmd == nil {
		return view
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			view = drain(view, c)
		}
		return view
	}
	updated, next := view.Update(msg)
	view = updated.(*SelectorView)
	if _, ok := msg.(schemaStatusMsg); ok {
		return drain(view, next)
	}
	return view
}

func TestNewSelectorView(t *testing.T) {
	t.Run("starts from controller state", func(t *testing.T) {
		session := newSession(t, "http://a.test", nil)
		view := NewSelectorView(session)

		snap := view.Snapshot()
		assert.Equal(t, "Select Server", view.Title())
		assert.Equal(t, "http://a.test", snap.Input)
		assert.Equal(t, "http://a.test", snap.Current)
		assert.False(t, snap.CommitEnabled)
		assert.Equal(t, []string{"http://a.test"}, snap.History)
		assert.Equal(t, FocusInput, view.Focused())
	})

	t.Run("init without auto fetch does nothing", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		assert.Nil(t, view.Init())
	})

	t.Run("init with auto fetch probes current endpoint", func(t *testing.T) {
		server := schemaServer(t)
		view := NewSelectorView(newSession(t, server.URL, nil), WithAutoFetch(true))

		cmd := view.Init()
		require.NotNil(t, cmd)
		assert.Equal(t, schema.PhaseLoading, view.Snapshot().Schema.Phase())

		view = drain(view, cmd)
		assert.Equal(t, schema.PhaseSucceeded, view.Snapshot().Schema.Phase())
	})

	t.Run("no probe for empty endpoint", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", nil), WithAutoFetch(true))
		assert.Nil(t, view.Init())
		assert.Equal(t, schema.PhaseIdle, view.Snapshot().Schema.Phase())
	})
}

func TestSelectorView_Input(t *testing.T) {
	t.Run("typing enables commit", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		view = typeText(view, "/v2")

		assert.Equal(t, "http://a.test/v2", view.Snapshot().Input)
		assert.True(t, view.Snapshot().CommitEnabled)
	})

	t.Run("backspace removes last rune", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test/é", nil))
		view, _ = press(view, tea.KeyBackspace)
		assert.Equal(t, "http://a.test/", view.Snapshot().Input)
	})

	t.Run("ctrl+u clears input", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		view, _ = press(view, tea.KeyCtrlU)
		assert.Equal(t, "", view.Snapshot().Input)
	})

	t.Run("enter on invalid input shows error", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		view, _ = press(view, tea.KeyCtrlU)
		view = typeText(view, "ftp://b.test")
		view, _ = press(view, tea.KeyEnter)

		assert.Equal(t, "invalid url", view.Snapshot().Error)
		assert.Equal(t, "http://a.test", view.Snapshot().Current)
		assert.Contains(t, view.View(), "invalid url")
	})

	t.Run("editing clears error", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		view, _ = press(view, tea.KeyCtrlU)
		view = typeText(view, "nope")
		view, _ = press(view, tea.KeyEnter)
		require.NotEmpty(t, view.Snapshot().Error)

		view, _ = press(view, tea.KeySpace)
		assert.Empty(t, view.Snapshot().Error)
	})

	t.Run("enter on valid input commits", func(t *testing.T) {
		session := newSession(t, "http://a.test", nil)
		view := NewSelectorView(session)
		view, _ = press(view, tea.KeyCtrlU)
		view = typeText(view, "  http://b.test  ")
		view, cmd := press(view, tea.KeyEnter)

		assert.Nil(t, cmd)
		assert.Equal(t, "http://b.test", view.Snapshot().Current)
		assert.Equal(t, "http://b.test", view.Snapshot().Input)
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, view.Snapshot().History)
		assert.Equal(t, "http://b.test", session.Dispatcher().Endpoint())
	})

	t.Run("commit triggers probe with auto fetch", func(t *testing.T) {
		server := schemaServer(t)
		view := NewSelectorView(newSession(t, "http://a.test", nil), WithAutoFetch(true))
		view, _ = press(view, tea.KeyCtrlU)
		view = typeText(view, server.URL)
		view, cmd := press(view, tea.KeyEnter)

		require.NotNil(t, cmd)
		assert.Equal(t, schema.PhaseLoading, view.Snapshot().Schema.Phase())

		view = drain(view, cmd)
		assert.Equal(t, schema.PhaseSucceeded, view.Snapshot().Schema.Phase())
		assert.Contains(t, view.View(), schema.SuccessLine)
	})

	t.Run("unchanged commit does not probe", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil), WithAutoFetch(true))
		_, cmd := press(view, tea.KeyEnter)
		assert.Nil(t, cmd)
	})

}

func TestSelectorView_PersistFailure(t *testing.T) {
	store := kv.NewMemoryStore()
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Driver: config.DriverMemory}
	cfg.DefaultURL = "http://a.test"
	session, err := app.New(context.Background(), cfg,
		app.WithStore(store),
		app.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	store.FailWrites(errors.New("disk full"))
	view := NewSelectorView(session)
	view, _ = press(view, tea.KeyCtrlU)
	view = typeText(view, "http://b.test")
	view, cmd := press(view, tea.KeyEnter)

	assert.NotNil(t, cmd)
	assert.Equal(t, "http://b.test", view.Snapshot().Current)
	assert.NotEmpty(t, view.Snapshot().Warning)
	assert.Equal(t, view.Snapshot().Warning, view.Notification())

	updated, _ := view.Update(clearNotificationMsg{})
	assert.Empty(t, updated.(*SelectorView).Notification())
}

func TestSelectorView_History(t *testing.T) {
	seed := map[string]string{
		endpoint.LastURLKey:  "http://a.test",
		endpoint.PrevURLsKey: `["http://a.test","http://b.test","http://c.test"]`,
	}

	t.Run("tab moves focus", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		view, _ = press(view, tea.KeyTab)
		assert.Equal(t, FocusHistory, view.Focused())
		view, _ = press(view, tea.KeyTab)
		assert.Equal(t, FocusInput, view.Focused())
	})

	t.Run("cursor moves and clamps", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		view, _ = press(view, tea.KeyTab)

		view, _ = pressRune(view, 'k')
		assert.Equal(t, 0, view.Cursor())

		view, _ = pressRune(view, 'j')
		view, _ = press(view, tea.KeyDown)
		view, _ = press(view, tea.KeyDown)
		assert.Equal(t, 2, view.Cursor())

		view, _ = press(view, tea.KeyUp)
		assert.Equal(t, 1, view.Cursor())
	})

	t.Run("runes do not edit input while list focused", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		view, _ = press(view, tea.KeyTab)
		view = typeText(view, "zz")
		assert.Equal(t, "http://a.test", view.Snapshot().Input)
	})

	t.Run("enter switches to selected entry", func(t *testing.T) {
		session := newSession(t, "", seed)
		view := NewSelectorView(session)
		view, _ = press(view, tea.KeyTab)
		view, _ = pressRune(view, 'j')
		view, _ = press(view, tea.KeyEnter)

		assert.Equal(t, "http://b.test", view.Snapshot().Current)
		assert.Equal(t, "http://b.test", view.Snapshot().Input)
		assert.Equal(t, "http://b.test", session.Dispatcher().Endpoint())
		assert.Len(t, view.Snapshot().History, 3)
	})

	t.Run("delete removes selected entry", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		view, _ = press(view, tea.KeyTab)
		view, _ = press(view, tea.KeyDown)
		view, _ = press(view, tea.KeyDown)
		view, _ = pressRune(view, 'd')

		assert.Equal(t, []string{"http://a.test", "http://b.test"}, view.Snapshot().History)
		assert.Equal(t, 1, view.Cursor())
	})

	t.Run("removing current keeps current endpoint", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		view, _ = press(view, tea.KeyTab)
		view, _ = press(view, tea.KeyDelete)

		assert.Equal(t, []string{"http://b.test", "http://c.test"}, view.Snapshot().History)
		assert.Equal(t, "http://a.test", view.Snapshot().Current)
	})

	t.Run("copy uses clipboard", func(t *testing.T) {
		var copied string
		view := NewSelectorView(newSession(t, "", seed), WithClipboard(func(s string) error {
			copied = s
			return nil
		}))
		view, _ = press(view, tea.KeyTab)
		view, _ = pressRune(view, 'j')
		view, cmd := pressRune(view, 'y')

		assert.NotNil(t, cmd)
		assert.Equal(t, "http://b.test", copied)
		assert.Contains(t, view.Notification(), "Copied")
	})

	t.Run("copy failure notifies", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed), WithClipboard(func(string) error {
			return errors.New("no clipboard")
		}))
		view, _ = press(view, tea.KeyTab)
		view, _ = pressRune(view, 'y')
		assert.Contains(t, view.Notification(), "Copy failed")
	})

	t.Run("q quits from list", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		view, _ = press(view, tea.KeyTab)
		_, cmd := pressRune(view, 'q')
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("q types into input", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		view, cmd := pressRune(view, 'q')
		assert.Nil(t, cmd)
		assert.Equal(t, "http://a.testq", view.Snapshot().Input)
	})

	t.Run("view lists entries", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "", seed))
		out := view.View()
		assert.Contains(t, out, "Previous Servers")
		assert.Contains(t, out, "● http://a.test")
		assert.Contains(t, out, "http://c.test")
	})
}

func TestSelectorView_SchemaStatus(t *testing.T) {
	t.Run("stale result is dropped", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		updated, _ := view.Update(schemaStatusMsg{status: schema.Status{
			Endpoint: "http://old.test",
			Schema:   []byte(`{}`),
		}})
		view = updated.(*SelectorView)
		assert.Equal(t, schema.PhaseIdle, view.Snapshot().Schema.Phase())
	})

	t.Run("failure lists messages", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		updated, _ := view.Update(schemaStatusMsg{status: schema.Status{
			Endpoint:   "http://a.test",
			FetchError: schema.EncodeFetchError("connection refused"),
		}})
		view = updated.(*SelectorView)

		out := view.View()
		assert.Contains(t, out, schema.ErrorLine)
		assert.Contains(t, out, "connection refused")
	})

	t.Run("ctrl+c quits", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		_, cmd := press(view, tea.KeyCtrlC)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("window size is recorded", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		updated, cmd := view.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
		assert.Nil(t, cmd)
		assert.Contains(t, updated.View(), "http://a.test")
	})
}

func TestSelectorView_SchemaStatusOnSwitch(t *testing.T) {
	t.Run("in-flight probe does not leave loading behind", func(t *testing.T) {
		server := schemaServer(t)
		view := NewSelectorView(newSession(t, server.URL, nil))

		view, cmd := press(view, tea.KeyCtrlR)
		require.NotNil(t, cmd)
		assert.Equal(t, schema.PhaseLoading, view.Snapshot().Schema.Phase())

		view, _ = press(view, tea.KeyCtrlU)
		view = typeText(view, "http://b.test")
		view, _ = press(view, tea.KeyEnter)

		// The result for the old endpoint arrives after the switch
		view = drain(view, cmd)

		snap := view.Snapshot()
		assert.Equal(t, "http://b.test", snap.Current)
		assert.Equal(t, schema.PhaseIdle, snap.Schema.Phase())
		assert.NotContains(t, view.View(), schema.LoadingLine)
	})

	t.Run("previous endpoint's success is not shown", func(t *testing.T) {
		server := schemaServer(t)
		view := NewSelectorView(newSession(t, server.URL, nil))

		view, cmd := press(view, tea.KeyCtrlR)
		view = drain(view, cmd)
		require.Contains(t, view.View(), schema.SuccessLine)

		view, _ = press(view, tea.KeyCtrlU)
		view = typeText(view, "http://c.test")
		view, _ = press(view, tea.KeyEnter)

		assert.Equal(t, "http://c.test", view.Snapshot().Schema.Endpoint)
		assert.NotContains(t, view.View(), schema.SuccessLine)
	})

	t.Run("switching back shows the cached result", func(t *testing.T) {
		server := schemaServer(t)
		view := NewSelectorView(newSession(t, server.URL, nil))

		view, cmd := press(view, tea.KeyCtrlR)
		view = drain(view, cmd)

		view, _ = press(view, tea.KeyCtrlU)
		view = typeText(view, "http://c.test")
		view, _ = press(view, tea.KeyEnter)
		require.NotContains(t, view.View(), schema.SuccessLine)

		view, _ = press(view, tea.KeyTab)
		view, _ = press(view, tea.KeyEnter)

		assert.Equal(t, server.URL, view.Snapshot().Current)
		assert.Contains(t, view.View(), schema.SuccessLine)
	})

	t.Run("status for another endpoint is not rendered", func(t *testing.T) {
		view := NewSelectorView(newSession(t, "http://a.test", nil))
		view.snap.Schema = schema.Status{Endpoint: "http://other.test", Schema: []byte(`{}`)}
		assert.NotContains(t, view.View(), schema.SuccessLine)
	})
}
