package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/artpar/gqlswitch/internal/dispatch"
	"github.com/artpar/gqlswitch/internal/endpoint"
	"github.com/artpar/gqlswitch/internal/schema"
	"github.com/artpar/gqlswitch/internal/selector"
	"github.com/artpar/gqlswitch/internal/tui"
)

// Session is what the view needs from the application.
type Session interface {
	Controller() *selector.Controller
	Dispatcher() *dispatch.Client
	Fetcher() *schema.Fetcher
}

// Focus is the focused area of the view.
type Focus int

const (
	FocusInput Focus = iota
	FocusHistory
)

// schemaStatusMsg carries a probe result back into the update loop.
type schemaStatusMsg struct {
	status schema.Status
}

// clearNotificationMsg is sent to clear the notification.
type clearNotificationMsg struct{}

// SelectorView is the "Select Server" screen.
type SelectorView struct {
	session Session
	ctrl    *selector.Controller
	snap    selector.Snapshot

	focus  Focus
	cursor int
	width  int
	height int

	autoFetch       bool
	endpointChanged bool
	notification    string
	copy            func(string) error
}

// Option configures a SelectorView.
type Option func(*SelectorView)

// WithAutoFetch enables schema probing on start and on every endpoint change.
func WithAutoFetch(enabled bool) Option {
	return func(v *SelectorView) {
		v.autoFetch = enabled
	}
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(v *SelectorView) {
		v.copy = fn
	}
}

// NewSelectorView creates the view over session's controller.
func NewSelectorView(session Session, opts ...Option) *SelectorView {
	v := &SelectorView{
		session: session,
		ctrl:    session.Controller(),
		copy:    clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.snap = v.ctrl.Snapshot()
	v.ctrl.Subscribe(func(s selector.Snapshot) {
		v.snap = s
		v.clampCursor()
	})
	v.ctrl.OnEndpointChange(func(string) {
		v.endpointChanged = true
	})

	return v
}

// Title returns the view title.
func (v *SelectorView) Title() string {
	return "Select Server"
}

// Snapshot returns the state the view last rendered from.
func (v *SelectorView) Snapshot() selector.Snapshot {
	return v.snap
}

// Focused returns the focused area.
func (v *SelectorView) Focused() Focus {
	return v.focus
}

// Cursor returns the selected history index.
func (v *SelectorView) Cursor() int {
	return v.cursor
}

// Notification returns the transient notification text.
func (v *SelectorView) Notification() string {
	return v.notification
}

// SetSize sets the view dimensions.
func (v *SelectorView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// Init starts the first schema probe when auto fetch is on.
func (v *SelectorView) Init() tea.Cmd {
	if !v.autoFetch {
		return nil
	}
	return v.fetchCmd()
}

// Update handles messages.
func (v *SelectorView) Update(msg tea.Msg) (tui.Component, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetSize(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		cmd = v.handleKey(msg)

	case schemaStatusMsg:
		// Results for an endpoint that is no longer current are stale.
		if msg.status.Endpoint != v.ctrl.Current() {
			return v, nil
		}
		v.ctrl.SetSchemaStatus(msg.status)
		return v, nil

	case clearNotificationMsg:
		v.notification = ""
		return v, nil
	}

	if v.endpointChanged {
		v.endpointChanged = false
		if v.autoFetch {
			cmd = tea.Batch(cmd, v.fetchCmd())
		}
	}
	return v, cmd
}

func (v *SelectorView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	if msg.Type == tea.KeyCtrlR {
		return v.fetchCmd()
	}

	if v.focus == FocusHistory {
		return v.handleHistoryKey(msg)
	}
	return v.handleInputKey(msg)
}

func (v *SelectorView) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	ctx := context.Background()

	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		v.focus = FocusHistory
	case tea.KeyEnter:
		if _, err := v.ctrl.Commit(ctx); errors.Is(err, endpoint.ErrPersist) {
			return v.notify(v.snap.Warning)
		}
	case tea.KeyBackspace:
		runes := []rune(v.ctrl.Input())
		if len(runes) > 0 {
			v.ctrl.Edit(string(runes[:len(runes)-1]))
		}
	case tea.KeyCtrlU:
		v.ctrl.Edit("")
	case tea.KeySpace:
		v.ctrl.Edit(v.ctrl.Input() + " ")
	case tea.KeyRunes:
		v.ctrl.Edit(v.ctrl.Input() + string(msg.Runes))
	}
	return nil
}

func (v *SelectorView) handleHistoryKey(msg tea.KeyMsg) tea.Cmd {
	ctx := context.Background()
	entries := v.snap.History

	switch msg.Type {
	case tea.KeyTab, tea.KeyEsc:
		v.focus = FocusInput
		return nil
	case tea.KeyUp:
		v.moveCursor(-1)
		return nil
	case tea.KeyDown:
		v.moveCursor(1)
		return nil
	case tea.KeyEnter:
		if len(entries) == 0 {
			return nil
		}
		if err := v.ctrl.SwitchTo(ctx, entries[v.cursor]); err != nil {
			return v.notify(v.snap.Warning)
		}
		return nil
	case tea.KeyDelete:
		return v.removeSelected(ctx)
	case tea.KeyRunes:
	default:
		return nil
	}

	switch string(msg.Runes) {
	case "k":
		v.moveCursor(-1)
	case "j":
		v.moveCursor(1)
	case "d", "x":
		return v.removeSelected(ctx)
	case "y":
		if len(entries) > 0 {
			return v.copyEntry(entries[v.cursor])
		}
	case "r":
		return v.fetchCmd()
	case "q":
		return tea.Quit
	}
	return nil
}

func (v *SelectorView) removeSelected(ctx context.Context) tea.Cmd {
	if len(v.snap.History) == 0 {
		return nil
	}
	if _, err := v.ctrl.Remove(ctx, v.snap.History[v.cursor]); err != nil {
		return v.notify(v.snap.Warning)
	}
	return nil
}

func (v *SelectorView) moveCursor(delta int) {
	v.cursor += delta
	v.clampCursor()
}

func (v *SelectorView) clampCursor() {
	n := len(v.snap.History)
	if v.cursor >= n {
		v.cursor = n - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
}

func (v *SelectorView) copyEntry(url string) tea.Cmd {
	if err := v.copy(url); err != nil {
		return v.notify("✗ Copy failed")
	}
	return v.notify("✓ Copied " + url)
}

func (v *SelectorView) notify(text string) tea.Cmd {
	v.notification = text
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return clearNotificationMsg{}
	})
}

// fetchCmd marks the schema as loading and probes the current endpoint in
// the background. The result re-enters Update tagged with its endpoint.
func (v *SelectorView) fetchCmd() tea.Cmd {
	current := v.ctrl.Current()
	if current == "" {
		return nil
	}

	v.ctrl.SetSchemaStatus(schema.Loading(current))
	client := v.session.Dispatcher()
	fetcher := v.session.Fetcher()

	return func() tea.Msg {
		return schemaStatusMsg{status: fetcher.Fetch(context.Background(), client)}
	}
}

// View renders the view.
func (v *SelectorView) View() string {
	var b strings.Builder

	b.WriteString(tui.TitleStyle.Render(v.Title()))
	b.WriteString("\n")

	input := v.snap.Input
	if v.focus == FocusInput {
		input += "█"
	}
	inputBox := tui.BorderStyle(v.focus == FocusInput)
	if v.width > 4 {
		inputBox = inputBox.Width(v.width - 4)
	}
	b.WriteString(inputBox.Render(input))
	b.WriteString("\n")

	if v.snap.Error != "" {
		b.WriteString(tui.ErrorStyle.Render(v.snap.Error))
		b.WriteString("\n")
	}

	button := "[ Change Schema URL ]"
	if v.snap.CommitEnabled {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent).Render(button))
	} else {
		b.WriteString(tui.MutedStyle.Render(button + " (unchanged)"))
	}
	b.WriteString("\n")

	if line := v.schemaLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if v.snap.Warning != "" {
		b.WriteString(tui.WarningStyle.Render(v.snap.Warning))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(tui.SubheadingStyle.Render("Previous Servers"))
	b.WriteString("\n")
	for i, entry := range v.snap.History {
		marker := "  "
		if entry == v.snap.Current {
			marker = "● "
		}
		label := entry
		if label == "" {
			label = "(empty)"
		}
		line := marker + label
		if v.focus == FocusHistory && i == v.cursor {
			line = lipgloss.NewStyle().Reverse(true).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if v.notification != "" {
		b.WriteString(v.notification)
		b.WriteString("\n")
	}
	b.WriteString(tui.MutedStyle.Render(v.helpLine()))

	return b.String()
}

func (v *SelectorView) schemaLine() string {
	status := v.snap.Schema
	if status.Endpoint != v.snap.Current {
		return ""
	}
	switch status.Phase() {
	case schema.PhaseLoading:
		return tui.WarningStyle.Render(status.Line())
	case schema.PhaseSucceeded:
		return tui.SuccessStyle.Render(status.Line())
	case schema.PhaseFailed:
		return tui.ErrorStyle.Render(schema.ErrorLine) + "\n" +
			tui.ErrorStyle.Render(strings.Join(status.Messages(), "\n"))
	default:
		return ""
	}
}

func (v *SelectorView) helpLine() string {
	if v.focus == FocusHistory {
		return "enter switch • d delete • y copy • r refetch • tab input • q quit"
	}
	return fmt.Sprintf("enter commit • ctrl+u clear • ctrl+r refetch • tab history (%d) • ctrl+c quit", len(v.snap.History))
}
