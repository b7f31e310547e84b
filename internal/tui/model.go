package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
	"github.com/rustacademy/academy/internal/runtime"
)

// errorDisplayDuration is how long a backend error stays on the status line.
const errorDisplayDuration = 30 * time.Second

// Backend is the service the terminal client hosts. The socket RPC client
// implements it.
type Backend interface {
	Snapshot() (runtime.Frame, error)
	Dispatch(e event.Envelope) error
}

// TickMsg drives the periodic frame poll.
type TickMsg time.Time

type frameLoadedMsg struct {
	frame runtime.Frame
	err   error
}

type dispatchedMsg struct {
	sent int
	err  error
}

// Model is the Bubble Tea model of the terminal client. It never owns
// application state: it renders the latest frame and turns key presses into
// host events.
type Model struct {
	backend Backend
	keys    KeyMap
	help    help.Model

	search       textinput.Model
	searchActive bool

	frame    runtime.Frame
	page     pageView
	hasFrame bool
	selected int
	showHelp bool

	width  int
	height int

	updateInterval time.Duration
	fetchInFlight  bool
	sent           uint64

	// outbox holds events waiting for the dispatch in flight. Only one
	// dispatch runs at a time so events reach the service in key order.
	outbox           []event.Envelope
	dispatchInFlight bool
	quitting         bool

	lastError   string
	lastErrorAt time.Time
	now         func() time.Time
}

// NewModel creates the client model. A non-positive interval falls back to
// model.DefaultUpdateInterval.
func NewModel(backend Backend, updateInterval time.Duration) *Model {
	if updateInterval <= 0 {
		updateInterval = model.DefaultUpdateInterval
	}

	search := textinput.New()
	search.Prompt = " "
	search.CharLimit = 200
	// A static cursor avoids blink redraws between polls.
	search.Cursor.SetMode(cursor.CursorStatic)

	return &Model{
		backend:        backend,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		search:         search,
		updateInterval: updateInterval,
		now:            time.Now,
	}
}

// Init fetches the first frame and starts polling.
func (m *Model) Init() tea.Cmd {
	m.fetchInFlight = true
	return tea.Batch(m.fetchFrameCmd(), m.tickCmd())
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *Model) fetchFrameCmd() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		frame, err := backend.Snapshot()
		return frameLoadedMsg{frame: frame, err: err}
	}
}

// send queues envs behind any dispatch in flight and starts the next
// dispatch when none is running.
func (m *Model) send(envs ...event.Envelope) tea.Cmd {
	m.outbox = append(m.outbox, envs...)
	if m.dispatchInFlight || len(m.outbox) == 0 {
		return nil
	}
	batch := m.outbox
	m.outbox = nil
	m.dispatchInFlight = true
	return m.dispatchCmd(batch...)
}

// dispatchCmd sends envelopes in order and stops at the first failure.
func (m *Model) dispatchCmd(envs ...event.Envelope) tea.Cmd {
	if len(envs) == 0 {
		return nil
	}
	backend := m.backend
	return func() tea.Msg {
		for i, e := range envs {
			if err := backend.Dispatch(e); err != nil {
				return dispatchedMsg{sent: i, err: err}
			}
		}
		return dispatchedMsg{sent: len(envs)}
	}
}

func (m *Model) applyFrame(f runtime.Frame) {
	m.frame = f
	m.hasFrame = true
	if f.Tree != nil {
		m.page = readPage(f.Tree)
	}
	m.search.Placeholder = m.page.Nav.Placeholder
	if !m.searchActive {
		m.search.SetValue(m.page.Nav.Value)
	}
	m.clampSelection()
}

func (m *Model) clampSelection() {
	switch {
	case len(m.page.Cards) == 0:
		m.selected = 0
	case m.selected >= len(m.page.Cards):
		m.selected = len(m.page.Cards) - 1
	case m.selected < 0:
		m.selected = 0
	}
}

func (m *Model) setError(err error) {
	m.lastError = err.Error()
	m.lastErrorAt = m.now()
}

func (m *Model) currentError() string {
	if m.lastError == "" || m.now().Sub(m.lastErrorAt) > errorDisplayDuration {
		return ""
	}
	return m.lastError
}

func (m *Model) selectedCard() (cardView, bool) {
	if m.selected < 0 || m.selected >= len(m.page.Cards) {
		return cardView{}, false
	}
	return m.page.Cards[m.selected], true
}
