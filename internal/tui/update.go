package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/event"
)

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case TickMsg:
		// Skip the poll while one is still running; keep the ticker alive.
		if m.fetchInFlight {
			return m, m.tickCmd()
		}
		m.fetchInFlight = true
		return m, tea.Batch(m.fetchFrameCmd(), m.tickCmd())

	case frameLoadedMsg:
		m.fetchInFlight = false
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.applyFrame(msg.frame)
		return m, nil

	case dispatchedMsg:
		m.dispatchInFlight = false
		m.sent += uint64(msg.sent)
		if msg.err != nil {
			m.setError(msg.err)
		}
		next := m.send()
		if m.quitting && !m.dispatchInFlight {
			return m, tea.Quit
		}
		// Refresh right away so the result of the event shows before the next tick.
		if msg.sent > 0 && !m.fetchInFlight {
			m.fetchInFlight = true
			return m, tea.Batch(next, m.fetchFrameCmd())
		}
		return m, next
	}

	return m, nil
}

// handleKeyPress forwards every key to the service as KeyPressed, followed by
// whatever the key means locally.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	envs := []event.Envelope{event.New(app.NameKeyPressed, msg.String())}

	if m.searchActive {
		return m.handleSearchKey(msg, envs)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		// Quit once the outbox, including this key, has been delivered.
		m.quitting = true
		if cmd := m.send(envs...); m.dispatchInFlight {
			return m, cmd
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keys.Search):
		m.searchActive = true
		return m, tea.Batch(m.search.Focus(), m.send(envs...))

	case key.Matches(msg, m.keys.Left):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Right):
		if m.selected < len(m.page.Cards)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Purchase):
		envs = append(envs, m.pressCardButton(0)...)

	case key.Matches(msg, m.keys.Download):
		envs = append(envs, m.pressCardButton(1)...)

	case key.Matches(msg, m.keys.Random):
		envs = append(envs, event.Bare(app.NameNewRandomNumber))
	}

	return m, m.send(envs...)
}

func (m *Model) handleSearchKey(msg tea.KeyMsg, envs []event.Envelope) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Escape) || msg.Type == tea.KeyEnter {
		m.searchActive = false
		m.search.Blur()
		return m, m.send(envs...)
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := m.search.Value(); after != before && m.page.Nav.SearchEmit != "" {
		envs = append(envs, event.New(m.page.Nav.SearchEmit, after))
		m.selected = 0
	}
	return m, tea.Batch(cmd, m.send(envs...))
}

// pressCardButton fires the click binding of the idx-th button on the
// selected card.
func (m *Model) pressCardButton(idx int) []event.Envelope {
	card, ok := m.selectedCard()
	if !ok || idx >= len(card.Buttons) || card.Buttons[idx].Emit == "" {
		return nil
	}
	return []event.Envelope{event.Bare(card.Buttons[idx].Emit)}
}
