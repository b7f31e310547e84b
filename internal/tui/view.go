package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	minWidth  = 60
	minHeight = 20
)

// View renders the client.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Connecting..."
	}
	if m.width < minWidth || m.height < minHeight {
		return fmt.Sprintf("Terminal too small. Resize to at least %dx%d.", minWidth, minHeight)
	}
	if !m.hasFrame {
		msg := "Waiting for the first frame..."
		if e := m.currentError(); e != "" {
			msg += "\n" + errorStyle.Render(e)
		}
		return msg
	}

	statusLine := m.renderStatusLine()
	var helpView string
	if m.showHelp {
		helpView = m.help.FullHelpView(m.keys.FullHelp())
	} else {
		helpView = m.help.ShortHelpView(m.keys.ShortHelp())
	}

	bodyHeight := m.height - lipgloss.Height(statusLine) - lipgloss.Height(helpView)
	contentWidth := m.width - sidebarWidth

	nav := m.renderNav(contentWidth)
	chart := m.renderPriceChart(contentWidth - 2)
	cardsHeight := bodyHeight - lipgloss.Height(nav) - priceChartHeight() - 1
	if cardsHeight < 3 {
		// Not enough room for the chart; give it to the cards.
		chart = ""
		cardsHeight = bodyHeight - lipgloss.Height(nav)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		nav,
		m.renderCards(contentWidth, cardsHeight),
		chart,
	)
	content = lipgloss.NewStyle().Width(contentWidth).Height(bodyHeight).MaxHeight(bodyHeight).Render(content)

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(bodyHeight), content)
	return lipgloss.JoinVertical(lipgloss.Left, body, statusLine, helpView)
}

func (m *Model) renderStatusLine() string {
	s := m.frame.State
	clock := "--:--:--"
	if t, ok := s.Clock(); ok {
		clock = t
	}

	parts := []string{
		fmt.Sprintf("Clicks: %d", s.ClickCount),
		fmt.Sprintf("Random: %d", s.RandomNumber),
		fmt.Sprintf("Clock: %s", clock),
		fmt.Sprintf("Courses: %d", len(m.page.Cards)),
		fmt.Sprintf("Rev %d / Seq %d", m.frame.Rev, m.frame.Seq),
		fmt.Sprintf("Sent: %d", m.sent),
	}
	line := strings.Join(parts, " │ ")
	if e := m.currentError(); e != "" {
		line += " │ " + errorStyle.Render("Error: "+e)
	}
	return statusStyle.Width(m.width).MaxHeight(1).Render(line)
}
