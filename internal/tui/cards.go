package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const minCardWidth = 28

func (m *Model) renderNav(width int) string {
	nv := m.page.Nav

	var buttons []string
	for _, b := range nv.Buttons {
		buttons = append(buttons, navButtonStyle.Render(b))
	}
	right := lipgloss.JoinHorizontal(lipgloss.Center, buttons...)

	searchWidth := width - lipgloss.Width(right) - 6
	if searchWidth < 10 {
		searchWidth = 10
	}
	m.search.Width = searchWidth - 2

	label := helpStyle.Render("/")
	if m.searchActive {
		label = cardTitleStyle.Render("/")
	}
	left := lipgloss.NewStyle().Width(searchWidth).Render(label + m.search.View())

	return navStyle.Width(width).Render(lipgloss.JoinHorizontal(lipgloss.Center, left, right))
}

func (m *Model) renderCards(width, height int) string {
	if len(m.page.Cards) == 0 {
		msg := "No courses"
		if m.search.Value() != "" {
			msg = fmt.Sprintf("No courses match %q", m.search.Value())
		}
		return lipgloss.NewStyle().Width(width).Height(height).Render(helpStyle.Render(msg))
	}

	cols := width / minCardWidth
	if cols < 1 {
		cols = 1
	}
	if cols > len(m.page.Cards) {
		cols = len(m.page.Cards)
	}
	// Two columns of each card go to its border.
	cardWidth := width/cols - 2

	var rows []string
	for start := 0; start < len(m.page.Cards); start += cols {
		end := min(start+cols, len(m.page.Cards))
		var row []string
		for i := start; i < end; i++ {
			row = append(row, m.renderCard(i, cardWidth))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	return lipgloss.NewStyle().
		Width(width).
		MaxHeight(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderCard(idx, width int) string {
	card := m.page.Cards[idx]
	active := idx == m.selected

	inner := width - 2
	var buttons []string
	for _, b := range card.Buttons {
		style := buttonStyle
		if active {
			style = activeButtonStyle
		}
		buttons = append(buttons, style.Render(b.Label))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		cardTitleStyle.Width(inner).Render(card.Title),
		"",
		lipgloss.NewStyle().Width(inner).Render(card.Description),
		"",
		cardPriceStyle.Render(card.PriceLabel),
		lipgloss.JoinHorizontal(lipgloss.Top, buttons...),
	)

	style := cardStyle
	if active {
		style = activeCardStyle
	}
	return style.Width(width).Render(body)
}
