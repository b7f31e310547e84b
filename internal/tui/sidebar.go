package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const sidebarWidth = 26

func (m *Model) renderSidebar(height int) string {
	sv := m.page.Sidebar
	inner := sidebarWidth - 2

	lines := []string{brandStyle.Width(inner).Render(strings.ToUpper(sv.Brand))}
	for _, sec := range sv.Sections {
		chevron := "▾"
		if sec.Collapsed {
			chevron = "▸"
		}
		lines = append(lines, "", sectionTitleStyle.Width(inner).Render(chevron+" "+strings.ToUpper(sec.Title)))
		if sec.Collapsed {
			continue
		}
		for _, item := range sec.Items {
			lines = append(lines, sectionItemStyle.Width(inner).Render(item))
		}
	}

	return sidebarStyle.
		Width(sidebarWidth).
		Height(height).
		MaxHeight(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
