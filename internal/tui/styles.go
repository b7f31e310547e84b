package tui

import "github.com/charmbracelet/lipgloss"

// Palette loosely follows the page's Tailwind colors.
var (
	ColorSidebar   = lipgloss.Color("#2D3748") // gray-800
	ColorMuted     = lipgloss.Color("#A0AEC0") // gray-500
	ColorWhite     = lipgloss.Color("#FFFFFF")
	ColorBorder    = lipgloss.Color("#CBD5E0") // gray-400
	ColorCardEdge  = lipgloss.Color("#90CDF4") // blue-300
	ColorButton    = lipgloss.Color("#48BB78") // green-500
	ColorButtonHot = lipgloss.Color("#68D391") // green-400
	ColorError     = lipgloss.Color("#FF6666")
	ColorPrice     = lipgloss.Color("39")
	ColorPriceHot  = lipgloss.Color("214")
)

var (
	sidebarStyle = lipgloss.NewStyle().
			Background(ColorSidebar).
			Foreground(ColorMuted).
			Padding(0, 1)

	brandStyle = lipgloss.NewStyle().
			Background(ColorSidebar).
			Foreground(ColorWhite).
			Bold(true).
			Padding(1, 0)

	sectionTitleStyle = lipgloss.NewStyle().
				Background(ColorSidebar).
				Foreground(ColorMuted).
				Bold(true)

	sectionItemStyle = lipgloss.NewStyle().
				Background(ColorSidebar).
				Foreground(ColorMuted).
				PaddingLeft(3)

	navStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	navButtonStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#EDF2F7")).
			Foreground(lipgloss.Color("#1A202C")).
			Padding(0, 1).
			MarginLeft(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	activeCardStyle = cardStyle.
			BorderForeground(ColorCardEdge).
			BorderStyle(lipgloss.ThickBorder())

	cardTitleStyle = lipgloss.NewStyle().Bold(true)

	cardPriceStyle = lipgloss.NewStyle().Foreground(ColorMuted).Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Background(ColorButton).
			Foreground(ColorWhite).
			Bold(true).
			Padding(0, 1).
			MarginRight(1)

	activeButtonStyle = buttonStyle.Background(ColorButtonHot)

	chartTitleStyle = lipgloss.NewStyle().Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	statusStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorSidebar).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Background(ColorSidebar).
			Bold(true)
)
