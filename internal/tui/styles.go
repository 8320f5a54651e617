package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorFgPrimary = lipgloss.Color("#ABB2BF")
	colorFgMuted   = lipgloss.Color("#636B78")
	colorRed       = lipgloss.Color("#E06C75")
	colorGreen     = lipgloss.Color("#98C379")
	colorYellow    = lipgloss.Color("#E5C07B")
	colorBlue      = lipgloss.Color("#61AFEF")
	colorMagenta   = lipgloss.Color("#C678DD")
	colorCyan      = lipgloss.Color("#56B6C2")
	colorBorder    = lipgloss.Color("#3F4451")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true).
			PaddingLeft(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	questionStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorBlue).
			PaddingLeft(1)

	agentStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	candidateStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	alertStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFgMuted).
			PaddingLeft(1).
			PaddingRight(1)

	liveStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorFgMuted)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(colorFgPrimary)

	reportStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)

	scoreStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorGreen)
)
