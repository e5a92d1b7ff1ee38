package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent   = lipgloss.Color("#14B8A6") // teal
	green    = lipgloss.Color("#22C55E")
	yellow   = lipgloss.Color("#F59E0B")
	red      = lipgloss.Color("#EF4444")
	blue     = lipgloss.Color("#38BDF8")
	slate    = lipgloss.Color("#94A3B8")
	slateDim = lipgloss.Color("#64748B")
	bgDark   = lipgloss.Color("#0B1220")
	line     = lipgloss.Color("#1F2937")
	ink      = lipgloss.Color("#E5E7EB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			Background(bgDark).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(accent).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(slate).
			Background(bgDark).
			BorderTop(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(line).
			Padding(0, 1)

	timeStyle = lipgloss.NewStyle().Foreground(slateDim)
	dimStyle  = lipgloss.NewStyle().Foreground(slateDim)
	okStyle   = lipgloss.NewStyle().Foreground(green)
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(red)
	infoStyle = lipgloss.NewStyle().Foreground(blue)
)

// eventStyle picks a colour per event type so the stream scans easily.
func eventStyle(eventType string) lipgloss.Style {
	switch eventType {
	case "ticket_created", "todo_created", "inventory_created":
		return okStyle
	case "ticket_deleted", "todo_deleted", "inventory_deleted", "user_blocked", "error":
		return errStyle
	case "todo_due_soon", "ticket_stale", "ticket_assigned":
		return warnStyle
	case "comment_added":
		return infoStyle
	default:
		return lipgloss.NewStyle().Foreground(slate)
	}
}
