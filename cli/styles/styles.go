// Package styles provides consistent styling for the orderflow CLI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary      = lipgloss.Color("#2563EB") // Blue
	PrimaryLight = lipgloss.Color("#60A5FA")
	Secondary    = lipgloss.Color("#0D9488") // Teal

	Success = lipgloss.Color("#16A34A")
	Warning = lipgloss.Color("#D97706")
	Error   = lipgloss.Color("#DC2626")
	Info    = lipgloss.Color("#0284C7")

	Text      = lipgloss.Color("#F3F4F6")
	TextMuted = lipgloss.Color("#9CA3AF")
	Surface   = lipgloss.Color("#1F2937")
	Border    = lipgloss.Color("#374151")
)

// Text styles
var (
	Bold = lipgloss.NewStyle().
		Bold(true)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryLight)

	Normal = lipgloss.NewStyle().
		Foreground(Text)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Highlight = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary)

	Code = lipgloss.NewStyle().
		Foreground(PrimaryLight).
		Background(Surface).
		Padding(0, 1)
)

// Status styles
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Info)
)

// Icons
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconArrow   = "→"
	IconDot     = "•"
	IconPending = "◌"
)

// Box styles for containers
var (
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)

	BoxHighlight = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)
)

// Table styles for saga listings
var (
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryLight).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(Border)

	TableSelected = lipgloss.NewStyle().
			Foreground(Text).
			Background(Primary).
			Bold(true)
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(msg string) string {
	return SuccessStyle.Render(IconSuccess) + " " + Normal.Render(msg)
}

// FormatError formats an error message with icon.
func FormatError(msg string) string {
	return ErrorStyle.Render(IconError) + " " + Normal.Render(msg)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(msg string) string {
	return WarningStyle.Render(IconWarning) + " " + Normal.Render(msg)
}

// FormatInfo formats an info message with icon.
func FormatInfo(msg string) string {
	return InfoStyle.Render(IconInfo) + " " + Normal.Render(msg)
}

// FormatKeyValue formats an aligned key-value pair.
func FormatKeyValue(key, value string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(22)
	return keyStyle.Render(key+":") + " " + Highlight.Render(value)
}

// StateStyle returns a style matching a saga or order state name.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "COMPLETED", "delivered", "confirmed":
		return SuccessStyle
	case "FAILED", "cancelled":
		return ErrorStyle
	case "COMPENSATING", "refunded":
		return WarningStyle
	default:
		return InfoStyle
	}
}

// DisableColors disables all colors for terminals that don't support them.
func DisableColors() {
	Primary = lipgloss.Color("")
	PrimaryLight = lipgloss.Color("")
	Secondary = lipgloss.Color("")
	Success = lipgloss.Color("")
	Warning = lipgloss.Color("")
	Error = lipgloss.Color("")
	Info = lipgloss.Color("")
	Text = lipgloss.Color("")
	TextMuted = lipgloss.Color("")
	Surface = lipgloss.Color("")
	Border = lipgloss.Color("")
}
