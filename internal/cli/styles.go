// Package cli renders the plain terminal surface of a withdrawal.
package cli

import (
	"github.com/Veraticus/offramp/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#7C6FF6")
	teal   = lipgloss.Color("#4ECDC4")
	amber  = lipgloss.Color("#FFE66D")
	red    = lipgloss.Color("#FF6B6B")
	mint   = lipgloss.Color("#95E1D3")
	gray   = lipgloss.Color("#666666")
	rule   = lipgloss.Color("#333")

	// SuccessStyle marks completed withdrawals.
	SuccessStyle = lipgloss.NewStyle().Foreground(teal)
	// WarningStyle marks withdrawals that still need attention.
	WarningStyle = lipgloss.NewStyle().Foreground(amber)
	// ErrorStyle marks failures.
	ErrorStyle = lipgloss.NewStyle().Foreground(red)
	// InfoStyle is for hints such as how to resume.
	InfoStyle = lipgloss.NewStyle().Foreground(mint)
	// SubtleStyle is for transaction ids and other secondary text.
	SubtleStyle = lipgloss.NewStyle().Foreground(gray)
	// BoldStyle highlights the amount the user receives.
	BoldStyle = lipgloss.NewStyle().Bold(true)

	// TableHeaderStyle underlines the history table header.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(rule)
	// TableCellStyle pads history table cells.
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(rule).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	AppIcon     = "💸"
	WaitIcon    = "⏳"
)

// StatusStyle colors an anchor status by how the driver reacts to it.
func StatusStyle(status model.TransactionStatus) lipgloss.Style {
	switch status.Class() {
	case model.ClassActionable:
		return WarningStyle
	case model.ClassTerminal:
		if status == model.StatusCompleted {
			return SuccessStyle
		}
		return ErrorStyle
	default:
		return promptStyle.UnsetBold()
	}
}

// OutcomeStyle colors a stored outcome marker in history output.
func OutcomeStyle(o model.Outcome) lipgloss.Style {
	switch o {
	case model.OutcomeCompleted:
		return SuccessStyle
	case model.OutcomeFailed:
		return ErrorStyle
	case model.OutcomeResumable, model.OutcomePending:
		return WarningStyle
	default:
		return SubtleStyle
	}
}

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a heading. Callers pick the icon.
func FormatTitle(title string) string {
	return titleStyle.Render(title)
}

// FormatPrompt formats a question waiting for input.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

// RenderBox renders a titled box, used for amounts and outcomes.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.UnsetMargins().Render(title),
		content,
	))
}
