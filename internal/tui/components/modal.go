package components

import (
	"fmt"
	"strings"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/tui/themes"
	"github.com/charmbracelet/lipgloss"
)

// ModalKind selects the accent of a modal.
type ModalKind int

// Modal kinds.
const (
	ModalInfo ModalKind = iota
	ModalSuccess
	ModalError
)

// Modal renders a bordered box with a title, body and key hint.
func Modal(theme themes.Theme, kind ModalKind, title, body, hint string) string {
	border := theme.Border
	titleStyle := theme.StatusInfo
	switch kind {
	case ModalSuccess:
		border = theme.Success
		titleStyle = theme.StatusSuccess
	case ModalError:
		border = theme.Error
		titleStyle = theme.StatusError
	}

	parts := []string{titleStyle.Render(title)}
	if body != "" {
		parts = append(parts, "", body)
	}
	if hint != "" {
		parts = append(parts, "", lipgloss.NewStyle().Foreground(theme.Muted).Render(hint))
	}

	return theme.RoundedBox.
		BorderForeground(border).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// AmountTable renders the amounts of a status record. It is empty when the
// anchor has not reported any.
func AmountTable(theme themes.Theme, detail model.TransactionDetail) string {
	if detail.AmountIn.IsZero() && detail.AmountFee.IsZero() && detail.AmountOut.IsZero() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Amount in   %s\n", detail.AmountIn.String())
	fmt.Fprintf(&b, "Fee         %s\n", detail.AmountFee.String())
	fmt.Fprintf(&b, "You receive %s", theme.Bold.Render(detail.AmountOut.String()))
	return b.String()
}

// ActionSummary renders the identifying lines of a withdrawal plus its amounts.
func ActionSummary(theme themes.Theme, action *model.WithdrawalAction, detail model.TransactionDetail) string {
	var lines []string
	if action != nil {
		lines = append(lines,
			fmt.Sprintf("Transaction %s", theme.Code.Render(action.TransactionID)),
			fmt.Sprintf("Asset       %s", action.AssetCode))
	}
	if amounts := AmountTable(theme, detail); amounts != "" {
		lines = append(lines, "", amounts)
	}
	if detail.Message != "" {
		lines = append(lines, "", theme.StatusPending.Render(detail.Message))
	}
	return strings.Join(lines, "\n")
}
