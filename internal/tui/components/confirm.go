package components

import (
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/tui/themes"
	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmDecisionMsg carries the user's answer to the send-funds prompt.
type ConfirmDecisionMsg struct {
	TransactionID string
	AssetCode     string
	Accepted      bool
}

// ConfirmTransferModel asks the user to send funds for a withdrawal the
// anchor is ready to complete.
type ConfirmTransferModel struct {
	theme      themes.Theme
	action     *model.WithdrawalAction
	detail     model.TransactionDetail
	confirming bool
}

// NewConfirmTransfer creates the confirmation modal.
func NewConfirmTransfer(theme themes.Theme) ConfirmTransferModel {
	return ConfirmTransferModel{theme: theme}
}

// SetAction shows action with detail. confirming disables the keys while a
// confirmation is in flight.
func (m *ConfirmTransferModel) SetAction(action *model.WithdrawalAction, detail model.TransactionDetail, confirming bool) {
	m.action = action
	m.detail = detail
	m.confirming = confirming
}

// Update answers y, n and esc.
func (m ConfirmTransferModel) Update(msg tea.Msg) (ConfirmTransferModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.action == nil || m.confirming {
		return m, nil
	}

	decision := ConfirmDecisionMsg{
		TransactionID: m.action.TransactionID,
		AssetCode:     m.action.AssetCode,
	}
	switch keyMsg.String() {
	case "y", "Y":
		decision.Accepted = true
	case "n", "N", "esc":
	default:
		return m, nil
	}
	return m, func() tea.Msg { return decision }
}

// View renders the modal.
func (m ConfirmTransferModel) View() string {
	if m.action == nil {
		return ""
	}
	hint := "y confirm • n/esc dismiss"
	title := "Send " + m.action.AssetCode + " to complete this withdrawal?"
	if m.confirming {
		hint = "Confirming with the anchor..."
	}
	return Modal(m.theme, ModalInfo, title, ActionSummary(m.theme, m.action, m.detail), hint)
}
