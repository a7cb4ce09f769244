package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/offramp/internal/tui/components"
	"github.com/Veraticus/offramp/internal/withdraw"
	"github.com/charmbracelet/lipgloss"
)

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.theme.Title.Render("💸 offramp"),
		m.body(),
	}
	if m.status != "" {
		sections = append(sections, m.theme.StatusWarning.Render(m.status))
	}
	if m.config.ShowHelp {
		sections = append(sections, m.help.View(m.keymap.forSnapshot(m.snap)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) body() string {
	snap := m.snap
	switch snap.State {
	case withdraw.StateNone:
		return m.idleView()
	case withdraw.StateStarted:
		return m.waiting.View("Opening the anchor")
	case withdraw.StateWaiting:
		muted := lipgloss.NewStyle().Foreground(m.theme.Muted)
		out := m.waiting.View("") + "\n\n" +
			muted.Render("Finish the withdrawal in your browser. Closing this view stops the status checks.")
		if snap.Action != nil && snap.Action.InteractiveURL != "" {
			out += "\n" + muted.Render("Link: ") + m.theme.Code.Render(snap.Action.InteractiveURL)
		}
		return out
	case withdraw.StateConfirmTransfer:
		return m.transfer.View()
	case withdraw.StateSuccess:
		return components.Modal(m.theme, components.ModalSuccess, "Withdrawal complete",
			components.ActionSummary(m.theme, snap.Action, snap.Detail), "enter dismiss")
	case withdraw.StateError:
		return m.errorView()
	default:
		return ""
	}
}

func (m Model) idleView() string {
	snap := m.snap
	if snap.Err != nil {
		return components.Modal(m.theme, components.ModalError, "Cannot withdraw", snap.Message, "enter dismiss")
	}
	if snap.Selected != nil {
		body := fmt.Sprintf("Balance %s %s\n\nThe anchor will open in your browser to collect the withdrawal details.",
			snap.Selected.Balance.String(), snap.Selected.Code)
		return components.Modal(m.theme, components.ModalInfo,
			"Withdraw "+snap.Selected.Code+"?", body, "y/enter open anchor • n/esc cancel")
	}

	var b strings.Builder
	b.WriteString(m.theme.Subtitle.Render("Balances"))
	b.WriteString("\n\n")
	if m.loading {
		b.WriteString(m.theme.StatusPending.Render("Loading balances..."))
	} else {
		b.WriteString(m.assets.View())
	}
	if snap.Resumable != nil {
		b.WriteString("\n\n")
		b.WriteString(m.theme.StatusInfo.Render(fmt.Sprintf("Interrupted withdrawal %s (%s). Press r to resume.",
			snap.Resumable.TransactionID, snap.Resumable.AssetCode)))
	}
	return b.String()
}

func (m Model) errorView() string {
	snap := m.snap
	body := snap.Message
	if summary := components.ActionSummary(m.theme, snap.Action, snap.Detail); summary != "" {
		body += "\n\n" + summary
	}
	hint := "enter dismiss"
	if snap.Resumable != nil {
		hint = "r resume • enter dismiss"
	}
	return components.Modal(m.theme, components.ModalError, "Withdrawal failed", body, hint)
}
