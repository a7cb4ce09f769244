package components

import (
	"fmt"
	"strings"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/tui/themes"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// WaitingModel is shown while the anchor works on a withdrawal.
type WaitingModel struct {
	theme    themes.Theme
	spinner  spinner.Model
	action   *model.WithdrawalAction
	failures int
}

// NewWaiting creates the waiting view.
func NewWaiting(theme themes.Theme) WaitingModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = s.Style.Foreground(theme.Primary)
	return WaitingModel{
		theme:   theme,
		spinner: s,
	}
}

// Tick starts the spinner animation.
func (m WaitingModel) Tick() tea.Cmd {
	return m.spinner.Tick
}

// SetAction shows the given withdrawal and its consecutive failed checks.
func (m *WaitingModel) SetAction(action *model.WithdrawalAction, failures int) {
	m.action = action
	m.failures = failures
}

// Update advances the spinner.
func (m WaitingModel) Update(msg tea.Msg) (WaitingModel, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the waiting screen. label replaces the default heading.
func (m WaitingModel) View(label string) string {
	if label == "" {
		label = "Waiting for the anchor"
	}

	var b strings.Builder
	b.WriteString(m.spinner.View() + " " + m.theme.Bold.Render(label))
	if m.action != nil {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "Transaction  %s\n", m.theme.Code.Render(m.action.TransactionID))
		fmt.Fprintf(&b, "Asset        %s\n", m.action.AssetCode)
		status := string(m.action.Status)
		if status == "" {
			status = "unknown"
		}
		fmt.Fprintf(&b, "Status       %s", m.theme.StatusInfo.Render(status))
	}
	if m.failures > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.theme.StatusWarning.Render(
			fmt.Sprintf("Could not reach the anchor (%d attempts). Still trying...", m.failures)))
	}
	return b.String()
}
