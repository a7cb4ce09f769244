// Package components holds the views of the withdrawal TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/tui/themes"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AssetChosenMsg is sent when the user picks a balance line.
type AssetChosenMsg struct {
	Asset model.Asset
}

// AssetListModel lists wallet balances.
type AssetListModel struct {
	theme  themes.Theme
	assets []model.Asset
	cursor int
	width  int
}

// NewAssetList creates an asset list.
func NewAssetList(assets []model.Asset, theme themes.Theme) AssetListModel {
	return AssetListModel{
		assets: assets,
		theme:  theme,
	}
}

// SetAssets replaces the balances, keeping the cursor on the same asset
// when it is still listed.
func (m *AssetListModel) SetAssets(assets []model.Asset) {
	current, hasCurrent := m.Current()
	m.assets = assets
	m.cursor = 0
	if !hasCurrent {
		return
	}
	for i, a := range assets {
		if a.Code == current.Code && a.Issuer == current.Issuer {
			m.cursor = i
			return
		}
	}
}

// Current returns the asset under the cursor.
func (m AssetListModel) Current() (model.Asset, bool) {
	if m.cursor < 0 || m.cursor >= len(m.assets) {
		return model.Asset{}, false
	}
	return m.assets[m.cursor], true
}

// Len returns the number of listed assets.
func (m AssetListModel) Len() int {
	return len(m.assets)
}

// Resize sets the render width.
func (m *AssetListModel) Resize(width int) {
	m.width = width
}

// Update handles navigation and selection.
func (m AssetListModel) Update(msg tea.Msg) (AssetListModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || len(m.assets) == 0 {
		return m, nil
	}

	switch keyMsg.String() {
	case "j", "down":
		m.cursor = (m.cursor + 1) % len(m.assets)
	case "k", "up":
		m.cursor = (m.cursor + len(m.assets) - 1) % len(m.assets)
	case "enter":
		asset, ok := m.Current()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return AssetChosenMsg{Asset: asset} }
	}
	return m, nil
}

// View renders the list.
func (m AssetListModel) View() string {
	if len(m.assets) == 0 {
		return m.theme.StatusPending.Render("No balances found.")
	}

	codeWidth := 0
	for _, a := range m.assets {
		if n := lipgloss.Width(a.Code); n > codeWidth {
			codeWidth = n
		}
	}

	lines := make([]string, 0, len(m.assets))
	for i, a := range m.assets {
		line := fmt.Sprintf("%-*s  %s", codeWidth, a.Code, a.Balance.String())
		if !a.CanWithdraw() {
			line += "  " + lipgloss.NewStyle().Foreground(m.theme.Muted).Render("nothing to withdraw")
		}
		if i == m.cursor {
			line = m.theme.Selected.Render("› " + line)
		} else {
			line = m.theme.Normal.Render("  " + line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
