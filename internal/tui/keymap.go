package tui

import (
	"github.com/Veraticus/offramp/internal/withdraw"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Actions
	Select  key.Binding
	Open    key.Binding
	Confirm key.Binding
	Decline key.Binding
	Close   key.Binding
	Resume  key.Binding
	Dismiss key.Binding
	Refresh key.Binding

	// Application
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "withdraw"),
		),
		Open: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y/enter", "open anchor"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Decline: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
		Close: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "close"),
		),
		Resume: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resume"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("enter", "esc"),
			key.WithHelp("enter", "dismiss"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Open, k.Confirm, k.Decline, k.Close, k.Resume, k.Dismiss, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped by column.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Open, k.Confirm, k.Decline, k.Close},
		{k.Resume, k.Dismiss, k.Refresh},
		{k.Help, k.Quit},
	}
}

// forSnapshot returns a copy with only the bindings that apply to snap enabled.
func (k KeyMap) forSnapshot(snap withdraw.Snapshot) KeyMap {
	for _, b := range []*key.Binding{
		&k.Up, &k.Down, &k.Select, &k.Open, &k.Confirm, &k.Decline,
		&k.Close, &k.Resume, &k.Dismiss, &k.Refresh,
	} {
		b.SetEnabled(false)
	}

	switch snap.State {
	case withdraw.StateNone:
		switch {
		case snap.Err != nil:
			k.Dismiss.SetEnabled(true)
		case snap.Selected != nil:
			k.Open.SetEnabled(true)
			k.Decline.SetEnabled(true)
		default:
			k.Up.SetEnabled(true)
			k.Down.SetEnabled(true)
			k.Select.SetEnabled(true)
			k.Refresh.SetEnabled(true)
		}
		k.Resume.SetEnabled(snap.Resumable != nil)
	case withdraw.StateWaiting:
		k.Close.SetEnabled(true)
	case withdraw.StateConfirmTransfer:
		k.Confirm.SetEnabled(!snap.Confirming)
		k.Decline.SetEnabled(!snap.Confirming)
	case withdraw.StateSuccess, withdraw.StateError:
		k.Dismiss.SetEnabled(true)
		k.Resume.SetEnabled(snap.State == withdraw.StateError && snap.Resumable != nil)
	}
	return k
}
