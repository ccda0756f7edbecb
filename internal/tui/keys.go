package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the build view.
type KeyMap struct {
	Cancel  key.Binding // Cancel the build; the view closes once it stopped
	Details key.Binding // Toggle reasons and current commands
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "cancel build"),
		),
		Details: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "details"),
		),
	}
}

// ShortHelp returns keybindings for the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Details, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
