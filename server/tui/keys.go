package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Stop key.Binding
	Quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Stop: key.NewBinding(
			key.WithKeys("s", "q"),
			key.WithHelp("s/q", "stop"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.Stop, k.Quit} }

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
