package dashboard

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the dashboard bindings. Printable keys go to the host input,
// so every action uses a control or navigation key.
type KeyMap struct {
	Add        key.Binding
	Remove     key.Binding
	ToggleDead key.Binding
	Up         key.Binding
	Down       key.Binding
	Quit       key.Binding
}

var DefaultKeyMap = KeyMap{
	Add: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "add"),
	),
	Remove: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "remove"),
	),
	ToggleDead: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "toggle dead"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "quit"),
	),
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Add, k.Remove, k.ToggleDead, k.Up, k.Down, k.Quit}
}
