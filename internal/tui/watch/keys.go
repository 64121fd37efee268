package watch

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	SyncOne  key.Binding
	SyncAll  key.Binding
	AutoSync key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		SyncOne:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sync selected")),
		SyncAll:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync all")),
		AutoSync: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle auto-sync")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SyncAll, k.SyncOne, k.AutoSync, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.SyncOne},
		{k.SyncAll, k.AutoSync, k.Refresh},
		{k.Help, k.Quit},
	}
}
