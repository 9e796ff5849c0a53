package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	tab       key.Binding
	search    key.Binding
	choose    key.Binding
	skip      key.Binding
	finalize  key.Binding
	processes key.Binding
	review    key.Binding
	resume    key.Binding
	back      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "direction")),
		search:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		choose:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		skip:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
		finalize:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finalize")),
		processes: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "processes")),
		review:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "review")),
		resume:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.tab},
		{k.search, k.skip, k.finalize},
		{k.processes, k.review, k.resume},
		{k.back, k.quit},
	}
}
