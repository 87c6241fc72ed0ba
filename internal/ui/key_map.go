package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	yes      key.Binding
	no       key.Binding
	next     key.Binding
	prev     key.Binding
	refresh  key.Binding
	sort     key.Binding
	del      key.Binding
	open     key.Binding
	transfer key.Binding
	retry    key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next page")),
		prev:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev page")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		del:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		transfer: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "transfer")),
		retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.prev, k.next, k.refresh, k.sort},
		{k.del, k.open, k.transfer},
		{k.back, k.yes, k.no, k.quit},
	}
}
