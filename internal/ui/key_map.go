package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	left    key.Binding
	right   key.Binding
	zoomIn  key.Binding
	zoomOut key.Binding
	next    key.Binding
	prev    key.Binding
	open    key.Binding
	list    key.Binding
	center  key.Binding
	save    key.Binding
	back    key.Binding
	help    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "pan up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "pan down")),
		left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "pan left")),
		right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "pan right")),
		zoomIn:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		zoomOut: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next artist")),
		prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous artist")),
		open:    key.NewBinding(key.WithKeys("enter", "o"), key.WithHelp("enter", "open artist")),
		list:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "artist list")),
		center:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "center")),
		save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save snapshot")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.open, k.zoomIn, k.zoomOut, k.save, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.left, k.right},
		{k.zoomIn, k.zoomOut, k.center},
		{k.next, k.prev, k.open, k.list},
		{k.save, k.back, k.help, k.quit},
	}
}
