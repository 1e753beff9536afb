package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	next    key.Binding
	prev    key.Binding
	tracks  key.Binding
	artists key.Binding
	plays   key.Binding
	refresh key.Binding
	sync    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		next:    key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab/→", "next range")),
		prev:    key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("⇧tab/←", "prev range")),
		tracks:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "tracks")),
		artists: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "artists")),
		plays:   key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "recent")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync from spotify")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.tracks, k.artists, k.plays, k.sync, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.next, k.prev},
		{k.tracks, k.artists, k.plays},
		{k.refresh, k.sync, k.quit},
	}
}
