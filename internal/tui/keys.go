package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down, PageUp, PageDown key.Binding
	Toggle, Collapse           key.Binding
	Filter                     key.Binding
	SortName, SortDescription  key.Binding
	SortURL, SortCreated       key.Binding
	SortKind                   key.Binding

	Install, Delete, DeleteRemote key.Binding
	Rename, Describe              key.Binding
	Publish, Push, Open           key.Binding
	LaunchNext, Create            key.Binding
	Refresh, Reload, CopyURL      key.Binding

	Help, Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		Toggle:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand")),
		Collapse: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "collapse")),
		Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),

		SortName:        key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "sort name")),
		SortDescription: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "sort description")),
		SortURL:         key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "sort url")),
		SortCreated:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "sort created")),
		SortKind:        key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "sort kind")),

		Install:      key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "install")),
		Delete:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete local")),
		DeleteRemote: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete repo")),
		Rename:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		Describe:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "describe")),
		Publish:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "publish")),
		Push:         key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "push")),
		Open:         key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		LaunchNext:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "open next")),
		Create:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "new project")),
		Refresh:      key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh from github")),
		Reload:       key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "reload")),
		CopyURL:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy url")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Filter, k.Open, k.LaunchNext, k.Create, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Toggle, k.Collapse, k.Filter},
		{k.SortName, k.SortDescription, k.SortURL, k.SortCreated, k.SortKind},
		{k.Install, k.Delete, k.DeleteRemote, k.Rename, k.Describe, k.Publish, k.Push},
		{k.Open, k.LaunchNext, k.Create, k.Refresh, k.Reload, k.CopyURL, k.Help, k.Quit},
	}
}
