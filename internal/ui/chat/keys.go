// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Send         key.Binding
	ToggleAttach key.Binding
	NewChat      key.Binding
	AddServer    key.Binding
	NextChat     key.Binding
	PrevChat     key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	Cancel       key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		ToggleAttach: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "screenshot"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		AddServer: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "add server"),
		),
		NextChat: key.NewBinding(
			key.WithKeys("ctrl+down", "tab"),
			key.WithHelp("tab", "next chat"),
		),
		PrevChat: key.NewBinding(
			key.WithKeys("ctrl+up", "shift+tab"),
			key.WithHelp("S-tab", "prev chat"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.ToggleAttach, k.NewChat, k.AddServer, k.NextChat, k.Quit}
}

// FullHelp returns all bindings grouped for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.ToggleAttach, k.Cancel},
		{k.NewChat, k.AddServer},
		{k.NextChat, k.PrevChat, k.PageUp, k.PageDown},
		{k.Quit},
	}
}
