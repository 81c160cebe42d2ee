// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the bubbletea model for the deskchat TUI.
//
// The model is a thin presentation adapter. Key presses become
// dispatch.Submit calls or store writes; everything on screen is reloaded
// from the store inside Update. Agent replies arrive through a command that
// blocks on Dispatcher.Completions, so the dispatcher's workers never touch
// UI state.
//
// # Layout
//
//	+----------+---------------------------------+
//	| chats    | messages (viewport, markdown)   |
//	|          |                                 |
//	+----------+---------------------------------+
//	| > input                        [screenshot] |
//	| status line / spinner                       |
//	+---------------------------------------------+
//
// # Key Bindings
//
//   - enter: send
//   - ctrl+t: toggle screenshot attach
//   - ctrl+n: new chat (title prompt)
//   - ctrl+s: register server (address prompt)
//   - ctrl+up/ctrl+down, tab/shift+tab: select chat
//   - pgup/pgdown: scroll
//   - esc: leave a prompt
//   - ctrl+c: quit
//
// # Errors
//
// Validation failures flash on the status line. A *store.StorageError
// switches to a fatal screen; the next key quits and Model.Err reports it.
package chat
