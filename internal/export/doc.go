// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored chats to Markdown or JSON files.
//
// # Key Types
//
//   - Transcript: a chat, its messages and the registered servers
//   - Exporter: format interface (Markdown, JSON)
//   - Options: metadata and timestamp toggles
//
// # Usage
//
//	t, err := export.Load(ctx, st, chatID)
//	exp, err := export.ForFormat("markdown", nil)
//	path, err := export.WriteFile(t, exp, ".")
package export
