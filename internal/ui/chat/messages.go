// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/deskchat/internal/dispatch"
)

// =============================================================================
// MESSAGES
// =============================================================================

// CompletionMsg carries one dispatcher completion into Update.
type CompletionMsg struct {
	Completion dispatch.Completion
}

// completionsClosedMsg means the dispatcher closed its channel.
type completionsClosedMsg struct{}

// clearStatusMsg expires the status line set with the same sequence number.
type clearStatusMsg struct {
	seq int
}

// statusTTL is how long a flashed status stays visible.
const statusTTL = 4 * time.Second

// =============================================================================
// COMMANDS
// =============================================================================

// waitForCompletion blocks on the dispatcher and returns the next completion.
func waitForCompletion(ch <-chan dispatch.Completion) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return completionsClosedMsg{}
		}
		return CompletionMsg{Completion: c}
	}
}

func clearStatusAfter(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}
