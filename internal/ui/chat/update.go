// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/dispatch"
	"github.com/jeranaias/deskchat/internal/store"
)

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.fatal != nil {
		// The fatal screen blocks until any key.
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
		if ws, ok := msg.(tea.WindowSizeMsg); ok {
			m.resize(ws.Width, ws.Height)
		}
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case CompletionMsg:
		return m.handleCompletion(msg.Completion)

	case completionsClosedMsg:
		return m, nil

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil

	case spinner.TickMsg:
		if !m.awaiting() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.mode != modeMessage {
			m.setMode(modeMessage)
		}
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.ToggleAttach):
		m.attach = !m.attach
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.setMode(modeNewChat)
		return m, nil

	case key.Matches(msg, m.keys.AddServer):
		m.setMode(modeAddServer)
		return m, nil

	case key.Matches(msg, m.keys.NextChat):
		return m.selectChat(+1)

	case key.Matches(msg, m.keys.PrevChat):
		return m.selectChat(-1)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setMode(md mode) {
	m.mode = md
	m.input.Reset()
	switch md {
	case modeNewChat:
		m.input.Prompt = "Chat title: "
		m.input.Placeholder = "New Chat"
	case modeAddServer:
		m.input.Prompt = "Server address: "
		m.input.Placeholder = "ws://localhost:8080"
	default:
		m.input.Prompt = "> "
		m.input.Placeholder = "Type a message..."
	}
}

func (m Model) selectChat(delta int) (tea.Model, tea.Cmd) {
	if len(m.chats) == 0 {
		return m, nil
	}
	m.selected = (m.selected + delta + len(m.chats)) % len(m.chats)
	m.reloadMessages()
	return m, m.startSpinner()
}

// =============================================================================
// SUBMIT
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	ctx := context.Background()

	switch m.mode {
	case modeNewChat:
		id, err := m.store.CreateChat(ctx, text)
		if err != nil {
			return m, m.handleError(err)
		}
		m.setMode(modeMessage)
		m.reloadChats(id)
		m.reloadMessages()
		return m, m.flash("Created chat", false)

	case modeAddServer:
		if _, err := m.store.RegisterServer(ctx, strings.TrimSpace(text)); err != nil {
			return m, m.handleError(err)
		}
		m.setMode(modeMessage)
		m.reloadServers()
		return m, m.flash("Registered server "+strings.TrimSpace(text), false)
	}

	turn, err := m.dispatcher.Submit(ctx, dispatch.Request{
		ChatID: m.ActiveChat(),
		Text:   text,
		Attach: m.attach,
	})
	if err != nil {
		return m, m.handleError(err)
	}

	m.input.Reset()
	m.attach = false
	m.reloadMessages()
	m.viewport.GotoBottom()

	var cmds []tea.Cmd
	if turn.CaptureErr != nil {
		cmds = append(cmds, m.flash("Screenshot failed: "+turn.CaptureErr.Error(), true))
	}
	cmds = append(cmds, m.startSpinner())
	return m, tea.Batch(cmds...)
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.awaiting() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// =============================================================================
// COMPLETIONS
// =============================================================================

func (m Model) handleCompletion(c dispatch.Completion) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForCompletion(m.dispatcher.Completions())}

	if c.Err != nil {
		cmd := m.handleError(c.Err)
		if m.fatal != nil {
			return m, nil
		}
		cmds = append(cmds, cmd)
	}

	if c.Turn.ChatID == m.ActiveChat() {
		m.reloadMessages()
		m.viewport.GotoBottom()
	}
	if c.AgentErr != nil {
		cmds = append(cmds, m.flash("Agent failed: "+c.AgentErr.Error(), true))
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// ERRORS AND STATUS
// =============================================================================

// handleError classifies err. Storage failures are fatal; everything else
// flashes on the status line.
func (m *Model) handleError(err error) tea.Cmd {
	switch {
	case store.IsStorageError(err):
		m.fail(err)
		return nil
	case errors.Is(err, store.ErrValidation):
		return m.flash(validationText(err), true)
	case errors.Is(err, store.ErrNotFound):
		return m.flash("Not found: "+err.Error(), true)
	default:
		return m.flash(err.Error(), true)
	}
}

func validationText(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrEmptyMessage):
		return "Nothing to send"
	case errors.Is(err, dispatch.ErrNoActiveChat):
		return "No active chat: press ctrl+n to create one"
	default:
		return err.Error()
	}
}

func (m *Model) fail(err error) {
	if store.IsStorageError(err) {
		m.logger.Error("storage failure", zap.Error(err))
		m.fatal = err
		return
	}
	m.logger.Warn("load failed", zap.Error(err))
	m.status = err.Error()
	m.statusErr = true
}

func (m *Model) flash(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.status = text
	m.statusErr = isErr
	return clearStatusAfter(m.statusSeq, statusTTL)
}
