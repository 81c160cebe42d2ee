// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/dispatch"
	"github.com/jeranaias/deskchat/internal/store"
	"github.com/jeranaias/deskchat/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 1
	footerHeight = 5 // input box (3) + status line + help
	minWidth     = 20
)

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetSize(width, height)
	m.ready = true

	listWidth := m.theme.ChatListWidth()
	vpWidth := width - listWidth - 4
	if listWidth > 0 {
		vpWidth -= 4
	}
	if vpWidth < minWidth {
		vpWidth = minWidth
	}
	vpHeight := height - headerHeight - footerHeight - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.input.Width = width - 8 - len(m.input.Prompt)
	m.help.Width = width

	if m.markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(vpWidth-2),
		)
		if err != nil {
			m.logger.Warn("markdown renderer unavailable", zap.Error(err))
			r = nil
		}
		m.renderer = r
	}
	m.refreshViewport()
}

// refreshViewport re-renders the loaded messages and keeps the view pinned
// to the bottom when it already was.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if m.fatal != nil {
		return m.viewFatal()
	}
	if !m.ready {
		return "Loading..."
	}

	body := m.theme.Messages.Render(m.viewport.View())
	if m.theme.ChatListWidth() > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.viewChatList(), body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		body,
		m.viewInput(),
		m.viewStatus(),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	)
}

func (m Model) viewHeader() string {
	info := m.provider
	if m.model != "" {
		info += " / " + m.model
	}
	if len(m.servers) > 0 {
		info += fmt.Sprintf("  servers: %d", len(m.servers))
	}
	return m.theme.Header.Render(
		m.theme.HeaderBrand.Render("deskchat") + "  " + m.theme.HeaderInfo.Render(info))
}

func (m Model) viewChatList() string {
	width := m.theme.ChatListWidth()
	var b strings.Builder
	for i, c := range m.chats {
		marker := "  "
		if m.dispatcher.State(c.ID) == dispatch.AwaitingResponse {
			marker = m.theme.ChatItemPending.Render("* ")
		}
		title := util.TruncateWidth(c.Title, width-4)
		if i == m.selected {
			b.WriteString(marker + m.theme.ChatItemSelected.Render(title))
		} else {
			b.WriteString(marker + m.theme.ChatItem.Render(title))
		}
		if i < len(m.chats)-1 {
			b.WriteByte('\n')
		}
	}
	if len(m.chats) == 0 {
		b.WriteString(m.theme.EmptyHistory.Render("no chats"))
	}
	return m.theme.ChatList.
		Width(width).
		Height(m.viewport.Height).
		Render(b.String())
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		if m.ActiveChat() == 0 {
			return m.theme.EmptyHistory.Render("No chat selected. Press ctrl+n to create one.")
		}
		return m.theme.EmptyHistory.Render("No messages yet.")
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg))
	}
	return b.String()
}

func (m Model) renderMessage(msg store.Message) string {
	stamp := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	if msg.Role == store.RoleUser {
		header := m.theme.UserLabel.Render("You") + " " + stamp
		content := m.theme.UserText.Render(msg.Content)
		if msg.HasAttachment {
			content += "\n" + m.theme.Attachment.Render("  (screenshot stored)")
		}
		return header + "\n" + content
	}

	header := m.theme.AgentLabel.Render("Agent") + " " + stamp
	if strings.HasPrefix(msg.Content, "Error: ") {
		return header + "\n" + m.theme.ErrorText.Render(msg.Content)
	}
	if m.renderer != nil {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			return header + "\n" + strings.TrimRight(out, "\n")
		}
	}
	return header + "\n" + m.theme.AgentText.Render(msg.Content)
}

func (m Model) viewInput() string {
	line := m.input.View()
	if m.mode == modeMessage && m.attach {
		line += "  " + m.theme.AttachOn.Render("[screenshot]")
	}
	width := m.width - 2
	if width < minWidth {
		width = minWidth
	}
	return m.theme.Input.Width(width).Render(line)
}

func (m Model) viewStatus() string {
	if m.status != "" {
		if m.statusErr {
			return m.theme.StatusError.Render(m.status)
		}
		return m.theme.StatusLine.Render(m.status)
	}
	if m.awaiting() {
		return m.theme.StatusLine.Render(m.spinner.View() + " waiting for reply...")
	}
	return m.theme.StatusLine.Render("")
}

func (m Model) viewFatal() string {
	text := m.theme.FatalTitle.Render("Storage failure") + "\n\n" +
		m.fatal.Error() + "\n\n" +
		"History can no longer be saved. Press any key to exit."
	box := m.theme.Fatal.Render(text)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
