// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/dispatch"
	"github.com/jeranaias/deskchat/internal/store"
	"github.com/jeranaias/deskchat/internal/ui/styles"
)

// Store is the read and write surface the TUI needs.
type Store interface {
	ListChats(ctx context.Context) ([]store.Chat, error)
	CreateChat(ctx context.Context, title string) (store.ChatID, error)
	ListMessages(ctx context.Context, chatID store.ChatID) ([]store.Message, error)
	RegisterServer(ctx context.Context, address string) (store.ServerID, error)
	ListServers(ctx context.Context) ([]string, error)
}

// Dispatcher accepts sends and reports their completions.
type Dispatcher interface {
	Submit(ctx context.Context, req dispatch.Request) (dispatch.Turn, error)
	Completions() <-chan dispatch.Completion
	State(chatID store.ChatID) dispatch.ChatState
}

// mode selects what the input line edits.
type mode int

const (
	modeMessage mode = iota
	modeNewChat
	modeAddServer
)

// Options configures New.
type Options struct {
	Store      Store
	Dispatcher Dispatcher
	Theme      *styles.Theme

	// ActiveChat is selected on start; zero selects the newest chat.
	ActiveChat store.ChatID

	// Provider and Model are shown in the header.
	Provider string
	Model    string

	// Markdown renders agent replies with glamour.
	Markdown bool

	Logger *zap.Logger
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	store      Store
	dispatcher Dispatcher
	theme      *styles.Theme
	keys       KeyMap
	logger     *zap.Logger

	provider string
	model    string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	markdown bool
	renderer *glamour.TermRenderer

	chats    []store.Chat
	selected int
	messages []store.Message
	servers  []string

	mode     mode
	attach   bool
	spinning bool

	status    string
	statusErr bool
	statusSeq int

	fatal error
	ready bool

	width  int
	height int
}

// New creates the chat model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(false)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := Model{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		theme:      theme,
		keys:       DefaultKeyMap(),
		logger:     logger,
		provider:   opts.Provider,
		model:      opts.Model,
		input:      ti,
		viewport:   vp,
		spinner:    sp,
		help:       help.New(),
		markdown:   opts.Markdown,
	}
	m.reloadChats(opts.ActiveChat)
	m.reloadServers()
	m.reloadMessages()
	return m
}

// Init starts cursor blinking and the completion listener.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForCompletion(m.dispatcher.Completions())}
	if m.awaiting() {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Err returns the fatal error that ended the session, if any.
func (m Model) Err() error {
	return m.fatal
}

// ActiveChat returns the selected chat id, zero when there is none.
func (m Model) ActiveChat() store.ChatID {
	if m.selected < 0 || m.selected >= len(m.chats) {
		return 0
	}
	return m.chats[m.selected].ID
}

// Attach reports whether the next send captures a screenshot.
func (m Model) Attach() bool {
	return m.attach
}

// Status returns the current status line text.
func (m Model) Status() string {
	return m.status
}

// Messages returns the messages of the active chat as last loaded.
func (m Model) Messages() []store.Message {
	return m.messages
}

// =============================================================================
// STORE RELOADS
// =============================================================================

// reloadChats refreshes the chat list and selects want, or the newest chat
// when want is zero or gone.
func (m *Model) reloadChats(want store.ChatID) {
	chats, err := m.store.ListChats(context.Background())
	if err != nil {
		m.fail(err)
		return
	}
	m.chats = chats
	m.selected = len(chats) - 1
	for i, c := range chats {
		if c.ID == want {
			m.selected = i
			break
		}
	}
}

func (m *Model) reloadMessages() {
	id := m.ActiveChat()
	if id == 0 {
		m.messages = nil
		m.refreshViewport()
		return
	}
	msgs, err := m.store.ListMessages(context.Background(), id)
	if err != nil {
		m.fail(err)
		return
	}
	m.messages = msgs
	m.refreshViewport()
}

func (m *Model) reloadServers() {
	servers, err := m.store.ListServers(context.Background())
	if err != nil {
		m.fail(err)
		return
	}
	m.servers = servers
}

// awaiting reports whether the active chat has unanswered turns.
func (m Model) awaiting() bool {
	id := m.ActiveChat()
	return id != 0 && m.dispatcher.State(id) == dispatch.AwaitingResponse
}
