// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/dispatch"
	"github.com/jeranaias/deskchat/internal/export"
	"github.com/jeranaias/deskchat/internal/store"
	"github.com/jeranaias/deskchat/internal/ui/styles"
	"github.com/jeranaias/deskchat/internal/util"
)

func newReplCommand(e *env) *cobra.Command {
	var chatID int64
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Line-mode chat with input history",
		Long: `Starts a line-mode chat. Each line is sent to the agent and the reply is
printed when it arrives. Lines starting with / are commands; type /help to
list them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			r := newREPL(app, cmd.OutOrStdout())
			if chatID != 0 {
				if err := r.switchTo(cmd.Context(), store.ChatID(chatID)); err != nil {
					return err
				}
			}

			in := newHistoryLiner(app.Config.HistoryPath(), app.Logger)
			defer in.Close()
			return r.run(cmd.Context(), in)
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat id (default: newest chat)")
	return cmd
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// historyLiner provides line editing with history persisted across runs.
type historyLiner struct {
	line        *liner.State
	historyFile string
	logger      *zap.Logger
}

func newHistoryLiner(historyFile string, logger *zap.Logger) *historyLiner {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	h := &historyLiner{line: line, historyFile: historyFile, logger: logger}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return h
}

// ReadInput reads a line and adds non-empty input to history.
func (h *historyLiner) ReadInput(prompt string) (string, error) {
	input, err := h.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		h.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (h *historyLiner) Close() {
	defer h.line.Close()

	if err := os.MkdirAll(filepath.Dir(h.historyFile), 0700); err != nil {
		h.logger.Warn("could not save input history", zap.Error(err))
		return
	}
	f, err := os.OpenFile(h.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		h.logger.Warn("could not save input history", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := h.line.WriteHistory(f); err != nil {
		h.logger.Warn("could not save input history", zap.Error(err))
	}
}

// =============================================================================
// REPL
// =============================================================================

// repl is a line-mode chat session.
type repl struct {
	app   *App
	out   io.Writer
	print *printer

	chat   store.ChatID
	attach bool
}

func newREPL(app *App, out io.Writer) *repl {
	return &repl{
		app:   app,
		out:   out,
		print: newPrinter(out, app.Config.UI.Markdown, app.Config.UI.NoColor),
		chat:  app.DefaultChat,
	}
}

func (r *repl) prompt() string {
	if r.attach {
		return fmt.Sprintf("[%d +screenshot] > ", r.chat)
	}
	return fmt.Sprintf("[%d] > ", r.chat)
}

// run reads lines until EOF, ctrl+c, /quit or a storage failure.
func (r *repl) run(ctx context.Context, in lineReader) error {
	fmt.Fprintf(r.out, "deskchat %s (%s) - type /help for commands, /quit to exit\n\n", Version, r.app.Config.Agent.Provider)
	for {
		line, err := in.ReadInput(r.prompt())
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		quit, err := r.handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}
	}
}

// handle processes one input line. The returned error is fatal.
func (r *repl) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil
	case strings.HasPrefix(line, "/"):
		return r.command(ctx, line)
	default:
		return false, r.send(ctx, line)
	}
}

func (r *repl) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/h", "/?":
		r.help()

	case "/attach", "/a":
		r.attach = !r.attach
		if r.attach {
			fmt.Fprintln(r.out, styles.RenderInfo("Screenshot will be attached to the next message."))
		} else {
			fmt.Fprintln(r.out, styles.RenderInfo("Screenshot attach off."))
		}

	case "/chats":
		chats, err := r.app.Store.ListChats(ctx)
		if err != nil {
			return false, err
		}
		for _, c := range chats {
			fmt.Fprintln(r.out, chatRow(c, c.ID == r.chat))
		}

	case "/new":
		id, err := r.app.Store.CreateChat(ctx, arg)
		if errors.Is(err, store.ErrValidation) {
			fmt.Fprintln(r.out, styles.RenderWarning("Usage: /new <title>"))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		r.chat = id
		fmt.Fprintln(r.out, styles.RenderSuccess(fmt.Sprintf("Created chat %d", id)))

	case "/switch", "/s":
		id, err := parseChatID(arg)
		if err != nil {
			fmt.Fprintln(r.out, styles.RenderWarning("Usage: /switch <id>"))
			return false, nil
		}
		return false, r.switchTo(ctx, id)

	case "/history":
		msgs, err := r.app.Store.ListMessages(ctx, r.chat)
		if err != nil {
			return false, err
		}
		if len(msgs) == 0 {
			fmt.Fprintln(r.out, "No messages yet.")
		}
		for _, m := range msgs {
			r.print.message(m)
		}

	case "/servers":
		servers, err := r.app.Store.ListServers(ctx)
		if err != nil {
			return false, err
		}
		if len(servers) == 0 {
			fmt.Fprintln(r.out, "No servers registered.")
		}
		for i, addr := range servers {
			fmt.Fprintf(r.out, "%4d  %s\n", i+1, addr)
		}

	case "/server":
		id, err := r.app.Store.RegisterServer(ctx, arg)
		if errors.Is(err, store.ErrValidation) {
			fmt.Fprintln(r.out, styles.RenderWarning("Usage: /server <address>"))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, styles.RenderSuccess(fmt.Sprintf("Registered server %d", id)))

	case "/export":
		return false, r.export(ctx, arg)

	default:
		fmt.Fprintln(r.out, styles.RenderWarning(fmt.Sprintf("Unknown command: %s (try /help)", name)))
	}
	return false, nil
}

// export writes the current chat to a file in the working directory.
func (r *repl) export(ctx context.Context, format string) error {
	exp, err := export.ForFormat(format, nil)
	if err != nil {
		fmt.Fprintln(r.out, styles.RenderWarning("Usage: /export [markdown|json]"))
		return nil
	}
	t, err := export.Load(ctx, r.app.Store, r.chat)
	if err != nil {
		return err
	}
	t.Provider = r.app.Config.Agent.Provider
	t.Model = r.app.Model()

	path, err := export.WriteFile(t, exp, ".")
	if errors.Is(err, export.ErrEmptyChat) {
		fmt.Fprintln(r.out, "No messages to export.")
		return nil
	}
	if err != nil {
		fmt.Fprintln(r.out, styles.RenderError(err.Error()))
		return nil
	}
	fmt.Fprintln(r.out, styles.RenderSuccess("Exported to "+path))
	return nil
}

// switchTo selects an existing chat. Unknown ids are reported, not fatal.
func (r *repl) switchTo(ctx context.Context, id store.ChatID) error {
	chat, err := r.app.Store.GetChat(ctx, id)
	if errors.Is(err, store.ErrChatNotFound) {
		fmt.Fprintln(r.out, styles.RenderWarning(fmt.Sprintf("No chat with id %d", id)))
		return nil
	}
	if err != nil {
		return err
	}
	r.chat = chat.ID
	fmt.Fprintln(r.out, styles.RenderInfo(fmt.Sprintf("Switched to %q", util.TruncateWidth(chat.Title, 40))))
	return nil
}

// send submits a message and waits for its reply. Interrupting the wait
// leaves the turn running; its reply is still stored.
func (r *repl) send(ctx context.Context, text string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	turn, err := r.app.Dispatcher.Submit(ctx, dispatch.Request{ChatID: r.chat, Text: text, Attach: r.attach})
	if store.IsStorageError(err) {
		return err
	}
	if err != nil {
		fmt.Fprintln(r.out, styles.RenderError(err.Error()))
		return nil
	}
	r.attach = false
	if turn.CaptureErr != nil {
		fmt.Fprintln(r.out, styles.RenderWarning(fmt.Sprintf("Screenshot not attached: %v", turn.CaptureErr)))
	}

	c, err := awaitTurn(ctx, r.app.Dispatcher, turn.ID, r.late)
	if err != nil {
		fmt.Fprintln(r.out, styles.RenderWarning("Stopped waiting; the reply will be saved when it arrives."))
		return nil
	}
	return r.complete(c)
}

// complete prints a finished turn. Storage failures are returned.
func (r *repl) complete(c dispatch.Completion) error {
	if c.Err != nil {
		if store.IsStorageError(c.Err) {
			return c.Err
		}
		fmt.Fprintln(r.out, styles.RenderError(c.Err.Error()))
		return nil
	}
	if c.AgentErr != nil {
		fmt.Fprintln(r.out, styles.RenderError(c.Reply))
		return nil
	}
	r.print.reply(c.Reply)
	return nil
}

// late reports a reply that arrived for an earlier, interrupted turn.
func (r *repl) late(c dispatch.Completion) {
	r.app.Logger.Debug("late completion", zap.String("turn_id", c.Turn.ID))
	fmt.Fprintln(r.out, styles.RenderInfo(fmt.Sprintf("Earlier reply in chat %d was saved.", c.Turn.ChatID)))
}

func (r *repl) help() {
	cmds := []struct{ name, desc string }{
		{"/help, /h", "Show this help"},
		{"/chats", "List chats"},
		{"/new <title>", "Create a chat and switch to it"},
		{"/switch <id>", "Switch to another chat"},
		{"/history", "Show the current chat's messages"},
		{"/attach", "Attach a screenshot to the next message"},
		{"/export [format]", "Write the chat to a markdown or json file"},
		{"/servers", "List registered server addresses"},
		{"/server <address>", "Register a server address"},
		{"/quit, /q", "Exit"},
	}
	fmt.Fprintln(r.out, "Commands:")
	for _, c := range cmds {
		fmt.Fprintf(r.out, "  %-20s %s\n", c.name, c.desc)
	}
}
