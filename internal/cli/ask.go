// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/deskchat/internal/dispatch"
	"github.com/jeranaias/deskchat/internal/store"
)

func newAskCommand(e *env) *cobra.Command {
	var (
		chatID int64
		attach bool
	)
	cmd := &cobra.Command{
		Use:   "ask [flags] <text>",
		Short: "Send one message and print the reply",
		Long: `Sends a single message to the agent, waits for the reply and prints it.

The message and the reply are stored in the chat like any other turn. Without
--chat the newest chat is used.`,
		Example: `  deskchat ask "what does this error mean?" --attach
  deskchat ask --chat 3 "summarize our conversation"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			id := store.ChatID(chatID)
			if id == 0 {
				id = app.DefaultChat
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			turn, err := app.Dispatcher.Submit(ctx, dispatch.Request{
				ChatID: id,
				Text:   strings.Join(args, " "),
				Attach: attach,
			})
			if err != nil {
				return submitError("ask", id, err)
			}
			if turn.CaptureErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: screenshot not attached: %v\n", turn.CaptureErr)
			}

			c, err := awaitTurn(ctx, app.Dispatcher, turn.ID, nil)
			if err != nil {
				return NewCommandError("ask", "wait", "no reply received", err)
			}
			if c.Err != nil {
				return NewCommandError("ask", "store", "reply could not be saved", c.Err)
			}
			if c.AgentErr != nil {
				return NewCommandError("ask", "respond", "agent failed", c.AgentErr)
			}

			newPrinter(cmd.OutOrStdout(), app.Config.UI.Markdown, app.Config.UI.NoColor).reply(c.Reply)
			return nil
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat id (default: newest chat)")
	cmd.Flags().BoolVar(&attach, "attach", false, "attach a screenshot")
	return cmd
}

// awaitTurn blocks until the completion for turn id arrives. Completions for
// other turns are passed to other when it is non-nil.
func awaitTurn(ctx context.Context, d *dispatch.Dispatcher, id string, other func(dispatch.Completion)) (dispatch.Completion, error) {
	for {
		select {
		case c, ok := <-d.Completions():
			if !ok {
				return dispatch.Completion{}, dispatch.ErrClosed
			}
			if c.Turn.ID == id {
				return c, nil
			}
			if other != nil {
				other(c)
			}
		case <-ctx.Done():
			return dispatch.Completion{}, ctx.Err()
		}
	}
}

// submitError maps a Submit failure to a CLI error.
func submitError(command string, chatID store.ChatID, err error) error {
	switch {
	case errors.Is(err, dispatch.ErrEmptyMessage):
		return &UsageError{Field: "message", Reason: "must not be empty"}
	case errors.Is(err, store.ErrChatNotFound):
		return &UsageError{
			Field:   "chat",
			Value:   strconv.FormatInt(int64(chatID), 10),
			Reason:  "no such chat",
			Example: "deskchat chats list",
		}
	}
	return NewCommandError(command, "send", "message not sent", err)
}
