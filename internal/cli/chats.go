// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/deskchat/internal/export"
	"github.com/jeranaias/deskchat/internal/store"
)

func newChatsCommand(e *env) *cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			chats, err := st.ListChats(cmd.Context())
			if err != nil {
				return NewCommandError("chats", "list", "could not read chats", err)
			}
			out := cmd.OutOrStdout()
			if len(chats) == 0 {
				fmt.Fprintln(out, "No chats yet. Create one with: deskchat chats new <title>")
				return nil
			}
			for i, c := range chats {
				fmt.Fprintln(out, chatRow(c, i == 0))
			}
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage chats",
		Args:  cobra.NoArgs,
		RunE:  list.RunE,
	}

	cmd.AddCommand(list,
		&cobra.Command{
			Use:   "new <title>",
			Short: "Create a chat",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := e.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				title := strings.Join(args, " ")
				id, err := st.CreateChat(cmd.Context(), title)
				if errors.Is(err, store.ErrValidation) {
					return &UsageError{Field: "title", Reason: "must not be empty"}
				}
				if err != nil {
					return NewCommandError("chats", "new", "could not create chat", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created chat %d\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a chat's messages",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseChatID(args[0])
				if err != nil {
					return err
				}
				st, err := e.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				chat, err := st.GetChat(cmd.Context(), id)
				if errors.Is(err, store.ErrChatNotFound) {
					return &UsageError{Field: "chat", Value: args[0], Reason: "no such chat", Example: "deskchat chats list"}
				}
				if err != nil {
					return NewCommandError("chats", "show", "could not read chat", err)
				}
				msgs, err := st.ListMessages(cmd.Context(), id)
				if err != nil {
					return NewCommandError("chats", "show", "could not read messages", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s (%d messages)\n\n", chat.Title, len(msgs))
				p := newPrinter(out, e.cfg.UI.Markdown, e.cfg.UI.NoColor)
				for _, m := range msgs {
					p.message(m)
				}
				return nil
			},
		},
		newChatsExportCommand(e),
	)
	return cmd
}

func newChatsExportCommand(e *env) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a chat to a Markdown or JSON file",
		Example: `  deskchat chats export 1
  deskchat chats export 1 --format json --output -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			exp, err := export.ForFormat(format, nil)
			if err != nil {
				return &UsageError{Field: "format", Value: format, Reason: "must be one of " + strings.Join(export.Formats, ", ")}
			}
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := export.Load(cmd.Context(), st, id)
			if errors.Is(err, store.ErrChatNotFound) {
				return &UsageError{Field: "chat", Value: args[0], Reason: "no such chat", Example: "deskchat chats list"}
			}
			if err != nil {
				return NewCommandError("chats", "export", "could not read chat", err)
			}
			t.Provider = e.cfg.Agent.Provider
			t.Model = e.cfg.Agent.Model

			if output == "-" {
				content, err := exp.Export(t)
				if err != nil {
					return NewCommandError("chats", "export", "could not encode chat", err)
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			}
			path, err := export.WriteFile(t, exp, output)
			if err != nil {
				return NewCommandError("chats", "export", "could not write file", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "directory for the file, or - for stdout")
	return cmd
}

// openStore opens the chat database without building an agent.
func (e *env) openStore() (*store.Store, error) {
	st, err := store.Open(e.cfg.DatabasePath())
	if err != nil {
		return nil, &StartupError{Step: "store", Err: err}
	}
	return st, nil
}

func parseChatID(s string) (store.ChatID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, &UsageError{Field: "chat id", Value: s, Reason: "must be a positive integer"}
	}
	return store.ChatID(n), nil
}
