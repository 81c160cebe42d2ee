// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/deskchat/internal/store"
)

func newServersCommand(e *env) *cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered server addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			servers, err := st.ListServers(cmd.Context())
			if err != nil {
				return NewCommandError("servers", "list", "could not read servers", err)
			}
			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintln(out, "No servers registered.")
				return nil
			}
			for i, addr := range servers {
				fmt.Fprintf(out, "%4d  %s\n", i+1, addr)
			}
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage tool-server addresses sent with every message",
		Long: `Registered addresses are appended to every message sent to the agent.
They are not contacted by deskchat itself.`,
		Args: cobra.NoArgs,
		RunE: list.RunE,
	}

	cmd.AddCommand(list, &cobra.Command{
		Use:     "add <address>",
		Short:   "Register a server address",
		Example: "  deskchat servers add ws://localhost:8931",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := st.RegisterServer(cmd.Context(), args[0])
			if errors.Is(err, store.ErrValidation) {
				return &UsageError{Field: "address", Reason: "must not be empty"}
			}
			if err != nil {
				return NewCommandError("servers", "add", "could not register server", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered server %d\n", id)
			return nil
		},
	})
	return cmd
}
