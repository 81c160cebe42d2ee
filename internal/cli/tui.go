// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/ui/chat"
	"github.com/jeranaias/deskchat/internal/ui/styles"
)

// runTUI starts the full-screen chat interface.
func runTUI(cmd *cobra.Command, e *env) error {
	app, err := e.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	model := chat.New(chat.Options{
		Store:      app.Store,
		Dispatcher: app.Dispatcher,
		Theme:      styles.NewTheme(app.Config.UI.NoColor),
		ActiveChat: app.DefaultChat,
		Provider:   app.Config.Agent.Provider,
		Model:      app.Model(),
		Markdown:   app.Config.UI.Markdown,
		Logger:     app.Logger,
	})

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	if m, ok := final.(chat.Model); ok && m.Err() != nil {
		app.Logger.Error("session ended on storage failure", zap.Error(m.Err()))
		return m.Err()
	}
	return nil
}
