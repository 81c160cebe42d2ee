// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/config"
	"github.com/jeranaias/deskchat/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// env carries state shared between the root command and its children.
type env struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	// appOpts are applied to every NewApp call.
	appOpts []AppOption
}

// Execute runs the command tree against os.Args and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "deskchat: %v\n", err)
	}
	return ExitCode(err)
}

// NewRootCommand builds the deskchat command tree.
func NewRootCommand(opts ...AppOption) *cobra.Command {
	e := &env{appOpts: opts}

	root := &cobra.Command{
		Use:   "deskchat",
		Short: "Terminal chat with a language-model agent",
		Long: `deskchat is a local terminal chat client.

Conversations are stored in a SQLite file in the data directory. Each
message can carry a screenshot and is sent to the agent together with the
registered tool-server addresses.

Run without arguments to start the interactive chat interface.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, e)
		},
	}

	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "config file (default: <data dir>/config.toml)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newReplCommand(e),
		newAskCommand(e),
		newChatsCommand(e),
		newServersCommand(e),
		newConfigCommand(e),
	)
	return root
}

// tomlPath returns the config file in use.
func (e *env) tomlPath() (string, error) {
	if e.configPath != "" {
		return filepath.Abs(e.configPath)
	}
	return config.PathTOML()
}

// load reads .env files, the config and starts the logger.
func (e *env) load() error {
	path, err := e.tomlPath()
	if err != nil {
		return &StartupError{Step: "config", Err: err}
	}
	if err := config.LoadDotEnv(filepath.Dir(path)); err != nil {
		return &StartupError{Step: "config", Err: err}
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return &StartupError{Step: "config", Err: err}
	}
	logger, err := logging.New(cfg, e.verbose)
	if err != nil {
		return &StartupError{Step: "logger", Err: err}
	}
	e.cfg = cfg
	e.logger = logger.With(zap.String("version", Version))
	return nil
}

func (e *env) sync() {
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// openApp runs the remaining startup steps for commands that talk to the
// agent.
func (e *env) openApp(ctx context.Context) (*App, error) {
	return NewApp(ctx, e.cfg, e.logger, e.appOpts...)
}
