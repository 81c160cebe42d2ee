// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/agent"
	"github.com/jeranaias/deskchat/internal/capture"
	"github.com/jeranaias/deskchat/internal/config"
	"github.com/jeranaias/deskchat/internal/dispatch"
	"github.com/jeranaias/deskchat/internal/logging"
	"github.com/jeranaias/deskchat/internal/store"
	"github.com/jeranaias/deskchat/internal/tools"
)

// shutdownTimeout bounds how long Close waits for queued turns.
const shutdownTimeout = 5 * time.Second

// App holds the wired components shared by the chat commands.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Agent      agent.Agent
	Session    *agent.Session
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher

	// DefaultChat is the newest chat after EnsureDefaultChat.
	DefaultChat store.ChatID
}

type appOptions struct {
	prompt    config.PromptFunc
	capturer  capture.Capturer
	agentOpts []agent.Option
}

// AppOption customizes NewApp.
type AppOption func(*appOptions)

// WithPrompt sets how missing credentials are asked for.
func WithPrompt(p config.PromptFunc) AppOption {
	return func(o *appOptions) { o.prompt = p }
}

// WithAppCapturer replaces the configured screenshot command.
func WithAppCapturer(c capture.Capturer) AppOption {
	return func(o *appOptions) { o.capturer = c }
}

// WithAgentOptions passes extra options to agent.New.
func WithAgentOptions(opts ...agent.Option) AppOption {
	return func(o *appOptions) { o.agentOpts = append(o.agentOpts, opts...) }
}

// NewApp runs the startup sequence after config and logging: credentials,
// agent, store, default chat, dispatcher. Any failure is a *StartupError and
// leaves nothing open.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...AppOption) (*App, error) {
	o := appOptions{prompt: config.TerminalPrompt(os.Stdin, os.Stderr)}
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.OrNop(logger)

	creds, err := config.ResolveCredentials(cfg.Agent.Provider, cfg.DotEnvPath(), o.prompt)
	if err != nil {
		return nil, &StartupError{Step: "credentials", Err: err}
	}
	cfg.Agent.Credentials = creds

	agentOpts := []agent.Option{agent.WithLogger(logger)}
	if cfg.Search.Enabled {
		reg := tools.NewRegistry()
		reg.Register(tools.NewSearch(tools.SearchOptions{
			MaxResults: cfg.Search.MaxResults,
			PerMinute:  cfg.Search.PerMinute,
		}).Tool())
		agentOpts = append(agentOpts, agent.WithTools(reg))
	}
	a, err := agent.New(cfg.Agent, append(agentOpts, o.agentOpts...)...)
	if err != nil {
		return nil, &StartupError{Step: "agent", Err: err}
	}
	session := agent.NewSession(a,
		agent.WithTimeout(cfg.Agent.Timeout()),
		agent.WithSessionLogger(logger))

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, &StartupError{Step: "store", Err: err}
	}
	chatID, err := st.EnsureDefaultChat(ctx, store.DefaultChatTitle)
	if err != nil {
		st.Close()
		return nil, &StartupError{Step: "default chat", Err: err}
	}

	capturer := o.capturer
	if capturer == nil {
		capturer = capture.NewCommand(cfg.Capture.Command)
	}
	d := dispatch.New(st, session,
		dispatch.WithCapturer(capturer),
		dispatch.WithLogger(logger),
		dispatch.WithMaxConcurrent(cfg.Dispatch.MaxConcurrent))

	logger.Info("startup complete",
		zap.String("provider", cfg.Agent.Provider),
		zap.String("model", modelName(a)),
		zap.String("database", st.Path()),
		zap.Int64("chat_id", int64(chatID)))

	return &App{
		Config:      cfg,
		Logger:      logger,
		Agent:       a,
		Session:     session,
		Store:       st,
		Dispatcher:  d,
		DefaultChat: chatID,
	}, nil
}

// Model returns the agent's model name, or "" when it has none.
func (a *App) Model() string {
	return modelName(a.Agent)
}

// Close drains the dispatcher, abandoning turns still running after
// shutdownTimeout, then closes the store. Abandoned turns are logged, not
// returned.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Dispatcher.Close(ctx); err != nil {
		a.Logger.Warn("abandoned running turns", zap.Error(err))
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func modelName(a agent.Agent) string {
	if m, ok := a.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}
