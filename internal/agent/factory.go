// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/cloud"
	"github.com/jeranaias/deskchat/internal/config"
	"github.com/jeranaias/deskchat/internal/ollama"
	"github.com/jeranaias/deskchat/internal/tools"
)

var (
	// ErrMissingCredentials is returned when the provider needs a key and
	// none was resolved.
	ErrMissingCredentials = config.ErrMissingCredentials

	// ErrMalformedCredentials is returned for keys with the wrong shape.
	ErrMalformedCredentials = config.ErrMalformedCredentials

	// ErrUnknownProvider is returned for provider names New does not know.
	ErrUnknownProvider = errors.New("unknown provider")
)

type options struct {
	tools      *tools.Registry
	logger     *zap.Logger
	httpClient *http.Client
	oauthURL   string
	chat       ChatFunc
}

// Option configures New.
type Option func(*options)

// WithTools offers reg's tools to the model.
func WithTools(reg *tools.Registry) Option {
	return func(o *options) { o.tools = reg }
}

// WithLogger sets the logger for the tool loop.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHTTPClient overrides the HTTP client used by the ollama, openrouter
// and gigachat providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithOAuthURL overrides the GigaChat token endpoint.
func WithOAuthURL(u string) Option {
	return func(o *options) { o.oauthURL = u }
}

// WithChatFunc bypasses provider construction and drives the loop with fn.
func WithChatFunc(fn ChatFunc) Option {
	return func(o *options) { o.chat = fn }
}

// New builds the Agent for cfg.Provider. cfg.Credentials must already be
// resolved for providers that need them.
func New(cfg config.AgentConfig, opts ...Option) (Agent, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &loopAgent{
		provider:     cfg.Provider,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		loop: &Loop{
			Tools:    o.tools,
			MaxSteps: cfg.MaxSteps,
			Logger:   o.logger.With(zap.String("provider", cfg.Provider)),
		},
		chat: o.chat,
	}
	if a.chat != nil {
		return a, nil
	}

	if config.CredentialEnv(cfg.Provider) != "" {
		if cfg.Credentials == "" {
			return nil, fmt.Errorf("%w: provider %s", ErrMissingCredentials, cfg.Provider)
		}
		if err := config.ValidateCredentials(cfg.Provider, cfg.Credentials); err != nil {
			return nil, err
		}
	}

	switch cfg.Provider {
	case "gigachat":
		client, err := cloud.NewGigaChat(cfg.Credentials, cfg.Model, o.oauthURL, o.cloudOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCredentials, err)
		}
		a.model = client.Model()
		a.chat = newCloudChat(client)

	case "openrouter":
		client := cloud.NewOpenRouter(cfg.Credentials, cfg.Model, o.cloudOptions(cfg))
		a.model = client.Model()
		a.chat = newCloudChat(client)

	case "ollama":
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout(),
			DefaultModel: cfg.Model,
			HTTPClient:   o.httpClient,
		})
		a.model = client.Model()
		a.chat = newOllamaChat(client)

	case "openai":
		if a.model == "" {
			a.model = DefaultOpenAIModel
		}
		a.chat = newOpenAIChat(cfg.Credentials, cfg.BaseURL, a.model)

	case "anthropic":
		if a.model == "" {
			a.model = DefaultAnthropicModel
		}
		a.chat = newAnthropicChat(cfg.Credentials, cfg.BaseURL, a.model)

	case "gemini":
		if a.model == "" {
			a.model = DefaultGeminiModel
		}
		chat, err := newGeminiChat(context.Background(), cfg.Credentials, cfg.BaseURL, a.model)
		if err != nil {
			return nil, err
		}
		a.chat = chat

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	o.logger.Info("agent ready",
		zap.String("provider", a.provider),
		zap.String("model", a.model),
		zap.Bool("tools", o.tools != nil && o.tools.Len() > 0))
	return a, nil
}

func (o options) cloudOptions(cfg config.AgentConfig) cloud.Options {
	return cloud.Options{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout(),
		InsecureTLS: cfg.InsecureTLS,
		Config: func(c *cloud.Config) {
			c.Logger = o.logger
			if o.httpClient != nil {
				c.HTTPClient = o.httpClient
			}
		},
	}
}
