// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import "time"

const (
	// DefaultOpenRouterURL is the base URL for OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultOpenRouterModel lets OpenRouter pick a model.
	DefaultOpenRouterModel = "openrouter/auto"

	// DefaultGigaChatURL is the GigaChat REST base URL.
	DefaultGigaChatURL = "https://gigachat.devices.sberbank.ru/api/v1"

	// DefaultGigaChatModel is the base GigaChat model.
	DefaultGigaChatModel = "GigaChat"
)

// OpenRouterModels maps friendly names to full model identifiers.
var OpenRouterModels = map[string]string{
	"auto":   "openrouter/auto",
	"haiku":  "anthropic/claude-3-haiku",
	"sonnet": "anthropic/claude-3.5-sonnet",
	"gpt4o":  "openai/gpt-4o",
}

// Options adjusts a provider client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	InsecureTLS bool
	Config      func(*Config)
}

func (o Options) apply(cfg *Config) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Timeout != 0 {
		cfg.Timeout = o.Timeout
	}
	cfg.InsecureTLS = cfg.InsecureTLS || o.InsecureTLS
	if o.Config != nil {
		o.Config(cfg)
	}
}

// NewOpenRouter creates an OpenRouter client using the tools dialect.
func NewOpenRouter(apiKey, model string, opts Options) *Client {
	if full, ok := OpenRouterModels[model]; ok {
		model = full
	}
	if model == "" {
		model = DefaultOpenRouterModel
	}
	cfg := Config{
		Provider: "openrouter",
		BaseURL:  DefaultOpenRouterURL,
		Model:    model,
		Dialect:  DialectTools,
		Auth:     StaticKey(apiKey),
		Headers: map[string]string{
			"HTTP-Referer": "https://github.com/jeranaias/deskchat",
			"X-Title":      "deskchat",
		},
	}
	opts.apply(&cfg)
	return NewClient(cfg)
}

// NewGigaChat creates a GigaChat client from "client_id:client_secret"
// credentials. oauthURL may be empty for the public endpoint.
func NewGigaChat(credentials, model, oauthURL string, opts Options) (*Client, error) {
	if model == "" {
		model = DefaultGigaChatModel
	}
	cfg := Config{
		Provider: "gigachat",
		BaseURL:  DefaultGigaChatURL,
		Model:    model,
		Dialect:  DialectFunctions,
	}
	opts.apply(&cfg)

	auth, err := NewGigaChatAuth(credentials, oauthURL, "", newHTTPClient(30*time.Second, cfg.InsecureTLS))
	if err != nil {
		return nil, err
	}
	cfg.Auth = auth
	return NewClient(cfg), nil
}
