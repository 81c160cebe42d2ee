// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and credential resolution
// for deskchat.
//
// # Key Types
//
//   - Config: complete configuration (storage, agent, search, capture, dispatch, log, ui)
//   - AgentConfig: provider selection, model and per-call limits
//   - ValidationError / ValidateErrors: field-level validation failures
//   - PromptFunc: interactive credential prompt used when a key is missing
//
// # Configuration Precedence
//
// Highest first:
//   - Environment variables (DESKCHAT_*), parsed with caarlos0/env
//   - ~/.deskchat/config.toml (DESKCHAT_HOME moves the directory)
//   - Built-in defaults
//
// Provider credentials are read from their conventional variables
// (GIGACHAT_CREDENTIALS, OPENAI_API_KEY, ...). LoadDotEnv populates those
// from .env files without overriding variables that are already set.
//
// # Usage
//
//	config.LoadDotEnv(dir)
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	key, err := config.ResolveCredentials(cfg.Agent.Provider, cfg.DotEnvPath(), config.TerminalPrompt(os.Stdin, os.Stderr))
package config
