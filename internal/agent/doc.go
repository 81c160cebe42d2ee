// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent turns one user input into one reply from a language model.
//
// A provider adapter translates the provider-neutral conversation into its
// SDK or wire format; Loop drives the model through tool calls until it
// answers; Session wraps the result with a timeout, panic recovery and the
// guarantee that every failure still yields displayable text.
//
// # Key Types
//
//   - Agent: anything that answers an input
//   - Session: single-attempt wrapper returning a surrogate reply on failure
//   - AgentError: failure of a Respond call, tagged with the provider
//   - Loop: bounded tool-calling loop shared by all providers
//   - ChatFunc: one model round trip, implemented per provider
//
// # Providers
//
//   - gigachat, openrouter: internal/cloud
//   - ollama: internal/ollama
//   - openai: github.com/openai/openai-go
//   - anthropic: github.com/anthropics/anthropic-sdk-go
//   - gemini: google.golang.org/genai
//
// # Usage
//
//	a, err := agent.New(cfg.Agent, agent.WithTools(registry), agent.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	session := agent.NewSession(a, agent.WithTimeout(cfg.Agent.Timeout()))
//	reply, err := session.Respond(ctx, "ping")
package agent
