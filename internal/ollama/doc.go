// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for a local Ollama server.
//
// Only the non-streaming /api/chat call with tool definitions is needed by
// deskchat, plus /api/tags for a reachability check.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role, content, and optional tool calls
//   - ChatRequest: Request structure for chat completions
//   - ClientError: classified failure (not running, timeout, model missing)
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{DefaultModel: "llama3.1"})
//	resp, err := client.Chat(ctx, ollama.ChatRequest{
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	})
package ollama
