// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides clients for hosted chat-completion APIs that speak
// the OpenAI wire format: OpenRouter and Sber GigaChat.
//
// Both share one Client with retry and error classification. They differ in
// authentication (a static bearer key versus an OAuth token exchanged from
// client_id:client_secret) and in how tool calls are encoded (the "tools"
// array versus GigaChat's "functions").
//
// # Key Types
//
//   - Client: chat-completions client with TLS and retry support
//   - ChatMessage: message compatible with both wire dialects
//   - Authenticator: source of bearer tokens
//   - GigaChatAuth: OAuth token exchange with caching
//   - APIError: non-2xx response with status and provider code
//
// # Usage
//
//	client := cloud.NewOpenRouter(apiKey, "openrouter/auto")
//	resp, err := client.Chat(ctx, cloud.ChatRequest{
//	    Messages: []cloud.ChatMessage{cloud.NewUserMessage("Hello")},
//	})
//
// API keys and tokens are never logged.
package cloud
