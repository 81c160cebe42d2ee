// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import "encoding/json"

// Dialect selects how tool calls are encoded on the wire.
type Dialect int

const (
	// DialectTools uses the OpenAI "tools" / "tool_calls" encoding.
	DialectTools Dialect = iota

	// DialectFunctions uses the "functions" / "function_call" encoding
	// that GigaChat implements.
	DialectFunctions
)

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system", "tool" or "function"
	Content string `json:"content"`

	// Tools dialect
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`

	// Functions dialect
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	Name         string        `json:"name,omitempty"`
}

// ToolCall is a tool invocation in the tools dialect. Arguments is a JSON
// encoded string.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// FunctionCall is a tool invocation in the functions dialect. GigaChat sends
// Arguments as a JSON object.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// FunctionDef describes a callable function.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool wraps a FunctionDef for the tools dialect.
type Tool struct {
	Type     string      `json:"type"` // Always "function"
	Function FunctionDef `json:"function"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// ChatRequest is the provider-neutral request. Functions are encoded
// according to the client's dialect.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Functions   []FunctionDef
	Temperature float64
	MaxTokens   int
}

// wireRequest is the JSON body sent to /chat/completions.
type wireRequest struct {
	Model        string        `json:"model"`
	Messages     []ChatMessage `json:"messages"`
	Stream       bool          `json:"stream"`
	Temperature  float64       `json:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	Tools        []Tool        `json:"tools,omitempty"`
	Functions    []FunctionDef `json:"functions,omitempty"`
	FunctionCall string        `json:"function_call,omitempty"`
}

// ChatResponse represents a chat completion response.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Message returns the first choice's message, or a zero message.
func (r *ChatResponse) Message() ChatMessage {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message
	}
	return ChatMessage{}
}

// apiErrorResponse is the OpenAI-style error body.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
	// GigaChat returns a flat body
	Status  int    `json:"status"`
	Message string `json:"message"`
}
