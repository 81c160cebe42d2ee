// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"crypto/rand"
	"encoding/hex"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a conversation message exchanged with a provider.
type Message struct {
	// Role is "system", "user", "assistant" or "tool"
	Role string `json:"role"`

	Content string `json:"content"`

	// ToolCalls contains any tool calls requested by the assistant
	ToolCalls []Call `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result back to its call (for role="tool")
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName names the tool that produced a result (for role="tool")
	ToolName string `json:"tool_name,omitempty"`
}

// NewSystemMessage creates a system prompt message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message, with tool calls when the
// model requested any.
func NewAssistantMessage(content string, calls ...Call) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage creates a tool result message.
func NewToolResultMessage(call Call, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}

// NewCallID generates an id for providers that do not assign one.
func NewCallID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "call_" + hex.EncodeToString(b)
}
