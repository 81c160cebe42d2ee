// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"

	"github.com/jeranaias/deskchat/internal/ollama"
	"github.com/jeranaias/deskchat/internal/tools"
)

func newOllamaChat(client *ollama.Client) ChatFunc {
	return func(ctx context.Context, messages []tools.Message, defs []tools.Definition) (string, []tools.Call, error) {
		req := ollama.ChatRequest{
			Model:    client.Model(),
			Messages: toOllamaMessages(messages),
		}
		for _, d := range defs {
			req.Tools = append(req.Tools, ollama.Tool{
				Type: "function",
				Function: ollama.ToolSchema{
					Name:        d.Name,
					Description: d.Description,
					Parameters:  d.Parameters,
				},
			})
		}

		resp, err := client.Chat(ctx, req)
		if err != nil {
			return "", nil, err
		}

		calls := make([]tools.Call, 0, len(resp.Message.ToolCalls))
		for _, tc := range resp.Message.ToolCalls {
			args := tc.Function.Arguments
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, tools.Call{Name: tc.Function.Name, Arguments: args})
		}
		return resp.Message.Content, calls, nil
	}
}

func toOllamaMessages(messages []tools.Message) []ollama.Message {
	out := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case tools.RoleSystem:
			out = append(out, ollama.NewSystemMessage(m.Content))
		case tools.RoleAssistant:
			calls := make([]ollama.ToolCall, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				calls = append(calls, ollama.ToolCall{
					Function: ollama.ToolFunction{Name: c.Name, Arguments: c.Arguments},
				})
			}
			out = append(out, ollama.NewAssistantMessage(m.Content, calls...))
		case tools.RoleTool:
			out = append(out, ollama.NewToolResultMessage(m.ToolName, m.Content))
		default:
			out = append(out, ollama.NewUserMessage(m.Content))
		}
	}
	return out
}
