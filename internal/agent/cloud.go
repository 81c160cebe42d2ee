// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jeranaias/deskchat/internal/cloud"
	"github.com/jeranaias/deskchat/internal/tools"
)

func newCloudChat(client *cloud.Client) ChatFunc {
	return func(ctx context.Context, messages []tools.Message, defs []tools.Definition) (string, []tools.Call, error) {
		req := cloud.ChatRequest{
			Model:    client.Model(),
			Messages: toCloudMessages(messages, client.Dialect()),
		}
		for _, d := range defs {
			req.Functions = append(req.Functions, cloud.FunctionDef{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			})
		}

		resp, err := client.Chat(ctx, req)
		if err != nil {
			return "", nil, err
		}
		return fromCloudMessage(resp.Message())
	}
}

func toCloudMessages(messages []tools.Message, dialect cloud.Dialect) []cloud.ChatMessage {
	out := make([]cloud.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case tools.RoleAssistant:
			msg := cloud.ChatMessage{Role: "assistant", Content: m.Content}
			if dialect == cloud.DialectFunctions {
				// The functions dialect carries a single call per message.
				if len(m.ToolCalls) > 0 {
					c := m.ToolCalls[0]
					msg.FunctionCall = &cloud.FunctionCall{Name: c.Name, Arguments: json.RawMessage(encodeArguments(c.Arguments))}
				}
			} else {
				for _, c := range m.ToolCalls {
					var tc cloud.ToolCall
					tc.ID = c.ID
					tc.Type = "function"
					tc.Function.Name = c.Name
					tc.Function.Arguments = encodeArguments(c.Arguments)
					msg.ToolCalls = append(msg.ToolCalls, tc)
				}
			}
			out = append(out, msg)
		case tools.RoleTool:
			if dialect == cloud.DialectFunctions {
				content, _ := json.Marshal(map[string]string{"result": m.Content})
				out = append(out, cloud.ChatMessage{Role: "function", Name: m.ToolName, Content: string(content)})
			} else {
				out = append(out, cloud.ChatMessage{Role: "tool", ToolCallID: m.ToolCallID, Content: m.Content})
			}
		case tools.RoleSystem:
			out = append(out, cloud.NewSystemMessage(m.Content))
		default:
			out = append(out, cloud.NewUserMessage(m.Content))
		}
	}
	return out
}

func fromCloudMessage(msg cloud.ChatMessage) (string, []tools.Call, error) {
	if msg.FunctionCall != nil {
		args, err := decodeRawArguments(msg.FunctionCall.Arguments)
		if err != nil {
			return "", nil, fmt.Errorf("tool %s: %w", msg.FunctionCall.Name, err)
		}
		return msg.Content, []tools.Call{{ID: tools.NewCallID(), Name: msg.FunctionCall.Name, Arguments: args}}, nil
	}

	calls := make([]tools.Call, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return "", nil, fmt.Errorf("tool %s: %w", tc.Function.Name, err)
		}
		calls = append(calls, tools.Call{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return msg.Content, calls, nil
}

// decodeRawArguments accepts both an object and a JSON-encoded string, since
// providers in the functions dialect send either.
func decodeRawArguments(raw json.RawMessage) (map[string]any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decodeArguments(s)
	}
	return decodeArguments(string(raw))
}
