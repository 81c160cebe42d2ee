// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jeranaias/deskchat/internal/tools"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.ChatModelGPT4oMini

func newOpenAIChat(apiKey, baseURL, model string) ChatFunc {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return func(ctx context.Context, messages []tools.Message, defs []tools.Definition) (string, []tools.Call, error) {
		params := openai.ChatCompletionNewParams{
			Model:    model,
			Messages: toOpenAIMessages(messages),
		}
		for _, d := range defs {
			params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        d.Name,
					Description: openai.String(d.Description),
					Parameters:  d.Parameters,
				},
			})
		}

		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", nil, fmt.Errorf("openai: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", nil, fmt.Errorf("openai: response has no choices")
		}

		msg := resp.Choices[0].Message
		calls := make([]tools.Call, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			args, err := decodeArguments(tc.Function.Arguments)
			if err != nil {
				return "", nil, fmt.Errorf("openai: tool %s: %w", tc.Function.Name, err)
			}
			calls = append(calls, tools.Call{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
		}
		return msg.Content, calls, nil
	}
}

func toOpenAIMessages(messages []tools.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case tools.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case tools.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   c.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: encodeArguments(c.Arguments),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: calls,
				},
			})
		case tools.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// encodeArguments renders tool arguments as the JSON string the tools
// dialect expects.
func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decodeArguments parses a JSON arguments string or object. Empty input is
// an empty argument set.
func decodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" || raw == "null" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
