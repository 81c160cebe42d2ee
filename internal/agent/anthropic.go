// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/jeranaias/deskchat/internal/tools"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = string(anthropic.ModelClaude3_5Sonnet20241022)

const anthropicMaxTokens = 4096

func newAnthropicChat(apiKey, baseURL, model string) ChatFunc {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)

	return func(ctx context.Context, messages []tools.Message, defs []tools.Definition) (string, []tools.Call, error) {
		system, msgs := toAnthropicMessages(messages)
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			Messages:  msgs,
			MaxTokens: anthropicMaxTokens,
		}
		if len(system) > 0 {
			params.System = system
		}
		for _, d := range defs {
			params.Tools = append(params.Tools, toAnthropicTool(d))
		}

		resp, err := client.Messages.New(ctx, params)
		if err != nil {
			return "", nil, fmt.Errorf("anthropic: %w", err)
		}

		var text strings.Builder
		var calls []tools.Call
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.AsText().Text)
			case "tool_use":
				use := block.AsToolUse()
				args, err := decodeArguments(string(use.Input))
				if err != nil {
					return "", nil, fmt.Errorf("anthropic: tool %s: %w", use.Name, err)
				}
				calls = append(calls, tools.Call{ID: use.ID, Name: use.Name, Arguments: args})
			}
		}
		return text.String(), calls, nil
	}
}

// toAnthropicMessages splits out the system prompt and groups consecutive
// tool results into one user turn, as the Messages API requires.
func toAnthropicMessages(messages []tools.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range messages {
		if m.Role == tools.RoleTool {
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
			continue
		}
		flush()

		switch m.Role {
		case tools.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case tools.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, c := range m.ToolCalls {
				args := c.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, args, c.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()
	return system, out
}

func toAnthropicTool(d tools.Definition) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if props, ok := d.Parameters["properties"]; ok {
		schema.Properties = props
	}
	switch req := d.Parameters["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	tool := anthropic.ToolUnionParamOfTool(schema, d.Name)
	if tool.OfTool != nil && d.Description != "" {
		tool.OfTool.Description = anthropic.String(d.Description)
	}
	return tool
}
