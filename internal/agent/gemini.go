// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jeranaias/deskchat/internal/tools"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

func newGeminiChat(ctx context.Context, apiKey, baseURL, model string) (ChatFunc, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return func(ctx context.Context, messages []tools.Message, defs []tools.Definition) (string, []tools.Call, error) {
		system, contents := toGeminiContents(messages)
		gc := &genai.GenerateContentConfig{SystemInstruction: system}
		if len(defs) > 0 {
			decls := make([]*genai.FunctionDeclaration, 0, len(defs))
			for _, d := range defs {
				decls = append(decls, &genai.FunctionDeclaration{
					Name:                 d.Name,
					Description:          d.Description,
					ParametersJsonSchema: d.Parameters,
				})
			}
			gc.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		}

		resp, err := client.Models.GenerateContent(ctx, model, contents, gc)
		if err != nil {
			return "", nil, fmt.Errorf("gemini: %w", err)
		}

		var calls []tools.Call
		for _, fc := range resp.FunctionCalls() {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, tools.Call{ID: fc.ID, Name: fc.Name, Arguments: args})
		}
		return resp.Text(), calls, nil
	}, nil
}

func toGeminiContents(messages []tools.Message) (*genai.Content, []*genai.Content) {
	var system []string
	var out []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case tools.RoleSystem:
			system = append(system, m.Content)
		case tools.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, c := range m.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(c.Name, c.Arguments))
			}
			if len(parts) > 0 {
				out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case tools.RoleTool:
			out = append(out, genai.NewContentFromFunctionResponse(m.ToolName,
				map[string]any{"output": m.Content}, genai.RoleUser))
		default:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return nil, out
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), out
}
