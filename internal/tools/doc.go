// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the tools an agent may call while answering, and
// the message types the tool loop exchanges with providers.
//
// # Key Types
//
//   - Tool: name, description, parameters and the function that runs it
//   - Registry: ordered set of tools with schema export and execution
//   - Call: a tool invocation requested by the model
//   - Result: outcome of one call, formatted back into the conversation
//   - Message: provider-neutral conversation entry
//
// # Available Tools
//
//   - search: DuckDuckGo HTML search, rate limited, no API key required
//
// # Usage
//
//	reg := tools.NewRegistry()
//	reg.Register(tools.NewSearch(tools.SearchOptions{PerMinute: 20}).Tool())
//	res := reg.Execute(ctx, tools.Call{ID: "1", Name: "search", Arguments: args})
package tools
