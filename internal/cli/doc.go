// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the deskchat command tree.
//
// The root command launches the TUI. Subcommands cover line-mode chat and
// scripting:
//
//   - repl: line-mode chat with input history
//   - ask: send one message and print the reply
//   - chats: list, create and show chats
//   - servers: list and register tool-server addresses
//   - config: print the config path, show the effective config, write defaults
//
// # Startup
//
// Commands that talk to the agent build an App in a fixed order: config,
// logger, credentials, agent, store, default chat, dispatcher. A failure at
// any step aborts with ExitGeneralError before anything is shown.
//
// # Usage
//
//	os.Exit(cli.Execute())
package cli
