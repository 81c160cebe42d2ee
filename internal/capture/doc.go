// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package capture grabs a screenshot of the user's screen as PNG bytes.
//
// The default Capturer runs a platform screenshot program that writes PNG to
// stdout: ImageMagick's import on Linux and screencapture on macOS. Any other
// program can be configured through [capture] command in config.toml.
//
// # Key Types
//
//   - Capturer: anything that can produce a screenshot
//   - Command: Capturer backed by an external program
//   - Func: adapts a plain function to Capturer
//   - CaptureError: every capture failure, wrapping the cause
package capture
