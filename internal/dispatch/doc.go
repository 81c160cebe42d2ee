// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch turns user sends into persisted turns answered in the
// background.
//
// Submit validates the request, captures an optional screenshot, stores the
// user message and queues the agent call on the chat's lane. Each chat has
// one FIFO lane; lanes of different chats run in parallel under a global
// concurrency limit. Results come back as Completion values on the
// Completions channel, after the agent reply has been stored.
//
// # Key Types
//
//   - Dispatcher: owns the lanes, the semaphore and the completions channel
//   - Request: one user send
//   - Turn: a queued user message and its lifecycle status
//   - Completion: outcome of a turn, delivered once per turn
//
// # Usage
//
//	d := dispatch.New(st, session, dispatch.WithCapturer(capture.NewCommand(nil)))
//	turn, err := d.Submit(ctx, dispatch.Request{ChatID: 1, Text: "ping"})
//	c := <-d.Completions()
//	fmt.Println(c.Reply)
//	_ = d.Close(ctx)
package dispatch
