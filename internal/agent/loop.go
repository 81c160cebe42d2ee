// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/tools"
)

// ChatFunc performs one model round trip. It returns the model's text and
// any tool calls it requested.
type ChatFunc func(ctx context.Context, messages []tools.Message, defs []tools.Definition) (string, []tools.Call, error)

// DefaultMaxSteps is the default number of model calls per turn.
const DefaultMaxSteps = 8

// DefaultMaxConsecutiveFailures stops the loop after this many rounds in
// which every tool call failed.
const DefaultMaxConsecutiveFailures = 3

var (
	// ErrMaxSteps is returned when the model keeps calling tools.
	ErrMaxSteps = errors.New("maximum steps reached")

	// ErrToolFailures is returned when too many consecutive tool rounds fail.
	ErrToolFailures = errors.New("too many consecutive tool failures")
)

// Loop runs the model with tools until it produces a plain answer.
// A Loop holds no per-run state and is safe for concurrent use.
type Loop struct {
	// Tools are offered to the model. Nil means no tools.
	Tools *tools.Registry

	// MaxSteps bounds model calls per run (default: 8)
	MaxSteps int

	// MaxConsecutiveFailures bounds all-failed tool rounds (default: 3)
	MaxConsecutiveFailures int

	Logger *zap.Logger
}

// Run executes the loop over the initial conversation:
//  1. Call the model with the conversation and tool definitions
//  2. If no tool calls are returned, return the text
//  3. Execute each tool call and append the results
//  4. Repeat until done or a limit is reached
func (l *Loop) Run(ctx context.Context, chat ChatFunc, conversation []tools.Message) (string, error) {
	maxSteps := l.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxFailures := l.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var defs []tools.Definition
	if l.Tools != nil {
		defs = l.Tools.Definitions()
	}

	messages := make([]tools.Message, len(conversation), len(conversation)+2*maxSteps)
	copy(messages, conversation)

	consecutiveFailures := 0
	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, calls, err := chat(ctx, messages, defs)
		if err != nil {
			return "", err
		}
		if len(calls) == 0 {
			return text, nil
		}

		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = tools.NewCallID()
			}
		}
		messages = append(messages, tools.NewAssistantMessage(text, calls...))

		allFailed := true
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			var result tools.Result
			if l.Tools == nil {
				result = tools.Result{Error: "no tools are available"}
			} else {
				result = l.Tools.Execute(ctx, call)
			}
			if result.Success {
				allFailed = false
			}
			logger.Debug("tool call",
				zap.Int("step", step),
				zap.String("tool", call.Name),
				zap.Bool("success", result.Success),
				zap.Duration("duration", result.Duration))

			messages = append(messages, tools.NewToolResultMessage(call, result.Format(call)))
		}

		if allFailed {
			consecutiveFailures++
		} else {
			consecutiveFailures = 0
		}
		if consecutiveFailures >= maxFailures {
			return "", fmt.Errorf("%w: %d consecutive failures", ErrToolFailures, consecutiveFailures)
		}
	}
	return "", fmt.Errorf("%w: %d", ErrMaxSteps, maxSteps)
}

// conversation builds the initial messages for one turn.
func conversation(systemPrompt, input string) []tools.Message {
	if systemPrompt == "" {
		return []tools.Message{tools.NewUserMessage(input)}
	}
	return []tools.Message{tools.NewSystemMessage(systemPrompt), tools.NewUserMessage(input)}
}

// loopAgent is an Agent backed by a ChatFunc and a Loop.
type loopAgent struct {
	provider     string
	model        string
	systemPrompt string
	loop         *Loop
	chat         ChatFunc
}

func (a *loopAgent) Respond(ctx context.Context, input string) (string, error) {
	return a.loop.Run(ctx, a.chat, conversation(a.systemPrompt, input))
}

func (a *loopAgent) Provider() string {
	return a.provider
}

// Model returns the model name the agent was built with.
func (a *loopAgent) Model() string {
	return a.model
}
