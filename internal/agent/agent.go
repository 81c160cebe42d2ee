// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Agent answers a single input.
type Agent interface {
	Respond(ctx context.Context, input string) (string, error)
}

// Named is implemented by agents that report their provider.
type Named interface {
	Provider() string
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, input string) (string, error)

// Respond calls f.
func (f AgentFunc) Respond(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyReply means the model answered with no text.
	ErrEmptyReply = errors.New("agent returned an empty reply")

	// ErrPanic means the agent panicked.
	ErrPanic = errors.New("agent panicked")
)

// AgentError is returned by Session.Respond for every failure.
type AgentError struct {
	Provider string
	Err      error
}

func (e *AgentError) Error() string {
	if e.Provider == "" {
		return e.Err.Error()
	}
	return e.Provider + ": " + e.Err.Error()
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// Surrogate is the reply text stored in place of a failed answer.
func Surrogate(err error) string {
	var aerr *AgentError
	if errors.As(err, &aerr) {
		err = aerr.Err
	}
	return "Error: " + err.Error()
}

// =============================================================================
// SESSION
// =============================================================================

// Session makes one attempt per Respond call against a single Agent.
// It is safe for concurrent use when the Agent is.
type Session struct {
	agent    Agent
	provider string
	timeout  time.Duration
	logger   *zap.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTimeout bounds each Respond call. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

// WithSessionLogger sets the logger used for failed calls.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession wraps a.
func NewSession(a Agent, opts ...SessionOption) *Session {
	s := &Session{agent: a, logger: zap.NewNop()}
	if n, ok := a.(Named); ok {
		s.provider = n.Provider()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the wrapped agent's provider name, if known.
func (s *Session) Provider() string {
	return s.provider
}

// Respond asks the agent once. On failure it returns a non-empty surrogate
// reply together with an *AgentError, so the caller always has text to
// store.
func (s *Session) Respond(ctx context.Context, input string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.call(ctx, input)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && s.timeout > 0 {
			err = fmt.Errorf("no reply within %v: %w", s.timeout, err)
		}
		aerr := &AgentError{Provider: s.provider, Err: err}
		s.logger.Warn("agent call failed",
			zap.String("provider", s.provider),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Surrogate(aerr), aerr
	}

	s.logger.Debug("agent replied",
		zap.String("provider", s.provider),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("reply_len", len(reply)))
	return reply, nil
}

func (s *Session) call(ctx context.Context, input string) (reply string, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("agent panic", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			reply, err = "", fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return s.agent.Respond(ctx, input)
}
