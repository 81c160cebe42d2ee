// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/deskchat/internal/agent"
	"github.com/jeranaias/deskchat/internal/store"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage means the text was empty after trimming whitespace.
	ErrEmptyMessage = fmt.Errorf("empty message: %w", store.ErrValidation)

	// ErrNoActiveChat means the request did not name a chat.
	ErrNoActiveChat = fmt.Errorf("no active chat: %w", store.ErrValidation)

	// ErrClosed means the dispatcher no longer accepts requests.
	ErrClosed = errors.New("dispatcher closed")
)

// =============================================================================
// TURN
// =============================================================================

// TurnStatus is the lifecycle state of a turn.
type TurnStatus string

const (
	// TurnQueued indicates the turn waits behind earlier turns of its chat
	TurnQueued TurnStatus = "Queued"

	// TurnRunning indicates the agent is being asked
	TurnRunning TurnStatus = "Running"

	// TurnComplete indicates the agent reply was stored
	TurnComplete TurnStatus = "Complete"

	// TurnFailed indicates the agent failed or the reply could not be stored
	TurnFailed TurnStatus = "Failed"
)

func (s TurnStatus) String() string {
	return string(s)
}

// Request is one user send.
type Request struct {
	ChatID store.ChatID
	Text   string

	// Attach captures a screenshot and attaches it to the message.
	Attach bool
}

// Turn is a user message accepted by Submit.
type Turn struct {
	ID            string
	ChatID        store.ChatID
	UserMessageID store.MessageID
	Status        TurnStatus
	SubmittedAt   time.Time

	// Attached is set when a screenshot was captured and stored.
	Attached bool

	// CaptureErr is the capture failure, if capture was requested and failed.
	CaptureErr error

	// input is what the agent receives; it is never persisted.
	input string
}

// Duration returns the time since submission.
func (t Turn) Duration() time.Duration {
	return time.Since(t.SubmittedAt)
}

// Completion reports the end of a turn.
type Completion struct {
	Turn Turn

	// MessageID is the stored agent message; zero when storing failed.
	MessageID store.MessageID

	// Reply is the agent text, or the error surrogate that was stored.
	Reply string

	// AgentErr is set when the agent failed. The surrogate is still stored.
	AgentErr *agent.AgentError

	// Err is set when the reply could not be stored. A *store.StorageError
	// here is fatal for the session.
	Err error
}

// Failed reports whether the turn did not produce a normal reply.
func (c Completion) Failed() bool {
	return c.AgentErr != nil || c.Err != nil
}

// =============================================================================
// CHAT STATE
// =============================================================================

// ChatState is the presentation-facing state of a chat.
type ChatState int

const (
	// Idle means no turns are pending for the chat.
	Idle ChatState = iota

	// AwaitingResponse means at least one turn has not completed.
	AwaitingResponse
)

func (s ChatState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingResponse:
		return "AwaitingResponse"
	default:
		return fmt.Sprintf("ChatState(%d)", int(s))
	}
}
