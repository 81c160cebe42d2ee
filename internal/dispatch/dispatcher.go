// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/deskchat/internal/agent"
	"github.com/jeranaias/deskchat/internal/capture"
	"github.com/jeranaias/deskchat/internal/store"
)

const (
	// DefaultMaxConcurrent bounds agent calls across all chats.
	DefaultMaxConcurrent = 4

	// DefaultServerLabel prefixes the server list appended to agent input.
	DefaultServerLabel = "MCP Servers: "

	// completionBuffer is the capacity of the completions channel.
	completionBuffer = 64
)

// Store is the persistence the dispatcher needs.
type Store interface {
	AppendMessage(ctx context.Context, chatID store.ChatID, role store.Role, content string, attachment []byte) (store.MessageID, error)
	ListServers(ctx context.Context) ([]string, error)
}

// Responder answers one agent input. *agent.Session satisfies it.
type Responder interface {
	Respond(ctx context.Context, input string) (string, error)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCapturer sets the screenshot source used for Request.Attach.
func WithCapturer(c capture.Capturer) Option {
	return func(d *Dispatcher) { d.capturer = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMaxConcurrent bounds agent calls across all chats.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrent = n
		}
	}
}

// WithServerLabel changes the prefix of the server list in agent input.
func WithServerLabel(label string) Option {
	return func(d *Dispatcher) { d.serverLabel = label }
}

// =============================================================================
// DISPATCHER
// =============================================================================

// lane is the FIFO of one chat. submitMu orders persistence of user
// messages; the other fields are guarded by Dispatcher.mu. refs counts
// submits holding the lane; an idle lane with no refs is dropped.
type lane struct {
	chatID   store.ChatID
	submitMu sync.Mutex
	queue    []*Turn
	running  bool
	pending  int
	refs     int
}

func (ln *lane) idle() bool {
	return ln.refs == 0 && ln.pending == 0 && !ln.running && len(ln.queue) == 0
}

// Dispatcher accepts user sends and answers them in the background.
// It is safe for concurrent use.
type Dispatcher struct {
	store         Store
	session       Responder
	capturer      capture.Capturer
	logger        *zap.Logger
	maxConcurrent int
	serverLabel   string

	sem         chan struct{}
	completions chan Completion

	// ctx is canceled when Close abandons in-flight turns.
	ctx       context.Context
	cancel    context.CancelFunc
	abandoned chan struct{}

	mu     sync.Mutex
	lanes  map[store.ChatID]*lane
	closed bool
	wg     sync.WaitGroup

	closeOnce sync.Once
	now       func() time.Time
}

// New creates a Dispatcher that stores turns in st and answers them with
// session.
func New(st Store, session Responder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:         st,
		session:       session,
		logger:        zap.NewNop(),
		maxConcurrent: DefaultMaxConcurrent,
		serverLabel:   DefaultServerLabel,
		completions:   make(chan Completion, completionBuffer),
		abandoned:     make(chan struct{}),
		lanes:         make(map[store.ChatID]*lane),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sem = make(chan struct{}, d.maxConcurrent)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Completions delivers one Completion per accepted turn. The channel is
// closed after a clean Close.
func (d *Dispatcher) Completions() <-chan Completion {
	return d.completions
}

// Submit validates req, stores the user message and queues the agent call.
// It returns once the user message is durable; the reply arrives later on
// Completions. Validation failures wrap store.ErrValidation and leave the
// store untouched.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Turn, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}
	if req.ChatID == 0 {
		return Turn{}, ErrNoActiveChat
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Turn{}, ErrClosed
	}
	d.wg.Add(1)
	ln := d.laneLocked(req.ChatID)
	d.mu.Unlock()

	turn, err := d.prepare(ctx, ln, req, text)
	d.release(ln)
	if err != nil {
		d.wg.Done()
		return Turn{}, err
	}
	return turn, nil
}

func (d *Dispatcher) prepare(ctx context.Context, ln *lane, req Request, text string) (Turn, error) {
	turn := &Turn{
		ID:          uuid.NewString(),
		ChatID:      req.ChatID,
		Status:      TurnQueued,
		SubmittedAt: d.now(),
	}

	stored := text
	input := text
	var blob []byte
	if req.Attach {
		data, err := d.capture(ctx)
		if err != nil {
			note := fmt.Sprintf("\n[Failed to capture screenshot: %v]", err)
			stored += note
			input += note
			turn.CaptureErr = err
			d.logger.Warn("screenshot capture failed", zap.Int64("chat_id", int64(req.ChatID)), zap.Error(err))
		} else {
			blob = data
			stored += "\n[Screenshot attached]"
			input = stored + "\n" + base64.StdEncoding.EncodeToString(data)
			turn.Attached = true
		}
	}

	ln.submitMu.Lock()
	defer ln.submitMu.Unlock()

	servers, err := d.store.ListServers(ctx)
	if err != nil {
		return Turn{}, fmt.Errorf("list servers: %w", err)
	}

	id, err := d.store.AppendMessage(ctx, req.ChatID, store.RoleUser, stored, blob)
	if err != nil {
		return Turn{}, fmt.Errorf("store user message: %w", err)
	}
	turn.UserMessageID = id

	if len(servers) > 0 {
		input += "\n" + d.serverLabel + strings.Join(servers, ", ")
	}
	turn.input = input

	// The lane owns *turn once it is queued.
	snapshot := *turn
	d.enqueue(ln, turn)

	d.logger.Info("turn queued",
		zap.String("turn_id", snapshot.ID),
		zap.Int64("chat_id", int64(snapshot.ChatID)),
		zap.Int64("message_id", int64(snapshot.UserMessageID)),
		zap.Bool("attached", snapshot.Attached),
		zap.Int("servers", len(servers)))
	return snapshot, nil
}

func (d *Dispatcher) capture(ctx context.Context) ([]byte, error) {
	if d.capturer == nil {
		return nil, &capture.CaptureError{Err: capture.ErrUnavailable}
	}
	return d.capturer.Capture(ctx)
}

// laneLocked returns the lane for id, creating it, and takes a reference
// that release gives back. d.mu must be held.
func (d *Dispatcher) laneLocked(id store.ChatID) *lane {
	ln, ok := d.lanes[id]
	if !ok {
		ln = &lane{chatID: id}
		d.lanes[id] = ln
	}
	ln.refs++
	return ln
}

func (d *Dispatcher) release(ln *lane) {
	d.mu.Lock()
	ln.refs--
	d.dropIdleLocked(ln)
	d.mu.Unlock()
}

// dropIdleLocked forgets ln once nothing holds or waits on it.
func (d *Dispatcher) dropIdleLocked(ln *lane) {
	if ln.idle() && d.lanes[ln.chatID] == ln {
		delete(d.lanes, ln.chatID)
	}
}

func (d *Dispatcher) enqueue(ln *lane, turn *Turn) {
	d.mu.Lock()
	ln.queue = append(ln.queue, turn)
	ln.pending++
	start := !ln.running
	ln.running = true
	d.mu.Unlock()

	if start {
		go d.runLane(ln)
	}
}

// runLane drains one chat's queue in order, then exits.
func (d *Dispatcher) runLane(ln *lane) {
	for {
		d.mu.Lock()
		if len(ln.queue) == 0 {
			ln.running = false
			d.dropIdleLocked(ln)
			d.mu.Unlock()
			return
		}
		turn := ln.queue[0]
		ln.queue[0] = nil
		ln.queue = ln.queue[1:]
		d.mu.Unlock()

		d.process(ln, turn)
	}
}

// process asks the agent, stores the reply and delivers the completion.
func (d *Dispatcher) process(ln *lane, turn *Turn) {
	defer d.wg.Done()

	c := Completion{}
	select {
	case d.sem <- struct{}{}:
		turn.Status = TurnRunning
		c.Reply, c.AgentErr = d.respond(turn)
		<-d.sem
	case <-d.ctx.Done():
		aerr := &agent.AgentError{Err: d.ctx.Err()}
		c.Reply, c.AgentErr = agent.Surrogate(aerr), aerr
	}

	// The reply is stored even when the turn was abandoned.
	id, err := d.store.AppendMessage(context.Background(), turn.ChatID, store.RoleAgent, c.Reply, nil)
	if err != nil {
		c.Err = fmt.Errorf("store agent reply: %w", err)
	}
	c.MessageID = id

	if c.Failed() {
		turn.Status = TurnFailed
	} else {
		turn.Status = TurnComplete
	}
	c.Turn = *turn

	d.mu.Lock()
	ln.pending--
	d.mu.Unlock()

	fields := []zap.Field{
		zap.String("turn_id", turn.ID),
		zap.Int64("chat_id", int64(turn.ChatID)),
		zap.String("status", turn.Status.String()),
		zap.Duration("elapsed", turn.Duration()),
	}
	switch {
	case c.Err != nil:
		d.logger.Error("turn failed", append(fields, zap.Error(c.Err))...)
	case c.AgentErr != nil:
		d.logger.Warn("turn failed", append(fields, zap.Error(c.AgentErr))...)
	default:
		d.logger.Info("turn complete", append(fields, zap.Int64("reply_id", int64(c.MessageID)))...)
	}

	select {
	case d.completions <- c:
	case <-d.abandoned:
		d.logger.Warn("completion dropped", zap.String("turn_id", turn.ID))
	}
}

// respond asks the agent once and normalizes the outcome to a non-empty
// reply plus an optional *agent.AgentError.
func (d *Dispatcher) respond(turn *Turn) (string, *agent.AgentError) {
	reply, err := d.session.Respond(d.ctx, turn.input)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = agent.ErrEmptyReply
	}
	if err == nil {
		return reply, nil
	}

	var aerr *agent.AgentError
	if !errors.As(err, &aerr) {
		aerr = &agent.AgentError{Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		reply = agent.Surrogate(aerr)
	}
	return reply, aerr
}

// State reports whether chatID has turns that have not completed.
func (d *Dispatcher) State(chatID store.ChatID) ChatState {
	if d.Pending(chatID) > 0 {
		return AwaitingResponse
	}
	return Idle
}

// Pending returns the number of accepted, not yet completed turns of chatID.
func (d *Dispatcher) Pending(chatID store.ChatID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ln, ok := d.lanes[chatID]; ok {
		return ln.pending
	}
	return 0
}

// Close stops accepting requests and waits for accepted turns to finish.
// If ctx ends first, in-flight agent calls are canceled, their completions
// are dropped and ctx.Err() is returned. The completions channel is closed
// only after a clean drain.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	already := d.closed
	d.closed = true
	d.mu.Unlock()
	if already {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.closeOnce.Do(func() { close(d.completions) })
		d.logger.Info("dispatcher closed")
		return nil
	case <-ctx.Done():
		d.cancel()
		close(d.abandoned)
		d.logger.Warn("dispatcher closed with turns in flight", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
