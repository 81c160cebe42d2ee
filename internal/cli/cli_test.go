// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/deskchat/internal/capture"
	"github.com/jeranaias/deskchat/internal/config"
	"github.com/jeranaias/deskchat/internal/store"
)

// =============================================================================
// HELPERS
// =============================================================================

// fakeOllama answers /api/chat with a fixed reply and records the last user
// message it received.
type fakeOllama struct {
	*httptest.Server

	mu       sync.Mutex
	lastUser string
	calls    int
}

func newFakeOllama(t *testing.T, status int, reply string) *fakeOllama {
	t.Helper()
	f := &fakeOllama{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			f.mu.Lock()
			f.calls++
			for _, m := range body.Messages {
				if m.Role == "user" {
					f.lastUser = m.Content
				}
			}
			f.mu.Unlock()
		}
		if status != http.StatusOK {
			http.Error(w, `{"error":"model exploded"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "llama3.1",
			"done":    true,
			"message": map[string]any{"role": "assistant", "content": reply},
		})
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOllama) user() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUser
}

// setupEnv points deskchat at a temporary data dir and an ollama fake. It
// returns the config file path.
func setupEnv(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DESKCHAT_HOME", dir)
	t.Setenv("DESKCHAT_AGENT_PROVIDER", "ollama")
	t.Setenv("DESKCHAT_AGENT_BASE_URL", baseURL)
	t.Setenv("DESKCHAT_SEARCH_ENABLED", "false")
	return filepath.Join(dir, "config.toml")
}

func noCapture() AppOption {
	return WithAppCapturer(capture.Func(func(context.Context) ([]byte, error) {
		return nil, &capture.CaptureError{Err: capture.ErrUnavailable}
	}))
}

// run executes one command line and returns its stdout.
func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(noCapture(), WithPrompt(func(string) (string, error) {
		return "", config.ErrNotInteractive
	}))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// CHATS / SERVERS / CONFIG
// =============================================================================

func TestChatsNewListShow(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	out, err := run(t, cfgPath, "chats")
	require.NoError(t, err)
	assert.Contains(t, out, "No chats yet")

	out, err = run(t, cfgPath, "chats", "new", "Work", "notes")
	require.NoError(t, err)
	assert.Equal(t, "Created chat 1\n", out)

	out, err = run(t, cfgPath, "chats", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Work notes")
	assert.Contains(t, out, "*    1")

	out, err = run(t, cfgPath, "chats", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "# Work notes (0 messages)")
}

func TestChatsNewRejectsBlankTitle(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	_, err := run(t, cfgPath, "chats", "new", "   ")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestChatsShowErrors(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	_, err := run(t, cfgPath, "chats", "show", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, err = run(t, cfgPath, "chats", "show", "42")
	var usage *UsageError
	require.True(t, errors.As(err, &usage), "got %v", err)
	assert.Equal(t, "no such chat", usage.Reason)
}

func TestServersAddAndList(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	out, err := run(t, cfgPath, "servers")
	require.NoError(t, err)
	assert.Contains(t, out, "No servers registered.")

	out, err = run(t, cfgPath, "servers", "add", "ws://tool1")
	require.NoError(t, err)
	assert.Equal(t, "Registered server 1\n", out)
	_, err = run(t, cfgPath, "servers", "add", "ws://tool2")
	require.NoError(t, err)

	out, err = run(t, cfgPath, "servers", "list")
	require.NoError(t, err)
	assert.Equal(t, "   1  ws://tool1\n   2  ws://tool2\n", out)

	_, err = run(t, cfgPath, "servers", "add", " ")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConfigCommands(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")
	abs, err := filepath.Abs(cfgPath)
	require.NoError(t, err)

	out, err := run(t, cfgPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, abs+"\n", out)

	_, err = run(t, cfgPath, "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(cfgPath)
	require.NoError(t, err)

	_, err = run(t, cfgPath, "config", "init")
	assert.Error(t, err, "existing file must not be overwritten")
	_, err = run(t, cfgPath, "config", "init", "--force")
	assert.NoError(t, err)

	out, err = run(t, cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `provider = "ollama"`, "environment overrides are applied")
}

func TestConfigPathWorksWithBrokenFile(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[agent\n"), 0600))

	_, err := run(t, cfgPath, "config", "path")
	require.NoError(t, err)

	_, err = run(t, cfgPath, "chats")
	var startup *StartupError
	require.True(t, errors.As(err, &startup), "got %v", err)
	assert.Equal(t, "config", startup.Step)
	assert.Equal(t, ExitGeneralError, ExitCode(err))
}

func TestChatsExport(t *testing.T) {
	srv := newFakeOllama(t, http.StatusOK, "pong")
	cfgPath := setupEnv(t, srv.URL)

	_, err := run(t, cfgPath, "ask", "ping")
	require.NoError(t, err)

	out, err := run(t, cfgPath, "chats", "export", "1", "--format", "json", "--output", "-")
	require.NoError(t, err)
	var decoded struct {
		Provider string `json:"provider"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "ollama", decoded.Provider)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "pong", decoded.Messages[1].Content)

	dir := t.TempDir()
	out, err = run(t, cfgPath, "chats", "export", "1", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported to "+dir)

	_, err = run(t, cfgPath, "chats", "export", "1", "--format", "pdf")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// ASK
// =============================================================================

func TestAskPrintsReplyAndStoresTurn(t *testing.T) {
	srv := newFakeOllama(t, http.StatusOK, "pong")
	cfgPath := setupEnv(t, srv.URL)

	_, err := run(t, cfgPath, "servers", "add", "ws://tool1")
	require.NoError(t, err)

	out, err := run(t, cfgPath, "ask", "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong\n", out)
	assert.Equal(t, "ping\nMCP Servers: ws://tool1", srv.user())

	out, err = run(t, cfgPath, "chats", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "# Chat 1 (2 messages)")
	assert.Contains(t, out, "ping\n")
	assert.NotContains(t, out, "MCP Servers", "augmentation is never stored")
	assert.Contains(t, out, "pong")
}

func TestAskAttachFailureStillSends(t *testing.T) {
	srv := newFakeOllama(t, http.StatusOK, "no image")
	cfgPath := setupEnv(t, srv.URL)

	out, err := run(t, cfgPath, "ask", "--attach", "look")
	require.NoError(t, err)
	assert.Equal(t, "no image\n", out)
	assert.Contains(t, srv.user(), "look\n[Failed to capture screenshot:")
}

func TestAskAgentFailureExitsNonZero(t *testing.T) {
	srv := newFakeOllama(t, http.StatusInternalServerError, "")
	cfgPath := setupEnv(t, srv.URL)

	_, err := run(t, cfgPath, "ask", "ping")
	require.Error(t, err)
	assert.Equal(t, ExitGeneralError, ExitCode(err))

	out, err := run(t, cfgPath, "chats", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Error: ", "the surrogate reply is stored")
}

func TestAskUnknownChatIsUsageError(t *testing.T) {
	srv := newFakeOllama(t, http.StatusOK, "pong")
	cfgPath := setupEnv(t, srv.URL)

	_, err := run(t, cfgPath, "ask", "--chat", "99", "ping")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Zero(t, srv.calls)
}

func TestAskFailsWithoutCredentials(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")
	t.Setenv("DESKCHAT_AGENT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := run(t, cfgPath, "ask", "ping")
	var startup *StartupError
	require.True(t, errors.As(err, &startup), "got %v", err)
	assert.Equal(t, "credentials", startup.Step)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Equal(t, ExitGeneralError, ExitCode(err))
}

// =============================================================================
// REPL
// =============================================================================

// scriptedInput replays lines, then reports EOF.
type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) ReadInput(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()
	cfgPath := setupEnv(t, baseURL)
	cfg, err := config.LoadFromPath(cfgPath)
	require.NoError(t, err)

	app, err := NewApp(context.Background(), cfg, zaptest.NewLogger(t), noCapture())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestNewAppEnsuresDefaultChat(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:1")

	assert.Equal(t, store.ChatID(1), app.DefaultChat)
	chats, err := app.Store.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, store.DefaultChatTitle, chats[0].Title)
	assert.Equal(t, "llama3.1", app.Model())
}

func TestREPLSession(t *testing.T) {
	srv := newFakeOllama(t, http.StatusOK, "pong")
	app := newTestApp(t, srv.URL)

	var out bytes.Buffer
	r := newREPL(app, &out)
	in := &scriptedInput{lines: []string{
		"/new Work",
		"/server ws://tool1",
		"",
		"hello",
		"/history",
		"/bogus",
	}}

	require.NoError(t, r.run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "Created chat 2")
	assert.Contains(t, text, "Registered server 1")
	assert.Contains(t, text, "pong")
	assert.Contains(t, text, "Unknown command: /bogus")
	assert.Contains(t, text, "Goodbye!")
	assert.Equal(t, "hello\nMCP Servers: ws://tool1", srv.user())
	assert.Equal(t, "[2] > ", in.prompts[len(in.prompts)-1])

	msgs, err := app.Store.ListMessages(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "pong", msgs[1].Content)
}

func TestREPLAttachResetsAfterSend(t *testing.T) {
	srv := newFakeOllama(t, http.StatusOK, "ok")
	app := newTestApp(t, srv.URL)

	var out bytes.Buffer
	r := newREPL(app, &out)
	in := &scriptedInput{lines: []string{"/attach", "look", "again"}}
	require.NoError(t, r.run(context.Background(), in))

	assert.Equal(t, "[1 +screenshot] > ", in.prompts[1])
	assert.Equal(t, "[1] > ", in.prompts[2])
	assert.Contains(t, out.String(), "Screenshot not attached")
	assert.Equal(t, "again", srv.user())
}

func TestREPLSwitchAndQuit(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:1")

	var out bytes.Buffer
	r := newREPL(app, &out)
	in := &scriptedInput{lines: []string{"/switch 7", "/switch x", "/quit", "never read"}}
	require.NoError(t, r.run(context.Background(), in))

	assert.Contains(t, out.String(), "No chat with id 7")
	assert.Contains(t, out.String(), "Usage: /switch <id>")
	assert.Equal(t, store.ChatID(1), r.chat)
	assert.Len(t, in.lines, 1)
}

func TestREPLAgentFailurePrintsSurrogate(t *testing.T) {
	srv := newFakeOllama(t, http.StatusInternalServerError, "")
	app := newTestApp(t, srv.URL)

	var out bytes.Buffer
	r := newREPL(app, &out)
	require.NoError(t, r.run(context.Background(), &scriptedInput{lines: []string{"ping"}}))
	assert.Contains(t, out.String(), "Error: ")
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitGeneralError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitGeneralError, ExitCode(&StartupError{Step: "store", Err: errors.New("locked")}))
	assert.Equal(t, ExitUsageError, ExitCode(&UsageError{Field: "chat", Reason: "no such chat"}))
	assert.Equal(t, ExitGeneralError, ExitCode(NewCommandError("ask", "respond", "agent failed", errors.New("x"))))
}
