// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/deskchat/internal/config"
	"github.com/jeranaias/deskchat/internal/tools"
)

// recorder captures JSON request bodies sent to a fake provider.
type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *recorder) record(t *testing.T, req *http.Request) map[string]any {
	data, err := io.ReadAll(req.Body)
	assert.NoError(t, err)
	var body map[string]any
	assert.NoError(t, json.Unmarshal(data, &body))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	return body
}

func (r *recorder) last() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodies[len(r.bodies)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func lastMessage(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	msgs, ok := body["messages"].([]any)
	require.True(t, ok, "messages missing from %v", body)
	return msgs[len(msgs)-1].(map[string]any)
}

func TestOllamaProviderRunsToolLoop(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		rec.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		if rec.count() == 1 {
			io.WriteString(w, `{"model":"llama3.1","done":true,"message":{"role":"assistant","content":"",
				"tool_calls":[{"function":{"name":"echo","arguments":{"text":"pong"}}}]}}`)
			return
		}
		io.WriteString(w, `{"model":"llama3.1","done":true,"message":{"role":"assistant","content":"pong"}}`)
	}))
	defer srv.Close()

	a, err := New(config.AgentConfig{Provider: "ollama", BaseURL: srv.URL, MaxSteps: 4},
		WithTools(echoRegistry(t)))
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	require.Equal(t, 2, rec.count())
	first := rec.bodies[0]
	assert.Equal(t, false, first["stream"])
	assert.Len(t, first["tools"], 1)

	result := lastMessage(t, rec.last())
	assert.Equal(t, "tool", result["role"])
	assert.Equal(t, "echo", result["tool_name"])
	assert.Contains(t, result["content"], "pong")
}

func TestOpenRouterProviderUsesToolsDialect(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-or-test", r.Header.Get("Authorization"))
		rec.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		if rec.count() == 1 {
			io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"",
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{\"text\":\"pong\"}"}}]}}]}`)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer srv.Close()

	a, err := New(config.AgentConfig{Provider: "openrouter", BaseURL: srv.URL, Credentials: "sk-or-test", TimeoutSecs: 5},
		WithTools(echoRegistry(t)))
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	first := rec.bodies[0]
	assert.Len(t, first["tools"], 1)
	assert.Nil(t, first["functions"])

	result := lastMessage(t, rec.last())
	assert.Equal(t, "tool", result["role"])
	assert.Equal(t, "call_1", result["tool_call_id"])
}

func TestGigaChatProviderUsesFunctionsDialect(t *testing.T) {
	rec := &recorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"tok","expires_at":4102444800000}`)
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		rec.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		if rec.count() == 1 {
			io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"",
				"function_call":{"name":"echo","arguments":{"text":"pong"}}}}]}`)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, err := New(config.AgentConfig{Provider: "gigachat", BaseURL: srv.URL, Credentials: "id:secret", TimeoutSecs: 5},
		WithTools(echoRegistry(t)), WithOAuthURL(srv.URL+"/oauth"))
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	first := rec.bodies[0]
	assert.Len(t, first["functions"], 1)
	assert.Equal(t, "auto", first["function_call"])
	assert.Nil(t, first["tools"])

	second := rec.last()
	msgs := second["messages"].([]any)
	call := msgs[len(msgs)-2].(map[string]any)
	assert.Equal(t, "assistant", call["role"])
	assert.Equal(t, "echo", call["function_call"].(map[string]any)["name"])

	result := msgs[len(msgs)-1].(map[string]any)
	assert.Equal(t, "function", result["role"])
	assert.Equal(t, "echo", result["name"])
	assert.Contains(t, result["content"], `"result"`)
}

func TestOpenAIProvider(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		rec.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer srv.Close()

	a, err := New(config.AgentConfig{Provider: "openai", BaseURL: srv.URL + "/v1/", Credentials: "sk-test", SystemPrompt: "be brief"})
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	body := rec.last()
	assert.Equal(t, string(DefaultOpenAIModel), body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestAnthropicProvider(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		rec.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"pong"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	a, err := New(config.AgentConfig{Provider: "anthropic", BaseURL: srv.URL, Credentials: "sk-ant", SystemPrompt: "be brief"},
		WithTools(echoRegistry(t)))
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	body := rec.last()
	assert.NotNil(t, body["system"])
	assert.Len(t, body["tools"], 1)
	assert.Len(t, body["messages"], 1)
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func TestToAnthropicMessagesGroupsToolResults(t *testing.T) {
	call1 := tools.Call{ID: "a", Name: "echo", Arguments: map[string]any{"text": "1"}}
	call2 := tools.Call{ID: "b", Name: "echo", Arguments: map[string]any{"text": "2"}}
	msgs := []tools.Message{
		tools.NewSystemMessage("sys"),
		tools.NewUserMessage("hi"),
		tools.NewAssistantMessage("", call1, call2),
		tools.NewToolResultMessage(call1, "1"),
		tools.NewToolResultMessage(call2, "2"),
	}

	system, out := toAnthropicMessages(msgs)
	require.Len(t, system, 1)
	assert.Equal(t, "sys", system[0].Text)
	require.Len(t, out, 3)
	assert.Len(t, out[1].Content, 2)
	assert.Len(t, out[2].Content, 2)
}

func TestToGeminiContents(t *testing.T) {
	call := tools.Call{ID: "a", Name: "echo", Arguments: map[string]any{"text": "1"}}
	system, out := toGeminiContents([]tools.Message{
		tools.NewSystemMessage("sys"),
		tools.NewUserMessage("hi"),
		tools.NewAssistantMessage("", call),
		tools.NewToolResultMessage(call, "1"),
	})

	require.NotNil(t, system)
	require.Len(t, out, 3)
	assert.Equal(t, "model", out[1].Role)
	require.NotNil(t, out[1].Parts[0].FunctionCall)
	assert.Equal(t, "echo", out[1].Parts[0].FunctionCall.Name)
	require.NotNil(t, out[2].Parts[0].FunctionResponse)
	assert.Equal(t, "echo", out[2].Parts[0].FunctionResponse.Name)
}

func TestDecodeRawArgumentsAcceptsStringOrObject(t *testing.T) {
	args, err := decodeRawArguments(json.RawMessage(`{"q":"go"}`))
	require.NoError(t, err)
	assert.Equal(t, "go", args["q"])

	args, err = decodeRawArguments(json.RawMessage(`"{\"q\":\"go\"}"`))
	require.NoError(t, err)
	assert.Equal(t, "go", args["q"])

	_, err = decodeRawArguments(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}
