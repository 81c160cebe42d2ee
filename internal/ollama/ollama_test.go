// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageConstructors(t *testing.T) {
	if msg := NewUserMessage("Hello"); msg.Role != "user" || msg.Content != "Hello" {
		t.Errorf("NewUserMessage = %+v", msg)
	}
	if msg := NewSystemMessage("Be brief"); msg.Role != "system" {
		t.Errorf("Role = %q, want 'system'", msg.Role)
	}
	call := ToolCall{Function: ToolFunction{Name: "search", Arguments: map[string]any{"query": "go"}}}
	if msg := NewAssistantMessage("", call); len(msg.ToolCalls) != 1 || msg.Role != "assistant" {
		t.Errorf("NewAssistantMessage = %+v", msg)
	}
	if msg := NewToolResultMessage("search", "3 results"); msg.Role != "tool" || msg.ToolName != "search" {
		t.Errorf("NewToolResultMessage = %+v", msg)
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestNewClientDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://host:1/"})
	if c.config.BaseURL != "http://host:1" {
		t.Errorf("BaseURL = %q, trailing slash not trimmed", c.config.BaseURL)
	}
	if c.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", c.Model(), DefaultModel)
	}
	if c.config.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v", c.config.Timeout)
	}
}

func TestChatSendsToolsAndDecodesCalls(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model: got.Model,
			Done:  true,
			Message: Message{
				Role: "assistant",
				ToolCalls: []ToolCall{{Function: ToolFunction{
					Name:      "search",
					Arguments: map[string]any{"query": "weather"},
				}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, DefaultModel: "qwen2.5"})
	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{NewUserMessage("weather?")},
		Tools: []Tool{{Type: "function", Function: ToolSchema{
			Name:       "search",
			Parameters: map[string]any{"type": "object"},
		}}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if got.Model != "qwen2.5" {
		t.Errorf("model = %q, want default", got.Model)
	}
	if got.Stream {
		t.Error("stream must be false")
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "search" {
		t.Errorf("tools = %+v", got.Tools)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Function.Arguments["query"] != "weather" {
		t.Errorf("tool calls = %+v", resp.Message.ToolCalls)
	}
}

func TestChatErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
		msg    string
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'x' not found"}`, IsModelNotFound, ""},
		{"server error body", http.StatusInternalServerError, `{"error":"out of memory"}`, nil, "out of memory"},
		{"server error status", http.StatusBadGateway, `nope`, nil, "502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).Chat(context.Background(), ChatRequest{})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.check != nil && !tt.check(err) {
				t.Errorf("classification failed for %v", err)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClientWithConfig(&ClientConfig{BaseURL: url}).CheckRunning(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("CheckRunning() = %v, want not running", err)
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Chat(context.Background(), ChatRequest{})
	if !IsTimeout(err) {
		t.Errorf("Chat() = %v, want timeout", err)
	}
}
