// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/deskchat/internal/store"
)

func sampleTranscript() *Transcript {
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return &Transcript{
		Chat: store.Chat{ID: 3, Title: "Demo", CreatedAt: created},
		Messages: []store.Message{
			{ID: 1, ChatID: 3, Role: store.RoleUser, Content: "ping\n[Screenshot attached]", HasAttachment: true, Timestamp: created},
			{ID: 2, ChatID: 3, Role: store.RoleAgent, Content: "**pong**", Timestamp: created.Add(time.Second)},
		},
		Servers:    []string{"ws://tool1"},
		Provider:   "ollama",
		Model:      "llama3.1",
		ExportedAt: created.Add(time.Hour),
	}
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)

	md := string(out)
	assert.True(t, strings.HasPrefix(md, "---\ntitle: Demo\nchat_id: 3\n"))
	assert.Contains(t, md, "provider: ollama\n")
	assert.Contains(t, md, "- **Servers**: ws://tool1\n")
	assert.Contains(t, md, "### [User] <sub>")
	assert.Contains(t, md, "ping\n[Screenshot attached]")
	assert.Contains(t, md, "### [Agent]")
	assert.Contains(t, md, "**pong**")
	assert.Less(t, strings.Index(md, "ping"), strings.Index(md, "pong"), "messages keep creation order")
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	opts := &Options{}
	out, err := NewMarkdownExporter(opts).Export(sampleTranscript())
	require.NoError(t, err)

	md := string(out)
	assert.True(t, strings.HasPrefix(md, "# Demo\n"))
	assert.NotContains(t, md, "<sub>")
	assert.NotContains(t, md, "Session Information")
}

func TestMarkdownExportRejectsEmptyChat(t *testing.T) {
	tr := sampleTranscript()
	tr.Messages = nil
	_, err := NewMarkdownExporter(nil).Export(tr)
	assert.ErrorIs(t, err, ErrEmptyChat)
}

// TestYAMLNewlineInjection checks that titles cannot add frontmatter keys.
func TestYAMLNewlineInjection(t *testing.T) {
	tr := sampleTranscript()
	tr.Chat.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(nil).Export(tr)
	require.NoError(t, err)

	front := strings.SplitN(string(out), "---\n", 3)[1]
	for _, line := range strings.Split(front, "\n") {
		assert.False(t, strings.HasPrefix(line, "Injection:"), "newline not escaped in title")
	}
	assert.Contains(t, front, `title: "Test\nInjection: malicious"`)
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)

	var decoded struct {
		ID       int64    `json:"id"`
		Title    string   `json:"title"`
		Servers  []string `json:"servers"`
		Messages []struct {
			Role          string `json:"role"`
			Content       string `json:"content"`
			HasAttachment bool   `json:"has_attachment"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, int64(3), decoded.ID)
	assert.Equal(t, []string{"ws://tool1"}, decoded.Servers)
	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "user", decoded.Messages[0].Role)
	assert.True(t, decoded.Messages[0].HasAttachment)
	assert.Equal(t, "agent", decoded.Messages[1].Role)
}

func TestJSONExportEmptyChat(t *testing.T) {
	tr := sampleTranscript()
	tr.Messages = nil
	tr.Servers = nil

	out, err := NewJSONExporter(nil).Export(tr)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"servers": []`)
	assert.Contains(t, string(out), `"messages": []`)
}

func TestForFormat(t *testing.T) {
	for name, ext := range map[string]string{"markdown": ".md", "MD": ".md", "": ".md", "json": ".json"} {
		e, err := ForFormat(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, ext, e.FileExtension(), name)
	}
	_, err := ForFormat("html", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Demo":             "Demo",
		"a/b\\c:d":         "a-b-c-d",
		"two words\tthere": "two_words_there",
		"   ":              "chat",
		"bell\x07":         "bell-",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), "input %q", in)
	}
}

func TestLoadAndWriteFile(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer st.Close()

	id, err := st.CreateChat(ctx, "Work: notes")
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, id, store.RoleUser, "hello", nil)
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, id, store.RoleAgent, "hi", nil)
	require.NoError(t, err)
	_, err = st.RegisterServer(ctx, "ws://tool1")
	require.NoError(t, err)

	tr, err := Load(ctx, st, id)
	require.NoError(t, err)
	assert.Len(t, tr.Messages, 2)
	assert.Equal(t, []string{"ws://tool1"}, tr.Servers)

	dir := t.TempDir()
	path, err := WriteFile(tr, NewMarkdownExporter(nil), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "chat_1_Work-_notes_"))
	assert.Equal(t, ".md", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, err = Load(ctx, st, 99)
	assert.ErrorIs(t, err, store.ErrChatNotFound)
}
