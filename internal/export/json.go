// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts to JSON. It always includes metadata and
// timestamps so the output is a complete record of the chat. Attachment bytes
// are not included.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonTranscript struct {
	ID         int64         `json:"id"`
	Title      string        `json:"title"`
	CreatedAt  time.Time     `json:"created_at"`
	Provider   string        `json:"provider,omitempty"`
	Model      string        `json:"model,omitempty"`
	Servers    []string      `json:"servers"`
	Messages   []jsonMessage `json:"messages"`
	ExportedAt time.Time     `json:"exported_at"`
}

type jsonMessage struct {
	ID            int64     `json:"id"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	HasAttachment bool      `json:"has_attachment,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Export converts a transcript to indented JSON. Empty chats are allowed.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}

	out := jsonTranscript{
		ID:         int64(t.Chat.ID),
		Title:      t.Chat.Title,
		CreatedAt:  t.Chat.CreatedAt,
		Provider:   t.Provider,
		Model:      t.Model,
		Servers:    t.Servers,
		Messages:   make([]jsonMessage, 0, len(t.Messages)),
		ExportedAt: t.ExportedAt,
	}
	if out.Servers == nil {
		out.Servers = []string{}
	}
	for _, m := range t.Messages {
		out.Messages = append(out.Messages, jsonMessage{
			ID:            int64(m.ID),
			Role:          string(m.Role),
			Content:       m.Content,
			HasAttachment: m.HasAttachment,
			Timestamp:     m.Timestamp,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
