// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/deskchat/internal/store"
	"github.com/jeranaias/deskchat/internal/util"
)

var (
	// ErrEmptyChat is returned when exporting a chat without messages.
	ErrEmptyChat = errors.New("chat has no messages")

	// ErrUnsupportedFormat is returned by ForFormat for unknown names.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is a chat and its messages, ready to export.
type Transcript struct {
	Chat     store.Chat
	Messages []store.Message

	// Servers are the addresses registered at export time.
	Servers []string

	// Provider and Model describe the agent, when known.
	Provider string
	Model    string

	ExportedAt time.Time
}

// Source is the read surface Load needs.
type Source interface {
	GetChat(ctx context.Context, id store.ChatID) (store.Chat, error)
	ListMessages(ctx context.Context, chatID store.ChatID) ([]store.Message, error)
	ListServers(ctx context.Context) ([]string, error)
}

// Load reads a chat into a Transcript.
func Load(ctx context.Context, src Source, id store.ChatID) (*Transcript, error) {
	chat, err := src.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := src.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	servers, err := src.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	return &Transcript{
		Chat:       chat,
		Messages:   msgs,
		Servers:    servers,
		ExportedAt: time.Now(),
	}, nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a transcript to a file format.
type Exporter interface {
	// Export returns the encoded transcript.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the file extension including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a header with chat, agent and export details.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// Formats lists the accepted format names.
var Formats = []string{"markdown", "json"}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md", "":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// WriteFile exports t into dir under a generated name and returns the path.
// The file is written atomically with owner-only permissions.
func WriteFile(t *Transcript, e Exporter, dir string) (string, error) {
	content, err := e.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	path := filepath.Join(dir, Filename(t, e.FileExtension()))
	if err := util.AtomicWriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Filename builds "chat_<id>_<title>_<timestamp><ext>".
func Filename(t *Transcript, ext string) string {
	return fmt.Sprintf("chat_%d_%s_%s%s",
		t.Chat.ID,
		sanitizeFilename(t.Chat.Title),
		t.ExportedAt.Format("20060102_150405"),
		ext)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(strings.TrimSpace(s), 40)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "chat"
	}
	return b.String()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Local().Format("15:04:05")
}
