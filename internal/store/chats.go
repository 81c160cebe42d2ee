// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultChatTitle is the title of the chat created on first run.
const DefaultChatTitle = "Chat 1"

// normalizeTitle trims and NFC-normalizes a chat title so visually identical
// titles are stored identically.
func normalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

// CreateChat creates a chat and returns its fresh id.
func (s *Store) CreateChat(ctx context.Context, title string) (ChatID, error) {
	title = normalizeTitle(title)
	if title == "" {
		return 0, fmt.Errorf("%w: chat title is empty", ErrValidation)
	}

	var id ChatID
	err := s.withTx(ctx, "create chat", func(tx *sql.Tx) error {
		var err error
		id, err = insertChat(ctx, tx, title, toMillis(s.now()))
		return err
	})
	return id, err
}

func insertChat(ctx context.Context, tx *sql.Tx, title string, createdAt int64) (ChatID, error) {
	result, err := tx.ExecContext(ctx,
		"INSERT INTO chats (title, created_at) VALUES (?, ?)", title, createdAt)
	if err != nil {
		return 0, storageErr("create chat", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("create chat", err)
	}
	return ChatID(id), nil
}

// EnsureDefaultChat guarantees at least one chat exists. When the store is
// empty a chat with the given title (DefaultChatTitle if empty) is created.
// It returns the most recently created chat id.
func (s *Store) EnsureDefaultChat(ctx context.Context, title string) (ChatID, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = DefaultChatTitle
	}

	var id ChatID
	err := s.withTx(ctx, "ensure default chat", func(tx *sql.Tx) error {
		var latest sql.NullInt64
		if err := tx.QueryRowContext(ctx, "SELECT MAX(id) FROM chats").Scan(&latest); err != nil {
			return storageErr("ensure default chat", err)
		}
		if latest.Valid {
			id = ChatID(latest.Int64)
			return nil
		}
		var err error
		id, err = insertChat(ctx, tx, title, toMillis(s.now()))
		return err
	})
	return id, err
}

// GetChat returns a single chat.
func (s *Store) GetChat(ctx context.Context, id ChatID) (Chat, error) {
	var chat Chat
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at FROM chats WHERE id = ?", id,
	).Scan(&chat.ID, &chat.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, fmt.Errorf("%w: %d", ErrChatNotFound, id)
	}
	if err != nil {
		return Chat{}, storageErr("get chat", err)
	}
	chat.CreatedAt = fromMillis(createdAt)
	return chat, nil
}

// ListChats returns every chat, most recently created first.
func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at FROM chats ORDER BY id DESC")
	if err != nil {
		return nil, storageErr("list chats", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		var createdAt int64
		if err := rows.Scan(&chat.ID, &chat.Title, &createdAt); err != nil {
			return nil, storageErr("list chats", err)
		}
		chat.CreatedAt = fromMillis(createdAt)
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list chats", err)
	}
	return chats, nil
}

func chatExists(ctx context.Context, tx *sql.Tx, id ChatID) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM chats WHERE id = ?", id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
