// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AppendMessage appends a message to a chat and returns its id. The row is
// committed before AppendMessage returns. A missing chat yields
// ErrChatNotFound; messages are never orphaned.
//
// The stored timestamp is clamped to the chat's latest timestamp so that
// id order and timestamp order agree even if the wall clock steps back.
func (s *Store) AppendMessage(ctx context.Context, chatID ChatID, role Role, content string, attachment []byte) (MessageID, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	// A nil interface binds as SQL NULL; an empty slice would bind as a blob.
	var blob any
	if len(attachment) > 0 {
		blob = attachment
	}

	var id MessageID
	err := s.withTx(ctx, "append message", func(tx *sql.Tx) error {
		ok, err := chatExists(ctx, tx, chatID)
		if err != nil {
			return storageErr("append message", err)
		}
		if !ok {
			return fmt.Errorf("%w: %d", ErrChatNotFound, chatID)
		}

		var latest sql.NullInt64
		err = tx.QueryRowContext(ctx,
			"SELECT MAX(timestamp) FROM messages WHERE chat_id = ?", chatID,
		).Scan(&latest)
		if err != nil {
			return storageErr("append message", err)
		}
		ts := toMillis(s.now())
		if latest.Valid && latest.Int64 > ts {
			ts = latest.Int64
		}

		result, err := tx.ExecContext(ctx,
			"INSERT INTO messages (chat_id, role, content, attachment, timestamp) VALUES (?, ?, ?, ?, ?)",
			chatID, string(role), content, blob, ts)
		if err != nil {
			return storageErr("append message", err)
		}
		lastID, err := result.LastInsertId()
		if err != nil {
			return storageErr("append message", err)
		}
		id = MessageID(lastID)
		return nil
	})
	return id, err
}

// ListMessages returns the messages of a chat in creation order. Attachment
// bytes are not loaded. An unknown chat yields an empty list.
func (s *Store) ListMessages(ctx context.Context, chatID ChatID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, attachment IS NOT NULL, timestamp
		FROM messages
		WHERE chat_id = ?
		ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			msg     Message
			role    string
			hasBlob int64
			ts      int64
		)
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &hasBlob, &ts); err != nil {
			return nil, storageErr("list messages", err)
		}
		msg.Role = Role(role)
		msg.HasAttachment = hasBlob != 0
		msg.Timestamp = fromMillis(ts)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list messages", err)
	}
	return msgs, nil
}

// Attachment returns the attachment bytes of a message, or nil if the
// message has none.
func (s *Store) Attachment(ctx context.Context, id MessageID) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT attachment FROM messages WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrMessageNotFound, id)
	}
	if err != nil {
		return nil, storageErr("get attachment", err)
	}
	return blob, nil
}
