// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package store provides durable local storage for chats, messages, and
registered auxiliary server addresses.

The store is a single SQLite file driven by the pure-Go modernc.org/sqlite
driver. The schema is versioned with golang-migrate using migrations embedded
in the binary, so opening an old database upgrades it in place.

# Key Types

  - Store: the owned database handle; safe for concurrent use
  - Chat: a titled conversation thread
  - Message: one user or agent utterance inside a chat
  - StorageError: wraps any driver or I/O failure; fatal for the session

# Guarantees

Every mutating call runs in exactly one transaction and is committed before it
returns. The pool holds a single connection, which serializes writers. Chat
and message ids come from AUTOINCREMENT columns and are never reused.
Messages of a chat are listed in id order and their timestamps never go
backwards in that order.

# Usage

	st, err := store.Open(filepath.Join(dir, "chat.db"))
	if err != nil {
	    return err
	}
	defer st.Close()

	chatID, _ := st.CreateChat(ctx, "Demo")
	st.AppendMessage(ctx, chatID, store.RoleUser, "ping", nil)
	msgs, _ := st.ListMessages(ctx, chatID)
*/
package store
