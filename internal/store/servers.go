// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RegisterServer records an auxiliary server address. Addresses are not
// validated or deduplicated; registering the same address twice keeps both.
func (s *Store) RegisterServer(ctx context.Context, address string) (ServerID, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, fmt.Errorf("%w: server address is empty", ErrValidation)
	}

	var id ServerID
	err := s.withTx(ctx, "register server", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "INSERT INTO mcp_servers (address) VALUES (?)", address)
		if err != nil {
			return storageErr("register server", err)
		}
		lastID, err := result.LastInsertId()
		if err != nil {
			return storageErr("register server", err)
		}
		id = ServerID(lastID)
		return nil
	})
	return id, err
}

// ListServers returns every registered address in registration order.
func (s *Store) ListServers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT address FROM mcp_servers ORDER BY id ASC")
	if err != nil {
		return nil, storageErr("list servers", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, storageErr("list servers", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list servers", err)
	}
	return addresses, nil
}
