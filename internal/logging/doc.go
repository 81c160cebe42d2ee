// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured logger shared by deskchat components.
//
// Logs go to a file under the data directory because stdout belongs to the
// terminal UI. Components accept a *zap.Logger and fall back to zap.NewNop
// when none is given.
//
// # Usage
//
//	logger, err := logging.New(cfg, verbose)
//	if err != nil {
//		return err
//	}
//	defer logger.Sync()
package logging
