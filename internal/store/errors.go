// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrValidation indicates the caller passed an empty or invalid argument.
	// The store is left untouched.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the parent of every lookup failure.
	ErrNotFound = errors.New("not found")

	// ErrChatNotFound indicates the referenced chat id does not exist.
	ErrChatNotFound = fmt.Errorf("chat %w", ErrNotFound)

	// ErrMessageNotFound indicates the referenced message id does not exist.
	ErrMessageNotFound = fmt.Errorf("message %w", ErrNotFound)
)

// StorageError reports that the underlying database failed. A StorageError
// means history can no longer be trusted and the session must stop.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is, or wraps, a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
