// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile replaces path with data. The bytes are staged in a hidden
// sibling file created with perm, flushed, and renamed into place, so a crash
// leaves either the previous file or the new one. Missing parent directories
// are created owner-only.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) (err error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	dir, base := filepath.Split(target)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}

	staged, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, staged.Close(), os.Remove(staged.Name()))
			err = fmt.Errorf("atomic write %s: %w", path, err)
		}
	}()

	if err = staged.Chmod(perm); err != nil {
		return err
	}
	if _, err = staged.Write(data); err != nil {
		return err
	}
	if err = staged.Sync(); err != nil {
		return err
	}
	// Windows cannot rename a file that is still open.
	if err = staged.Close(); err != nil {
		return err
	}
	return os.Rename(staged.Name(), target)
}
