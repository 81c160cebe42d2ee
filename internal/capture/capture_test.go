// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPNG(t *testing.T) {
	assert.NoError(t, CheckPNG(append(append([]byte{}, pngMagic...), 0, 1, 2)))
	assert.ErrorIs(t, CheckPNG(nil), ErrNotPNG)
	assert.ErrorIs(t, CheckPNG([]byte("GIF89a")), ErrNotPNG)
}

func TestDefaultArgv(t *testing.T) {
	assert.Equal(t, "import", DefaultArgv("linux")[0])
	assert.Equal(t, "screencapture", DefaultArgv("darwin")[0])
	assert.Nil(t, DefaultArgv("plan9"))
}

func TestCommandUnavailable(t *testing.T) {
	_, err := (&Command{}).Capture(context.Background())

	var cerr *CaptureError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCommandMissingProgram(t *testing.T) {
	c := &Command{Argv: []string{"deskchat-no-such-screenshot-tool"}}
	_, err := c.Capture(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCommandReadsPNGFromStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs POSIX utilities")
	}
	png := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(png, append(append([]byte{}, pngMagic...), "IHDR"...), 0600))

	c := NewCommand([]string{"cat", png})
	data, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pngMagic, data[:8])
}

func TestCommandRejectsNonPNG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs POSIX utilities")
	}
	c := NewCommand([]string{"echo", "hello"})
	_, err := c.Capture(context.Background())

	var cerr *CaptureError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, ErrNotPNG)
}

func TestCommandReportsStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs POSIX utilities")
	}
	c := NewCommand([]string{"sh", "-c", "echo 'cannot open display' >&2; exit 1"})
	_, err := c.Capture(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open display")
}

func TestFunc(t *testing.T) {
	var c Capturer = Func(func(context.Context) ([]byte, error) { return []byte("x"), nil })
	data, err := c.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
