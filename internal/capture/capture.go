// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// pngMagic is the eight-byte PNG file signature.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// DefaultTimeout bounds a single capture.
const DefaultTimeout = 10 * time.Second

// ErrUnavailable means no capture program is configured for this platform.
var ErrUnavailable = errors.New("no screenshot program available")

// ErrNotPNG means the program succeeded but did not produce a PNG image.
var ErrNotPNG = errors.New("output is not a PNG image")

// CaptureError wraps every capture failure.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return e.Err.Error()
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Capturer produces a screenshot.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Func adapts a function to Capturer.
type Func func(ctx context.Context) ([]byte, error)

// Capture calls f.
func (f Func) Capture(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// =============================================================================
// COMMAND CAPTURER
// =============================================================================

// Command runs an external program and reads a PNG from its stdout.
type Command struct {
	// Argv is the program and its arguments. Empty means unavailable.
	Argv []string

	// Timeout bounds the program run (default: 10s)
	Timeout time.Duration
}

// DefaultArgv returns the screenshot command for goos, or nil.
func DefaultArgv(goos string) []string {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return []string{"import", "-window", "root", "png:-"}
	case "darwin":
		return []string{"screencapture", "-x", "-t", "png", "/dev/stdout"}
	default:
		return nil
	}
}

// NewCommand returns a Command running argv, or the platform default when
// argv is empty.
func NewCommand(argv []string) *Command {
	if len(argv) == 0 {
		argv = DefaultArgv(runtime.GOOS)
	}
	return &Command{Argv: argv, Timeout: DefaultTimeout}
}

// Capture runs the program. Failures are *CaptureError.
func (c *Command) Capture(ctx context.Context) ([]byte, error) {
	if len(c.Argv) == 0 {
		return nil, &CaptureError{Err: ErrUnavailable}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &CaptureError{Err: fmt.Errorf("%s: %w", c.Argv[0], ErrUnavailable)}
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, &CaptureError{Err: fmt.Errorf("%s: %w: %s", c.Argv[0], err, msg)}
		}
		return nil, &CaptureError{Err: fmt.Errorf("%s: %w", c.Argv[0], err)}
	}

	data := stdout.Bytes()
	if err := CheckPNG(data); err != nil {
		return nil, &CaptureError{Err: fmt.Errorf("%s: %w", c.Argv[0], err)}
	}
	return data, nil
}

// CheckPNG reports whether data starts with the PNG signature.
func CheckPNG(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty output: %w", ErrNotPNG)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		return ErrNotPNG
	}
	return nil
}
