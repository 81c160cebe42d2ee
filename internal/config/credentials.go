// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/deskchat/internal/util"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMissingCredentials indicates the provider needs a key and none was
	// found or entered.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrMalformedCredentials indicates a key with the wrong shape.
	ErrMalformedCredentials = errors.New("malformed credentials")

	// ErrNotInteractive indicates a prompt was needed but stdin is not a terminal.
	ErrNotInteractive = errors.New("not an interactive terminal")
)

// credentialEnv maps providers to the variable holding their key.
// An empty name means the provider needs no credentials.
var credentialEnv = map[string]string{
	"gigachat":   "GIGACHAT_CREDENTIALS",
	"openrouter": "OPENROUTER_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"ollama":     "",
}

// CredentialEnv returns the environment variable that carries the
// provider's key, or "" when none is needed.
func CredentialEnv(provider string) string {
	return credentialEnv[provider]
}

// PromptFunc asks the user for a secret. It returns ErrNotInteractive when
// no one can answer.
type PromptFunc func(label string) (string, error)

// TerminalPrompt reads a secret from in without echo. It fails with
// ErrNotInteractive when in is not a terminal.
func TerminalPrompt(in *os.File, out io.Writer) PromptFunc {
	return func(label string) (string, error) {
		fd := int(in.Fd())
		if !term.IsTerminal(fd) {
			return "", ErrNotInteractive
		}
		fmt.Fprintf(out, "%s: ", label)
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}
}

// ResolveCredentials returns the key for provider. It is read from the
// environment. If absent and prompt is non-nil the user is asked; an entered
// key is persisted to dotEnvPath and exported to the process.
func ResolveCredentials(provider, dotEnvPath string, prompt PromptFunc) (string, error) {
	name, ok := credentialEnv[provider]
	if !ok {
		return "", fmt.Errorf("%w: unknown provider %q", ErrMissingCredentials, provider)
	}
	if name == "" {
		return "", nil
	}

	value := strings.TrimSpace(os.Getenv(name))
	if value == "" && prompt != nil {
		label := "Enter " + name
		if provider == "gigachat" {
			label += " (client_id:client_secret)"
		}
		entered, err := prompt(label)
		if err != nil && !errors.Is(err, ErrNotInteractive) {
			return "", err
		}
		if entered != "" {
			if err := ValidateCredentials(provider, entered); err != nil {
				return "", err
			}
			if err := PersistDotEnv(dotEnvPath, name, entered); err != nil {
				return "", err
			}
			if err := os.Setenv(name, entered); err != nil {
				return "", fmt.Errorf("failed to export %s: %w", name, err)
			}
			value = entered
		}
	}

	if value == "" {
		return "", fmt.Errorf("%w: %s must be set", ErrMissingCredentials, name)
	}
	if err := ValidateCredentials(provider, value); err != nil {
		return "", err
	}
	return value, nil
}

// ValidateCredentials checks the shape of a provider key. GigaChat keys are
// "client_id:client_secret" pairs; other providers accept any non-empty key.
func ValidateCredentials(provider, value string) error {
	if provider != "gigachat" {
		return nil
	}
	id, secret, ok := strings.Cut(value, ":")
	if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: GIGACHAT_CREDENTIALS must be in 'client_id:client_secret' format", ErrMalformedCredentials)
	}
	return nil
}

// PersistDotEnv sets key=value in the .env file at path, keeping the other
// entries. The file is rewritten atomically with 0600 permissions.
func PersistDotEnv(path, key, value string) error {
	entries, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		entries = map[string]string{}
	}
	entries[key] = value

	content, err := godotenv.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := util.AtomicWriteFile(path, []byte(content+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
