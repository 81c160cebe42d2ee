// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every configuration override variable.
const EnvPrefix = "DESKCHAT_"

// ApplyEnvOverrides overlays DESKCHAT_* variables onto c, for example
// DESKCHAT_AGENT_PROVIDER or DESKCHAT_LOG_LEVEL. Unset variables leave the
// current value alone.
func (c *Config) ApplyEnvOverrides() error {
	return env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix})
}

// LoadDotEnv loads .env from dir and then from the working directory.
// Variables already present in the environment are never overridden, so a
// real export always beats a file. Missing files are skipped.
func LoadDotEnv(dir string) error {
	files := []string{".env"}
	if dir != "" {
		files = []string{filepath.Join(dir, ".env"), ".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}
