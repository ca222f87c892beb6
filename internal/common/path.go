// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package common has small filesystem helpers shared across packages.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands environment references and a leading "~" or "~/" to
// the user's home directory. "~user" forms are left alone.
func ExpandPath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user's home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// EnsureDir expands path and creates it with perm if missing.
func EnsureDir(path string, perm os.FileMode) error {
	dir, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ExecutablePath returns the absolute, symlink resolved path of the
// running binary. Autostart entries point at it.
func ExecutablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Abs(exe)
}
