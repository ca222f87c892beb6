// Copyright 2024 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stratastor/usbtrigger/internal/constants"
)

var (
	configDir string // Directory for configuration and bindings
	logsDir   string // Directory for log files
	runDir    string // Directory for the PID file
)

func init() {
	if os.Geteuid() == 0 {
		configDir = filepath.Join("/etc", constants.AppName)
		logsDir = filepath.Join("/var/log", constants.AppName)
		runDir = filepath.Join("/run", constants.AppName)
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = os.TempDir()
		}
		configDir = filepath.Join(homeDir, "."+constants.AppName)
		logsDir = filepath.Join(configDir, "logs")
		runDir = configDir
	}

	if err := EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure configuration directories: %v\n", err)
	}
}

// GetConfigDir returns /etc/usbtrigger for root and ~/.usbtrigger otherwise.
func GetConfigDir() string {
	return configDir
}

// GetLogsDir returns the directory log files go to.
func GetLogsDir() string {
	return logsDir
}

// GetPIDFile returns the PID file path of the serving instance.
func GetPIDFile() string {
	return filepath.Join(runDir, constants.PIDFileName)
}

// EnsureDirectories creates necessary directories if they do not exist
func EnsureDirectories() error {
	for _, dir := range []string{configDir, logsDir, runDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
