// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package autostart registers the daemon to start with the user session.
package autostart

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/common"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"gopkg.in/ini.v1"
)

const (
	BackendXDG     = "xdg"
	BackendSystemd = "systemd"
)

// Backend is one way of starting with the session.
type Backend interface {
	Name() string
	// Enable registers path. An empty path means the running executable.
	Enable(path string, startMinimized bool) error
	// Disable removes the registration. Not being registered is not an
	// error.
	Disable() error
	IsEnabled() bool
	// Path returns the registered executable.
	Path() (string, bool)
}

// New returns the backend named kind. Empty selects xdg.
func New(l logger.Logger, kind string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendXDG:
		return NewXDG(l, ""), nil
	case BackendSystemd:
		return NewSystemd(l, "")
	default:
		return nil, errors.New(errors.AutostartUnsupported, "unknown autostart backend").
			WithMetadata("backend", kind)
	}
}

// Status is the registration state reported to clients.
type Status struct {
	Backend string `json:"backend"`
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// GetStatus collects the state of b.
func GetStatus(b Backend) Status {
	s := Status{Backend: b.Name(), Enabled: b.IsEnabled()}
	if p, ok := b.Path(); ok {
		s.Path = p
	}
	return s
}

func resolveExecutable(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		exe, err := common.ExecutablePath()
		if err != nil {
			return "", errors.Wrap(err, errors.AutostartEnableFailed)
		}
		return exe, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(err, errors.AutostartEnableFailed).WithMetadata("path", path)
	}
	if info.IsDir() {
		return "", errors.New(errors.AutostartEnableFailed, "path is a directory").
			WithMetadata("path", path)
	}
	return filepath.Abs(path)
}

// commandLine is the argv the session runs on login.
func commandLine(exe string, startMinimized bool) string {
	argv := []string{exe, "serve"}
	if startMinimized {
		argv = append(argv, constants.MinimizedFlag)
	}
	return shellquote.Join(argv...)
}

// readKey returns the value of key inside section of an ini style file,
// the format shared by desktop entries and systemd units.
func readKey(path, section, key string) (string, bool) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		IgnoreContinuation:      true,
		PreserveSurroundedQuote: true,
	}, path)
	if err != nil {
		return "", false
	}
	sec, err := f.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

// executableFrom extracts argv[0] from an Exec/ExecStart value.
func executableFrom(cmdline string) (string, bool) {
	argv, err := shellquote.Split(cmdline)
	if err != nil || len(argv) == 0 {
		return "", false
	}
	return argv[0], true
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := common.EnsureDir(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
