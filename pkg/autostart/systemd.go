// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/command"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/errors"
)

const (
	serviceSection   = "Service"
	systemctlTimeout = 15 * time.Second
)

// Systemd installs a user unit and enables it with systemctl --user.
type Systemd struct {
	logger logger.Logger
	unit   string
	file   string

	systemctl func(ctx context.Context, args ...string) ([]byte, error)
}

// NewSystemd creates the backend. dir overrides the user unit directory.
func NewSystemd(l logger.Logger, dir string) (*Systemd, error) {
	bin, err := exec.LookPath("systemctl")
	if err != nil {
		return nil, errors.Wrap(err, errors.AutostartUnsupported).
			WithMetadata("backend", BackendSystemd)
	}

	if dir == "" {
		dir = filepath.Join(xdg.ConfigHome, "systemd", "user")
	}
	unit := constants.AppName + ".service"

	return &Systemd{
		logger: l,
		unit:   unit,
		file:   filepath.Join(dir, unit),
		systemctl: func(ctx context.Context, args ...string) ([]byte, error) {
			return command.ExecCommand(ctx, l, bin, append([]string{"--user"}, args...)...)
		},
	}, nil
}

func (s *Systemd) Name() string { return BackendSystemd }

// File returns the unit file location.
func (s *Systemd) File() string { return s.file }

func (s *Systemd) Enable(path string, startMinimized bool) error {
	exe, err := resolveExecutable(path)
	if err != nil {
		return err
	}

	unit := fmt.Sprintf(`[Unit]
Description=%s hotplug command dispatcher
After=graphical-session.target

[%s]
Type=simple
ExecStart=%s
Restart=on-failure

[Install]
WantedBy=default.target
`, constants.AppDisplayName, serviceSection, commandLine(exe, startMinimized))

	if err := writeFile(s.file, []byte(unit)); err != nil {
		return errors.Wrap(err, errors.AutostartEnableFailed).WithMetadata("file", s.file)
	}

	ctx, cancel := context.WithTimeout(context.Background(), systemctlTimeout)
	defer cancel()

	if _, err := s.systemctl(ctx, "daemon-reload"); err != nil {
		return errors.Wrap(err, errors.AutostartEnableFailed).WithMetadata("step", "daemon-reload")
	}
	if _, err := s.systemctl(ctx, "enable", s.unit); err != nil {
		return errors.Wrap(err, errors.AutostartEnableFailed).WithMetadata("step", "enable")
	}

	s.logger.Info("autostart enabled", "backend", BackendSystemd, "unit", s.unit, "path", exe)
	return nil
}

func (s *Systemd) Disable() error {
	if _, err := os.Stat(s.file); os.IsNotExist(err) {
		s.logger.Info("autostart was not enabled", "backend", BackendSystemd)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), systemctlTimeout)
	defer cancel()

	if _, err := s.systemctl(ctx, "disable", s.unit); err != nil {
		return errors.Wrap(err, errors.AutostartDisableFailed).WithMetadata("step", "disable")
	}
	if err := os.Remove(s.file); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.AutostartDisableFailed).WithMetadata("file", s.file)
	}
	if _, err := s.systemctl(ctx, "daemon-reload"); err != nil {
		s.logger.Warn("daemon-reload after disable failed", "error", err)
	}

	s.logger.Info("autostart disabled", "backend", BackendSystemd, "unit", s.unit)
	return nil
}

// IsEnabled asks systemd. is-enabled exits non-zero for disabled units,
// so only the output is trusted.
func (s *Systemd) IsEnabled() bool {
	ctx, cancel := context.WithTimeout(context.Background(), systemctlTimeout)
	defer cancel()

	out, err := s.systemctl(ctx, "is-enabled", s.unit)
	state := strings.TrimSpace(string(out))
	if err != nil && state == "" {
		s.logger.Debug("is-enabled query failed", "unit", s.unit, "error", err)
		return false
	}
	return state == "enabled"
}

func (s *Systemd) Path() (string, bool) {
	execStart, ok := readKey(s.file, serviceSection, "ExecStart")
	if !ok {
		return "", false
	}
	return executableFrom(execStart)
}
