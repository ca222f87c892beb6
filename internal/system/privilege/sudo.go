// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package privilege

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/command"
	"github.com/stratastor/usbtrigger/pkg/errors"
)

const probeTimeout = 5 * time.Second

// SudoElevator prefixes a program with the configured elevation helper.
// Before wrapping it probes the helper non-interactively so a refusal is
// reported up front rather than as an opaque exit code.
type SudoElevator struct {
	logger logger.Logger
	config Config
	isRoot func() bool
	probe  func(ctx context.Context) error
}

// NewSudoElevator creates an elevator from cfg. A nil cfg uses defaults.
func NewSudoElevator(l logger.Logger, cfg *Config) *SudoElevator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.Command == "" {
		c.Command = DefaultConfig().Command
	}

	e := &SudoElevator{
		logger: l,
		config: c,
		isRoot: func() bool { return os.Geteuid() == 0 },
	}
	e.probe = e.defaultProbe
	return e
}

// Wrap returns the argv to exec for running program with elevated
// privileges. Already running as root returns the program unchanged.
func (e *SudoElevator) Wrap(ctx context.Context, program string, args []string) (string, []string, error) {
	if !e.isAllowed(program) {
		return "", nil, errors.New(errors.CommandPermission, "program not allowed for elevation").
			WithMetadata("program", program)
	}

	if e.isRoot() {
		return program, args, nil
	}

	if err := e.probe(ctx); err != nil {
		e.logger.Warn("elevation refused", "helper", e.config.Command, "program", program, "error", err)
		return "", nil, errors.Wrap(err, errors.CommandElevation).
			WithMetadata("helper", e.config.Command).
			WithMetadata("program", program)
	}

	wrapped := make([]string, 0, len(e.config.Args)+1+len(args))
	wrapped = append(wrapped, e.config.Args...)
	wrapped = append(wrapped, program)
	wrapped = append(wrapped, args...)
	return e.config.Command, wrapped, nil
}

func (e *SudoElevator) isAllowed(program string) bool {
	if len(e.config.AllowedCommands) == 0 {
		return true
	}
	base := filepath.Base(program)
	return slices.Contains(e.config.AllowedCommands, program) ||
		slices.Contains(e.config.AllowedCommands, base)
}

// defaultProbe runs "<helper> <args> true" and expects it to succeed
// without prompting.
func (e *SudoElevator) defaultProbe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := append(slices.Clone(e.config.Args), "true")
	_, err := command.ExecCommand(ctx, e.logger, e.config.Command, args...)
	return err
}
