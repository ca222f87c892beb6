// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"os/exec"

	"github.com/kballard/go-shellquote"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/command"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

const notifySendProgram = "notify-send"

// quietRunner runs a helper without reporting it as a user command.
type quietRunner interface {
	ExecuteQuiet(ctx context.Context, cmd types.Command) (*types.Result, error)
}

var _ quietRunner = (*command.Runner)(nil)

// Desktop shows notifications through notify-send. It runs detached, so a
// slow notification daemon never holds up dispatch.
type Desktop struct {
	logger  logger.Logger
	runner  quietRunner
	program string
}

// NewDesktop fails with NotifyUnavailable when notify-send is not on PATH.
func NewDesktop(l logger.Logger, runner quietRunner) (*Desktop, error) {
	program, err := exec.LookPath(notifySendProgram)
	if err != nil {
		return nil, errors.Wrap(err, errors.NotifyUnavailable).
			WithMetadata("program", notifySendProgram)
	}
	return &Desktop{logger: l, runner: runner, program: program}, nil
}

func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	cmd := types.Command{
		Program:   d.program,
		Arguments: shellquote.Join("--app-name="+constants.AppDisplayName, title, body),
	}

	res, err := d.runner.ExecuteQuiet(ctx, cmd)
	if err != nil {
		return errors.Wrap(err, errors.NotifyFailed)
	}
	if !res.Success {
		return errors.New(errors.NotifyFailed, res.ErrorMessage).
			WithMetadata("program", d.program)
	}
	return nil
}
