// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/stratastor/logger"

	apperrors "github.com/stratastor/usbtrigger/pkg/errors"
)

// helperTimeout bounds helper runs whose ctx has no deadline.
const helperTimeout = 30 * time.Second

const (
	helperMaxArgs    = 32
	helperForbidden  = "&|><$`\\;{}\n"
	helperTraversals = ".."
)

// Session variables helper programs need to reach the user's bus and
// display; everything else is dropped.
var passEnv = []string{
	"PATH",
	"HOME",
	"USER",
	"LANG",
	"XDG_RUNTIME_DIR",
	"DBUS_SESSION_BUS_ADDRESS",
	"DISPLAY",
	"WAYLAND_DISPLAY",
}

// ExecCommand runs an internal helper (sudo probe, systemctl) and returns
// its combined output. User bound commands go through Runner instead: they
// are free form, helpers are not.
func ExecCommand(ctx context.Context, l logger.Logger, name string, args ...string) ([]byte, error) {
	if err := checkHelper(name, args); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, helperTimeout)
		defer cancel()
	}

	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = sessionEnv()
	out, err := cmd.CombinedOutput()

	l.Debug("helper finished", "cmd", line, "elapsed", time.Since(start), "err", err)
	if err == nil {
		return out, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, apperrors.New(apperrors.CommandTimeout, line)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, apperrors.NewCommandError(line, exitErr.ExitCode(), strings.TrimSpace(string(out)))
	}
	return out, apperrors.Wrap(err, apperrors.CommandExecution).WithMetadata("command", line)
}

func sessionEnv() []string {
	env := make([]string, 0, len(passEnv))
	for _, k := range passEnv {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// checkHelper keeps helper invocations to a bare program name or an
// absolute path and plain arguments.
func checkHelper(name string, args []string) error {
	switch {
	case name == "":
		return apperrors.New(apperrors.CommandInvalidInput, "empty helper name")
	case strings.ContainsRune(name, '/') && !strings.HasPrefix(name, "/"):
		return apperrors.New(apperrors.CommandInvalidInput, "helper must be a name or an absolute path").
			WithMetadata("command", name)
	case strings.ContainsAny(name, helperForbidden):
		return apperrors.New(apperrors.CommandInvalidInput, "helper name contains shell syntax").
			WithMetadata("command", name)
	case len(args) > helperMaxArgs:
		return apperrors.New(apperrors.CommandInvalidInput, "too many helper arguments").
			WithMetadata("command", name)
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, helperForbidden) || strings.Contains(arg, helperTraversals) {
			return apperrors.New(apperrors.CommandInvalidInput, "helper argument rejected").
				WithMetadata("command", name).
				WithMetadata("arg", arg)
		}
	}
	return nil
}
