// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/common"
	apperrors "github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

// killGrace bounds how long we wait for a killed process to be reaped.
const killGrace = 2 * time.Second

// Elevator turns a program and its arguments into an argv that runs with
// elevated privileges.
type Elevator interface {
	Wrap(ctx context.Context, program string, args []string) (string, []string, error)
}

// RunnerConfig tunes the runner.
type RunnerConfig struct {
	// DefaultTimeout applies to waited commands with no timeout of their own.
	DefaultTimeout time.Duration
	// LogExecution logs every run at info level instead of debug.
	LogExecution bool
}

// Runner executes bound commands. Configuration problems are returned as
// errors before anything is spawned; everything that goes wrong after that
// is reported in the Result.
type Runner struct {
	logger   logger.Logger
	elevator Elevator
	cfg      RunnerConfig
	logExec  atomic.Bool
}

// NewRunner creates a runner. elevator may be nil, in which case elevated
// commands fail with an elevation error result.
func NewRunner(l logger.Logger, elevator Elevator, cfg RunnerConfig) *Runner {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = types.DefaultCommandTimeout
	}
	r := &Runner{logger: l, elevator: elevator, cfg: cfg}
	r.logExec.Store(cfg.LogExecution)
	return r
}

// SetLogExecution toggles execution logging at runtime.
func (r *Runner) SetLogExecution(on bool) {
	r.logExec.Store(on)
}

type prepared struct {
	program string
	args    []string
	dir     string
	timeout time.Duration
}

// Validate checks cmd without running it.
func (r *Runner) Validate(cmd types.Command) error {
	_, err := r.prepare(cmd)
	return err
}

func (r *Runner) prepare(cmd types.Command) (*prepared, error) {
	program := strings.TrimSpace(cmd.Program)
	if program == "" {
		return nil, apperrors.New(apperrors.CommandInvalidInput, "program is required")
	}

	args, err := shellquote.Split(cmd.Arguments)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CommandInvalidInput).
			WithMetadata("program", program).
			WithMetadata("arguments", cmd.Arguments)
	}

	p := &prepared{program: program, args: args, timeout: r.cfg.DefaultTimeout}
	if cmd.TimeoutSeconds > 0 {
		p.timeout = time.Duration(cmd.TimeoutSeconds) * time.Second
	}

	if wd := strings.TrimSpace(cmd.WorkingDirectory); wd != "" {
		dir, err := common.ExpandPath(wd)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CommandWorkDir).
				WithMetadata("working_directory", wd)
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, apperrors.New(apperrors.CommandWorkDir, "working directory does not exist").
				WithMetadata("working_directory", dir)
		}
		p.dir = dir
	}

	return p, nil
}

// Execute runs cmd. With WaitForExit false it reports success as soon as
// the process has started. With WaitForExit true it blocks the calling
// goroutine until the process exits or the timeout fires, in which case the
// whole process group is killed.
//
// ctx is only consulted before the process is spawned; once running, the
// timeout is the only way a command is stopped.
func (r *Runner) Execute(ctx context.Context, cmd types.Command) (*types.Result, error) {
	return r.execute(ctx, cmd, false)
}

// ExecuteQuiet runs cmd like Execute but always logs the outcome at debug.
// It serves internal helpers such as desktop notifications.
func (r *Runner) ExecuteQuiet(ctx context.Context, cmd types.Command) (*types.Result, error) {
	return r.execute(ctx, cmd, true)
}

func (r *Runner) execute(ctx context.Context, cmd types.Command, quiet bool) (*types.Result, error) {
	start := time.Now()

	p, err := r.prepare(cmd)
	if err != nil {
		r.logger.Warn("rejected command", "program", cmd.Program, "error", err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return types.Failure("cancelled before start: "+err.Error(), time.Since(start)), nil
	}

	program, args := p.program, p.args
	if cmd.Elevate {
		if r.elevator == nil {
			return types.Failure("elevation is not configured", time.Since(start)), nil
		}
		program, args, err = r.elevator.Wrap(ctx, p.program, p.args)
		if err != nil {
			return types.Failure("elevation failed: "+err.Error(), time.Since(start)), nil
		}
	}

	c := exec.Command(program, args...)
	c.Dir = p.dir
	setProcAttr(c)

	if err := c.Start(); err != nil {
		r.logger.Warn("failed to start command", "program", program, "error", err)
		return types.Failure("failed to start: "+err.Error(), time.Since(start)), nil
	}
	pid := c.Process.Pid

	if !cmd.WaitForExit {
		go r.reap(c, p.program)
		res := &types.Result{Success: true, ExitCode: 0, PID: pid, Elapsed: time.Since(start)}
		r.logResult(cmd, res, quiet)
		return res, nil
	}

	res := r.await(c, p)
	res.PID = pid
	res.Elapsed = time.Since(start)
	r.logResult(cmd, res, quiet)
	return res, nil
}

// Test is a dry run: always waited on, never elevated, capped at ten
// seconds.
func (r *Runner) Test(ctx context.Context, cmd types.Command) (*types.Result, error) {
	return r.Execute(ctx, cmd.ForTest())
}

// await blocks until exit or timeout. The watchdog is a timer owned here,
// so a process that ignores signals still cannot hold the caller.
func (r *Runner) await(c *exec.Cmd, p *prepared) *types.Result {
	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return exitResult(c, err)

	case <-timer.C:
		r.logger.Warn("command timed out, killing process tree",
			"program", p.program,
			"pid", c.Process.Pid,
			"timeout", p.timeout)

		if err := killTree(c.Process); err != nil {
			r.logger.Error("failed to kill timed out command",
				"program", p.program,
				"pid", c.Process.Pid,
				"error", err)
		}

		select {
		case <-done:
		case <-time.After(killGrace):
			r.logger.Error("timed out command did not exit after kill",
				"program", p.program,
				"pid", c.Process.Pid)
		}

		res := types.Failure(fmt.Sprintf("command timed out after %s", p.timeout), 0)
		res.TimedOut = true
		return res
	}
}

func (r *Runner) reap(c *exec.Cmd, program string) {
	err := c.Wait()
	res := exitResult(c, err)
	r.logger.Debug("detached command exited",
		"program", program,
		"pid", c.Process.Pid,
		"exit_code", res.ExitCode)
}

func exitResult(c *exec.Cmd, err error) *types.Result {
	if err == nil {
		return &types.Result{Success: true, ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return &types.Result{
			Success:      false,
			ExitCode:     code,
			ErrorMessage: fmt.Sprintf("exited with code %d", code),
		}
	}

	if c.ProcessState != nil {
		return &types.Result{
			Success:      c.ProcessState.Success(),
			ExitCode:     c.ProcessState.ExitCode(),
			ErrorMessage: err.Error(),
		}
	}
	return types.Failure(err.Error(), 0)
}

// verbose reports whether a run is logged at info level.
func (r *Runner) verbose(quiet bool) bool {
	return !quiet && r.logExec.Load()
}

func (r *Runner) logResult(cmd types.Command, res *types.Result, quiet bool) {
	kv := []any{
		"program", cmd.Program,
		"arguments", cmd.Arguments,
		"elevate", cmd.Elevate,
		"wait", cmd.WaitForExit,
		"success", res.Success,
		"exit_code", res.ExitCode,
		"elapsed", res.Elapsed,
	}
	if res.ErrorMessage != "" {
		kv = append(kv, "error", res.ErrorMessage)
	}

	if r.verbose(quiet) {
		r.logger.Info("command executed", kv...)
		return
	}
	r.logger.Debug("command executed", kv...)
}
