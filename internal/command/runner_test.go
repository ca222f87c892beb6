// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package command

import (
	"context"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, elevator Elevator) *Runner {
	t.Helper()
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	return NewRunner(l, elevator, RunnerConfig{LogExecution: true})
}

type fakeElevator struct {
	calls int
	err   error
}

func (f *fakeElevator) Wrap(_ context.Context, program string, args []string) (string, []string, error) {
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	return "env", append([]string{program}, args...), nil
}

func processGone(pid int) bool {
	return syscall.Kill(pid, 0) != nil
}

func TestExecuteRejectsInvalidCommands(t *testing.T) {
	r := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), types.Command{Program: "   "})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errors.CommandInvalidInput))

	_, err = r.Execute(context.Background(), types.Command{
		Program:          "echo",
		WorkingDirectory: "/definitely/not/here",
	})
	assert.True(t, errors.Is(err, errors.CommandWorkDir))

	_, err = r.Execute(context.Background(), types.Command{Program: "echo", Arguments: `"unterminated`})
	assert.True(t, errors.Is(err, errors.CommandInvalidInput))

	assert.NoError(t, r.Validate(types.Command{Program: "echo", Arguments: `"a b" c`}))
}

func TestExecuteWaitSuccess(t *testing.T) {
	r := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), types.Command{
		Program:          "echo",
		Arguments:        "hi",
		WorkingDirectory: t.TempDir(),
		WaitForExit:      true,
		TimeoutSeconds:   5,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Greater(t, res.PID, 0)
}

func TestExecuteWaitNonZeroExit(t *testing.T) {
	r := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), types.Command{
		Program:     "sh",
		Arguments:   `-c "exit 3"`,
		WaitForExit: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.ErrorMessage, "3")
}

func TestExecuteSpawnFailureIsAResult(t *testing.T) {
	r := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), types.Command{
		Program:     "/no/such/binary-usbtrigger",
		WaitForExit: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "failed to start")
}

func TestExecuteTimeoutKillsProcessTree(t *testing.T) {
	r := newTestRunner(t, nil)

	start := time.Now()
	res, err := r.Execute(context.Background(), types.Command{
		Program:        "sh",
		Arguments:      `-c "sleep 30 & sleep 30; wait"`,
		WaitForExit:    true,
		TimeoutSeconds: 1,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.ErrorMessage, "timed out after 1s")
	assert.Less(t, elapsed, 3*time.Second)
	assert.GreaterOrEqual(t, elapsed, time.Second)

	assert.Eventually(t, func() bool { return processGone(res.PID) }, 2*time.Second, 20*time.Millisecond)
}

func TestExecuteFireAndForget(t *testing.T) {
	r := newTestRunner(t, nil)

	start := time.Now()
	res, err := r.Execute(context.Background(), types.Command{
		Program:   "sleep",
		Arguments: "5",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Less(t, time.Since(start), time.Second)
	require.Greater(t, res.PID, 0)
	assert.False(t, processGone(res.PID))

	require.NoError(t, syscall.Kill(-res.PID, syscall.SIGKILL))
}

func TestExecuteFireAndForgetIgnoresExitCode(t *testing.T) {
	r := newTestRunner(t, nil)

	res, err := r.Execute(context.Background(), types.Command{Program: "false"})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestExecuteElevation(t *testing.T) {
	elev := &fakeElevator{}
	r := newTestRunner(t, elev)

	res, err := r.Execute(context.Background(), types.Command{
		Program:     "true",
		Elevate:     true,
		WaitForExit: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, elev.calls)

	elev.err = fmt.Errorf("a password is required")
	res, err = r.Execute(context.Background(), types.Command{Program: "true", Elevate: true})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "elevation failed")

	noElev := newTestRunner(t, nil)
	res, err = noElev.Execute(context.Background(), types.Command{Program: "true", Elevate: true})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestTestForcesWaitAndNoElevation(t *testing.T) {
	elev := &fakeElevator{err: fmt.Errorf("must not be called")}
	r := newTestRunner(t, elev)

	res, err := r.Test(context.Background(), types.Command{
		Program:     "sh",
		Arguments:   `-c "exit 2"`,
		Elevate:     true,
		WaitForExit: false,
	})
	require.NoError(t, err)
	assert.False(t, res.Success, "test runs are always awaited")
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, 0, elev.calls)
}

func TestExecuteCancelledContextDoesNotSpawn(t *testing.T) {
	r := newTestRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Execute(ctx, types.Command{Program: "true", WaitForExit: true})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.PID)
}

func TestExecuteQuietStaysAtDebug(t *testing.T) {
	r := newTestRunner(t, nil)
	assert.True(t, r.verbose(false))
	assert.False(t, r.verbose(true))

	res, err := r.ExecuteQuiet(context.Background(), types.Command{
		Program:        "true",
		WaitForExit:    true,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	r.SetLogExecution(false)
	assert.False(t, r.verbose(false))
}
