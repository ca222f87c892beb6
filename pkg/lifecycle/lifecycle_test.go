// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	mu.Lock()
	defer mu.Unlock()
	shutdownHooks = nil
	reloadHooks = nil
	cancel = nil
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	reset()
	t.Cleanup(reset)

	var order []int
	ctx, c := context.WithCancel(context.Background())
	RegisterContextCanceller(c)
	RegisterShutdownHook(func() { order = append(order, 1) })
	RegisterShutdownHook(func() { order = append(order, 2) })

	Shutdown()
	assert.Equal(t, []int{2, 1}, order)
	assert.Error(t, ctx.Err())

	Shutdown()
	assert.Equal(t, []int{2, 1}, order, "hooks run once")
}

func TestReloadRunsHooks(t *testing.T) {
	reset()
	t.Cleanup(reset)

	calls := 0
	RegisterReloadHook(func() { calls++ })
	Reload()
	Reload()
	assert.Equal(t, 2, calls)
}

func TestEnsureSingleInstance(t *testing.T) {
	reset()
	t.Cleanup(reset)

	pidPath := filepath.Join(t.TempDir(), "usbtrigger.pid")
	require.NoError(t, EnsureSingleInstance(pidPath))

	pid, running, err := ReadPID(pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, running)

	err = EnsureSingleInstance(pidPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.LifecyclePID))

	Shutdown()
	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureSingleInstanceReplacesStaleFile(t *testing.T) {
	reset()
	t.Cleanup(reset)

	pidPath := filepath.Join(t.TempDir(), "usbtrigger.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(""), 0o644))
	require.NoError(t, EnsureSingleInstance(pidPath))

	data, err := os.ReadFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestSignalRunningWithoutInstance(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "usbtrigger.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(""), 0o644))

	_, err := SignalRunning(pidPath, syscall.SIGHUP)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.LifecycleSignal))
}
