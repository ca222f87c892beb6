// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
)

var (
	mu            sync.Mutex
	shutdownHooks []func()
	reloadHooks   []func()
	cancel        context.CancelFunc
	exit          = os.Exit
)

// RegisterShutdownHook adds a hook run on SIGTERM/SIGINT. Hooks run in
// reverse registration order.
func RegisterShutdownHook(hook func()) {
	mu.Lock()
	defer mu.Unlock()
	shutdownHooks = append(shutdownHooks, hook)
}

// RegisterReloadHook adds a hook run on SIGHUP.
func RegisterReloadHook(hook func()) {
	mu.Lock()
	defer mu.Unlock()
	reloadHooks = append(reloadHooks, hook)
}

func RegisterContextCanceller(c context.CancelFunc) {
	mu.Lock()
	defer mu.Unlock()
	cancel = c
}

// HandleSignals blocks until a terminating signal or ctx is done.
func HandleSignals(ctx context.Context, l logger.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(stop)

	for {
		select {
		case sig := <-stop:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				l.Info("shutting down", "signal", sig.String())
				Shutdown()
				exit(0)
				return
			case syscall.SIGHUP:
				l.Info("reloading", "signal", sig.String())
				Reload()
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown cancels the root context and runs the shutdown hooks.
func Shutdown() {
	mu.Lock()
	c := cancel
	hooks := append([]func(){}, shutdownHooks...)
	shutdownHooks = nil
	mu.Unlock()

	if c != nil {
		c()
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// Reload runs the reload hooks in registration order.
func Reload() {
	mu.Lock()
	hooks := append([]func(){}, reloadHooks...)
	mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// EnsureSingleInstance claims pidPath for this process.
func EnsureSingleInstance(pidPath string) error {
	if pidPath == "" {
		return errors.New(errors.LifecyclePID, "invalid PID file path")
	}

	if _, err := os.Stat(pidPath); err == nil {
		pid, running, err := ReadPID(pidPath)
		if err != nil {
			return err
		}
		if running {
			return errors.New(errors.LifecyclePID,
				fmt.Sprintf("another instance is already running (PID: %d)", pid)).
				WithMetadata("pid_file", pidPath)
		}
		os.Remove(pidPath)
	}

	currentPid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(currentPid)), 0o644); err != nil {
		return errors.Wrap(err, errors.LifecyclePID).WithMetadata("pid_file", pidPath)
	}

	RegisterShutdownHook(func() {
		os.Remove(pidPath)
	})

	return nil
}

// ReadPID returns the pid recorded in pidPath and whether that process is
// alive. An empty file reads as pid 0, not running.
func ReadPID(pidPath string) (int, bool, error) {
	pidBytes, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.LifecyclePID).WithMetadata("pid_file", pidPath)
	}

	content := strings.TrimSpace(string(pidBytes))
	if content == "" {
		return 0, false, nil
	}

	pid, err := strconv.Atoi(content)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.LifecyclePID).WithMetadata("pid_file", pidPath)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false, nil
	}
	return pid, process.Signal(syscall.Signal(0)) == nil, nil
}

// SignalRunning sends sig to the instance recorded in pidPath.
func SignalRunning(pidPath string, sig os.Signal) (int, error) {
	pid, running, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if !running {
		return pid, errors.New(errors.LifecycleSignal, "no running instance").
			WithMetadata("pid_file", pidPath)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, errors.Wrap(err, errors.LifecycleSignal)
	}
	if err := process.Signal(sig); err != nil {
		return pid, errors.Wrap(err, errors.LifecycleSignal).WithMetadata("pid", strconv.Itoa(pid))
	}
	return pid, nil
}
