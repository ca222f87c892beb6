// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"context"
	"os"
	"time"

	godaemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
	"github.com/stratastor/logger"

	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/internal/daemon"
	"github.com/stratastor/usbtrigger/pkg/lifecycle"
)

// shutdownGrace bounds how long in-flight commands may keep the process
// alive after a shutdown signal.
const shutdownGrace = 10 * time.Second

var (
	detached  bool
	minimized bool
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the USB Trigger daemon",
		Run:   runServe,
	}

	cmd.Flags().BoolVarP(&detached, "detach", "d", false, "Run as a daemon")
	cmd.Flags().BoolVar(&minimized, "minimized", false, "Start without announcing the session")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.GetConfig()
	log, err := logger.NewTag(config.NewLoggerConfig(cfg), "serve")
	if err != nil {
		panic(err)
	}

	if err := config.EnsureDirectories(); err != nil {
		log.Error("Failed to prepare directories", "err", err)
		os.Exit(1)
	}

	pidFile := config.GetPIDFile()
	if !detached {
		if err := lifecycle.EnsureSingleInstance(pidFile); err != nil {
			log.Error("Failed to start", "err", err)
			os.Exit(1)
		}
	} else if !godaemon.WasReborn() {
		// go-daemon locks and writes the pid file for the child.
		if pid, running, _ := lifecycle.ReadPID(pidFile); running {
			log.Error("Failed to start, another instance is already running", "pid", pid)
			os.Exit(1)
		}
	}

	if detached {
		args := []string{constants.AppName, "serve"}
		if path := config.GetLoadedConfigPath(); path != "" {
			args = append(args, "--config", path)
		}
		if minimized {
			args = append(args, constants.MinimizedFlag)
		}

		dctx := &godaemon.Context{
			PidFileName: pidFile,
			PidFilePerm: 0644,
			LogFileName: cfg.Logs.Path,
			LogFilePerm: 0640,
			WorkDir:     "/",
			Umask:       027,
			Args:        args,
		}

		child, err := dctx.Reborn()
		if err != nil {
			log.Error("Failed to start daemon", "err", err)
			os.Exit(1)
		}

		if child != nil {
			log.Info("USB Trigger is running as a daemon", "pid", child.Pid)
			return
		}
		defer dctx.Release()
	}

	startDaemon(log, cfg)
}

func startDaemon(log logger.Logger, cfg *config.Config) {
	d, err := daemon.New(cfg)
	if err != nil {
		log.Error("Failed to initialise", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle.RegisterContextCanceller(cancel)

	lifecycle.RegisterShutdownHook(func() {
		log.Info("Shutting down...")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer scancel()
		if err := d.Close(sctx); err != nil {
			log.Error("Error during shutdown", "err", err)
		}
	})

	lifecycle.RegisterReloadHook(func() {
		log.Info("Reloading bindings")
		d.Reload()
	})

	go lifecycle.HandleSignals(ctx, log)

	log.Info("Starting USB Trigger", "port", cfg.Server.Port, "version", constants.Version)
	if err := d.Run(ctx, daemon.Options{Minimized: minimized}); err != nil {
		log.Error("Server stopped with error", "err", err)
	}
}
