// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package daemon assembles the long running service from configuration.
package daemon

import (
	"context"
	"strings"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/internal/command"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/internal/system/privilege"
	"github.com/stratastor/usbtrigger/pkg/autostart"
	"github.com/stratastor/usbtrigger/pkg/health"
	"github.com/stratastor/usbtrigger/pkg/notify"
	"github.com/stratastor/usbtrigger/pkg/server"
	"github.com/stratastor/usbtrigger/pkg/usb/api"
	"github.com/stratastor/usbtrigger/pkg/usb/dispatch"
	"github.com/stratastor/usbtrigger/pkg/usb/hotplug"
	"github.com/stratastor/usbtrigger/pkg/usb/rules"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

const (
	autoStartSettings = "settings"
	autoStartAlways   = "always"
	autoStartNever    = "never"
)

var componentTags = []string{
	"daemon", "rules", "usb", "privilege", "command", "notify", "dispatch", "autostart", "api",
}

// Daemon owns every long lived component.
type Daemon struct {
	cfg        *config.Config
	logger     logger.Logger
	store      *rules.Store
	monitor    *hotplug.Monitor
	dispatcher *dispatch.Dispatcher
	autostart  autostart.Backend
	handler    *api.Handler
	started    time.Time
}

// Options are runtime switches from the command line.
type Options struct {
	Minimized bool
}

// New wires the daemon from cfg. Nothing is started.
func New(cfg *config.Config) (*Daemon, error) {
	lcfg := config.NewLoggerConfig(cfg)
	tags := make(map[string]logger.Logger, len(componentTags))
	for _, name := range componentTags {
		l, err := logger.NewTag(lcfg, name)
		if err != nil {
			return nil, err
		}
		tags[name] = l
	}
	tag := func(name string) logger.Logger { return tags[name] }

	l := tag("daemon")

	store := rules.NewStore(tag("rules"), rules.NewFilePersistence(tag("rules"), cfg.Rules.Path))

	enumerator := hotplug.NewGousbEnumerator(tag("usb"))
	enumerator.IncludeHubs = cfg.Monitor.IncludeHubs

	source, err := hotplug.NewSource(
		tag("usb"),
		cfg.Monitor.Source,
		enumerator,
		config.Duration(cfg.Monitor.PollInterval, hotplug.DefaultPollInterval),
	)
	if err != nil {
		return nil, err
	}

	monitor := hotplug.NewMonitor(tag("usb"), source, enumerator, hotplug.Config{
		BufferSize:   cfg.Monitor.BufferSize,
		DedupeWindow: config.Duration(cfg.Monitor.DedupeWindow, hotplug.DefaultDedupeWindow),
	})

	elevator := privilege.NewSudoElevator(tag("privilege"), &privilege.Config{
		Command:         cfg.Commands.Elevation.Command,
		Args:            cfg.Commands.Elevation.Args,
		AllowedCommands: cfg.Commands.Elevation.AllowedPrograms,
	})

	runner := command.NewRunner(tag("command"), elevator, command.RunnerConfig{
		DefaultTimeout: config.Duration(cfg.Commands.DefaultTimeout, types.DefaultCommandTimeout),
		LogExecution:   store.Snapshot().LogCommandExecution,
	})

	notifier := notify.New(tag("notify"), runner, notify.Config{
		Desktop:    cfg.Notifications.Desktop,
		WebhookURL: cfg.Notifications.WebhookURL,
		Timeout:    config.Duration(cfg.Notifications.Timeout, 5*time.Second),
	})

	dispatcher := dispatch.New(tag("dispatch"), monitor, store, runner, notifier, dispatch.Config{
		StatsInterval: config.Duration(cfg.Monitor.StatsInterval, 0),
	})

	as, err := autostart.New(tag("autostart"), cfg.Autostart.Backend)
	if err != nil {
		l.Warn("autostart unavailable", "backend", cfg.Autostart.Backend, "error", err)
		as = nil
	}

	return &Daemon{
		cfg:        cfg,
		logger:     l,
		store:      store,
		monitor:    monitor,
		dispatcher: dispatcher,
		autostart:  as,
		handler:    api.NewHandler(tag("api"), dispatcher, store, as),
	}, nil
}

// Run starts dispatch, monitoring if configured, and the API server, and
// blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context, opts Options) error {
	d.started = time.Now()

	if opts.Minimized {
		d.logger.Info("started minimized")
	}

	if err := d.dispatcher.Start(); err != nil {
		return err
	}

	if d.shouldAutoStart() {
		if err := d.dispatcher.StartMonitoring(ctx); err != nil {
			d.logger.Error("failed to start monitoring, continuing without it", "error", err)
		}
	}

	return server.Start(ctx, d.logger, server.Options{
		Port:        d.cfg.Server.Port,
		Environment: d.cfg.Environment,
		Handler:     d.handler,
		Health:      d.Health,
	})
}

func (d *Daemon) shouldAutoStart() bool {
	switch strings.ToLower(d.cfg.Monitor.AutoStart) {
	case autoStartAlways:
		return true
	case autoStartNever:
		return false
	default:
		return d.store.Snapshot().AutoStartMonitoring
	}
}

// Reload re-reads bindings from disk.
func (d *Daemon) Reload() {
	d.store.Reload()
	d.dispatcher.ApplySettings(d.store.Snapshot())
}

// Close stops dispatch, waits for running commands until ctx expires and
// releases the monitor.
func (d *Daemon) Close(ctx context.Context) error {
	err := d.dispatcher.Stop(ctx)
	if derr := d.monitor.Dispose(); derr != nil {
		d.logger.Warn("failed to dispose monitor", "error", derr)
	}
	return err
}

// Health reports liveness for /health.
func (d *Daemon) Health() health.Report {
	status := d.dispatcher.Status()
	return health.Report{
		Status:     "healthy",
		Version:    constants.Version,
		Monitoring: status.Monitoring,
		Source:     status.Stats.Source,
		Bindings:   len(d.store.Snapshot().Bindings),
		InFlight:   status.InFlight,
		Uptime:     time.Since(d.started).Round(time.Second).String(),
		Time:       time.Now(),
	}
}
