// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/notify"
	"github.com/stratastor/usbtrigger/pkg/usb/hotplug"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

const (
	DefaultActivityCapacity = 50
	notifyTimeout           = 10 * time.Second
)

// Monitor is the part of hotplug.Monitor the dispatcher drives.
type Monitor interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
	Events() <-chan types.Event
	Enumerate() ([]types.Device, error)
	GetStats() hotplug.Stats
}

// Rules resolves bindings against the current settings snapshot.
type Rules interface {
	Resolve(dev types.Device) *types.Binding
	Snapshot() *types.Settings
}

// Executor runs commands. command.Runner implements it.
type Executor interface {
	Execute(ctx context.Context, cmd types.Command) (*types.Result, error)
	Test(ctx context.Context, cmd types.Command) (*types.Result, error)
	SetLogExecution(on bool)
}

// Config tunes the dispatcher.
type Config struct {
	ActivityCapacity int
	// StatsInterval logs monitor counters periodically. Zero disables it.
	StatsInterval time.Duration
}

// Observer is called on the consumer goroutine for every event. It must
// not block.
type Observer func(types.Event)

// Status is a point in time view of the dispatcher.
type Status struct {
	Monitoring bool          `json:"monitoring"`
	InFlight   int64         `json:"inFlight"`
	Stats      hotplug.Stats `json:"stats"`
}

// Dispatcher consumes monitor events on a single goroutine, resolves the
// bound command and runs it on a tracked goroutine so awaited commands
// never stall event intake.
type Dispatcher struct {
	logger   logger.Logger
	monitor  Monitor
	rules    Rules
	runner   Executor
	notifier notify.Notifier
	cfg      Config

	mu        sync.Mutex
	started   bool
	execCtx   context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
	scheduler gocron.Scheduler

	inflight      sync.WaitGroup
	inflightCount atomic.Int64

	activityMu sync.RWMutex
	activity   []types.ActivityEntry

	observersMu sync.RWMutex
	onArrived   []Observer
	onRemoved   []Observer

	now func() time.Time
}

// New creates a dispatcher. notifier may be nil.
func New(
	l logger.Logger,
	monitor Monitor,
	rules Rules,
	runner Executor,
	notifier notify.Notifier,
	cfg Config,
) *Dispatcher {
	if cfg.ActivityCapacity <= 0 {
		cfg.ActivityCapacity = DefaultActivityCapacity
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Dispatcher{
		logger:   l,
		monitor:  monitor,
		rules:    rules,
		runner:   runner,
		notifier: notifier,
		cfg:      cfg,
		activity: make([]types.ActivityEntry, 0, cfg.ActivityCapacity),
		now:      time.Now,
	}
}

// Start launches the consumer loop. It does not start monitoring.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	d.execCtx, d.cancel = context.WithCancel(context.Background())
	d.loopDone = make(chan struct{})
	d.started = true

	d.ApplySettings(d.rules.Snapshot())

	if d.cfg.StatsInterval > 0 {
		if err := d.startStatsJob(); err != nil {
			d.logger.Warn("failed to schedule stats job", "error", err)
		}
	}

	go d.loop(d.execCtx, d.loopDone)
	d.logger.Debug("dispatcher started")
	return nil
}

// Stop halts monitoring and the consumer loop, then waits for in-flight
// commands until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false

	if err := d.monitor.Stop(); err != nil {
		d.logger.Warn("failed to stop monitor", "error", err)
	}
	if d.scheduler != nil {
		if err := d.scheduler.Shutdown(); err != nil {
			d.logger.Warn("failed to shut down stats job", "error", err)
		}
		d.scheduler = nil
	}
	d.cancel()
	loopDone := d.loopDone
	d.mu.Unlock()

	<-loopDone

	waited := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		d.logger.Debug("dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("dispatcher stopped with commands still running",
			"in_flight", d.inflightCount.Load())
		return errors.Wrap(ctx.Err(), errors.LifecycleShutdown).
			WithMetadata("operation", "await_commands")
	}
}

// StartMonitoring starts the consumer loop if needed and then the monitor.
func (d *Dispatcher) StartMonitoring(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	return d.monitor.Start(ctx)
}

// StopMonitoring stops the monitor. The consumer loop keeps draining
// whatever is already buffered.
func (d *Dispatcher) StopMonitoring() error {
	return d.monitor.Stop()
}

func (d *Dispatcher) IsMonitoring() bool {
	return d.monitor.IsRunning()
}

// Status reports monitoring state and counters.
func (d *Dispatcher) Status() Status {
	return Status{
		Monitoring: d.monitor.IsRunning(),
		InFlight:   d.inflightCount.Load(),
		Stats:      d.monitor.GetStats(),
	}
}

// ApplySettings pushes runtime toggles into collaborators.
func (d *Dispatcher) ApplySettings(s *types.Settings) {
	if s == nil {
		return
	}
	d.runner.SetLogExecution(s.LogCommandExecution)
}

// OnArrived registers fn for arrival events.
func (d *Dispatcher) OnArrived(fn Observer) {
	d.observersMu.Lock()
	defer d.observersMu.Unlock()
	d.onArrived = append(d.onArrived, fn)
}

// OnRemoved registers fn for removal events.
func (d *Dispatcher) OnRemoved(fn Observer) {
	d.observersMu.Lock()
	defer d.observersMu.Unlock()
	d.onRemoved = append(d.onRemoved, fn)
}

// ConnectedDevices enumerates attached devices and marks each with the
// binding that would fire for it.
func (d *Dispatcher) ConnectedDevices() ([]types.ConnectedDevice, error) {
	devices, err := d.monitor.Enumerate()
	if err != nil {
		return nil, err
	}

	out := make([]types.ConnectedDevice, 0, len(devices))
	for _, dev := range devices {
		cd := types.ConnectedDevice{Device: dev}
		if b := d.rules.Resolve(dev); b != nil {
			cd.Bound = true
			cd.BindingID = b.ID
		}
		out = append(out, cd)
	}
	return out, nil
}

// ExecuteCommand runs cmd now, on the caller's goroutine, and records the
// outcome in the activity log.
func (d *Dispatcher) ExecuteCommand(ctx context.Context, cmd types.Command) (*types.Result, error) {
	res, err := d.runner.Execute(ctx, cmd)
	d.recordOutcome(ctx, cmd, res, err)
	return res, err
}

// TestCommand dry runs cmd. Nothing is recorded.
func (d *Dispatcher) TestCommand(ctx context.Context, cmd types.Command) (*types.Result, error) {
	return d.runner.Test(ctx, cmd)
}

// Activity returns the log, newest first.
func (d *Dispatcher) Activity() []types.ActivityEntry {
	d.activityMu.RLock()
	defer d.activityMu.RUnlock()
	out := make([]types.ActivityEntry, len(d.activity))
	copy(out, d.activity)
	return out
}

// ClearActivity empties the log.
func (d *Dispatcher) ClearActivity() {
	d.activityMu.Lock()
	defer d.activityMu.Unlock()
	d.activity = d.activity[:0]
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	events := d.monitor.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				d.logger.Debug("monitor event channel closed")
				return
			}
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev types.Event) {
	name := ev.Device.Name()

	var title string
	switch ev.Kind {
	case types.EventArrived:
		d.addActivity("Connected: " + name)
		title = "Device connected"
	case types.EventRemoved:
		d.addActivity("Disconnected: " + name)
		title = "Device disconnected"
	default:
		d.logger.Warn("ignoring event of unknown kind", "kind", ev.Kind)
		return
	}

	d.notifyObservers(ev)

	settings := d.rules.Snapshot()
	d.ApplySettings(settings)

	if settings.ShowNotifications {
		d.track(func() { d.notify(ctx, title, name) })
	}

	binding := d.rules.Resolve(ev.Device)
	if binding == nil {
		d.logger.Debug("no binding for device", "device", ev.Device.String(), "kind", ev.Kind)
		return
	}

	cmd := binding.CommandFor(ev.Kind)
	if !cmd.IsValid() {
		d.logger.Debug("binding has no command for event",
			"binding", binding.ID,
			"kind", ev.Kind)
		return
	}

	d.logger.Info("dispatching bound command",
		"binding", binding.ID,
		"device", ev.Device.String(),
		"kind", ev.Kind,
		"program", cmd.Program)

	run := *cmd
	d.track(func() {
		res, err := d.runner.Execute(ctx, run)
		d.recordOutcome(ctx, run, res, err)
	})
}

func (d *Dispatcher) track(fn func()) {
	d.inflight.Add(1)
	d.inflightCount.Add(1)
	go func() {
		defer func() {
			d.inflightCount.Add(-1)
			d.inflight.Done()
		}()
		fn()
	}()
}

func (d *Dispatcher) recordOutcome(ctx context.Context, cmd types.Command, res *types.Result, err error) {
	var msg string
	success := false
	switch {
	case err != nil:
		msg = "✗ Command error: " + err.Error()
	case res != nil && res.Success:
		msg = "✓ Command executed: " + cmd.Program
		success = true
	case res != nil:
		msg = "✗ Command error: " + res.ErrorMessage
	default:
		msg = "✗ Command error: no result"
	}
	d.addActivity(msg)

	if !d.rules.Snapshot().ShowNotifications {
		return
	}
	if success {
		d.notify(ctx, "Command executed", cmd.Program)
	} else {
		d.notify(ctx, "Command failed", msg)
	}
}

func (d *Dispatcher) notify(ctx context.Context, title, body string) {
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := d.notifier.Notify(nctx, title, body); err != nil {
		d.logger.Warn("notification failed", "title", title, "error", err)
	}
}

func (d *Dispatcher) notifyObservers(ev types.Event) {
	d.observersMu.RLock()
	var observers []Observer
	if ev.Kind == types.EventArrived {
		observers = append(observers, d.onArrived...)
	} else {
		observers = append(observers, d.onRemoved...)
	}
	d.observersMu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}

func (d *Dispatcher) addActivity(msg string) {
	entry := types.ActivityEntry{Time: d.now(), Message: msg}

	d.activityMu.Lock()
	defer d.activityMu.Unlock()

	if len(d.activity) < d.cfg.ActivityCapacity {
		d.activity = append(d.activity, types.ActivityEntry{})
	}
	copy(d.activity[1:], d.activity)
	d.activity[0] = entry
}

func (d *Dispatcher) startStatsJob() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(d.cfg.StatsInterval),
		gocron.NewTask(func() {
			if !d.monitor.IsRunning() {
				return
			}
			s := d.monitor.GetStats()
			d.logger.Info("usb monitor stats",
				"source", s.Source,
				"received", s.Received,
				"emitted", s.Emitted,
				"dropped", s.Dropped,
				"parse_failures", s.ParseFailures,
				"duplicates", s.Duplicates,
				"in_flight", d.inflightCount.Load())
		}),
		gocron.WithName("usb_monitor_stats"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}

	scheduler.Start()
	d.scheduler = scheduler
	return nil
}
