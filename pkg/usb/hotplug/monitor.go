// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

const (
	DefaultBufferSize   = 100
	DefaultDedupeWindow = 2 * time.Second
)

// Config tunes the monitor.
type Config struct {
	BufferSize int
	// DedupeWindow collapses repeated notifications for the same device and
	// direction. Zero disables it.
	DedupeWindow time.Duration
}

// Monitor turns raw hotplug notifications into Arrived/Removed events.
//
// Start opens two subscriptions on the Source, one per direction. Events are
// delivered on a bounded channel; when the consumer falls behind new events
// are dropped and counted instead of blocking the source.
//
// Thread-safety: Start, Stop and Dispose are serialized. Enumerate is
// stateless and safe at any time.
type Monitor struct {
	logger     logger.Logger
	source     Source
	enumerator Enumerator
	cfg        Config

	mu      sync.Mutex
	running bool
	subs    []Subscription

	// emitMu guards events against close during Dispose
	emitMu sync.RWMutex
	closed bool
	events chan types.Event

	correlationMu sync.Mutex
	correlation   map[correlationKey]time.Time

	statsMu sync.RWMutex
	stats   Stats
}

type correlationKey struct {
	device string
	kind   types.EventKind
}

// Stats tracks monitoring counters.
type Stats struct {
	Running       bool      `json:"running"`
	Source        string    `json:"source"`
	Received      uint64    `json:"received"`
	Emitted       uint64    `json:"emitted"`
	Dropped       uint64    `json:"dropped"`
	ParseFailures uint64    `json:"parseFailures"`
	Duplicates    uint64    `json:"duplicates"`
	LastEvent     time.Time `json:"lastEvent,omitzero"`
	StartTime     time.Time `json:"startTime,omitzero"`
}

// NewMonitor creates a stopped monitor.
func NewMonitor(l logger.Logger, source Source, enumerator Enumerator, cfg Config) *Monitor {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.DedupeWindow < 0 {
		cfg.DedupeWindow = 0
	}

	return &Monitor{
		logger:      l,
		source:      source,
		enumerator:  enumerator,
		cfg:         cfg,
		events:      make(chan types.Event, cfg.BufferSize),
		correlation: make(map[correlationKey]time.Time),
	}
}

// Events returns the event channel. It is closed by Dispose.
func (m *Monitor) Events() <-chan types.Event {
	return m.events
}

// IsRunning reports whether both subscriptions are live.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start subscribes to arrivals and removals. Starting a running monitor is
// logged and ignored. If either subscription fails nothing stays open.
// Devices already attached do not produce arrivals.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Info("usb monitor already running")
		return nil
	}
	if m.isClosed() {
		return errors.New(errors.InvalidState, "monitor disposed")
	}

	m.logger.Info("starting usb monitor", "source", m.source.Name())

	subs := make([]Subscription, 0, 2)
	for _, kind := range []types.EventKind{types.EventArrived, types.EventRemoved} {
		sub, err := m.source.Subscribe(ctx, kind, m.handleRaw)
		if err != nil {
			for _, s := range subs {
				if cerr := s.Close(); cerr != nil {
					m.logger.Warn("failed to close subscription during rollback", "error", cerr)
				}
			}
			return errors.Wrap(err, errors.USBSubscribeFailed).
				WithMetadata("source", m.source.Name()).
				WithMetadata("kind", string(kind))
		}
		subs = append(subs, sub)
	}

	m.subs = subs
	m.running = true

	m.statsMu.Lock()
	m.stats.Running = true
	m.stats.Source = m.source.Name()
	m.stats.StartTime = time.Now()
	m.statsMu.Unlock()

	m.logger.Info("usb monitor started")
	return nil
}

// Stop closes both subscriptions. A stopped monitor is left alone.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Monitor) stopLocked() error {
	if !m.running {
		return nil
	}

	m.logger.Info("stopping usb monitor")

	var firstErr error
	for _, s := range m.subs {
		if err := s.Close(); err != nil {
			m.logger.Warn("failed to close subscription", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	m.subs = nil
	m.running = false

	m.statsMu.Lock()
	m.stats.Running = false
	m.statsMu.Unlock()

	m.correlationMu.Lock()
	clear(m.correlation)
	m.correlationMu.Unlock()

	if firstErr != nil {
		return errors.Wrap(firstErr, errors.OperationFailed).
			WithMetadata("operation", "usb_monitor_stop")
	}
	return nil
}

// Dispose stops the monitor and closes the event channel. Safe to call
// more than once.
func (m *Monitor) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.stopLocked()

	m.emitMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	m.emitMu.Unlock()

	return err
}

// Enumerate lists currently attached devices. It does not depend on the
// monitor running.
func (m *Monitor) Enumerate() ([]types.Device, error) {
	if m.enumerator == nil {
		return nil, errors.New(errors.USBEnumerateFailed, "no enumerator configured")
	}

	devices, err := m.enumerator.Devices()
	if err != nil {
		return nil, errors.Wrap(err, errors.USBEnumerateFailed)
	}

	now := time.Now()
	out := make([]types.Device, 0, len(devices))
	for _, d := range devices {
		d = d.Normalize()
		d.Connected = true
		d.LastSeen = now
		out = append(out, d)
	}
	return out, nil
}

// GetStats returns a copy of the counters.
func (m *Monitor) GetStats() Stats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats
}

func (m *Monitor) isClosed() bool {
	m.emitMu.RLock()
	defer m.emitMu.RUnlock()
	return m.closed
}

// handleRaw runs on the source goroutine.
func (m *Monitor) handleRaw(raw RawEvent) {
	now := time.Now()

	m.statsMu.Lock()
	m.stats.Received++
	m.stats.LastEvent = now
	m.statsMu.Unlock()

	dev, err := ParseInstancePath(raw.InstancePath)
	if err != nil {
		m.statsMu.Lock()
		m.stats.ParseFailures++
		m.statsMu.Unlock()
		m.logger.Warn("dropping unparsable usb event",
			"kind", raw.Kind,
			"path", raw.InstancePath,
			"error", err)
		return
	}

	dev.BusID = raw.BusID
	dev.DisplayName = raw.Name
	dev.Description = raw.Description
	dev.Connected = raw.Kind == types.EventArrived
	dev.LastSeen = now

	event := types.Event{Kind: raw.Kind, Device: dev, Timestamp: now}
	m.emit(event, raw.InstancePath)
}

func (m *Monitor) emit(event types.Event, instancePath string) {
	if m.isDuplicate(event, instancePath) {
		m.statsMu.Lock()
		m.stats.Duplicates++
		m.statsMu.Unlock()
		m.logger.Debug("duplicate usb event filtered",
			"kind", event.Kind,
			"device", event.Device.Key())
		return
	}

	m.emitMu.RLock()
	defer m.emitMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.events <- event:
		m.statsMu.Lock()
		m.stats.Emitted++
		m.statsMu.Unlock()
		m.logger.Debug("usb event",
			"kind", event.Kind,
			"device", event.Device.String(),
			"bus_id", event.Device.BusID)
	default:
		m.statsMu.Lock()
		m.stats.Dropped++
		m.statsMu.Unlock()
		m.logger.Warn("event buffer full, dropping usb event",
			"kind", event.Kind,
			"device", event.Device.Key())
	}
}

// isDuplicate reports whether the same device produced the same kind of
// event within the dedupe window. Recording an event forgets the opposite
// direction for that device so a quick replug is never swallowed.
func (m *Monitor) isDuplicate(event types.Event, instancePath string) bool {
	if m.cfg.DedupeWindow == 0 {
		return false
	}

	id := strings.ToUpper(event.Device.BusID)
	if id == "" {
		id = strings.ToUpper(instancePath)
	}
	key := correlationKey{device: id, kind: event.Kind}
	opposite := correlationKey{device: id, kind: types.EventRemoved}
	if event.Kind == types.EventRemoved {
		opposite.kind = types.EventArrived
	}

	m.correlationMu.Lock()
	defer m.correlationMu.Unlock()

	now := event.Timestamp
	if seen, ok := m.correlation[key]; ok && now.Sub(seen) < m.cfg.DedupeWindow {
		m.correlation[key] = now
		return true
	}

	m.correlation[key] = now
	delete(m.correlation, opposite)

	if len(m.correlation) > 256 {
		for k, ts := range m.correlation {
			if now.Sub(ts) > 2*m.cfg.DedupeWindow {
				delete(m.correlation, k)
			}
		}
	}
	return false
}
