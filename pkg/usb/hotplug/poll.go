// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

// DefaultPollInterval matches the two second window of the WMI style
// "WITHIN 2" queries the polling model is based on.
const DefaultPollInterval = 2 * time.Second

// PollSource detects hotplug by diffing periodic enumerations. It works
// anywhere the enumerator does, at the cost of up to one interval latency.
type PollSource struct {
	logger     logger.Logger
	enumerator Enumerator
	interval   time.Duration
}

// NewPollSource creates a polling source.
func NewPollSource(l logger.Logger, enumerator Enumerator, interval time.Duration) *PollSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollSource{logger: l, enumerator: enumerator, interval: interval}
}

func (s *PollSource) Name() string { return SourcePoll }

// Subscribe takes a baseline snapshot immediately, so devices attached
// before the call never show up as arrivals, then schedules the diff job.
func (s *PollSource) Subscribe(
	_ context.Context,
	kind types.EventKind,
	deliver func(RawEvent),
) (Subscription, error) {
	if s.enumerator == nil {
		return nil, errors.New(errors.USBSubscribeFailed, "poll source has no enumerator")
	}

	baseline, err := s.snapshot()
	if err != nil {
		return nil, errors.Wrap(err, errors.USBSubscribeFailed).
			WithMetadata("operation", "poll_baseline")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.USBSubscribeFailed).
			WithMetadata("operation", "poll_scheduler")
	}

	sub := &pollSubscription{
		source:    s,
		kind:      kind,
		previous:  baseline,
		deliver:   deliver,
		scheduler: scheduler,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(sub.tick),
		gocron.WithName("usb_poll_"+string(kind)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, errors.Wrap(err, errors.USBSubscribeFailed).
			WithMetadata("operation", "poll_job")
	}

	scheduler.Start()
	s.logger.Debug("poll subscription opened", "kind", kind, "interval", s.interval)
	return sub, nil
}

func (s *PollSource) snapshot() (map[string]types.Device, error) {
	devices, err := s.enumerator.Devices()
	if err != nil {
		return nil, err
	}
	snap := make(map[string]types.Device, len(devices))
	for _, d := range devices {
		snap[pollKey(d)] = d
	}
	return snap, nil
}

func pollKey(d types.Device) string {
	if d.BusID != "" {
		return strings.ToUpper(d.BusID)
	}
	return strings.ToUpper(instancePathFor(d))
}

type pollSubscription struct {
	source    *PollSource
	kind      types.EventKind
	deliver   func(RawEvent)
	scheduler gocron.Scheduler

	mu       sync.Mutex
	previous map[string]types.Device
	closed   bool
}

func (p *pollSubscription) tick() {
	current, err := p.source.snapshot()
	if err != nil {
		p.source.logger.Warn("usb poll enumeration failed", "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	from, to := p.previous, current
	if p.kind == types.EventRemoved {
		from, to = current, p.previous
	}
	for key, d := range to {
		if _, ok := from[key]; ok {
			continue
		}
		p.deliver(RawEvent{
			Kind:         p.kind,
			InstancePath: instancePathFor(d),
			BusID:        d.BusID,
			Name:         d.DisplayName,
			Description:  d.Description,
		})
	}
	p.previous = current
}

func (p *pollSubscription) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.scheduler.Shutdown(); err != nil {
		return errors.Wrap(err, errors.OperationFailed).
			WithMetadata("operation", "poll_shutdown")
	}
	return nil
}
