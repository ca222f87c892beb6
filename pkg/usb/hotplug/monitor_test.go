// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) logger.Logger {
	t.Helper()
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	return l
}

type fakeSubscription struct {
	source *fakeSource
	kind   types.EventKind
}

func (s *fakeSubscription) Close() error {
	s.source.mu.Lock()
	defer s.source.mu.Unlock()
	delete(s.source.deliver, s.kind)
	s.source.closed++
	return nil
}

// fakeSource records subscriptions and lets tests push raw events.
type fakeSource struct {
	mu       sync.Mutex
	deliver  map[types.EventKind]func(RawEvent)
	failKind types.EventKind
	opened   int
	closed   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{deliver: make(map[types.EventKind]func(RawEvent))}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Subscribe(
	_ context.Context,
	kind types.EventKind,
	deliver func(RawEvent),
) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == s.failKind {
		return nil, fmt.Errorf("cannot subscribe to %s", kind)
	}
	s.deliver[kind] = deliver
	s.opened++
	return &fakeSubscription{source: s, kind: kind}, nil
}

func (s *fakeSource) push(kind types.EventKind, path, busID string) {
	s.mu.Lock()
	d := s.deliver[kind]
	s.mu.Unlock()
	if d != nil {
		d(RawEvent{Kind: kind, InstancePath: path, BusID: busID, Name: "Receiver"})
	}
}

func (s *fakeSource) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliver)
}

type fakeEnumerator struct {
	mu      sync.Mutex
	devices []types.Device
	err     error
}

func (e *fakeEnumerator) Devices() ([]types.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Device(nil), e.devices...), e.err
}

func (e *fakeEnumerator) set(devices ...types.Device) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = devices
}

func receive(t *testing.T, ch <-chan types.Event) types.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return types.Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan types.Event, wait time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(wait):
	}
}

func TestMonitorLifecycle(t *testing.T) {
	src := newFakeSource()
	m := NewMonitor(newTestLogger(t), src, &fakeEnumerator{}, Config{})

	assert.False(t, m.IsRunning())
	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Equal(t, 2, src.active())

	// Second start is a no-op and opens nothing new.
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 2, src.opened)

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
	assert.Equal(t, 0, src.active())

	// Stop when stopped is a no-op.
	require.NoError(t, m.Stop())
	assert.Equal(t, 2, src.closed)

	// Restartable.
	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())

	require.NoError(t, m.Dispose())
	require.NoError(t, m.Dispose())
	_, open := <-m.Events()
	assert.False(t, open)

	err := m.Start(context.Background())
	assert.True(t, errors.Is(err, errors.InvalidState))
}

func TestMonitorStartRollsBackOnPartialFailure(t *testing.T) {
	src := newFakeSource()
	src.failKind = types.EventRemoved
	m := NewMonitor(newTestLogger(t), src, nil, Config{})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.USBSubscribeFailed))
	assert.False(t, m.IsRunning())
	assert.Equal(t, 0, src.active(), "arrival watcher must be closed again")
	assert.Equal(t, 1, src.closed)
}

func TestMonitorEmitsParsedEvents(t *testing.T) {
	src := newFakeSource()
	m := NewMonitor(newTestLogger(t), src, nil, Config{DedupeWindow: -1})
	require.NoError(t, m.Start(context.Background()))
	defer m.Dispose()

	src.push(types.EventArrived, `USB\VID_046D&PID_C52B\5&1&2`, "1-2")
	ev := receive(t, m.Events())
	assert.Equal(t, types.EventArrived, ev.Kind)
	assert.Equal(t, "046D", ev.Device.VendorID)
	assert.Equal(t, "C52B", ev.Device.ProductID)
	assert.Equal(t, "1-2", ev.Device.BusID)
	assert.Equal(t, "Receiver", ev.Device.DisplayName)
	assert.True(t, ev.Device.Connected)

	src.push(types.EventRemoved, `USB\VID_046D&PID_C52B\5&1&2`, "1-2")
	ev = receive(t, m.Events())
	assert.Equal(t, types.EventRemoved, ev.Kind)
	assert.False(t, ev.Device.Connected)

	// Parse failures are dropped, never fatal.
	src.push(types.EventArrived, `garbage`, "")
	assertNoEvent(t, m.Events(), 50*time.Millisecond)
	stats := m.GetStats()
	assert.Equal(t, uint64(1), stats.ParseFailures)
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(2), stats.Emitted)
	assert.True(t, m.IsRunning())
}

func TestMonitorDedupe(t *testing.T) {
	src := newFakeSource()
	m := NewMonitor(newTestLogger(t), src, nil, Config{DedupeWindow: time.Minute})
	require.NoError(t, m.Start(context.Background()))
	defer m.Dispose()

	path := `USB\VID_046D&PID_C52B\SER`
	src.push(types.EventArrived, path, "1-2")
	src.push(types.EventArrived, path, "1-2")
	receive(t, m.Events())
	assertNoEvent(t, m.Events(), 50*time.Millisecond)
	assert.Equal(t, uint64(1), m.GetStats().Duplicates)

	// Remove then replug inside the window is still delivered.
	src.push(types.EventRemoved, path, "1-2")
	src.push(types.EventArrived, path, "1-2")
	assert.Equal(t, types.EventRemoved, receive(t, m.Events()).Kind)
	assert.Equal(t, types.EventArrived, receive(t, m.Events()).Kind)
}

func TestMonitorDropsWhenBufferFull(t *testing.T) {
	src := newFakeSource()
	m := NewMonitor(newTestLogger(t), src, nil, Config{BufferSize: 1})
	require.NoError(t, m.Start(context.Background()))
	defer m.Dispose()

	src.push(types.EventArrived, `USB\VID_0001&PID_0001\AA`, "1-1")
	src.push(types.EventArrived, `USB\VID_0002&PID_0002\BB`, "1-3")

	assert.Equal(t, uint64(1), m.GetStats().Dropped)
	assert.Equal(t, "0001", receive(t, m.Events()).Device.VendorID)
}

func TestMonitorEnumerateIndependentOfState(t *testing.T) {
	enum := &fakeEnumerator{}
	enum.set(types.Device{VendorID: "46d", ProductID: "c52b", BusID: "1-2"})
	m := NewMonitor(newTestLogger(t), newFakeSource(), enum, Config{})

	devices, err := m.Enumerate()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "046D", devices[0].VendorID)
	assert.True(t, devices[0].Connected)

	require.NoError(t, m.Start(context.Background()))
	devices, err = m.Enumerate()
	require.NoError(t, err)
	assert.Len(t, devices, 1)
	assertNoEvent(t, m.Events(), 50*time.Millisecond)
	require.NoError(t, m.Dispose())

	enum.mu.Lock()
	enum.err = fmt.Errorf("libusb unavailable")
	enum.mu.Unlock()
	_, err = m.Enumerate()
	assert.True(t, errors.Is(err, errors.USBEnumerateFailed))
}

func TestMonitorConcurrentStartStopKeepsSubscriptionsPaired(t *testing.T) {
	src := newFakeSource()
	m := NewMonitor(newTestLogger(t), src, nil, Config{})

	// Holding m.mu freezes the monitor between operations, so the source
	// must show both watchers or none.
	check := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		active := src.active()
		if m.running {
			assert.Equal(t, 2, active, "running monitor must own both watchers")
		} else {
			assert.Equal(t, 0, active, "stopped monitor must own no watchers")
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if (i+w)%2 == 0 {
					_ = m.Start(context.Background())
				} else {
					_ = m.Stop()
				}
				check()
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		_ = m.Dispose()
		check()
	}()

	wg.Wait()

	check()
	assert.False(t, m.IsRunning())
	assert.Equal(t, 0, src.active())
	src.mu.Lock()
	assert.Equal(t, src.opened, src.closed)
	src.mu.Unlock()
}
