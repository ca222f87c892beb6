// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"context"
	"testing"
	"time"

	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollSourceNoSyntheticArrivals(t *testing.T) {
	enum := &fakeEnumerator{}
	enum.set(types.Device{VendorID: "046D", ProductID: "C52B", BusID: "1-2"})

	src := NewPollSource(newTestLogger(t), enum, 20*time.Millisecond)
	m := NewMonitor(newTestLogger(t), src, enum, Config{})
	require.NoError(t, m.Start(context.Background()))
	defer m.Dispose()

	// Already attached device is in the baseline.
	devices, err := m.Enumerate()
	require.NoError(t, err)
	assert.Len(t, devices, 1)
	assertNoEvent(t, m.Events(), 100*time.Millisecond)

	enum.set(
		types.Device{VendorID: "046D", ProductID: "C52B", BusID: "1-2"},
		types.Device{VendorID: "0781", ProductID: "5567", BusID: "1-3", SerialNumber: "4C5300", DisplayName: "Cruzer"},
	)
	ev := receive(t, m.Events())
	assert.Equal(t, types.EventArrived, ev.Kind)
	assert.Equal(t, "0781", ev.Device.VendorID)
	assert.Equal(t, "4C5300", ev.Device.SerialNumber)
	assert.Equal(t, "1-3", ev.Device.BusID)
	assert.Equal(t, "Cruzer", ev.Device.DisplayName)

	enum.set(types.Device{VendorID: "0781", ProductID: "5567", BusID: "1-3", SerialNumber: "4C5300"})
	ev = receive(t, m.Events())
	assert.Equal(t, types.EventRemoved, ev.Kind)
	assert.Equal(t, "046D", ev.Device.VendorID)
	assert.Empty(t, ev.Device.SerialNumber)
}

func TestPollSourceStopsDelivering(t *testing.T) {
	enum := &fakeEnumerator{}
	src := NewPollSource(newTestLogger(t), enum, 10*time.Millisecond)
	m := NewMonitor(newTestLogger(t), src, enum, Config{})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop())

	enum.set(types.Device{VendorID: "1234", ProductID: "5678", BusID: "2-1"})
	assertNoEvent(t, m.Events(), 80*time.Millisecond)
}

func TestNewSource(t *testing.T) {
	l := newTestLogger(t)
	src, err := NewSource(l, SourcePoll, &fakeEnumerator{}, 0)
	require.NoError(t, err)
	assert.Equal(t, SourcePoll, src.Name())

	_, err = NewSource(l, "carrier-pigeon", nil, 0)
	assert.Error(t, err)
}
