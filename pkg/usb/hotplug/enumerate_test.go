// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"testing"

	"github.com/google/gousb"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGousbBusID(t *testing.T) {
	tests := []struct {
		name string
		desc gousb.DeviceDesc
		want string
	}{
		{"root hub", gousb.DeviceDesc{Bus: 1, Address: 1}, "usb1"},
		{"port one", gousb.DeviceDesc{Bus: 1, Address: 5, Path: []int{1}}, "1-1"},
		{"behind hub", gousb.DeviceDesc{Bus: 2, Address: 9, Path: []int{3, 4}}, "2-3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gousbBusID(&tt.desc))
		})
	}

	rootHub := gousb.DeviceDesc{Bus: 1, Address: 1}
	portOne := gousb.DeviceDesc{Bus: 1, Address: 2, Path: []int{1}}
	assert.NotEqual(t, gousbBusID(&rootHub), gousbBusID(&portOne))
}

func TestListDevicesKeepsUnopenedDevices(t *testing.T) {
	descs := []*gousb.DeviceDesc{
		{Bus: 1, Address: 4, Path: []int{2}, Vendor: 0x046d, Product: 0xc52b},
		{Bus: 1, Address: 7, Path: []int{3}, Vendor: 0x1234, Product: 0x0005},
	}

	// Only the first device could be opened for its strings.
	devices := listDevices(descs, func(d *types.Device) {
		if d.BusID == "1-2" {
			d.SerialNumber = "ABC"
			d.DisplayName = "Receiver"
		}
	})

	require.Len(t, devices, 2)
	assert.Equal(t, "046D", devices[0].VendorID)
	assert.Equal(t, "C52B", devices[0].ProductID)
	assert.Equal(t, "ABC", devices[0].SerialNumber)
	assert.Equal(t, "Receiver", devices[0].DisplayName)

	assert.Equal(t, "1-3", devices[1].BusID)
	assert.Equal(t, "1234", devices[1].VendorID)
	assert.Equal(t, "0005", devices[1].ProductID)
	assert.Empty(t, devices[1].SerialNumber)
}
