// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"testing"

	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstancePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		vid     string
		pid     string
		serial  string
		wantErr bool
	}{
		{"serial segment", `USB\VID_046D&PID_C52B\ABC123`, "046D", "C52B", "ABC123", false},
		{"lowercase everything", `usb\vid_046d&pid_c52b\abc123`, "046D", "C52B", "abc123", false},
		{"generated suffix is not a serial", `USB\VID_046D&PID_C52B\5&2B1F0A&0&2`, "046D", "C52B", "", false},
		{"single char segment ignored", `USB\VID_046D&PID_C52B\7`, "046D", "C52B", "", false},
		{"no third segment", `USB\VID_046D&PID_C52B`, "046D", "C52B", "", false},
		{"missing prefix", `HID\VID_046D&PID_C52B\1`, "", "", "", true},
		{"missing ids", `USB\ROOT_HUB30\4&1`, "", "", "", true},
		{"empty", ``, "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := ParseInstancePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.USBParseFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.vid, dev.VendorID)
			assert.Equal(t, tt.pid, dev.ProductID)
			assert.Equal(t, tt.serial, dev.SerialNumber)
		})
	}
}

func TestInstancePathRoundTrip(t *testing.T) {
	p := InstancePath("46d", "c52b", "SER1")
	assert.Equal(t, `USB\VID_046D&PID_C52B\SER1`, p)

	dev, err := ParseInstancePath(instancePathFor(types.Device{VendorID: "046D", ProductID: "C52B", BusID: "1-2"}))
	require.NoError(t, err)
	assert.Empty(t, dev.SerialNumber)
}

func TestRawFromUEvent(t *testing.T) {
	env := map[string]string{
		"DEVTYPE":                 "usb_device",
		"DEVPATH":                 "/devices/pci0000:00/0000:00:14.0/usb1/1-2",
		"PRODUCT":                 "46d/c52b/1201",
		"BUSNUM":                  "001",
		"DEVNUM":                  "004",
		"ID_MODEL":                "USB_Receiver",
		"ID_VENDOR_FROM_DATABASE": "Logitech, Inc.",
	}

	raw, ok := rawFromUEvent(types.EventArrived, "", env)
	require.True(t, ok)
	assert.Equal(t, "1-2", raw.BusID)
	assert.Equal(t, "USB Receiver", raw.Name)
	assert.Equal(t, "Logitech, Inc.", raw.Description)

	dev, err := ParseInstancePath(raw.InstancePath)
	require.NoError(t, err)
	assert.Equal(t, "046D", dev.VendorID)
	assert.Equal(t, "C52B", dev.ProductID)
	assert.Empty(t, dev.SerialNumber, "bus&dev suffix must not become a serial")

	env["ID_SERIAL_SHORT"] = "0123456789"
	raw, _ = rawFromUEvent(types.EventRemoved, "", env)
	dev, err = ParseInstancePath(raw.InstancePath)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", dev.SerialNumber)

	_, ok = rawFromUEvent(types.EventArrived, "", map[string]string{"DEVTYPE": "usb_interface"})
	assert.False(t, ok)

	raw, ok = rawFromUEvent(types.EventArrived, "/devices/x/1-9", map[string]string{"DEVTYPE": "usb_device"})
	require.True(t, ok)
	_, err = ParseInstancePath(raw.InstancePath)
	assert.Error(t, err)
}
