// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

// GousbEnumerator lists devices through libusb.
type GousbEnumerator struct {
	logger logger.Logger
	// IncludeHubs keeps root and external hubs in the listing.
	IncludeHubs bool
}

// NewGousbEnumerator creates a libusb backed enumerator.
func NewGousbEnumerator(l logger.Logger) *GousbEnumerator {
	return &GousbEnumerator{logger: l}
}

// Devices opens a fresh libusb context per call so no handle outlives it.
// Every attached device is listed from its descriptor; opening it to read
// the string descriptors is best effort and usually fails for unprivileged
// users.
func (e *GousbEnumerator) Devices() ([]types.Device, error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	var descs []*gousb.DeviceDesc
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if !e.IncludeHubs && desc.Class == gousb.ClassHub {
			return false
		}
		descs = append(descs, desc)
		return true
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	// OpenDevices reports the first open failure but still walks the bus.
	if err != nil && len(descs) == 0 {
		return nil, errors.Wrap(err, errors.USBEnumerateFailed).
			WithMetadata("backend", "gousb")
	}
	if err != nil {
		e.logger.Debug("some usb devices could not be opened",
			"error", err, "listed", len(descs), "opened", len(devs))
	}

	opened := make(map[string]*gousb.Device, len(devs))
	for _, dev := range devs {
		opened[gousbBusID(dev.Desc)] = dev
	}

	return listDevices(descs, func(d *types.Device) {
		if dev, ok := opened[d.BusID]; ok {
			readStrings(dev, d)
		}
	}), nil
}

// listDevices builds one entry per descriptor. describe may fill in the
// string fields; entries it leaves alone are kept descriptor-only.
func listDevices(descs []*gousb.DeviceDesc, describe func(*types.Device)) []types.Device {
	out := make([]types.Device, 0, len(descs))
	for _, desc := range descs {
		d := types.Device{
			BusID:     gousbBusID(desc),
			VendorID:  fmt.Sprintf("%04X", uint16(desc.Vendor)),
			ProductID: fmt.Sprintf("%04X", uint16(desc.Product)),
		}
		describe(&d)
		out = append(out, d)
	}
	return out
}

func readStrings(dev *gousb.Device, d *types.Device) {
	if s, err := dev.SerialNumber(); err == nil {
		d.SerialNumber = strings.TrimSpace(s)
	}
	if p, err := dev.Product(); err == nil {
		d.DisplayName = strings.TrimSpace(p)
	}
	if m, err := dev.Manufacturer(); err == nil {
		d.Description = strings.TrimSpace(m)
	}
}

// gousbBusID renders the kernel device name: "1-2.4" for a port path and
// "usb1" for the root hub of bus 1.
func gousbBusID(desc *gousb.DeviceDesc) string {
	if len(desc.Path) == 0 {
		return fmt.Sprintf("usb%d", desc.Bus)
	}
	ports := make([]string, 0, len(desc.Path))
	for _, p := range desc.Path {
		ports = append(ports, strconv.Itoa(p))
	}
	return fmt.Sprintf("%d-%s", desc.Bus, strings.Join(ports, "."))
}
