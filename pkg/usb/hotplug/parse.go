// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

const (
	instancePrefix    = `USB\`
	instanceSeparator = `\`
	instanceJoin      = "&"
)

var vidPidPattern = regexp.MustCompile(`(?i)VID_([0-9A-F]{4})&PID_([0-9A-F]{4})`)

// ParseInstancePath extracts vendor, product and serial from a device
// instance path such as `USB\VID_046D&PID_C52B\5&2B1F0A&0&2`.
//
// The third segment is taken as the serial number only if it has no '&'
// and is longer than one character; generated instance suffixes look like
// "5&2B1F0A&0&2" and are skipped.
func ParseInstancePath(instancePath string) (types.Device, error) {
	p := strings.TrimSpace(instancePath)
	if len(p) < len(instancePrefix) || !strings.EqualFold(p[:len(instancePrefix)], instancePrefix) {
		return types.Device{}, errors.New(errors.USBParseFailed, "missing USB prefix").
			WithMetadata("path", p)
	}

	m := vidPidPattern.FindStringSubmatch(p)
	if m == nil {
		return types.Device{}, errors.New(errors.USBParseFailed, "no VID/PID in path").
			WithMetadata("path", p)
	}

	dev := types.Device{
		VendorID:  strings.ToUpper(m[1]),
		ProductID: strings.ToUpper(m[2]),
	}

	parts := strings.Split(p, instanceSeparator)
	if len(parts) > 2 {
		candidate := parts[2]
		if !strings.Contains(candidate, instanceJoin) && len(candidate) > 1 {
			dev.SerialNumber = candidate
		}
	}

	return dev, nil
}

// InstancePath renders vendor, product and a trailing segment in the form
// ParseInstancePath accepts.
func InstancePath(vendorID, productID, suffix string) string {
	p := fmt.Sprintf("%sVID_%s&PID_%s", instancePrefix,
		types.NormalizeID(vendorID), types.NormalizeID(productID))
	if suffix != "" {
		p += instanceSeparator + strings.ReplaceAll(suffix, instanceSeparator, "_")
	}
	return p
}

// instancePathFor renders the path for an enumerated device. Devices
// without a serial get a bus suffix that contains '&' so the parser never
// mistakes it for a serial.
func instancePathFor(d types.Device) string {
	suffix := d.SerialNumber
	if suffix == "" || strings.Contains(suffix, instanceJoin) {
		suffix = "0" + instanceJoin + d.BusID
	}
	return InstancePath(d.VendorID, d.ProductID, suffix)
}

// rawFromUEvent converts udev properties of a usb_device uevent into a raw
// event. ok is false for events that are not whole devices (interfaces,
// endpoints) and should be ignored rather than counted as parse failures.
func rawFromUEvent(kind types.EventKind, kobj string, env map[string]string) (RawEvent, bool) {
	if env["DEVTYPE"] != "usb_device" {
		return RawEvent{}, false
	}

	vendor, product := env["ID_VENDOR_ID"], env["ID_MODEL_ID"]
	if vendor == "" || product == "" {
		// PRODUCT is "vid/pid/bcdDevice" in lowercase hex without padding
		if fields := strings.Split(env["PRODUCT"], "/"); len(fields) >= 2 {
			vendor, product = fields[0], fields[1]
		}
	}

	// The sysfs leaf ("1-2.4") is what enumeration reports as bus id too.
	busID := env["DEVPATH"]
	if busID == "" {
		busID = kobj
	}
	if busID != "" {
		busID = path.Base(busID)
	}

	raw := RawEvent{
		Kind:        kind,
		BusID:       busID,
		Name:        firstNonEmpty(env["ID_MODEL_FROM_DATABASE"], underscoreToSpace(env["ID_MODEL"])),
		Description: firstNonEmpty(env["ID_VENDOR_FROM_DATABASE"], underscoreToSpace(env["ID_VENDOR"])),
	}

	if vendor == "" || product == "" {
		// Left unparsable on purpose; the monitor logs and drops it.
		raw.InstancePath = instancePrefix + busID
		return raw, true
	}

	suffix := env["ID_SERIAL_SHORT"]
	if suffix == "" || strings.Contains(suffix, instanceJoin) {
		suffix = env["BUSNUM"] + instanceJoin + env["DEVNUM"]
	}
	raw.InstancePath = InstancePath(vendor, product, suffix)
	return raw, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func underscoreToSpace(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
}
