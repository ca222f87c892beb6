// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDeviceName is used when neither the event nor the device
// descriptors provide a human readable name.
const DefaultDeviceName = "unknown USB device"

// Device is the canonical identity of one attached USB device instance.
// Values are produced fresh per event or enumeration and must not be
// mutated after they are handed out.
type Device struct {
	// BusID is the opaque platform device path (sysfs devpath on Linux).
	// Unique per attachment but not stable across sessions.
	BusID        string    `json:"busId,omitempty" yaml:"busId,omitempty"`
	VendorID     string    `json:"vendorId"        yaml:"vendorId"`
	ProductID    string    `json:"productId"       yaml:"productId"`
	SerialNumber string    `json:"serialNumber,omitempty" yaml:"serialNumber,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"  yaml:"displayName,omitempty"`
	Description  string    `json:"description,omitempty"  yaml:"description,omitempty"`
	Connected    bool      `json:"connected"       yaml:"-"`
	LastSeen     time.Time `json:"lastSeen,omitzero" yaml:"-"`
}

// NormalizeID uppercases a vendor or product id and left pads it to four
// hex digits. Anything that is not one to four hex digits is returned
// uppercased and trimmed so comparisons still behave.
func NormalizeID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	id = strings.TrimPrefix(id, "0X")
	if id == "" || len(id) > 4 {
		return id
	}
	for _, r := range id {
		if !isHex(r) {
			return id
		}
	}
	return strings.Repeat("0", 4-len(id)) + id
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
}

// Normalize returns a copy with vendor and product ids normalized.
func (d Device) Normalize() Device {
	d.VendorID = NormalizeID(d.VendorID)
	d.ProductID = NormalizeID(d.ProductID)
	d.SerialNumber = strings.TrimSpace(d.SerialNumber)
	return d
}

// Name returns the display name, falling back to the description and then
// to a generic label.
func (d Device) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	if d.Description != "" {
		return d.Description
	}
	return DefaultDeviceName
}

// Key identifies the device model, e.g. "046D:C52B".
func (d Device) Key() string {
	return fmt.Sprintf("%s:%s", NormalizeID(d.VendorID), NormalizeID(d.ProductID))
}

func (d Device) String() string {
	s := fmt.Sprintf("%s (%s)", d.Name(), d.Key())
	if d.SerialNumber != "" {
		s += " serial=" + d.SerialNumber
	}
	return s
}

// IsSameDevice compares two identities, most specific identifier first:
//  1. both bus ids present: bus ids decide
//  2. both serials present: vendor, product and serial must all match
//  3. otherwise vendor and product decide
//
// All comparisons ignore case.
func IsSameDevice(a, b Device) bool {
	if a.BusID != "" && b.BusID != "" {
		return strings.EqualFold(a.BusID, b.BusID)
	}

	sameModel := strings.EqualFold(NormalizeID(a.VendorID), NormalizeID(b.VendorID)) &&
		strings.EqualFold(NormalizeID(a.ProductID), NormalizeID(b.ProductID))

	if a.SerialNumber != "" && b.SerialNumber != "" {
		return sameModel && strings.EqualFold(a.SerialNumber, b.SerialNumber)
	}

	return sameModel
}

// Matches reports whether d identifies the same device as other.
func (d Device) Matches(other Device) bool {
	return IsSameDevice(d, other)
}
