// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package rules

import "github.com/stratastor/usbtrigger/pkg/usb/types"

// Resolve returns the first enabled binding, in insertion order, whose
// device template identifies dev. Later matches are never consulted.
func Resolve(dev types.Device, bindings []*types.Binding) *types.Binding {
	for _, b := range bindings {
		if b == nil || !b.Enabled {
			continue
		}
		if types.IsSameDevice(b.Device, dev) {
			return b
		}
	}
	return nil
}

// FindOverlaps returns the ids of bindings, other than candidate itself,
// whose templates would match the same device. Overlaps are reported but
// not rejected: first match wins at dispatch time.
func FindOverlaps(candidate *types.Binding, bindings []*types.Binding) []string {
	var ids []string
	for _, b := range bindings {
		if b == nil || b.ID == candidate.ID {
			continue
		}
		if types.IsSameDevice(b.Device, candidate.Device) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}
