// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// EventKind is the direction of a hotplug event.
type EventKind string

const (
	EventArrived EventKind = "arrived"
	EventRemoved EventKind = "removed"
)

// Event is a normalized hotplug notification.
type Event struct {
	Kind      EventKind `json:"kind"`
	Device    Device    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityEntry is one line of the dispatcher's activity log.
type ActivityEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String renders the entry as "[15:04:05] message".
func (a ActivityEntry) String() string {
	return "[" + a.Time.Format("15:04:05") + "] " + a.Message
}

// ConnectedDevice is a currently attached device plus the binding, if any,
// that would fire for it.
type ConnectedDevice struct {
	Device    Device `json:"device"`
	Bound     bool   `json:"bound"`
	BindingID string `json:"bindingId,omitempty"`
}
