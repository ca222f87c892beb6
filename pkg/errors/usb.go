// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"maps"
	"net/http"
)

const (
	// USB Monitoring (3000-3099)
	USBSubscribeFailed ErrorCode = 3000 + iota // Hotplug source could not be opened
	USBParseFailed                             // Raw device path could not be parsed
	USBEnumerateFailed                         // Device enumeration failed
	USBMonitorNotRunning                       // Operation requires a running monitor
	USBSourceUnavailable                       // Configured source not supported here
)

const (
	// Rules and bindings (3100-3199)
	RulesBindingNotFound ErrorCode = 3100 + iota
	RulesBindingExists
	RulesBindingInvalid
	RulesPersistFailed
	RulesLoadFailed
	RulesSettingsInvalid
)

const (
	// Notifications (3200-3299)
	NotifyFailed ErrorCode = 3200 + iota
	NotifyUnavailable
)

const (
	// Autostart registration (3300-3399)
	AutostartEnableFailed ErrorCode = 3300 + iota
	AutostartDisableFailed
	AutostartQueryFailed
	AutostartUnsupported
)

func init() {
	usbErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		USBSubscribeFailed: {
			"Failed to subscribe to USB hotplug notifications",
			DomainUSB,
			http.StatusInternalServerError,
		},
		USBParseFailed: {"Failed to parse USB device path", DomainUSB, http.StatusBadRequest},
		USBEnumerateFailed: {
			"Failed to enumerate USB devices",
			DomainUSB,
			http.StatusInternalServerError,
		},
		USBMonitorNotRunning: {"USB monitor is not running", DomainUSB, http.StatusConflict},
		USBSourceUnavailable: {
			"USB hotplug source unavailable on this platform",
			DomainUSB,
			http.StatusNotImplemented,
		},

		RulesBindingNotFound: {"Device binding not found", DomainRules, http.StatusNotFound},
		RulesBindingExists:   {"Device binding already exists", DomainRules, http.StatusConflict},
		RulesBindingInvalid:  {"Invalid device binding", DomainRules, http.StatusBadRequest},
		RulesPersistFailed: {
			"Failed to persist settings",
			DomainRules,
			http.StatusInternalServerError,
		},
		RulesLoadFailed: {"Failed to load settings", DomainRules, http.StatusInternalServerError},
		RulesSettingsInvalid: {"Invalid settings value", DomainRules, http.StatusBadRequest},

		NotifyFailed: {"Notification delivery failed", DomainNotify, http.StatusBadGateway},
		NotifyUnavailable: {
			"Notification backend unavailable",
			DomainNotify,
			http.StatusServiceUnavailable,
		},

		AutostartEnableFailed: {
			"Failed to enable autostart",
			DomainAutostart,
			http.StatusInternalServerError,
		},
		AutostartDisableFailed: {
			"Failed to disable autostart",
			DomainAutostart,
			http.StatusInternalServerError,
		},
		AutostartQueryFailed: {
			"Failed to query autostart state",
			DomainAutostart,
			http.StatusInternalServerError,
		},
		AutostartUnsupported: {
			"Autostart backend not supported",
			DomainAutostart,
			http.StatusBadRequest,
		},
	}

	maps.Copy(errorDefinitions, usbErrorDefinitions)
}
