// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package constants

// Build-time variables set via ldflags
var (
	Version   = "v0.0.1-dev" // Set via -X flag during build
	CommitSHA = "unknown"    // Set via -X flag during build
	BuildTime = "unknown"    // Set via -X flag during build
)

const (
	AppName        = "usbtrigger"
	AppDisplayName = "USB Trigger"
	AppVersion     = "v0.0.1"

	// config
	ConfigFileName   = "usbtrigger.yml"
	BindingsFileName = "bindings.yml"
	PIDFileName      = "usbtrigger.pid"
	EnvPrefix        = "USBTRIGGER"
	EnvConfigPath    = "USBTRIGGER_CONFIG"

	// MinimizedFlag is appended to autostart entries when the app should
	// come up without showing itself.
	MinimizedFlag = "--minimized"

	// routes
	APIVersion   = "v1"
	APIBase      = "/api/" + APIVersion + "/usbtrigger"
	APIDevices   = APIBase + "/devices"
	APIMonitor   = APIBase + "/monitor"
	APIBindings  = APIBase + "/bindings"
	APISettings  = APIBase + "/settings"
	APIActivity  = APIBase + "/activity"
	APICommands  = APIBase + "/commands"
	APIAutostart = APIBase + "/autostart"
)
