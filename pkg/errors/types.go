/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import "net/http"

const (
	DomainConfig    Domain = "CONFIG"
	DomainServer    Domain = "SERVER"
	DomainCommand   Domain = "CMD"
	DomainHealth    Domain = "HEALTH"
	DomainLifecycle Domain = "LIFECYCLE"
	DomainUSB       Domain = "USB"
	DomainRules     Domain = "RULES"
	DomainNotify    Domain = "NOTIFY"
	DomainAutostart Domain = "AUTOSTART"
	DomainMisc      Domain = "MISC"
)

// ErrorCode represents unique error identifiers
type ErrorCode int

// Domain represents the subsystem where the error originated
type Domain string

type AppError struct {
	Code       ErrorCode `json:"code"`
	Domain     Domain    `json:"domain"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`

	// Metadata carries contextual key/values for API responses and
	// structured logs (program, device, binding id and so on).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error code ranges:
// 1000-1099: Configuration errors
// 1100-1199: Server errors
// 1300-1399: Command execution
// 1400-1499: Health check
// 1500-1599: Lifecycle management
// 1900-1999: Miscellaneous
// 3000-3099: USB monitoring
// 3100-3199: Rules and bindings
// 3200-3299: Notifications
// 3300-3399: Autostart registration
const (
	// Configuration (1000-1099)
	ConfigNotFound        ErrorCode = 1000 + iota // Config file not found
	ConfigLoadFailed                              // Config file unreadable or malformed
	ConfigWriteFailed                             // Config file could not be written
	ConfigDirectoryError                          // Config directory could not be created
	ConfigMarshalFailed                           // Config could not be encoded
	ConfigUnmarshalFailed                         // Config could not be decoded
)

const (
	// Server (1100-1199)
	ServerStart             ErrorCode = 1100 + iota // Listener failed
	ServerShutdown                                  // Graceful shutdown failed
	ServerRequestValidation                         // Request body or params rejected
	ServerResponseError                             // Daemon answered with an error
)

const (
	// Command execution (1300-1399)
	CommandExecution    ErrorCode = 1300 + iota // Spawn or wait failed
	CommandTimeout                              // Killed after its timeout
	CommandPermission                           // Program not on the elevation allow list
	CommandInvalidInput                         // Empty program or unparsable arguments
	CommandWorkDir                              // Working directory missing or unusable
	CommandElevation                            // Elevation refused or unavailable
)

const (
	// Health (1400-1499)
	HealthCheckFailed ErrorCode = 1400 + iota // Daemon unhealthy or unreachable
	HealthCheckClient                         // Checker could not be built
)

const (
	// Lifecycle (1500-1599)
	LifecyclePID      ErrorCode = 1500 + iota // PID file unusable or instance running
	LifecycleShutdown                         // In-flight work outlived the deadline
	LifecycleSignal                           // No instance to signal or delivery failed
)

const (
	// Misc (1900-1999)
	OperationFailed ErrorCode = 1900 + iota
	InvalidState
)

var errorDefinitions = map[ErrorCode]struct {
	message    string
	domain     Domain
	httpStatus int
}{
	ConfigNotFound:        {"Configuration file not found", DomainConfig, http.StatusNotFound},
	ConfigLoadFailed:      {"Failed to load configuration", DomainConfig, http.StatusInternalServerError},
	ConfigWriteFailed:     {"Failed to write configuration", DomainConfig, http.StatusInternalServerError},
	ConfigDirectoryError:  {"Config directory error", DomainConfig, http.StatusInternalServerError},
	ConfigMarshalFailed:   {"Failed to serialize configuration", DomainConfig, http.StatusInternalServerError},
	ConfigUnmarshalFailed: {"Failed to deserialize configuration", DomainConfig, http.StatusInternalServerError},

	ServerStart:             {"Failed to start server", DomainServer, http.StatusInternalServerError},
	ServerShutdown:          {"Error during server shutdown", DomainServer, http.StatusInternalServerError},
	ServerRequestValidation: {"Request validation failed", DomainServer, http.StatusBadRequest},
	ServerResponseError:     {"Daemon returned an error", DomainServer, http.StatusBadGateway},

	CommandExecution:    {"Command execution failed", DomainCommand, http.StatusBadRequest},
	CommandTimeout:      {"Command execution timed out", DomainCommand, http.StatusGatewayTimeout},
	CommandPermission:   {"Program not allowed to elevate", DomainCommand, http.StatusForbidden},
	CommandInvalidInput: {"Invalid command input", DomainCommand, http.StatusBadRequest},
	CommandWorkDir:      {"Working directory error", DomainCommand, http.StatusBadRequest},
	CommandElevation:    {"Command elevation failed", DomainCommand, http.StatusForbidden},

	HealthCheckFailed: {"Health check failed", DomainHealth, http.StatusServiceUnavailable},
	HealthCheckClient: {"Health check client error", DomainHealth, http.StatusInternalServerError},

	LifecyclePID:      {"PID file operation failed", DomainLifecycle, http.StatusInternalServerError},
	LifecycleShutdown: {"Shutdown did not complete in time", DomainLifecycle, http.StatusInternalServerError},
	LifecycleSignal:   {"Signal delivery failed", DomainLifecycle, http.StatusInternalServerError},

	OperationFailed: {"Operation failed", DomainMisc, http.StatusInternalServerError},
	InvalidState:    {"Invalid state", DomainMisc, http.StatusConflict},
}
