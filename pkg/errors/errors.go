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

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
)

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s-%d] %s - %s", e.Domain, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
}

// New creates a AppError for a registered code. Unknown codes fall back
// to a generic internal error so callers never get a nil.
func New(code ErrorCode, details string) *AppError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &AppError{
			Code:       code,
			Domain:     DomainMisc,
			Message:    "Unknown error",
			Details:    details,
			HTTPStatus: http.StatusInternalServerError,
			Metadata:   make(map[string]string),
		}
	}

	return &AppError{
		Code:       code,
		Domain:     def.domain,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
		Metadata:   make(map[string]string),
	}
}

// Wrap attaches a code to an underlying error. A wrapped AppError keeps
// its metadata so context accumulates as the error travels upward.
func Wrap(err error, code ErrorCode) *AppError {
	if err == nil {
		return New(code, "")
	}

	re := New(code, err.Error())
	var inner *AppError
	if stderrors.As(err, &inner) {
		for k, v := range inner.Metadata {
			re.Metadata[k] = v
		}
		re.Details = inner.Message
		if inner.Details != "" {
			re.Details += ": " + inner.Details
		}
	}
	return re
}

// WithMetadata adds a key/value to the error and returns it for chaining.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// NewCommandError builds a CommandExecution error carrying the program,
// exit code and any captured stderr.
func NewCommandError(command string, exitCode int, stderr string) *AppError {
	err := New(CommandExecution, stderr).
		WithMetadata("command", command).
		WithMetadata("exit_code", strconv.Itoa(exitCode))
	if stderr != "" {
		err.WithMetadata("stderr", stderr)
	}
	return err
}

// IsAppError reports whether err is or wraps a AppError.
func IsAppError(err error) bool {
	var re *AppError
	return stderrors.As(err, &re)
}

// GetCode returns the code of an AppError, or 0 for foreign errors.
func GetCode(err error) ErrorCode {
	var re *AppError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return 0
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// GetHTTPStatus maps an error to the HTTP status registered for its code.
func GetHTTPStatus(err error) int {
	var re *AppError
	if stderrors.As(err, &re) && re.HTTPStatus != 0 {
		return re.HTTPStatus
	}
	return http.StatusInternalServerError
}
