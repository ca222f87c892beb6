// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"strings"
	"time"
)

const (
	// DefaultCommandTimeout applies when TimeoutSeconds is zero or negative.
	DefaultCommandTimeout = 30 * time.Second
	// TestCommandTimeout caps dry runs.
	TestCommandTimeout = 10 * time.Second
)

// Command is an external program bound to a device event.
type Command struct {
	Program string `json:"program" yaml:"program"`
	// Arguments is a single shell-style string, split into argv before exec.
	Arguments        string `json:"arguments,omitempty"        yaml:"arguments,omitempty"`
	WorkingDirectory string `json:"workingDirectory,omitempty" yaml:"workingDirectory,omitempty"`
	Elevate          bool   `json:"elevate"                    yaml:"elevate"`
	WaitForExit      bool   `json:"waitForExit"                yaml:"waitForExit"`
	TimeoutSeconds   int    `json:"timeoutSeconds,omitempty"   yaml:"timeoutSeconds,omitempty"`
}

// IsValid reports whether the command has a program to run.
func (c *Command) IsValid() bool {
	return c != nil && strings.TrimSpace(c.Program) != ""
}

// Timeout returns the effective wait timeout.
func (c *Command) Timeout() time.Duration {
	if c == nil || c.TimeoutSeconds <= 0 {
		return DefaultCommandTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ForTest returns the dry run variant: always waited on, never elevated,
// and bounded by TestCommandTimeout.
func (c Command) ForTest() Command {
	c.WaitForExit = true
	c.Elevate = false
	if c.TimeoutSeconds <= 0 || time.Duration(c.TimeoutSeconds)*time.Second > TestCommandTimeout {
		c.TimeoutSeconds = int(TestCommandTimeout / time.Second)
	}
	return c
}

// Result is the outcome of running a Command. Stdout and Stderr are never
// captured and stay empty.
type Result struct {
	Success      bool          `json:"success"`
	ExitCode     int           `json:"exitCode"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
	PID          int           `json:"pid,omitempty"`
	TimedOut     bool          `json:"timedOut,omitempty"`
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
}

// Failure builds a failed result with exit code -1.
func Failure(msg string, elapsed time.Duration) *Result {
	return &Result{Success: false, ExitCode: -1, ErrorMessage: msg, Elapsed: elapsed}
}
