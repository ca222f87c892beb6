// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds helpers shared by the client subcommands.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/pkg/apiclient"
)

// RequestTimeout bounds a single CLI round trip. Test commands may run for
// their full timeout, so this is generous.
const RequestTimeout = 2 * time.Minute

var (
	Header  = color.New(color.FgCyan, color.Bold)
	Name    = color.New(color.FgWhite, color.Bold)
	ID      = color.New(color.FgGreen)
	Muted   = color.New(color.FgHiBlack)
	Warning = color.New(color.FgYellow)
	Failure = color.New(color.FgRed, color.Bold)
	Success = color.New(color.FgGreen, color.Bold)
)

// Client targets the daemon on the configured port.
func Client() *apiclient.Client {
	return apiclient.NewLocal(config.GetConfig().Server.Port)
}

// Context returns a context bounded by RequestTimeout.
func Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), RequestTimeout)
}

// PrintJSON writes v indented to w.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YesNo renders a boolean the way status lines show it.
func YesNo(b bool) string {
	if b {
		return Success.Sprint("yes")
	}
	return Muted.Sprint("no")
}
