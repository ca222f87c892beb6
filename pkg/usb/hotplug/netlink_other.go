// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package hotplug

import (
	"runtime"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
)

// newNetlinkSource is unavailable outside Linux; use the poll source.
func newNetlinkSource(_ logger.Logger) (Source, error) {
	return nil, errors.New(errors.USBSourceUnavailable, "netlink requires linux").
		WithMetadata("os", runtime.GOOS)
}
