// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package hotplug

import (
	"context"
	"runtime"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

// Source kinds accepted by NewSource.
const (
	SourceAuto    = "auto"
	SourceNetlink = "netlink"
	SourcePoll    = "poll"
)

// RawEvent is a notification as delivered by a Source, before the device
// identity has been parsed out of InstancePath.
type RawEvent struct {
	Kind         types.EventKind
	InstancePath string
	BusID        string
	Name         string
	Description  string
}

// Subscription is one live watcher. Close stops delivery and returns only
// after the source goroutine backing it has exited.
type Subscription interface {
	Close() error
}

// Source opens watchers for one event direction on the USB bus. deliver is
// invoked on a source owned goroutine and must not block.
type Source interface {
	Name() string
	Subscribe(ctx context.Context, kind types.EventKind, deliver func(RawEvent)) (Subscription, error)
}

// Enumerator lists the USB devices attached right now.
type Enumerator interface {
	Devices() ([]types.Device, error)
}

// NewSource builds the configured hotplug source. "auto" picks netlink on
// Linux and polling elsewhere.
func NewSource(
	l logger.Logger,
	kind string,
	enumerator Enumerator,
	pollInterval time.Duration,
) (Source, error) {
	if kind == "" || kind == SourceAuto {
		kind = SourcePoll
		if runtime.GOOS == "linux" {
			kind = SourceNetlink
		}
	}

	switch kind {
	case SourceNetlink:
		return newNetlinkSource(l)
	case SourcePoll:
		return NewPollSource(l, enumerator, pollInterval), nil
	default:
		return nil, errors.New(errors.USBSourceUnavailable, "unknown source").
			WithMetadata("source", kind)
	}
}
