// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package hotplug

import (
	"context"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"golang.org/x/sys/unix"
)

// netlinkReadTimeout bounds each blocking receive so the reader can notice
// Close. It is also the worst case latency of Close.
var netlinkReadTimeout = 250 * time.Millisecond

// NetlinkSource receives udev events straight from the kernel netlink
// socket. Each subscription owns its own socket filtered to the usb
// subsystem and a single action.
type NetlinkSource struct {
	logger logger.Logger
}

func newNetlinkSource(l logger.Logger) (Source, error) {
	return &NetlinkSource{logger: l}, nil
}

func (s *NetlinkSource) Name() string { return SourceNetlink }

func netlinkAction(kind types.EventKind) (string, error) {
	switch kind {
	case types.EventArrived:
		return "add", nil
	case types.EventRemoved:
		return "remove", nil
	default:
		return "", errors.New(errors.USBSubscribeFailed, "unsupported event kind").
			WithMetadata("kind", string(kind))
	}
}

// Subscribe connects a netlink socket and pumps matching uevents into
// deliver until the subscription is closed.
func (s *NetlinkSource) Subscribe(
	_ context.Context,
	kind types.EventKind,
	deliver func(RawEvent),
) (Subscription, error) {
	action, err := netlinkAction(kind)
	if err != nil {
		return nil, err
	}

	matcher := &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{{
			Action: &action,
			Env:    map[string]string{"SUBSYSTEM": "^usb$"},
		}},
	}
	if err := matcher.Compile(); err != nil {
		return nil, errors.Wrap(err, errors.USBSubscribeFailed).
			WithMetadata("operation", "netlink_matcher")
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, errors.Wrap(err, errors.USBSubscribeFailed).
			WithMetadata("operation", "netlink_connect").
			WithMetadata("action", action)
	}

	tv := unix.NsecToTimeval(netlinkReadTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(conn.Fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, errors.USBSubscribeFailed).
			WithMetadata("operation", "netlink_rcvtimeo")
	}

	sub := &netlinkSubscription{
		logger:  s.logger,
		conn:    conn,
		kind:    kind,
		matcher: matcher,
		done:    make(chan struct{}),
	}

	sub.wg.Add(1)
	go sub.run(deliver)

	s.logger.Debug("netlink subscription opened", "action", action, "fd", conn.Fd)
	return sub, nil
}

// netlinkSubscription reads its socket on one goroutine. The socket is
// closed only after that goroutine has returned, so a recycled descriptor
// is never read by a stale reader.
type netlinkSubscription struct {
	logger  logger.Logger
	conn    *netlink.UEventConn
	kind    types.EventKind
	matcher netlink.Matcher
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func (s *netlinkSubscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *netlinkSubscription) run(deliver func(RawEvent)) {
	defer s.wg.Done()

	for !s.stopped() {
		uevent, err := s.conn.ReadUEvent()
		if err != nil {
			switch err {
			case unix.EAGAIN, unix.EINTR:
				continue
			case unix.ENOBUFS:
				s.logger.Warn("netlink receive buffer overrun, events lost", "kind", s.kind)
				continue
			}
			if s.stopped() {
				return
			}
			// Malformed messages are skipped; socket errors end the reader.
			if _, ok := err.(unix.Errno); !ok {
				s.logger.Debug("dropping unparsable uevent", "kind", s.kind, "error", err)
				continue
			}
			s.logger.Error("netlink reader stopped", "kind", s.kind, "error", err)
			return
		}

		if s.stopped() {
			return
		}
		if !s.matcher.Evaluate(*uevent) {
			continue
		}
		raw, ok := rawFromUEvent(s.kind, uevent.KObj, uevent.Env)
		if !ok {
			continue
		}
		deliver(raw)
	}
}

func (s *netlinkSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if cerr := s.conn.Close(); cerr != nil {
			err = errors.Wrap(cerr, errors.OperationFailed).
				WithMetadata("operation", "netlink_close")
		}
	})
	return err
}
