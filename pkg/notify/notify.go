// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/command"
)

// Notifier delivers a short user facing message.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Config selects the notification sinks.
type Config struct {
	Desktop    bool
	WebhookURL string
	Timeout    time.Duration
}

// New builds the notifier described by cfg. The log sink is always
// present; a desktop sink that cannot be used is logged and skipped.
func New(l logger.Logger, runner *command.Runner, cfg Config) Notifier {
	sinks := []Notifier{NewLog(l)}

	if cfg.Desktop {
		d, err := NewDesktop(l, runner)
		if err != nil {
			l.Warn("desktop notifications disabled", "error", err)
		} else {
			sinks = append(sinks, d)
		}
	}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(l, cfg.WebhookURL, cfg.Timeout))
	}

	if len(sinks) == 1 {
		return sinks[0]
	}
	return NewMulti(sinks...)
}

// Log writes notifications to the logger.
type Log struct {
	logger logger.Logger
}

func NewLog(l logger.Logger) *Log {
	return &Log{logger: l}
}

func (n *Log) Notify(_ context.Context, title, body string) error {
	n.logger.Info("notification", "title", title, "body", body)
	return nil
}

// Multi fans a notification out to every sink. All sinks are tried even
// when one fails.
type Multi struct {
	sinks []Notifier
}

func NewMulti(sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Nop drops everything.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }
