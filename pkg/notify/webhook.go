// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/httpclient"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookPayload is the JSON body posted for every notification.
type WebhookPayload struct {
	App       string    `json:"app"`
	Host      string    `json:"host"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Webhook posts notifications as JSON to a fixed URL.
type Webhook struct {
	logger logger.Logger
	client *httpclient.Client
	url    string
	host   string
}

func NewWebhook(l logger.Logger, url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	cfg := httpclient.NewClientConfig()
	cfg.Timeout = timeout
	cfg.RetryCount = 1
	cfg.RetryWaitTime = 500 * time.Millisecond
	cfg.Headers["Content-Type"] = "application/json"

	host, _ := os.Hostname()
	return &Webhook{
		logger: l,
		client: httpclient.NewClient(cfg),
		url:    url,
		host:   host,
	}
}

func (w *Webhook) Notify(ctx context.Context, title, body string) error {
	payload := WebhookPayload{
		App:       constants.AppName,
		Host:      w.host,
		Title:     title,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}

	resp, err := w.client.NewRequest(httpclient.RequestConfig{
		Path:    w.url,
		Body:    payload,
		Context: ctx,
	}).Post()
	if err != nil {
		return errors.Wrap(err, errors.NotifyFailed).WithMetadata("url", w.url)
	}
	if resp.IsError() {
		return errors.New(errors.NotifyFailed, fmt.Sprintf("webhook returned %s", resp.Status())).
			WithMetadata("url", w.url)
	}

	w.logger.Debug("webhook notification delivered", "url", w.url, "status", resp.StatusCode())
	return nil
}
