// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/httpclient"
)

// Report is what /health answers with.
type Report struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Monitoring bool      `json:"monitoring"`
	Source     string    `json:"source,omitempty"`
	Bindings   int       `json:"bindings"`
	InFlight   int64     `json:"inFlight"`
	Uptime     string    `json:"uptime"`
	Time       time.Time `json:"time"`
}

type HealthChecker struct {
	Client   *httpclient.Client
	Logger   logger.Logger
	endpoint string
}

func NewHealthChecker(cfg *config.Config) (*HealthChecker, error) {
	l, err := logger.NewTag(config.NewLoggerConfig(cfg), "health")
	if err != nil {
		return nil, err
	}
	return NewHealthCheckerForURL(l, fmt.Sprintf("http://localhost:%d", cfg.Server.Port), cfg.Health.Endpoint), nil
}

// NewHealthCheckerForURL targets an explicit base URL.
func NewHealthCheckerForURL(l logger.Logger, baseURL, endpoint string) *HealthChecker {
	clientConfig := httpclient.NewClientConfig()
	clientConfig.Timeout = 5 * time.Second
	clientConfig.RetryCount = 3
	clientConfig.RetryWaitTime = 2 * time.Second
	clientConfig.BaseURL = baseURL

	if endpoint == "" {
		endpoint = "/health"
	}
	return &HealthChecker{
		Client:   httpclient.NewClient(clientConfig),
		Logger:   l,
		endpoint: endpoint,
	}
}

// CheckHealth queries the running daemon.
func (hc *HealthChecker) CheckHealth(ctx context.Context) (*Report, error) {
	var report Report
	resp, err := hc.Client.NewRequest(httpclient.RequestConfig{
		Path:    hc.endpoint,
		Result:  &report,
		Context: ctx,
	}).Get()
	if err != nil {
		return nil, errors.Wrap(err, errors.HealthCheckClient).WithMetadata("endpoint", hc.endpoint)
	}

	if !resp.IsSuccess() {
		return nil, errors.New(errors.HealthCheckFailed,
			fmt.Sprintf("status %s: %s", resp.Status(), resp.String()))
	}
	hc.Logger.Debug("health check passed", "status", report.Status, "monitoring", report.Monitoring)
	return &report, nil
}
