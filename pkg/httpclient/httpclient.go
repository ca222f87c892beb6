// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package httpclient is the resty setup shared by the webhook notifier, the
// health checker and the CLI's API client.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stratastor/usbtrigger/internal/constants"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryCount    = 3
	defaultRetryWaitTime = 2 * time.Second
	defaultRetryMaxWait  = 10 * time.Second
)

// Client embeds resty.Client so callers can still reach resty directly.
type Client struct {
	*resty.Client
	config ClientConfig
}

// ClientConfig holds configuration values for the HTTP client
type ClientConfig struct {
	BaseURL          string
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	UserAgent        string
	Headers          map[string]string
	Debug            bool
}

// NewClientConfig returns defaults: 10s timeout, three retries.
func NewClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:          defaultTimeout,
		RetryCount:       defaultRetryCount,
		RetryWaitTime:    defaultRetryWaitTime,
		RetryMaxWaitTime: defaultRetryMaxWait,
		UserAgent:        constants.AppName + "/" + constants.Version,
		Headers:          make(map[string]string),
	}
}

// NewClient builds a resty client from cfg. Transport errors and 5xx
// responses are retried; 4xx are not.
func NewClient(cfg ClientConfig) *Client {
	r := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(max(cfg.RetryCount, 0)).
		SetHeaders(cfg.Headers).
		SetDebug(cfg.Debug).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})

	if cfg.RetryWaitTime > 0 {
		r.SetRetryWaitTime(cfg.RetryWaitTime)
	}
	if cfg.RetryMaxWaitTime > 0 {
		r.SetRetryMaxWaitTime(cfg.RetryMaxWaitTime)
	}
	if cfg.UserAgent != "" {
		r.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.BaseURL != "" {
		r.SetBaseURL(cfg.BaseURL)
	}
	if !cfg.Debug {
		r.SetLogger(NoOpLogger{})
	}

	return &Client{Client: r, config: cfg}
}

// Config returns the configuration the client was built with.
func (c *Client) Config() ClientConfig {
	return c.config
}

// NoOpLogger keeps resty quiet; callers log outcomes themselves.
type NoOpLogger struct{}

func (NoOpLogger) Errorf(string, ...interface{}) {}
func (NoOpLogger) Warnf(string, ...interface{})  {}
func (NoOpLogger) Debugf(string, ...interface{}) {}

// RequestConfig describes a single request.
type RequestConfig struct {
	Path        string
	Headers     map[string]string
	QueryParams map[string]string
	Body        interface{}
	Result      interface{}
	Error       interface{}
	Context     context.Context
}

// Request is a prepared resty request bound to a path.
type Request struct {
	request *resty.Request
	path    string
}

// NewRequest prepares a request from cfg.
func (c *Client) NewRequest(cfg RequestConfig) *Request {
	req := c.R().
		SetHeaders(cfg.Headers).
		SetQueryParams(cfg.QueryParams)

	if cfg.Body != nil {
		req.SetBody(cfg.Body)
	}
	if cfg.Result != nil {
		req.SetResult(cfg.Result)
	}
	if cfg.Error != nil {
		req.SetError(cfg.Error)
	}
	if cfg.Context != nil {
		req.SetContext(cfg.Context)
	}

	return &Request{request: req, path: cfg.Path}
}

// Execute sends the request with method.
func (r *Request) Execute(method string) (*resty.Response, error) {
	return r.request.Execute(method, r.path)
}

func (r *Request) Get() (*resty.Response, error)    { return r.Execute(http.MethodGet) }
func (r *Request) Post() (*resty.Response, error)   { return r.Execute(http.MethodPost) }
func (r *Request) Put() (*resty.Response, error)    { return r.Execute(http.MethodPut) }
func (r *Request) Delete() (*resty.Response, error) { return r.Execute(http.MethodDelete) }
