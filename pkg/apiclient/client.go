// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package apiclient talks to a running daemon over its REST API.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/autostart"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/httpclient"
	"github.com/stratastor/usbtrigger/pkg/usb/dispatch"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Domain  string `json:"domain"`
		Message string `json:"message"`
		Details string `json:"details,omitempty"`
	} `json:"error,omitempty"`
}

// Client is a typed wrapper over the daemon API.
type Client struct {
	http *httpclient.Client
}

// New targets the daemon listening on baseURL.
func New(baseURL string) *Client {
	cfg := httpclient.NewClientConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 30 * time.Second
	cfg.RetryCount = 0
	cfg.Headers["Content-Type"] = "application/json"
	return &Client{http: httpclient.NewClient(cfg)}
}

// NewLocal targets the daemon on localhost:port.
func NewLocal(port int) *Client {
	return New(fmt.Sprintf("http://localhost:%d", port))
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var env envelope
	resp, err := c.http.NewRequest(httpclient.RequestConfig{
		Path:    path,
		Body:    body,
		Result:  &env,
		Error:   &env,
		Context: ctx,
	}).Execute(method)
	if err != nil {
		return errors.Wrap(err, errors.ServerResponseError).WithMetadata("path", path)
	}

	if !env.Success {
		if env.Error != nil {
			msg := fmt.Sprintf("[%s-%d] %s", env.Error.Domain, env.Error.Code, env.Error.Message)
			if env.Error.Details != "" {
				msg += " - " + env.Error.Details
			}
			return errors.New(errors.ServerResponseError, msg).
				WithMetadata("status", resp.Status())
		}
		return errors.New(errors.ServerResponseError, "unexpected response: "+resp.Status())
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return errors.Wrap(err, errors.ServerResponseError).WithMetadata("path", path)
		}
	}
	return nil
}

func (c *Client) Devices(ctx context.Context) ([]types.ConnectedDevice, error) {
	var out struct {
		Devices []types.ConnectedDevice `json:"devices"`
	}
	err := c.do(ctx, http.MethodGet, constants.APIDevices, nil, &out)
	return out.Devices, err
}

func (c *Client) MonitorStatus(ctx context.Context) (*dispatch.Status, error) {
	var out dispatch.Status
	err := c.do(ctx, http.MethodGet, constants.APIMonitor, nil, &out)
	return &out, err
}

func (c *Client) StartMonitor(ctx context.Context) (*dispatch.Status, error) {
	var out dispatch.Status
	err := c.do(ctx, http.MethodPost, constants.APIMonitor+"/start", nil, &out)
	return &out, err
}

func (c *Client) StopMonitor(ctx context.Context) (*dispatch.Status, error) {
	var out dispatch.Status
	err := c.do(ctx, http.MethodPost, constants.APIMonitor+"/stop", nil, &out)
	return &out, err
}

func (c *Client) Bindings(ctx context.Context) ([]*types.Binding, error) {
	var out struct {
		Bindings []*types.Binding `json:"bindings"`
	}
	err := c.do(ctx, http.MethodGet, constants.APIBindings, nil, &out)
	return out.Bindings, err
}

// AddBinding returns the stored binding and the ids it overlaps.
func (c *Client) AddBinding(ctx context.Context, b *types.Binding) (*types.Binding, []string, error) {
	var out struct {
		Binding  *types.Binding `json:"binding"`
		Overlaps []string       `json:"overlaps"`
	}
	err := c.do(ctx, http.MethodPost, constants.APIBindings, b, &out)
	return out.Binding, out.Overlaps, err
}

func (c *Client) RemoveBinding(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, constants.APIBindings+"/"+id, nil, nil)
}

func (c *Client) SetBindingEnabled(ctx context.Context, id string, enabled bool) (*types.Binding, error) {
	action := "/disable"
	if enabled {
		action = "/enable"
	}
	var out types.Binding
	err := c.do(ctx, http.MethodPost, constants.APIBindings+"/"+id+action, nil, &out)
	return &out, err
}

func (c *Client) Activity(ctx context.Context) ([]types.ActivityEntry, error) {
	var out struct {
		Entries []types.ActivityEntry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, constants.APIActivity, nil, &out)
	return out.Entries, err
}

func (c *Client) TestCommand(ctx context.Context, cmd types.Command) (*types.Result, error) {
	var out types.Result
	err := c.do(ctx, http.MethodPost, constants.APICommands+"/test", cmd, &out)
	return &out, err
}

func (c *Client) Autostart(ctx context.Context) (*autostart.Status, error) {
	var out autostart.Status
	err := c.do(ctx, http.MethodGet, constants.APIAutostart, nil, &out)
	return &out, err
}

func (c *Client) EnableAutostart(ctx context.Context, path string, minimized bool) (*autostart.Status, error) {
	var out autostart.Status
	body := map[string]interface{}{"path": path, "startMinimized": minimized}
	err := c.do(ctx, http.MethodPost, constants.APIAutostart+"/enable", body, &out)
	return &out, err
}

func (c *Client) DisableAutostart(ctx context.Context) (*autostart.Status, error) {
	var out autostart.Status
	err := c.do(ctx, http.MethodPost, constants.APIAutostart+"/disable", nil, &out)
	return &out, err
}
