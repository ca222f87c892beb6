// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/autostart"
	"github.com/stratastor/usbtrigger/pkg/usb/dispatch"
	"github.com/stratastor/usbtrigger/pkg/usb/hotplug"
	"github.com/stratastor/usbtrigger/pkg/usb/rules"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMonitor struct {
	mu      sync.Mutex
	running bool
	events  chan types.Event
	devices []types.Device
}

func (m *stubMonitor) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

func (m *stubMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *stubMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *stubMonitor) Events() <-chan types.Event         { return m.events }
func (m *stubMonitor) Enumerate() ([]types.Device, error) { return m.devices, nil }
func (m *stubMonitor) GetStats() hotplug.Stats {
	return hotplug.Stats{Running: m.IsRunning(), Source: "stub"}
}

type stubExecutor struct {
	mu   sync.Mutex
	last types.Command
}

func (e *stubExecutor) Execute(_ context.Context, cmd types.Command) (*types.Result, error) {
	e.mu.Lock()
	e.last = cmd
	e.mu.Unlock()
	return &types.Result{Success: true, PID: 42}, nil
}

func (e *stubExecutor) Test(ctx context.Context, cmd types.Command) (*types.Result, error) {
	return e.Execute(ctx, cmd.ForTest())
}

func (e *stubExecutor) SetLogExecution(bool) {}

type failingBackend struct {
	enabled bool
	calls   int
}

func (b *failingBackend) Name() string { return "failing" }

func (b *failingBackend) Enable(string, bool) error {
	b.calls++
	return fmt.Errorf("autostart directory is read-only")
}

func (b *failingBackend) Disable() error {
	b.calls++
	b.enabled = false
	return nil
}

func (b *failingBackend) IsEnabled() bool      { return b.enabled }
func (b *failingBackend) Path() (string, bool) { return "", false }

type testEnv struct {
	router   *gin.Engine
	monitor  *stubMonitor
	store    *rules.Store
	executor *stubExecutor
	xdg      *autostart.XDG
}

func setupAPITest(t *testing.T) *testEnv {
	t.Helper()
	return setupAPITestWith(t, nil)
}

// setupAPITestWith uses backend for autostart, or an XDG backend in a temp
// dir when backend is nil.
func setupAPITestWith(t *testing.T, backend autostart.Backend) *testEnv {
	t.Helper()
	l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "test.usb.api")
	require.NoError(t, err)

	store := rules.NewStore(l, rules.NewFilePersistence(l, filepath.Join(t.TempDir(), "bindings.yml")))
	mon := &stubMonitor{events: make(chan types.Event)}
	exec := &stubExecutor{}
	d := dispatch.New(l, mon, store, exec, nil, dispatch.Config{})
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	xdg := autostart.NewXDG(l, t.TempDir())
	if backend == nil {
		backend = xdg
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	NewHandler(l, d, store, backend).RegisterRoutes(router.Group(constants.APIBase))

	return &testEnv{router: router, monitor: mon, store: store, executor: exec, xdg: xdg}
}

func makeRequest(
	t *testing.T,
	router *gin.Engine,
	method, path string,
	payload interface{},
) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseAPIResponse(t *testing.T, w *httptest.ResponseRecorder) *APIResponse {
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func resultMap(t *testing.T, resp *APIResponse) map[string]interface{} {
	m, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "result should be an object")
	return m
}

func TestBindingsCRUD(t *testing.T) {
	env := setupAPITest(t)

	w := makeRequest(t, env.router, http.MethodPost, constants.APIBindings, types.Binding{
		Device:   types.Device{VendorID: "046d", ProductID: "c52b", DisplayName: "Receiver"},
		Enabled:  true,
		OnArrive: &types.Command{Program: "echo", Arguments: "hi"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := resultMap(t, parseAPIResponse(t, w))["binding"].(map[string]interface{})
	id := created["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "046D", created["device"].(map[string]interface{})["vendorId"])

	w = makeRequest(t, env.router, http.MethodGet, constants.APIBindings, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, resultMap(t, parseAPIResponse(t, w))["count"])

	w = makeRequest(t, env.router, http.MethodPost, constants.APIBindings+"/"+id+"/disable", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resultMap(t, parseAPIResponse(t, w))["enabled"])

	w = makeRequest(t, env.router, http.MethodPut, constants.APIBindings+"/"+id, types.Binding{
		Device:  types.Device{VendorID: "046D", ProductID: "C52B"},
		Enabled: true,
		Notes:   "updated",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(t, env.router, http.MethodGet, constants.APIBindings+"/"+id, nil)
	assert.Equal(t, "updated", resultMap(t, parseAPIResponse(t, w))["notes"])

	w = makeRequest(t, env.router, http.MethodDelete, constants.APIBindings+"/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(t, env.router, http.MethodGet, constants.APIBindings+"/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := parseAPIResponse(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RULES", resp.Error.Domain)
}

func TestAddBindingValidation(t *testing.T) {
	env := setupAPITest(t)

	w := makeRequest(t, env.router, http.MethodPost, constants.APIBindings, types.Binding{
		Device: types.Device{VendorID: "046D"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req, _ := http.NewRequest(http.MethodPost, constants.APIBindings, bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SERVER", parseAPIResponse(t, rec).Error.Domain)
}

func TestDevicesMarkBound(t *testing.T) {
	env := setupAPITest(t)
	_, err := env.store.Add(&types.Binding{
		Device:  types.Device{VendorID: "046D", ProductID: "C52B"},
		Enabled: true,
	})
	require.NoError(t, err)

	env.monitor.devices = []types.Device{
		{BusID: "1-2", VendorID: "046D", ProductID: "C52B"},
		{BusID: "1-3", VendorID: "0781", ProductID: "5581"},
	}

	w := makeRequest(t, env.router, http.MethodGet, constants.APIDevices, nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := resultMap(t, parseAPIResponse(t, w))
	assert.EqualValues(t, 2, result["count"])

	devices := result["devices"].([]interface{})
	assert.Equal(t, true, devices[0].(map[string]interface{})["bound"])
	assert.Equal(t, false, devices[1].(map[string]interface{})["bound"])
}

func TestMonitorStartStop(t *testing.T) {
	env := setupAPITest(t)

	w := makeRequest(t, env.router, http.MethodPost, constants.APIMonitor+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resultMap(t, parseAPIResponse(t, w))["monitoring"])

	w = makeRequest(t, env.router, http.MethodGet, constants.APIMonitor, nil)
	assert.Equal(t, true, resultMap(t, parseAPIResponse(t, w))["monitoring"])

	w = makeRequest(t, env.router, http.MethodPost, constants.APIMonitor+"/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resultMap(t, parseAPIResponse(t, w))["monitoring"])
}

func TestSettingsToggles(t *testing.T) {
	env := setupAPITest(t)

	off := false
	w := makeRequest(t, env.router, http.MethodPut, constants.APISettings, types.Toggles{
		ShowNotifications: &off,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resultMap(t, parseAPIResponse(t, w))["showNotifications"])
	assert.False(t, env.store.Snapshot().ShowNotifications)
}

func TestSettingsStartWithSessionSyncsAutostart(t *testing.T) {
	env := setupAPITest(t)

	on := true
	w := makeRequest(t, env.router, http.MethodPut, constants.APISettings, types.Toggles{
		StartWithSession: &on,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.xdg.IsEnabled())

	off := false
	w = makeRequest(t, env.router, http.MethodPut, constants.APISettings, types.Toggles{
		StartWithSession: &off,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.xdg.IsEnabled())
}

func TestSettingsStartWithSessionNotSavedWhenAutostartFails(t *testing.T) {
	backend := &failingBackend{}
	env := setupAPITestWith(t, backend)

	on := true
	w := makeRequest(t, env.router, http.MethodPut, constants.APISettings, types.Toggles{
		StartWithSession: &on,
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	assert.False(t, parseAPIResponse(t, w).Success)
	assert.Equal(t, 1, backend.calls)

	assert.False(t, env.store.Snapshot().StartWithSession)
	assert.False(t, backend.IsEnabled())
}

func TestSettingsRollsBackAutostartWhenSaveFails(t *testing.T) {
	env := setupAPITest(t)

	on := true
	bad := "not a language!"
	w := makeRequest(t, env.router, http.MethodPut, constants.APISettings, types.Toggles{
		StartWithSession: &on,
		Language:         &bad,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.False(t, env.store.Snapshot().StartWithSession)
	assert.False(t, env.xdg.IsEnabled())
}

func TestCommandsAndActivity(t *testing.T) {
	env := setupAPITest(t)

	w := makeRequest(t, env.router, http.MethodPost, constants.APICommands+"/test", types.Command{
		Program:        "echo",
		Elevate:        true,
		TimeoutSeconds: 60,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.executor.last.WaitForExit)
	assert.False(t, env.executor.last.Elevate)
	assert.Equal(t, 10, env.executor.last.TimeoutSeconds)

	w = makeRequest(t, env.router, http.MethodPost, constants.APICommands+"/execute", types.Command{
		Program: "echo",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(t, env.router, http.MethodGet, constants.APIActivity, nil)
	result := resultMap(t, parseAPIResponse(t, w))
	assert.EqualValues(t, 1, result["count"])
	lines := result["lines"].([]interface{})
	assert.Contains(t, lines[0], "✓ Command executed: echo")

	w = makeRequest(t, env.router, http.MethodDelete, constants.APIActivity, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = makeRequest(t, env.router, http.MethodGet, constants.APIActivity, nil)
	assert.EqualValues(t, 0, resultMap(t, parseAPIResponse(t, w))["count"])
}

func TestAutostartRoutes(t *testing.T) {
	env := setupAPITest(t)

	exe := filepath.Join(t.TempDir(), "usbtrigger")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	minimized := true
	w := makeRequest(t, env.router, http.MethodPost, constants.APIAutostart+"/enable", AutostartRequest{
		Path:           exe,
		StartMinimized: &minimized,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := resultMap(t, parseAPIResponse(t, w))
	assert.Equal(t, true, result["enabled"])
	assert.Equal(t, exe, result["path"])

	w = makeRequest(t, env.router, http.MethodGet, constants.APIAutostart, nil)
	assert.Equal(t, "xdg", resultMap(t, parseAPIResponse(t, w))["backend"])

	w = makeRequest(t, env.router, http.MethodPost, constants.APIAutostart+"/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resultMap(t, parseAPIResponse(t, w))["enabled"])

	w = makeRequest(t, env.router, http.MethodPost, constants.APIAutostart+"/enable", AutostartRequest{
		Path: "/definitely/not/here",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
