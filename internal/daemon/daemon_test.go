// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratastor/usbtrigger/config"
	"github.com/stratastor/usbtrigger/pkg/usb/rules"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, _ := config.Load(filepath.Join(dir, "missing.yml"))
	require.NotNil(t, cfg)
	cfg.Monitor.Source = "poll"
	cfg.Rules.Path = filepath.Join(dir, "bindings.yml")
	cfg.Notifications.Desktop = false
	cfg.Environment = "test"
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	assert.NotNil(t, d.store)
	assert.NotNil(t, d.dispatcher)
	assert.NotNil(t, d.handler)
	assert.Empty(t, d.store.List())

	rep := d.Health()
	assert.Equal(t, "healthy", rep.Status)
	assert.False(t, rep.Monitoring)
	assert.Zero(t, rep.Bindings)

	require.NoError(t, d.Close(context.Background()))
}

func TestNewRejectsUnknownSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Monitor.Source = "carrier-pigeon"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestShouldAutoStart(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	require.NoError(t, err)
	defer d.Close(context.Background())

	cfg.Monitor.AutoStart = "never"
	assert.False(t, d.shouldAutoStart())

	cfg.Monitor.AutoStart = "Always"
	assert.True(t, d.shouldAutoStart())

	cfg.Monitor.AutoStart = "settings"
	assert.True(t, d.shouldAutoStart(), "fresh settings enable auto start")

	off := false
	_, err = d.store.UpdateToggles(types.Toggles{AutoStartMonitoring: &off})
	require.NoError(t, err)
	assert.False(t, d.shouldAutoStart())
}

func TestReloadPicksUpExternalEdits(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	require.NoError(t, err)
	defer d.Close(context.Background())

	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	other := rules.NewStore(l, rules.NewFilePersistence(l, cfg.Rules.Path))
	_, err = other.Add(&types.Binding{
		Device:   types.Device{VendorID: "046D", ProductID: "C52B"},
		OnArrive: &types.Command{Program: "echo", Arguments: "hi"},
		Enabled:  true,
	})
	require.NoError(t, err)

	assert.Empty(t, d.store.List())
	d.Reload()
	assert.Len(t, d.store.List(), 1)
	assert.Equal(t, 1, d.Health().Bindings)
}

func TestCloseHonoursDeadline(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, d.dispatcher.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, d.Close(ctx))
}
