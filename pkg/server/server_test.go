// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthRouteAndRequestID(t *testing.T) {
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)

	engine := NewEngine(l, Options{
		Environment: "test",
		Health: func() health.Report {
			return health.Report{Status: "healthy", Monitoring: true}
		},
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.True(t, report.Monitoring)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/usbtrigger/devices", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
