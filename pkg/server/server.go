// Copyright 2024 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// The engine is gin.New() with Recovery and our logging middleware, served
// by an http.Server so shutdown is driven by the lifecycle context rather
// than gin.Run().

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/health"
	"github.com/stratastor/usbtrigger/pkg/usb/api"
)

var (
	mu  sync.Mutex
	srv *http.Server
)

// Options wires the server to the rest of the daemon.
type Options struct {
	Port        int
	Environment string
	// Handler serves the USB routes under the API base path.
	Handler *api.Handler
	// Health builds the /health report.
	Health func() health.Report
}

// NewEngine builds the gin engine with every route mounted.
func NewEngine(l logger.Logger, opts Options) *gin.Engine {
	switch opts.Environment {
	case "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(l))

	engine.GET("/health", func(c *gin.Context) {
		if opts.Health == nil {
			c.JSON(http.StatusOK, health.Report{Status: "healthy", Version: constants.Version, Time: time.Now()})
			return
		}
		c.JSON(http.StatusOK, opts.Health())
	})

	if opts.Handler != nil {
		opts.Handler.RegisterRoutes(engine.Group(constants.APIBase))
	}
	return engine
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, l logger.Logger, opts Options) error {
	engine := NewEngine(l, opts)

	mu.Lock()
	srv = &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", opts.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s := srv
	mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		l.Info("API server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return errors.Wrap(err, errors.ServerStart).WithMetadata("addr", s.Addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return Shutdown(shutdownCtx)
	}
}

func Shutdown(ctx context.Context) error {
	mu.Lock()
	s := srv
	srv = nil
	mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.ServerShutdown)
	}
	return nil
}
