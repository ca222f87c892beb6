// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/pkg/autostart"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"github.com/stratastor/usbtrigger/pkg/usb/dispatch"
	"github.com/stratastor/usbtrigger/pkg/usb/rules"
	"github.com/stratastor/usbtrigger/pkg/usb/types"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents error information in API responses
type APIError struct {
	Code    int                    `json:"code"`
	Domain  string                 `json:"domain"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Handler exposes the dispatcher, the binding store and autostart over
// HTTP.
type Handler struct {
	logger     logger.Logger
	dispatcher *dispatch.Dispatcher
	store      *rules.Store
	autostart  autostart.Backend
}

// NewHandler creates the handler. autostart may be nil, in which case the
// autostart routes answer AutostartUnsupported.
func NewHandler(
	l logger.Logger,
	dispatcher *dispatch.Dispatcher,
	store *rules.Store,
	as autostart.Backend,
) *Handler {
	return &Handler{logger: l, dispatcher: dispatcher, store: store, autostart: as}
}

// RegisterRoutes mounts every route under router.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/devices", h.ListDevices)

	monitor := router.Group("/monitor")
	{
		monitor.GET("", h.MonitorStatus)
		monitor.POST("/start", h.StartMonitor)
		monitor.POST("/stop", h.StopMonitor)
	}

	bindings := router.Group("/bindings")
	{
		bindings.GET("", h.ListBindings)
		bindings.POST("", h.AddBinding)
		bindings.GET("/:id", h.GetBinding)
		bindings.PUT("/:id", h.UpdateBinding)
		bindings.DELETE("/:id", h.RemoveBinding)
		bindings.POST("/:id/enable", h.EnableBinding)
		bindings.POST("/:id/disable", h.DisableBinding)
	}

	settings := router.Group("/settings")
	{
		settings.GET("", h.GetSettings)
		settings.PUT("", h.UpdateSettings)
	}

	activity := router.Group("/activity")
	{
		activity.GET("", h.GetActivity)
		activity.DELETE("", h.ClearActivity)
	}

	commands := router.Group("/commands")
	{
		commands.POST("/test", h.TestCommand)
		commands.POST("/execute", h.ExecuteCommand)
	}

	as := router.Group("/autostart")
	{
		as.GET("", h.AutostartStatus)
		as.POST("/enable", h.EnableAutostart)
		as.POST("/disable", h.DisableAutostart)
	}
}

func (h *Handler) sendSuccess(c *gin.Context, statusCode int, result interface{}) {
	c.JSON(statusCode, APIResponse{Success: true, Result: result})
}

func (h *Handler) sendError(c *gin.Context, err error) {
	response := APIResponse{Success: false}
	_ = c.Error(err)

	if appErr, ok := err.(*errors.AppError); ok {
		response.Error = &APIError{
			Code:    int(appErr.Code),
			Domain:  string(appErr.Domain),
			Message: appErr.Message,
			Details: appErr.Details,
		}
		if len(appErr.Metadata) > 0 {
			response.Error.Meta = make(map[string]interface{}, len(appErr.Metadata))
			for k, v := range appErr.Metadata {
				response.Error.Meta[k] = v
			}
		}
		c.JSON(appErr.HTTPStatus, response)
		return
	}

	h.logger.Error("usb API error", "error", err, "path", c.Request.URL.Path)
	response.Error = &APIError{
		Code:    http.StatusInternalServerError,
		Domain:  string(errors.DomainUSB),
		Message: "Internal server error",
		Details: err.Error(),
	}
	c.JSON(http.StatusInternalServerError, response)
}

// ListDevices handles GET /devices
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.dispatcher.ConnectedDevices()
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.sendSuccess(c, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	})
}

// MonitorStatus handles GET /monitor
func (h *Handler) MonitorStatus(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.dispatcher.Status())
}

// StartMonitor handles POST /monitor/start
func (h *Handler) StartMonitor(c *gin.Context) {
	if err := h.dispatcher.StartMonitoring(c.Request.Context()); err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, h.dispatcher.Status())
}

// StopMonitor handles POST /monitor/stop
func (h *Handler) StopMonitor(c *gin.Context) {
	if err := h.dispatcher.StopMonitoring(); err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, h.dispatcher.Status())
}

// ListBindings handles GET /bindings
func (h *Handler) ListBindings(c *gin.Context) {
	bindings := h.store.List()
	h.sendSuccess(c, http.StatusOK, map[string]interface{}{
		"bindings": bindings,
		"count":    len(bindings),
	})
}

// GetBinding handles GET /bindings/:id
func (h *Handler) GetBinding(c *gin.Context) {
	b, err := h.store.Get(c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, b)
}

// AddBinding handles POST /bindings
func (h *Handler) AddBinding(c *gin.Context) {
	var req types.Binding
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ServerRequestValidation))
		return
	}

	added, err := h.store.Add(&req)
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.sendSuccess(c, http.StatusCreated, map[string]interface{}{
		"binding":  added,
		"overlaps": h.store.Overlaps(added),
	})
}

// UpdateBinding handles PUT /bindings/:id
func (h *Handler) UpdateBinding(c *gin.Context) {
	var req types.Binding
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ServerRequestValidation))
		return
	}
	req.ID = c.Param("id")

	updated, err := h.store.Update(&req)
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.sendSuccess(c, http.StatusOK, map[string]interface{}{
		"binding":  updated,
		"overlaps": h.store.Overlaps(updated),
	})
}

// RemoveBinding handles DELETE /bindings/:id
func (h *Handler) RemoveBinding(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Remove(id); err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, map[string]interface{}{
		"message": "Binding removed successfully",
		"id":      id,
	})
}

// EnableBinding handles POST /bindings/:id/enable
func (h *Handler) EnableBinding(c *gin.Context) {
	h.setEnabled(c, true)
}

// DisableBinding handles POST /bindings/:id/disable
func (h *Handler) DisableBinding(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *Handler) setEnabled(c *gin.Context, enabled bool) {
	b, err := h.store.SetEnabled(c.Param("id"), enabled)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, b)
}

// GetSettings handles GET /settings
func (h *Handler) GetSettings(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.store.Snapshot())
}

// UpdateSettings handles PUT /settings. Only toggles are accepted here;
// bindings have their own routes. A startWithSession change is applied to
// the autostart backend first and persisted only once that succeeded.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req types.Toggles
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ServerRequestValidation))
		return
	}

	before := h.store.Snapshot()
	syncSession := req.StartWithSession != nil && *req.StartWithSession != before.StartWithSession
	if syncSession {
		minimized := before.StartMinimized
		if req.StartMinimized != nil {
			minimized = *req.StartMinimized
		}
		if err := h.syncAutostart(*req.StartWithSession, minimized); err != nil {
			h.sendError(c, err)
			return
		}
	}

	settings, err := h.store.UpdateToggles(req)
	if err != nil {
		if syncSession {
			if rerr := h.syncAutostart(before.StartWithSession, before.StartMinimized); rerr != nil {
				h.logger.Error("failed to roll back autostart registration",
					"error", rerr,
					"start_with_session", before.StartWithSession)
			}
		}
		h.sendError(c, err)
		return
	}
	h.dispatcher.ApplySettings(settings)

	h.sendSuccess(c, http.StatusOK, settings)
}

func (h *Handler) syncAutostart(enable, minimized bool) error {
	if h.autostart == nil {
		return errors.New(errors.AutostartUnsupported, "no autostart backend configured")
	}
	if enable {
		return h.autostart.Enable("", minimized)
	}
	return h.autostart.Disable()
}

// GetActivity handles GET /activity
func (h *Handler) GetActivity(c *gin.Context) {
	entries := h.dispatcher.Activity()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	h.sendSuccess(c, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"lines":   lines,
		"count":   len(entries),
	})
}

// ClearActivity handles DELETE /activity
func (h *Handler) ClearActivity(c *gin.Context) {
	h.dispatcher.ClearActivity()
	h.sendSuccess(c, http.StatusOK, map[string]interface{}{"message": "Activity cleared"})
}

// TestCommand handles POST /commands/test
func (h *Handler) TestCommand(c *gin.Context) {
	var req types.Command
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ServerRequestValidation))
		return
	}

	res, err := h.dispatcher.TestCommand(c.Request.Context(), req)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, res)
}

// ExecuteCommand handles POST /commands/execute
func (h *Handler) ExecuteCommand(c *gin.Context) {
	var req types.Command
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ServerRequestValidation))
		return
	}

	res, err := h.dispatcher.ExecuteCommand(c.Request.Context(), req)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, res)
}

// AutostartRequest is the body of POST /autostart/enable.
type AutostartRequest struct {
	Path           string `json:"path"`
	StartMinimized *bool  `json:"startMinimized,omitempty"`
}

// AutostartStatus handles GET /autostart
func (h *Handler) AutostartStatus(c *gin.Context) {
	if h.autostart == nil {
		h.sendError(c, errors.New(errors.AutostartUnsupported, "no autostart backend configured"))
		return
	}
	h.sendSuccess(c, http.StatusOK, autostart.GetStatus(h.autostart))
}

// EnableAutostart handles POST /autostart/enable
func (h *Handler) EnableAutostart(c *gin.Context) {
	if h.autostart == nil {
		h.sendError(c, errors.New(errors.AutostartUnsupported, "no autostart backend configured"))
		return
	}

	var req AutostartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.sendError(c, errors.Wrap(err, errors.ServerRequestValidation))
			return
		}
	}

	minimized := h.store.Snapshot().StartMinimized
	if req.StartMinimized != nil {
		minimized = *req.StartMinimized
	}

	if err := h.autostart.Enable(req.Path, minimized); err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, autostart.GetStatus(h.autostart))
}

// DisableAutostart handles POST /autostart/disable
func (h *Handler) DisableAutostart(c *gin.Context) {
	if h.autostart == nil {
		h.sendError(c, errors.New(errors.AutostartUnsupported, "no autostart backend configured"))
		return
	}
	if err := h.autostart.Disable(); err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, autostart.GetStatus(h.autostart))
}
