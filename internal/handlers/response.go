package handlers

import (
	"errors"
	"net/http"

	"greendrop/internal/backend"
	"greendrop/internal/service"
	"greendrop/internal/session"
	"greendrop/internal/timer"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusStarted      = "started"
	statusStopped      = "stopped"
	statusAcknowledged = "acknowledged"
	statusDisconnected = "disconnected"
	statusLoggedIn     = "logged_in"
	statusLoggedOut    = "logged_out"

	errGetState        = "failed to load state"
	errBackend         = "telemetry backend unavailable"
	errInternal        = "internal error"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		if httpCode >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Infow(logKey, fields...)
		}
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// classify maps service errors to an HTTP status and the message shown to
// the caller.
func classify(err error) (int, string) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, session.ErrConnectFailed):
		return http.StatusBadGateway, session.ErrConnectFailed.Error()
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrHandlerRegistered),
		errors.Is(err, service.ErrNoDevice),
		errors.Is(err, timer.ErrNotIdle),
		errors.Is(err, timer.ErrNotRunning),
		errors.Is(err, timer.ErrNotStopped):
		return http.StatusConflict, err.Error()
	case errors.Is(err, timer.ErrInvalidDuration),
		errors.Is(err, service.ErrMissingDeviceID):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, backend.ErrUnauthorized),
		errors.Is(err, backend.ErrNoCredential):
		return http.StatusUnauthorized, "backend credential rejected, log in again"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, errBackend + ": " + apiErr.Code
	default:
		return http.StatusInternalServerError, errInternal
	}
}

func (h *Handler) respondError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code, msg := classify(err)
	h.logAndJSONError(c, code, msg, logKey, err, kv...)
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
