package handlers

import (
	"errors"
	"io"
	"net/http"

	"greendrop/internal/service"

	"github.com/gin-gonic/gin"
)

// StartRequest is an exported model for Swagger docs of the start payload.
type StartRequest struct {
	// Run length in minutes (ignored when auto_by_plant is set)
	DurationMin int `json:"duration_min,omitempty" example:"12"`
	// Plant name used for the preset lookup
	Plant string `json:"plant,omitempty" example:"Pasto"`
	// Take the duration from the plant presets
	AutoByPlant bool `json:"auto_by_plant,omitempty" example:"false"`
}

// @Summary      Start irrigation
// @Description  Opens the valve and starts the countdown. A finished run is acknowledged implicitly.
// @Tags         irrigation
// @Accept       json
// @Produce      json
// @Param        body  body   StartRequest  false  "Start payload"
// @Success      200   {object}  map[string]interface{}  "status, state"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/irrigation/start [post]
// @Security     BearerAuth
func (h *Handler) startIrrigation(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	params := service.StartParams{
		DurationMin: req.DurationMin,
		Plant:       req.Plant,
		AutoByPlant: req.AutoByPlant,
	}
	if _, err := h.services.Irrigation.Start(c.Request.Context(), params); err != nil {
		h.respondError(c, "irrigation_start_failed", err, "duration_min", req.DurationMin, "plant", req.Plant)
		return
	}
	h.respondWithStatusAndState(c, statusStarted, gin.H{})
}

// @Summary      Stop irrigation
// @Tags         irrigation
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/irrigation/stop [post]
// @Security     BearerAuth
func (h *Handler) stopIrrigation(c *gin.Context) {
	if _, err := h.services.Irrigation.Stop(c.Request.Context()); err != nil {
		h.respondError(c, "irrigation_stop_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStopped, gin.H{})
}

// @Summary      Acknowledge a finished run
// @Tags         irrigation
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/irrigation/ack [post]
// @Security     BearerAuth
func (h *Handler) ackIrrigation(c *gin.Context) {
	if err := h.services.Irrigation.Acknowledge(c.Request.Context()); err != nil {
		h.respondError(c, "irrigation_ack_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusAcknowledged, gin.H{})
}

// @Summary      Get irrigation state
// @Tags         irrigation
// @Produce      json
// @Success      200  {object}  timer.Status
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/irrigation/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "irrigation_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
