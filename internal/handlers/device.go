package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Request DTO for connect.
type connectRequest struct {
	ID string `json:"id" binding:"required"`
}

// ConnectRequest is an exported model for Swagger docs of the connect payload.
type ConnectRequest struct {
	// Peripheral id as returned by scan
	ID string `json:"id" example:"AA:BB:CC:DD:EE:FF"`
}

// @Summary      Link state
// @Description  Connected device (set once the backend session is open) and the last live reading
// @Tags         device
// @Produce      json
// @Success      200  {object}  session.Snapshot
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/device [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Device.State())
}

// @Summary      Scan for the valve
// @Description  Returns the first peripheral whose name matches the configured prefix
// @Tags         device
// @Produce      json
// @Success      200  {object}  service.ScanResult
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/device/scan [post]
// @Security     BearerAuth
func (h *Handler) scanDevice(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Device.Scan(c.Request.Context()))
}

// @Summary      Connect to a peripheral
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body   ConnectRequest  true  "Peripheral id"
// @Success      200   {object}  session.Result
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/device/connect [post]
// @Security     BearerAuth
func (h *Handler) connectDevice(c *gin.Context) {
	var req connectRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	res, err := h.services.Device.Connect(c.Request.Context(), req.ID)
	if err != nil {
		h.respondError(c, "device_connect_failed", err, "id", req.ID)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Disconnect
// @Description  Closes the backend session and releases the link. Safe to call when nothing is linked.
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/device/disconnect [post]
// @Security     BearerAuth
func (h *Handler) disconnectDevice(c *gin.Context) {
	h.services.Device.Disconnect(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": statusDisconnected})
}

// @Summary      Device telemetry
// @Description  Live reading of the connected device, otherwise the latest record held by the backend
// @Tags         device
// @Produce      json
// @Param        device_id  query  string  false  "Device id; defaults to the connected or configured device"
// @Success      200  {object}  service.TelemetryView
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/device/telemetry [get]
// @Security     BearerAuth
func (h *Handler) getTelemetry(c *gin.Context) {
	id := c.Query("device_id")
	view, err := h.services.Device.Telemetry(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "device_telemetry_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Summary      Irrigation history
// @Tags         device
// @Produce      json
// @Param        device_id  query  string  false  "Device id; defaults to the connected or configured device"
// @Success      200  {object}  map[string]interface{}  "count, rows"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/device/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	id := c.Query("device_id")
	rows, err := h.services.Device.History(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "device_history_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(rows),
		"rows":  rows,
	})
}
