package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type switchRequest struct {
	On *bool `json:"on" binding:"required"`
}

// SwitchRequest is an exported model for Swagger docs of the switch payload.
type SwitchRequest struct {
	On bool `json:"on" example:"true"`
}

// @Summary      List power devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "devices"
// @Router       /api/v1/devices/ [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.services.Devices()})
}

// @Summary      Switch a power device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        name  path   string         true  "Device name"
// @Param        body  body   SwitchRequest  true  "Target state"
// @Success      200   {object}  models.DeviceStatus
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]interface{}  "error, device"
// @Router       /api/v1/devices/{name}/switch [post]
// @Security     BearerAuth
func (h *Handler) switchDevice(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	name := c.Param("name")
	h.logCommand(c, "switch", "device", name, "on", *req.On)
	st, err := h.services.SwitchDevice(c.Request.Context(), name, *req.On)
	if err != nil {
		h.respondDeviceError(c, err, name, st)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Toggle a power device
// @Tags         devices
// @Produce      json
// @Param        name  path   string  true  "Device name"
// @Success      200   {object}  models.DeviceStatus
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]interface{}  "error, device"
// @Router       /api/v1/devices/{name}/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleDevice(c *gin.Context) {
	name := c.Param("name")
	h.logCommand(c, "toggle", "device", name)
	st, err := h.services.ToggleDevice(c.Request.Context(), name)
	if err != nil {
		h.respondDeviceError(c, err, name, st)
		return
	}
	c.JSON(http.StatusOK, st)
}

// respondDeviceError includes the device state when the device exists so the
// caller sees the state it was left in.
func (h *Handler) respondDeviceError(c *gin.Context, err error, name string, st any) {
	code := statusFor(err)
	if h.log != nil {
		h.log.Infow("device_command_failed", "device", name, "err", err, "status", code)
	}
	if code == http.StatusNotFound {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(code, gin.H{"error": err.Error(), "device": st})
}
