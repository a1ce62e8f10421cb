package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"printerbot/internal/client"
	"printerbot/internal/printer"
	"printerbot/internal/service"
)

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
)

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	var se *client.StatusError
	switch {
	case errors.Is(err, printer.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrJobActive):
		return http.StatusConflict
	case errors.Is(err, service.ErrDeviceAbsent):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyFilename),
		errors.Is(err, service.ErrEmptyGcode),
		errors.Is(err, service.ErrUnsupportedFile),
		errors.Is(err, service.ErrInvalidPath),
		errors.Is(err, service.ErrEmptyKey):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDeviceCommand):
		return http.StatusBadGateway
	case errors.As(err, &se):
		if se.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Centralized error logging and response. Client errors are logged at info,
// the rest at error.
func (h *Handler) respondError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	code := statusFor(err)
	if h.log != nil {
		fields := append([]interface{}{"err", err, "status", code}, kv...)
		if code < http.StatusInternalServerError {
			h.log.Infow(logKey, fields...)
		} else {
			h.log.Errorw(logKey, fields...)
		}
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
