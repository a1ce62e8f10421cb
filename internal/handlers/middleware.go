package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"printerbot/internal/service"
)

// operatorIDKey holds the authenticated operator id in the gin context.
const operatorIDKey = "operatorID"

// requireOperator rejects API calls without a valid operator token. The token
// travels as "Authorization: Bearer <jwt>"; the scheme is matched without
// regard to case.
func (h *Handler) requireOperator(c *gin.Context) {
	token, reason := bearerToken(c.GetHeader("Authorization"))
	if reason != "" {
		h.rejectOperator(c, http.StatusUnauthorized, reason, nil)
		return
	}

	id, err := h.services.ParseToken(token)
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		h.rejectOperator(c, http.StatusUnauthorized, "invalid or expired token", err)
		return
	case err != nil:
		h.rejectOperator(c, http.StatusInternalServerError, "token check failed", err)
		return
	}

	c.Set(operatorIDKey, id)
	c.Next()
}

// bearerToken extracts the token, or returns why the header is unusable.
func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "missing Authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "invalid Authorization header format"
	}
	return token, ""
}

func (h *Handler) rejectOperator(c *gin.Context, code int, reason string, err error) {
	if h.log != nil {
		h.log.Infow("operator_rejected", "path", c.FullPath(), "reason", reason, "err", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": reason})
}

// operatorID returns the id set by requireOperator.
func operatorID(c *gin.Context) (int, bool) {
	v, ok := c.Get(operatorIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

// logCommand records which operator issued a controller command.
func (h *Handler) logCommand(c *gin.Context, command string, kv ...interface{}) {
	if h.log == nil {
		return
	}
	id, _ := operatorID(c)
	h.log.Infow("operator_command", append([]interface{}{"command", command, "operator", id}, kv...)...)
}
