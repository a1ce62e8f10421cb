package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Read a stored value
// @Tags         storage
// @Produce      json
// @Param        key  path  string  true  "Key"
// @Success      200  {object}  map[string]interface{}  "key, value"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/storage/{key} [get]
// @Security     BearerAuth
func (h *Handler) getItem(c *gin.Context) {
	key := c.Param("key")
	v, err := h.services.GetItem(c.Request.Context(), key)
	if err != nil {
		h.respondError(c, err, "storage_get_failed", "key", key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": v})
}

// @Summary      Store a value
// @Description  The request body is any JSON value
// @Tags         storage
// @Accept       json
// @Produce      json
// @Param        key  path  string  true  "Key"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/storage/{key} [put]
// @Security     BearerAuth
func (h *Handler) putItem(c *gin.Context) {
	var value json.RawMessage
	if err := c.ShouldBindJSON(&value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	key := c.Param("key")
	if err := h.services.PutItem(c.Request.Context(), key, value); err != nil {
		h.respondError(c, err, "storage_put_failed", "key", key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Delete a stored value
// @Tags         storage
// @Produce      json
// @Param        key  path  string  true  "Key"
// @Success      200  {object}  map[string]string
// @Router       /api/v1/storage/{key} [delete]
// @Security     BearerAuth
func (h *Handler) deleteItem(c *gin.Context) {
	key := c.Param("key")
	if err := h.services.DeleteItem(c.Request.Context(), key); err != nil {
		h.respondError(c, err, "storage_delete_failed", "key", key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
