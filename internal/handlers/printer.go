package handlers

import (
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type printRequest struct {
	Filename string `json:"filename" binding:"required"`
}

type gcodeRequest struct {
	Script string `json:"script" binding:"required"`
}

// PrintRequest is an exported model for Swagger docs of the print payload.
type PrintRequest struct {
	// File path relative to the gcode root
	Filename string `json:"filename" example:"cube.gcode"`
}

// GcodeRequest is an exported model for Swagger docs of the gcode payload.
type GcodeRequest struct {
	Script string `json:"script" example:"G28"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    statusOK,
		"connected": h.services.Snapshot().Connected,
	})
}

// @Summary      Printer status
// @Description  Rendered status report plus the raw snapshot
// @Tags         printer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "text, snapshot"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/printer/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"text":     h.services.StatusText(time.Now()),
		"snapshot": h.services.Snapshot(),
	})
}

// @Summary      Sensor readings
// @Tags         printer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "text, sensors"
// @Router       /api/v1/printer/sensors [get]
// @Security     BearerAuth
func (h *Handler) getSensors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"text":    h.services.SensorsText(),
		"sensors": h.services.Snapshot().Sensors,
	})
}

// @Summary      Visible macros
// @Tags         printer
// @Produce      json
// @Param        all  query  bool  false  "Include hidden and private macros"
// @Success      200  {object}  map[string]interface{}  "macros"
// @Router       /api/v1/printer/macros [get]
// @Security     BearerAuth
func (h *Handler) getMacros(c *gin.Context) {
	macros := h.services.Macros()
	if c.Query("all") == "true" {
		macros = h.services.AllMacros()
	}
	if macros == nil {
		macros = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"macros": macros})
}

// @Summary      List gcode files
// @Tags         printer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, files"
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/printer/files [get]
// @Security     BearerAuth
func (h *Handler) listFiles(c *gin.Context) {
	files, err := h.services.Files(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "files_list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(files), "files": files})
}

// @Summary      Software update status
// @Tags         printer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/printer/updates [get]
// @Security     BearerAuth
func (h *Handler) getUpdates(c *gin.Context) {
	st, err := h.services.Updates(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "updates_failed")
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Component versions
// @Description  One "component: version" line per update manager component
// @Tags         printer
// @Produce      json
// @Param        bot_only  query  bool  false  "Only this bot's component"
// @Success      200  {object}  map[string]interface{}  "text"
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/printer/versions [get]
// @Security     BearerAuth
func (h *Handler) getVersions(c *gin.Context) {
	botOnly := false
	if raw := c.Query("bot_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bot_only: " + raw})
			return
		}
		botOnly = v
	}
	text, err := h.services.Versions(c.Request.Context(), botOnly)
	if err != nil {
		h.respondError(c, err, "versions_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// @Summary      Gcode file summary
// @Description  Filament, weight and time estimate of one file, plus its largest thumbnail path
// @Tags         printer
// @Produce      json
// @Param        filename  query  string  true  "File path relative to the gcode root"
// @Success      200  {object}  service.FileSummary
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/printer/files/info [get]
// @Security     BearerAuth
func (h *Handler) getFileInfo(c *gin.Context) {
	info, err := h.services.FileInfo(c.Request.Context(), c.Query("filename"))
	if err != nil {
		h.respondError(c, err, "file_info_failed", "file", c.Query("filename"))
		return
	}
	c.JSON(http.StatusOK, info)
}

// @Summary      Start a print
// @Tags         printer
// @Accept       json
// @Produce      json
// @Param        body  body   PrintRequest  true  "File to print"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/printer/print [post]
// @Security     BearerAuth
func (h *Handler) startPrint(c *gin.Context) {
	var req printRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.logCommand(c, "print", "file", req.Filename)
	if err := h.services.StartPrint(c.Request.Context(), req.Filename); err != nil {
		h.respondError(c, err, "print_start_failed", "file", req.Filename)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "filename": req.Filename})
}

// @Summary      Upload a gcode file
// @Tags         printer
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file    true   "gcode file"
// @Param        path  formData  string  false  "Directory below the gcode root"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/printer/upload [post]
// @Security     BearerAuth
func (h *Handler) uploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	defer func() { _ = f.Close() }()

	name := path.Join(c.PostForm("path"), fh.Filename)
	h.logCommand(c, "upload", "file", name)
	if err := h.services.Upload(c.Request.Context(), name, f, fh.Size); err != nil {
		h.respondError(c, err, "upload_failed", "file", name)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "uploaded", "filename": name, "size": fh.Size})
}

// @Summary      Run gcode
// @Tags         printer
// @Accept       json
// @Produce      json
// @Param        body  body   GcodeRequest  true  "Script"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/printer/gcode [post]
// @Security     BearerAuth
func (h *Handler) runGcode(c *gin.Context) {
	var req gcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.logCommand(c, "gcode", "script", req.Script)
	if err := h.services.RunGcode(c.Request.Context(), req.Script); err != nil {
		h.respondError(c, err, "gcode_failed", "script", req.Script)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
