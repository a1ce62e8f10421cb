package service

import (
	"errors"
	"time"
)

// LogFilter supports journal filtering by time range and event type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "CONNECTION", "PHASE_CHANGE", "POWER", "PRINT_START", "UPLOAD", "GCODE", "ERROR"
}

// Errors the handlers map to client-facing statuses.
var (
	ErrDeviceAbsent     = errors.New("power device not found")
	ErrDeviceCommand    = errors.New("power device command failed")
	ErrJobActive        = errors.New("a print job is already running")
	ErrEmptyGcode       = errors.New("gcode script is empty")
	ErrUnsupportedFile  = errors.New("only .gcode files can be uploaded")
	ErrEmptyFilename    = errors.New("filename is required")
	ErrInvalidPath      = errors.New("upload path must stay inside the gcode root")
	ErrEmptyKey         = errors.New("database key is required")
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)
