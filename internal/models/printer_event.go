package models

import "time"

// Event types recorded in the journal.
const (
	EventConnection  = "CONNECTION"
	EventPhaseChange = "PHASE_CHANGE"
	EventPower       = "POWER"
	EventPrintStart  = "PRINT_START"
	EventUpload      = "UPLOAD"
	EventGcode       = "GCODE"
	EventError       = "ERROR"
)

// PrinterEvent is a single journal entry.
type PrinterEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
