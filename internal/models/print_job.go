package models

import "time"

// PrintJob is one print as seen by the bot, from the printing phase to its
// terminal phase.
type PrintJob struct {
	JobID        string    `json:"job_id"`
	Filename     string    `json:"filename"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitempty"`
	Outcome      string    `json:"outcome"` // printing | complete | cancelled | error | standby
	Progress     float64   `json:"progress"`
	ElapsedSec   float64   `json:"elapsed_seconds"`
	FilamentUsed float64   `json:"filament_used_mm"`
}
