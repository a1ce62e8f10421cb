package printer

import "strings"

// JobPhase is the lifecycle stage of the current print job.
type JobPhase int

const (
	PhaseIdle JobPhase = iota
	PhasePrinting
	PhasePaused
	PhaseCancelled
	PhaseComplete
	PhaseError
	// PhaseStandby is used while the controller is disconnected or reports
	// no job at all.
	PhaseStandby
)

var phaseNames = map[JobPhase]string{
	PhaseIdle:      "idle",
	PhasePrinting:  "printing",
	PhasePaused:    "paused",
	PhaseCancelled: "cancelled",
	PhaseComplete:  "complete",
	PhaseError:     "error",
	PhaseStandby:   "standby",
}

func (p JobPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the phase by name in JSON payloads.
func (p JobPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Active reports whether a job is running or paused.
func (p JobPhase) Active() bool {
	return p == PhasePrinting || p == PhasePaused
}

// ParsePhase maps a controller state string to a JobPhase.
func ParsePhase(raw string) (JobPhase, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "idle", "ready":
		return PhaseIdle, true
	case "printing":
		return PhasePrinting, true
	case "paused":
		return PhasePaused, true
	case "cancelled":
		return PhaseCancelled, true
	case "complete":
		return PhaseComplete, true
	case "error":
		return PhaseError, true
	case "standby":
		return PhaseStandby, true
	default:
		return PhaseIdle, false
	}
}
