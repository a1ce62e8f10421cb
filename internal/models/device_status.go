package models

// DeviceStatus combines a device's command-side state with the latest
// telemetry reading for it.
type DeviceStatus struct {
	Name                string `json:"name"`
	On                  bool   `json:"on"`
	LastError           string `json:"last_error,omitempty"`
	Status              string `json:"status,omitempty"` // telemetry: on | off | init | error
	LockedWhilePrinting bool   `json:"locked_while_printing"`
	Type                string `json:"type,omitempty"`
	Role                string `json:"role,omitempty"` // psu | light
}
