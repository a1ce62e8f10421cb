package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// envelope is the controller's response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// errEmptyResult marks a 2xx response without a result member.
var errEmptyResult = errors.New("response has no result")

// decodeResult unmarshals the result member of a controller response.
func decodeResult(body []byte, dest any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return errEmptyResult
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, dest); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// ErrorMessage extracts error.message from a controller error body, or ""
// when the body carries none.
func ErrorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return ""
	}
	return env.Error.Message
}

// StatusError is returned by the typed helpers for non-2xx responses.
type StatusError struct {
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("controller %s returned %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("controller %s returned %d", e.Path, e.Status)
}

// PrinterInfo is the result of /printer/info.
type PrinterInfo struct {
	State           string `json:"state"`
	StateMessage    string `json:"state_message"`
	Hostname        string `json:"hostname"`
	SoftwareVersion string `json:"software_version"`
}

// Thumbnail describes one embedded gcode preview.
type Thumbnail struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Size         int    `json:"size"`
	RelativePath string `json:"relative_path"`
}

// FileMetadata is the result of /server/files/metadata. Keys the slicer did
// not emit are nil.
type FileMetadata struct {
	Filename            string      `json:"filename"`
	EstimatedTime       *float64    `json:"estimated_time"`
	PrintStartTime      *float64    `json:"print_start_time"`
	FilamentTotal       *float64    `json:"filament_total"`
	FilamentWeightTotal *float64    `json:"filament_weight_total"`
	Thumbnails          []Thumbnail `json:"thumbnails"`
}

// LargestThumbnail returns the path of the biggest preview, relative to the
// gcode root. Thumbnail paths are relative to the file's directory.
func (m FileMetadata) LargestThumbnail() string {
	best := -1
	path := ""
	for _, t := range m.Thumbnails {
		if t.Size > best && t.RelativePath != "" {
			best = t.Size
			path = t.RelativePath
		}
	}
	if path == "" {
		return ""
	}
	if i := strings.LastIndex(m.Filename, "/"); i > 0 {
		return m.Filename[:i] + "/" + path
	}
	return path
}

// FileEntry is one element of /server/files/list.
type FileEntry struct {
	Path     string  `json:"path"`
	Modified float64 `json:"modified"`
	Size     int64   `json:"size"`
}

// PowerDevice is one element of /machine/device_power/devices.
type PowerDevice struct {
	Device              string `json:"device"`
	Status              string `json:"status"`
	LockedWhilePrinting bool   `json:"locked_while_printing"`
	Type                string `json:"type"`
	IsShutdown          bool   `json:"is_shutdown"`
}

// ComponentVersion is one entry of the update manager's version_info.
type ComponentVersion struct {
	Version           string `json:"version"`
	FullVersionString string `json:"full_version_string"`
	RemoteVersion     string `json:"remote_version"`
	IsDirty           bool   `json:"is_dirty"`
	// Package updates for the system component.
	PackageCount int `json:"package_count"`
}

// DisplayVersion prefers the full version string when the controller has one.
func (v ComponentVersion) DisplayVersion() string {
	if v.FullVersionString != "" {
		return v.FullVersionString
	}
	return v.Version
}

// UpdateStatus is the result of /machine/update/status.
type UpdateStatus struct {
	Busy        bool                        `json:"busy"`
	VersionInfo map[string]ComponentVersion `json:"version_info"`
}

// PrintStats mirrors the print_stats printer object.
type PrintStats struct {
	State         *string  `json:"state"`
	Filename      *string  `json:"filename"`
	PrintDuration *float64 `json:"print_duration"`
	TotalDuration *float64 `json:"total_duration"`
	FilamentUsed  *float64 `json:"filament_used"`
	Message       *string  `json:"message"`
}

// VirtualSD mirrors the virtual_sdcard printer object.
type VirtualSD struct {
	Progress *float64 `json:"progress"`
	IsActive *bool    `json:"is_active"`
}

// DisplayStatus mirrors the display_status printer object.
type DisplayStatus struct {
	Progress *float64 `json:"progress"`
	Message  *string  `json:"message"`
}

// GcodeMove mirrors the gcode_move printer object.
type GcodeMove struct {
	GcodePosition []float64 `json:"gcode_position"`
}

// SensorStatus covers heaters, temperature sensors and fans; each reports a
// subset of the keys.
type SensorStatus struct {
	Temperature *float64 `json:"temperature"`
	Target      *float64 `json:"target"`
	Power       *float64 `json:"power"`
	Speed       *float64 `json:"speed"`
	RPM         *float64 `json:"rpm"`
}

// ObjectStatus maps printer object names to their raw status payloads, as
// returned by /printer/objects/query and pushed by notify_status_update.
type ObjectStatus map[string]json.RawMessage

// Decode unmarshals the payload of object into dest. It reports false when
// the object is absent or malformed.
func (o ObjectStatus) Decode(object string, dest any) bool {
	raw, ok := o[object]
	if !ok || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}
