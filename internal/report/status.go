package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"printerbot/internal/printer"
)

// Status report fields.
const (
	FieldProgress       = "progress"
	FieldHeight         = "height"
	FieldFilamentLength = "filament_length"
	FieldFilamentWeight = "filament_weight"
	FieldPrintDuration  = "print_duration"
	FieldEta            = "eta"
	FieldFinishTime     = "finish_time"
	FieldM117           = "m117_status"
	FieldLastUpdate     = "last_update_time"
)

const finishLayout = "2006-01-02 15:04"

var phaseHeaders = map[printer.JobPhase]string{
	printer.PhaseIdle:      "Printer ready",
	printer.PhasePaused:    "Printing paused",
	printer.PhaseCancelled: "Printing cancelled",
	printer.PhaseComplete:  "Printing complete",
	printer.PhaseError:     "Printing error",
	printer.PhaseStandby:   "Printer standby",
}

// StatusOptions selects the fields and the ETA policy of a status report.
type StatusOptions struct {
	Fields    []string
	EtaSource printer.EtaSource
}

func (o StatusOptions) has(field string) bool {
	for _, f := range o.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Status renders the job summary: a phase line, then the configured job
// fields while a file is loaded, then the display message and update time.
func Status(snap printer.Snapshot, opts StatusOptions, now time.Time) string {
	if !snap.Connected {
		return "Printer is disconnected"
	}

	var lines []string
	if h, ok := phaseHeaders[snap.Phase]; ok {
		lines = append(lines, h)
	}
	if snap.Filename != "" && snap.Phase.Active() {
		lines = append(lines, JobInfo(snap, opts, now)...)
	}
	if opts.has(FieldM117) && snap.DisplayMessage != "" {
		lines = append(lines, "📝 "+snap.DisplayMessage)
	}
	if opts.has(FieldLastUpdate) && !snap.LastUpdate.IsZero() {
		lines = append(lines, "🕓 Last update "+humanize.RelTime(snap.LastUpdate, now, "ago", "from now"))
	}
	return strings.Join(lines, "\n")
}

// JobInfo renders the lines describing the file being printed.
func JobInfo(snap printer.Snapshot, opts StatusOptions, now time.Time) []string {
	lines := []string{"Printing: " + snap.Filename}

	if opts.has(FieldProgress) {
		line := fmt.Sprintf("Progress %d%%", round(snap.Progress*100))
		if opts.has(FieldHeight) && snap.HeightMm > 0 {
			line += fmt.Sprintf(", height: %.2fmm", snap.HeightMm)
		}
		lines = append(lines, line)
	}

	if f := snap.File; f.FilamentTotal > 0 {
		var parts []string
		if opts.has(FieldFilamentLength) {
			parts = append(parts, fmt.Sprintf("Filament: %.2fm / %.2fm", snap.FilamentUsed/1000, f.FilamentTotal/1000))
		}
		if opts.has(FieldFilamentWeight) && f.FilamentWeight > 0 {
			used := f.FilamentWeight * snap.FilamentUsed / f.FilamentTotal
			parts = append(parts, fmt.Sprintf("weight: %.2f/%.2fg", used, f.FilamentWeight))
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ", "))
		}
	}

	if opts.has(FieldPrintDuration) {
		lines = append(lines, "Printing for "+FormatDuration(seconds(snap.Elapsed)))
	}
	if opts.has(FieldEta) {
		lines = append(lines, "Estimated time left: "+FormatDuration(snap.EstimateRemaining(opts.EtaSource)))
	}
	if opts.has(FieldFinishTime) {
		lines = append(lines, "Finish at "+snap.FinishTime(opts.EtaSource, now).Format(finishLayout))
	}
	return lines
}

// Full joins the status, sensor and power device blocks the way the bot's
// status message shows them.
func Full(snap printer.Snapshot, opts StatusOptions, devices DeviceOptions, now time.Time) string {
	var blocks []string
	for _, block := range []string{
		Status(snap, opts, now),
		Sensors(snap),
		PowerDevices(snap, devices),
	} {
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// FormatDuration renders d as H:MM:SS, prefixed with "N day(s), " when it
// spans more than a day.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	days := total / 86400
	h := (total % 86400) / 3600
	m := (total % 3600) / 60
	s := total % 60
	clock := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
	return clock
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
