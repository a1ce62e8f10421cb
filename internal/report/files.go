package report

import (
	"math"
	"strconv"
	"strings"

	"printerbot/internal/client"
)

// FileSummary renders the filament and time estimate of a gcode file from
// its slicer metadata. Missing or zero values are left out, so a file
// without metadata yields "".
func FileSummary(meta client.FileMetadata) string {
	var lines []string
	if positive(meta.FilamentTotal) {
		line := "Filament: " + trimFloat(math.Round(*meta.FilamentTotal/10)/100) + "m"
		if positive(meta.FilamentWeightTotal) {
			line += ", weight: " + trimFloat(*meta.FilamentWeightTotal) + "g"
		}
		lines = append(lines, line)
	}
	if positive(meta.EstimatedTime) {
		lines = append(lines, "Estimated printing time: "+FormatDuration(seconds(*meta.EstimatedTime)))
	}
	return strings.Join(lines, "\n")
}

// Versions renders one "component: version" line per update manager
// component, sorted by name. The system package entry is skipped. A non-empty
// only keeps that single component.
func Versions(info map[string]client.ComponentVersion, only string) string {
	lines := make([]string, 0, len(info))
	for _, name := range sortedKeys(info) {
		if name == "system" || (only != "" && name != only) {
			continue
		}
		lines = append(lines, name+": "+info[name].DisplayVersion())
	}
	return strings.Join(lines, "\n")
}

func positive(v *float64) bool { return v != nil && *v > 0 }

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
