package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"printerbot/internal/printer"
)

const (
	iconHeater     = "♨️"
	iconFan        = "🌪️"
	iconThermo     = "🌡️"
	iconTarget     = "➡️"
	iconHeating    = "🔥"
	iconLight      = "🔦"
	iconPSU        = "🔌"
	iconDevice     = "🚥"
	iconLocked     = "🔒"
	targetDeadband = 2.0
)

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// round matches the half-to-even rounding users saw in earlier bot versions.
func round(v float64) int64 {
	return int64(math.RoundToEven(v))
}

// Sensors renders one line per sensor, sorted by name. The icon follows the
// reported fields: heaters (power) first, then fans (speed), then plain
// temperature sensors.
func Sensors(snap printer.Snapshot) string {
	lines := make([]string, 0, len(snap.Sensors))
	for _, name := range sortedKeys(snap.Sensors) {
		lines = append(lines, sensorLine(name, snap.Sensors[name]))
	}
	return strings.Join(lines, "\n")
}

func sensorLine(name string, r printer.SensorReading) string {
	var b strings.Builder
	switch {
	case r.Power != nil:
		b.WriteString(iconHeater + " ")
	case r.Speed != nil:
		b.WriteString(iconFan + " ")
	case r.Temperature != nil:
		b.WriteString(iconThermo + " ")
	}
	b.WriteString(SensorDisplayName(name) + ":")

	if r.Temperature != nil {
		fmt.Fprintf(&b, " %d °C", round(*r.Temperature))
		if r.Target != nil && *r.Target > 0 && math.Abs(*r.Target-*r.Temperature) > targetDeadband {
			fmt.Fprintf(&b, " %s %d °C", iconTarget, round(*r.Target))
		}
	}
	if r.Power != nil && *r.Power > 0 {
		b.WriteString(" " + iconHeating)
	}
	if r.Speed != nil {
		fmt.Fprintf(&b, " %d%%", round(*r.Speed*100))
	}
	if r.RPM != nil {
		fmt.Fprintf(&b, " %d RPM", round(*r.RPM))
	}
	return b.String()
}

// DeviceOptions selects the power devices to render and their icons.
type DeviceOptions struct {
	Light string
	PSU   string
	// Shown limits the report to these devices; empty shows all of them.
	Shown []string
}

// PowerDevices renders one line per power device, sorted by name. The
// configured light and PSU devices get their own icons.
func PowerDevices(snap printer.Snapshot, opts DeviceOptions) string {
	shown := make(map[string]struct{}, len(opts.Shown))
	for _, name := range opts.Shown {
		shown[name] = struct{}{}
	}

	lines := make([]string, 0, len(snap.PowerDevices))
	for _, name := range sortedKeys(snap.PowerDevices) {
		if _, ok := shown[name]; len(shown) > 0 && !ok {
			continue
		}
		r := snap.PowerDevices[name]
		icon := iconDevice
		switch name {
		case opts.Light:
			icon = iconLight
		case opts.PSU:
			icon = iconPSU
		}
		line := fmt.Sprintf("%s %s: %s", icon, name, r.Status)
		if r.LockedWhilePrinting {
			line += " " + iconLocked
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
