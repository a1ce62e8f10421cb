package service

import (
	"strings"

	"printerbot/internal/config"
)

// jobObjects are subscribed on every connection.
var jobObjects = map[string][]string{
	"print_stats":    nil,
	"virtual_sdcard": nil,
	"display_status": nil,
	"gcode_move":     {"gcode_position"},
}

func lastToken(obj string) string {
	fields := strings.Fields(obj)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func isHeater(obj string) bool {
	if rest, ok := strings.CutPrefix(obj, "extruder"); ok {
		// extruder, extruder1, ... but not extruder_stepper
		return strings.TrimLeft(rest, "0123456789") == ""
	}
	return obj == "heater_bed" || strings.HasPrefix(obj, "heater_generic ")
}

func matches(name string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == name {
			return true
		}
	}
	return false
}

// sensorObjects maps the controller objects selected for the sensor report
// to their display keys. Heaters match on the last name token; sensors and
// fans also need "sensor" or "fan" in the object name. An empty filter list
// selects every object of that kind.
func sensorObjects(objects []string, sel config.Status) map[string]string {
	out := map[string]string{}
	for _, obj := range objects {
		if strings.HasPrefix(obj, "gcode_macro ") {
			continue
		}
		name := lastToken(obj)
		switch {
		case isHeater(obj):
			if matches(name, sel.Heaters) {
				out[obj] = name
			}
		case strings.Contains(obj, "sensor"):
			if matches(name, sel.Sensors) {
				out[obj] = name
			}
		case strings.Contains(obj, "fan"):
			if matches(name, sel.Fans) {
				out[obj] = name
			}
		}
	}
	return out
}

// subscription returns the object query for the job objects plus the
// selected sensors.
func subscription(sensors map[string]string) map[string][]string {
	out := make(map[string][]string, len(jobObjects)+len(sensors))
	for obj, attrs := range jobObjects {
		out[obj] = attrs
	}
	for obj := range sensors {
		out[obj] = nil
	}
	return out
}
