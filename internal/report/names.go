// Package report renders printer snapshots as chat-ready text blocks. Every
// function is pure: output depends only on its arguments.
package report

import (
	"strings"
	"unicode"
)

// SensorDisplayName turns a controller object name into a display label.
// A space goes before every capital letter, digit and underscore, the
// underscores are dropped, and each letter run starts upper-case with the
// rest lower-case. "heater_bed" becomes "Heater Bed", "extruder1" becomes
// "Extruder 1".
func SensorDisplayName(name string) string {
	var spaced strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) || unicode.IsDigit(r) || r == '_' {
			spaced.WriteByte(' ')
		}
		if r == '_' {
			continue
		}
		spaced.WriteRune(r)
	}
	return titleCase(spaced.String())
}

// titleCase upper-cases a letter that follows a non-letter and lower-cases
// a letter that follows another letter.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && prevCased:
			b.WriteRune(unicode.ToLower(r))
		case cased:
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}
