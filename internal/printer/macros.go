package printer

import (
	"sort"
	"strings"
)

const macroPrefix = "gcode_macro "

// MacroFilter hides macros by name and hides private ("_"-prefixed) macros
// unless ShowPrivate is set.
type MacroFilter struct {
	Hidden      []string
	ShowPrivate bool
}

// Macros returns every gcode macro name from the object list, upper-cased
// and sorted.
func (s Snapshot) Macros() []string {
	var out []string
	for _, obj := range s.Objects {
		if !strings.HasPrefix(obj, macroPrefix) {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(obj, macroPrefix))
		if name == "" {
			continue
		}
		out = append(out, strings.ToUpper(name))
	}
	sort.Strings(out)
	return out
}

// VisibleMacros applies f to Macros.
func (s Snapshot) VisibleMacros(f MacroFilter) []string {
	hidden := make(map[string]struct{}, len(f.Hidden))
	for _, h := range f.Hidden {
		hidden[strings.ToUpper(strings.TrimSpace(h))] = struct{}{}
	}
	var out []string
	for _, m := range s.Macros() {
		if _, ok := hidden[m]; ok {
			continue
		}
		if !f.ShowPrivate && strings.HasPrefix(m, "_") {
			continue
		}
		out = append(out, m)
	}
	return out
}
