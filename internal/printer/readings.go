package printer

// SensorReading is the latest telemetry for a heater, sensor or fan. Nil
// fields were never reported.
type SensorReading struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Target      *float64 `json:"target,omitempty"`
	Power       *float64 `json:"power,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
	RPM         *float64 `json:"rpm,omitempty"`
}

// merge overwrites only the fields present in u.
func (r *SensorReading) merge(u SensorReading) {
	if u.Temperature != nil {
		r.Temperature = copyFloat(u.Temperature)
	}
	if u.Target != nil {
		r.Target = copyFloat(u.Target)
	}
	if u.Power != nil {
		r.Power = copyFloat(u.Power)
	}
	if u.Speed != nil {
		r.Speed = copyFloat(u.Speed)
	}
	if u.RPM != nil {
		r.RPM = copyFloat(u.RPM)
	}
}

func (r SensorReading) clone() SensorReading {
	return SensorReading{
		Temperature: copyFloat(r.Temperature),
		Target:      copyFloat(r.Target),
		Power:       copyFloat(r.Power),
		Speed:       copyFloat(r.Speed),
		RPM:         copyFloat(r.RPM),
	}
}

// PowerReading is the telemetry view of a power device.
type PowerReading struct {
	Status              string `json:"status"`
	LockedWhilePrinting bool   `json:"locked_while_printing"`
	Type                string `json:"type"`
	IsShutdown          bool   `json:"is_shutdown"`
}

// PowerUpdate is a partial PowerReading.
type PowerUpdate struct {
	Status              *string
	LockedWhilePrinting *bool
	Type                *string
	IsShutdown          *bool
}

func (r *PowerReading) merge(u PowerUpdate) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.LockedWhilePrinting != nil {
		r.LockedWhilePrinting = *u.LockedWhilePrinting
	}
	if u.Type != nil {
		r.Type = *u.Type
	}
	if u.IsShutdown != nil {
		r.IsShutdown = *u.IsShutdown
	}
}

// On reports whether the device status is "on".
func (r PowerReading) On() bool { return r.Status == "on" }

// ProgressUpdate is a partial update of the job progress fields.
type ProgressUpdate struct {
	Progress     *float64
	VSDProgress  *float64
	Elapsed      *float64
	HeightMm     *float64
	FilamentUsed *float64
}

// FileInfo is the metadata of the file being printed. It is either fully
// populated from one metadata fetch or the zero value.
type FileInfo struct {
	Name           string  `json:"name"`
	EstimatedTime  float64 `json:"estimated_time"`
	PrintStartTime float64 `json:"print_start_time"`
	FilamentTotal  float64 `json:"filament_total"`
	FilamentWeight float64 `json:"filament_weight"`
	ThumbnailPath  string  `json:"thumbnail_path"`
}

// Loaded reports whether metadata is present.
func (f FileInfo) Loaded() bool { return f.Name != "" }

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v, for building updates.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for building updates.
func String(v string) *string { return &v }
