// Package printer holds the live model of the printer: connectivity, job
// phase and progress, sensor and power device readings, and the controller's
// object list.
package printer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"printerbot/internal/client"
	"printerbot/internal/logger"
)

const metadataTimeout = 30 * time.Second

// ErrNotConnected is returned by operations that need the controller.
var ErrNotConnected = errors.New("controller not connected")

// Source supplies the controller data State fetches on its own.
// *client.Session implements it.
type Source interface {
	FileMetadata(ctx context.Context, filename string) (client.FileMetadata, error)
	ObjectsList(ctx context.Context) ([]string, error)
}

// Listener is notified after phase and connectivity changes. Calls are made
// without holding the state lock.
type Listener interface {
	PhaseChanged(from, to JobPhase, filename string)
	ConnectionChanged(connected bool)
}

// Snapshot is a deep copy of the state at one instant.
type Snapshot struct {
	Connected      bool                     `json:"connected"`
	Phase          JobPhase                 `json:"phase"`
	Filename       string                   `json:"filename,omitempty"`
	File           FileInfo                 `json:"file"`
	Progress       float64                  `json:"progress"`
	VSDProgress    float64                  `json:"vsd_progress"`
	Elapsed        float64                  `json:"elapsed_seconds"`
	HeightMm       float64                  `json:"height_mm"`
	FilamentUsed   float64                  `json:"filament_used_mm"`
	DisplayMessage string                   `json:"display_message,omitempty"`
	Sensors        map[string]SensorReading `json:"sensors"`
	PowerDevices   map[string]PowerReading  `json:"power_devices"`
	Objects        []string                 `json:"-"`
	LastUpdate     time.Time                `json:"last_update"`
}

// State is the guarded aggregate. All methods are safe for concurrent use.
type State struct {
	src      Source
	log      *logger.Logger
	listener Listener
	now      func() time.Time

	mu       sync.RWMutex
	snap     Snapshot
	fetching string
}

// Options configures New.
type Options struct {
	Log      *logger.Logger
	Listener Listener
}

// New returns a disconnected State.
func New(src Source, opts Options) *State {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &State{
		src:      src,
		log:      log.Named("printer"),
		listener: opts.Listener,
		now:      time.Now,
		snap: Snapshot{
			Phase:        PhaseStandby,
			Sensors:      map[string]SensorReading{},
			PowerDevices: map[string]PowerReading{},
		},
	}
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	out.Sensors = make(map[string]SensorReading, len(s.snap.Sensors))
	for k, v := range s.snap.Sensors {
		out.Sensors[k] = v.clone()
	}
	out.PowerDevices = make(map[string]PowerReading, len(s.snap.PowerDevices))
	for k, v := range s.snap.PowerDevices {
		out.PowerDevices[k] = v
	}
	out.Objects = append([]string(nil), s.snap.Objects...)
	return out
}

// Connected reports whether the controller is reachable and authenticated.
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Connected
}

// Phase returns the current job phase.
func (s *State) Phase() JobPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Phase
}

// SetConnected records a connectivity change. Disconnecting forces the
// standby phase, clears job fields and discards the object list.
// Reconnecting refreshes the object list first and only marks the state
// connected when that refresh succeeds.
func (s *State) SetConnected(ctx context.Context, connected bool) error {
	if connected {
		objects, err := s.src.ObjectsList(ctx)
		if err != nil {
			s.log.Warnw("objects_refresh_failed", "err", err)
			return fmt.Errorf("refresh objects: %w", err)
		}
		s.mu.Lock()
		was := s.snap.Connected
		s.snap.Connected = true
		s.snap.Objects = append([]string(nil), objects...)
		s.touch()
		s.mu.Unlock()
		if !was {
			s.notifyConnection(true)
		}
		return nil
	}

	s.mu.Lock()
	was := s.snap.Connected
	from := s.snap.Phase
	s.snap.Connected = false
	s.snap.Phase = PhaseStandby
	s.clearJobLocked()
	s.snap.Objects = nil
	s.touch()
	s.mu.Unlock()

	if was {
		s.notifyConnection(false)
	}
	if from != PhaseStandby {
		s.notifyPhase(from, PhaseStandby, "")
	}
	return nil
}

// RefreshObjects replaces the object list wholesale.
func (s *State) RefreshObjects(ctx context.Context) error {
	objects, err := s.src.ObjectsList(ctx)
	if err != nil {
		return fmt.Errorf("refresh objects: %w", err)
	}
	s.mu.Lock()
	s.snap.Objects = append([]string(nil), objects...)
	s.mu.Unlock()
	return nil
}

// SetPhase applies a controller job state string. Unknown strings are logged
// and ignored.
func (s *State) SetPhase(ctx context.Context, raw string) {
	phase, ok := ParsePhase(raw)
	if !ok {
		s.log.Warnw("unknown_job_phase", "state", raw)
		return
	}

	s.mu.Lock()
	from := s.snap.Phase
	if from == phase {
		s.mu.Unlock()
		return
	}
	s.snap.Phase = phase
	if from.Active() && !phase.Active() {
		s.clearJobLocked()
	}
	filename := s.snap.Filename
	fetch := s.needsMetadataLocked()
	s.touch()
	s.mu.Unlock()

	s.log.Infow("job_phase_changed", "from", from, "to", phase, "file", filename)
	s.notifyPhase(from, phase, filename)
	if fetch != "" {
		go s.fetchMetadata(ctx, fetch)
	}
}

// SetFilename records the file the controller reports for the current job.
// It is ignored unless a job is printing or paused.
func (s *State) SetFilename(ctx context.Context, filename string) {
	s.UpdateJob(ctx, JobUpdate{Filename: &filename})
}

// JobUpdate is the job part of one controller status payload. Phase is the
// raw job state the same payload reports, empty when it reports none.
type JobUpdate struct {
	Phase    string
	Filename *string
	Progress ProgressUpdate
}

// UpdateJob merges the file name and progress of u. The controller keeps
// reporting the last job after it ends, so the fields are only taken while
// the current phase or the phase u reports is printing or paused. A printing
// job without metadata starts a fetch, so a failed fetch is retried by the
// next update.
func (s *State) UpdateJob(ctx context.Context, u JobUpdate) {
	next, known := ParsePhase(u.Phase)

	s.mu.Lock()
	if !s.snap.Phase.Active() && !(known && next.Active()) {
		s.mu.Unlock()
		return
	}
	if u.Filename != nil && s.snap.Filename != *u.Filename {
		s.snap.Filename = *u.Filename
		if s.snap.File.Loaded() && s.snap.File.Name != *u.Filename {
			s.snap.File = FileInfo{}
		}
	}
	s.mergeProgressLocked(u.Progress)
	fetch := s.needsMetadataLocked()
	s.mu.Unlock()

	if fetch != "" {
		go s.fetchMetadata(ctx, fetch)
	}
}

// needsMetadataLocked returns the filename to fetch, or "" when no fetch is
// needed, and marks the fetch in flight.
func (s *State) needsMetadataLocked() string {
	if s.snap.Phase != PhasePrinting || s.snap.File.Loaded() || s.snap.Filename == "" {
		return ""
	}
	if s.fetching == s.snap.Filename {
		return ""
	}
	s.fetching = s.snap.Filename
	return s.fetching
}

func (s *State) fetchMetadata(ctx context.Context, filename string) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if err := s.SetPrintingFile(ctx, filename); err != nil {
		s.log.Warnw("file_metadata_failed", "file", filename, "err", err)
	}
}

// SetPrintingFile fetches metadata for filename and installs it as the
// current file in one step. On failure the current file is left empty.
func (s *State) SetPrintingFile(ctx context.Context, filename string) error {
	meta, err := s.src.FileMetadata(ctx, filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetching == filename {
		s.fetching = ""
	}
	if err != nil {
		return err
	}
	if s.snap.Filename != "" && s.snap.Filename != filename {
		// the job moved on while the fetch was in flight
		return nil
	}
	if s.snap.Phase != PhasePrinting && s.snap.Phase != PhasePaused {
		return nil
	}

	s.snap.Filename = filename
	s.snap.File = fileInfoFrom(filename, meta, s.now(), s.log)
	s.touch()
	return nil
}

func fileInfoFrom(filename string, meta client.FileMetadata, now time.Time, log *logger.Logger) FileInfo {
	value := func(key string, v *float64, fallback float64) float64 {
		if v == nil {
			log.Errorw("file_metadata_missing_key", "file", filename, "key", key)
			return fallback
		}
		return *v
	}
	meta.Filename = filename
	return FileInfo{
		Name:           filename,
		EstimatedTime:  value("estimated_time", meta.EstimatedTime, 0),
		PrintStartTime: value("print_start_time", meta.PrintStartTime, float64(now.Unix())),
		FilamentTotal:  value("filament_total", meta.FilamentTotal, 0),
		FilamentWeight: value("filament_weight_total", meta.FilamentWeightTotal, 0),
		ThumbnailPath:  meta.LargestThumbnail(),
	}
}

// UpdateProgress merges the present fields into the job progress. It is
// ignored unless a job is printing or paused.
func (s *State) UpdateProgress(u ProgressUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.Phase.Active() {
		return
	}
	s.mergeProgressLocked(u)
}

func (s *State) mergeProgressLocked(u ProgressUpdate) {
	if u.Progress != nil {
		s.snap.Progress = clampFraction(*u.Progress)
	}
	if u.VSDProgress != nil {
		s.snap.VSDProgress = clampFraction(*u.VSDProgress)
	}
	if u.Elapsed != nil {
		s.snap.Elapsed = *u.Elapsed
	}
	if u.HeightMm != nil {
		s.snap.HeightMm = *u.HeightMm
	}
	if u.FilamentUsed != nil {
		s.snap.FilamentUsed = *u.FilamentUsed
	}
	s.touch()
}

// SetDisplayMessage stores the M117 display text.
func (s *State) SetDisplayMessage(msg string) {
	s.mu.Lock()
	s.snap.DisplayMessage = msg
	s.mu.Unlock()
}

// UpdateSensor merges u into the reading for name, creating it on first use.
func (s *State) UpdateSensor(name string, u SensorReading) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.snap.Sensors[name]
	r.merge(u)
	s.snap.Sensors[name] = r
	s.touch()
}

// UpdatePowerDevice merges u into the reading for name, creating it on first
// use.
func (s *State) UpdatePowerDevice(name string, u PowerUpdate) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.snap.PowerDevices[name]
	r.merge(u)
	s.snap.PowerDevices[name] = r
	s.touch()
}

// Objects returns the controller's object list.
func (s *State) Objects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.snap.Objects...)
}

// ObjectsWithPrefix returns the objects whose type prefix matches, sorted.
func (s *State) ObjectsWithPrefix(prefixes ...string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, obj := range s.snap.Objects {
		for _, p := range prefixes {
			if obj == p || strings.HasPrefix(obj, p+" ") {
				out = append(out, obj)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// clearJobLocked resets the current file and all job progress fields.
func (s *State) clearJobLocked() {
	s.snap.Filename = ""
	s.snap.File = FileInfo{}
	s.snap.Progress = 0
	s.snap.VSDProgress = 0
	s.snap.Elapsed = 0
	s.snap.HeightMm = 0
	s.snap.FilamentUsed = 0
	s.fetching = ""
}

func (s *State) touch() {
	s.snap.LastUpdate = s.now()
}

func (s *State) notifyPhase(from, to JobPhase, filename string) {
	if s.listener != nil {
		s.listener.PhaseChanged(from, to, filename)
	}
}

func (s *State) notifyConnection(connected bool) {
	if s.listener != nil {
		s.listener.ConnectionChanged(connected)
	}
}

func clampFraction(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
