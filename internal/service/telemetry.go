package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"printerbot/internal/client"
	"printerbot/internal/config"
	"printerbot/internal/logger"
	"printerbot/internal/metrics"
	"printerbot/internal/printer"
)

const (
	followRetryDelay = 5 * time.Second
	klippyReady      = "ready"
)

// ErrKlippyNotReady is returned by Poll when the controller answers but the
// firmware host is not ready.
var ErrKlippyNotReady = errors.New("klippy not ready")

// TelemetryService feeds controller status into the printer state, either by
// polling or by following the websocket push feed.
type TelemetryService struct {
	ctrl    Controller
	state   *printer.State
	journal *Journal
	power   *PowerService
	metrics *metrics.Metrics
	filter  config.Status
	log     *logger.Logger
}

func NewTelemetryService(ctrl Controller, state *printer.State, journal *Journal, power *PowerService, m *metrics.Metrics, filter config.Status, log *logger.Logger) *TelemetryService {
	if log == nil {
		log = logger.Nop()
	}
	return &TelemetryService{
		ctrl:    ctrl,
		state:   state,
		journal: journal,
		power:   power,
		metrics: m,
		filter:  filter,
		log:     log.Named("telemetry"),
	}
}

// Run polls at the given interval until ctx is canceled.
func (t *TelemetryService) Run(ctx context.Context, tick time.Duration) {
	if err := t.Poll(ctx); err != nil {
		t.log.Warnw("poll_failed", "err", err)
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Poll(ctx); err != nil {
				t.log.Warnw("poll_failed", "err", err)
			}
		}
	}
}

// Poll performs one full refresh: liveness, object status and power devices.
func (t *TelemetryService) Poll(ctx context.Context) error {
	err := t.poll(ctx)
	t.metrics.PollDone(err == nil)
	t.metrics.ObserveSnapshot(t.state.Snapshot())
	return err
}

func (t *TelemetryService) poll(ctx context.Context) error {
	info, err := t.ctrl.PrinterInfo(ctx)
	if err != nil {
		_ = t.state.SetConnected(ctx, false)
		return fmt.Errorf("printer info: %w", err)
	}
	if info.State != klippyReady {
		_ = t.state.SetConnected(ctx, false)
		return fmt.Errorf("%w: %s", ErrKlippyNotReady, info.State)
	}
	if !t.state.Connected() {
		if err := t.state.SetConnected(ctx, true); err != nil {
			return err
		}
	}

	status, err := t.ctrl.QueryObjects(ctx, subscription(t.sensors()))
	if err != nil {
		return fmt.Errorf("query objects: %w", err)
	}
	t.Ingest(ctx, status)

	devices, err := t.ctrl.PowerDevices(ctx)
	if err != nil {
		// controllers without the power component answer 404
		t.log.Debugw("power_devices_unavailable", "err", err)
		return nil
	}
	for _, d := range devices {
		t.power.Reconcile(d)
	}
	return nil
}

func (t *TelemetryService) sensors() map[string]string {
	return sensorObjects(t.state.Objects(), t.filter)
}

// Ingest applies one object status payload. Job fields are applied before
// the phase so a phase change sees the file and progress it belongs to.
func (t *TelemetryService) Ingest(ctx context.Context, status client.ObjectStatus) {
	var (
		job   printer.JobUpdate
		stats client.PrintStats
	)
	hasStats := status.Decode("print_stats", &stats)
	if hasStats {
		if stats.State != nil {
			job.Phase = *stats.State
		}
		job.Filename = stats.Filename
		job.Progress.Elapsed = stats.PrintDuration
		job.Progress.FilamentUsed = stats.FilamentUsed
	}

	var vsd client.VirtualSD
	if status.Decode("virtual_sdcard", &vsd) {
		job.Progress.VSDProgress = vsd.Progress
	}

	var display client.DisplayStatus
	if status.Decode("display_status", &display) {
		job.Progress.Progress = display.Progress
		if display.Message != nil {
			t.state.SetDisplayMessage(*display.Message)
		}
	}

	var move client.GcodeMove
	if status.Decode("gcode_move", &move) && len(move.GcodePosition) >= 3 {
		z := move.GcodePosition[2]
		job.Progress.HeightMm = &z
	}
	t.state.UpdateJob(ctx, job)

	for obj, name := range t.sensors() {
		var s client.SensorStatus
		if !status.Decode(obj, &s) {
			continue
		}
		t.state.UpdateSensor(name, printer.SensorReading{
			Temperature: s.Temperature,
			Target:      s.Target,
			Power:       s.Power,
			Speed:       s.Speed,
			RPM:         s.RPM,
		})
	}

	t.journal.Observe(t.state.Snapshot())
	if hasStats && stats.State != nil {
		t.state.SetPhase(ctx, *stats.State)
	}
}

// Follow keeps a websocket subscription open until ctx is canceled,
// reconnecting after a fixed delay when the feed drops.
func (t *TelemetryService) Follow(ctx context.Context) {
	for {
		if !t.state.Connected() {
			// the object list drives the sensor subscription
			if err := t.Poll(ctx); err != nil {
				t.log.Warnw("poll_failed", "err", err)
			}
		}
		err := t.ctrl.Subscribe(ctx, subscription(t.sensors()), &feedHandler{ctx: ctx, t: t})
		if ctx.Err() != nil {
			return
		}
		t.log.Warnw("feed_dropped", "err", err, "retry_in", followRetryDelay.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(followRetryDelay):
		}
	}
}

// feedHandler adapts push notifications to the telemetry service.
type feedHandler struct {
	ctx context.Context
	t   *TelemetryService
}

func (h *feedHandler) StatusUpdate(status client.ObjectStatus) {
	h.t.Ingest(h.ctx, status)
	h.t.metrics.ObserveSnapshot(h.t.state.Snapshot())
}

func (h *feedHandler) PowerChanged(dev client.PowerDevice) {
	h.t.power.Reconcile(dev)
}

func (h *feedHandler) KlippyReady(ready bool) {
	if err := h.t.state.SetConnected(h.ctx, ready); err != nil {
		h.t.log.Warnw("klippy_ready_refresh_failed", "err", err)
	}
	h.t.metrics.ObserveSnapshot(h.t.state.Snapshot())
}
