// Package metrics exposes prometheus collectors for controller traffic,
// device commands, polling and the printer snapshot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"printerbot/internal/printer"
)

const namespace = "printerbot"

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
	auth           *prometheus.CounterVec
	deviceCommands *prometheus.CounterVec
	polls          *prometheus.CounterVec

	connected     prometheus.Gauge
	progress      prometheus.Gauge
	lastUpdate    prometheus.Gauge
	phase         *prometheus.GaugeVec
	sensorTemp    *prometheus.GaugeVec
	sensorTarget  *prometheus.GaugeVec
	powerDeviceOn *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_requests_total",
			Help:      "Controller HTTP requests by path and status code (0 = transport error)",
		}, []string{"path", "code"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "controller_request_duration_seconds",
			Help:      "Controller HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_auth_total",
			Help:      "Login and token refresh attempts",
		}, []string{"kind", "result"}),
		deviceCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Power device switch commands",
		}, []string{"device", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Status poll cycles",
		}, []string{"result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "printer_connected",
			Help:      "1 if the controller is reachable",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "printer_progress_ratio",
			Help:      "Current job progress (0-1)",
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "printer_last_update_timestamp_seconds",
			Help:      "Last state update (epoch seconds)",
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "printer_phase",
			Help:      "1 for the current job phase",
		}, []string{"phase"}),
		sensorTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_temperature_celsius",
			Help:      "Latest sensor temperature",
		}, []string{"sensor"}),
		sensorTarget: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_target_celsius",
			Help:      "Latest heater target",
		}, []string{"sensor"}),
		powerDeviceOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_device_on",
			Help:      "1 if the power device reports on",
		}, []string{"device"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestSeconds,
		m.auth,
		m.deviceCommands,
		m.polls,
		m.connected,
		m.progress,
		m.lastUpdate,
		m.phase,
		m.sensorTemp,
		m.sensorTarget,
		m.powerDeviceOn,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestDone records one controller round trip.
func (m *Metrics) RequestDone(path string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.requestSeconds.WithLabelValues(path).Observe(elapsed.Seconds())
}

// AuthAttempt records a login or refresh outcome.
func (m *Metrics) AuthAttempt(kind string, ok bool) {
	m.auth.WithLabelValues(kind, result(ok)).Inc()
}

// DeviceCommand records a power device command outcome.
func (m *Metrics) DeviceCommand(device string, ok bool) {
	m.deviceCommands.WithLabelValues(device, result(ok)).Inc()
}

// PollDone records one poll cycle.
func (m *Metrics) PollDone(ok bool) {
	m.polls.WithLabelValues(result(ok)).Inc()
}

// ObserveSnapshot mirrors the printer snapshot into gauges.
func (m *Metrics) ObserveSnapshot(snap printer.Snapshot) {
	m.connected.Set(boolGauge(snap.Connected))
	m.progress.Set(snap.Progress)
	if !snap.LastUpdate.IsZero() {
		m.lastUpdate.Set(float64(snap.LastUpdate.Unix()))
	}

	m.phase.Reset()
	m.phase.WithLabelValues(snap.Phase.String()).Set(1)

	for name, r := range snap.Sensors {
		if r.Temperature != nil {
			m.sensorTemp.WithLabelValues(name).Set(*r.Temperature)
		}
		if r.Target != nil {
			m.sensorTarget.WithLabelValues(name).Set(*r.Target)
		}
	}
	for name, r := range snap.PowerDevices {
		m.powerDeviceOn.WithLabelValues(name).Set(boolGauge(r.On()))
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
