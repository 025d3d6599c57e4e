package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the detector's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ZonePhase       *prometheus.GaugeVec
	Recording       prometheus.Gauge
	Frames          prometheus.Counter
	Rekeys          prometheus.Counter
	Snapshots       prometheus.Counter
	Recordings      prometheus.Counter
	WriteErrors     prometheus.Counter
	TelemetryErrors *prometheus.CounterVec
	TelemetryDrops  prometheus.Counter
	UploadErrors    prometheus.Counter
	FPS             prometheus.Gauge
}

// NewMetrics creates and registers all collectors. dropped, if non-nil, is
// sampled for the capture drop count.
func NewMetrics(dropped func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ZonePhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zonewatch_zone_phase",
			Help: "Zone phase: 0 inactive, 1 monitor, 2 active, 3 cooldown, 4 continuation",
		}, []string{"zone"}),
		Recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zonewatch_recording_active",
			Help: "1 while a recording is open",
		}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonewatch_frames_processed_total",
			Help: "Frames run through the zone state machines",
		}),
		Rekeys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonewatch_reference_rekeys_total",
			Help: "Forced reference frame rekeys",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonewatch_snapshots_total",
			Help: "Snapshots written",
		}),
		Recordings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonewatch_recordings_total",
			Help: "Recordings opened",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonewatch_write_errors_total",
			Help: "Failed snapshot or recording writes",
		}),
		TelemetryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonewatch_telemetry_errors_total",
			Help: "Failed telemetry deliveries by sender",
		}, []string{"sender"}),
		TelemetryDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonewatch_telemetry_dropped_total",
			Help: "Telemetry items dropped because the delivery queue was full",
		}),
		UploadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zonewatch_upload_errors_total",
			Help: "Failed remote uploads",
		}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zonewatch_capture_fps",
			Help: "Measured capture frame rate",
		}),
	}

	m.registry.MustRegister(
		m.ZonePhase, m.Recording, m.Frames, m.Rekeys, m.Snapshots, m.Recordings,
		m.WriteErrors, m.TelemetryErrors, m.TelemetryDrops, m.UploadErrors, m.FPS,
	)
	if dropped != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "zonewatch_capture_frames_dropped_total",
			Help: "Captured frames overwritten before the frame loop took them",
		}, dropped))
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SnapshotWritten counts a written snapshot.
func (m *Metrics) SnapshotWritten() { m.Snapshots.Inc() }

// RecordingOpened counts a recording and marks it open.
func (m *Metrics) RecordingOpened() {
	m.Recordings.Inc()
	m.Recording.Set(1)
}

// RecordingClosed marks the recording closed.
func (m *Metrics) RecordingClosed() { m.Recording.Set(0) }

// WriteFailed counts a failed snapshot or recording write.
func (m *Metrics) WriteFailed() { m.WriteErrors.Inc() }
