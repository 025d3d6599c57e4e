package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"zonewatch/zone"
)

// QueueSize is the number of items a Notifier buffers for its sender.
const QueueSize = 64

type item struct{ key, value string }

// Notifier turns zone signals and recording events into telemetry items,
// console log lines and metric updates. Items are queued and delivered by a
// single worker with a per-item timeout, so callers never wait on the
// sender. When the queue is full the item is dropped and counted.
type Notifier struct {
	sender  Sender
	log     *slog.Logger
	metrics *Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}
}

// NewNotifier returns a Notifier and starts its delivery worker. sender and
// metrics may be nil.
func NewNotifier(sender Sender, metrics *Metrics, timeout time.Duration, log *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	n := &Notifier{
		sender:  sender,
		log:     log.With("component", "notify"),
		metrics: metrics,
		timeout: timeout,
		queue:   make(chan item, QueueSize),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.done)
	for it := range n.queue {
		n.deliver(it.key, it.value)
	}
}

// Close stops accepting items and waits until the queued ones are delivered
// or ctx is done.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify implements zone.Notifier.
func (n *Notifier) Notify(name string, sig zone.Signal) {
	n.log.Info(glyph(sig)+" ["+name+"]", "zone", name, "signal", sig.String())
	if n.metrics != nil {
		n.metrics.ZonePhase.WithLabelValues(name).Set(float64(phaseOf(sig)))
	}

	switch sig {
	case zone.SignalMonitoring, zone.SignalStillMonitoring:
		n.Publish(ZoneKey(KeyMonitoringActive, name), "1")
	case zone.SignalActive:
		n.Publish(ZoneKey(KeyRecordingActive, name), "1")
	case zone.SignalCooldown:
		n.Publish(ZoneKey(KeyMonitoringActive, name), "0")
	case zone.SignalInactive:
		n.Publish(ZoneKey(KeyMonitoringActive, name), "0")
		n.Publish(ZoneKey(KeyRecordingActive, name), "0")
	case zone.SignalContinuing:
	}
}

// Publish queues one item without blocking.
func (n *Notifier) Publish(key, value string) {
	if n.sender == nil {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- item{key, value}:
	default:
		n.log.Warn("telemetry queue full, item dropped", "key", key, "value", value)
		if n.metrics != nil {
			n.metrics.TelemetryDrops.Inc()
		}
	}
}

func (n *Notifier) deliver(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	err := n.sender.Send(ctx, key, value)
	if err == nil {
		return
	}
	n.log.Warn("telemetry delivery failed", "key", key, "value", value, "error", err)
	if n.metrics == nil {
		return
	}
	var se *SendError
	if errs, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range errs.Unwrap() {
			if errors.As(e, &se) {
				n.metrics.TelemetryErrors.WithLabelValues(se.Sender).Inc()
			}
		}
		return
	}
	if errors.As(err, &se) {
		n.metrics.TelemetryErrors.WithLabelValues(se.Sender).Inc()
		return
	}
	n.metrics.TelemetryErrors.WithLabelValues(n.sender.Name()).Inc()
}

// RecordingStopped logs the end of a recording and publishes it.
func (n *Notifier) RecordingStopped(episode string, frames int) {
	n.log.Info("-X XX", "episode", episode, "frames", frames)
	n.Publish(KeyRecording, "0")
}

// RecordingStarted logs and publishes the start of a recording.
func (n *Notifier) RecordingStarted(episode, file string, fps float64) {
	n.log.Info("-- -O recording", "episode", episode, "file", file, "fps", fps)
	n.Publish(KeyRecording, "1")
}

// ResetZones publishes 0 for every zone's items, clearing state left by a
// previous run.
func (n *Notifier) ResetZones(names []string) {
	for _, name := range names {
		n.Publish(ZoneKey(KeyRecordingActive, name), "0")
		n.Publish(ZoneKey(KeyMonitoringActive, name), "0")
		if n.metrics != nil {
			n.metrics.ZonePhase.WithLabelValues(name).Set(float64(zone.Inactive))
		}
	}
}

func glyph(sig zone.Signal) string {
	switch sig {
	case zone.SignalMonitoring, zone.SignalStillMonitoring:
		return "->   "
	case zone.SignalActive:
		return "-- -O"
	case zone.SignalCooldown:
		return "-- --"
	case zone.SignalInactive:
		return "-X   "
	case zone.SignalContinuing:
		return "-- ->"
	default:
		return "?    "
	}
}

func phaseOf(sig zone.Signal) zone.Phase {
	switch sig {
	case zone.SignalMonitoring, zone.SignalStillMonitoring:
		return zone.Monitor
	case zone.SignalActive:
		return zone.Active
	case zone.SignalCooldown:
		return zone.Cooldown
	case zone.SignalContinuing:
		return zone.Continuation
	case zone.SignalInactive:
		return zone.Inactive
	default:
		return zone.Inactive
	}
}
