package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/zone"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type sent struct{ key, value string }

type fakeSender struct {
	name  string
	items []sent
	err   error
}

func (f *fakeSender) Name() string { return f.name }
func (f *fakeSender) Send(_ context.Context, key, value string) error {
	f.items = append(f.items, sent{key, value})
	return f.err
}
func (f *fakeSender) Close() error { return nil }

// hungSender blocks every send until its context expires.
type hungSender struct{ calls atomic.Int32 }

func (h *hungSender) Name() string { return "hung" }
func (h *hungSender) Send(ctx context.Context, _, _ string) error {
	h.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}
func (h *hungSender) Close() error { return nil }

// gateSender blocks until gate is closed.
type gateSender struct {
	gate chan struct{}
	sent atomic.Int32
}

func (g *gateSender) Name() string { return "gate" }
func (g *gateSender) Send(ctx context.Context, _, _ string) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.sent.Add(1)
	return nil
}
func (g *gateSender) Close() error { return nil }

// flush waits for every queued item to be delivered.
func flush(t *testing.T, n *Notifier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Close(ctx))
}

func TestZoneKey(t *testing.T) {
	assert.Equal(t, "recording-active.front_door", ZoneKey(KeyRecordingActive, " Front Door "))
	assert.Equal(t, "monitoring-active.drive", ZoneKey(KeyMonitoringActive, "Drive"))
}

func TestMultiSendsToAll(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b", err: errors.New("down")}
	m := Multi{a, b}

	err := m.Send(context.Background(), "k", "v")
	require.Error(t, err)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.Sender)
	assert.Equal(t, []sent{{"k", "v"}}, a.items)
	assert.Equal(t, []sent{{"k", "v"}}, b.items)
	assert.Equal(t, "a,b", m.Name())
	assert.NoError(t, m.Close())
}

func TestNotifierSignalsToItems(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier(s, nil, time.Second, quiet())

	n.Notify("Drive", zone.SignalMonitoring)
	n.Notify("Drive", zone.SignalActive)
	n.Notify("Drive", zone.SignalCooldown)
	n.Notify("Drive", zone.SignalContinuing)
	n.Notify("Drive", zone.SignalInactive)
	flush(t, n)

	assert.Equal(t, []sent{
		{"monitoring-active.drive", "1"},
		{"recording-active.drive", "1"},
		{"monitoring-active.drive", "0"},
		{"monitoring-active.drive", "0"},
		{"recording-active.drive", "0"},
	}, s.items)
}

func TestNotifierResetZones(t *testing.T) {
	s := &fakeSender{name: "fake"}
	m := NewMetrics(nil)
	n := NewNotifier(s, m, time.Second, quiet())

	n.ResetZones([]string{"Left", "Right"})
	flush(t, n)
	assert.Equal(t, []sent{
		{"recording-active.left", "0"},
		{"monitoring-active.left", "0"},
		{"recording-active.right", "0"},
		{"monitoring-active.right", "0"},
	}, s.items)
}

func TestNotifierCountsFailures(t *testing.T) {
	bad := &fakeSender{name: "zabbix", err: errors.New("refused")}
	m := NewMetrics(nil)
	n := NewNotifier(Multi{&fakeSender{name: "ok"}, bad}, m, time.Second, quiet())

	n.Notify("Drive", zone.SignalActive)
	n.RecordingStarted("ep", "x.avi", 10)
	flush(t, n)

	assert.Equal(t, 2.0, gather(t, m, "zonewatch_telemetry_errors_total", "zabbix"))
	assert.Equal(t, float64(zone.Active), gather(t, m, "zonewatch_zone_phase", "Drive"))
}

func TestNilSenderIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, 0, quiet())
	n.Notify("Drive", zone.SignalActive)
	n.RecordingStopped("ep", 3)
	flush(t, n)
}

func TestNotifyDoesNotWaitForSender(t *testing.T) {
	h := &hungSender{}
	m := NewMetrics(nil)
	n := NewNotifier(Multi{h, h}, m, 200*time.Millisecond, quiet())

	start := time.Now()
	n.Notify("Drive", zone.SignalInactive)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	flush(t, n)
	assert.Equal(t, int32(4), h.calls.Load())
	assert.Equal(t, 4.0, gather(t, m, "zonewatch_telemetry_errors_total", "hung"))
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	g := &gateSender{gate: make(chan struct{})}
	m := NewMetrics(nil)
	n := NewNotifier(g, m, 10*time.Second, quiet())

	total := QueueSize + 10
	for i := 0; i < total; i++ {
		n.Publish("k", "v")
	}
	dropped := gather(t, m, "zonewatch_telemetry_dropped_total", "")
	assert.GreaterOrEqual(t, dropped, 9.0)
	assert.LessOrEqual(t, dropped, 10.0)

	close(g.gate)
	flush(t, n)
	assert.Equal(t, float64(total), float64(g.sent.Load())+dropped)

	n.Publish("k", "late")
	assert.Equal(t, float64(total), float64(g.sent.Load())+dropped, "closed notifier ignores items")
}

func TestZabbixSenderArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "args")
	bin := filepath.Join(dir, "zabbix_sender")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + out + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	z := &ZabbixSender{Binary: bin, Server: "10.0.0.1", Host: "Front Camera"}
	require.NoError(t, z.Send(context.Background(), "recording-active.drive", "1"))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"-z", "10.0.0.1", "-s", "Front Camera", "-k", "recording-active.drive", "-o", "1"},
		strings.Split(strings.TrimSpace(string(got)), "\n"))
}

func TestZabbixSenderFailure(t *testing.T) {
	z := &ZabbixSender{Binary: filepath.Join(t.TempDir(), "missing")}
	assert.Error(t, z.Send(context.Background(), "k", "v"))
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTT struct {
	topic   string
	payload []byte
	block   bool
}

func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.payload = payload.([]byte)
	tok := &fakeToken{done: make(chan struct{})}
	if !f.block {
		close(tok.done)
	}
	return tok
}

func TestMQTTSender(t *testing.T) {
	pub := &fakeMQTT{}
	m := &MQTTSender{client: pub, topic: "zonewatch/events", source: "cam1"}

	require.NoError(t, m.Send(context.Background(), "latest-video-filename", "a.avi"))
	assert.Equal(t, "zonewatch/events/latest-video-filename", pub.topic)

	var item Item
	require.NoError(t, json.Unmarshal(pub.payload, &item))
	assert.Equal(t, "cam1", item.Source)
	assert.Equal(t, "a.avi", item.Value)
	assert.NoError(t, m.Close())
}

func TestMQTTSenderTimeout(t *testing.T) {
	m := &MQTTSender{client: &fakeMQTT{block: true}, topic: "t"}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Send(ctx, "k", "v"), context.DeadlineExceeded)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}
func (f *fakeWriter) Close() error { f.closed = true; return nil }

func TestKafkaSender(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaSender{w: w, source: "cam1"}

	require.NoError(t, k.Send(context.Background(), "recording", "1"))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "recording", string(w.msgs[0].Key))

	var item Item
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &item))
	assert.Equal(t, "1", item.Value)

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(func() float64 { return 7 })
	m.Frames.Add(3)
	assert.Equal(t, 3.0, gather(t, m, "zonewatch_frames_processed_total", ""))
	assert.Equal(t, 7.0, gather(t, m, "zonewatch_capture_frames_dropped_total", ""))
	assert.NotNil(t, m.Handler())
}

// gather returns the value of the metric with the given name whose first
// label (if any) equals label.
func gather(t *testing.T, m *Metrics, name, label string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if label != "" {
				if len(metric.GetLabel()) == 0 || metric.GetLabel()[0].GetValue() != label {
					continue
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}
