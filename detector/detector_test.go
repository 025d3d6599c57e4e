package detector

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonewatch/api"
	"zonewatch/capture"
	"zonewatch/config"
	"zonewatch/events"
	"zonewatch/reference"
	"zonewatch/types"
	"zonewatch/utils"
	"zonewatch/zone"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// scriptSource replays frames; "" yields ErrEmpty once.
type scriptSource struct {
	frames []string
	i      int
}

func (s *scriptSource) Take() (string, error) {
	if s.i >= len(s.frames) {
		return "", capture.ErrClosed
	}
	f := s.frames[s.i]
	s.i++
	if f == "" {
		return "", capture.ErrEmpty
	}
	return f, nil
}

type fakeVision struct {
	current        string
	blends, rekeys int
}

func (v *fakeVision) Advance(f string) { v.current = f }
func (v *fakeVision) Blend()           { v.blends++ }
func (v *fakeVision) Rekey()           { v.rekeys++ }

func (v *fakeVision) Contours() []utils.Box {
	if v.current == "hit" {
		return []utils.Box{{X: 40, Y: 40, Width: 20, Height: 20, Area: 400}, {X: 300, Y: 300, Width: 5, Height: 5}}
	}
	return nil
}

type recorder struct {
	opened, closed int
	written        []string
}

func (r *recorder) Open(string, float64, string) error { r.opened++; return nil }
func (r *recorder) Write(f string) error               { r.written = append(r.written, f); return nil }
func (r *recorder) Close() error                       { r.closed++; return nil }

type snapshots struct{ paths []string }

func (s *snapshots) Save(path, _ string) error { s.paths = append(s.paths, path); return nil }

type publisher struct{ items []string }

func (p *publisher) Publish(key, value string)                { p.items = append(p.items, key+"="+value) }
func (p *publisher) RecordingStarted(string, string, float64) {}
func (p *publisher) RecordingStopped(string, int)             {}

type scriptOverlay struct {
	keys  map[int]int
	shown int
	last  View
}

func (o *scriptOverlay) Show(_ string, v View) int {
	o.shown++
	o.last = v
	if k, ok := o.keys[o.shown]; ok {
		return k
	}
	return -1
}

type toggler struct{ n int }

func (t *toggler) Toggle() bool { t.n++; return t.n%2 == 1 }

type fixture struct {
	det    *Detector[string]
	vision *fakeVision
	rec    *recorder
	snaps  *snapshots
	state  *types.RunState
	board  *api.Board
}

func newFixture(t *testing.T, src Source[string], overlay Overlay[string], tail Toggler) *fixture {
	t.Helper()
	cfg := &config.File{Zones: config.ZoneList{{
		Name:         "Drive",
		Points:       []config.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}},
		MinimumX:     10,
		MinimumY:     10,
		Warmup:       2,
		Cooldown:     3,
		Continuation: 2,
	}}}
	require.NoError(t, config.Validate(cfg))

	clock := time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(100 * time.Millisecond)
		return clock
	}

	f := &fixture{
		vision: &fakeVision{},
		rec:    &recorder{},
		snaps:  &snapshots{},
		state:  &types.RunState{},
		board:  api.NewBoard(),
	}
	sink := events.New[string](events.Options{FilenameLayout: "motion_15-04-05", DirLayout: "out"},
		f.rec, f.snaps, nil, &publisher{}, nil, quiet())

	f.det = New(Deps[string]{
		Source:     src,
		Vision:     f.vision,
		Zones:      zone.NewSet(cfg, 1, nil),
		Sink:       sink,
		Reference:  reference.Schedule{MaxHitSeconds: 1, Cadence: 4 * time.Second},
		Counter:    capture.NewCounter(time.Hour, nil),
		Board:      f.board,
		Overlay:    overlay,
		LogTail:    tail,
		DefaultFPS: 10,
		Idle:       time.Millisecond,
		Now:        now,
		Log:        quiet(),
	}, f.state)
	return f
}

func repeat(frame string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = frame
	}
	return out
}

func TestWarmupAndCooldownDriveRecording(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	for i := 1; i < 20; i++ {
		f.det.Step("hit")
		require.False(t, f.state.Recording, "frame %d", i)
	}
	f.det.Step("hit")
	require.True(t, f.state.Recording, "recording starts on the activating frame")
	assert.Len(t, f.snaps.paths, 1)

	for i := 1; i < 30; i++ {
		f.det.Step("miss")
		require.True(t, f.state.Recording, "miss %d", i)
	}
	f.det.Step("miss")
	assert.False(t, f.state.Recording, "recording stops once every zone is inactive")

	assert.Equal(t, 1, f.rec.opened)
	assert.Equal(t, 1, f.rec.closed)
	assert.Len(t, f.rec.written, 30)
	assert.Equal(t, uint64(50), f.state.Frames)

	// 1s at 10fps: one rekey per 10 recorded frames.
	assert.Equal(t, 3, f.vision.rekeys)
}

func TestBoardPublishedEveryFrame(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.det.Step("hit")

	s, ok := f.board.Get()
	require.True(t, ok)
	require.Len(t, s.Zones, 1)
	assert.Equal(t, "monitor", s.Zones[0].PhaseName)
	assert.Equal(t, 10.0, s.FPS)
	assert.Equal(t, uint64(1), s.Frames)
}

func TestRunClosesRecordingWhenSourceEnds(t *testing.T) {
	frames := append([]string{""}, repeat("hit", 25)...)
	f := newFixture(t, &scriptSource{frames: frames}, nil, nil)

	require.NoError(t, f.det.Run(context.Background()))
	assert.Equal(t, 1, f.rec.opened)
	assert.Equal(t, 1, f.rec.closed)
	assert.False(t, f.state.Recording)
	assert.Equal(t, uint64(25), f.state.Frames)
}

type emptySource struct{}

func (emptySource) Take() (string, error) { return "", capture.ErrEmpty }

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, emptySource{}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.det.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOverlayKeys(t *testing.T) {
	overlay := &scriptOverlay{keys: map[int]int{1: 'p', 2: 'd', 3: 'i', 4: 'q'}}
	tail := &toggler{}
	f := newFixture(t, &scriptSource{frames: repeat("hit", 10)}, overlay, tail)

	require.NoError(t, f.det.Run(context.Background()))
	assert.Equal(t, 4, overlay.shown, "q stops the loop")
	assert.Equal(t, uint64(4), f.state.Frames)
	require.Len(t, f.snaps.paths, 1, "p writes a manual snapshot")
	assert.Contains(t, f.snaps.paths[0], "_manual.jpg")
	assert.Empty(t, f.state.LastSnapshot)
	assert.Equal(t, 1, tail.n)

	require.Len(t, overlay.last.Polygons, 1)
	assert.Len(t, overlay.last.Boxes, 2)
	assert.Equal(t, "monitor", overlay.last.Zones[0].PhaseName)
}
