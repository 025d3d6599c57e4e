// Package reference decides how the motion baseline follows the scene.
//
// Every frame the baseline is either left alone, blended toward the current
// frame, or replaced outright (a rekey). While a recording is open the
// baseline tracks every frame and is rekeyed once per maximum recording
// span, so a long event cannot drift the baseline far enough to hide itself
// or to keep the recording open forever. When idle it blends on a
// wall-clock cadence.
package reference

import (
	"log/slog"
	"math"
	"time"
)

// Action is what happens to the baseline for one frame.
type Action int

const (
	Keep Action = iota
	Blend
	Rekey
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case Blend:
		return "blend"
	case Rekey:
		return "rekey"
	default:
		return "unknown"
	}
}

// Schedule is the pure decision policy.
type Schedule struct {
	// MaxHitSeconds is the recording span after which the baseline is rekeyed.
	MaxHitSeconds float64
	// Cadence is the wall-clock blend period. Blending happens on every frame
	// whose second is a multiple of it; below one second every frame blends.
	// While recording the cadence blend comes on top of the per-frame action.
	Cadence time.Duration
}

// RekeyInterval is the number of recorded frames between rekeys at the given
// recording rate. Zero disables rekeying.
func (s Schedule) RekeyInterval(fps float64) int {
	n := math.Floor(s.MaxHitSeconds * fps)
	if n < 1 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int(n)
}

// Decide returns the action for a frame. recordedFrames counts the frames
// written to the open recording including this one.
func (s Schedule) Decide(recording bool, recordedFrames int, fps float64, now time.Time) Action {
	if recording {
		if n := s.RekeyInterval(fps); n > 0 && recordedFrames > 0 && recordedFrames%n == 0 {
			return Rekey
		}
		return Blend
	}

	if s.Tick(now) {
		return Blend
	}
	return Keep
}

// Tick reports whether now falls on a cadence second.
func (s Schedule) Tick(now time.Time) bool {
	secs := int(s.Cadence / time.Second)
	return secs <= 1 || now.Second()%secs == 0
}

// Updater applies actions to the actual baseline image.
type Updater interface {
	Blend()
	Rekey()
}

// Manager owns the schedule and applies it to an Updater.
type Manager struct {
	schedule Schedule
	updater  Updater
	log      *slog.Logger
	onRekey  func()
	rekeys   int
}

// NewManager returns a Manager driving u. log may be nil.
func NewManager(s Schedule, u Updater, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{schedule: s, updater: u, log: log.With("component", "reference")}
}

// OnRekey registers a hook called after every forced rekey.
func (m *Manager) OnRekey(fn func()) { m.onRekey = fn }

// Rekeys returns the number of forced rekeys so far.
func (m *Manager) Rekeys() int { return m.rekeys }

// Step decides and applies the action for one frame.
func (m *Manager) Step(recording bool, recordedFrames int, fps float64, now time.Time) Action {
	a := m.schedule.Decide(recording, recordedFrames, fps, now)
	switch a {
	case Rekey:
		m.log.Info("forcing rekey of reference frame", "recorded_frames", recordedFrames)
		m.updater.Rekey()
		m.rekeys++
		if m.onRekey != nil {
			m.onRekey()
		}
	case Blend:
		m.updater.Blend()
	case Keep:
	}
	if recording && m.schedule.Tick(now) {
		m.updater.Blend()
	}
	return a
}
