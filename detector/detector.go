// Package detector runs the frame loop: take the newest frame, find motion,
// drive every zone, apply side effects and update the motion baseline.
//
// All zone state, the run state, recording and notifications are touched
// only from the goroutine calling Run.
package detector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zonewatch/api"
	"zonewatch/capture"
	"zonewatch/events"
	"zonewatch/input"
	"zonewatch/reference"
	"zonewatch/telemetry"
	"zonewatch/types"
	"zonewatch/utils"
	"zonewatch/zone"
)

// Source yields the newest captured frame. It returns capture.ErrEmpty when
// nothing new is available and capture.ErrClosed once the source has ended.
type Source[F any] interface {
	Take() (F, error)
}

// Vision extracts motion from frames and maintains the baseline.
type Vision[F any] interface {
	// Advance installs f as the current frame and takes ownership of it.
	Advance(f F)
	// Contours returns motion boxes of the current frame in analysis coordinates.
	Contours() []utils.Box
	reference.Updater
}

// View is what the debug overlay shows for one frame.
type View struct {
	Boxes     []utils.Box
	Zones     []zone.Status
	Polygons  []utils.Polygon
	FPS       float64
	Recording bool
	Now       time.Time
}

// Overlay renders the debug view and returns the pressed key, or -1.
type Overlay[F any] interface {
	Show(frame F, v View) int
}

// Toggler switches the on-screen log.
type Toggler interface {
	Toggle() bool
}

// Deps are the detector's collaborators. Board, Metrics, Overlay and LogTail
// are optional.
type Deps[F any] struct {
	Source    Source[F]
	Vision    Vision[F]
	Zones     *zone.Set
	Sink      *events.Sink[F]
	Reference reference.Schedule
	Counter   *capture.Counter

	Board   *api.Board
	Metrics *telemetry.Metrics
	Overlay Overlay[F]
	LogTail Toggler

	// DefaultFPS is handed to zones until the counter has a rate.
	DefaultFPS float64
	// Idle is the wait between polls of an empty source.
	Idle time.Duration
	Now  func() time.Time
	Log  *slog.Logger
}

// Detector is the frame orchestrator.
type Detector[F any] struct {
	d     Deps[F]
	ref   *reference.Manager
	state *types.RunState
	log   *slog.Logger
}

// New builds a detector operating on state.
func New[F any](d Deps[F], state *types.RunState) *Detector[F] {
	if d.Idle <= 0 {
		d.Idle = 10 * time.Millisecond
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Counter == nil {
		d.Counter = capture.NewCounter(time.Second, d.Now)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	log := d.Log.With("component", "detector")

	ref := reference.NewManager(d.Reference, d.Vision, d.Log)
	if d.Metrics != nil {
		ref.OnRekey(d.Metrics.Rekeys.Inc)
	}
	return &Detector[F]{d: d, ref: ref, state: state, log: log}
}

// Run processes frames until ctx is cancelled, the source ends or the
// operator quits from the debug window. An open recording is closed on the
// way out.
func (det *Detector[F]) Run(ctx context.Context) error {
	det.d.Counter.Start()
	for {
		select {
		case <-ctx.Done():
			det.log.Info("stopping", "reason", ctx.Err())
			return det.finish()
		default:
		}

		f, err := det.d.Source.Take()
		switch {
		case errors.Is(err, capture.ErrEmpty):
			select {
			case <-ctx.Done():
			case <-time.After(det.d.Idle):
			}
			continue
		case errors.Is(err, capture.ErrClosed):
			det.log.Info("video source ended", "frames", det.state.Frames)
			return det.finish()
		case err != nil:
			return err
		}

		if det.Step(f) {
			det.log.Info("quit requested")
			return det.finish()
		}
	}
}

// Step processes one frame. It returns true when the operator asked to quit.
func (det *Detector[F]) Step(f F) bool {
	now := det.d.Now()

	det.d.Vision.Advance(f)
	det.d.Counter.Update()
	fps := det.d.Counter.FPSOr(det.d.DefaultFPS)

	boxes := det.d.Vision.Contours()
	sum := det.d.Zones.Process(boxes, fps)
	det.state.Frames++

	if err := det.d.Sink.Handle(det.state, sum, f, fps, now); err != nil {
		det.log.Error("frame side effects failed", "frame", det.state.Frames, "error", err)
	}
	det.ref.Step(det.state.Recording, det.state.RecordedFrames, det.state.RecordingFPS, now)

	if det.d.Metrics != nil {
		det.d.Metrics.Frames.Inc()
		det.d.Metrics.FPS.Set(fps)
	}

	var statuses []zone.Status
	if det.d.Board != nil || det.d.Overlay != nil {
		statuses = det.d.Zones.Statuses()
	}
	if det.d.Board != nil {
		det.d.Board.Publish(api.Status{
			Time:      now,
			FPS:       fps,
			Frames:    det.state.Frames,
			Recording: det.state.Recording,
			Episode:   det.state.Episode,
			Zones:     statuses,
		})
	}
	if det.d.Overlay == nil {
		return false
	}

	polys := make([]utils.Polygon, 0, len(det.d.Zones.Zones()))
	for _, z := range det.d.Zones.Zones() {
		polys = append(polys, z.Polygon())
	}
	key := det.d.Overlay.Show(f, View{
		Boxes:     boxes,
		Zones:     statuses,
		Polygons:  polys,
		FPS:       fps,
		Recording: det.state.Recording,
		Now:       now,
	})
	return det.command(input.Decode(key), f, fps, now)
}

func (det *Detector[F]) command(c input.Command, f F, fps float64, now time.Time) bool {
	switch c {
	case input.Quit:
		return true
	case input.ShowFPS:
		det.log.Info("measured frame rate", "fps", fps, "frames", det.state.Frames, "captured", det.d.Counter.Frames())
	case input.Snapshot:
		if _, err := det.d.Sink.ManualSnapshot(f, now); err != nil {
			det.log.Error("manual snapshot failed", "error", err)
		}
	case input.ToggleLog:
		if det.d.LogTail != nil {
			det.log.Info("on-screen log toggled", "enabled", det.d.LogTail.Toggle())
		}
	case input.None:
	}
	return false
}

func (det *Detector[F]) finish() error {
	if err := det.d.Sink.Finish(det.state); err != nil {
		det.log.Error("closing recording failed", "error", err)
		return err
	}
	return nil
}
