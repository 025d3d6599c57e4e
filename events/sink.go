// Package events turns per-frame zone results into side effects: snapshot
// files, the event recording, uploads and notifications.
//
// The sink runs on the frame loop goroutine and mutates the RunState it is
// handed; it keeps no run state of its own.
package events

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"zonewatch/telemetry"
	"zonewatch/types"
	"zonewatch/zone"
)

// Recorder writes one video at a time.
type Recorder[F any] interface {
	Open(path string, fps float64, frame F) error
	Write(frame F) error
	Close() error
}

// Snapshotter writes still images.
type Snapshotter[F any] interface {
	Save(path string, frame F) error
}

// Uploader ships a file off-site without blocking.
type Uploader interface {
	Upload(path string)
}

// Publisher receives telemetry items and recording lifecycle events.
type Publisher interface {
	Publish(key, value string)
	RecordingStarted(episode, file string, fps float64)
	RecordingStopped(episode string, frames int)
}

// Observer is told about completed side effects, typically for metrics.
type Observer interface {
	SnapshotWritten()
	RecordingOpened()
	RecordingClosed()
	WriteFailed()
}

// Options names outputs and sizes the post-roll.
type Options struct {
	// FilenameLayout and DirLayout are Go time layouts.
	FilenameLayout string
	DirLayout      string
	VideoExt       string
	// PostRoll is the number of frames still recorded after every zone has
	// gone quiet.
	PostRoll int
}

// Sink applies one frame's outcome to the outside world.
type Sink[F any] struct {
	opts     Options
	rec      Recorder[F]
	snap     Snapshotter[F]
	up       Uploader
	pub      Publisher
	obs      Observer
	log      *slog.Logger
	newEpoch func() string
}

// New returns a sink. up and obs may be nil.
func New[F any](opts Options, rec Recorder[F], snap Snapshotter[F], up Uploader, pub Publisher, obs Observer, log *slog.Logger) *Sink[F] {
	if opts.VideoExt == "" {
		opts.VideoExt = ".avi"
	}
	return &Sink[F]{
		opts:     opts,
		rec:      rec,
		snap:     snap,
		up:       up,
		pub:      pub,
		obs:      obs,
		log:      log.With("component", "events"),
		newEpoch: func() string { return uuid.New().String() },
	}
}

// Handle applies the summary of one frame. Errors are per write attempt;
// the caller logs them and moves on to the next frame.
func (s *Sink[F]) Handle(state *types.RunState, sum zone.Summary, frame F, fps float64, now time.Time) error {
	state.AnyActive = sum.AnyRecording
	if sum.Snapshot {
		state.SnapshotPending = true
	}
	if sum.Upload {
		state.UploadPending = true
	}

	var errs []error
	if state.SnapshotPending {
		state.SnapshotPending = false
		if _, err := s.snapshot(state, frame, now); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.record(state, frame, fps, now); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 && s.obs != nil {
		s.obs.WriteFailed()
	}
	return errors.Join(errs...)
}

// ManualSnapshot writes an operator-requested still under the
// timestamp-derived name with a "_manual" suffix. It neither reads nor
// updates the edge snapshot de-dup name and never starts a pending upload.
func (s *Sink[F]) ManualSnapshot(frame F, now time.Time) (string, error) {
	name := now.Format(s.opts.FilenameLayout) + "_manual"
	path := filepath.Join(now.Format(s.opts.DirLayout), name+".jpg")
	if err := s.snap.Save(path, frame); err != nil {
		return "", fmt.Errorf("manual snapshot %s: %w", path, err)
	}
	s.log.Info("manual snapshot written", "path", path)
	if s.obs != nil {
		s.obs.SnapshotWritten()
	}
	return path, nil
}

// snapshot writes frame under the timestamp-derived name for now, unless
// the last snapshot already used that name. It returns the path written,
// or "" when suppressed. A pending upload is started after the write.
func (s *Sink[F]) snapshot(state *types.RunState, frame F, now time.Time) (string, error) {
	name := now.Format(s.opts.FilenameLayout)
	if name == state.LastSnapshot {
		s.log.Debug("snapshot suppressed, same name as last", "name", name)
		return "", nil
	}

	path := filepath.Join(now.Format(s.opts.DirLayout), name+".jpg")
	if err := s.snap.Save(path, frame); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", path, err)
	}
	state.LastSnapshot = name
	s.log.Info("snapshot written", "path", path)
	if s.obs != nil {
		s.obs.SnapshotWritten()
	}

	if state.UploadPending && s.up != nil {
		s.up.Upload(path)
		state.UploadPending = false
	}
	s.pub.Publish(telemetry.KeyLatestSnapshot, name+".jpg")
	return path, nil
}

// Finish closes an open recording. Used on graceful shutdown.
func (s *Sink[F]) Finish(state *types.RunState) error {
	if !state.Recording {
		return nil
	}
	return s.close(state)
}

func (s *Sink[F]) record(state *types.RunState, frame F, fps float64, now time.Time) error {
	if state.AnyActive {
		if !state.Recording {
			if err := s.open(state, frame, fps, now); err != nil {
				return err
			}
		}
		state.PostRoll = s.opts.PostRoll
		return s.write(state, frame)
	}

	if !state.Recording {
		return nil
	}
	if state.PostRoll > 0 {
		state.PostRoll--
		return s.write(state, frame)
	}
	return s.close(state)
}

func (s *Sink[F]) open(state *types.RunState, frame F, fps float64, now time.Time) error {
	name := now.Format(s.opts.FilenameLayout) + s.opts.VideoExt
	path := filepath.Join(now.Format(s.opts.DirLayout), name)

	if err := s.rec.Open(path, math.Max(1, math.Floor(fps)), frame); err != nil {
		return fmt.Errorf("open recording %s: %w", path, err)
	}
	s.pub.Publish(telemetry.KeyLatestVideo, name)

	state.Recording = true
	state.RecordedFrames = 0
	state.RecordingFPS = fps
	state.Episode = s.newEpoch()
	if s.obs != nil {
		s.obs.RecordingOpened()
	}
	s.pub.RecordingStarted(state.Episode, path, fps)
	return nil
}

func (s *Sink[F]) write(state *types.RunState, frame F) error {
	if err := s.rec.Write(frame); err != nil {
		return fmt.Errorf("write recording frame: %w", err)
	}
	state.RecordedFrames++
	return nil
}

func (s *Sink[F]) close(state *types.RunState) error {
	err := s.rec.Close()
	episode, frames := state.Episode, state.RecordedFrames
	state.ResetRecording()
	if s.obs != nil {
		s.obs.RecordingClosed()
	}
	s.pub.RecordingStopped(episode, frames)
	if err != nil {
		return fmt.Errorf("close recording: %w", err)
	}
	return nil
}
