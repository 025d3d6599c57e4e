// Package recording writes event videos and still snapshots.
package recording

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrNoCodec is returned when no configured codec can open a writer.
	ErrNoCodec = errors.New("could not create video writer with any codec")
	// ErrNotRecording is returned by Write and Close with no open output.
	ErrNotRecording = errors.New("no active recording")
	// ErrAlreadyRecording is returned by Open while an output is open.
	ErrAlreadyRecording = errors.New("recording already active")
)

// VideoRecorder writes one video file at a time, trying codecs in order.
type VideoRecorder struct {
	codecs []string
	log    *slog.Logger

	writer  *gocv.VideoWriter
	path    string
	codec   string
	started time.Time
	frames  int
}

// NewVideoRecorder returns a recorder that tries codecs in order.
func NewVideoRecorder(codecs []string, log *slog.Logger) *VideoRecorder {
	return &VideoRecorder{codecs: codecs, log: log.With("component", "recorder")}
}

// Open starts a new output at path sized to frame.
func (r *VideoRecorder) Open(path string, fps float64, frame gocv.Mat) error {
	if r.writer != nil {
		return ErrAlreadyRecording
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create recording dir: %w", err)
	}

	var (
		vw  *gocv.VideoWriter
		err error
	)
	for _, fourcc := range r.codecs {
		vw, err = gocv.VideoWriterFile(path, fourcc, fps, frame.Cols(), frame.Rows(), true)
		if err == nil && vw.IsOpened() {
			r.codec = fourcc
			break
		}
		if vw != nil {
			_ = vw.Close()
			vw = nil
		}
	}
	if vw == nil {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoCodec, err)
		}
		return ErrNoCodec
	}

	r.writer = vw
	r.path = path
	r.started = time.Now()
	r.frames = 0
	r.log.Info("recording started", "path", path, "codec", r.codec, "fps", fps)
	return nil
}

// Write appends a frame to the open output.
func (r *VideoRecorder) Write(frame gocv.Mat) error {
	if r.writer == nil {
		return ErrNotRecording
	}
	if err := r.writer.Write(frame); err != nil {
		return err
	}
	r.frames++
	return nil
}

// Close finishes the open output.
func (r *VideoRecorder) Close() error {
	if r.writer == nil {
		return ErrNotRecording
	}
	err := r.writer.Close()
	r.log.Info("recording stopped", "path", r.path, "frames", r.frames, "duration", time.Since(r.started).Round(time.Millisecond))
	r.writer = nil
	r.path = ""
	if err != nil {
		return fmt.Errorf("error closing video writer: %w", err)
	}
	return nil
}

// Recording reports whether an output is open.
func (r *VideoRecorder) Recording() bool { return r.writer != nil }

// Duration returns how long the current output has been open.
func (r *VideoRecorder) Duration() time.Duration {
	if r.writer == nil {
		return 0
	}
	return time.Since(r.started)
}
