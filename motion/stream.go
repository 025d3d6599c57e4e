// Package motion holds the OpenCV side of the detector: the capture
// goroutine, per-frame image caches, differencing against the baseline
// and the baseline itself.
package motion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gocv.io/x/gocv"

	"zonewatch/capture"
)

// ErrSourceOpen is returned when the video source cannot be opened.
var ErrSourceOpen = errors.New("cannot open video source")

// Stream pulls frames from a video source on its own goroutine into a
// single-slot mailbox. Frames the consumer does not take in time are dropped.
type Stream struct {
	src  *gocv.VideoCapture
	box  *capture.Mailbox[gocv.Mat]
	log  *slog.Logger
	done chan struct{}
}

// OpenStream opens a video file, URL or numeric camera id.
func OpenStream(source string, log *slog.Logger) (*Stream, error) {
	var (
		src *gocv.VideoCapture
		err error
	)
	if _, statErr := os.Stat(source); statErr == nil {
		src, err = gocv.VideoCaptureFile(source)
	} else if id, convErr := strconv.Atoi(source); convErr == nil {
		src, err = gocv.VideoCaptureDevice(id)
	} else {
		src, err = gocv.VideoCaptureFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrSourceOpen, source, err)
	}
	if !src.IsOpened() {
		_ = src.Close()
		return nil, fmt.Errorf("%w %q", ErrSourceOpen, source)
	}

	return &Stream{
		src:  src,
		box:  capture.NewMailbox(func(m gocv.Mat) { _ = m.Close() }),
		log:  log.With("component", "capture"),
		done: make(chan struct{}),
	}, nil
}

// Mailbox returns the slot frames are delivered to. Taken frames belong to
// the caller.
func (s *Stream) Mailbox() *capture.Mailbox[gocv.Mat] { return s.box }

// Start runs the capture goroutine until ctx is cancelled or the source
// ends. The mailbox is closed when it returns.
func (s *Stream) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		defer s.box.Close()

		img := gocv.NewMat()
		defer img.Close()

		for {
			select {
			case <-ctx.Done():
				s.log.Debug("frame capture stopped")
				return
			default:
			}

			if !s.src.Read(&img) || img.Empty() {
				s.log.Info("video source ended")
				return
			}
			if err := s.box.Put(img.Clone()); err != nil {
				return
			}
		}
	}()
}

// Close waits for the capture goroutine and releases the source. The
// context passed to Start must already be cancelled or the source ended.
func (s *Stream) Close() error {
	<-s.done
	for {
		m, err := s.box.Take()
		if err != nil {
			break
		}
		_ = m.Close()
	}
	return s.src.Close()
}
