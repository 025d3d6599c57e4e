package motion

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"zonewatch/utils"
)

// Options configures a Vision.
type Options struct {
	Resolution float64
	MinArea    float64
	MaxArea    float64
	// BlendRate is the percentage of the current frame mixed into the
	// baseline on each blend.
	BlendRate float64
	// KeyFramePath, if set, receives a copy of the first baseline.
	KeyFramePath string
}

// Vision owns the current frame and the motion baseline.
type Vision struct {
	opts   Options
	frame  *Frame
	kernel gocv.Mat
	key    gocv.Mat
	hasKey bool
	log    *slog.Logger
}

// NewVision returns a Vision with no baseline; the first frame becomes it.
func NewVision(opts Options, log *slog.Logger) *Vision {
	return &Vision{
		opts:   opts,
		frame:  NewFrame(opts.Resolution),
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		log:    log.With("component", "vision"),
	}
}

// Advance installs img as the current frame, taking ownership of it.
func (v *Vision) Advance(img gocv.Mat) {
	v.frame.Reset(img)
	if v.hasKey {
		return
	}
	v.key = v.frame.Blurred().Clone()
	v.hasKey = true
	if v.opts.KeyFramePath != "" {
		if err := writeImage(v.opts.KeyFramePath, v.key); err != nil {
			v.log.Warn("keyframe not saved", "path", v.opts.KeyFramePath, "error", err)
		}
	}
}

// Contours returns motion boxes for the current frame.
func (v *Vision) Contours() []utils.Box {
	return v.frame.Contours(v.key, v.kernel, v.opts.MinArea, v.opts.MaxArea)
}

// Blend moves the baseline toward the current frame.
func (v *Vision) Blend() {
	keep := 1 - v.opts.BlendRate/100
	gocv.AddWeighted(v.key, keep, v.frame.Blurred(), 1-keep, 0, &v.key)
}

// Rekey replaces the baseline with the current frame.
func (v *Vision) Rekey() {
	next := v.frame.Blurred().Clone()
	_ = v.key.Close()
	v.key = next
}

// Close releases the frame, the baseline and the kernel.
func (v *Vision) Close() {
	v.frame.Close()
	if v.hasKey {
		_ = v.key.Close()
	}
	_ = v.kernel.Close()
}

func writeImage(path string, img gocv.Mat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("write %s failed", path)
	}
	return nil
}
