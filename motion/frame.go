package motion

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"zonewatch/utils"
)

const (
	diffThreshold = 25
	blurKernel    = 21
)

// Frame wraps the current capture with lazily built analysis copies. The
// caches are dropped whenever a new image is installed.
type Frame struct {
	resolution float64

	full    gocv.Mat
	reduced gocv.Mat
	blurred gocv.Mat

	hasFull, hasReduced, hasBlurred bool
}

// NewFrame returns an empty frame for the given resolution multiplier.
func NewFrame(resolution float64) *Frame {
	if resolution <= 0 || resolution > 1 {
		resolution = 1
	}
	return &Frame{resolution: resolution}
}

// Reset installs img, taking ownership of it, and invalidates the caches.
func (f *Frame) Reset(img gocv.Mat) {
	f.release()
	f.full, f.hasFull = img, true
}

// Size returns the full-resolution width and height.
func (f *Frame) Size() (int, int) {
	if !f.hasFull {
		return 0, 0
	}
	return f.full.Cols(), f.full.Rows()
}

// Reduced returns the capture scaled by the resolution multiplier.
func (f *Frame) Reduced() gocv.Mat {
	if f.hasReduced {
		return f.reduced
	}
	if f.resolution == 1 {
		f.reduced = f.full.Clone()
	} else {
		w, h := f.Size()
		sz := image.Pt(int(math.Floor(float64(w)*f.resolution)), int(math.Floor(float64(h)*f.resolution)))
		f.reduced = gocv.NewMat()
		gocv.Resize(f.full, &f.reduced, sz, 0, 0, gocv.InterpolationLinear)
	}
	f.hasReduced = true
	return f.reduced
}

// Blurred returns the reduced capture as blurred grayscale.
func (f *Frame) Blurred() gocv.Mat {
	if f.hasBlurred {
		return f.blurred
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(f.Reduced(), &gray, gocv.ColorBGRToGray)

	f.blurred = gocv.NewMat()
	gocv.GaussianBlur(gray, &f.blurred, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)
	f.hasBlurred = true
	return f.blurred
}

// Contours returns bounding boxes of the regions that differ from key, in
// reduced coordinates. minArea and maxArea are source-resolution areas;
// maxArea <= 0 disables the upper bound.
func (f *Frame) Contours(key gocv.Mat, kernel gocv.Mat, minArea, maxArea float64) []utils.Box {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(key, f.Blurred(), &diff)
	gocv.Threshold(diff, &diff, diffThreshold, 255, gocv.ThresholdBinary)
	gocv.Dilate(diff, &diff, kernel)
	gocv.Dilate(diff, &diff, kernel)

	contours := gocv.FindContours(diff, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	scale := f.resolution * f.resolution
	var boxes []utils.Box
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < minArea*scale {
			continue
		}
		if maxArea > 0 && area > maxArea*scale {
			continue
		}
		boxes = append(boxes, utils.BoxFromRect(gocv.BoundingRect(c), area))
	}
	return boxes
}

// Close releases every Mat the frame holds.
func (f *Frame) Close() { f.release() }

func (f *Frame) release() {
	if f.hasBlurred {
		_ = f.blurred.Close()
		f.hasBlurred = false
	}
	if f.hasReduced {
		_ = f.reduced.Close()
		f.hasReduced = false
	}
	if f.hasFull {
		_ = f.full.Close()
		f.hasFull = false
	}
}
