package utils

import (
	"image"
	"math"
)

// Point is a 2-D coordinate in frame pixels.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Polygon is a closed boundary; the last point connects back to the first.
type Polygon []Point

// Scale returns a copy of the polygon with every coordinate multiplied by factor.
func (p Polygon) Scale(factor float64) Polygon {
	scaled := make(Polygon, len(p))
	for i, pt := range p {
		scaled[i] = Point{X: pt.X * factor, Y: pt.Y * factor}
	}
	return scaled
}

// ImagePoints converts the polygon to integer pixel points for drawing.
func (p Polygon) ImagePoints() []image.Point {
	pts := make([]image.Point, len(p))
	for i, pt := range p {
		pts[i] = image.Pt(int(math.Round(pt.X)), int(math.Round(pt.Y)))
	}
	return pts
}

// ContainsStrict reports whether pt lies strictly inside the polygon.
// Points on an edge or vertex are outside.
func (p Polygon) ContainsStrict(pt Point) bool {
	n := len(p)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p[j], p[i]
		if onSegment(a, b, pt) {
			return false
		}
		// Ray cast toward +X, half-open on Y so shared vertices count once.
		if (b.Y > pt.Y) != (a.Y > pt.Y) {
			x := (a.X-b.X)*(pt.Y-b.Y)/(a.Y-b.Y) + b.X
			if pt.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

const epsilon = 1e-9

func onSegment(a, b, pt Point) bool {
	cross := (b.X-a.X)*(pt.Y-a.Y) - (b.Y-a.Y)*(pt.X-a.X)
	if math.Abs(cross) > epsilon {
		return false
	}
	return pt.X >= math.Min(a.X, b.X)-epsilon && pt.X <= math.Max(a.X, b.X)+epsilon &&
		pt.Y >= math.Min(a.Y, b.Y)-epsilon && pt.Y <= math.Max(a.Y, b.Y)+epsilon
}

// Box is the bounding rectangle of a motion contour plus its area, in the
// coordinates of the frame it was extracted from.
type Box struct {
	X, Y          int
	Width, Height int
	Area          float64
}

// BoxFromRect builds a Box from an image rectangle and contour area.
func BoxFromRect(r image.Rectangle, area float64) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy(), Area: area}
}

// Center returns the midpoint of the bounding rectangle.
func (b Box) Center() Point {
	return Point{X: float64(b.X) + float64(b.Width)/2, Y: float64(b.Y) + float64(b.Height)/2}
}

// Rect returns the bounding rectangle as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// ToOriginal maps a rectangle from a downscaled frame back to source resolution.
func ToOriginal(r image.Rectangle, resolution float64) image.Rectangle {
	if resolution <= 0 || resolution == 1 {
		return r
	}
	inv := 1.0 / resolution
	return image.Rect(
		int(math.Floor(float64(r.Min.X)*inv)),
		int(math.Floor(float64(r.Min.Y)*inv)),
		int(math.Floor(float64(r.Max.X)*inv)),
		int(math.Floor(float64(r.Max.Y)*inv)),
	)
}
