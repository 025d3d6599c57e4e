// Package ui draws the optional debug window: zone outlines, motion boxes,
// per-zone status with progress bars, the clock and the log tail.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"time"

	"gocv.io/x/gocv"

	"zonewatch/detector"
	"zonewatch/recording"
	"zonewatch/types"
	"zonewatch/utils"
	"zonewatch/zone"
)

var (
	Blue   = color.RGBA{B: 255}
	Red    = color.RGBA{R: 255}
	Green  = color.RGBA{G: 255}
	Yellow = color.RGBA{R: 255, G: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255}
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 120}

	Orange = color.RGBA{R: 255, G: 174}
	Spring = color.RGBA{G: 255, B: 127}
	Violet = color.RGBA{R: 255, B: 195}
)

// PhaseColor returns the status colour of a phase.
func PhaseColor(p zone.Phase) color.RGBA {
	switch p {
	case zone.Inactive:
		return Blue
	case zone.Monitor:
		return Orange
	case zone.Active:
		return Red
	case zone.Cooldown:
		return Spring
	case zone.Continuation:
		return Violet
	default:
		return White
	}
}

// Window is the debug overlay. It implements detector.Overlay for gocv frames.
type Window struct {
	win        *gocv.Window
	cfg        types.UIConfig
	resolution float64
	tail       *types.LogTail
	rec        *recording.VideoRecorder
	log        *slog.Logger
}

// NewWindow opens the debug window. tail and rec may be nil.
func NewWindow(title string, resolution float64, cfg types.UIConfig, tail *types.LogTail, rec *recording.VideoRecorder, log *slog.Logger) *Window {
	return &Window{
		win:        gocv.NewWindow(title),
		cfg:        cfg,
		resolution: resolution,
		tail:       tail,
		rec:        rec,
		log:        log.With("component", "ui"),
	}
}

// Show draws v onto frame, displays it and returns the pressed key or -1.
func (w *Window) Show(frame gocv.Mat, v detector.View) int {
	w.DrawZones(&frame, v.Polygons)
	w.DrawContourBoxes(&frame, v.Boxes)
	w.DrawStatusList(&frame, v.Zones)
	w.DrawClock(&frame, v)
	w.DrawRecordingStatus(&frame, v.Recording)
	if w.tail != nil && w.tail.Enabled() {
		w.DrawDebugLogs(&frame, w.tail.Lines())
	}
	w.win.IMShow(frame)
	return w.win.WaitKey(1)
}

// Close closes the window.
func (w *Window) Close() error { return w.win.Close() }

// DrawZones outlines every zone polygon.
func (w *Window) DrawZones(frame *gocv.Mat, polys []utils.Polygon) {
	if len(polys) == 0 {
		return
	}
	pts := make([][]image.Point, 0, len(polys))
	for _, p := range polys {
		pts = append(pts, p.Scale(1/w.resolution).ImagePoints())
	}
	pv := gocv.NewPointsVectorFromPoints(pts)
	defer pv.Close()
	gocv.Polylines(frame, pv, true, Yellow, 1)
}

// DrawContourBoxes draws each motion box, its centre and its area.
func (w *Window) DrawContourBoxes(frame *gocv.Mat, boxes []utils.Box) {
	for _, b := range boxes {
		rect := utils.ToOriginal(b.Rect(), w.resolution)
		c := b.Center()
		center := image.Pt(int(math.Floor(c.X/w.resolution)), int(math.Floor(c.Y/w.resolution)))

		gocv.Circle(frame, center, 1, Red, 1)
		_ = gocv.Rectangle(frame, rect, Green, 1)
		label := fmt.Sprintf("%.0f", b.Area/w.resolution/w.resolution)
		if err := gocv.PutText(frame, label, image.Pt(rect.Min.X, rect.Min.Y-5), gocv.FontHersheySimplex, 0.5, White, 1); err != nil {
			w.log.Debug("error adding area label", "error", err)
		}
	}
}

// DrawStatusList writes one coloured line per zone along the bottom, with a
// progress bar toward the phase's next threshold.
func (w *Window) DrawStatusList(frame *gocv.Mat, zones []zone.Status) {
	y := frame.Rows() - len(zones)*w.cfg.LineHeight - 20
	for _, st := range zones {
		y += w.cfg.LineHeight
		col := PhaseColor(st.Phase)
		text := fmt.Sprintf("%s: %s", st.Name, st.PhaseName)
		if err := gocv.PutText(frame, text, image.Pt(20, y), gocv.FontHersheyComplexSmall, w.cfg.StatusFontSize, col, 2); err != nil {
			w.log.Debug("error adding status text", "error", err)
		}
		if cur, max, ok := Progress(st); ok {
			w.DrawProgressBar(frame, image.Pt(w.cfg.BarX, y), cur, max, col)
		}
	}
}

// Progress returns the counter and threshold shown for a zone's phase.
func Progress(st zone.Status) (current, max float64, ok bool) {
	switch st.Phase {
	case zone.Monitor:
		return float64(st.Hits), float64(st.WarmupFrames), true
	case zone.Cooldown:
		return float64(st.Misses), st.CooldownFrames, true
	case zone.Continuation:
		return float64(st.Hits), float64(st.Continuation), true
	case zone.Inactive, zone.Active:
		return 0, 0, false
	default:
		return 0, 0, false
	}
}

// DrawProgressBar draws an outlined bar whose bottom-left corner is at pt.
func (w *Window) DrawProgressBar(frame *gocv.Mat, pt image.Point, current, max float64, col color.RGBA) {
	outline := image.Rect(pt.X, pt.Y-w.cfg.BarHeight, pt.X+w.cfg.BarWidth, pt.Y)
	_ = gocv.Rectangle(frame, outline, col, 1)
	if max <= 0 {
		return
	}
	if current > max {
		current = max
	}
	filled := int(math.Floor(float64(w.cfg.BarWidth) / max * current))
	_ = gocv.Rectangle(frame, image.Rect(pt.X, pt.Y-w.cfg.BarHeight, pt.X+filled, pt.Y+2), col, -1)
}

// DrawClock writes the date, time and measured fps.
func (w *Window) DrawClock(frame *gocv.Mat, v detector.View) {
	text := v.Now.Format("01/02/2006 15:04:05") + fmt.Sprintf("  %.1f fps", v.FPS)
	if err := gocv.PutText(frame, text, image.Pt(20, 90), gocv.FontHersheyComplexSmall, 1, White, 2); err != nil {
		w.log.Debug("error adding clock", "error", err)
	}
}

// DrawRecordingStatus draws the recording marker and timer
func (w *Window) DrawRecordingStatus(frame *gocv.Mat, recording bool) {
	if !recording {
		return
	}
	text := "REC"
	if w.rec != nil && w.rec.Recording() {
		text = RecordingLabel(w.rec.Duration())
	}
	if err := gocv.PutText(frame, text, image.Pt(20, 60), gocv.FontHersheyComplexSmall, 1, Red, 2); err != nil {
		w.log.Debug("error adding recording text", "error", err)
	}
}

// RecordingLabel formats an elapsed recording time as "REC mm:ss".
func RecordingLabel(d time.Duration) string {
	return fmt.Sprintf("REC %02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// DrawDebugLogs draws the debug log messages on screen
func (w *Window) DrawDebugLogs(frame *gocv.Mat, logs []string) {
	if len(logs) == 0 {
		return
	}

	// Right side of the screen
	frameWidth := frame.Cols()
	startY := 100
	lineHeight := 20
	maxWidth := 400
	padding := 10

	debugHeight := len(logs)*lineHeight + padding*2
	debugRect := image.Rect(frameWidth-maxWidth-padding, startY-padding, frameWidth-padding, startY+debugHeight-padding)
	if err := gocv.Rectangle(frame, debugRect, Black, -1); err != nil {
		w.log.Debug("error drawing debug background", "error", err)
	}

	headerText := fmt.Sprintf("Log (%d):", len(logs))
	if err := gocv.PutText(frame, headerText, image.Pt(frameWidth-maxWidth, startY), gocv.FontHersheyPlain, w.cfg.DebugFontSize, Yellow, 1); err != nil {
		w.log.Debug("error adding debug header", "error", err)
	}

	for i, msg := range logs {
		y := startY + (i+1)*lineHeight
		if len(msg) > 50 {
			msg = msg[:47] + "..."
		}
		if err := gocv.PutText(frame, msg, image.Pt(frameWidth-maxWidth, y), gocv.FontHersheyPlain, w.cfg.DebugFontSize, White, 1); err != nil {
			w.log.Debug("error adding debug text", "error", err)
		}
	}
}
