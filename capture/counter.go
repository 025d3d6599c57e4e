package capture

import (
	"sync"
	"time"
)

// Counter measures the average frame rate since Start.
type Counter struct {
	mu     sync.Mutex
	now    func() time.Time
	start  time.Time
	last   time.Time
	frames int
	window time.Duration
}

// NewCounter returns a counter that reports a rate once at least window
// has elapsed since Start. now defaults to time.Now.
func NewCounter(window time.Duration, now func() time.Time) *Counter {
	if now == nil {
		now = time.Now
	}
	return &Counter{now: now, window: window}
}

// Start resets the counter.
func (c *Counter) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
	c.last = c.start
	c.frames = 0
}

// Update records one frame.
func (c *Counter) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.start.IsZero() {
		c.start = c.now()
	}
	c.last = c.now()
	c.frames++
}

// Frames returns the number of frames since Start.
func (c *Counter) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// FPS returns the average rate, or 0 while the measurement window is not yet full.
func (c *Counter) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.last.Sub(c.start)
	if c.frames == 0 || elapsed <= 0 || elapsed < c.window {
		return 0
	}
	return float64(c.frames) / elapsed.Seconds()
}

// FPSOr returns FPS, or fallback while no rate is measurable.
func (c *Counter) FPSOr(fallback float64) float64 {
	if fps := c.FPS(); fps > 0 {
		return fps
	}
	return fallback
}
