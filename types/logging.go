package types

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// NewLogger builds the root logger. When tail is non-nil every line is also
// captured for on-screen display.
func NewLogger(format string, level slog.Level, w io.Writer, tail *LogTail) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if tail != nil {
		w = io.MultiWriter(w, tail)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// LogTail keeps the last few log lines for the debug overlay.
type LogTail struct {
	mu      sync.Mutex
	lines   []string
	max     int
	enabled bool
}

// NewLogTail creates a tail holding at most max lines.
func NewLogTail(max int) *LogTail {
	return &LogTail{max: max, enabled: true}
}

// Write implements io.Writer to capture log output
func (t *LogTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return len(p), nil
	}

	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		line = strings.TrimSpace(line)
		// Drop the text handler's time attribute.
		if strings.HasPrefix(line, "time=") {
			if i := strings.IndexByte(line, ' '); i != -1 {
				line = line[i+1:]
			}
		}
		if line == "" {
			continue
		}
		t.lines = append(t.lines, line)
		if len(t.lines) > t.max {
			t.lines = t.lines[len(t.lines)-t.max:]
		}
	}
	return len(p), nil
}

// Lines returns a copy of the captured lines, oldest first.
func (t *LogTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Toggle flips capture and display on or off and returns the new state.
func (t *LogTail) Toggle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = !t.enabled
	if !t.enabled {
		t.lines = nil
	}
	return t.enabled
}

// Enabled reports whether lines are captured.
func (t *LogTail) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}
