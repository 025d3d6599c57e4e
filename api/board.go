// Package api serves the detector's status over HTTP.
package api

import (
	"sync"
	"time"

	"zonewatch/zone"
)

// Status is the state published once per frame.
type Status struct {
	Time      time.Time     `json:"time"`
	FPS       float64       `json:"fps"`
	Frames    uint64        `json:"frames"`
	Recording bool          `json:"recording"`
	Episode   string        `json:"episode,omitempty"`
	Zones     []zone.Status `json:"zones"`
}

// Board holds the latest Status. The frame loop writes it; HTTP handlers read it.
type Board struct {
	mu     sync.RWMutex
	status Status
	set    bool
}

// NewBoard returns an empty board.
func NewBoard() *Board { return &Board{} }

// Publish replaces the current status.
func (b *Board) Publish(s Status) {
	b.mu.Lock()
	b.status, b.set = s, true
	b.mu.Unlock()
}

// Get returns the current status and whether one has been published.
func (b *Board) Get() (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.status
	s.Zones = append([]zone.Status(nil), b.status.Zones...)
	return s, b.set
}
