package zone

import (
	"zonewatch/config"
	"zonewatch/utils"
)

// Set holds every configured zone in file order.
type Set struct {
	zones []*Zone
}

// Summary aggregates one frame's results across all zones.
type Summary struct {
	// AnyRecording is true while at least one zone is ACTIVE, COOLDOWN or CONTINUATION.
	AnyRecording bool
	// Snapshot is true when some zone became ACTIVE this frame.
	Snapshot bool
	// Upload is true when a zone that became ACTIVE is marked for off-site upload.
	Upload  bool
	Results []Result
}

// NewSet builds one zone per configuration entry.
func NewSet(f *config.File, resolution float64, n Notifier) *Set {
	s := &Set{zones: make([]*Zone, 0, len(f.Zones))}
	for _, zc := range f.Zones {
		s.zones = append(s.zones, New(zc, resolution, n))
	}
	return s
}

// Zones returns the zones in configuration order.
func (s *Set) Zones() []*Zone { return s.zones }

// Process runs one frame: every box is offered to every zone, then every
// zone is finalized and the results are aggregated.
func (s *Set) Process(boxes []utils.Box, fps float64) Summary {
	for _, b := range boxes {
		for _, z := range s.zones {
			z.RegisterHit(b, fps)
		}
	}

	sum := Summary{Results: make([]Result, 0, len(s.zones))}
	for _, z := range s.zones {
		r := z.EndFrame()
		sum.Results = append(sum.Results, r)
		if r.Phase.Recording() {
			sum.AnyRecording = true
		}
		if r.BecameActive {
			sum.Snapshot = true
			if r.Upload {
				sum.Upload = true
			}
		}
	}
	return sum
}

// Statuses returns a snapshot of every zone.
func (s *Set) Statuses() []Status {
	out := make([]Status, len(s.zones))
	for i, z := range s.zones {
		out[i] = z.Status()
	}
	return out
}
