// Package zone implements the per-region motion state machine.
//
// A zone is driven twice per frame: RegisterHit once per qualifying contour,
// then EndFrame exactly once. Warmup and cooldown are configured in seconds
// and enforced as frame counts scaled by the frame rate observed when the
// zone entered MONITOR; that rate stays frozen for the whole episode.
package zone

import (
	"math"

	"zonewatch/config"
	"zonewatch/utils"
)

// Zone is one polygonal region with its own hit/miss accounting.
type Zone struct {
	name         string
	poly         utils.Polygon
	minWidth     float64
	minHeight    float64
	warmup       float64
	cooldown     float64
	continuation int
	upload       bool

	phase        Phase
	hits         int
	misses       int
	hitThisFrame bool
	becameActive bool
	fps          float64

	notifier Notifier
}

// Result is a zone's outcome for one frame, produced by EndFrame.
type Result struct {
	Name  string
	Phase Phase
	// BecameActive is set on the frame the zone went MONITOR -> ACTIVE.
	BecameActive bool
	// Upload mirrors the zone's off-site upload flag.
	Upload bool
}

// Status is a read-only view of a zone for overlays and the status API.
type Status struct {
	Name           string  `json:"name"`
	Phase          Phase   `json:"-"`
	PhaseName      string  `json:"phase"`
	Hits           int     `json:"hits"`
	Misses         int     `json:"misses"`
	FPS            float64 `json:"fps"`
	WarmupFrames   int     `json:"warmup_frames"`
	CooldownFrames float64 `json:"cooldown_frames"`
	Continuation   int     `json:"continuation"`
	Upload         bool    `json:"upload"`
}

// New builds a zone from its configuration. Boundary points and minimum
// sizes are given at source resolution and scaled by resolution, the
// multiplier applied to frames before contour extraction.
func New(cfg config.Zone, resolution float64, n Notifier) *Zone {
	if resolution <= 0 {
		resolution = 1
	}
	if n == nil {
		n = nopNotifier{}
	}

	poly := make(utils.Polygon, len(cfg.Points))
	for i, p := range cfg.Points {
		poly[i] = utils.Pt(p.X.Float(), p.Y.Float())
	}

	return &Zone{
		name:         cfg.Name,
		poly:         poly.Scale(resolution),
		minWidth:     cfg.MinimumX.Float() * resolution,
		minHeight:    cfg.MinimumY.Float() * resolution,
		warmup:       cfg.Warmup.Float(),
		cooldown:     cfg.Cooldown.Float(),
		continuation: cfg.Continuation.Int(),
		upload:       cfg.UploadToS3,
		notifier:     n,
	}
}

// Name returns the zone's unique name.
func (z *Zone) Name() string { return z.name }

// Phase returns the current lifecycle phase.
func (z *Zone) Phase() Phase { return z.phase }

// Polygon returns the boundary in frame-analysis coordinates.
func (z *Zone) Polygon() utils.Polygon { return z.poly }

// Upload reports whether confirmed activity in this zone is uploaded off-site.
func (z *Zone) Upload() bool { return z.upload }

// RegisterHit offers one motion contour to the zone. It returns true when
// the contour was counted as this frame's hit. The centre must be strictly
// inside the polygon and the box must meet the minimum size; after the first
// accepted hit further calls are ignored until EndFrame.
func (z *Zone) RegisterHit(b utils.Box, fps float64) bool {
	if !z.poly.ContainsStrict(b.Center()) {
		return false
	}
	if float64(b.Width) < z.minWidth || float64(b.Height) < z.minHeight {
		return false
	}
	if z.hitThisFrame {
		return false
	}

	z.hitThisFrame = true
	z.hits++

	switch z.phase {
	case Inactive:
		z.fps = fps
		z.enter(Monitor, SignalMonitoring)

	case Monitor:
		if z.hits < z.warmupFrames() {
			// hits == 2 is the first hit after the one that opened the episode.
			if z.hits == 2 {
				z.notifier.Notify(z.name, SignalStillMonitoring)
			}
			return true
		}
		z.hits = 0
		z.becameActive = true
		z.enter(Active, SignalActive)

	case Cooldown:
		if z.hits >= z.continuation {
			z.resetCounts()
			z.enter(Active, SignalActive)
			return true
		}
		z.enter(Continuation, SignalContinuing)

	case Continuation:
		if z.hits >= z.continuation {
			z.resetCounts()
			z.enter(Active, SignalActive)
		}

	case Active:
	}
	return true
}

// EndFrame finalizes the frame. A frame with a hit only clears the latch;
// a frame without one counts a miss and may de-escalate the zone.
func (z *Zone) EndFrame() Result {
	defer func() { z.becameActive = false }()

	if z.hitThisFrame {
		z.hitThisFrame = false
		return z.result()
	}
	if z.phase == Inactive {
		return z.result()
	}

	z.misses++
	expired := float64(z.misses) >= z.cooldownFrames()

	switch z.phase {
	case Monitor:
		z.resetCounts()
		z.enter(Inactive, SignalInactive)

	case Active, Continuation:
		if expired {
			z.resetCounts()
			z.enter(Inactive, SignalInactive)
		} else {
			z.enter(Cooldown, SignalCooldown)
		}

	case Cooldown:
		if expired {
			z.resetCounts()
			z.enter(Inactive, SignalInactive)
		}

	case Inactive:
	}
	return z.result()
}

// Status returns a snapshot of the zone's counters.
func (z *Zone) Status() Status {
	return Status{
		Name:           z.name,
		Phase:          z.phase,
		PhaseName:      z.phase.String(),
		Hits:           z.hits,
		Misses:         z.misses,
		FPS:            z.fps,
		WarmupFrames:   z.warmupFrames(),
		CooldownFrames: z.cooldownFrames(),
		Continuation:   z.continuation,
		Upload:         z.upload,
	}
}

func (z *Zone) warmupFrames() int {
	return int(z.warmup * math.Floor(z.fps))
}

func (z *Zone) cooldownFrames() float64 {
	return z.cooldown * z.fps
}

func (z *Zone) resetCounts() {
	z.hits = 0
	z.misses = 0
}

func (z *Zone) enter(p Phase, sig Signal) {
	z.phase = p
	z.notifier.Notify(z.name, sig)
}

func (z *Zone) result() Result {
	return Result{
		Name:         z.name,
		Phase:        z.phase,
		BecameActive: z.becameActive,
		Upload:       z.upload,
	}
}
