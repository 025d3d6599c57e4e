package zone

// Phase is a zone's lifecycle state.
type Phase int

const (
	Inactive Phase = iota
	Monitor
	Active
	Cooldown
	Continuation
)

func (p Phase) String() string {
	switch p {
	case Inactive:
		return "inactive"
	case Monitor:
		return "monitor"
	case Active:
		return "active"
	case Cooldown:
		return "cooldown"
	case Continuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Recording reports whether a zone in this phase keeps the stream recording.
func (p Phase) Recording() bool {
	switch p {
	case Active, Cooldown, Continuation:
		return true
	case Inactive, Monitor:
		return false
	default:
		return false
	}
}

// Signal is a notification emitted on a zone transition.
type Signal int

const (
	// SignalMonitoring: INACTIVE -> MONITOR.
	SignalMonitoring Signal = iota
	// SignalStillMonitoring: first hit after the episode opened.
	SignalStillMonitoring
	// SignalActive: any transition into ACTIVE.
	SignalActive
	// SignalContinuing: COOLDOWN -> CONTINUATION.
	SignalContinuing
	// SignalCooldown: ACTIVE or CONTINUATION -> COOLDOWN.
	SignalCooldown
	// SignalInactive: any transition back to INACTIVE.
	SignalInactive
)

func (s Signal) String() string {
	switch s {
	case SignalMonitoring:
		return "monitoring"
	case SignalStillMonitoring:
		return "still-monitoring"
	case SignalActive:
		return "active"
	case SignalContinuing:
		return "continuing"
	case SignalCooldown:
		return "cooldown"
	case SignalInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Notifier receives zone signals. Calls happen on the frame loop goroutine.
type Notifier interface {
	Notify(zone string, sig Signal)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(zone string, sig Signal)

// Notify implements Notifier.
func (f NotifierFunc) Notify(zone string, sig Signal) { f(zone, sig) }

type nopNotifier struct{}

func (nopNotifier) Notify(string, Signal) {}
