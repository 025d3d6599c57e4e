// Package input maps debug-window key presses to commands.
package input

// Command is an operator action requested from the debug window.
type Command int

const (
	None Command = iota
	Quit
	ShowFPS
	Snapshot
	ToggleLog
)

func (c Command) String() string {
	switch c {
	case None:
		return "none"
	case Quit:
		return "quit"
	case ShowFPS:
		return "show-fps"
	case Snapshot:
		return "snapshot"
	case ToggleLog:
		return "toggle-log"
	default:
		return "unknown"
	}
}

const keyEscape = 27

// Decode returns the command bound to key, as returned by the window's
// WaitKey. -1 (no key) and unbound keys decode to None.
func Decode(key int) Command {
	if key < 0 {
		return None
	}
	switch key & 0xff {
	case 'q', 'Q', keyEscape:
		return Quit
	case 'i', 'I':
		return ShowFPS
	case 'p', 'P':
		return Snapshot
	case 'd', 'D':
		return ToggleLog
	default:
		return None
	}
}

// Help lists the bindings for the startup log.
func Help() []string {
	return []string{
		"q/ESC: quit",
		"i: log measured frame rate",
		"p: write a snapshot now",
		"d: toggle on-screen log",
	}
}
