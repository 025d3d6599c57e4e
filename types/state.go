// Package types holds the settings, run state and logging shared by the
// detector's packages.
package types

// RunState is the process-wide state of one run. It is owned by the frame
// loop and passed explicitly; nothing else writes it.
type RunState struct {
	// AnyActive is true while some zone is ACTIVE, COOLDOWN or CONTINUATION.
	AnyActive bool
	// SnapshotPending is set on a frame where a zone became ACTIVE.
	SnapshotPending bool
	// UploadPending survives suppressed snapshots until one is written.
	UploadPending bool

	Recording      bool
	RecordedFrames int
	// RecordingFPS is the rate the open recording was started at.
	RecordingFPS float64
	// PostRoll counts frames still to append after activity stopped.
	PostRoll int
	// Episode identifies the open recording in notifications.
	Episode string

	// LastSnapshot is the base name of the last snapshot written.
	LastSnapshot string

	Frames uint64
}

// ResetRecording clears the recording fields after an output is closed.
func (s *RunState) ResetRecording() {
	s.Recording = false
	s.RecordedFrames = 0
	s.RecordingFPS = 0
	s.PostRoll = 0
	s.Episode = ""
}
