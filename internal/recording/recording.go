package recording

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusStopped   Status = "stopped"
	StatusCancelled Status = "cancelled"
)

type StopReason string

const (
	StopReasonNone        StopReason = ""
	StopReasonManual      StopReason = "manual"
	StopReasonMaxDuration StopReason = "max_duration"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrAlreadyRecording = errors.New("a recording session is already active")
	ErrInvalidState     = errors.New("no recording in progress")
	ErrCancelled        = errors.New("recording was cancelled")
)

const DefaultMaxDurationSeconds = 120

// Snapshot is the renderer-facing view of the current session.
type Snapshot struct {
	SessionID          string
	Status             Status
	StartedAt          time.Time
	ElapsedSeconds     int
	MaxDurationSeconds int
	StopReason         StopReason
	Finalizing         bool
}

func (s Snapshot) ElapsedLabel() string {
	return FormatElapsed(s.ElapsedSeconds)
}

func (s Snapshot) RemainingSeconds() int {
	r := s.MaxDurationSeconds - s.ElapsedSeconds
	if r < 0 {
		return 0
	}
	return r
}

// FormatElapsed renders seconds as MM:SS.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
