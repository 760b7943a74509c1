package renderer

import (
	"errors"

	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/transcriber"
)

type ErrorKind string

const (
	ErrorKindPermissionDenied     ErrorKind = "permission_denied"
	ErrorKindAlreadyRecording     ErrorKind = "already_recording"
	ErrorKindInvalidState         ErrorKind = "invalid_state"
	ErrorKindRecordingCancelled   ErrorKind = "recording_cancelled"
	ErrorKindNoSpeechDetected     ErrorKind = "no_speech_detected"
	ErrorKindTranscriptionFailure ErrorKind = "transcription_failure"
	ErrorKindSendInProgress       ErrorKind = "send_in_progress"
	ErrorKindRemoteCallFailure    ErrorKind = "remote_call_failure"
	ErrorKindInternal             ErrorKind = "internal"
)

type ErrorEvent struct {
	Kind    ErrorKind
	Message string
}

// Renderer redraws from core state. Implementations must return quickly;
// wrap slow ones in a Dispatcher.
type Renderer interface {
	ConversationChanged(s conversation.Snapshot)
	RecordingChanged(s recording.Snapshot)
	TranscriptionPartial(text string)
	TranscriptionFinished(r transcriber.Result)
	InputChanged(text string)
	SendStateChanged(conversationID int64, enabled bool)
	ErrorRaised(e ErrorEvent)
}

// Nop ignores every event. Embed it to implement only some methods.
type Nop struct{}

func (Nop) ConversationChanged(conversation.Snapshot) {}
func (Nop) RecordingChanged(recording.Snapshot) {}
func (Nop) TranscriptionPartial(string) {}
func (Nop) TranscriptionFinished(transcriber.Result) {}
func (Nop) InputChanged(string) {}
func (Nop) SendStateChanged(int64, bool) {}
func (Nop) ErrorRaised(ErrorEvent) {}

// KindOf classifies err onto the renderer error taxonomy. sentinels maps
// package-specific errors that this package cannot import.
func KindOf(err error, sentinels map[error]ErrorKind) ErrorKind {
	switch {
	case errors.Is(err, recording.ErrPermissionDenied):
		return ErrorKindPermissionDenied
	case errors.Is(err, recording.ErrAlreadyRecording):
		return ErrorKindAlreadyRecording
	case errors.Is(err, recording.ErrInvalidState):
		return ErrorKindInvalidState
	case errors.Is(err, recording.ErrCancelled):
		return ErrorKindRecordingCancelled
	case errors.Is(err, transcriber.ErrNoSpeechDetected):
		return ErrorKindNoSpeechDetected
	case errors.Is(err, transcriber.ErrTranscriptionFailure):
		return ErrorKindTranscriptionFailure
	}
	for sentinel, kind := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ErrorKindInternal
}
