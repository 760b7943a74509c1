package transcriber

import (
	"errors"
	"fmt"
)

var (
	ErrNoSpeechDetected     = errors.New("no speech detected")
	ErrTranscriptionFailure = errors.New("transcription failed")
)

const NoSpeechMessage = "No speech was detected in the recording."

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNoSpeech Outcome = "no_speech_detected"
	OutcomeFailure  Outcome = "failure"
)

// Error is a transcription failure with a human-readable message.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription failed: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrTranscriptionFailure
}

type Result struct {
	Outcome Outcome
	Text    string
	Message string
	Err     error
}

func Success(text string) Result {
	return Result{Outcome: OutcomeSuccess, Text: text}
}

func NoSpeech() Result {
	return Result{Outcome: OutcomeNoSpeech, Message: NoSpeechMessage}
}

func Failure(err error) Result {
	var te *Error
	if !errors.As(err, &te) {
		te = &Error{Message: err.Error(), Err: err}
	}
	return Result{Outcome: OutcomeFailure, Message: te.Message, Err: te}
}

// AsError maps the result onto the error taxonomy; Success yields nil.
func (r Result) AsError() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeNoSpeech:
		return ErrNoSpeechDetected
	default:
		if r.Err != nil {
			return r.Err
		}
		return ErrTranscriptionFailure
	}
}
