// Package asr defines the speech recognition provider contract.
package asr

import (
	"context"

	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

// Recognizer transcribes one persisted audio file. offset is the file's
// start position on the full recording timeline; implementations shift the
// returned span times by it so results from different segments line up.
// Calls are synchronous and bounded only by the caller's context.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string, offset float64) (transcript.Result, error)
	Name() string
	SupportsDiarization() bool
	Close() error
}
