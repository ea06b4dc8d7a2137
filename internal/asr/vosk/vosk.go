// Package vosk implements offline speech recognition on top of the Vosk
// engine. The model is loaded once; a fresh recognizer is created per file
// so state never leaks between segments.
package vosk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/rs/zerolog/log"

	"github.com/AxlandSlash/MeetingSummary/internal/audio"
	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

// feedBytes is how much PCM is pushed into the engine per call.
const feedBytes = 8000

// Recognizer transcribes WAV files with a local Vosk model.
type Recognizer struct {
	mu    sync.Mutex
	model *vosk.VoskModel
}

type voskResult struct {
	Text   string     `json:"text"`
	Result []voskWord `json:"result"`
}

type voskWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// New loads the Vosk model from modelPath.
func New(modelPath string) (*Recognizer, error) {
	log.Info().Str("model_path", modelPath).Msg("Loading Vosk model")

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load Vosk model from %s: %w", modelPath, err)
	}

	return &Recognizer{model: model}, nil
}

func (r *Recognizer) Name() string { return "vosk" }

func (r *Recognizer) SupportsDiarization() bool { return false }

// Transcribe feeds the file's PCM through the engine and returns one span
// bounded by the first and last recognized words, shifted by offset.
func (r *Recognizer) Transcribe(ctx context.Context, audioPath string, offset float64) (transcript.Result, error) {
	pcm, sampleRate, channels, err := audio.ReadWAVFile(audioPath)
	if err != nil {
		return transcript.Result{}, err
	}
	if channels != 1 {
		return transcript.Result{}, fmt.Errorf("vosk requires mono audio, got %d channels", channels)
	}

	duration := float64(len(pcm)) / float64(sampleRate*2)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := vosk.NewRecognizer(r.model, float64(sampleRate))
	if err != nil {
		return transcript.Result{}, fmt.Errorf("failed to create Vosk recognizer: %w", err)
	}
	defer rec.Free()
	rec.SetWords(1)

	for pos := 0; pos < len(pcm); pos += feedBytes {
		if err := ctx.Err(); err != nil {
			return transcript.Result{}, err
		}
		end := pos + feedBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if rec.AcceptWaveform(pcm[pos:end]) == -1 {
			return transcript.Result{}, fmt.Errorf("vosk failed to process audio from %s", audioPath)
		}
	}

	var parsed voskResult
	if err := json.Unmarshal([]byte(rec.FinalResult()), &parsed); err != nil {
		return transcript.Result{}, fmt.Errorf("failed to parse Vosk result: %w", err)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return transcript.Result{Duration: duration}, nil
	}

	span := transcript.Span{
		Start: offset,
		End:   offset + duration,
		Text:  text,
	}
	if len(parsed.Result) > 0 {
		span.Start = offset + parsed.Result[0].Start
		span.End = offset + parsed.Result[len(parsed.Result)-1].End

		var confSum float64
		for _, w := range parsed.Result {
			confSum += w.Conf
		}
		span.Confidence = confSum / float64(len(parsed.Result))
	}

	log.Debug().
		Str("file", audioPath).
		Str("text", text).
		Float64("confidence", span.Confidence).
		Msg("Vosk transcription completed")

	return transcript.Result{
		Spans:    []transcript.Span{span},
		FullText: text,
		Duration: duration,
	}, nil
}

// Close frees the loaded model.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model != nil {
		r.model.Free()
		r.model = nil
	}
	return nil
}
