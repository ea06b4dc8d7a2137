// Package deepgram implements speech recognition against the Deepgram
// prerecorded transcription API.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

const listenURL = "https://api.deepgram.com/v1/listen"

// Recognizer calls the Deepgram prerecorded API with segment WAV files.
type Recognizer struct {
	apiKey     string
	model      string
	language   string
	diarize    bool
	punctuate  bool
	utterances bool
	baseURL    string
	client     *http.Client
}

type response struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Speaker    int     `json:"speaker"`
		} `json:"utterances"`
	} `json:"results"`
}

// New creates a Deepgram recognizer.
func New(apiKey, model, language string, diarize, punctuate, utterances bool) *Recognizer {
	if language == "" {
		language = "en"
	}
	return &Recognizer{
		apiKey:     apiKey,
		model:      model,
		language:   language,
		diarize:    diarize,
		punctuate:  punctuate,
		utterances: utterances,
		baseURL:    listenURL,
		client:     &http.Client{},
	}
}

func (r *Recognizer) Name() string { return "deepgram" }

func (r *Recognizer) SupportsDiarization() bool { return r.diarize }

// Transcribe posts the audio file and maps the response's utterances to
// spans on the recording timeline.
func (r *Recognizer) Transcribe(ctx context.Context, audioPath string, offset float64) (transcript.Result, error) {
	wavData, err := os.ReadFile(audioPath)
	if err != nil {
		return transcript.Result{}, fmt.Errorf("failed to read audio file: %w", err)
	}

	params := url.Values{}
	if r.model != "" {
		params.Set("model", r.model)
	}
	params.Set("punctuate", strconv.FormatBool(r.punctuate))
	params.Set("diarize", strconv.FormatBool(r.diarize))
	params.Set("utterances", strconv.FormatBool(r.utterances))
	params.Set("smart_format", "true")
	params.Set("language", r.language)

	fullURL := r.baseURL + "?" + params.Encode()

	log.Debug().
		Str("file", audioPath).
		Str("model", r.model).
		Int("audio_size_bytes", len(wavData)).
		Msg("Submitting Deepgram request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(wavData))
	if err != nil {
		return transcript.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+r.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := r.client.Do(req)
	if err != nil {
		return transcript.Result{}, fmt.Errorf("Deepgram API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transcript.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("response_body", string(body)).
			Msg("Deepgram API error response")
		return transcript.Result{}, fmt.Errorf("Deepgram API error %d: %s", resp.StatusCode, string(body))
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return transcript.Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	result := transcript.Result{
		Duration: parsed.Metadata.Duration,
		Language: r.language,
	}

	if len(parsed.Results.Utterances) > 0 {
		for _, u := range parsed.Results.Utterances {
			if u.Transcript == "" {
				continue
			}
			span := transcript.Span{
				Start:      offset + u.Start,
				End:        offset + u.End,
				Text:       u.Transcript,
				Confidence: u.Confidence,
			}
			if r.diarize {
				span.Speaker = fmt.Sprintf("speaker_%d", u.Speaker)
			}
			result.Spans = append(result.Spans, span)
			result.FullText += u.Transcript + " "
		}
	} else if len(parsed.Results.Channels) > 0 {
		// No utterance-level detail; fall back to one span covering the
		// whole file.
		for _, alt := range parsed.Results.Channels[0].Alternatives {
			if alt.Transcript == "" {
				continue
			}
			result.Spans = append(result.Spans, transcript.Span{
				Start:      offset,
				End:        offset + parsed.Metadata.Duration,
				Text:       alt.Transcript,
				Confidence: alt.Confidence,
			})
			result.FullText = alt.Transcript
			break
		}
	}

	log.Debug().
		Str("file", audioPath).
		Int("spans", len(result.Spans)).
		Float64("duration", result.Duration).
		Msg("Deepgram transcription completed")

	return result, nil
}

func (r *Recognizer) Close() error {
	// The HTTP client needs no explicit cleanup.
	return nil
}
