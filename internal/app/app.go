// Package app assembles the application: storage, the configured ASR and
// LLM providers, the background task queue, and the processing pipeline.
// Everything is constructed here and passed down explicitly.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AxlandSlash/MeetingSummary/internal/asr"
	"github.com/AxlandSlash/MeetingSummary/internal/asr/deepgram"
	"github.com/AxlandSlash/MeetingSummary/internal/asr/vosk"
	"github.com/AxlandSlash/MeetingSummary/internal/capture"
	"github.com/AxlandSlash/MeetingSummary/internal/config"
	"github.com/AxlandSlash/MeetingSummary/internal/llm"
	"github.com/AxlandSlash/MeetingSummary/internal/llm/gemini"
	"github.com/AxlandSlash/MeetingSummary/internal/pipeline"
	"github.com/AxlandSlash/MeetingSummary/internal/recorder"
	"github.com/AxlandSlash/MeetingSummary/internal/store"
	"github.com/AxlandSlash/MeetingSummary/internal/taskqueue"
	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

// App holds every long-lived component for the lifetime of the process.
type App struct {
	Config     *config.Config
	Store      store.Store
	Recognizer asr.Recognizer
	Generator  llm.Generator
	Queue      *taskqueue.Queue
	Pipeline   *pipeline.Pipeline

	cancel context.CancelFunc
}

// New builds the application from configuration. The task queue is started
// and the pipeline handler registered before New returns.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	recognizer, err := newRecognizer(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", recognizer.Name()).Msg("ASR backend initialised")

	generator, err := gemini.New(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
	if err != nil {
		recognizer.Close()
		return nil, fmt.Errorf("failed to initialise Gemini client: %w", err)
	}

	pipe := pipeline.New(pipeline.Config{
		Recognizer: recognizer,
		Generator:  generator,
		Store:      st,
		Merger: transcript.MergerConfig{
			OverlapThreshold:    cfg.MergeOverlapThreshold,
			SimilarityThreshold: cfg.MergeSimilarityThreshold,
			Lookback:            cfg.MergeLookback,
		},
		TranscribeTimeout: time.Duration(cfg.ASRTimeoutSeconds) * time.Second,
		Parallelism:       cfg.MaxParallelASR,
	})

	queue := taskqueue.New(cfg.Workers, cfg.QueueDepth)
	queue.Register(pipeline.TaskKind, pipe.TaskHandler())

	qctx, cancel := context.WithCancel(context.Background())
	if err := queue.Start(qctx); err != nil {
		cancel()
		recognizer.Close()
		generator.Close()
		return nil, fmt.Errorf("failed to start task queue: %w", err)
	}

	return &App{
		Config:     cfg,
		Store:      st,
		Recognizer: recognizer,
		Generator:  generator,
		Queue:      queue,
		Pipeline:   pipe,
		cancel:     cancel,
	}, nil
}

func newRecognizer(cfg *config.Config) (asr.Recognizer, error) {
	switch cfg.ASRBackend {
	case "deepgram":
		return deepgram.New(cfg.DeepgramAPIKey, cfg.DeepgramModel, cfg.DeepgramLanguage,
			cfg.DeepgramDiarize, cfg.DeepgramPunctuate, cfg.DeepgramUtterances), nil
	case "vosk":
		rec, err := vosk.New(cfg.VoskModelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load Vosk model: %w", err)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unknown ASR backend: %s", cfg.ASRBackend)
	}
}

// NewRecordingEngine builds a recording engine bound to this app's storage.
// The capture factory decides where audio comes from, so callers can record
// from a device or replay a file through the same engine.
func (a *App) NewRecordingEngine(factory capture.Factory, device string) *recorder.Engine {
	return recorder.New(recorder.Config{
		SegmentsDir:     filepath.Join(a.Config.DataDir, "segments"),
		SampleRate:      a.Config.SampleRate,
		Channels:        a.Config.Channels,
		ChunkDuration:   float64(a.Config.ChunkSeconds),
		OverlapDuration: float64(a.Config.OverlapMS) / 1000.0,
		Device:          device,
		CaptureFactory:  factory,
		Meetings:        a.Store,
		Segments:        a.Store,
	})
}

// CreateMeeting persists a new draft meeting.
func (a *App) CreateMeeting(title, perspective, customPerspective, style, participants string) (*store.Meeting, error) {
	m := &store.Meeting{
		Title:             title,
		Perspective:       perspective,
		CustomPerspective: customPerspective,
		OutputStyle:       style,
		Participants:      participants,
	}
	if err := a.Store.CreateMeeting(m); err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}
	log.Info().Int64("meeting_id", m.ID).Str("title", m.Title).Msg("Meeting created")
	return m, nil
}

// Close drains the task queue and releases provider resources.
func (a *App) Close() {
	a.Queue.Stop(true)
	a.cancel()

	if err := a.Recognizer.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close ASR backend")
	}
	if err := a.Generator.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Gemini client")
	}
	log.Info().Msg("Application shut down")
}
