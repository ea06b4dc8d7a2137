// Package recorder orchestrates a capture source and a segmenter through
// the recording lifecycle: Idle -> Starting -> Recording -> Stopping ->
// Stopped, with Reset returning to Idle.
package recorder

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AxlandSlash/MeetingSummary/internal/audio"
	"github.com/AxlandSlash/MeetingSummary/internal/capture"
	"github.com/AxlandSlash/MeetingSummary/internal/store"
)

// State is one phase of the recording lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
)

var (
	// ErrNotIdle is returned when Start is called outside Idle.
	ErrNotIdle = errors.New("recorder is not idle")
	// ErrRecording is returned when Reset is called while recording.
	ErrRecording = errors.New("recording in progress, stop it first")
)

// EventKind discriminates engine events.
type EventKind string

const (
	EventStateChanged EventKind = "state_changed"
	EventSegment      EventKind = "segment"
	EventError        EventKind = "error"
)

// Event is one notification drained from Events().
type Event struct {
	Kind    EventKind
	State   State
	Segment *audio.Segment
	Err     error
}

// Config wires an Engine to its collaborators.
type Config struct {
	// SegmentsDir is the base directory; each meeting gets a subdirectory
	// named by its ID.
	SegmentsDir     string
	SampleRate      int
	Channels        int
	ChunkDuration   float64
	OverlapDuration float64
	Device          string

	CaptureFactory capture.Factory
	Meetings       store.MeetingRepo
	Segments       store.SegmentRepo
}

// Engine owns one live capture source and segmenter at a time. It enforces
// one active recording per instance through its state machine, not through
// any global registry.
type Engine struct {
	cfg Config

	mu        sync.RWMutex
	state     State
	sessionID uuid.UUID
	meetingID int64
	startedAt time.Time
	source    capture.Source
	segmenter *audio.Segmenter

	events chan Event
}

// New creates an idle engine.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		state:  StateIdle,
		events: make(chan Event, 64),
	}
}

// Events returns the engine's notification channel. Events are dropped
// (and logged) rather than block the recording path if the consumer falls
// behind.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// MeetingID returns the meeting the engine is (or was last) recording.
func (e *Engine) MeetingID() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meetingID
}

// setStateLocked updates the state and emits a notification. Callers must
// hold e.mu.
func (e *Engine) setStateLocked(next State) {
	prev := e.state
	e.state = next
	log.Info().
		Str("session_id", e.sessionID.String()).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("Recorder state changed")
	e.emit(Event{Kind: EventStateChanged, State: next})
}

// emit sends without blocking; a full channel drops the event.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("Event channel full, dropping event")
	}
}

// Start begins recording the given meeting. It is allowed only from Idle;
// any failure while acquiring resources tears down what was built and
// returns the engine to Idle.
func (e *Engine) Start(meetingID int64) error {
	e.mu.Lock()
	if e.state != StateIdle {
		state := e.state
		e.mu.Unlock()
		log.Warn().Str("state", string(state)).Msg("Cannot start recording")
		return fmt.Errorf("%w: state %s", ErrNotIdle, state)
	}
	e.meetingID = meetingID
	e.sessionID = uuid.New()
	e.setStateLocked(StateStarting)
	e.mu.Unlock()

	// Resource acquisition happens outside the lock; the Starting state
	// already excludes a second Start.
	if err := e.acquire(meetingID); err != nil {
		e.teardown()
		e.mu.Lock()
		e.setStateLocked(StateIdle)
		e.mu.Unlock()
		e.emit(Event{Kind: EventError, Err: err})
		log.Error().Err(err).Int64("meeting_id", meetingID).Msg("Failed to start recording")
		return err
	}

	e.mu.Lock()
	e.startedAt = time.Now()
	e.setStateLocked(StateRecording)
	e.mu.Unlock()

	log.Info().
		Str("session_id", e.sessionID.String()).
		Int64("meeting_id", meetingID).
		Msg("Recording started")
	return nil
}

// acquire builds and starts the segmenter and capture source.
func (e *Engine) acquire(meetingID int64) error {
	dir := filepath.Join(e.cfg.SegmentsDir, strconv.FormatInt(meetingID, 10))
	segmenter, err := audio.NewSegmenter(audio.SegmenterConfig{
		OutputDir:       dir,
		SampleRate:      e.cfg.SampleRate,
		Channels:        e.cfg.Channels,
		ChunkDuration:   e.cfg.ChunkDuration,
		OverlapDuration: e.cfg.OverlapDuration,
		// The meeting ID is captured here so the callback never reads it
		// back through the engine lock while the segmenter holds its own.
		OnSegment: func(seg audio.Segment) { e.handleSegment(meetingID, seg) },
	})
	if err != nil {
		return fmt.Errorf("failed to create segmenter: %w", err)
	}
	segmenter.Start()

	e.mu.Lock()
	e.segmenter = segmenter
	e.mu.Unlock()

	source, err := e.cfg.CaptureFactory(e.handleData)
	if err != nil {
		return fmt.Errorf("failed to create capture source: %w", err)
	}

	e.mu.Lock()
	e.source = source
	e.mu.Unlock()

	if err := source.Start(e.cfg.Device); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	if err := e.cfg.Meetings.StartRecording(meetingID, segmenter.OutputDir()); err != nil {
		return fmt.Errorf("failed to persist recording start: %w", err)
	}
	return nil
}

// handleData forwards captured audio into the segmenter, but only while
// recording. Blocks arriving in any other state are dropped.
func (e *Engine) handleData(data []byte) {
	e.mu.RLock()
	segmenter := e.segmenter
	recording := e.state == StateRecording
	e.mu.RUnlock()

	if !recording || segmenter == nil {
		return
	}
	segmenter.Write(data)
}

// handleSegment persists segment metadata, then notifies listeners. A
// persistence failure is logged but never suppresses the notification.
func (e *Engine) handleSegment(meetingID int64, seg audio.Segment) {
	rec := &store.SegmentRecord{
		MeetingID: meetingID,
		Index:     seg.Index,
		Path:      seg.Path,
		Start:     seg.Start,
		End:       seg.End,
	}
	if err := e.cfg.Segments.CreateSegment(rec); err != nil {
		log.Error().Err(err).Int64("meeting_id", meetingID).Int("index", seg.Index).
			Msg("Failed to persist segment metadata")
	}

	e.emit(Event{Kind: EventSegment, Segment: &seg})
}

// Stop ends the recording: the capture source stops first, the segmenter
// flushes its final partial segment, and the stop event is persisted with
// the cumulative received duration. Errors along the way are reported but
// never prevent the terminal Stopped transition. Calling Stop outside
// Recording is a logged no-op returning 0.
func (e *Engine) Stop() float64 {
	e.mu.Lock()
	if e.state != StateRecording {
		state := e.state
		e.mu.Unlock()
		log.Warn().Str("state", string(state)).Msg("Cannot stop recording")
		return 0
	}
	e.setStateLocked(StateStopping)
	source := e.source
	segmenter := e.segmenter
	meetingID := e.meetingID
	e.mu.Unlock()

	var duration float64

	if source != nil {
		if err := source.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop capture source")
			e.emit(Event{Kind: EventError, Err: err})
		}
	}

	if segmenter != nil {
		segmenter.Stop()
		duration = segmenter.TotalReceivedSeconds()
	}

	if err := e.cfg.Meetings.StopRecording(meetingID, duration); err != nil {
		log.Error().Err(err).Int64("meeting_id", meetingID).Msg("Failed to persist recording stop")
		e.emit(Event{Kind: EventError, Err: err})
	}

	e.teardown()

	e.mu.Lock()
	e.setStateLocked(StateStopped)
	e.mu.Unlock()

	log.Info().
		Int64("meeting_id", meetingID).
		Float64("duration", duration).
		Msg("Recording stopped")
	return duration
}

// teardown releases the capture source; the segmenter stays readable for
// duration queries until Reset.
func (e *Engine) teardown() {
	e.mu.Lock()
	source := e.source
	e.source = nil
	e.mu.Unlock()

	if source != nil {
		if err := source.Stop(); err != nil {
			log.Debug().Err(err).Msg("Capture source teardown")
		}
	}
}

// Reset returns the engine to Idle. It is rejected while recording.
func (e *Engine) Reset() error {
	e.mu.Lock()
	if e.state == StateRecording {
		e.mu.Unlock()
		log.Warn().Msg("Cannot reset while recording")
		return ErrRecording
	}
	source := e.source
	e.source = nil
	e.segmenter = nil
	e.meetingID = 0
	e.startedAt = time.Time{}
	e.setStateLocked(StateIdle)
	e.mu.Unlock()

	if source != nil {
		if err := source.Stop(); err != nil {
			log.Debug().Err(err).Msg("Capture source teardown")
		}
	}
	return nil
}

// ElapsedSeconds reports wall-clock time since the session started while
// recording, and the segmenter's cumulative received duration otherwise.
func (e *Engine) ElapsedSeconds() float64 {
	e.mu.RLock()
	recording := e.state == StateRecording && !e.startedAt.IsZero()
	startedAt := e.startedAt
	segmenter := e.segmenter
	e.mu.RUnlock()

	// Segmenter queries run outside the engine lock: its callbacks fire
	// under its own mutex, and holding both here invites a lock cycle.
	if recording {
		return time.Since(startedAt).Seconds()
	}
	if segmenter != nil {
		return segmenter.TotalReceivedSeconds()
	}
	return 0
}

// SegmentCount reports how many segments the current session emitted.
func (e *Engine) SegmentCount() int {
	e.mu.RLock()
	segmenter := e.segmenter
	e.mu.RUnlock()

	if segmenter == nil {
		return 0
	}
	return segmenter.SegmentCount()
}
