// Package pipeline drives the per-meeting post-recording flow:
// transcription of every segment, transcript merge, minutes generation, and
// persistence, through the states Idle -> Transcribing -> Merging ->
// Generating -> Done, with Failed reachable from any working state.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/AxlandSlash/MeetingSummary/internal/asr"
	"github.com/AxlandSlash/MeetingSummary/internal/llm"
	"github.com/AxlandSlash/MeetingSummary/internal/store"
	"github.com/AxlandSlash/MeetingSummary/internal/taskqueue"
	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

// State is one phase of a pipeline run.
type State string

const (
	StateIdle         State = "idle"
	StateTranscribing State = "transcribing"
	StateMerging      State = "merging"
	StateGenerating   State = "generating"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// terminal reports whether a new run may begin from this state.
func (s State) terminal() bool {
	return s == StateIdle || s == StateDone || s == StateFailed
}

// ErrBusy is returned when Process is called while a run is active.
var ErrBusy = errors.New("pipeline run already in progress")

// noContentPlaceholder is persisted as the summary when a meeting produced
// no transcript at all.
const noContentPlaceholder = "(no transcript content)"

// transcribeShare is the fraction of total progress covered by the
// transcription stage.
const transcribeShare = 0.6

// TaskKind identifies whole-pipeline runs submitted to a task queue.
const TaskKind taskqueue.Kind = "pipeline.process"

// Request is the payload of one queued pipeline run.
type Request struct {
	MeetingID int64
	AudioRefs []string
}

// Event is one notification drained from Events().
type Event struct {
	State    State
	Progress float64
	Message  string
	Err      error
}

// Config wires a Pipeline to its collaborators.
type Config struct {
	Recognizer asr.Recognizer
	Generator  llm.Generator
	Store      store.Store

	Merger transcript.MergerConfig
	// TranscribeTimeout bounds each recognition call; zero defaults to two
	// minutes. A call exceeding it fails the run.
	TranscribeTimeout time.Duration
	// Parallelism caps concurrent recognition calls; values below two run
	// sequentially.
	Parallelism int
}

// Pipeline executes at most one run at a time. The coarse lock guards the
// state machine only; it is never held across a provider or repository
// call.
type Pipeline struct {
	cfg     Config
	minutes *llm.MinutesGenerator

	mu        sync.Mutex
	state     State
	meetingID int64
	runID     uuid.UUID
	progress  float64

	events chan Event
}

// New creates an idle pipeline.
func New(cfg Config) *Pipeline {
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 2 * time.Minute
	}
	return &Pipeline{
		cfg:     cfg,
		minutes: llm.NewMinutesGenerator(cfg.Generator),
		state:   StateIdle,
		events:  make(chan Event, 64),
	}
}

// Events returns the pipeline's notification channel. Events are dropped
// (and logged) rather than block the run if the consumer falls behind.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// State returns the current run state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Progress returns the last reported progress fraction in [0,1].
func (p *Pipeline) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// MeetingID returns the meeting of the current (or last) run.
func (p *Pipeline) MeetingID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meetingID
}

// Process runs the full flow for one meeting. With audioRefs supplied, each
// reference is transcribed with a zero time offset; otherwise the meeting's
// persisted segments are used, each offset by its recorded start time.
// A second Process call while a run is active is rejected with ErrBusy and
// has no side effects.
func (p *Pipeline) Process(ctx context.Context, meetingID int64, audioRefs []string) error {
	p.mu.Lock()
	if !p.state.terminal() {
		state := p.state
		p.mu.Unlock()
		log.Warn().Str("state", string(state)).Int64("meeting_id", meetingID).
			Msg("Pipeline busy, rejecting run")
		return fmt.Errorf("%w: state %s", ErrBusy, state)
	}
	p.meetingID = meetingID
	p.runID = uuid.New()
	p.progress = 0
	p.setStateLocked(StateTranscribing, "transcribing segments")
	p.mu.Unlock()

	if err := p.run(ctx, meetingID, audioRefs); err != nil {
		p.mu.Lock()
		p.state = StateFailed
		progress := p.progress
		p.mu.Unlock()
		p.emit(Event{State: StateFailed, Progress: progress, Message: err.Error(), Err: err})

		if serr := p.cfg.Store.UpdateStatus(meetingID, store.StatusFailed); serr != nil {
			log.Error().Err(serr).Int64("meeting_id", meetingID).Msg("Failed to persist failed status")
		}
		log.Error().Err(err).Int64("meeting_id", meetingID).Msg("Pipeline run failed")
		return err
	}

	p.mu.Lock()
	p.setStateLocked(StateDone, "processing complete")
	p.mu.Unlock()
	log.Info().Int64("meeting_id", meetingID).Msg("Pipeline run complete")
	return nil
}

func (p *Pipeline) run(ctx context.Context, meetingID int64, audioRefs []string) error {
	meeting, err := p.cfg.Store.Meeting(meetingID)
	if err != nil {
		return fmt.Errorf("failed to load meeting %d: %w", meetingID, err)
	}

	if err := p.cfg.Store.UpdateStatus(meetingID, store.StatusProcessing); err != nil {
		return fmt.Errorf("failed to mark meeting processing: %w", err)
	}

	merged, err := p.transcribe(ctx, meetingID, audioRefs)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.setStateLocked(StateMerging, "merging transcript")
	p.mu.Unlock()
	if err := p.saveTranscript(meetingID, merged); err != nil {
		return err
	}

	p.mu.Lock()
	p.setStateLocked(StateGenerating, "generating minutes")
	p.mu.Unlock()
	if err := p.generateMinutes(ctx, meeting, merged); err != nil {
		return err
	}

	if err := p.cfg.Store.UpdateStatus(meetingID, store.StatusDone); err != nil {
		return fmt.Errorf("failed to mark meeting done: %w", err)
	}
	return nil
}

// job is one recognition call: an audio reference plus its offset on the
// recording timeline.
type job struct {
	ref    string
	offset float64
}

func (p *Pipeline) transcribe(ctx context.Context, meetingID int64, audioRefs []string) (transcript.Result, error) {
	merger := transcript.NewMerger(p.cfg.Merger)

	jobs := make([]job, 0, len(audioRefs))
	for _, ref := range audioRefs {
		jobs = append(jobs, job{ref: ref})
	}
	if len(jobs) == 0 {
		segments, err := p.cfg.Store.SegmentsByMeeting(meetingID)
		if err != nil {
			return transcript.Result{}, fmt.Errorf("failed to load segments: %w", err)
		}
		for _, seg := range segments {
			jobs = append(jobs, job{ref: seg.Path, offset: seg.Start})
		}
	}

	if len(jobs) == 0 {
		log.Warn().Int64("meeting_id", meetingID).Msg("Meeting has no audio segments")
		return merger.MergedResult(), nil
	}

	results := make([]transcript.Result, len(jobs))
	total := len(jobs)

	if p.cfg.Parallelism > 1 {
		// Recognition calls run concurrently; results are folded into the
		// merger in segment order afterwards so deduplication stays
		// deterministic.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Parallelism)
		var completed int64
		var progressMu sync.Mutex

		for i, j := range jobs {
			i, j := i, j
			g.Go(func() error {
				res, err := p.transcribeOne(gctx, j)
				if err != nil {
					return err
				}
				results[i] = res

				progressMu.Lock()
				completed++
				done := completed
				progressMu.Unlock()
				p.reportProgress(float64(done)/float64(total)*transcribeShare,
					fmt.Sprintf("transcribed %d/%d segments", done, total))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return transcript.Result{}, err
		}
	} else {
		for i, j := range jobs {
			res, err := p.transcribeOne(ctx, j)
			if err != nil {
				return transcript.Result{}, err
			}
			results[i] = res
			p.reportProgress(float64(i+1)/float64(total)*transcribeShare,
				fmt.Sprintf("transcribed %d/%d segments", i+1, total))
		}
	}

	for _, res := range results {
		merger.AddResult(res)
	}
	return merger.MergedResult(), nil
}

// transcribeOne bounds a single recognition call by the configured timeout.
// The timeout abandons waiting; it cannot stop the remote call itself.
func (p *Pipeline) transcribeOne(ctx context.Context, j job) (transcript.Result, error) {
	tctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()

	res, err := p.cfg.Recognizer.Transcribe(tctx, j.ref, j.offset)
	if err != nil {
		return transcript.Result{}, fmt.Errorf("failed to transcribe %s: %w", j.ref, err)
	}
	return res, nil
}

// saveTranscript replaces the meeting's transcript rows with the merged
// spans, making them the new ground truth.
func (p *Pipeline) saveTranscript(meetingID int64, merged transcript.Result) error {
	recs := make([]*store.TranscriptRecord, len(merged.Spans))
	for i, span := range merged.Spans {
		recs[i] = &store.TranscriptRecord{
			MeetingID:  meetingID,
			Start:      span.Start,
			End:        span.End,
			Speaker:    span.Speaker,
			Text:       span.Text,
			Confidence: span.Confidence,
		}
	}
	if err := p.cfg.Store.ReplaceTranscript(meetingID, recs); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

func (p *Pipeline) generateMinutes(ctx context.Context, meeting *store.Meeting, merged transcript.Result) error {
	p.reportProgress(0.7, "generating minutes")

	if len(merged.Spans) == 0 {
		log.Warn().Int64("meeting_id", meeting.ID).Msg("Empty transcript, skipping minutes generation")
		if err := p.cfg.Store.SaveMinutes(meeting.ID, noContentPlaceholder, "[]", "[]", "[]"); err != nil {
			return fmt.Errorf("failed to save placeholder minutes: %w", err)
		}
		p.reportProgress(1.0, "minutes saved")
		return nil
	}

	notes, err := p.cfg.Store.NotesByMeeting(meeting.ID)
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}

	minutes, err := p.minutes.Generate(ctx, meeting, merged, notes)
	if err != nil {
		return err
	}

	p.reportProgress(0.9, "saving minutes")

	decisions, err := json.Marshal(minutes.Decisions)
	if err != nil {
		return fmt.Errorf("failed to encode decisions: %w", err)
	}
	actionItems, err := json.Marshal(minutes.ActionItems)
	if err != nil {
		return fmt.Errorf("failed to encode action items: %w", err)
	}
	topics, err := json.Marshal(minutes.Topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}

	if err := p.cfg.Store.SaveMinutes(meeting.ID, minutes.Summary,
		string(decisions), string(actionItems), string(topics)); err != nil {
		return fmt.Errorf("failed to save minutes: %w", err)
	}

	p.reportProgress(1.0, "minutes saved")
	return nil
}

// ProcessAsync submits the run to a task queue and returns immediately. The
// outcome is observable through Events() and the persisted meeting status.
func (p *Pipeline) ProcessAsync(q *taskqueue.Queue, meetingID int64, audioRefs []string) error {
	return q.Submit(taskqueue.Unit{
		Kind:    TaskKind,
		Payload: Request{MeetingID: meetingID, AudioRefs: audioRefs},
	})
}

// TaskHandler adapts the pipeline to the task queue so whole runs can be
// queued alongside other background work.
func (p *Pipeline) TaskHandler() taskqueue.Handler {
	return func(ctx context.Context, payload any) (any, error) {
		req, ok := payload.(Request)
		if !ok {
			return nil, fmt.Errorf("unexpected payload type %T", payload)
		}
		return nil, p.Process(ctx, req.MeetingID, req.AudioRefs)
	}
}

// setStateLocked updates the state and emits a notification. Callers must
// hold p.mu.
func (p *Pipeline) setStateLocked(next State, message string) {
	p.state = next
	log.Info().
		Str("run_id", p.runID.String()).
		Int64("meeting_id", p.meetingID).
		Str("state", string(next)).
		Str("message", message).
		Msg("Pipeline state changed")
	p.emit(Event{State: next, Progress: p.progress, Message: message})
}

// reportProgress clamps progress to be monotonically non-decreasing within
// a run and emits a notification.
func (p *Pipeline) reportProgress(progress float64, message string) {
	p.mu.Lock()
	if progress < p.progress {
		progress = p.progress
	}
	p.progress = progress
	state := p.state
	p.mu.Unlock()

	p.emit(Event{State: state, Progress: progress, Message: message})
}

func (p *Pipeline) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		log.Warn().Str("state", string(ev.State)).Msg("Pipeline event channel full, dropping event")
	}
}
