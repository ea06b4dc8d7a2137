package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AxlandSlash/MeetingSummary/internal/store"
	"github.com/AxlandSlash/MeetingSummary/internal/taskqueue"
	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

type recognizerCall struct {
	path   string
	offset float64
}

// fakeRecognizer returns one span per call, offset onto the recording
// timeline. A non-nil gate blocks each call until the test releases it.
type fakeRecognizer struct {
	mu    sync.Mutex
	calls []recognizerCall
	gate  chan struct{}
	err   error
	empty bool
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, audioPath string, offset float64) (transcript.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recognizerCall{path: audioPath, offset: offset})
	n := len(f.calls)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return transcript.Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return transcript.Result{}, f.err
	}
	if f.empty {
		return transcript.Result{}, nil
	}

	// Each call gets its own 10-second slot so spans from different calls
	// never look like boundary duplicates to the merger.
	start := offset + float64(n-1)*10
	span := transcript.Span{
		Start: start,
		End:   start + 2,
		Text:  fmt.Sprintf("utterance %d from %s", n, audioPath),
	}
	return transcript.Result{Spans: []transcript.Span{span}, Duration: 2, Language: "en"}, nil
}

func (f *fakeRecognizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRecognizer) Name() string              { return "fake" }
func (f *fakeRecognizer) SupportsDiarization() bool { return false }
func (f *fakeRecognizer) Close() error              { return nil }

// fakeGenerator returns a canned response and counts calls.
type fakeGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.response, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) Close() error { return nil }

type testPipeline struct {
	pipe    *Pipeline
	rec     *fakeRecognizer
	gen     *fakeGenerator
	store   *store.FileStore
	meeting *store.Meeting
}

func newTestPipeline(t *testing.T, mutate func(*Config)) *testPipeline {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	meeting := &store.Meeting{Title: "planning"}
	require.NoError(t, st.CreateMeeting(meeting))

	rec := &fakeRecognizer{}
	gen := &fakeGenerator{response: `{"summary":"it went fine","decisions":[],"action_items":[],"topics":[]}`}

	cfg := Config{
		Recognizer: rec,
		Generator:  gen,
		Store:      st,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testPipeline{pipe: New(cfg), rec: rec, gen: gen, store: st, meeting: meeting}
}

func TestPipelineProcessesSuppliedRefs(t *testing.T) {
	tp := newTestPipeline(t, nil)

	err := tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"a.wav", "b.wav"})
	require.NoError(t, err)
	require.Equal(t, StateDone, tp.pipe.State())
	require.Equal(t, 1.0, tp.pipe.Progress())
	require.Equal(t, 2, tp.rec.callCount())
	// Supplied references carry no timeline offset.
	require.Equal(t, 0.0, tp.rec.calls[0].offset)

	loaded, err := tp.store.Meeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusDone, loaded.Status)
	require.Equal(t, "it went fine", loaded.Summary)

	recs, err := tp.store.TranscriptByMeeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestPipelineUsesPersistedSegmentsWithOffsets(t *testing.T) {
	tp := newTestPipeline(t, nil)

	require.NoError(t, tp.store.CreateSegment(&store.SegmentRecord{
		MeetingID: tp.meeting.ID, Index: 0, Path: "chunk_0000.wav", Start: 0,
	}))
	require.NoError(t, tp.store.CreateSegment(&store.SegmentRecord{
		MeetingID: tp.meeting.ID, Index: 1, Path: "chunk_0001.wav", Start: 59.5,
	}))

	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID, nil))

	require.Equal(t, 2, tp.rec.callCount())
	require.Equal(t, "chunk_0000.wav", tp.rec.calls[0].path)
	require.Equal(t, 59.5, tp.rec.calls[1].offset)

	recs, err := tp.store.TranscriptByMeeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// The second call's span carries the segment offset plus the fake's
	// 10-second per-call slot.
	require.Equal(t, 69.5, recs[1].Start)
}

func TestPipelineRejectsConcurrentRun(t *testing.T) {
	tp := newTestPipeline(t, nil)
	tp.rec.gate = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"a.wav"})
	}()

	// Wait until the first run is inside the recognizer.
	require.Eventually(t, func() bool { return tp.rec.callCount() == 1 },
		2*time.Second, 5*time.Millisecond)
	require.Equal(t, StateTranscribing, tp.pipe.State())

	err := tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"b.wav"})
	require.ErrorIs(t, err, ErrBusy)
	// The rejected call never reached the recognizer.
	require.Equal(t, 1, tp.rec.callCount())

	close(tp.rec.gate)
	require.NoError(t, <-firstDone)
	require.Equal(t, StateDone, tp.pipe.State())
}

func TestPipelineEmptyTranscriptSkipsGenerator(t *testing.T) {
	tp := newTestPipeline(t, nil)
	tp.rec.empty = true

	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"a.wav"}))

	require.Equal(t, 0, tp.gen.callCount())
	loaded, err := tp.store.Meeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusDone, loaded.Status)
	require.Equal(t, "(no transcript content)", loaded.Summary)
	require.Equal(t, "[]", loaded.DecisionsJSON)
	require.Equal(t, "[]", loaded.ActionItemsJSON)
	require.Equal(t, "[]", loaded.TopicsJSON)
}

func TestPipelineNoSegmentsAtAll(t *testing.T) {
	tp := newTestPipeline(t, nil)

	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID, nil))
	require.Equal(t, 0, tp.rec.callCount())
	require.Equal(t, 0, tp.gen.callCount())

	loaded, err := tp.store.Meeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Equal(t, "(no transcript content)", loaded.Summary)
}

func TestPipelineRecognizerFailure(t *testing.T) {
	tp := newTestPipeline(t, nil)
	tp.rec.err = errors.New("model unavailable")

	err := tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"a.wav"})
	require.Error(t, err)
	require.Equal(t, StateFailed, tp.pipe.State())

	loaded, err := tp.store.Meeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, loaded.Status)
	require.Equal(t, 0, tp.gen.callCount())
}

func TestPipelineUnknownMeetingFails(t *testing.T) {
	tp := newTestPipeline(t, nil)

	err := tp.pipe.Process(context.Background(), 999, []string{"a.wav"})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, StateFailed, tp.pipe.State())
}

func TestPipelineGeneratorFallbackResponse(t *testing.T) {
	tp := newTestPipeline(t, nil)
	tp.gen.response = "just prose, no structure"

	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"a.wav"}))

	loaded, err := tp.store.Meeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Equal(t, "just prose, no structure", loaded.Summary)
	require.Equal(t, "[]", loaded.DecisionsJSON)
}

func TestPipelineParallelTranscription(t *testing.T) {
	tp := newTestPipeline(t, func(cfg *Config) {
		cfg.Parallelism = 3
	})

	refs := []string{"a.wav", "b.wav", "c.wav", "d.wav", "e.wav"}
	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID, refs))
	require.Equal(t, 5, tp.rec.callCount())
	require.Equal(t, StateDone, tp.pipe.State())

	recs, err := tp.store.TranscriptByMeeting(tp.meeting.ID)
	require.NoError(t, err)
	require.Len(t, recs, 5)
}

func TestPipelineCanRunAgainAfterCompletion(t *testing.T) {
	tp := newTestPipeline(t, nil)

	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"a.wav"}))
	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID, []string{"a.wav"}))
	require.Equal(t, StateDone, tp.pipe.State())
}

func TestPipelineProgressEventsMonotonic(t *testing.T) {
	tp := newTestPipeline(t, nil)

	require.NoError(t, tp.pipe.Process(context.Background(), tp.meeting.ID,
		[]string{"a.wav", "b.wav", "c.wav"}))

	last := -1.0
	sawDone := false
	for {
		select {
		case ev := <-tp.pipe.Events():
			require.GreaterOrEqual(t, ev.Progress, last)
			last = ev.Progress
			if ev.State == StateDone {
				sawDone = true
			}
		default:
			require.True(t, sawDone)
			require.Equal(t, 1.0, last)
			return
		}
	}
}

func TestPipelineTaskHandler(t *testing.T) {
	tp := newTestPipeline(t, nil)

	q := taskqueue.New(1, 8)
	q.Register(TaskKind, tp.pipe.TaskHandler())
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop(true)

	require.NoError(t, tp.pipe.ProcessAsync(q, tp.meeting.ID, []string{"a.wav"}))

	require.Eventually(t, func() bool {
		loaded, err := tp.store.Meeting(tp.meeting.ID)
		return err == nil && loaded.Status == store.StatusDone
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPipelineTaskHandlerRejectsBadPayload(t *testing.T) {
	tp := newTestPipeline(t, nil)

	_, err := tp.pipe.TaskHandler()(context.Background(), "not a request")
	require.Error(t, err)
}
