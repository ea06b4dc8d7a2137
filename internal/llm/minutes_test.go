package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AxlandSlash/MeetingSummary/internal/store"
	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

// fakeGenerator records the prompts it received and returns a canned
// response.
type fakeGenerator struct {
	response     string
	err          error
	prompt       string
	systemPrompt string
	calls        int
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	f.systemPrompt = systemPrompt
	return f.response, f.err
}

func (f *fakeGenerator) Close() error { return nil }

func TestParseMinutesExtractsEmbeddedJSON(t *testing.T) {
	response := "Here are your minutes:\n" +
		`{"summary":"we agreed on the plan","decisions":[{"content":"ship friday","participants":"alice, bob"}],` +
		`"action_items":[{"task":"write docs","assignee":"bob","deadline":"thursday"}],` +
		`"topics":[{"title":"launch","content":"discussed rollout"}]}` +
		"\nLet me know if you need changes."

	m := ParseMinutes(response)
	require.Equal(t, "we agreed on the plan", m.Summary)
	require.Len(t, m.Decisions, 1)
	require.Equal(t, "ship friday", m.Decisions[0].Content)
	require.Len(t, m.ActionItems, 1)
	require.Equal(t, "bob", m.ActionItems[0].Assignee)
	require.Len(t, m.Topics, 1)
	require.Equal(t, response, m.Raw)
}

func TestParseMinutesFallsBackToPlainSummary(t *testing.T) {
	m := ParseMinutes("The meeting covered scheduling. No structured data here.")
	require.Equal(t, "The meeting covered scheduling. No structured data here.", m.Summary)
	require.Empty(t, m.Decisions)
	require.Empty(t, m.ActionItems)
	require.Empty(t, m.Topics)

	// Malformed JSON degrades the same way.
	m = ParseMinutes(`{"summary": broken`)
	require.Equal(t, `{"summary": broken`, m.Summary)
}

func TestParseMinutesNeverLeavesNilSlices(t *testing.T) {
	// Fallback path: slices must marshal as empty arrays, not null.
	m := ParseMinutes("just prose, nothing structured")
	for _, field := range []interface{}{m.Decisions, m.ActionItems, m.Topics} {
		data, err := json.Marshal(field)
		require.NoError(t, err)
		require.Equal(t, "[]", string(data))
	}

	// Parsed payloads that omit keys get the same treatment.
	m = ParseMinutes(`{"summary":"short one","decisions":[{"content":"ship it","participants":"alice"}]}`)
	require.Len(t, m.Decisions, 1)
	for _, field := range []interface{}{m.ActionItems, m.Topics} {
		data, err := json.Marshal(field)
		require.NoError(t, err)
		require.Equal(t, "[]", string(data))
	}
}

func TestGenerateBuildsPromptsFromMeetingContext(t *testing.T) {
	gen := &fakeGenerator{response: `{"summary":"short one"}`}
	mg := NewMinutesGenerator(gen)

	meeting := &store.Meeting{
		ID:           7,
		Title:        "roadmap review",
		Perspective:  "manager",
		OutputStyle:  "sarcastic",
		Participants: "alice, bob",
	}
	result := transcript.Result{Spans: []transcript.Span{
		{Start: 0, End: 2, Text: "let's begin", Speaker: "speaker_0"},
		{Start: 65, End: 68, Text: "moving on"},
	}}
	notes := []*store.Note{
		{TimeOffset: 30, Tag: "todo", Content: "check the budget"},
	}

	m, err := mg.Generate(context.Background(), meeting, result, notes)
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)
	require.Equal(t, "short one", m.Summary)

	require.Contains(t, gen.systemPrompt, "team manager")
	require.Contains(t, gen.systemPrompt, "sarcastic")
	require.Contains(t, gen.prompt, "roadmap review")
	require.Contains(t, gen.prompt, "alice, bob")
	require.Contains(t, gen.prompt, "[00:00:00] speaker_0: let's begin")
	require.Contains(t, gen.prompt, "[00:01:05] unknown: moving on")
	require.Contains(t, gen.prompt, "[00:00:30] (todo) check the budget")
}

func TestGeneratePropagatesProviderError(t *testing.T) {
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	mg := NewMinutesGenerator(gen)

	_, err := mg.Generate(context.Background(), &store.Meeting{ID: 1}, transcript.Result{}, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildSystemPromptFallbacksAndCustomFocus(t *testing.T) {
	// Unknown values fall back to worker perspective and neutral style.
	p := buildSystemPrompt("astronaut", "shouty", "")
	require.Contains(t, p, "individual contributor")
	require.Contains(t, p, "neutral, professional tone")

	p = buildSystemPrompt("custom", "comforting", "focus on security sign-off")
	require.Contains(t, p, "focus on security sign-off")
	require.Contains(t, p, "reassuring")
	require.False(t, strings.Contains(p, "%s"))
}

func TestBuildUserPromptEmptyTranscript(t *testing.T) {
	p := buildUserPrompt("", nil, "quick sync", "")
	require.Contains(t, p, "(empty)")
	require.NotContains(t, p, "## User notes")
}

func TestFormatClock(t *testing.T) {
	require.Equal(t, "00:00:00", formatClock(0))
	require.Equal(t, "00:01:05", formatClock(65.9))
	require.Equal(t, "01:02:03", formatClock(3723))
}
