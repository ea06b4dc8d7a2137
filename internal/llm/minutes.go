package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/AxlandSlash/MeetingSummary/internal/store"
	"github.com/AxlandSlash/MeetingSummary/internal/transcript"
)

// Decision is one decision extracted from the meeting.
type Decision struct {
	Content      string `json:"content"`
	Participants string `json:"participants"`
}

// ActionItem is one follow-up task extracted from the meeting.
type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee"`
	Deadline string `json:"deadline"`
}

// Topic is one subject block of the minutes.
type Topic struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Minutes is the structured output of one generation call.
type Minutes struct {
	Summary     string       `json:"summary"`
	Decisions   []Decision   `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
	Topics      []Topic      `json:"topics"`
	Raw         string       `json:"-"`
}

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// MinutesGenerator turns a merged transcript plus meeting context into
// structured minutes via a Generator.
type MinutesGenerator struct {
	gen Generator
}

// NewMinutesGenerator wraps a text generation provider.
func NewMinutesGenerator(gen Generator) *MinutesGenerator {
	return &MinutesGenerator{gen: gen}
}

// Generate builds the prompts, calls the provider, and parses the response.
// A response with no parseable JSON payload degrades to summary-only minutes
// rather than an error.
func (g *MinutesGenerator) Generate(
	ctx context.Context,
	meeting *store.Meeting,
	result transcript.Result,
	notes []*store.Note,
) (*Minutes, error) {
	log.Info().Int64("meeting_id", meeting.ID).Str("title", meeting.Title).Msg("Generating meeting minutes")

	noteLines := make([]noteLine, len(notes))
	for i, n := range notes {
		noteLines[i] = noteLine{offset: n.TimeOffset, tag: n.Tag, content: n.Content}
	}

	systemPrompt := buildSystemPrompt(meeting.Perspective, meeting.OutputStyle, meeting.CustomPerspective)
	userPrompt := buildUserPrompt(formatTranscript(result), noteLines, meeting.Title, meeting.Participants)

	response, err := g.gen.Complete(ctx, userPrompt, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate minutes: %w", err)
	}

	minutes := ParseMinutes(response)
	log.Info().
		Int64("meeting_id", meeting.ID).
		Int("summary_length", len(minutes.Summary)).
		Int("decisions", len(minutes.Decisions)).
		Int("action_items", len(minutes.ActionItems)).
		Msg("Meeting minutes generated")

	return minutes, nil
}

// formatTranscript renders spans as "[HH:MM:SS] speaker: text" lines.
func formatTranscript(result transcript.Result) string {
	lines := make([]string, 0, len(result.Spans))
	for _, span := range result.Spans {
		speaker := span.Speaker
		if speaker == "" {
			speaker = transcript.UnknownSpeaker
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", formatClock(span.Start), speaker, span.Text))
	}
	return strings.Join(lines, "\n")
}

// ParseMinutes extracts the first JSON object embedded in the response. When
// none parses, the whole response becomes the summary and the structured
// fields stay empty.
func ParseMinutes(response string) *Minutes {
	if match := jsonObjectPattern.FindString(response); match != "" {
		var minutes Minutes
		if err := json.Unmarshal([]byte(match), &minutes); err == nil {
			minutes.Raw = response
			minutes.normalize()
			return &minutes
		} else {
			log.Warn().Err(err).Msg("Failed to parse minutes JSON")
		}
	}

	log.Warn().Msg("No structured payload in minutes response, using plain summary")
	minutes := &Minutes{Summary: response, Raw: response}
	minutes.normalize()
	return minutes
}

// normalize replaces nil slices with empty ones so the persisted JSON reads
// "[]" rather than "null" when the payload omits a field.
func (m *Minutes) normalize() {
	if m.Decisions == nil {
		m.Decisions = []Decision{}
	}
	if m.ActionItems == nil {
		m.ActionItems = []ActionItem{}
	}
	if m.Topics == nil {
		m.Topics = []Topic{}
	}
}
