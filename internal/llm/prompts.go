package llm

import (
	"fmt"
	"strings"
)

const systemBase = `You are a professional meeting minutes assistant. Given a meeting transcript and the user's own notes, produce structured meeting minutes.

Your output must contain these parts:
1. Summary: one to three paragraphs covering the core content and conclusions
2. Decisions: the important decisions made during the meeting
3. Action items: tasks to follow up on, with assignee and deadline where stated
4. Topics: detailed minutes grouped by subject

Output requirements:
- Respond with a JSON object of this exact shape:
{
  "summary": "summary text",
  "decisions": [
    {"content": "what was decided", "participants": "who is involved"}
  ],
  "action_items": [
    {"task": "task description", "assignee": "owner", "deadline": "due date"}
  ],
  "topics": [
    {"title": "topic title", "content": "detailed topic minutes"}
  ]
}`

var perspectivePrompts = map[string]string{
	"worker": `Analyze and summarize this meeting from the perspective of an individual contributor. Pay particular attention to:
- Concrete tasks and deliverables to complete
- Time checkpoints and deadlines
- Explicit requests and implicit expectations from management
- Work that needs cross-team coordination
- Anything likely to affect personal performance review`,

	"manager": `Analyze and summarize this meeting from the perspective of a team manager. Pay particular attention to:
- Overall project progress and risks
- Resource allocation and staffing
- Cross-team dependencies
- Key information to report upward
- Task assignments across the team
- Management decisions that need to be made`,

	"boss": `Analyze and summarize this meeting from an executive perspective. Pay particular attention to:
- Return on investment
- Key business decisions and strategic impact
- Cost versus benefit
- Significant opportunities or risks
- Issues that need executive attention
- Long-term strategic alignment`,

	"custom": `Analyze and summarize this meeting according to the user's own focus.

The user's stated focus:
%s

Tailor the analysis to those points.`,
}

var stylePrompts = map[string]string{
	"neutral":    "Write in a neutral, professional tone.",
	"sarcastic":  "Write with a dry, lightly sarcastic edge, without distorting the facts.",
	"comforting": "Write in a reassuring, encouraging tone.",
}

// buildSystemPrompt assembles the system prompt from the base template plus
// the requested perspective and style. Unknown values fall back to the
// worker perspective and neutral style.
func buildSystemPrompt(perspective, style, customPerspective string) string {
	p, ok := perspectivePrompts[perspective]
	if !ok {
		p = perspectivePrompts["worker"]
	}
	if perspective == "custom" {
		focus := customPerspective
		if focus == "" {
			focus = "(none provided)"
		}
		p = fmt.Sprintf(p, focus)
	}

	s, ok := stylePrompts[style]
	if !ok {
		s = stylePrompts["neutral"]
	}

	return systemBase + "\n\n" + p + "\n\n" + s
}

// buildUserPrompt embeds the transcript, notes, and meeting metadata.
func buildUserPrompt(transcriptText string, notes []noteLine, title, participants string) string {
	var b strings.Builder

	b.WriteString("## Meeting\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	if participants != "" {
		fmt.Fprintf(&b, "Participants: %s\n", participants)
	}

	b.WriteString("\n## Transcript\n")
	if transcriptText == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(transcriptText)
		b.WriteString("\n")
	}

	if len(notes) > 0 {
		b.WriteString("\n## User notes\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "[%s] (%s) %s\n", formatClock(n.offset), n.tag, n.content)
		}
	}

	b.WriteString("\nGenerate the meeting minutes now.")
	return b.String()
}

type noteLine struct {
	offset  float64
	tag     string
	content string
}

// formatClock renders a second offset as HH:MM:SS.
func formatClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
