// Package transcript holds the recognition result model and the merge
// engine that folds per-segment results into one deduplicated transcript.
package transcript

// UnknownSpeaker is the bucket spans without a speaker identifier group
// under.
const UnknownSpeaker = "unknown"

// Span is one timed, attributed unit of recognized text. Start and End are
// seconds on the full recording timeline, not segment-local offsets.
type Span struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result is the ordered output of one recognition call.
type Result struct {
	Spans    []Span  `json:"spans"`
	FullText string  `json:"full_text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language,omitempty"`
}
