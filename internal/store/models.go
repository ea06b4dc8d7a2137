// Package store defines the persistence model and repository contracts for
// meetings, audio segments, transcript spans, and notes, plus a JSON
// file-backed implementation.
package store

import "time"

// MeetingStatus is the closed set of meeting lifecycle states.
type MeetingStatus string

const (
	StatusDraft      MeetingStatus = "draft"
	StatusRecording  MeetingStatus = "recording"
	StatusProcessing MeetingStatus = "processing"
	StatusDone       MeetingStatus = "done"
	StatusFailed     MeetingStatus = "failed"
)

// Meeting is one recorded meeting and its generated minutes.
type Meeting struct {
	ID     int64         `json:"id"`
	Title  string        `json:"title"`
	Status MeetingStatus `json:"status"`

	// Perspective shapes whose viewpoint the minutes are written from:
	// worker, manager, boss, or custom.
	Perspective       string `json:"perspective"`
	CustomPerspective string `json:"custom_perspective,omitempty"`
	// OutputStyle is the requested tone: sarcastic, neutral, or comforting.
	OutputStyle  string `json:"output_style"`
	Participants string `json:"participants,omitempty"`

	AudioPath string  `json:"audio_path,omitempty"`
	Duration  float64 `json:"duration,omitempty"`

	Summary         string `json:"summary,omitempty"`
	DecisionsJSON   string `json:"decisions_json,omitempty"`
	ActionItemsJSON string `json:"action_items_json,omitempty"`
	TopicsJSON      string `json:"topics_json,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SegmentRecord is the persisted metadata of one audio segment file.
type SegmentRecord struct {
	ID        int64     `json:"id"`
	MeetingID int64     `json:"meeting_id"`
	Index     int       `json:"index"`
	Path      string    `json:"path"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptRecord is one persisted transcript span.
type TranscriptRecord struct {
	ID           int64   `json:"id"`
	MeetingID    int64   `json:"meeting_id"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Speaker      string  `json:"speaker,omitempty"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence,omitempty"`
	SegmentIndex int     `json:"segment_index,omitempty"`
}

// Note is a free-form annotation a user attached while recording.
type Note struct {
	ID         int64   `json:"id"`
	MeetingID  int64   `json:"meeting_id"`
	TimeOffset float64 `json:"time_offset"`
	Content    string  `json:"content"`
	// Tag classifies the note: todo, risk, question, or general.
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}
