package store

import "errors"

// ErrNotFound is returned when a record with the requested ID does not
// exist.
var ErrNotFound = errors.New("record not found")

// MeetingRepo manages meeting records.
type MeetingRepo interface {
	// CreateMeeting persists a new meeting and assigns its ID.
	CreateMeeting(m *Meeting) error
	Meeting(id int64) (*Meeting, error)
	// Meetings lists all meetings, newest first.
	Meetings() ([]*Meeting, error)
	UpdateStatus(id int64, status MeetingStatus) error
	// StartRecording marks the meeting as recording and records where its
	// audio lives.
	StartRecording(id int64, audioPath string) error
	// StopRecording marks the meeting as processing and records the
	// captured duration.
	StopRecording(id int64, duration float64) error
	// SaveMinutes stores the generated minutes and marks the meeting done.
	SaveMinutes(id int64, summary, decisionsJSON, actionItemsJSON, topicsJSON string) error
}

// SegmentRepo manages audio segment metadata.
type SegmentRepo interface {
	// CreateSegment persists segment metadata and assigns its ID.
	CreateSegment(rec *SegmentRecord) error
	// SegmentsByMeeting returns a meeting's segments ordered by index.
	SegmentsByMeeting(meetingID int64) ([]*SegmentRecord, error)
}

// TranscriptRepo manages persisted transcript spans.
type TranscriptRepo interface {
	// ReplaceTranscript atomically swaps a meeting's transcript rows for
	// the given set.
	ReplaceTranscript(meetingID int64, recs []*TranscriptRecord) error
	TranscriptByMeeting(meetingID int64) ([]*TranscriptRecord, error)
}

// NoteRepo manages user notes.
type NoteRepo interface {
	// CreateNote persists a note and assigns its ID.
	CreateNote(n *Note) error
	// NotesByMeeting returns a meeting's notes ordered by time offset.
	NotesByMeeting(meetingID int64) ([]*Note, error)
}

// Store bundles every repository the application needs.
type Store interface {
	MeetingRepo
	SegmentRepo
	TranscriptRepo
	NoteRepo
}
