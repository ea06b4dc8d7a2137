package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// meetingDoc is the on-disk document holding one meeting and everything
// attached to it.
type meetingDoc struct {
	Meeting    *Meeting            `json:"meeting"`
	Segments   []*SegmentRecord    `json:"segments,omitempty"`
	Transcript []*TranscriptRecord `json:"transcript,omitempty"`
	Notes      []*Note             `json:"notes,omitempty"`
	NextID     int64               `json:"next_id"`
}

// FileStore persists each meeting as one JSON document under
// baseDir/meetings. It implements Store and is safe for concurrent use
// behind a single lock.
type FileStore struct {
	dir string

	mu     sync.Mutex
	nextID int64
}

// NewFileStore creates the storage directory and derives the next meeting
// ID from the documents already present.
func NewFileStore(baseDir string) (*FileStore, error) {
	dir := filepath.Join(baseDir, "meetings")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create meetings directory: %w", err)
	}

	s := &FileStore{dir: dir, nextID: 1}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan meetings directory: %w", err)
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")
		if id, err := strconv.ParseInt(name, 10, 64); err == nil && id >= s.nextID {
			s.nextID = id + 1
		}
	}

	log.Info().Str("dir", dir).Int64("next_id", s.nextID).Msg("File store opened")
	return s, nil
}

func (s *FileStore) docPath(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", id))
}

// loadDoc reads one meeting document. Callers must hold s.mu.
func (s *FileStore) loadDoc(id int64) (*meetingDoc, error) {
	raw, err := os.ReadFile(s.docPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read meeting %d: %w", id, err)
	}

	var doc meetingDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode meeting %d: %w", id, err)
	}
	return &doc, nil
}

// saveDoc writes one meeting document atomically. Callers must hold s.mu.
func (s *FileStore) saveDoc(doc *meetingDoc) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode meeting %d: %w", doc.Meeting.ID, err)
	}

	path := s.docPath(doc.Meeting.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write meeting %d: %w", doc.Meeting.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace meeting %d: %w", doc.Meeting.ID, err)
	}
	return nil
}

// CreateMeeting persists a new meeting, filling in its ID, status, and
// timestamps.
func (s *FileStore) CreateMeeting(m *Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	s.nextID++

	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = StatusDraft
	}
	if m.Perspective == "" {
		m.Perspective = "worker"
	}
	if m.OutputStyle == "" {
		m.OutputStyle = "neutral"
	}

	if err := s.saveDoc(&meetingDoc{Meeting: m, NextID: 1}); err != nil {
		return err
	}

	log.Info().Int64("meeting_id", m.ID).Str("title", m.Title).Msg("Created meeting")
	return nil
}

// Meeting returns one meeting by ID.
func (s *FileStore) Meeting(id int64) (*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(id)
	if err != nil {
		return nil, err
	}
	return doc.Meeting, nil
}

// Meetings lists all meetings, newest first.
func (s *FileStore) Meetings() ([]*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan meetings directory: %w", err)
	}

	var meetings []*Meeting
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		doc, err := s.loadDoc(id)
		if err != nil {
			log.Warn().Err(err).Int64("meeting_id", id).Msg("Skipping unreadable meeting document")
			continue
		}
		meetings = append(meetings, doc.Meeting)
	}

	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].CreatedAt.After(meetings[j].CreatedAt)
	})
	return meetings, nil
}

// update loads a meeting document, applies fn, and writes it back.
func (s *FileStore) update(id int64, fn func(*meetingDoc)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(id)
	if err != nil {
		return err
	}
	fn(doc)
	doc.Meeting.UpdatedAt = time.Now()
	return s.saveDoc(doc)
}

// UpdateStatus sets a meeting's lifecycle status.
func (s *FileStore) UpdateStatus(id int64, status MeetingStatus) error {
	return s.update(id, func(doc *meetingDoc) {
		doc.Meeting.Status = status
	})
}

// StartRecording marks the meeting as recording.
func (s *FileStore) StartRecording(id int64, audioPath string) error {
	return s.update(id, func(doc *meetingDoc) {
		now := time.Now()
		doc.Meeting.Status = StatusRecording
		doc.Meeting.AudioPath = audioPath
		doc.Meeting.StartedAt = &now
	})
}

// StopRecording marks the meeting as processing and stores the captured
// duration.
func (s *FileStore) StopRecording(id int64, duration float64) error {
	return s.update(id, func(doc *meetingDoc) {
		now := time.Now()
		doc.Meeting.Status = StatusProcessing
		doc.Meeting.Duration = duration
		doc.Meeting.EndedAt = &now
	})
}

// SaveMinutes stores generated minutes and marks the meeting done.
func (s *FileStore) SaveMinutes(id int64, summary, decisionsJSON, actionItemsJSON, topicsJSON string) error {
	return s.update(id, func(doc *meetingDoc) {
		doc.Meeting.Status = StatusDone
		doc.Meeting.Summary = summary
		doc.Meeting.DecisionsJSON = decisionsJSON
		doc.Meeting.ActionItemsJSON = actionItemsJSON
		doc.Meeting.TopicsJSON = topicsJSON
	})
}

// CreateSegment appends a segment record to its meeting's document.
func (s *FileStore) CreateSegment(rec *SegmentRecord) error {
	return s.update(rec.MeetingID, func(doc *meetingDoc) {
		rec.ID = doc.nextRecordID()
		rec.CreatedAt = time.Now()
		doc.Segments = append(doc.Segments, rec)
	})
}

// SegmentsByMeeting returns a meeting's segments ordered by index.
func (s *FileStore) SegmentsByMeeting(meetingID int64) ([]*SegmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(meetingID)
	if err != nil {
		return nil, err
	}
	segments := append([]*SegmentRecord{}, doc.Segments...)
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Index < segments[j].Index
	})
	return segments, nil
}

// ReplaceTranscript swaps a meeting's transcript rows for the given set.
func (s *FileStore) ReplaceTranscript(meetingID int64, recs []*TranscriptRecord) error {
	return s.update(meetingID, func(doc *meetingDoc) {
		doc.Transcript = nil
		for _, rec := range recs {
			rec.ID = doc.nextRecordID()
			rec.MeetingID = meetingID
			doc.Transcript = append(doc.Transcript, rec)
		}
		log.Info().Int64("meeting_id", meetingID).Int("spans", len(recs)).Msg("Replaced transcript")
	})
}

// TranscriptByMeeting returns a meeting's transcript spans in stored order.
func (s *FileStore) TranscriptByMeeting(meetingID int64) ([]*TranscriptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(meetingID)
	if err != nil {
		return nil, err
	}
	return append([]*TranscriptRecord{}, doc.Transcript...), nil
}

// CreateNote appends a note to its meeting's document.
func (s *FileStore) CreateNote(n *Note) error {
	return s.update(n.MeetingID, func(doc *meetingDoc) {
		n.ID = doc.nextRecordID()
		n.CreatedAt = time.Now()
		if n.Tag == "" {
			n.Tag = "general"
		}
		doc.Notes = append(doc.Notes, n)
	})
}

// NotesByMeeting returns a meeting's notes ordered by time offset.
func (s *FileStore) NotesByMeeting(meetingID int64) ([]*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(meetingID)
	if err != nil {
		return nil, err
	}
	notes := append([]*Note{}, doc.Notes...)
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].TimeOffset < notes[j].TimeOffset
	})
	return notes, nil
}

// nextRecordID allocates the next per-document record ID.
func (d *meetingDoc) nextRecordID() int64 {
	if d.NextID == 0 {
		d.NextID = 1
	}
	id := d.NextID
	d.NextID++
	return id
}
