package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Segment describes one persisted slice of recorded audio. Start and End are
// offsets in seconds on the full recording timeline; StartedAt is the
// wall-clock instant the recording session began.
type Segment struct {
	Index     int
	Path      string
	Start     float64
	End       float64
	StartedAt time.Time
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// SegmenterConfig configures a Segmenter.
type SegmenterConfig struct {
	OutputDir       string
	SampleRate      int
	Channels        int
	ChunkDuration   float64 // seconds per segment
	OverlapDuration float64 // trailing seconds re-included at the next segment's head
	OnSegment       func(Segment)
}

// Segmenter turns a raw PCM byte stream into fixed-duration, overlapping
// segments persisted as WAV files. Consecutive segments share
// OverlapDuration seconds of audio so speech cut at a boundary survives in
// at least one of them.
type Segmenter struct {
	cfg            SegmenterConfig
	bytesPerSecond int

	buf *Buffer

	mu        sync.Mutex
	running   bool
	index     int
	startedAt time.Time
	overlap   []byte
}

// NewSegmenter validates the configuration and creates the output directory.
func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("invalid PCM format: %d Hz, %d channels", cfg.SampleRate, cfg.Channels)
	}
	if cfg.ChunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %.2f", cfg.ChunkDuration)
	}
	if cfg.OverlapDuration < 0 || cfg.OverlapDuration >= cfg.ChunkDuration {
		return nil, fmt.Errorf("overlap %.2fs must be shorter than chunk %.2fs", cfg.OverlapDuration, cfg.ChunkDuration)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}

	return &Segmenter{
		cfg:            cfg,
		bytesPerSecond: cfg.SampleRate * cfg.Channels * bytesPerSample,
		buf:            NewBuffer(cfg.ChunkDuration*2, cfg.SampleRate, cfg.Channels),
	}, nil
}

// Start resets internal state and records the wall-clock start instant.
func (s *Segmenter) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = true
	s.startedAt = time.Now()
	s.index = 0
	s.overlap = nil
	s.buf.Reset()

	log.Info().
		Str("dir", s.cfg.OutputDir).
		Float64("chunk_seconds", s.cfg.ChunkDuration).
		Float64("overlap_seconds", s.cfg.OverlapDuration).
		Msg("Segmenter started")
}

// Write feeds raw PCM bytes in. A write after Stop is silently dropped.
// Segment emission, including the WAV file write, happens synchronously on
// the calling goroutine.
func (s *Segmenter) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.buf.Write(data)

	for s.buf.AvailableSeconds() >= s.cfg.ChunkDuration {
		s.saveSegment(s.buf.ReadSeconds(s.cfg.ChunkDuration))
	}
}

// saveSegment persists one segment built from data plus any carried overlap.
// Callers must hold s.mu.
func (s *Segmenter) saveSegment(data []byte) *Segment {
	if len(data) == 0 {
		return nil
	}

	if len(s.overlap) > 0 {
		data = append(append([]byte{}, s.overlap...), data...)
	}

	overlapBytes := int(s.cfg.OverlapDuration * float64(s.bytesPerSecond))
	if len(data) > overlapBytes {
		s.overlap = append([]byte{}, data[len(data)-overlapBytes:]...)
	} else {
		s.overlap = append([]byte{}, data...)
	}

	start := float64(s.index) * s.cfg.ChunkDuration
	if s.index > 0 {
		start -= s.cfg.OverlapDuration
	}
	if start < 0 {
		start = 0
	}
	end := start + float64(len(data))/float64(s.bytesPerSecond)

	path := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("chunk_%04d.wav", s.index))
	if err := WriteWAVFile(path, data, s.cfg.SampleRate, s.cfg.Channels); err != nil {
		log.Error().Err(err).Int("index", s.index).Msg("Failed to persist segment")
		return nil
	}

	seg := Segment{
		Index:     s.index,
		Path:      path,
		Start:     start,
		End:       end,
		StartedAt: s.startedAt,
	}
	s.index++

	log.Info().
		Int("index", seg.Index).
		Str("file", filepath.Base(path)).
		Float64("start", seg.Start).
		Float64("duration", seg.Duration()).
		Msg("Saved segment")

	s.notify(seg)
	return &seg
}

// notify invokes the ready callback, isolating panics so a misbehaving
// listener cannot break the write path.
func (s *Segmenter) notify(seg Segment) {
	if s.cfg.OnSegment == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("index", seg.Index).Msg("Segment callback panicked")
		}
	}()
	s.cfg.OnSegment(seg)
}

// Stop flushes any remaining buffered bytes as a final segment and marks the
// segmenter inactive. It returns the final segment, or nil if nothing was
// left to flush.
func (s *Segmenter) Stop() *Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	remaining := s.buf.ReadAll()
	if len(remaining) == 0 {
		log.Info().Int("segments", s.index).Msg("Segmenter stopped")
		return nil
	}

	seg := s.saveSegment(remaining)
	log.Info().Int("segments", s.index).Msg("Segmenter stopped after final flush")
	return seg
}

// SegmentCount reports how many segments have been emitted.
func (s *Segmenter) SegmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// TotalReceivedSeconds reports the cumulative audio duration written to the
// segmenter, independent of what is still buffered.
func (s *Segmenter) TotalReceivedSeconds() float64 {
	return s.buf.TotalReceivedSeconds()
}

// OutputDir returns the directory segment files are written to.
func (s *Segmenter) OutputDir() string {
	return s.cfg.OutputDir
}
