package audio

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// pattern returns n bytes of a deterministic non-repeating-ish sequence so
// segment contents can be checked against stream offsets.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func newTestSegmenter(t *testing.T, onSegment func(Segment)) *Segmenter {
	t.Helper()
	seg, err := NewSegmenter(SegmenterConfig{
		OutputDir:       t.TempDir(),
		SampleRate:      8000,
		Channels:        1,
		ChunkDuration:   1.0,
		OverlapDuration: 0.25,
		OnSegment:       onSegment,
	})
	require.NoError(t, err)
	return seg
}

func TestSegmenterConfigValidation(t *testing.T) {
	_, err := NewSegmenter(SegmenterConfig{OutputDir: t.TempDir(), SampleRate: 0, Channels: 1, ChunkDuration: 1})
	require.Error(t, err)

	_, err = NewSegmenter(SegmenterConfig{OutputDir: t.TempDir(), SampleRate: 8000, Channels: 1, ChunkDuration: 0})
	require.Error(t, err)

	// Overlap must be strictly shorter than a chunk.
	_, err = NewSegmenter(SegmenterConfig{OutputDir: t.TempDir(), SampleRate: 8000, Channels: 1, ChunkDuration: 1, OverlapDuration: 1})
	require.Error(t, err)
}

func TestSegmenterEmitsFullChunksAndFlushesRemainder(t *testing.T) {
	var emitted []Segment
	seg := newTestSegmenter(t, func(s Segment) { emitted = append(emitted, s) })

	// 2.5 seconds at 8kHz mono = 40000 bytes, in uneven writes.
	stream := pattern(40000)
	seg.Start()
	seg.Write(stream[:7000])
	seg.Write(stream[7000:25000])
	seg.Write(stream[25000:40000])

	// Two full 1.0s chunks are emitted while writing.
	require.Len(t, emitted, 2)
	require.Equal(t, 2, seg.SegmentCount())

	final := seg.Stop()
	require.NotNil(t, final)
	require.Len(t, emitted, 3)
	require.Equal(t, 3, seg.SegmentCount())

	// First segment covers [0, 1.0) with no overlap prefix.
	require.Equal(t, 0, emitted[0].Index)
	require.Equal(t, 0.0, emitted[0].Start)
	require.InDelta(t, 1.0, emitted[0].End, 1e-9)
	require.Equal(t, "chunk_0000.wav", filepath.Base(emitted[0].Path))

	// Second segment starts a quarter second early and carries the overlap.
	require.Equal(t, 1, emitted[1].Index)
	require.InDelta(t, 0.75, emitted[1].Start, 1e-9)
	require.InDelta(t, 2.0, emitted[1].End, 1e-9)

	// Final flush covers the remaining half second plus the overlap.
	require.Equal(t, 2, final.Index)
	require.InDelta(t, 1.75, final.Start, 1e-9)
	require.InDelta(t, 2.5, final.End, 1e-9)

	require.InDelta(t, 2.5, seg.TotalReceivedSeconds(), 1e-9)
}

func TestSegmenterOverlapRepeatsStreamTail(t *testing.T) {
	var emitted []Segment
	seg := newTestSegmenter(t, func(s Segment) { emitted = append(emitted, s) })

	stream := pattern(40000) // 2.5s
	seg.Start()
	for off := 0; off < len(stream); off += 8000 {
		seg.Write(stream[off : off+8000])
	}
	seg.Stop()
	require.Len(t, emitted, 3)

	// At 8kHz mono: chunk = 16000 bytes, overlap = 4000 bytes. Each segment
	// after the first starts 4000 bytes before where the previous one ended.
	wantRanges := [][2]int{{0, 16000}, {12000, 32000}, {28000, 40000}}
	for i, want := range wantRanges {
		pcm, rate, channels, err := ReadWAVFile(emitted[i].Path)
		require.NoError(t, err)
		require.Equal(t, 8000, rate)
		require.Equal(t, 1, channels)
		require.True(t, bytes.Equal(stream[want[0]:want[1]], pcm),
			"segment %d does not match stream bytes [%d:%d]", i, want[0], want[1])
	}
}

func TestSegmenterWriteAfterStopDropped(t *testing.T) {
	seg := newTestSegmenter(t, nil)

	seg.Start()
	seg.Write(pattern(8000))
	seg.Stop()

	count := seg.SegmentCount()
	seg.Write(pattern(32000))
	require.Equal(t, count, seg.SegmentCount())
	require.InDelta(t, 0.5, seg.TotalReceivedSeconds(), 1e-9)
}

func TestSegmenterStopWithEmptyBuffer(t *testing.T) {
	seg := newTestSegmenter(t, nil)

	seg.Start()
	require.Nil(t, seg.Stop())
	require.Equal(t, 0, seg.SegmentCount())

	// A second Stop is a no-op.
	require.Nil(t, seg.Stop())
}

func TestSegmenterStartResetsState(t *testing.T) {
	var emitted []Segment
	seg := newTestSegmenter(t, func(s Segment) { emitted = append(emitted, s) })

	seg.Start()
	seg.Write(pattern(16000))
	seg.Stop()
	require.Len(t, emitted, 1)

	seg.Start()
	require.Equal(t, 0, seg.SegmentCount())
	require.Equal(t, 0.0, seg.TotalReceivedSeconds())

	seg.Write(pattern(16000))
	require.Len(t, emitted, 2)
	// Indexing restarts, so the first file is overwritten rather than
	// continuing the old sequence.
	require.Equal(t, 0, emitted[1].Index)
	require.Equal(t, 0.0, emitted[1].Start)
}

func TestSegmenterCallbackPanicIsolated(t *testing.T) {
	seg := newTestSegmenter(t, func(s Segment) { panic("listener bug") })

	seg.Start()
	require.NotPanics(t, func() { seg.Write(pattern(16000)) })
	require.Equal(t, 1, seg.SegmentCount())
}
