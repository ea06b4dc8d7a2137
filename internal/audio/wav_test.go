package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := pattern(320)
	wav := EncodeWAV(pcm, 16000, 1)

	require.Len(t, wav, 44+len(pcm))
	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	// Byte rate: sample rate * channels * 2 bytes per sample.
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestWAVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	pcm := pattern(3200)

	require.NoError(t, WriteWAVFile(path, pcm, 8000, 2))

	got, rate, channels, err := ReadWAVFile(path)
	require.NoError(t, err)
	require.Equal(t, 8000, rate)
	require.Equal(t, 2, channels)
	require.Equal(t, pcm, got)
}

func TestReadWAVFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0644))

	_, _, _, err := ReadWAVFile(path)
	require.Error(t, err)

	_, _, _, err = ReadWAVFile(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}
