package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AxlandSlash/MeetingSummary/internal/audio"
)

// FileSource replays a 16-bit PCM WAV file through the capture contract,
// slicing it into fixed-duration blocks. With Realtime set, delivery is
// paced to the audio clock; otherwise the whole file is delivered as fast
// as the receiver consumes it.
type FileSource struct {
	path     string
	block    time.Duration
	realtime bool
	onData   DataFunc

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewFileSource creates a file-backed source. blockDuration controls the
// size of each delivered block; zero defaults to 100ms.
func NewFileSource(path string, blockDuration time.Duration, realtime bool, onData DataFunc) *FileSource {
	if blockDuration <= 0 {
		blockDuration = 100 * time.Millisecond
	}
	return &FileSource{
		path:     path,
		block:    blockDuration,
		realtime: realtime,
		onData:   onData,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// FileFactory returns a Factory producing file-backed sources for path.
func FileFactory(path string, blockDuration time.Duration, realtime bool) Factory {
	return func(onData DataFunc) (Source, error) {
		return NewFileSource(path, blockDuration, realtime, onData), nil
	}
}

// Start loads the file and begins delivering blocks. The device argument is
// ignored; the file is the device.
func (f *FileSource) Start(device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return fmt.Errorf("file source already started")
	}

	pcm, sampleRate, channels, err := audio.ReadWAVFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}

	blockBytes := int(f.block.Seconds() * float64(sampleRate*channels*2))
	if blockBytes <= 0 {
		blockBytes = 1
	}

	f.running = true
	go f.deliver(pcm, blockBytes)

	log.Info().
		Str("file", f.path).
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Int("block_bytes", blockBytes).
		Bool("realtime", f.realtime).
		Msg("File capture started")
	return nil
}

func (f *FileSource) deliver(pcm []byte, blockBytes int) {
	defer close(f.done)

	var ticker *time.Ticker
	if f.realtime {
		ticker = time.NewTicker(f.block)
		defer ticker.Stop()
	}

	for offset := 0; offset < len(pcm); offset += blockBytes {
		end := offset + blockBytes
		if end > len(pcm) {
			end = len(pcm)
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-f.stop:
				return
			}
		} else {
			select {
			case <-f.stop:
				return
			default:
			}
		}

		f.onData(pcm[offset:end])
	}

	log.Debug().Str("file", f.path).Msg("File capture reached end of input")
}

// Stop halts delivery and waits for the delivery goroutine to exit.
func (f *FileSource) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	f.mu.Unlock()

	close(f.stop)
	<-f.done
	log.Info().Str("file", f.path).Msg("File capture stopped")
	return nil
}

// Done is closed once the whole file has been delivered or the source was
// stopped. Callers can use it to end a recording when playback finishes.
func (f *FileSource) Done() <-chan struct{} {
	return f.done
}
