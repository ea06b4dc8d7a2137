package audio

import "sync"

// bytesPerSample is fixed for 16-bit PCM.
const bytesPerSample = 2

// Buffer is a bounded, thread-safe accumulator of raw PCM bytes. Writes
// append whole blocks; once the buffered size exceeds the configured cap,
// the oldest complete blocks are evicted (a block is never split by
// eviction). Reads never block: they return whatever is available, splitting
// the front block when a partial read is required.
type Buffer struct {
	sampleRate     int
	channels       int
	bytesPerSecond int
	maxBytes       int

	mu            sync.Mutex
	blocks        [][]byte
	totalBytes    int
	receivedBytes int64
}

// NewBuffer creates a buffer capped at maxSeconds of audio.
func NewBuffer(maxSeconds float64, sampleRate, channels int) *Buffer {
	bps := sampleRate * channels * bytesPerSample
	return &Buffer{
		sampleRate:     sampleRate,
		channels:       channels,
		bytesPerSecond: bps,
		maxBytes:       int(maxSeconds * float64(bps)),
	}
}

// BytesPerSecond returns the byte rate implied by the PCM format.
func (b *Buffer) BytesPerSecond() int {
	return b.bytesPerSecond
}

// Write appends one block of audio data. The slice is copied, so callers may
// reuse their capture buffers. If the buffered size exceeds the cap, whole
// blocks are dropped from the front until it fits again.
func (b *Buffer) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	block := make([]byte, len(data))
	copy(block, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.blocks = append(b.blocks, block)
	b.totalBytes += len(block)
	b.receivedBytes += int64(len(block))

	for b.totalBytes > b.maxBytes && len(b.blocks) > 0 {
		b.totalBytes -= len(b.blocks[0])
		b.blocks = b.blocks[1:]
	}
}

// Read removes and returns up to n bytes from the front of the buffer. It
// returns fewer bytes (possibly none) if less data is buffered.
func (b *Buffer) Read(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(n)
}

// ReadAll drains the buffer and returns everything in it.
func (b *Buffer) ReadAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(b.totalBytes)
}

// ReadSeconds removes and returns up to the given duration of audio.
func (b *Buffer) ReadSeconds(seconds float64) []byte {
	return b.Read(int(seconds * float64(b.bytesPerSecond)))
}

func (b *Buffer) readLocked(n int) []byte {
	if n <= 0 || len(b.blocks) == 0 {
		return nil
	}

	result := make([]byte, 0, n)
	remaining := n

	for remaining > 0 && len(b.blocks) > 0 {
		block := b.blocks[0]
		if len(block) <= remaining {
			result = append(result, block...)
			remaining -= len(block)
			b.totalBytes -= len(block)
			b.blocks = b.blocks[1:]
		} else {
			result = append(result, block[:remaining]...)
			b.blocks[0] = block[remaining:]
			b.totalBytes -= remaining
			remaining = 0
		}
	}

	return result
}

// Peek returns up to n bytes from the front without removing them.
func (b *Buffer) Peek(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || len(b.blocks) == 0 {
		return nil
	}

	result := make([]byte, 0, n)
	for _, block := range b.blocks {
		take := n - len(result)
		if take <= 0 {
			break
		}
		if take > len(block) {
			take = len(block)
		}
		result = append(result, block[:take]...)
	}
	return result
}

// AvailableBytes reports the number of currently buffered bytes.
func (b *Buffer) AvailableBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBytes
}

// AvailableSeconds reports the currently buffered duration.
func (b *Buffer) AvailableSeconds() float64 {
	return float64(b.AvailableBytes()) / float64(b.bytesPerSecond)
}

// TotalReceivedBytes reports the cumulative bytes ever written. The counter
// survives eviction and Clear; only Reset zeroes it.
func (b *Buffer) TotalReceivedBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receivedBytes
}

// TotalReceivedSeconds reports the cumulative duration ever written.
func (b *Buffer) TotalReceivedSeconds() float64 {
	return float64(b.TotalReceivedBytes()) / float64(b.bytesPerSecond)
}

// Clear discards buffered data but keeps the received counter.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks = nil
	b.totalBytes = 0
}

// Reset discards buffered data and zeroes the received counter.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks = nil
	b.totalBytes = 0
	b.receivedBytes = 0
}
