// Package capture defines the contract for audio capture sources. A source
// binds to some input at Start and delivers raw 16-bit PCM byte blocks to
// the callback it was constructed with, at whatever cadence the underlying
// input provides.
package capture

// DataFunc receives one block of raw 16-bit PCM bytes. Implementations may
// reuse the slice between calls, so receivers that hold onto the data must
// copy it.
type DataFunc func(data []byte)

// Source is an opaque audio input. Start binds to the named device (empty
// means the implementation default) and begins delivering blocks; Stop ends
// delivery. A stopped source does not need to be restartable.
type Source interface {
	Start(device string) error
	Stop() error
}

// Factory constructs a Source wired to the given data callback. The
// recording engine builds its source through a factory so a failed start can
// tear the source down and construct a fresh one later.
type Factory func(onData DataFunc) (Source, error)
