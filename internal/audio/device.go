// Package audio provides the output devices the synth engine renders into.
package audio

import "sync"

const (
	// Channels is the output channel count; frames are interleaved L/R.
	Channels = 2
	// BytesPerFrame is the size of one float32 stereo frame.
	BytesPerFrame = Channels * 4
)

// Device is a real-time output that pulls samples from a source once opened.
// Open must be idempotent: opening an already open device is a no-op.
// Close stops output; a closed device may be opened again.
type Device interface {
	Open(src SampleSource) error
	Close() error
	SampleRate() int
}

// NullDevice accepts a source and never pulls from it. Rendering is driven
// by the caller, which makes it the device of choice for tests and offline
// use.
type NullDevice struct {
	mu         sync.Mutex
	sampleRate int
	source     SampleSource
	opens      int
}

func NewNullDevice(sampleRate int) *NullDevice {
	return &NullDevice{sampleRate: sampleRate}
}

func (d *NullDevice) Open(src SampleSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.source != nil {
		return nil
	}
	d.source = src
	d.opens++
	return nil
}

func (d *NullDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = nil
	return nil
}

func (d *NullDevice) SampleRate() int { return d.sampleRate }

// IsOpen reports whether a source is attached.
func (d *NullDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source != nil
}

// Opens returns how many times the device went from closed to open.
func (d *NullDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}
