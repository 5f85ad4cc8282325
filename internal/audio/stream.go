package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// SampleSource fills dst with interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// SourceFunc adapts a function to SampleSource.
type SourceFunc func(dst []float32)

func (f SourceFunc) Process(dst []float32) { f(dst) }

// StreamReader exposes a SampleSource as a 32-bit float little-endian
// stereo byte stream for backends that pull with io.Reader.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / BytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * Channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	clear(r.buf)
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * BytesPerFrame, nil
}

func (r *StreamReader) Close() error { return nil }
