// Package record captures rendered output and writes it to a WAV file.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Recorder accumulates interleaved stereo buffers from a sample tap. Audio
// is kept in fixed one-second chunks so a growing take never copies what it
// already holds on the audio thread.
type Recorder struct {
	mu         sync.Mutex
	sampleRate int
	maxFrames  int
	chunkLen   int
	chunks     [][]float32
	n          int
}

// New returns a recorder keeping at most maxSeconds of audio (0 = no limit).
func New(sampleRate int, maxSeconds float64) *Recorder {
	return &Recorder{
		sampleRate: sampleRate,
		maxFrames:  int(float64(sampleRate) * maxSeconds),
		chunkLen:   max(sampleRate, 1) * 2,
	}
}

// Tap is the sample tap; it copies buf and never blocks on I/O.
func (r *Recorder) Tap(buf []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxFrames > 0 {
		room := r.maxFrames*2 - r.n
		if room <= 0 {
			return
		}
		if len(buf) > room {
			buf = buf[:room]
		}
	}
	for len(buf) > 0 {
		last := len(r.chunks) - 1
		if last < 0 || len(r.chunks[last]) == r.chunkLen {
			r.chunks = append(r.chunks, make([]float32, 0, r.chunkLen))
			last++
		}
		c := r.chunks[last]
		k := min(len(buf), r.chunkLen-len(c))
		r.chunks[last] = append(c, buf[:k]...)
		r.n += k
		buf = buf[k:]
	}
}

// Frames returns the number of captured stereo frames.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n / 2
}

// Samples returns a copy of the captured interleaved samples.
func (r *Recorder) Samples() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, 0, r.n)
	for _, c := range r.chunks {
		out = append(out, c...)
	}
	return out
}

// WriteWAV writes the capture as 16-bit stereo PCM.
func (r *Recorder) WriteWAV(path string) error {
	return WriteStereoWAV(path, r.Samples(), r.sampleRate)
}

// WriteStereoWAV writes interleaved stereo float samples as 16-bit PCM.
func WriteStereoWAV(path string, samples []float32, sampleRate int) error {
	if len(samples)%2 != 0 {
		return fmt.Errorf("odd sample count %d for stereo data", len(samples))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 2,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
