// Package synth renders voices: one oscillator per voice shaped by a linear
// attack/release envelope, mixed into a stereo stream pulled by an audio
// device.
package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/cbegin/tepiano-go/internal/audio"
	"github.com/cbegin/tepiano-go/internal/params"
)

// ErrAudioUnavailable is returned by Start when the output device cannot be
// acquired. The voice is not started; a later Start retries the device.
var ErrAudioUnavailable = errors.New("audio unavailable")

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithSampleTap installs a callback invoked with each rendered stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(e *Engine) {
		e.tap = tap
	}
}

// WithVoiceDone installs a callback invoked once for every voice whose
// release has completed. It runs on the render goroutine without the engine
// lock held.
func WithVoiceDone(fn func(VoiceInfo)) Option {
	return func(e *Engine) {
		e.onDone = fn
	}
}

// Engine owns the arena of sounding voice instances, including voices that
// are releasing and no longer reachable by note.
type Engine struct {
	mu         sync.Mutex
	device     audio.Device
	sampleRate float64
	clock      int64
	nextID     uint64
	voices     []*Voice
	finished   []VoiceInfo
	tap        func([]float32)
	onDone     func(VoiceInfo)
	log        *slog.Logger
}

// New returns an engine rendering at the device's sample rate. The device is
// not opened until the first Start.
func New(device audio.Device, opts ...Option) *Engine {
	e := &Engine{
		device:     device,
		sampleRate: float64(device.SampleRate()),
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SampleRate returns the render rate in Hz.
func (e *Engine) SampleRate() int { return int(e.sampleRate) }

// Clock returns the number of frames rendered so far.
func (e *Engine) Clock() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *Engine) frames(seconds float64) int64 {
	return int64(math.Round(seconds * e.sampleRate))
}

// Acquire opens the output device unless it is already open. The first call
// may block while the backend starts, so callers should not hold locks that
// input handling needs.
func (e *Engine) Acquire() error {
	if err := e.device.Open(e); err != nil {
		e.log.Warn("audio device unavailable", "err", err)
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	return nil
}

// Start acquires the device if needed and begins sounding v at amplitude 0,
// ramping to p.MasterVolume over p.AttackSeconds.
func (e *Engine) Start(v *Voice, p params.Parameters) error {
	if v == nil {
		return errors.New("synth: nil voice")
	}
	if v.id != 0 {
		return fmt.Errorf("synth: voice %d already started", v.id)
	}
	if err := e.Acquire(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	v.id = e.nextID
	v.startFrame = e.clock
	v.phase = 0
	v.peak = p.MasterVolume
	v.attackFrames = e.frames(p.AttackSeconds)
	v.setAmplitude(0)
	v.setState(Attacking)
	if v.attackFrames <= 0 {
		v.setAmplitude(v.peak)
		v.setState(Sustaining)
	}
	e.voices = append(e.voices, v)
	e.log.Debug("voice start", "id", v.id, "note", v.NoteIndex, "hz", v.FrequencyHz,
		"wave", v.Waveform.String(), "attack_frames", v.attackFrames)
	return nil
}

// Release ramps v from its current level to 0 over p.ReleaseSeconds, after
// which it is Done and dropped from the arena. A voice still attacking has
// its attack cut short. Releasing twice is a no-op.
func (e *Engine) Release(v *Voice, p params.Parameters) {
	if v == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if v.id == 0 || v.releasing || v.State() == Done {
		return
	}
	v.releaseFrom = v.levelAt(e.clock)
	v.releaseFrame = e.clock
	v.releaseFrames = e.frames(p.ReleaseSeconds)
	v.releasing = true
	v.setState(Releasing)
	v.setAmplitude(v.releaseFrom)
	if v.releaseFrames <= 0 {
		e.retire(v)
		e.compact()
	}
	e.log.Debug("voice release", "id", v.id, "note", v.NoteIndex,
		"from", v.releaseFrom, "release_frames", v.releaseFrames)
}

// Process renders len(dst)/2 interleaved stereo frames. It is the render
// activity's entry point and implements audio.SampleSource.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	frames := len(dst) / audio.Channels
	retired := false
	for f := 0; f < frames; f++ {
		var mix float64
		for _, v := range e.voices {
			if v.State() == Done {
				continue
			}
			mix += oscillate(v, e.sampleRate) * v.levelAt(e.clock)
		}
		s := float32(clamp(mix, -1, 1))
		dst[f*2] = s
		dst[f*2+1] = s
		e.clock++
		for _, v := range e.voices {
			if e.advance(v) {
				retired = true
			}
		}
	}
	for _, v := range e.voices {
		v.setAmplitude(v.levelAt(e.clock))
	}
	if retired {
		e.compact()
	}
	done := e.finished
	e.finished = nil
	tap, onDone := e.tap, e.onDone
	e.mu.Unlock()

	if tap != nil {
		tap(dst)
	}
	if onDone != nil {
		for _, info := range done {
			onDone(info)
		}
	}
}

// advance applies the state transition due at the current clock and reports
// whether the voice finished.
func (e *Engine) advance(v *Voice) bool {
	switch v.State() {
	case Attacking:
		if e.clock-v.startFrame >= v.attackFrames {
			v.setState(Sustaining)
		}
	case Releasing:
		if e.clock-v.releaseFrame >= v.releaseFrames {
			e.retire(v)
			return true
		}
	}
	return false
}

func (e *Engine) retire(v *Voice) {
	v.setAmplitude(0)
	v.setState(Done)
	e.finished = append(e.finished, v.Info())
	e.log.Debug("voice done", "id", v.id, "note", v.NoteIndex)
}

func (e *Engine) compact() {
	live := e.voices[:0]
	for _, v := range e.voices {
		if v.State() != Done {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(e.voices); i++ {
		e.voices[i] = nil
	}
	e.voices = live
}

// Sounding returns the number of voices still producing sound, releasing
// ones included.
func (e *Engine) Sounding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Voices snapshots every sounding voice in start order.
func (e *Engine) Voices() []VoiceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]VoiceInfo, 0, len(e.voices))
	for _, v := range e.voices {
		out = append(out, v.Info())
	}
	return out
}

// Close silences every voice and releases the device. The engine can be
// started again afterwards; the device is re-acquired on the next Start.
func (e *Engine) Close() error {
	e.mu.Lock()
	for _, v := range e.voices {
		v.setAmplitude(0)
		v.setState(Done)
	}
	e.voices = nil
	e.finished = nil
	e.mu.Unlock()
	return e.device.Close()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
