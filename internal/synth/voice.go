package synth

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/tepiano-go/internal/params"
)

// State is the lifecycle stage of a voice.
type State int32

const (
	Attacking State = iota
	Sustaining
	Releasing
	Done
)

func (s State) String() string {
	switch s {
	case Attacking:
		return "attacking"
	case Sustaining:
		return "sustaining"
	case Releasing:
		return "releasing"
	case Done:
		return "done"
	}
	return "unknown"
}

// Voice is one sounding note. Identity fields are fixed at construction;
// state and amplitude are advanced by the render activity and may be read
// from any goroutine.
type Voice struct {
	NoteIndex   int
	FrequencyHz float64
	Waveform    params.Waveform

	id         uint64
	startFrame int64
	state      atomic.Int32
	amp        atomic.Uint64

	// Envelope and oscillator state, guarded by the owning engine's lock.
	phase         float64
	peak          float64
	attackFrames  int64
	releasing     bool
	releaseFrame  int64
	releaseFrames int64
	releaseFrom   float64
}

// NewVoice returns an unstarted voice in the Attacking state.
func NewVoice(noteIndex int, frequencyHz float64, wave params.Waveform) *Voice {
	return &Voice{NoteIndex: noteIndex, FrequencyHz: frequencyHz, Waveform: wave}
}

// ID is the engine-unique instance id, 0 until started.
func (v *Voice) ID() uint64 { return v.id }

func (v *Voice) State() State { return State(v.state.Load()) }

// Live reports whether the voice has not yet finished its release.
func (v *Voice) Live() bool { return v.State() != Done }

// Amplitude is the envelope level at the engine's current clock.
func (v *Voice) Amplitude() float64 {
	return math.Float64frombits(v.amp.Load())
}

func (v *Voice) setState(s State) { v.state.Store(int32(s)) }

func (v *Voice) setAmplitude(a float64) { v.amp.Store(math.Float64bits(a)) }

// levelAt evaluates the two-stage envelope at frame: a linear ramp from 0 to
// peak, a flat hold, and once released a linear ramp from the level held at
// release time down to 0.
func (v *Voice) levelAt(frame int64) float64 {
	if v.releasing {
		e := frame - v.releaseFrame
		if e >= v.releaseFrames {
			return 0
		}
		return v.releaseFrom * (1 - float64(e)/float64(v.releaseFrames))
	}
	e := frame - v.startFrame
	if e >= v.attackFrames {
		return v.peak
	}
	return v.peak * float64(e) / float64(v.attackFrames)
}

// VoiceInfo is a point-in-time copy of a voice for indicators and tests.
type VoiceInfo struct {
	ID          uint64
	NoteIndex   int
	FrequencyHz float64
	Waveform    params.Waveform
	StartFrame  int64
	State       State
	Amplitude   float64
}

// Info snapshots the voice.
func (v *Voice) Info() VoiceInfo {
	return VoiceInfo{
		ID:          v.id,
		NoteIndex:   v.NoteIndex,
		FrequencyHz: v.FrequencyHz,
		Waveform:    v.Waveform,
		StartFrame:  v.startFrame,
		State:       v.State(),
		Amplitude:   v.Amplitude(),
	}
}
