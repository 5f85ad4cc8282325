// Package params holds the live performance parameters read at note start
// and release.
package params

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Waveform selects the oscillator shape. It doubles as the preset index.
type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Saw
	Square
)

// PresetCount is the number of selectable presets.
const PresetCount = 4

var waveNames = [PresetCount]string{"sine", "triangle", "saw", "square"}
var presetNames = [PresetCount]string{"CLASSIC", "WARM", "BRIGHT", "AMBIENT"}

func (w Waveform) String() string {
	if w < 0 || w >= PresetCount {
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
	return waveNames[w]
}

// PresetName is the display name of the preset using this waveform.
func (w Waveform) PresetName() string {
	if w < 0 || w >= PresetCount {
		return "?"
	}
	return presetNames[w]
}

// Attack and release accept any positive time up to their maximum.
const (
	MaxAttackSec  = 0.5
	MaxReleaseSec = 2.0
)

// Floors of the on-screen attack and release controls. The store itself
// accepts shorter times.
const (
	ControlMinAttackSec  = 0.01
	ControlMinReleaseSec = 0.1
)

// Parameters is a value snapshot of the store.
type Parameters struct {
	MasterVolume   float64
	AttackSeconds  float64
	ReleaseSeconds float64
	Preset         Waveform
}

// Defaults returns the power-on parameters.
func Defaults() Parameters {
	return Parameters{
		MasterVolume:   0.3,
		AttackSeconds:  0.1,
		ReleaseSeconds: 0.3,
		Preset:         Sine,
	}
}

// Clamped returns p with every field forced into its legal range. Times
// that are not positive fall back to the defaults.
func (p Parameters) Clamped() Parameters {
	d := Defaults()
	p.MasterVolume = clamp(p.MasterVolume, 0, 1)
	if !positive(p.AttackSeconds) {
		p.AttackSeconds = d.AttackSeconds
	}
	p.AttackSeconds = math.Min(p.AttackSeconds, MaxAttackSec)
	if !positive(p.ReleaseSeconds) {
		p.ReleaseSeconds = d.ReleaseSeconds
	}
	p.ReleaseSeconds = math.Min(p.ReleaseSeconds, MaxReleaseSec)
	if p.Preset < 0 || p.Preset >= PresetCount {
		p.Preset = Sine
	}
	return p
}

// Display renders the main display line, e.g. "CLASSIC VOL 30".
func (p Parameters) Display() string {
	return fmt.Sprintf("%s VOL %d", p.Preset.PresetName(), int(math.Round(p.MasterVolume*100)))
}

// Store holds the current parameters. Reads are lock-free so the audio path
// never waits on a UI write.
type Store struct {
	cur atomic.Pointer[Parameters]
}

// NewStore returns a store seeded with p (clamped).
func NewStore(p Parameters) *Store {
	s := &Store{}
	p = p.Clamped()
	s.cur.Store(&p)
	return s
}

// Snapshot returns the current parameters by value.
func (s *Store) Snapshot() Parameters {
	return *s.cur.Load()
}

func (s *Store) update(fn func(*Parameters)) Parameters {
	for {
		old := s.cur.Load()
		next := *old
		fn(&next)
		next = next.Clamped()
		if s.cur.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// SetMasterVolume sets the peak amplitude, clamped to [0,1].
func (s *Store) SetMasterVolume(v float64) {
	s.update(func(p *Parameters) { p.MasterVolume = v })
}

// SetAttack sets the attack ramp length in seconds, capped at MaxAttackSec.
// Non-positive and NaN values are ignored.
func (s *Store) SetAttack(sec float64) {
	if !positive(sec) {
		return
	}
	s.update(func(p *Parameters) { p.AttackSeconds = sec })
}

// SetRelease sets the release ramp length in seconds, capped at
// MaxReleaseSec. Non-positive and NaN values are ignored.
func (s *Store) SetRelease(sec float64) {
	if !positive(sec) {
		return
	}
	s.update(func(p *Parameters) { p.ReleaseSeconds = sec })
}

// SetPreset selects preset 0..3. Out-of-range values are ignored.
func (s *Store) SetPreset(preset int) {
	if preset < 0 || preset >= PresetCount {
		return
	}
	s.update(func(p *Parameters) { p.Preset = Waveform(preset) })
}

// CyclePreset advances to the next preset, wrapping after the last, and
// returns the new selection.
func (s *Store) CyclePreset() Waveform {
	return s.update(func(p *Parameters) { p.Preset = (p.Preset + 1) % PresetCount }).Preset
}

func positive(v float64) bool { return v > 0 }

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
