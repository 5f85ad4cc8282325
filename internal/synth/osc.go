package synth

import (
	"math"

	"github.com/cbegin/tepiano-go/internal/params"
)

const twoPi = math.Pi * 2

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// oscillate returns the waveform value at the voice's phase and advances it.
func oscillate(v *Voice, sampleRate float64) float64 {
	dt := v.FrequencyHz / sampleRate
	t := v.phase
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch v.Waveform {
	case params.Sine:
		return math.Sin(twoPi * t)
	case params.Triangle:
		return 1 - 4*math.Abs(t-0.5)
	case params.Saw:
		return 2*t - 1 - polyBLEP(t, dt)
	case params.Square:
		out := -1.0
		if t < 0.5 {
			out = 1
		}
		out += polyBLEP(t, dt)
		out -= polyBLEP(math.Mod(t+0.5, 1), dt)
		return out
	default:
		return 0
	}
}
