package tepiano

import intaudio "github.com/cbegin/tepiano-go/internal/audio"

// Render synchronously renders len(dst)/2 stereo frames, advancing every
// voice. Use it with BackendNull for offline output; on a live backend it
// would race the device for the same clock.
func (p *Piano) Render(dst []float32) {
	p.engine.Process(dst)
}

// RenderSeconds renders the given duration and returns interleaved stereo
// samples.
func (p *Piano) RenderSeconds(seconds float64) []float32 {
	frames := int(float64(p.SampleRate()) * seconds)
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*intaudio.Channels)
	p.Render(out)
	return out
}
