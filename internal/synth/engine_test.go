package synth

import (
	"errors"
	"math"
	"testing"

	"github.com/cbegin/tepiano-go/internal/audio"
	"github.com/cbegin/tepiano-go/internal/params"
)

const testRate = 1000

type failingDevice struct {
	err   error
	tries int
}

func (d *failingDevice) Open(audio.SampleSource) error {
	d.tries++
	return d.err
}
func (d *failingDevice) Close() error    { return nil }
func (d *failingDevice) SampleRate() int { return testRate }

func render(e *Engine, frames int) []float32 {
	buf := make([]float32, frames*audio.Channels)
	e.Process(buf)
	return buf
}

func testParams() params.Parameters {
	return params.Parameters{MasterVolume: 0.5, AttackSeconds: 0.1, ReleaseSeconds: 0.3, Preset: params.Sine}
}

func TestAttackReachesPeakOnTime(t *testing.T) {
	e := New(audio.NewNullDevice(testRate))
	v := NewVoice(0, 261.63, params.Sine)
	if err := e.Start(v, testParams()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if v.State() != Attacking || v.Amplitude() != 0 {
		t.Fatalf("fresh voice = %v amp %v", v.State(), v.Amplitude())
	}
	render(e, 99)
	if v.State() != Attacking {
		t.Fatalf("state after 99 frames = %v, want attacking", v.State())
	}
	if a := v.Amplitude(); a >= 0.5 || math.Abs(a-0.495) > 1e-9 {
		t.Fatalf("amplitude after 99 frames = %v, want 0.495", a)
	}
	render(e, 1)
	if v.State() != Sustaining {
		t.Fatalf("state after 100 frames = %v, want sustaining", v.State())
	}
	if a := v.Amplitude(); a != 0.5 {
		t.Fatalf("amplitude after attack = %v, want 0.5", a)
	}
	render(e, 500)
	if v.State() != Sustaining || v.Amplitude() != 0.5 {
		t.Fatalf("plateau = %v %v", v.State(), v.Amplitude())
	}
}

func TestReleaseReachesZeroOnTime(t *testing.T) {
	var done []VoiceInfo
	e := New(audio.NewNullDevice(testRate), WithVoiceDone(func(info VoiceInfo) {
		done = append(done, info)
	}))
	v := NewVoice(0, 261.63, params.Sine)
	p := testParams()
	e.Start(v, p)
	render(e, 200)
	e.Release(v, p)
	if v.State() != Releasing || v.Amplitude() != 0.5 {
		t.Fatalf("released voice = %v %v", v.State(), v.Amplitude())
	}
	render(e, 299)
	if v.State() != Releasing || v.Amplitude() <= 0 {
		t.Fatalf("voice ended early: %v %v", v.State(), v.Amplitude())
	}
	if e.Sounding() != 1 {
		t.Fatalf("sounding = %d, want 1", e.Sounding())
	}
	render(e, 1)
	if v.State() != Done || v.Amplitude() != 0 {
		t.Fatalf("after release = %v %v", v.State(), v.Amplitude())
	}
	if e.Sounding() != 0 {
		t.Fatalf("sounding = %d, want 0", e.Sounding())
	}
	if len(done) != 1 || done[0].ID != v.ID() {
		t.Fatalf("done callbacks = %+v", done)
	}
}

func TestReleaseDuringAttackTruncates(t *testing.T) {
	e := New(audio.NewNullDevice(testRate))
	v := NewVoice(3, 311.13, params.Triangle)
	p := testParams()
	e.Start(v, p)
	render(e, 40)
	e.Release(v, p)
	if a := v.Amplitude(); math.Abs(a-0.2) > 1e-9 {
		t.Fatalf("release level = %v, want 0.2", a)
	}
	render(e, 150)
	if a := v.Amplitude(); math.Abs(a-0.1) > 1e-9 {
		t.Fatalf("half-way level = %v, want 0.1", a)
	}
	render(e, 150)
	if v.State() != Done {
		t.Fatalf("state = %v, want done", v.State())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	e := New(audio.NewNullDevice(testRate))
	v := NewVoice(0, 261.63, params.Sine)
	p := testParams()
	e.Start(v, p)
	render(e, 100)
	e.Release(v, p)
	render(e, 100)
	p.ReleaseSeconds = 2
	e.Release(v, p)
	render(e, 200)
	if v.State() != Done {
		t.Fatalf("second release restarted the ramp: %v", v.State())
	}
}

func TestParameterChangesDoNotTouchRunningVoices(t *testing.T) {
	e := New(audio.NewNullDevice(testRate))
	v := NewVoice(0, 261.63, params.Square)
	p := testParams()
	e.Start(v, p)
	p.MasterVolume = 1
	p.AttackSeconds = 0.5
	render(e, 100)
	if v.Amplitude() != 0.5 {
		t.Fatalf("amplitude = %v, want initial peak 0.5", v.Amplitude())
	}
	if v.Waveform != params.Square {
		t.Fatalf("waveform changed to %v", v.Waveform)
	}
}

func TestStartFailsWhenDeviceUnavailable(t *testing.T) {
	dev := &failingDevice{err: errors.New("no backend")}
	e := New(dev)
	v := NewVoice(0, 261.63, params.Sine)
	err := e.Start(v, testParams())
	if !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("err = %v, want ErrAudioUnavailable", err)
	}
	if e.Sounding() != 0 || v.ID() != 0 {
		t.Fatalf("failed start left state: sounding=%d id=%d", e.Sounding(), v.ID())
	}
	dev.err = nil
	if err := e.Start(NewVoice(0, 261.63, params.Sine), testParams()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if dev.tries != 2 {
		t.Fatalf("device tries = %d, want 2", dev.tries)
	}
}

func TestAcquireOpensDeviceOnce(t *testing.T) {
	dev := &failingDevice{err: errors.New("busy")}
	e := New(dev)
	if err := e.Acquire(); !errors.Is(err, ErrAudioUnavailable) {
		t.Fatalf("err = %v, want ErrAudioUnavailable", err)
	}
	null := audio.NewNullDevice(testRate)
	e = New(null)
	for i := 0; i < 3; i++ {
		if err := e.Acquire(); err != nil {
			t.Fatalf("acquire: %v", err)
		}
	}
	e.Start(NewVoice(2, 293.66, params.Sine), testParams())
	if null.Opens() != 1 || e.Sounding() != 1 {
		t.Fatalf("opens = %d sounding = %d", null.Opens(), e.Sounding())
	}
}

func TestVoiceInfoCarriesStartFrame(t *testing.T) {
	e := New(audio.NewNullDevice(testRate))
	e.Process(make([]float32, 40*audio.Channels))
	v := NewVoice(5, 349.23, params.Triangle)
	e.Start(v, testParams())
	if info := v.Info(); info.StartFrame != 40 || info.ID != v.ID() {
		t.Fatalf("info = %+v, want start frame 40", info)
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	e := New(audio.NewNullDevice(testRate))
	v := NewVoice(0, 261.63, params.Sine)
	e.Start(v, testParams())
	if err := e.Start(v, testParams()); err == nil {
		t.Fatalf("expected error on second start")
	}
	if e.Sounding() != 1 {
		t.Fatalf("sounding = %d", e.Sounding())
	}
}

func TestWaveformsGenerateSignal(t *testing.T) {
	for _, w := range []params.Waveform{params.Sine, params.Triangle, params.Saw, params.Square} {
		t.Run(w.String(), func(t *testing.T) {
			e := New(audio.NewNullDevice(48000))
			p := testParams()
			p.AttackSeconds = 0.01
			e.Start(NewVoice(9, 440, w), p)
			buf := render(e, 4800)
			var energy, maxAbs float64
			for i := 0; i < len(buf); i += 2 {
				if buf[i] != buf[i+1] {
					t.Fatalf("frame %d not mono: %v %v", i/2, buf[i], buf[i+1])
				}
				a := math.Abs(float64(buf[i]))
				energy += a
				if a > maxAbs {
					maxAbs = a
				}
			}
			if energy < 1 {
				t.Fatalf("expected signal, energy=%v", energy)
			}
			if maxAbs > 0.5*1.1 {
				t.Fatalf("peak %v exceeds volume", maxAbs)
			}
		})
	}
}

func TestMixIsClamped(t *testing.T) {
	e := New(audio.NewNullDevice(48000))
	p := params.Parameters{MasterVolume: 1, AttackSeconds: 0.01, ReleaseSeconds: 0.1, Preset: params.Square}
	for i := 0; i < 6; i++ {
		e.Start(NewVoice(i, 261.63, params.Square), p)
	}
	for _, s := range render(e, 2000) {
		if s > 1 || s < -1 {
			t.Fatalf("sample %v out of range", s)
		}
	}
}

func TestSampleTapSeesOutput(t *testing.T) {
	var frames int
	e := New(audio.NewNullDevice(testRate), WithSampleTap(func(buf []float32) {
		frames += len(buf) / 2
	}))
	render(e, 64)
	render(e, 32)
	if frames != 96 {
		t.Fatalf("tap saw %d frames, want 96", frames)
	}
	if e.Clock() != 96 {
		t.Fatalf("clock = %d", e.Clock())
	}
}

func TestCloseSilencesVoices(t *testing.T) {
	dev := audio.NewNullDevice(testRate)
	e := New(dev)
	v := NewVoice(0, 261.63, params.Sine)
	e.Start(v, testParams())
	if !dev.IsOpen() {
		t.Fatalf("device not opened by start")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if v.Live() || e.Sounding() != 0 || dev.IsOpen() {
		t.Fatalf("close left state: live=%v sounding=%d open=%v", v.Live(), e.Sounding(), dev.IsOpen())
	}
}
