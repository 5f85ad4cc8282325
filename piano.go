// Package tepiano is a polyphonic note-voice engine for a virtual keyboard:
// physical key, pointer and touch transitions go in, enveloped tones come
// out of an audio device.
package tepiano

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	intaudio "github.com/cbegin/tepiano-go/internal/audio"
	intbind "github.com/cbegin/tepiano-go/internal/binding"
	intinput "github.com/cbegin/tepiano-go/internal/input"
	intkeys "github.com/cbegin/tepiano-go/internal/keys"
	intparams "github.com/cbegin/tepiano-go/internal/params"
	intsynth "github.com/cbegin/tepiano-go/internal/synth"
	intvoice "github.com/cbegin/tepiano-go/internal/voice"
)

// ErrAudioUnavailable reports that the output device could not be acquired.
// Only the triggering note is lost; the next note retries the device.
var ErrAudioUnavailable = intsynth.ErrAudioUnavailable

type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
	// BackendNull never pulls audio; drive it with Render.
	BackendNull Backend = "null"
)

// Parameters mirrors the live performance parameters.
type Parameters = intparams.Parameters

// Waveform is the oscillator shape, selected by preset.
type Waveform = intparams.Waveform

const (
	Sine     = intparams.Sine
	Triangle = intparams.Triangle
	Saw      = intparams.Saw
	Square   = intparams.Square
)

// VoiceInfo is a snapshot of one sounding voice.
type VoiceInfo = intsynth.VoiceInfo

// Key is one entry of the two-octave key layout.
type Key = intkeys.Key

type Option func(*pianoConfig)

type pianoConfig struct {
	backend    Backend
	device     intaudio.Device
	bindings   *intbind.Table
	params     intparams.Parameters
	logger     *slog.Logger
	sampleTap  func([]float32)
	voiceDone  func(VoiceInfo)
	bufferSize time.Duration
	bindingErr error
}

func defaultPianoConfig() pianoConfig {
	return pianoConfig{
		backend: BackendEbiten,
		params:  intparams.Defaults(),
		logger:  slog.New(slog.DiscardHandler),
	}
}

func WithBackend(b Backend) Option {
	return func(cfg *pianoConfig) {
		cfg.backend = b
	}
}

// WithDevice injects an output device, overriding WithBackend.
func WithDevice(d intaudio.Device) Option {
	return func(cfg *pianoConfig) {
		cfg.device = d
	}
}

func WithBindings(t *intbind.Table) Option {
	return func(cfg *pianoConfig) {
		cfg.bindings = t
	}
}

// WithBindingFile loads binding overrides from a JSON file. Load errors
// surface from New.
func WithBindingFile(path string) Option {
	return func(cfg *pianoConfig) {
		t, err := intbind.LoadJSON(path)
		if err != nil {
			cfg.bindingErr = fmt.Errorf("load bindings: %w", err)
			return
		}
		cfg.bindings = t
	}
}

func WithParameters(p Parameters) Option {
	return func(cfg *pianoConfig) {
		cfg.params = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *pianoConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *pianoConfig) {
		cfg.sampleTap = tap
	}
}

// WithVoiceDone installs a callback invoked once per voice when its release
// ramp ends. It runs on the audio thread.
func WithVoiceDone(fn func(VoiceInfo)) Option {
	return func(cfg *pianoConfig) {
		cfg.voiceDone = fn
	}
}

// WithBufferSize sets the ebiten backend's output buffer length.
func WithBufferSize(d time.Duration) Option {
	return func(cfg *pianoConfig) {
		cfg.bufferSize = d
	}
}

// Piano wires input tracking, parameters, voice management and rendering.
// All methods are safe for concurrent use.
type Piano struct {
	// mu is held shared by input paths and exclusively by Close, so no
	// note can start once Close has begun.
	mu       sync.RWMutex
	bindings *intbind.Table
	tracker  *intinput.Tracker
	params   *intparams.Store
	manager  *intvoice.Manager
	engine   *intsynth.Engine
	log      *slog.Logger
	closed   bool
}

func New(sampleRate int, opts ...Option) (*Piano, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPianoConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bindingErr != nil {
		return nil, cfg.bindingErr
	}
	device := cfg.device
	if device == nil {
		var err error
		device, err = newDevice(cfg.backend, sampleRate, cfg.bufferSize)
		if err != nil {
			return nil, err
		}
	}
	if device.SampleRate() != sampleRate {
		return nil, fmt.Errorf("device runs at %d Hz, piano at %d Hz", device.SampleRate(), sampleRate)
	}
	bindings := cfg.bindings
	if bindings == nil {
		bindings = intbind.Default()
	}
	log := cfg.logger
	store := intparams.NewStore(cfg.params)
	engine := intsynth.New(device,
		intsynth.WithLogger(log.With("component", "synth")),
		intsynth.WithSampleTap(cfg.sampleTap),
		intsynth.WithVoiceDone(cfg.voiceDone),
	)
	return &Piano{
		bindings: bindings,
		tracker:  intinput.NewTracker(bindings, log.With("component", "input")),
		params:   store,
		manager:  intvoice.NewManager(engine, store, log.With("component", "voice")),
		engine:   engine,
		log:      log,
	}, nil
}

func newDevice(b Backend, sampleRate int, bufferSize time.Duration) (intaudio.Device, error) {
	switch b {
	case BackendEbiten, "":
		return intaudio.NewEbitenDevice(sampleRate, bufferSize), nil
	case BackendOto:
		return intaudio.NewOtoDevice(sampleRate), nil
	case BackendNull:
		return intaudio.NewNullDevice(sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", b)
	}
}

// TargetID returns the physical id of the on-screen target for key index;
// pointer and touch input press keys through it.
func TargetID(index int) string { return intbind.TargetID(index) }

// ParseBackend maps a flag value to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(name); b {
	case BackendEbiten, BackendOto, BackendNull:
		return b, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected ebiten|oto|null)", name)
	}
}

func (p *Piano) apply(in intinput.Intent) error {
	switch in.Kind {
	case intinput.NoteOn:
		return p.manager.NoteOn(in.KeyIndex)
	default:
		p.manager.NoteOff(in.KeyIndex)
		return nil
	}
}

// PhysicalDown handles a key, pointer or touch press. Repeats of a held id
// and unbound ids are ignored. The only error is ErrAudioUnavailable.
func (p *Piano) PhysicalDown(id string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	in, ok := p.tracker.Down(id)
	if !ok {
		return nil
	}
	if err := p.apply(in); err != nil {
		p.log.Warn("note dropped", "id", id, "note", in.KeyIndex, "err", err)
		return err
	}
	return nil
}

// PhysicalUp handles a release. It is safe to call for ids that are not held.
func (p *Piano) PhysicalUp(id string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if in, ok := p.tracker.Up(id); ok {
		p.apply(in)
	}
}

// PointerLeave handles a pointer leaving a key target while pressed.
func (p *Piano) PointerLeave(id string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if in, ok := p.tracker.Leave(id); ok {
		p.apply(in)
	}
}

// ReleaseAll releases every held input, e.g. on focus loss.
func (p *Piano) ReleaseAll() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, in := range p.tracker.ReleaseAll() {
		p.apply(in)
	}
}

// NoteOn starts key index directly, bypassing input tracking.
func (p *Piano) NoteOn(index int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	return p.manager.NoteOn(index)
}

// NoteOff releases key index directly.
func (p *Piano) NoteOff(index int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	p.manager.NoteOff(index)
}

func (p *Piano) SetMasterVolume(v float64) { p.params.SetMasterVolume(v) }
func (p *Piano) SetAttack(sec float64)     { p.params.SetAttack(sec) }
func (p *Piano) SetRelease(sec float64)    { p.params.SetRelease(sec) }
func (p *Piano) SetPreset(preset int)      { p.params.SetPreset(preset) }

// CyclePreset advances to the next preset and returns it.
func (p *Piano) CyclePreset() Waveform { return p.params.CyclePreset() }

// Parameters returns the current parameter values.
func (p *Piano) Parameters() Parameters { return p.params.Snapshot() }

// Keys returns the key layout.
func (p *Piano) Keys() []Key { return intkeys.All() }

// KeyHint returns the keyboard character shown on key index, or "".
func (p *Piano) KeyHint(index int) string { return p.bindings.Hint(index) }

// Held reports whether any input holds key index; drives key highlighting.
func (p *Piano) Held(index int) bool { return p.tracker.Held(index) }

// Live returns the voice currently owning key index, if any.
func (p *Piano) Live(index int) (VoiceInfo, bool) { return p.manager.Live(index) }

// Voices returns every sounding voice, release tails included.
func (p *Piano) Voices() []VoiceInfo { return p.engine.Voices() }

// SoundingCount returns the number of sounding voices.
func (p *Piano) SoundingCount() int { return p.engine.Sounding() }

// Playing reports whether anything is sounding.
func (p *Piano) Playing() bool { return p.engine.Sounding() > 0 }

// SampleRate returns the output rate in Hz.
func (p *Piano) SampleRate() int { return p.engine.SampleRate() }

// Close releases held inputs, silences the engine and closes the device.
// Input after Close is ignored.
func (p *Piano) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.tracker.ReleaseAll()
	p.manager.ReleaseAll()
	return p.engine.Close()
}
