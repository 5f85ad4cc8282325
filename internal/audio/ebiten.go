package audio

import (
	"fmt"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// EbitenDevice plays through ebiten's audio context. Ebiten allows a single
// context per process; an existing one is reused when the rate matches.
type EbitenDevice struct {
	mu         sync.Mutex
	sampleRate int
	bufferSize time.Duration
	player     *ebitaudio.Player
	reader     *StreamReader
}

// NewEbitenDevice returns an unopened device. bufferSize <= 0 keeps ebiten's
// default latency.
func NewEbitenDevice(sampleRate int, bufferSize time.Duration) *EbitenDevice {
	return &EbitenDevice{sampleRate: sampleRate, bufferSize: bufferSize}
}

func (d *EbitenDevice) context() (*ebitaudio.Context, error) {
	if ctx := ebitaudio.CurrentContext(); ctx != nil {
		if ctx.SampleRate() != d.sampleRate {
			return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", ctx.SampleRate(), d.sampleRate)
		}
		return ctx, nil
	}
	return ebitaudio.NewContext(d.sampleRate), nil
}

func (d *EbitenDevice) Open(src SampleSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return nil
	}
	ctx, err := d.context()
	if err != nil {
		return err
	}
	reader := NewStreamReader(src)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return err
	}
	if d.bufferSize > 0 {
		pl.SetBufferSize(d.bufferSize)
	}
	pl.Play()
	d.player = pl
	d.reader = reader
	return nil
}

func (d *EbitenDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	if cerr := d.reader.Close(); err == nil {
		err = cerr
	}
	d.reader = nil
	return err
}

func (d *EbitenDevice) SampleRate() int { return d.sampleRate }
