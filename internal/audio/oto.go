package audio

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoDevice drives oto directly, without the ebiten audio layer.
type OtoDevice struct {
	mu         sync.Mutex
	sampleRate int
	ctx        *oto.Context
	player     *oto.Player
}

func NewOtoDevice(sampleRate int) *OtoDevice {
	return &OtoDevice{sampleRate: sampleRate}
}

func (d *OtoDevice) Open(src SampleSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return nil
	}
	if d.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   d.sampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatFloat32LE,
		})
		if err != nil {
			return err
		}
		<-ready
		d.ctx = ctx
	}
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.player = d.ctx.NewPlayer(NewStreamReader(src))
	d.player.Play()
	return nil
}

func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return err
}

func (d *OtoDevice) SampleRate() int { return d.sampleRate }
