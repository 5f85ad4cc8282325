package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cbegin/tepiano-go"
	"github.com/cbegin/tepiano-go/internal/keys"
	"github.com/cbegin/tepiano-go/internal/params"
	"github.com/cbegin/tepiano-go/internal/record"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	windowW = 980
	windowH = 520

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	whiteKeyCount = 14
)

var (
	bgColor         = color.RGBA{226, 224, 218, 255}
	panelColor      = color.RGBA{200, 198, 192, 255}
	borderColor     = color.RGBA{128, 128, 128, 255}
	bevelLight      = color.RGBA{255, 255, 255, 255}
	bevelDarker     = color.RGBA{64, 64, 64, 255}
	displayColor    = color.RGBA{24, 24, 32, 255}
	whiteKeyColor   = color.RGBA{248, 248, 244, 255}
	blackKeyColor   = color.RGBA{30, 30, 34, 255}
	pressedColor    = color.RGBA{255, 106, 0, 255}
	ledOffColor     = color.RGBA{90, 40, 20, 255}
	sliderFillColor = color.RGBA{255, 106, 0, 255}
)

type slider int

const (
	sliderNone slider = iota
	sliderVolume
	sliderAttack
	sliderRelease
)

type game struct {
	piano    *tepiano.Piano
	recorder *record.Recorder
	recPath  string

	mouseTarget string
	touches     map[ebiten.TouchID]string
	dragging    slider
	wasFocused  bool

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
}

type uiLayout struct {
	display, preset, led    image.Rectangle
	volume, attack, release image.Rectangle
	keyboard, status        image.Rectangle
	white                   []image.Rectangle
	black                   map[int]image.Rectangle
}

func newGame(p *tepiano.Piano, rec *record.Recorder, recPath string) *game {
	return &game{
		piano:      p,
		recorder:   rec,
		recPath:    recPath,
		touches:    make(map[ebiten.TouchID]string),
		wasFocused: true,
		status:     "Ready",
		textCache:  make(map[string]*ebiten.Image, 256),
	}
}

func (g *game) Update() error {
	focused := ebiten.IsFocused()
	if !focused {
		if g.wasFocused {
			g.releaseEverything()
		}
		g.wasFocused = false
		return nil
	}
	g.wasFocused = true
	g.handleKeyboard()
	g.handleMouse()
	g.handleTouches()
	return nil
}

// releaseEverything is the forced release used when the window loses focus:
// key-up events will not arrive while another window owns the keyboard.
func (g *game) releaseEverything() {
	g.piano.ReleaseAll()
	g.mouseTarget = ""
	clear(g.touches)
	g.dragging = sliderNone
}

func (g *game) press(id string) {
	if err := g.piano.PhysicalDown(id); err != nil {
		if errors.Is(err, tepiano.ErrAudioUnavailable) {
			g.setError("audio unavailable, press a key to retry")
			return
		}
		g.setError(err.Error())
		return
	}
	if g.statusErr {
		g.setStatus("Ready")
	}
}

func (g *game) handleKeyboard() {
	for _, k := range inpututil.AppendJustPressedKeys(nil) {
		switch k {
		case ebiten.KeyTab:
			g.piano.CyclePreset()
			continue
		case ebiten.KeyEscape:
			g.releaseEverything()
			continue
		}
		g.press(keyID(k))
	}
	for _, k := range inpututil.AppendJustReleasedKeys(nil) {
		g.piano.PhysicalUp(keyID(k))
	}
}

// keyID maps an ebiten key to the physical id used by the binding table.
func keyID(k ebiten.Key) string {
	switch k {
	case ebiten.KeySemicolon:
		return ";"
	case ebiten.KeyQuote:
		return "'"
	case ebiten.KeyBracketLeft:
		return "["
	case ebiten.KeyBracketRight:
		return "]"
	}
	name := k.String()
	if len(name) == 1 {
		return strings.ToLower(name)
	}
	return "key:" + strings.ToLower(name)
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.preset):
			g.piano.CyclePreset()
		case pointInRect(mx, my, l.volume):
			g.dragging = sliderVolume
		case pointInRect(mx, my, l.attack):
			g.dragging = sliderAttack
		case pointInRect(mx, my, l.release):
			g.dragging = sliderRelease
		default:
			if idx, ok := keyAt(l, mx, my); ok {
				g.mouseTarget = tepiano.TargetID(idx)
				g.press(g.mouseTarget)
			}
		}
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		if g.mouseTarget != "" {
			g.piano.PhysicalUp(g.mouseTarget)
			g.mouseTarget = ""
		}
		g.dragging = sliderNone
	}
	if g.mouseTarget != "" {
		if idx, ok := keyAt(l, mx, my); !ok || tepiano.TargetID(idx) != g.mouseTarget {
			g.piano.PointerLeave(g.mouseTarget)
			g.mouseTarget = ""
		}
	}
	switch g.dragging {
	case sliderVolume:
		g.piano.SetMasterVolume(sliderValue(mx, l.volume))
	case sliderAttack:
		g.piano.SetAttack(fromSlider(sliderValue(mx, l.attack), params.ControlMinAttackSec, params.MaxAttackSec))
	case sliderRelease:
		g.piano.SetRelease(fromSlider(sliderValue(mx, l.release), params.ControlMinReleaseSec, params.MaxReleaseSec))
	}
}

func (g *game) handleTouches() {
	l := g.layoutRects()
	for _, id := range inpututil.AppendJustPressedTouchIDs(nil) {
		x, y := ebiten.TouchPosition(id)
		if idx, ok := keyAt(l, x, y); ok {
			g.touches[id] = tepiano.TargetID(idx)
			g.press(g.touches[id])
		}
	}
	for id, target := range g.touches {
		if inpututil.IsTouchJustReleased(id) {
			g.piano.PhysicalUp(target)
			delete(g.touches, id)
			continue
		}
		x, y := ebiten.TouchPosition(id)
		if idx, ok := keyAt(l, x, y); !ok || tepiano.TargetID(idx) != target {
			g.piano.PointerLeave(target)
			delete(g.touches, id)
		}
	}
}

func (g *game) layoutRects() uiLayout {
	pad := 20
	rowH := 44
	l := uiLayout{black: make(map[int]image.Rectangle)}
	l.display = image.Rect(pad, pad, pad+420, pad+rowH*2)
	l.led = image.Rect(windowW-pad-24, pad, windowW-pad, pad+24)
	l.preset = image.Rect(pad+440, pad, pad+620, pad+rowH)
	top := pad + rowH*2 + 16
	sw := (windowW - pad*2 - 24) / 3
	l.volume = image.Rect(pad, top, pad+sw, top+rowH)
	l.attack = image.Rect(pad+sw+12, top, pad+2*sw+12, top+rowH)
	l.release = image.Rect(pad+2*sw+24, top, windowW-pad, top+rowH)

	kbTop := top + rowH + 20
	l.status = image.Rect(pad, windowH-pad-36, windowW-pad, windowH-pad)
	l.keyboard = image.Rect(pad, kbTop, windowW-pad, l.status.Min.Y-12)
	kw := l.keyboard.Dx() / whiteKeyCount
	kh := l.keyboard.Dy()
	white := keys.White()
	l.white = make([]image.Rectangle, len(white))
	for i := range white {
		x := l.keyboard.Min.X + i*kw
		l.white[i] = image.Rect(x, kbTop, x+kw-2, kbTop+kh)
	}
	// A black key sits on the boundary after the white key just below it.
	wpos := 0
	for _, k := range keys.All() {
		if !k.Accidental() {
			wpos++
			continue
		}
		cx := l.keyboard.Min.X + wpos*kw
		l.black[k.Index] = image.Rect(cx-kw/3, kbTop, cx+kw/3, kbTop+kh*3/5)
	}
	return l
}

// keyAt hit-tests black keys before white keys since they overlap.
func keyAt(l uiLayout, x, y int) (int, bool) {
	for idx, r := range l.black {
		if pointInRect(x, y, r) {
			return idx, true
		}
	}
	white := keys.White()
	for i, r := range l.white {
		if pointInRect(x, y, r) {
			return white[i], true
		}
	}
	return 0, false
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()
	p := g.piano.Parameters()

	g.drawDisplay(screen, l.display, p)
	g.drawButton(screen, l.preset, "PRESET")
	led := ledOffColor
	if g.piano.Playing() {
		led = pressedColor
	}
	ebitenutil.DrawRect(screen, float64(l.led.Min.X), float64(l.led.Min.Y), float64(l.led.Dx()), float64(l.led.Dy()), led)
	g.drawSlider(screen, l.volume, fmt.Sprintf("VOL %d", int(p.MasterVolume*100+0.5)), p.MasterVolume)
	g.drawSlider(screen, l.attack, fmt.Sprintf("ATK %.2f", p.AttackSeconds), toSlider(p.AttackSeconds, params.ControlMinAttackSec, params.MaxAttackSec))
	g.drawSlider(screen, l.release, fmt.Sprintf("REL %.1f", p.ReleaseSeconds), toSlider(p.ReleaseSeconds, params.ControlMinReleaseSec, params.MaxReleaseSec))
	g.drawKeyboard(screen, l)
	g.drawSunkenPanel(screen, l.status)
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	g.drawText(screen, msg, l.status.Min.X+8, l.status.Min.Y+4)
}

func (g *game) drawDisplay(screen *ebiten.Image, rect image.Rectangle, p tepiano.Parameters) {
	g.drawSunkenPanel(screen, rect)
	g.drawText(screen, p.Display(), rect.Min.X+12, rect.Min.Y+10)
	g.drawText(screen, fmt.Sprintf("%d VOICES", g.piano.SoundingCount()), rect.Min.X+12, rect.Min.Y+10+lineH)
}

func (g *game) drawKeyboard(screen *ebiten.Image, l uiLayout) {
	white := keys.White()
	for i, r := range l.white {
		idx := white[i]
		fill := whiteKeyColor
		if g.piano.Held(idx) {
			fill = pressedColor
		}
		ebitenutil.DrawRect(screen, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), fill)
		drawBorder(screen, r)
		g.drawKeyCap(screen, idx, r)
	}
	for _, k := range keys.All() {
		r, ok := l.black[k.Index]
		if !ok {
			continue
		}
		fill := blackKeyColor
		if g.piano.Held(k.Index) {
			fill = pressedColor
		}
		ebitenutil.DrawRect(screen, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), fill)
		g.drawKeyCap(screen, k.Index, r)
	}
}

func (g *game) drawKeyCap(screen *ebiten.Image, idx int, r image.Rectangle) {
	k, _ := keys.Lookup(idx)
	y := r.Max.Y - lineH*2 - 4
	g.drawText(screen, k.Label, r.Min.X+4, y)
	if hint := g.piano.KeyHint(idx); hint != "" {
		g.drawText(screen, strings.ToUpper(hint), r.Min.X+4, y+lineH)
	}
}

func (g *game) drawSlider(screen *ebiten.Image, rect image.Rectangle, label string, frac float64) {
	g.drawPanel(screen, rect)
	g.drawText(screen, label, rect.Min.X+8, rect.Min.Y+8)
	trackX := rect.Min.X + 150
	trackW := rect.Dx() - 166
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	fillW := int(float64(trackW) * clamp(frac, 0, 1))
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := min(max(trackX+fillW-5, trackX-5), trackX+trackW-5)
	knob := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	ebitenutil.DrawRect(screen, float64(knob.Min.X), float64(knob.Min.Y), float64(knob.Dx()), float64(knob.Dy()), panelColor)
	drawBorder(screen, knob)
}

func sliderValue(mx int, rect image.Rectangle) float64 {
	trackX := rect.Min.X + 150
	trackW := rect.Dx() - 166
	if trackW <= 0 {
		return 0
	}
	return clamp(float64(mx-trackX)/float64(trackW), 0, 1)
}

// The attack and release sliders span [lo, hi]; the store accepts shorter
// times set by flag.
func fromSlider(frac, lo, hi float64) float64 { return lo + frac*(hi-lo) }

func toSlider(v, lo, hi float64) float64 { return (v - lo) / (hi - lo) }

func (g *game) Layout(int, int) (int, int) {
	return windowW, windowH
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) Close() {
	if err := g.piano.Close(); err != nil {
		log.Printf("close audio: %v", err)
	}
	if g.recorder != nil {
		if err := g.recorder.WriteWAV(g.recPath); err != nil {
			log.Printf("write %s: %v", g.recPath, err)
			return
		}
		log.Printf("recorded %d frames to %s", g.recorder.Frames(), g.recPath)
	}
}

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), displayColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	g.drawPanel(screen, rect)
	labelW := len([]rune(label)) * charW
	g.drawText(screen, label, rect.Min.X+(rect.Dx()-labelW)/2, rect.Min.Y+(rect.Dy()-lineH)/2)
}

// drawBorder draws a raised bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			clear(g.textCache)
		}
		g.textCache[msg] = img
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 48000, "output sample rate")
		backendName = flag.String("backend", "ebiten", "audio backend: ebiten|oto|null")
		bufferMS    = flag.Int("buffer-ms", 20, "output buffer length in milliseconds (ebiten backend)")
		bindings    = flag.String("bindings", "", "JSON file with key binding overrides")
		volume      = flag.Float64("volume", 0.3, "master volume 0..1")
		attack      = flag.Float64("attack", 0.1, "attack time in seconds")
		release     = flag.Float64("release", 0.3, "release time in seconds")
		preset      = flag.Int("preset", 0, "preset 0..3 (CLASSIC, WARM, BRIGHT, AMBIENT)")
		recPath     = flag.String("record", "", "write the performance to this WAV file on exit")
		debug       = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	backend, err := tepiano.ParseBackend(*backendName)
	if err != nil {
		log.Fatal(err)
	}
	opts := []tepiano.Option{
		tepiano.WithBackend(backend),
		tepiano.WithBufferSize(time.Duration(*bufferMS) * time.Millisecond),
		tepiano.WithLogger(logger),
		tepiano.WithParameters(tepiano.Parameters{
			MasterVolume:   *volume,
			AttackSeconds:  *attack,
			ReleaseSeconds: *release,
			Preset:         tepiano.Waveform(*preset),
		}),
	}
	if *bindings != "" {
		opts = append(opts, tepiano.WithBindingFile(*bindings))
	}
	var rec *record.Recorder
	if *recPath != "" {
		rec = record.New(*sampleRate, 600)
		opts = append(opts, tepiano.WithSampleTap(rec.Tap))
	}
	p, err := tepiano.New(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	g := newGame(p, rec, *recPath)

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("TE-1")
	if err := runGame(g, ebiten.RunGame); err != nil {
		log.Fatal(err)
	}
}

// runGame runs the window loop and closes g however the loop ends, so the
// device is released and any recording is written before exit.
func runGame(g *game, run func(ebiten.Game) error) error {
	err := run(g)
	g.Close()
	return err
}
