package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/cbegin/tepiano-go"
	"github.com/cbegin/tepiano-go/internal/keys"
	"github.com/cbegin/tepiano-go/internal/params"
	"github.com/cbegin/tepiano-go/internal/record"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tickInterval = 30 * time.Millisecond

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	whiteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#000")).Background(lipgloss.Color("#ddd"))
	blackStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ccc")).Background(lipgloss.Color("#222"))
	heldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#000")).Background(lipgloss.Color("#ff6a00")).Bold(true)
	displayStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff6a00")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f44"))
)

type tickMsg time.Time

type model struct {
	piano    *tepiano.Piano
	holds    *holdWatch
	status   string
	err      bool
	quitting bool
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		for _, id := range m.holds.expire(time.Time(msg)) {
			m.piano.PhysicalUp(id)
		}
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			m.holds.reset()
			m.piano.ReleaseAll()
		case "tab":
			m.piano.CyclePreset()
		case "up":
			m.piano.SetMasterVolume(m.piano.Parameters().MasterVolume + 0.05)
		case "down":
			m.piano.SetMasterVolume(m.piano.Parameters().MasterVolume - 0.05)
		case "right":
			m.piano.SetAttack(m.piano.Parameters().AttackSeconds + 0.01)
		case "left":
			m.piano.SetAttack(math.Max(m.piano.Parameters().AttackSeconds-0.01, params.ControlMinAttackSec))
		case "pgup":
			m.piano.SetRelease(m.piano.Parameters().ReleaseSeconds + 0.1)
		case "pgdown":
			m.piano.SetRelease(math.Max(m.piano.Parameters().ReleaseSeconds-0.1, params.ControlMinReleaseSec))
		default:
			if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
				m = m.press(strings.ToLower(string(msg.Runes)))
			}
		}

	case tea.BlurMsg:
		m.holds.reset()
		m.piano.ReleaseAll()
	}
	return m, nil
}

// press forwards every report to the piano; the input tracker drops
// repeats of an id that is already held.
func (m model) press(id string) model {
	m.holds.seen(id, time.Now())
	if err := m.piano.PhysicalDown(id); err != nil {
		m.err = true
		if errors.Is(err, tepiano.ErrAudioUnavailable) {
			m.status = "audio unavailable, press a key to retry"
		} else {
			m.status = err.Error()
		}
		return m
	}
	if m.err {
		m.err = false
		m.status = "ready"
	}
	return m
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var black, white []string
	for _, idx := range keys.White() {
		white = append(white, m.keyCell(idx))
		if next, ok := keys.Lookup(idx + 1); ok && next.Accidental() {
			black = append(black, m.keyCell(next.Index))
		} else {
			black = append(black, "   ")
		}
	}
	p := m.piano.Parameters()
	display := displayStyle.Render(p.Display())
	readout := statusStyle.Render(fmt.Sprintf("ATK %.2fs  REL %.1fs  %d voices", p.AttackSeconds, p.ReleaseSeconds, m.piano.SoundingCount()))
	status := statusStyle.Render(m.status)
	if m.err {
		status = errorStyle.Render(m.status)
	}
	help := dimStyle.Render("tab:preset  up/down:vol  left/right:attack  pgup/pgdn:release  esc:release all  ctrl+c:quit")
	return fmt.Sprintf("\n%s\n%s\n\n  %s\n%s\n\n%s\n%s\n", display, readout, strings.Join(black, ""), strings.Join(white, ""), status, help)
}

func (m model) keyCell(idx int) string {
	k, _ := keys.Lookup(idx)
	hint := m.piano.KeyHint(idx)
	if hint == "" {
		hint = " "
	}
	cell := fmt.Sprintf(" %s ", strings.ToUpper(hint))
	switch {
	case m.piano.Held(idx):
		return heldStyle.Render(cell)
	case k.Accidental():
		return blackStyle.Render(cell)
	default:
		return whiteStyle.Render(cell)
	}
}

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 48000, "output sample rate")
		backendName = flag.String("backend", "oto", "audio backend: oto|ebiten|null")
		bindings    = flag.String("bindings", "", "JSON file with key binding overrides")
		hold        = flag.Duration("hold", 600*time.Millisecond, "release a key after this long without a repeat")
		recPath     = flag.String("record", "", "write the performance to this WAV file on exit")
		logPath     = flag.String("log", "", "write debug logs to this file")
	)
	flag.Parse()

	// The terminal belongs to the UI; logs go to a file or nowhere.
	logger := slog.New(slog.DiscardHandler)
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	backend, err := tepiano.ParseBackend(*backendName)
	if err != nil {
		log.Fatal(err)
	}
	opts := []tepiano.Option{tepiano.WithBackend(backend), tepiano.WithLogger(logger)}
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

	m := model{piano: p, holds: newHoldWatch(*hold), status: "ready"}
	_, runErr := tea.NewProgram(m, tea.WithReportFocus()).Run()
	if err := p.Close(); err != nil {
		log.Printf("close audio: %v", err)
	}
	if rec != nil {
		if err := rec.WriteWAV(*recPath); err != nil {
			log.Printf("write %s: %v", *recPath, err)
		} else {
			fmt.Printf("recorded %.1fs to %s\n", float64(rec.Frames())/float64(*sampleRate), *recPath)
		}
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}
