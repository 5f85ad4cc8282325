package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cbegin/tepiano-go"
	"github.com/cbegin/tepiano-go/internal/record"
	"github.com/hajimehoshi/ebiten/v2"
)

func TestRunGameClosesOnLoopError(t *testing.T) {
	const rate = 1000
	rec := record.New(rate, 0)
	p, err := tepiano.New(rate, tepiano.WithBackend(tepiano.BackendNull), tepiano.WithSampleTap(rec.Tap))
	if err != nil {
		t.Fatalf("new piano: %v", err)
	}
	path := filepath.Join(t.TempDir(), "take.wav")
	g := newGame(p, rec, path)

	loopErr := errors.New("window lost")
	err = runGame(g, func(ebiten.Game) error {
		p.PhysicalDown("a")
		p.RenderSeconds(0.1)
		return loopErr
	})
	if !errors.Is(err, loopErr) {
		t.Fatalf("err = %v, want loop error", err)
	}
	if p.SoundingCount() != 0 || p.Held(0) {
		t.Fatalf("piano not closed: sounding=%d held=%v", p.SoundingCount(), p.Held(0))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("recording not written: %v", err)
	}
}

func TestKeyIDMatchesBindings(t *testing.T) {
	for _, tc := range []struct {
		key  ebiten.Key
		want string
	}{
		{ebiten.KeyA, "a"},
		{ebiten.KeyZ, "z"},
		{ebiten.KeySemicolon, ";"},
		{ebiten.KeyQuote, "'"},
		{ebiten.KeyBracketLeft, "["},
		{ebiten.KeyBracketRight, "]"},
	} {
		if got := keyID(tc.key); got != tc.want {
			t.Fatalf("keyID(%v) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
