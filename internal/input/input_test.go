package input

import (
	"testing"

	"github.com/cbegin/tepiano-go/internal/binding"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(binding.Default(), nil)
}

func TestDownSuppressesAutoRepeat(t *testing.T) {
	tr := newTestTracker(t)
	var intents []Intent
	for i := 0; i < 5; i++ {
		if in, ok := tr.Down("a"); ok {
			intents = append(intents, in)
		}
	}
	if len(intents) != 1 {
		t.Fatalf("got %d intents, want 1", len(intents))
	}
	if intents[0] != (Intent{Kind: NoteOn, KeyIndex: 0}) {
		t.Fatalf("intent = %+v, want note-on 0", intents[0])
	}
	if _, ok := tr.Up("a"); !ok {
		t.Fatalf("up should yield note-off")
	}
	if _, ok := tr.Down("a"); !ok {
		t.Fatalf("down after up should retrigger")
	}
}

func TestUnboundInputHasNoEffect(t *testing.T) {
	tr := newTestTracker(t)
	if _, ok := tr.Down("unmapped-key"); ok {
		t.Fatalf("unbound down produced an intent")
	}
	if tr.PressedCount() != 0 {
		t.Fatalf("unbound down changed state")
	}
	if _, ok := tr.Up("unmapped-key"); ok {
		t.Fatalf("unbound up produced an intent")
	}
}

func TestUpIsIdempotent(t *testing.T) {
	tr := newTestTracker(t)
	tr.Down("s")
	for i := 0; i < 2; i++ {
		in, ok := tr.Up("s")
		if !ok || in != (Intent{Kind: NoteOff, KeyIndex: 2}) {
			t.Fatalf("up #%d = %+v,%v", i, in, ok)
		}
	}
	if tr.IsPressed("s") {
		t.Fatalf("s still pressed")
	}
}

func TestPointerLeaveReleases(t *testing.T) {
	tr := newTestTracker(t)
	id := binding.TargetID(7)
	if in, ok := tr.Down(id); !ok || in.KeyIndex != 7 {
		t.Fatalf("pointer down = %+v,%v", in, ok)
	}
	in, ok := tr.Leave(id)
	if !ok || in.Kind != NoteOff || in.KeyIndex != 7 {
		t.Fatalf("leave = %+v,%v", in, ok)
	}
	if tr.Held(7) {
		t.Fatalf("key 7 still held after leave")
	}
}

func TestSharedBindingHeld(t *testing.T) {
	tr := newTestTracker(t)
	tr.Down("z")
	tr.Down("i")
	if !tr.Held(18) {
		t.Fatalf("key 18 should be held")
	}
	tr.Up("z")
	if !tr.Held(18) {
		t.Fatalf("key 18 still held through i")
	}
	tr.Up("i")
	if tr.Held(18) {
		t.Fatalf("key 18 released")
	}
}

func TestReleaseAll(t *testing.T) {
	tr := newTestTracker(t)
	for _, id := range []string{"z", "i", "a", binding.TargetID(5)} {
		tr.Down(id)
	}
	got := tr.ReleaseAll()
	want := []Intent{{NoteOff, 0}, {NoteOff, 5}, {NoteOff, 18}}
	if len(got) != len(want) {
		t.Fatalf("ReleaseAll = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ReleaseAll = %+v, want %+v", got, want)
		}
	}
	if tr.PressedCount() != 0 {
		t.Fatalf("pressed set not cleared")
	}
}
