// Package input turns raw physical down/up transitions into note intents.
package input

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/cbegin/tepiano-go/internal/binding"
)

// Kind is the direction of an Intent.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	if k == NoteOn {
		return "note-on"
	}
	return "note-off"
}

// Intent is a normalized note instruction.
type Intent struct {
	Kind     Kind
	KeyIndex int
}

// Tracker de-duplicates held physical inputs. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	table   *binding.Table
	pressed map[string]struct{}
	log     *slog.Logger
}

// NewTracker returns a tracker resolving ids through table. A nil logger
// discards output.
func NewTracker(table *binding.Table, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		table:   table,
		pressed: make(map[string]struct{}),
		log:     logger,
	}
}

// Down records a press. It returns a NoteOn intent only for the first down
// of a bound id; auto-repeat downs and unbound ids yield nothing.
func (t *Tracker) Down(physicalID string) (Intent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, held := t.pressed[physicalID]; held {
		return Intent{}, false
	}
	idx, ok := t.table.Lookup(physicalID)
	if !ok {
		t.log.Debug("unbound input", "id", physicalID)
		return Intent{}, false
	}
	t.pressed[physicalID] = struct{}{}
	return Intent{Kind: NoteOn, KeyIndex: idx}, true
}

// Up records a release. Releasing an id that is not held is harmless; a
// bound id always yields a NoteOff so the engine can never be left sounding.
func (t *Tracker) Up(physicalID string) (Intent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pressed, physicalID)
	idx, ok := t.table.Lookup(physicalID)
	if !ok {
		return Intent{}, false
	}
	return Intent{Kind: NoteOff, KeyIndex: idx}, true
}

// Leave handles a pointer leaving its target while pressed.
func (t *Tracker) Leave(physicalID string) (Intent, bool) {
	return t.Up(physicalID)
}

// ReleaseAll forgets every held id and returns one NoteOff per affected key,
// ordered by key index.
func (t *Tracker) ReleaseAll() []Intent {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[int]struct{}, len(t.pressed))
	var out []Intent
	for id := range t.pressed {
		idx, ok := t.table.Lookup(id)
		delete(t.pressed, id)
		if !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, Intent{Kind: NoteOff, KeyIndex: idx})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyIndex < out[j].KeyIndex })
	return out
}

// Held reports whether any physical input currently holds key index.
func (t *Tracker) Held(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.pressed {
		if idx, ok := t.table.Lookup(id); ok && idx == index {
			return true
		}
	}
	return false
}

// IsPressed reports whether physicalID is held.
func (t *Tracker) IsPressed(physicalID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pressed[physicalID]
	return ok
}

// PressedCount returns the number of held ids.
func (t *Tracker) PressedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pressed)
}
