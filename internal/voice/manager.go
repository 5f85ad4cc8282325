// Package voice keeps at most one live voice per note and hands voice
// lifecycles to the synth engine.
package voice

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/cbegin/tepiano-go/internal/keys"
	"github.com/cbegin/tepiano-go/internal/params"
	"github.com/cbegin/tepiano-go/internal/synth"
)

// Engine is the part of the synth engine the manager drives.
type Engine interface {
	Acquire() error
	Start(v *synth.Voice, p params.Parameters) error
	Release(v *synth.Voice, p params.Parameters)
}

// Manager owns the note-indexed voice table. A voice leaves the table the
// moment it is released; the engine keeps it until its release ramp ends.
type Manager struct {
	mu     sync.Mutex
	engine Engine
	params *params.Store
	table  map[int]*synth.Voice
	log    *slog.Logger
}

// NewManager returns a manager starting voices on engine with parameters
// read from store. A nil logger discards output.
func NewManager(engine Engine, store *params.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		engine: engine,
		params: store,
		table:  make(map[int]*synth.Voice),
		log:    logger,
	}
}

// NoteOn starts a voice for key index unless one is already live. Indexes
// outside the layout are ignored. A start failure (synth.ErrAudioUnavailable)
// discards the voice and is returned; the note stays free for a retry.
func (m *Manager) NoteOn(index int) error {
	key, ok := keys.Lookup(index)
	if !ok {
		m.log.Debug("note-on out of range", "note", index)
		return nil
	}
	// Device start-up can block; NoteOff and ReleaseAll must not wait on it.
	if err := m.engine.Acquire(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.table[index]; ok {
		if v.Live() {
			m.log.Debug("redundant trigger", "note", index, "id", v.ID())
			return nil
		}
		delete(m.table, index)
	}
	p := m.params.Snapshot()
	v := synth.NewVoice(index, key.FrequencyHz, p.Preset)
	if err := m.engine.Start(v, p); err != nil {
		return err
	}
	m.table[index] = v
	return nil
}

// NoteOff releases the live voice of key index. Stale or out-of-range
// releases are no-ops.
func (m *Manager) NoteOff(index int) {
	if _, ok := keys.Lookup(index); !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.table[index]
	if !ok {
		m.log.Debug("stale release", "note", index)
		return
	}
	delete(m.table, index)
	m.engine.Release(v, m.params.Snapshot())
}

// ReleaseAll releases every live voice.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.params.Snapshot()
	for idx, v := range m.table {
		delete(m.table, idx)
		m.engine.Release(v, p)
	}
}

// Live returns the live voice of key index.
func (m *Manager) Live(index int) (synth.VoiceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.table[index]
	if !ok || !v.Live() {
		return synth.VoiceInfo{}, false
	}
	return v.Info(), true
}

// LiveNotes returns the key indexes with a live voice, ascending.
func (m *Manager) LiveNotes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.table))
	for idx, v := range m.table {
		if v.Live() {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// LiveCount returns the number of notes with a live voice.
func (m *Manager) LiveCount() int {
	return len(m.LiveNotes())
}
