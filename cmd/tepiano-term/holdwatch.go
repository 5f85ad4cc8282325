package main

import (
	"sort"
	"time"
)

// holdWatch turns a terminal's key-press stream into press and release
// edges. Terminals report presses and auto-repeats but never releases, so a
// key counts as held until no press has been seen for timeout.
type holdWatch struct {
	timeout  time.Duration
	lastSeen map[string]time.Time
}

func newHoldWatch(timeout time.Duration) *holdWatch {
	return &holdWatch{timeout: timeout, lastSeen: make(map[string]time.Time)}
}

// seen records a press of id at now and reports whether it starts a hold.
func (w *holdWatch) seen(id string, now time.Time) bool {
	_, held := w.lastSeen[id]
	w.lastSeen[id] = now
	return !held
}

// expire returns the ids whose holds lapsed before now, in sorted order.
func (w *holdWatch) expire(now time.Time) []string {
	var out []string
	for id, t := range w.lastSeen {
		if now.Sub(t) > w.timeout {
			out = append(out, id)
			delete(w.lastSeen, id)
		}
	}
	sort.Strings(out)
	return out
}

// reset forgets every hold and returns the ids that were held.
func (w *holdWatch) reset() []string {
	out := make([]string, 0, len(w.lastSeen))
	for id := range w.lastSeen {
		out = append(out, id)
	}
	clear(w.lastSeen)
	sort.Strings(out)
	return out
}
