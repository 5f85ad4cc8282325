// Package binding maps physical input identifiers to logical key indexes.
package binding

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cbegin/tepiano-go/internal/keys"
)

// TargetPrefix prefixes the synthetic ids of on-screen key targets that
// pointer and touch input press.
const TargetPrefix = "target:"

// Binding ties one physical input to one key.
type Binding struct {
	PhysicalID string
	KeyIndex   int
}

// Table is an immutable physical id -> key index lookup. Several ids may
// resolve to the same key.
type Table struct {
	entries []Binding
	byID    map[string]int
}

// New builds a table from bindings in declaration order. Later entries for
// an id already present replace the earlier key index.
func New(bindings []Binding) (*Table, error) {
	t := &Table{byID: make(map[string]int, len(bindings))}
	for _, b := range bindings {
		if b.PhysicalID == "" {
			return nil, fmt.Errorf("binding for key %d has empty physical id", b.KeyIndex)
		}
		if _, ok := keys.Lookup(b.KeyIndex); !ok {
			return nil, fmt.Errorf("binding %q: key index %d out of range", b.PhysicalID, b.KeyIndex)
		}
		if _, dup := t.byID[b.PhysicalID]; dup {
			for i := range t.entries {
				if t.entries[i].PhysicalID == b.PhysicalID {
					t.entries[i].KeyIndex = b.KeyIndex
				}
			}
		} else {
			t.entries = append(t.entries, b)
		}
		t.byID[b.PhysicalID] = b.KeyIndex
	}
	return t, nil
}

// TargetID returns the pointer/touch target id of key index.
func TargetID(index int) string {
	return TargetPrefix + strconv.Itoa(index)
}

// keyboardMap follows the computer-keyboard layout: home row and the row
// below for naturals, the top row for accidentals. "z" and "i" both play F#5.
var keyboardMap = []Binding{
	{"a", 0}, {"s", 2}, {"d", 4}, {"f", 5}, {"g", 7}, {"h", 9}, {"j", 11},
	{"k", 12}, {"l", 14}, {";", 16}, {"'", 17}, {"z", 18}, {"x", 19}, {"c", 21}, {"v", 23},
	{"w", 1}, {"e", 3}, {"t", 6}, {"y", 8}, {"u", 10},
	{"o", 13}, {"p", 15}, {"i", 18}, {"[", 20}, {"]", 22},
}

func defaultBindings() []Binding {
	out := make([]Binding, 0, len(keyboardMap)+keys.Count)
	out = append(out, keyboardMap...)
	for i := 0; i < keys.Count; i++ {
		out = append(out, Binding{PhysicalID: TargetID(i), KeyIndex: i})
	}
	return out
}

// Default returns the stock keyboard map plus one pointer target per key.
func Default() *Table {
	t, err := New(defaultBindings())
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup resolves a physical id. ok is false for unbound ids.
func (t *Table) Lookup(physicalID string) (int, bool) {
	if t == nil {
		return 0, false
	}
	idx, ok := t.byID[physicalID]
	return idx, ok
}

// Bindings returns the entries in declaration order.
func (t *Table) Bindings() []Binding {
	out := make([]Binding, len(t.entries))
	copy(out, t.entries)
	return out
}

// IDsFor returns every physical id bound to key index, in declaration order.
func (t *Table) IDsFor(index int) []string {
	var out []string
	for _, b := range t.entries {
		if b.KeyIndex == index {
			out = append(out, b.PhysicalID)
		}
	}
	return out
}

// Hint returns the first non-target id bound to key index, for display on
// the key cap. It returns "" when only pointer targets reach the key.
func (t *Table) Hint(index int) string {
	for _, id := range t.IDsFor(index) {
		if !strings.HasPrefix(id, TargetPrefix) {
			return id
		}
	}
	return ""
}

// File is the JSON schema of a binding override file.
type File struct {
	// Replace drops the stock keyboard map. Pointer targets are always kept.
	Replace  bool           `json:"replace"`
	Bindings map[string]int `json:"bindings"`
}

// LoadJSON reads a binding override file and applies it on top of Default.
func LoadJSON(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ApplyFile(&f)
}

// ApplyFile builds a table from the defaults and a parsed override file.
// Overrides are applied in sorted id order so the result is deterministic.
func ApplyFile(f *File) (*Table, error) {
	base := defaultBindings()
	if f == nil {
		return New(base)
	}
	if f.Replace {
		base = base[len(keyboardMap):]
	}
	ids := make([]string, 0, len(f.Bindings))
	for id := range f.Bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		base = append(base, Binding{PhysicalID: strings.ToLower(id), KeyIndex: f.Bindings[id]})
	}
	return New(base)
}
