package binding

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultKeyboardMap(t *testing.T) {
	tbl := Default()
	for _, tc := range []struct {
		id    string
		index int
	}{
		{"a", 0},
		{"w", 1},
		{";", 16},
		{"'", 17},
		{"z", 18},
		{"i", 18},
		{"]", 22},
		{"v", 23},
		{TargetID(0), 0},
		{TargetID(23), 23},
	} {
		got, ok := tbl.Lookup(tc.id)
		if !ok || got != tc.index {
			t.Fatalf("Lookup(%q) = %d,%v want %d", tc.id, got, ok, tc.index)
		}
	}
	if _, ok := tbl.Lookup("unmapped-key"); ok {
		t.Fatalf("unmapped id should not resolve")
	}
}

func TestSharedNoteHasSeveralIDs(t *testing.T) {
	tbl := Default()
	ids := tbl.IDsFor(18)
	want := []string{"z", "i", TargetID(18)}
	if len(ids) != len(want) {
		t.Fatalf("IDsFor(18) = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDsFor(18) = %v, want %v", ids, want)
		}
	}
	if got := tbl.Hint(18); got != "z" {
		t.Fatalf("Hint(18) = %q, want z", got)
	}
}

func TestNewRejectsBadEntries(t *testing.T) {
	if _, err := New([]Binding{{"a", 24}}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := New([]Binding{{"", 0}}); err == nil {
		t.Fatalf("expected empty id error")
	}
}

func TestNewLaterEntryWins(t *testing.T) {
	tbl, err := New([]Binding{{"a", 0}, {"b", 1}, {"a", 5}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, _ := tbl.Lookup("a"); got != 5 {
		t.Fatalf("a -> %d, want 5", got)
	}
	if n := len(tbl.Bindings()); n != 2 {
		t.Fatalf("bindings = %d, want 2", n)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	if err := os.WriteFile(path, []byte(`{"bindings":{"Q":3,"a":1}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, ok := tbl.Lookup("q"); !ok || got != 3 {
		t.Fatalf("q -> %d,%v want 3", got, ok)
	}
	if got, _ := tbl.Lookup("a"); got != 1 {
		t.Fatalf("a -> %d, want override 1", got)
	}
	if got, ok := tbl.Lookup("s"); !ok || got != 2 {
		t.Fatalf("defaults should be kept, s -> %d,%v", got, ok)
	}
}

func TestApplyFileReplace(t *testing.T) {
	tbl, err := ApplyFile(&File{Replace: true, Bindings: map[string]int{"m": 7}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := tbl.Lookup("a"); ok {
		t.Fatalf("replace should drop the stock keyboard map")
	}
	if got, ok := tbl.Lookup(TargetID(4)); !ok || got != 4 {
		t.Fatalf("pointer targets must survive replace")
	}
	if got, _ := tbl.Lookup("m"); got != 7 {
		t.Fatalf("m -> %d, want 7", got)
	}
}

func TestLoadJSONRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"bindings":{"q":99}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadJSON(path); err == nil {
		t.Fatalf("expected error for out-of-range key")
	}
}
