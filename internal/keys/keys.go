// Package keys holds the fixed two-octave key layout (C4..B5).
package keys

// Count is the number of playable keys.
const Count = 24

// Key is one logical key of the keyboard.
type Key struct {
	Index       int
	FrequencyHz float64
	Label       string
}

// Octave returns the scientific pitch octave of the key (4 or 5).
func (k Key) Octave() int {
	return 4 + k.Index/12
}

// Accidental reports whether the key is a black key.
func (k Key) Accidental() bool {
	return len(k.Label) > 1 && k.Label[1] == '#'
}

// Name returns the label with its octave, e.g. "F#5".
func (k Key) Name() string {
	return k.Label + string(rune('0'+k.Octave()))
}

var frequencies = [Count]float64{
	261.63, 277.18, 293.66, 311.13, 329.63, 349.23, 369.99, 392.00, 415.30, 440.00, 466.16, 493.88,
	523.25, 554.37, 587.33, 622.25, 659.25, 698.46, 739.99, 783.99, 830.61, 880.00, 932.33, 987.77,
}

var labels = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var layout = func() [Count]Key {
	var out [Count]Key
	for i := range out {
		out[i] = Key{Index: i, FrequencyHz: frequencies[i], Label: labels[i%12]}
	}
	return out
}()

// Lookup returns the key at index. ok is false for indexes outside the table.
func Lookup(index int) (Key, bool) {
	if index < 0 || index >= Count {
		return Key{}, false
	}
	return layout[index], true
}

// All returns a copy of the layout ordered by index.
func All() []Key {
	out := make([]Key, Count)
	copy(out, layout[:])
	return out
}

// White returns the indexes of the natural keys in ascending order.
func White() []int {
	out := make([]int, 0, 14)
	for _, k := range layout {
		if !k.Accidental() {
			out = append(out, k.Index)
		}
	}
	return out
}
