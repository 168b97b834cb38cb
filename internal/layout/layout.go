// Package layout implements positional keyboard-layout conversion between
// Latin QWERTY and Cyrillic JCUKEN.
//
// The mapping is positional: it pairs characters that live on the same
// physical key, independent of which layout the OS had active when the key
// was pressed. Features:
//   - bit-exact character remapping with a construction-time involution check
//   - casing-style detection and preservation (lower, upper, title, mixed)
//   - predominant-layout detection for whole-text conversion
//   - physical keycode to character extraction per layout
//
// Unmapped characters always pass through unchanged; no operation here can
// fail on user input.
package layout

import "fmt"

// Layout identifies one of the two supported keyboard layouts.
type Layout int

const (
	// Latin is the US QWERTY layout.
	Latin Layout = iota
	// Cyrillic is the Russian JCUKEN layout.
	Cyrillic
)

// String returns a human-readable layout name.
func (l Layout) String() string {
	switch l {
	case Latin:
		return "latin"
	case Cyrillic:
		return "cyrillic"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Opposite returns the other layout.
func (l Layout) Opposite() Layout {
	if l == Latin {
		return Cyrillic
	}
	return Latin
}

// ParseLayout parses a layout name as used in config files and IPC payloads.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "latin", "qwerty", "en":
		return Latin, nil
	case "cyrillic", "jcuken", "ru":
		return Cyrillic, nil
	default:
		return Latin, fmt.Errorf("unknown layout %q", s)
	}
}

// latinToCyrillic pairs each Latin-layout character with the Cyrillic-layout
// character on the same physical key. Lowercase letters only; uppercase is
// handled by the casing logic. Shifted punctuation is listed explicitly
// because the two layouts disagree about which symbols are shifted.
var latinToCyrillic = map[rune]rune{
	// Top letter row.
	'q': 'й', 'w': 'ц', 'e': 'у', 'r': 'к', 't': 'е',
	'y': 'н', 'u': 'г', 'i': 'ш', 'o': 'щ', 'p': 'з',
	'[': 'х', ']': 'ъ', '{': 'Х', '}': 'Ъ',
	// Home row.
	'a': 'ф', 's': 'ы', 'd': 'в', 'f': 'а', 'g': 'п',
	'h': 'р', 'j': 'о', 'k': 'л', 'l': 'д',
	';': 'ж', '\'': 'э', ':': 'Ж', '"': 'Э',
	// Bottom row.
	'z': 'я', 'x': 'ч', 'c': 'с', 'v': 'м', 'b': 'и',
	'n': 'т', 'm': 'ь',
	',': 'б', '.': 'ю', '<': 'Б', '>': 'Ю',
	'/': '.', '?': ',',
	// Backtick key.
	'`': 'ё', '~': 'Ё',
	// Number row shifted symbols that differ between the layouts.
	// (! % * ( ) occupy the same positions in both and stay unmapped.)
	'@': '"', '#': '№', '$': ';', '^': ':', '&': '?',
}

// shiftedSymbol maps an unshifted punctuation character to its shifted
// counterpart on the same Latin key. Used when re-casing a fully upper-case
// source token whose converted form is a lone non-letter symbol.
var shiftedSymbol = map[rune]rune{
	'[':  '{',
	']':  '}',
	';':  ':',
	'\'': '"',
	',':  '<',
	'.':  '>',
	'`':  '~',
}

// Mapping holds the positional tables for one layout pair.
// It is immutable after construction and safe for concurrent use.
type Mapping struct {
	forward map[rune]rune // Latin-layout char -> Cyrillic-layout char
	reverse map[rune]rune // Cyrillic-layout char -> Latin-layout char
}

// NewMapping builds the built-in QWERTY/JCUKEN mapping. The reverse table is
// derived from the forward table and both are checked for the involution
// invariant; a violation means the table literal itself is broken, so it is
// reported as an error rather than silently producing asymmetric conversions.
func NewMapping() (*Mapping, error) {
	return newMapping(latinToCyrillic)
}

func newMapping(forward map[rune]rune) (*Mapping, error) {
	m := &Mapping{
		forward: make(map[rune]rune, len(forward)),
		reverse: make(map[rune]rune, len(forward)),
	}
	for from, to := range forward {
		m.forward[from] = to
		if prev, dup := m.reverse[to]; dup {
			return nil, fmt.Errorf("layout: %q maps to %q which is already mapped from %q", from, to, prev)
		}
		m.reverse[to] = from
	}
	if err := m.checkInvolution(); err != nil {
		return nil, err
	}
	return m, nil
}

// checkInvolution verifies that converting any mapped character forward and
// back reproduces the original. This class of asymmetric-table bug has bitten
// hand-maintained bidirectional tables before, so it is asserted on every
// construction, including custom user tables.
func (m *Mapping) checkInvolution() error {
	for from, to := range m.forward {
		if back, ok := m.reverse[to]; !ok || back != from {
			return fmt.Errorf("layout: involution broken for %q -> %q -> %q", from, to, back)
		}
	}
	for from, to := range m.reverse {
		if back, ok := m.forward[to]; !ok || back != from {
			return fmt.Errorf("layout: involution broken for %q -> %q -> %q", from, to, back)
		}
	}
	return nil
}

// Map converts a single character from one layout to the other.
// Unmapped characters are returned unchanged.
func (m *Mapping) Map(r rune, from, to Layout) rune {
	if from == to {
		return r
	}
	table := m.forward
	if from == Cyrillic {
		table = m.reverse
	}
	if mapped, ok := table[r]; ok {
		return mapped
	}
	return r
}

// Has reports whether the character is a defined key in the given layout's
// direction of the table.
func (m *Mapping) Has(r rune, in Layout) bool {
	if in == Latin {
		_, ok := m.forward[r]
		return ok
	}
	_, ok := m.reverse[r]
	return ok
}
