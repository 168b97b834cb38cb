package layout

import "unicode"

// Physical key identifiers use Linux evdev keycodes. The table below encodes
// key position, not the OS's active layout, so a token can be reconstructed
// from physical presses even when the system layout disagrees with what the
// user believed was active.
const (
	KeyEsc       = 1
	KeyBackspace = 14
	KeyTab       = 15
	KeyEnter     = 28
	KeyLeftCtrl  = 29
	KeyLeftShift = 42
	KeyRightShift = 54
	KeyLeftAlt   = 56
	KeySpace     = 57
	KeyHome      = 102
	KeyUp        = 103
	KeyPageUp    = 104
	KeyLeft      = 105
	KeyRight     = 106
	KeyEnd       = 107
	KeyDown      = 108
	KeyPageDown  = 109
	KeyDelete    = 111
	KeyLeftMeta  = 125
	KeyRightMeta = 126
)

// keyChars maps an evdev keycode to its unshifted character in each layout,
// index 0 Latin, index 1 Cyrillic.
var keyChars = map[uint16][2]rune{
	// Number row.
	2: {'1', '1'}, 3: {'2', '2'}, 4: {'3', '3'}, 5: {'4', '4'}, 6: {'5', '5'},
	7: {'6', '6'}, 8: {'7', '7'}, 9: {'8', '8'}, 10: {'9', '9'}, 11: {'0', '0'},
	12: {'-', '-'}, 13: {'=', '='},
	// Top letter row.
	16: {'q', 'й'}, 17: {'w', 'ц'}, 18: {'e', 'у'}, 19: {'r', 'к'}, 20: {'t', 'е'},
	21: {'y', 'н'}, 22: {'u', 'г'}, 23: {'i', 'ш'}, 24: {'o', 'щ'}, 25: {'p', 'з'},
	26: {'[', 'х'}, 27: {']', 'ъ'},
	// Home row.
	30: {'a', 'ф'}, 31: {'s', 'ы'}, 32: {'d', 'в'}, 33: {'f', 'а'}, 34: {'g', 'п'},
	35: {'h', 'р'}, 36: {'j', 'о'}, 37: {'k', 'л'}, 38: {'l', 'д'},
	39: {';', 'ж'}, 40: {'\'', 'э'}, 41: {'`', 'ё'},
	// Bottom row.
	44: {'z', 'я'}, 45: {'x', 'ч'}, 46: {'c', 'с'}, 47: {'v', 'м'}, 48: {'b', 'и'},
	49: {'n', 'т'}, 50: {'m', 'ь'},
	51: {',', 'б'}, 52: {'.', 'ю'}, 53: {'/', '.'},
}

// latinShifted covers Latin punctuation whose shifted form is not a simple
// uppercase letter. Cyrillic punctuation keys all carry letters except the
// slash key, handled below.
var latinShifted = map[rune]rune{
	'1': '!', '2': '@', '3': '#', '4': '$', '5': '%',
	'6': '^', '7': '&', '8': '*', '9': '(', '0': ')',
	'-': '_', '=': '+',
	'[': '{', ']': '}', ';': ':', '\'': '"', '`': '~',
	',': '<', '.': '>', '/': '?',
}

var cyrillicShifted = map[rune]rune{
	'1': '!', '2': '"', '3': '№', '4': ';', '5': '%',
	'6': ':', '7': '?', '8': '*', '9': '(', '0': ')',
	'-': '_', '=': '+',
	'.': ',',
}

// keyStroke is a physical press: a keycode plus whether shift is held.
type keyStroke struct {
	Code    uint16
	Shifted bool
}

var reverseKeyChars [2]map[rune]keyStroke

func init() {
	for i := range reverseKeyChars {
		reverseKeyChars[i] = make(map[rune]keyStroke, 2*len(keyChars))
	}
	for code := range keyChars {
		for _, l := range []Layout{Latin, Cyrillic} {
			for _, shifted := range []bool{false, true} {
				r, ok := CharForKey(code, l, shifted)
				if !ok {
					continue
				}
				if _, exists := reverseKeyChars[l][r]; !exists {
					reverseKeyChars[l][r] = keyStroke{Code: code, Shifted: shifted}
				}
			}
		}
	}
}

// KeyForChar returns the physical press that produces the character in the
// given layout. The last return is false when no key produces it.
func KeyForChar(r rune, l Layout) (code uint16, shifted bool, ok bool) {
	ks, ok := reverseKeyChars[l][r]
	return ks.Code, ks.Shifted, ok
}

// CharForKey returns the character produced by a physical key in the given
// layout, independent of the OS's currently active layout. The second return
// is false for keys with no character (modifiers, navigation, function keys).
func CharForKey(code uint16, l Layout, shifted bool) (rune, bool) {
	chars, ok := keyChars[code]
	if !ok {
		return 0, false
	}
	r := chars[0]
	if l == Cyrillic {
		r = chars[1]
	}
	if !shifted {
		return r, true
	}
	if unicode.IsLetter(r) {
		return unicode.ToUpper(r), true
	}
	table := latinShifted
	if l == Cyrillic {
		table = cyrillicShifted
	}
	if s, ok := table[r]; ok {
		return s, true
	}
	return r, true
}
