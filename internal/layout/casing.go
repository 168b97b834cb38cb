package layout

import (
	"strings"
	"unicode"
)

// CasingStyle describes how a token is cased. It is derived per token and
// never stored; the converter uses it to re-case the mapped lowercase result.
type CasingStyle int

const (
	// CasingNone marks tokens with no letters; casing is skipped entirely so
	// pure punctuation never gets case-escalated.
	CasingNone CasingStyle = iota
	// CasingLower is all lower-case.
	CasingLower
	// CasingUpper is all upper-case.
	CasingUpper
	// CasingTitle is an upper-case first letter with the rest lower-case.
	CasingTitle
	// CasingMixed is any other combination; casing is re-applied per rune.
	CasingMixed
)

// DetectCasing classifies a token by comparing it against its own lower and
// upper forms.
func DetectCasing(token string) CasingStyle {
	if !hasLetter(token) {
		return CasingNone
	}
	lower := strings.ToLower(token)
	upper := strings.ToUpper(token)
	switch {
	case token == lower:
		return CasingLower
	case token == upper:
		return CasingUpper
	case token == titleCase(lower):
		return CasingTitle
	default:
		return CasingMixed
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func titleCase(lower string) string {
	runes := []rune(lower)
	if len(runes) == 0 {
		return lower
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// applyCasing re-cases a mapped lowercase result according to the style of
// the original token. original is the pre-conversion token and is consulted
// only for CasingMixed, where casing is restored position by position.
func applyCasing(mapped string, original string, style CasingStyle) string {
	switch style {
	case CasingNone, CasingLower:
		return mapped
	case CasingUpper:
		// A lone non-letter result keeps its shifted counterpart instead of
		// being uppercased into itself: Cyrillic "Х" must become "{", not "[".
		runes := []rune(mapped)
		if len(runes) == 1 && !unicode.IsLetter(runes[0]) {
			if shifted, ok := shiftedSymbol[runes[0]]; ok {
				return string(shifted)
			}
			return mapped
		}
		return strings.ToUpper(mapped)
	case CasingTitle:
		return titleCase(mapped)
	case CasingMixed:
		orig := []rune(original)
		runes := []rune(mapped)
		for i := range runes {
			if i < len(orig) && unicode.IsUpper(orig[i]) {
				runes[i] = unicode.ToUpper(runes[i])
			}
		}
		return string(runes)
	default:
		return mapped
	}
}
