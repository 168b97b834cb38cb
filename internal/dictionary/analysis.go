package dictionary

import (
	"fmt"
	"unicode/utf8"

	"github.com/sergeivaskov/punto/internal/layout"
)

// Analysis classifies a string against both language tries.
type Analysis int

const (
	// TooShort means the string is below the minimum length for the query,
	// or the index has not finished loading.
	TooShort Analysis = iota
	// LatinOnly means the string matched only the Latin-language trie.
	LatinOnly
	// CyrillicOnly means the string matched only the Cyrillic-language trie.
	CyrillicOnly
	// Both means the string matched in both languages.
	Both
	// Neither means the string matched in neither language.
	Neither
)

func (a Analysis) String() string {
	switch a {
	case TooShort:
		return "too-short"
	case LatinOnly:
		return "latin-only"
	case CyrillicOnly:
		return "cyrillic-only"
	case Both:
		return "both"
	case Neither:
		return "neither"
	default:
		return fmt.Sprintf("analysis(%d)", int(a))
	}
}

// classify maps the (latin, cyrillic) boolean pair to its Analysis variant.
// The pair is a pure truth table; no tie-breaking is involved.
func classify(latin, cyrillic bool) Analysis {
	switch {
	case latin && cyrillic:
		return Both
	case latin:
		return LatinOnly
	case cyrillic:
		return CyrillicOnly
	default:
		return Neither
	}
}

// AnalyzePrefix classifies a partial token against both tries. Tokens
// shorter than MinPrefixLength (and anything before load completes) are
// TooShort: too little signal to act on mid-word.
func (ix *Index) AnalyzePrefix(prefix string) Analysis {
	if !ix.Loaded() || utf8.RuneCountInString(prefix) < MinPrefixLength {
		return TooShort
	}
	return classify(
		ix.HasPrefix(prefix, layout.Latin),
		ix.HasPrefix(prefix, layout.Cyrillic),
	)
}

// AnalyzeWord classifies a completed token as a whole word against both
// tries. Unlike prefix analysis there is no minimum length beyond non-empty,
// so one- and two-letter words are decidable at a word boundary.
func (ix *Index) AnalyzeWord(word string) Analysis {
	if !ix.Loaded() || word == "" {
		return TooShort
	}
	return classify(
		ix.IsWord(word, layout.Latin),
		ix.IsWord(word, layout.Cyrillic),
	)
}
