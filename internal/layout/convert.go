package layout

import (
	"strings"
	"unicode"
)

// Converter performs layout conversions over a positional mapping.
// It carries no mutable state and is safe for concurrent use.
type Converter struct {
	mapping *Mapping
}

// NewConverter creates a converter over the given mapping.
func NewConverter(m *Mapping) *Converter {
	return &Converter{mapping: m}
}

// Mapping returns the underlying positional mapping.
func (c *Converter) Mapping() *Mapping {
	return c.mapping
}

// ConvertToken converts a single token between layouts, preserving its
// casing style. The token is lowered, mapped character by character, then
// re-cased. Converting to the same layout is a no-op.
func (c *Converter) ConvertToken(token string, from, to Layout) string {
	if from == to || token == "" {
		return token
	}
	style := DetectCasing(token)
	lower := strings.ToLower(token)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		b.WriteRune(c.mapping.Map(r, from, to))
	}
	return applyCasing(b.String(), token, style)
}

// ConvertText converts arbitrary text between layouts. Maximal runs of
// letters are converted as tokens so their casing survives; every other
// character is mapped individually through the positional table with no
// casing logic, so punctuation and shifted symbols convert too.
func (c *Converter) ConvertText(text string, from, to Layout) string {
	if from == to || text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	var word []rune
	flush := func() {
		if len(word) > 0 {
			b.WriteString(c.ConvertToken(string(word), from, to))
			word = word[:0]
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(c.mapping.Map(r, from, to))
	}
	flush()
	return b.String()
}

// DetectPredominantLayout guesses which layout a block of text was typed in
// by counting characters attributable to each side of the mapping. Letters
// are checked case-insensitively; everything else by literal table presence.
// Ties resolve to Cyrillic: on ambiguous input the non-Latin layout is the
// deliberate default.
func (c *Converter) DetectPredominantLayout(text string) Layout {
	var latin, cyrillic int
	for _, r := range text {
		probe := r
		if unicode.IsLetter(r) {
			probe = unicode.ToLower(r)
		}
		if c.mapping.Has(probe, Latin) {
			latin++
		}
		if c.mapping.Has(probe, Cyrillic) {
			cyrillic++
		}
	}
	if latin > cyrillic {
		return Latin
	}
	return Cyrillic
}

// ConvertToOpposite detects the predominant layout of the text and converts
// the whole text to the other one.
func (c *Converter) ConvertToOpposite(text string) string {
	from := c.DetectPredominantLayout(text)
	return c.ConvertText(text, from, from.Opposite())
}
