package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

func writeWordList(t *testing.T, dir, name string, words ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, w := range words {
		content += w + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func loadTestIndex(t *testing.T, latinWords, cyrillicWords []string) *Index {
	t.Helper()
	dir := t.TempDir()
	latinPath := writeWordList(t, dir, "en.txt", latinWords...)
	cyrillicPath := writeWordList(t, dir, "ru.txt", cyrillicWords...)
	ix := New(logging.Default())
	ix.Load(latinPath, cyrillicPath)
	return ix
}

func TestTrieCorrectness(t *testing.T) {
	ix := loadTestIndex(t, []string{"cat", "car", "cap"}, nil)

	assert.True(t, ix.HasPrefix("ca", layout.Latin))
	assert.False(t, ix.IsWord("ca", layout.Latin))
	assert.True(t, ix.IsWord("cat", layout.Latin))
	assert.False(t, ix.HasPrefix("do", layout.Latin))
	assert.True(t, ix.HasPrefix("cat", layout.Latin))
	assert.False(t, ix.HasPrefix("catt", layout.Latin))
}

func TestLoadNormalizesAndRejects(t *testing.T) {
	ix := loadTestIndex(t,
		[]string{"  Hello ", "WORLD", "don't", "two words", "", "x1"},
		[]string{"Привет"},
	)

	assert.True(t, ix.IsWord("hello", layout.Latin))
	assert.True(t, ix.IsWord("world", layout.Latin))
	assert.True(t, ix.IsWord("привет", layout.Cyrillic))
	// Lines with non-letter characters are rejected at load time.
	assert.False(t, ix.IsWord("don't", layout.Latin))
	assert.False(t, ix.IsWord("x1", layout.Latin))
	assert.Equal(t, 2, ix.WordCount(layout.Latin))
}

func TestLookupsCaseInsensitive(t *testing.T) {
	ix := loadTestIndex(t, []string{"hello"}, nil)

	assert.True(t, ix.IsWord("Hello", layout.Latin))
	assert.True(t, ix.IsWord("HELLO", layout.Latin))
	assert.True(t, ix.HasPrefix("HeL", layout.Latin))
}

func TestUnloadedIndexReportsNegative(t *testing.T) {
	ix := New(logging.Default())

	assert.False(t, ix.Loaded())
	assert.False(t, ix.HasPrefix("cat", layout.Latin))
	assert.False(t, ix.IsWord("cat", layout.Latin))
	assert.Equal(t, TooShort, ix.AnalyzePrefix("catalog"))
	assert.Equal(t, TooShort, ix.AnalyzeWord("cat"))
}

func TestMissingWordListDegradesLanguage(t *testing.T) {
	dir := t.TempDir()
	latinPath := writeWordList(t, dir, "en.txt", "hello")

	ix := New(logging.Default())
	ix.Load(latinPath, filepath.Join(dir, "missing.txt"))

	require.True(t, ix.Loaded())
	assert.True(t, ix.IsWord("hello", layout.Latin))
	assert.False(t, ix.IsWord("привет", layout.Cyrillic))
	assert.Equal(t, 0, ix.WordCount(layout.Cyrillic))
}

// TestClassificationTruthTable checks every (latin, cyrillic) combination
// for both the prefix and whole-word analyses.
func TestClassificationTruthTable(t *testing.T) {
	ix := loadTestIndex(t,
		[]string{"hello", "map"}, // "map" converts ambiguously on purpose
		[]string{"привет", "мфз"},
	)
	// Force an ambiguous entry: a string indexed in both languages.
	require.True(t, ix.AddWord("common", layout.Latin))
	require.True(t, ix.AddWord("common", layout.Cyrillic))

	prefixTests := []struct {
		prefix string
		want   Analysis
	}{
		{"hel", LatinOnly},
		{"при", CyrillicOnly},
		{"com", Both},
		{"zzz", Neither},
		{"he", TooShort},
		{"", TooShort},
	}
	for _, tt := range prefixTests {
		assert.Equal(t, tt.want, ix.AnalyzePrefix(tt.prefix), "AnalyzePrefix(%q)", tt.prefix)
	}

	wordTests := []struct {
		word string
		want Analysis
	}{
		{"hello", LatinOnly},
		{"привет", CyrillicOnly},
		{"common", Both},
		{"zzz", Neither},
		{"hel", Neither}, // prefixes are not words
		{"", TooShort},
	}
	for _, tt := range wordTests {
		assert.Equal(t, tt.want, ix.AnalyzeWord(tt.word), "AnalyzeWord(%q)", tt.word)
	}
}

func TestAddWord(t *testing.T) {
	ix := loadTestIndex(t, []string{"hello"}, nil)

	assert.True(t, ix.AddWord("Goodbye", layout.Latin))
	assert.True(t, ix.IsWord("goodbye", layout.Latin))
	assert.False(t, ix.AddWord("not a word", layout.Latin))
	assert.False(t, ix.AddWord("", layout.Latin))
}

func TestLoadAsync(t *testing.T) {
	dir := t.TempDir()
	latinPath := writeWordList(t, dir, "en.txt", "hello")
	cyrillicPath := writeWordList(t, dir, "ru.txt", "привет")

	ix := New(logging.Default())
	done := make(chan struct{})
	ix.LoadAsync(latinPath, cyrillicPath, func() { close(done) })
	<-done

	assert.True(t, ix.Loaded())
	assert.True(t, ix.IsWord("hello", layout.Latin))
}
