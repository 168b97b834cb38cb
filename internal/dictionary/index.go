// Package dictionary provides the two-language word index consulted by the
// correction engine.
//
// The index owns one prefix tree per language, built once from newline-
// delimited word lists. Key properties:
//   - both tries build concurrently; the index reports loaded only after
//     both attempts finish
//   - a missing or unreadable word list leaves that language's trie empty
//     and degrades lookups to "not found", never to an error
//   - every lookup before load completion returns a deterministic negative
//     so the keystroke path never blocks on dictionary construction
package dictionary

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

// MinPrefixLength is the minimum token length for live prefix analysis.
// Shorter tokens classify as TooShort and are only re-examined as complete
// words at a word boundary.
const MinPrefixLength = 3

// Index answers prefix and whole-word membership queries for both languages.
type Index struct {
	mu       sync.RWMutex
	latin    *trie
	cyrillic *trie
	loaded   atomic.Bool

	log *logging.Logger
}

// New creates an empty, unloaded index.
func New(log *logging.Logger) *Index {
	return &Index{
		latin:    newTrie(),
		cyrillic: newTrie(),
		log:      log,
	}
}

// Load builds both tries from the given word-list paths. The two lists load
// concurrently and independently; a failed list is logged and left empty.
// Load blocks until both attempts complete and then marks the index loaded.
func (ix *Index) Load(latinPath, cyrillicPath string) {
	var wg sync.WaitGroup
	results := make([]*trie, 2)
	for i, job := range []struct {
		path string
		lang layout.Layout
	}{
		{latinPath, layout.Latin},
		{cyrillicPath, layout.Cyrillic},
	} {
		i, job := i, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, n, err := buildTrie(job.path)
			if err != nil {
				ix.log.Warn("word list unavailable, language degraded",
					"language", job.lang.String(), "path", job.path, "error", err)
				t = newTrie()
			} else {
				ix.log.Info("word list loaded",
					"language", job.lang.String(), "path", job.path, "words", t.words, "rejected", n)
			}
			results[i] = t
		}()
	}
	wg.Wait()

	ix.mu.Lock()
	ix.latin = results[0]
	ix.cyrillic = results[1]
	ix.mu.Unlock()
	ix.loaded.Store(true)
}

// LoadAsync runs Load on its own goroutine and invokes done (if non-nil)
// after the index is marked loaded.
func (ix *Index) LoadAsync(latinPath, cyrillicPath string, done func()) {
	go func() {
		ix.Load(latinPath, cyrillicPath)
		if done != nil {
			done()
		}
	}()
}

// buildTrie reads a word list, one word per line, lower-casing each entry
// and rejecting any line containing non-letter characters. Returns the trie
// and the number of rejected lines.
func buildTrie(path string) (*trie, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	t := newTrie()
	rejected := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" {
			continue
		}
		if !lettersOnly(word) {
			rejected++
			continue
		}
		t.insert(word)
	}
	if err := scanner.Err(); err != nil {
		return nil, rejected, err
	}
	return t, rejected, nil
}

func lettersOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Loaded reports whether both build attempts have completed.
func (ix *Index) Loaded() bool {
	return ix.loaded.Load()
}

// WordCount returns the number of words indexed for a language.
func (ix *Index) WordCount(lang layout.Layout) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.forLanguage(lang).words
}

func (ix *Index) forLanguage(lang layout.Layout) *trie {
	if lang == layout.Latin {
		return ix.latin
	}
	return ix.cyrillic
}

// HasPrefix reports whether any indexed word of the language starts with the
// prefix. Always false before the index is loaded.
func (ix *Index) HasPrefix(prefix string, lang layout.Layout) bool {
	if !ix.loaded.Load() {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.forLanguage(lang).hasPrefix(strings.ToLower(prefix))
}

// IsWord reports whether the string is a complete indexed word of the
// language. Always false before the index is loaded.
func (ix *Index) IsWord(word string, lang layout.Layout) bool {
	if !ix.loaded.Load() {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.forLanguage(lang).hasWord(strings.ToLower(word))
}

// AddWord inserts a single word into a language's trie at runtime. Used to
// merge the user dictionary after load; words with non-letter characters are
// rejected the same way list lines are.
func (ix *Index) AddWord(word string, lang layout.Layout) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || !lettersOnly(word) {
		return false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.forLanguage(lang).insert(word)
	return true
}
