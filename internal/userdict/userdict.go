// Package userdict persists the user's personal vocabulary and the
// never-correct exclusion list in a local SQLite database.
//
// Personal words are merged into the dictionary index at startup and after
// every reload, so they participate in prefix analysis like built-in words.
// The exclusion list is mirrored in memory because the replacer consults it
// on the hot path.
package userdict

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sergeivaskov/punto/internal/dictionary"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_words (
    word      TEXT NOT NULL,
    language  TEXT NOT NULL CHECK (language IN ('latin', 'cyrillic')),
    added_at  INTEGER NOT NULL,
    PRIMARY KEY (word, language)
);

CREATE TABLE IF NOT EXISTS exclusions (
    token     TEXT PRIMARY KEY,
    added_at  INTEGER NOT NULL
);
`

// ErrInvalidWord is returned for entries that are not a single word.
var ErrInvalidWord = errors.New("user dictionary entries must be single words of letters")

// Entry is one personal word.
type Entry struct {
	Word     string
	Language layout.Layout
}

// Store is the user dictionary database.
type Store struct {
	db  *sql.DB
	log *logging.Logger

	mu       sync.RWMutex
	excluded map[string]bool
}

// Open opens or creates the database at path and loads the exclusion list.
func Open(path string, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, log: log, excluded: make(map[string]bool)}
	if err := s.loadExclusions(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) loadExclusions() error {
	rows, err := s.db.Query(`SELECT token FROM exclusions`)
	if err != nil {
		return fmt.Errorf("load exclusions: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return fmt.Errorf("scan exclusion: %w", err)
		}
		s.excluded[token] = true
	}
	return rows.Err()
}

// normalizeWord lowercases and validates a dictionary entry.
func normalizeWord(word string) (string, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return "", ErrInvalidWord
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return "", ErrInvalidWord
		}
	}
	return word, nil
}

func languageKey(l layout.Layout) string {
	if l == layout.Cyrillic {
		return "cyrillic"
	}
	return "latin"
}

// AddWord stores a personal word. Adding an existing word is a no-op.
func (s *Store) AddWord(word string, language layout.Layout) error {
	word, err := normalizeWord(word)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO user_words (word, language, added_at) VALUES (?, ?, ?)`,
		word, languageKey(language), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert user word: %w", err)
	}
	s.log.Info("user word added", "word", word, "language", language)
	return nil
}

// RemoveWord deletes a personal word. Removing an unknown word is a no-op.
func (s *Store) RemoveWord(word string, language layout.Layout) error {
	word, err := normalizeWord(word)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		DELETE FROM user_words WHERE word = ? AND language = ?`,
		word, languageKey(language)); err != nil {
		return fmt.Errorf("delete user word: %w", err)
	}
	return nil
}

// Words returns every personal word.
func (s *Store) Words() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT word, language FROM user_words ORDER BY word`)
	if err != nil {
		return nil, fmt.Errorf("query user words: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var word, lang string
		if err := rows.Scan(&word, &lang); err != nil {
			return nil, fmt.Errorf("scan user word: %w", err)
		}
		e := Entry{Word: word, Language: layout.Latin}
		if lang == "cyrillic" {
			e.Language = layout.Cyrillic
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MergeInto inserts every personal word into the index. Called after each
// word-list load, since loading rebuilds the tries.
func (s *Store) MergeInto(ix *dictionary.Index) error {
	entries, err := s.Words()
	if err != nil {
		return err
	}
	merged := 0
	for _, e := range entries {
		if ix.AddWord(e.Word, e.Language) {
			merged++
		}
	}
	if merged > 0 {
		s.log.Info("user words merged into index", "count", merged)
	}
	return nil
}

// Exclude marks a token as never-correct. Both the token as typed and its
// converted form are checked against this list by the replacer.
func (s *Store) Exclude(token string) error {
	token, err := normalizeWord(token)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO exclusions (token, added_at) VALUES (?, ?)`,
		token, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert exclusion: %w", err)
	}
	s.mu.Lock()
	s.excluded[token] = true
	s.mu.Unlock()
	s.log.Info("token excluded from correction", "token", token)
	return nil
}

// Unexclude removes a token from the exclusion list.
func (s *Store) Unexclude(token string) error {
	token, err := normalizeWord(token)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM exclusions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete exclusion: %w", err)
	}
	s.mu.Lock()
	delete(s.excluded, token)
	s.mu.Unlock()
	return nil
}

// Exclusions returns the exclusion list.
func (s *Store) Exclusions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.excluded))
	for token := range s.excluded {
		out = append(out, token)
	}
	return out
}

// IsExcluded reports whether the token is on the exclusion list. Safe for
// concurrent use; this is the replacer's ExcludeFunc.
func (s *Store) IsExcluded(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.excluded[strings.ToLower(token)]
}
