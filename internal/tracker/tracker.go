// Package tracker maintains the token the user is currently typing.
//
// The tracker consumes discrete key events plus per-event field context and
// applies a fixed-priority rule table:
//  1. external processing mode swallows everything
//  2. interruption keys (navigation, delete, tab, return, escape) clear
//  3. an application focus change clears, then the key is still evaluated
//  4. Command/Control/Alt chords are ignored without touching the buffer
//  5. space completes a long token, or parks a 1-2 character token in a
//     pending state for whole-word analysis that includes the space
//  6. anything else appends the character produced by the physical key in
//     the believed-active layout, subject to the length cap
//
// The buffer is owned by a single event-processing goroutine; the tracker
// itself performs no locking.
package tracker

import (
	"time"
	"unicode"

	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

// MaxTokenLength is the hard cap on the accumulating token. Overflow is
// handled like a space-completed long token.
const MaxTokenLength = 100

// MinCompleteLength is the buffer length at which a space completes the
// token outright instead of parking it for short-word analysis.
const MinCompleteLength = 3

// DefaultFocusGrace is how long after a focus change the secure-field flag
// is disregarded. Accessibility queries issued immediately after a focus
// change report stale data, so the flag is only trusted once it settles.
const DefaultFocusGrace = 300 * time.Millisecond

// KeyEvent is one key-down delivered to the tracker.
type KeyEvent struct {
	// Code is the physical key identifier (evdev keycode).
	Code uint16
	// Shifted reports whether a shift modifier was held.
	Shifted bool
	// Ctrl, Alt and Meta report command-style modifiers. Chords never
	// contribute characters and never clear the buffer.
	Ctrl, Alt, Meta bool
}

// FieldContext describes the input field the event is headed for.
type FieldContext struct {
	// AppID identifies the frontmost application; a change clears the buffer.
	AppID string
	// Blocked marks applications whose input must not be tokenized
	// (canvas-style editors, games).
	Blocked bool
	// Secure marks password-style fields.
	Secure bool
}

// Outcome describes what the tracker did with a key event.
type Outcome int

const (
	// OutcomeIgnored means the event did not affect the buffer.
	OutcomeIgnored Outcome = iota
	// OutcomeCleared means the buffer was reset without completing a token.
	OutcomeCleared
	// OutcomeAccumulated means a character was appended.
	OutcomeAccumulated
	// OutcomeCompleted means a token of three or more characters finished;
	// Result.Token carries it.
	OutcomeCompleted
	// OutcomeShortPending means a 1-2 character token hit a space and awaits
	// whole-word analysis; the buffer is retained until
	// CompletePendingAnalysis is called.
	OutcomeShortPending
)

// Result is the tracker's response to one key event.
type Result struct {
	Outcome Outcome
	// Token is the completed or pending token, set for OutcomeCompleted and
	// OutcomeShortPending.
	Token string
}

// interruptionKeys clear the buffer regardless of its contents.
var interruptionKeys = map[uint16]bool{
	layout.KeyEsc:       true,
	layout.KeyBackspace: true,
	layout.KeyTab:       true,
	layout.KeyEnter:     true,
	layout.KeyHome:      true,
	layout.KeyUp:        true,
	layout.KeyPageUp:    true,
	layout.KeyLeft:      true,
	layout.KeyRight:     true,
	layout.KeyEnd:       true,
	layout.KeyDown:      true,
	layout.KeyPageDown:  true,
	layout.KeyDelete:    true,
}

// Tracker accumulates the currently-typed token.
type Tracker struct {
	buf []rune

	activeLayout layout.Layout
	focusGrace   time.Duration

	processing            bool
	pendingShort          bool
	suppressUntilBoundary bool

	lastAppID      string
	focusChangedAt time.Time

	now func() time.Time // test hook
	log *logging.Logger
}

// New creates a tracker. The believed-active layout starts as Latin and is
// updated by the orchestrator when the system layout switches.
func New(log *logging.Logger) *Tracker {
	return &Tracker{
		activeLayout: layout.Latin,
		focusGrace:   DefaultFocusGrace,
		now:          time.Now,
		log:          log,
	}
}

// Token returns the current buffer contents.
func (t *Tracker) Token() string {
	return string(t.buf)
}

// PendingShort reports whether a short token is parked awaiting whole-word
// analysis.
func (t *Tracker) PendingShort() bool {
	return t.pendingShort
}

// AnalysisSuppressed reports whether live analysis is suppressed because the
// buffer currently holds the output of our own replacement.
func (t *Tracker) AnalysisSuppressed() bool {
	return t.suppressUntilBoundary
}

// SetProcessing toggles the external processing mode. While set, every key
// event is ignored entirely; synthesized keystrokes from our own replacement
// or paste must not be re-tokenized as user input.
func (t *Tracker) SetProcessing(on bool) {
	t.processing = on
}

// SetFocusGrace overrides the secure-field grace period.
func (t *Tracker) SetFocusGrace(d time.Duration) {
	if d >= 0 {
		t.focusGrace = d
	}
}

// SetActiveLayout records which layout the system is believed to have active,
// used to turn physical keys back into characters.
func (t *Tracker) SetActiveLayout(l layout.Layout) {
	t.activeLayout = l
}

// ActiveLayout returns the believed-active layout.
func (t *Tracker) ActiveLayout() layout.Layout {
	return t.activeLayout
}

// ForceReset clears the buffer unconditionally.
func (t *Tracker) ForceReset(reason string) {
	if len(t.buf) > 0 || t.pendingShort {
		t.log.Debug("token reset", "reason", reason)
	}
	t.clear()
}

// SetReplacedToken seeds the buffer with the text our own replacement just
// typed and suppresses analysis until the next word boundary, so the system
// does not re-analyze its own output.
func (t *Tracker) SetReplacedToken(newText string) {
	t.buf = append(t.buf[:0], []rune(newText)...)
	t.pendingShort = false
	t.suppressUntilBoundary = true
}

// CompletePendingAnalysis closes the short-token pending state opened by a
// space on a 1-2 character buffer. The consumer calls it whether or not the
// analysis led to a replacement.
func (t *Tracker) CompletePendingAnalysis() {
	if t.pendingShort {
		t.clear()
	}
}

// HandleKey runs one key event through the rule table.
func (t *Tracker) HandleKey(ev KeyEvent, ctx FieldContext) Result {
	// Rule 1: external processing swallows everything.
	if t.processing {
		return Result{Outcome: OutcomeIgnored}
	}

	// Rule 2: interruption keys clear regardless of buffer contents.
	if interruptionKeys[ev.Code] {
		t.ForceReset("interruption key")
		return Result{Outcome: OutcomeCleared}
	}

	// Rule 3: a focus change clears the buffer but does not consume the key.
	if ctx.AppID != t.lastAppID {
		if t.lastAppID != "" {
			t.ForceReset("focus change")
		}
		t.lastAppID = ctx.AppID
		t.focusChangedAt = t.now()
	}

	// Rule 4: command chords neither accumulate nor clear.
	if ev.Ctrl || ev.Alt || ev.Meta {
		return Result{Outcome: OutcomeIgnored}
	}

	// Rule 5: the word separator.
	if ev.Code == layout.KeySpace {
		return t.handleSpace()
	}

	// Rule 6: append when the context allows tokenization.
	if ctx.Blocked {
		return Result{Outcome: OutcomeIgnored}
	}
	if ctx.Secure && t.now().Sub(t.focusChangedAt) > t.focusGrace {
		return Result{Outcome: OutcomeIgnored}
	}

	r, ok := layout.CharForKey(ev.Code, t.activeLayout, ev.Shifted)
	if !ok {
		// Characterless key outside the interruption set (function keys
		// and similar): nothing to accumulate.
		return Result{Outcome: OutcomeIgnored}
	}
	if isBoundaryChar(r) {
		t.ForceReset("word boundary")
		return Result{Outcome: OutcomeCleared}
	}

	t.buf = append(t.buf, r)
	if len(t.buf) >= MaxTokenLength {
		token := string(t.buf)
		t.clear()
		return Result{Outcome: OutcomeCompleted, Token: token}
	}
	return Result{Outcome: OutcomeAccumulated}
}

// handleSpace completes long tokens immediately and parks short ones.
func (t *Tracker) handleSpace() Result {
	switch {
	case len(t.buf) >= MinCompleteLength:
		token := string(t.buf)
		suppressed := t.suppressUntilBoundary
		t.clear()
		if suppressed {
			return Result{Outcome: OutcomeCleared}
		}
		return Result{Outcome: OutcomeCompleted, Token: token}
	case len(t.buf) > 0:
		if t.suppressUntilBoundary {
			t.clear()
			return Result{Outcome: OutcomeCleared}
		}
		t.pendingShort = true
		return Result{Outcome: OutcomeShortPending, Token: string(t.buf)}
	default:
		return Result{Outcome: OutcomeIgnored}
	}
}

func (t *Tracker) clear() {
	t.buf = t.buf[:0]
	t.pendingShort = false
	t.suppressUntilBoundary = false
}

// isBoundaryChar reports whether a typed character ends the current token.
// Punctuation is a word boundary; digits accumulate (they simply never match
// a dictionary entry, so mixed tokens classify as Neither downstream).
func isBoundaryChar(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
