// Package input abstracts the platform facilities the corrector drives:
// observing physical key events, synthesizing keystrokes, the clipboard, the
// system layout switcher, and the frontmost-field oracle.
//
// Platform support:
// - Linux: /dev/input/event* for observation (requires input group or root),
//   /dev/uinput for synthesis, D-Bus for layout switching and focus,
//   xclip/xsel/wl-paste for the clipboard.
// - Other platforms: not available; Simulated* implementations cover tests.
package input

import (
	"context"
	"errors"
	"time"

	"github.com/sergeivaskov/punto/internal/layout"
)

// ErrNotAvailable is returned when a facility is missing on this platform.
var ErrNotAvailable = errors.New("input facility not available on this platform")

// ErrPermissionDenied is returned when permissions are insufficient.
var ErrPermissionDenied = errors.New("insufficient permissions for input access")

// ErrAlreadyRunning is returned when Start is called while already running.
var ErrAlreadyRunning = errors.New("key source already running")

// KeyEvent is one key transition observed on the physical keyboard. Both
// presses and releases are delivered; modifier keys are delivered as their
// own events in addition to being folded into the state flags, because
// isolated-modifier hotkeys need to see them.
type KeyEvent struct {
	// Code is the evdev keycode.
	Code uint16
	// Down is true for a press or auto-repeat, false for a release.
	Down bool
	// Modifier is true when the key itself is a modifier (shift, ctrl,
	// alt, meta).
	Modifier bool
	// Shifted, Ctrl, Alt and Meta report the modifier state at event time,
	// including this event's own effect.
	Shifted bool
	Ctrl    bool
	Alt     bool
	Meta    bool
	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// KeySource delivers physical key events.
type KeySource interface {
	// Start begins delivering events. The source stops when ctx is done.
	Start(ctx context.Context) error

	// Stop stops delivery and closes the event channel.
	Stop() error

	// Events returns the event channel. Events arriving while the consumer
	// is busy are buffered; the channel is closed on Stop.
	Events() <-chan KeyEvent

	// Available reports whether key observation works on this platform with
	// current permissions, with a description either way.
	Available() (bool, string)
}

// Typist synthesizes keystrokes into the focused application. Synthesized
// events re-enter the KeySource like any other press, so callers must mask
// them out for the duration of a call.
type Typist interface {
	// Backspace presses backspace n times.
	Backspace(ctx context.Context, n int) error

	// TypeText types the text assuming the given layout is active. Characters
	// no physical key produces under that layout are skipped.
	TypeText(ctx context.Context, text string, active layout.Layout) error

	// Copy presses the copy chord (Ctrl+C or the platform equivalent).
	Copy(ctx context.Context) error

	// Paste presses the paste chord.
	Paste(ctx context.Context) error
}

// Clipboard reads and writes the system text clipboard.
type Clipboard interface {
	// Text returns the current clipboard text, empty when the clipboard
	// holds no text.
	Text(ctx context.Context) (string, error)

	// SetText replaces the clipboard content.
	SetText(ctx context.Context, text string) error
}

// LayoutSwitcher observes and changes the system keyboard layout.
type LayoutSwitcher interface {
	// Current returns the active system layout.
	Current(ctx context.Context) (layout.Layout, error)

	// Activate switches the system to the given layout. Best effort: the
	// caller proceeds regardless of failure.
	Activate(ctx context.Context, l layout.Layout) error
}

// Field describes the input field believed to have focus.
type Field struct {
	// AppID identifies the frontmost application.
	AppID string
	// Secure marks password-style fields, where detectable.
	Secure bool
}

// FieldOracle reports which field the next keystroke is headed for.
type FieldOracle interface {
	// Frontmost returns the focused field. Implementations that cannot
	// detect secure fields report Secure as false.
	Frontmost(ctx context.Context) (Field, error)
}
