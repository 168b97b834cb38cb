package input

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sergeivaskov/punto/internal/layout"
)

// SimulatedKeySource is a key source for testing that doesn't hook the real
// keyboard. Events are injected with Press.
type SimulatedKeySource struct {
	mu      sync.Mutex
	ch      chan KeyEvent
	running bool
}

// NewSimulatedKeySource creates a key source for testing.
func NewSimulatedKeySource() *SimulatedKeySource {
	return &SimulatedKeySource{ch: make(chan KeyEvent, 64)}
}

// Start begins the simulated source.
func (s *SimulatedKeySource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	return nil
}

// Stop stops the simulated source and closes the event channel.
func (s *SimulatedKeySource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.ch)
	return nil
}

// Events returns the event channel.
func (s *SimulatedKeySource) Events() <-chan KeyEvent {
	return s.ch
}

// Available returns true (simulated is always available).
func (s *SimulatedKeySource) Available() (bool, string) {
	return true, "simulated key source (for testing)"
}

// Press injects one key-down event.
func (s *SimulatedKeySource) Press(ev KeyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.ch <- ev
}

// PressKey injects a plain unmodified key-down for the given code.
func (s *SimulatedKeySource) PressKey(code uint16) {
	s.Press(KeyEvent{Code: code, Down: true})
}

// TapModifier injects a press and release of a modifier key with no key in
// between, the isolated-modifier hotkey gesture.
func (s *SimulatedKeySource) TapModifier(code uint16) {
	s.Press(KeyEvent{Code: code, Down: true, Modifier: true})
	s.Press(KeyEvent{Code: code, Down: false, Modifier: true})
}

// SimulatedTypist records synthesis requests instead of performing them.
type SimulatedTypist struct {
	mu sync.Mutex
	// ops holds one entry per call, e.g. "backspace:5", "type:hello",
	// "copy", "paste".
	ops []string
	// Err, when set, is returned by every call.
	Err error
}

// NewSimulatedTypist creates a typist for testing.
func NewSimulatedTypist() *SimulatedTypist {
	return &SimulatedTypist{}
}

func (s *SimulatedTypist) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.ops = append(s.ops, op)
	return nil
}

// Backspace records a backspace burst.
func (s *SimulatedTypist) Backspace(_ context.Context, n int) error {
	return s.record(fmt.Sprintf("backspace:%d", n))
}

// TypeText records a text synthesis request.
func (s *SimulatedTypist) TypeText(_ context.Context, text string, _ layout.Layout) error {
	return s.record("type:" + text)
}

// Copy records a copy chord.
func (s *SimulatedTypist) Copy(_ context.Context) error {
	return s.record("copy")
}

// Paste records a paste chord.
func (s *SimulatedTypist) Paste(_ context.Context) error {
	return s.record("paste")
}

// Ops returns the recorded operations in order.
func (s *SimulatedTypist) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ops))
	copy(out, s.ops)
	return out
}

// Journal returns the recorded operations joined with commas.
func (s *SimulatedTypist) Journal() string {
	return strings.Join(s.Ops(), ",")
}

// Reset clears the recorded operations.
func (s *SimulatedTypist) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
}

// SimulatedClipboard is an in-memory clipboard for testing.
type SimulatedClipboard struct {
	mu   sync.Mutex
	text string
	// GetErr and SetErr, when set, are returned by the respective calls.
	GetErr error
	SetErr error
}

// NewSimulatedClipboard creates a clipboard for testing.
func NewSimulatedClipboard() *SimulatedClipboard {
	return &SimulatedClipboard{}
}

// Text returns the stored text.
func (s *SimulatedClipboard) Text(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return "", s.GetErr
	}
	return s.text, nil
}

// SetText replaces the stored text.
func (s *SimulatedClipboard) SetText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	s.text = text
	return nil
}

// SimulatedSwitcher is an in-memory layout switcher for testing.
type SimulatedSwitcher struct {
	mu      sync.Mutex
	current layout.Layout
	// Err, when set, is returned by every call.
	Err error
	// switches counts Activate calls.
	switches int
}

// NewSimulatedSwitcher creates a switcher for testing, starting on Latin.
func NewSimulatedSwitcher() *SimulatedSwitcher {
	return &SimulatedSwitcher{current: layout.Latin}
}

// Current returns the simulated active layout.
func (s *SimulatedSwitcher) Current(_ context.Context) (layout.Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.current, s.Err
	}
	return s.current, nil
}

// Activate switches the simulated layout.
func (s *SimulatedSwitcher) Activate(_ context.Context, l layout.Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.current = l
	s.switches++
	return nil
}

// Switches returns how many times Activate succeeded.
func (s *SimulatedSwitcher) Switches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switches
}

// SimulatedOracle is a settable field oracle for testing.
type SimulatedOracle struct {
	mu    sync.Mutex
	field Field
	// Err, when set, is returned by Frontmost.
	Err error
}

// NewSimulatedOracle creates an oracle for testing.
func NewSimulatedOracle(appID string) *SimulatedOracle {
	return &SimulatedOracle{field: Field{AppID: appID}}
}

// Frontmost returns the configured field.
func (s *SimulatedOracle) Frontmost(_ context.Context) (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return Field{}, s.Err
	}
	return s.field, nil
}

// SetField replaces the configured field.
func (s *SimulatedOracle) SetField(f Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field = f
}
