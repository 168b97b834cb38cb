package corrector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sergeivaskov/punto/internal/config"
	"github.com/sergeivaskov/punto/internal/dictionary"
	"github.com/sergeivaskov/punto/internal/input"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

// copyingTypist plays the OS role in the clipboard round trip: a copy chord
// lands the configured selection on the clipboard, and a paste chord records
// what the clipboard held at paste time.
type copyingTypist struct {
	*input.SimulatedTypist
	clip      *input.SimulatedClipboard
	selection string
}

func (ct *copyingTypist) Copy(ctx context.Context) error {
	if err := ct.SimulatedTypist.Copy(ctx); err != nil {
		return err
	}
	return ct.clip.SetText(ctx, ct.selection)
}

func (ct *copyingTypist) Paste(ctx context.Context) error {
	text, _ := ct.clip.Text(ctx)
	return ct.SimulatedTypist.TypeText(ctx, "paste:"+text, layout.Latin)
}

// failingClipboard fails the nth Text or SetText call, counting from one.
// Calls other than the chosen one pass through to the simulation.
type failingClipboard struct {
	*input.SimulatedClipboard
	failTextCall int
	failSetCall  int
	textCalls    int
	setCalls     int
}

func (f *failingClipboard) Text(ctx context.Context) (string, error) {
	f.textCalls++
	if f.textCalls == f.failTextCall {
		return "", errors.New("clipboard read failed")
	}
	return f.SimulatedClipboard.Text(ctx)
}

func (f *failingClipboard) SetText(ctx context.Context, text string) error {
	f.setCalls++
	if f.setCalls == f.failSetCall {
		return errors.New("clipboard write failed")
	}
	return f.SimulatedClipboard.SetText(ctx, text)
}

type fixture struct {
	source   *input.SimulatedKeySource
	typist   *copyingTypist
	clip     *input.SimulatedClipboard
	switcher *input.SimulatedSwitcher
	oracle   *input.SimulatedOracle
}

// newTestCorrector builds a started corrector over simulated input backends
// and a small two-language dictionary.
func newTestCorrector(t *testing.T, mutate func(*config.Config)) (*Corrector, *fixture) {
	t.Helper()
	return newTestCorrectorClip(t, mutate, nil)
}

// newTestCorrectorClip additionally lets a test interpose its own clipboard
// between the corrector and the simulated one. The copy chord keeps landing
// selections on the underlying simulation either way.
func newTestCorrectorClip(t *testing.T, mutate func(*config.Config), wrap func(*input.SimulatedClipboard) input.Clipboard) (*Corrector, *fixture) {
	t.Helper()
	dir := t.TempDir()
	write := func(name string, words []string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(strings.Join(words, "\n")+"\n"), 0600); err != nil {
			t.Fatalf("write word list: %v", err)
		}
		return path
	}
	ix := dictionary.New(logging.Default())
	ix.Load(
		write("en.txt", []string{"hello", "help", "world", "hi"}),
		write("ru.txt", []string{"привет", "мир", "я"}),
	)

	m, err := layout.NewMapping()
	require.NoError(t, err)

	clip := input.NewSimulatedClipboard()
	fx := &fixture{
		source:   input.NewSimulatedKeySource(),
		typist:   &copyingTypist{SimulatedTypist: input.NewSimulatedTypist(), clip: clip},
		clip:     clip,
		switcher: input.NewSimulatedSwitcher(),
		oracle:   input.NewSimulatedOracle("editor"),
	}

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	var clipDep input.Clipboard = clip
	if wrap != nil {
		clipDep = wrap(clip)
	}

	c := New(cfg, Deps{
		Source:     fx.source,
		Typist:     fx.typist,
		Clipboard:  clipDep,
		Switcher:   fx.switcher,
		Oracle:     fx.oracle,
		Dictionary: ix,
		Converter:  layout.NewConverter(m),
	}, nil, logging.Default())
	c.copySettle = 5 * time.Millisecond
	c.pasteSettle = 5 * time.Millisecond

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop() })
	return c, fx
}

// typeWord injects the physical keys that produce word under the given
// layout, one key-down per rune.
func typeWord(t *testing.T, fx *fixture, word string, active layout.Layout) {
	t.Helper()
	for _, r := range word {
		code, shifted, ok := layout.KeyForChar(r, active)
		if !ok {
			t.Fatalf("no key for %q in %v", r, active)
		}
		fx.source.Press(input.KeyEvent{Code: code, Down: true, Shifted: shifted})
	}
}

// setLayout pushes the believed-active layout onto the loop goroutine and
// waits for it to land, so keys injected afterwards are decoded under it.
func setLayout(t *testing.T, c *Corrector, l layout.Layout) {
	t.Helper()
	applied := make(chan struct{})
	c.cmds <- func() {
		c.tracker.SetActiveLayout(l)
		close(applied)
	}
	select {
	case <-applied:
	case <-time.After(time.Second):
		t.Fatal("loop did not apply layout change")
	}
}

func waitJournal(t *testing.T, fx *fixture, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return fx.typist.Journal() == want
	}, 2*time.Second, 10*time.Millisecond, "journal = %q, want %q", fx.typist.Journal(), want)
}

// TestWrongLayoutWordCorrected types the JCUKEN keys for "hello" while the
// system believes Cyrillic is active: the on-screen "руддщ" is deleted and
// retyped as "hello", and the layout switches to Latin.
func TestWrongLayoutWordCorrected(t *testing.T) {
	c, fx := newTestCorrector(t, nil)

	require.NoError(t, fx.switcher.Activate(context.Background(), layout.Cyrillic))
	setLayout(t, c, layout.Cyrillic)

	typeWord(t, fx, "hello", layout.Latin)

	waitJournal(t, fx, "backspace:5,type:hello")
	require.Eventually(t, func() bool {
		l, _ := fx.switcher.Current(context.Background())
		return l == layout.Latin
	}, time.Second, 10*time.Millisecond)

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Replacements)
	require.Equal(t, uint64(0), stats.FailedReplacements)
	require.Equal(t, uint64(5), stats.KeysObserved)
}

// TestCorrectWordLeftAlone types a word that is valid in the active layout.
func TestCorrectWordLeftAlone(t *testing.T) {
	_, fx := newTestCorrector(t, nil)

	typeWord(t, fx, "hello", layout.Latin)
	fx.source.PressKey(layout.KeySpace)

	time.Sleep(200 * time.Millisecond)
	require.Empty(t, fx.typist.Ops())
}

// TestShortWordCorrected types the key for "z" then space while Latin is
// active: "z" is no English word, its JCUKEN twin "я" is a Russian word, so
// both the letter and the space are retyped.
func TestShortWordCorrected(t *testing.T) {
	_, fx := newTestCorrector(t, nil)

	typeWord(t, fx, "z", layout.Latin)
	fx.source.PressKey(layout.KeySpace)

	waitJournal(t, fx, "backspace:2,type:я ")
}

func TestShortWordsDisabled(t *testing.T) {
	_, fx := newTestCorrector(t, func(cfg *config.Config) {
		cfg.Corrector.CorrectShortWords = false
	})

	typeWord(t, fx, "z", layout.Latin)
	fx.source.PressKey(layout.KeySpace)

	time.Sleep(200 * time.Millisecond)
	require.Empty(t, fx.typist.Ops())
}

// TestPauseSuppressesCorrection pauses, types a correctable word, then
// resumes and types it again.
func TestPauseSuppressesCorrection(t *testing.T) {
	c, fx := newTestCorrector(t, nil)
	setLayout(t, c, layout.Cyrillic)

	c.Pause()
	require.True(t, c.Paused())

	typeWord(t, fx, "hello", layout.Latin)
	fx.source.PressKey(layout.KeySpace)
	time.Sleep(200 * time.Millisecond)
	require.Empty(t, fx.typist.Ops())

	c.Resume()
	typeWord(t, fx, "hello", layout.Latin)
	waitJournal(t, fx, "backspace:5,type:hello")
}

// TestBlockedAppNotTokenized routes keys at an application on the block list.
func TestBlockedAppNotTokenized(t *testing.T) {
	c, fx := newTestCorrector(t, func(cfg *config.Config) {
		cfg.Corrector.BlockedApps = []string{"game"}
	})
	fx.oracle.SetField(input.Field{AppID: "game"})
	setLayout(t, c, layout.Cyrillic)

	typeWord(t, fx, "hello", layout.Latin)
	time.Sleep(200 * time.Millisecond)
	require.Empty(t, fx.typist.Ops())
}

// TestConvertSelection drives the explicit ConvertSelection entry point:
// the Latin gibberish "ghbdtn" on the clipboard becomes "привет", gets
// pasted, and the prior clipboard contents come back afterwards.
func TestConvertSelection(t *testing.T) {
	c, fx := newTestCorrector(t, nil)

	require.NoError(t, fx.clip.SetText(context.Background(), "prior"))
	fx.typist.selection = "ghbdtn"

	require.NoError(t, c.ConvertSelection())

	require.Equal(t, "copy,type:paste:привет", fx.typist.Journal())

	text, err := fx.clip.Text(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prior", text)

	l, err := fx.switcher.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, layout.Cyrillic, l)

	require.Equal(t, uint64(1), c.Stats().SelectionConversions)
}

func TestConvertSelectionNothingSelected(t *testing.T) {
	c, fx := newTestCorrector(t, nil)

	require.NoError(t, fx.clip.SetText(context.Background(), "prior"))
	fx.typist.selection = ""

	require.ErrorIs(t, c.ConvertSelection(), ErrNothingSelected)

	text, err := fx.clip.Text(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prior", text)
}

// TestConvertSelectionReadFailureRestores fails the post-copy clipboard
// read: the operation errors out, nothing is pasted, and the prior clipboard
// contents come back.
func TestConvertSelectionReadFailureRestores(t *testing.T) {
	fc := &failingClipboard{failTextCall: 2}
	c, fx := newTestCorrectorClip(t, nil, func(sim *input.SimulatedClipboard) input.Clipboard {
		fc.SimulatedClipboard = sim
		return fc
	})

	require.NoError(t, fx.clip.SetText(context.Background(), "prior"))
	fx.typist.selection = "ghbdtn"

	require.Error(t, c.ConvertSelection())

	text, err := fx.clip.Text(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prior", text)
	require.NotContains(t, fx.typist.Journal(), "paste")
}

// TestConvertSelectionWriteFailureRestores fails the write that puts the
// converted text on the clipboard.
func TestConvertSelectionWriteFailureRestores(t *testing.T) {
	fc := &failingClipboard{failSetCall: 2}
	c, fx := newTestCorrectorClip(t, nil, func(sim *input.SimulatedClipboard) input.Clipboard {
		fc.SimulatedClipboard = sim
		return fc
	})

	require.NoError(t, fx.clip.SetText(context.Background(), "prior"))
	fx.typist.selection = "ghbdtn"

	require.Error(t, c.ConvertSelection())

	text, err := fx.clip.Text(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prior", text)
	require.NotContains(t, fx.typist.Journal(), "paste")
}

// TestConvertSelectionCopyFailureRestores fails the copy chord itself, after
// the clipboard was already cleared for the empty-selection check.
func TestConvertSelectionCopyFailureRestores(t *testing.T) {
	c, fx := newTestCorrector(t, nil)

	require.NoError(t, fx.clip.SetText(context.Background(), "prior"))
	fx.typist.Err = context.DeadlineExceeded

	require.Error(t, c.ConvertSelection())

	text, err := fx.clip.Text(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prior", text)
}

func TestConvertSelectionAfterStop(t *testing.T) {
	c, _ := newTestCorrector(t, nil)
	require.NoError(t, c.Stop())
	require.ErrorIs(t, c.ConvertSelection(), ErrNotRunning)
}

// TestConvertSelectionDuringStop races conversion requests against Stop;
// every request must return rather than wait on the stopped loop.
func TestConvertSelectionDuringStop(t *testing.T) {
	c, fx := newTestCorrector(t, nil)
	fx.typist.selection = "ghbdtn"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ConvertSelection()
		}()
	}
	require.NoError(t, c.Stop())

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatal("conversion requests did not return after stop")
	}
}

// TestIsolatedModifierHotkey taps the hotkey modifier with no key between
// press and release: selection conversion fires at the quiescent point.
func TestIsolatedModifierHotkey(t *testing.T) {
	c, fx := newTestCorrector(t, nil)
	fx.typist.selection = "ghbdtn"

	fx.source.TapModifier(keyRightCtrl)

	require.Eventually(t, func() bool {
		return c.Stats().SelectionConversions == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestModifierChordDoesNotTriggerHotkey presses a key while the hotkey
// modifier is down, a chord rather than an isolated tap.
func TestModifierChordDoesNotTriggerHotkey(t *testing.T) {
	c, fx := newTestCorrector(t, nil)
	fx.typist.selection = "ghbdtn"

	cCode, _, ok := layout.KeyForChar('c', layout.Latin)
	require.True(t, ok)

	fx.source.Press(input.KeyEvent{Code: keyRightCtrl, Down: true, Modifier: true})
	fx.source.Press(input.KeyEvent{Code: cCode, Down: true, Ctrl: true})
	fx.source.Press(input.KeyEvent{Code: cCode, Down: false, Ctrl: true})
	fx.source.Press(input.KeyEvent{Code: keyRightCtrl, Down: false, Modifier: true})

	time.Sleep(200 * time.Millisecond)
	require.Zero(t, c.Stats().SelectionConversions)
}

// TestHotkeyDisabled turns the hotkey off in configuration.
func TestHotkeyDisabled(t *testing.T) {
	c, fx := newTestCorrector(t, func(cfg *config.Config) {
		cfg.Input.SelectionHotkey = false
	})
	fx.typist.selection = "ghbdtn"

	fx.source.TapModifier(keyRightCtrl)

	time.Sleep(200 * time.Millisecond)
	require.Zero(t, c.Stats().SelectionConversions)
}

// TestReplacementFailureResets fails the synthesis path and checks the
// tracker recovers rather than believing its stale buffer.
func TestReplacementFailureResets(t *testing.T) {
	c, fx := newTestCorrector(t, nil)
	setLayout(t, c, layout.Cyrillic)
	fx.typist.Err = context.DeadlineExceeded

	typeWord(t, fx, "hello", layout.Latin)

	require.Eventually(t, func() bool {
		return c.Stats().FailedReplacements == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Zero(t, c.Stats().Replacements)

	// The pipeline must accept further work after the failure.
	fx.typist.Err = nil
	fx.typist.Reset()
	typeWord(t, fx, "hello", layout.Latin)
	waitJournal(t, fx, "backspace:5,type:hello")
}

func TestStartTwiceRejected(t *testing.T) {
	c, _ := newTestCorrector(t, nil)
	require.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}
