// Package corrector is the daemon core: it drains the key-event stream on a
// single goroutine and drives the tracker, replacer and executor so that
// words typed in the wrong keyboard layout get deleted and retyped in the
// right one.
//
// The loop goroutine owns all tracker and replacer state. Everything arriving
// from outside (IPC commands, executor completions, hotkey commits) is
// marshalled onto it through a command channel, so no locking is needed in
// the decision path.
package corrector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sergeivaskov/punto/internal/config"
	"github.com/sergeivaskov/punto/internal/dictionary"
	"github.com/sergeivaskov/punto/internal/executor"
	"github.com/sergeivaskov/punto/internal/input"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
	"github.com/sergeivaskov/punto/internal/replacer"
	"github.com/sergeivaskov/punto/internal/tracker"
)

var (
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("corrector already running")

	// ErrNotRunning is returned for operations requiring a running corrector.
	ErrNotRunning = errors.New("corrector not running")

	// ErrNothingSelected is returned when selection conversion finds no text.
	ErrNothingSelected = errors.New("no text selected")
)

// Settle delays for the two points where the conversion flow waits on the
// OS rather than on a completion signal (see the clipboard round trip).
const (
	copySettleDelay  = 150 * time.Millisecond
	pasteSettleDelay = 150 * time.Millisecond
)

// layoutPollInterval is how often the believed-active layout is refreshed
// from the system, catching manual layout switches.
const layoutPollInterval = 2 * time.Second

// fieldCacheTTL bounds how stale the cached frontmost-field answer may be.
// Asking the oracle on every keystroke would put a bus round trip in the
// hot path.
const fieldCacheTTL = 100 * time.Millisecond

// Stats are the daemon's observable counters.
type Stats struct {
	KeysObserved         uint64 `json:"keys_observed"`
	TokensAnalyzed       uint64 `json:"tokens_analyzed"`
	Replacements         uint64 `json:"replacements"`
	FailedReplacements   uint64 `json:"failed_replacements"`
	SelectionConversions uint64 `json:"selection_conversions"`
	Paused               bool   `json:"paused"`
	DictionaryLoaded     bool   `json:"dictionary_loaded"`
	LatinWords           int    `json:"latin_words"`
	CyrillicWords        int    `json:"cyrillic_words"`
	ActiveLayout         string `json:"active_layout"`
}

// Deps are the collaborators the corrector drives.
type Deps struct {
	Source    input.KeySource
	Typist    input.Typist
	Clipboard input.Clipboard
	Switcher  input.LayoutSwitcher
	Oracle    input.FieldOracle

	Dictionary *dictionary.Index
	Converter  *layout.Converter
}

// Corrector owns the event loop.
type Corrector struct {
	cfg  config.CorrectorConfig
	icfg config.InputConfig
	log  *logging.Logger

	deps Deps

	tracker  *tracker.Tracker
	replacer *replacer.AutoReplacer
	executor *executor.Executor

	blockedApps map[string]bool
	hotkeyCode  uint16

	// cmds marshals external work onto the loop goroutine.
	cmds chan func()

	copySettle  time.Duration
	pasteSettle time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	paused atomic.Bool

	// Loop-goroutine state.
	modsHeld        int
	hotkeyCandidate uint16
	hotkeyPending   bool
	lastField       input.Field
	lastFieldAt     time.Time

	keysObserved         atomic.Uint64
	tokensAnalyzed       atomic.Uint64
	replacements         atomic.Uint64
	failedReplacements   atomic.Uint64
	selectionConversions atomic.Uint64
}

// New wires a corrector from its collaborators. excluded may be nil.
func New(cfg *config.Config, deps Deps, excluded replacer.ExcludeFunc, log *logging.Logger) *Corrector {
	c := &Corrector{
		cfg:         cfg.Corrector,
		icfg:        cfg.Input,
		log:         log,
		deps:        deps,
		tracker:     tracker.New(log.WithComponent("tracker")),
		replacer:    replacer.New(deps.Converter, deps.Dictionary, excluded, log.WithComponent("replacer")),
		executor:    executor.New(deps.Typist, deps.Switcher, log.WithComponent("executor")),
		blockedApps: make(map[string]bool),
		hotkeyCode:  hotkeyModifierCode(cfg.Input.SelectionHotkeyModifier),
		cmds:        make(chan func(), 16),
		copySettle:  copySettleDelay,
		pasteSettle: pasteSettleDelay,
	}
	for _, app := range cfg.Corrector.BlockedApps {
		c.blockedApps[app] = true
	}
	c.tracker.SetFocusGrace(time.Duration(cfg.Corrector.FocusGraceMs) * time.Millisecond)
	return c
}

func hotkeyModifierCode(name string) uint16 {
	switch name {
	case "left_ctrl":
		return layout.KeyLeftCtrl
	case "left_shift":
		return layout.KeyLeftShift
	case "right_shift":
		return layout.KeyRightShift
	case "left_alt":
		return layout.KeyLeftAlt
	case "right_alt":
		return keyRightAlt
	default:
		return keyRightCtrl
	}
}

// Evdev codes for the right-hand modifiers, which have no layout table entry.
const (
	keyRightCtrl = 97
	keyRightAlt  = 100
)

// Start begins draining key events.
func (c *Corrector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := c.deps.Source.Start(ctx); err != nil {
		cancel()
		return err
	}

	if l, err := c.deps.Switcher.Current(ctx); err == nil {
		c.tracker.SetActiveLayout(l)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	go c.loop(ctx)

	c.log.Info("corrector started",
		"auto_correct", c.cfg.Enabled,
		"short_words", c.cfg.CorrectShortWords,
		"selection_hotkey", c.icfg.SelectionHotkey)
	return nil
}

// Stop shuts the loop down and waits for it.
func (c *Corrector) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.cancel()
	done := c.done
	c.mu.Unlock()

	c.deps.Source.Stop()
	<-done
	return nil
}

// Pause suspends analysis and replacement. Key tracking continues so a
// resume picks up cleanly at the next word boundary.
func (c *Corrector) Pause() {
	if c.paused.CompareAndSwap(false, true) {
		c.log.Info("correction paused")
	}
}

// Resume re-enables analysis.
func (c *Corrector) Resume() {
	if c.paused.CompareAndSwap(true, false) {
		c.log.Info("correction resumed")
	}
}

// Paused reports whether correction is paused.
func (c *Corrector) Paused() bool {
	return c.paused.Load()
}

// Stats returns a snapshot of the counters.
func (c *Corrector) Stats() Stats {
	return Stats{
		KeysObserved:         c.keysObserved.Load(),
		TokensAnalyzed:       c.tokensAnalyzed.Load(),
		Replacements:         c.replacements.Load(),
		FailedReplacements:   c.failedReplacements.Load(),
		SelectionConversions: c.selectionConversions.Load(),
		Paused:               c.paused.Load(),
		DictionaryLoaded:     c.deps.Dictionary.Loaded(),
		LatinWords:           c.deps.Dictionary.WordCount(layout.Latin),
		CyrillicWords:        c.deps.Dictionary.WordCount(layout.Cyrillic),
		ActiveLayout:         c.tracker.ActiveLayout().String(),
	}
}

// ConvertSelection runs the one-shot selection conversion on the loop
// goroutine and reports its result.
func (c *Corrector) ConvertSelection() error {
	c.mu.Lock()
	running := c.running
	done := c.done
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	// The loop may stop between the check above and the handoff; watching
	// its done channel keeps callers from blocking on a command nobody
	// will run.
	result := make(chan error, 1)
	select {
	case c.cmds <- func() { result <- c.convertSelection() }:
	case <-done:
		return ErrNotRunning
	}
	select {
	case err := <-result:
		return err
	case <-done:
		return ErrNotRunning
	}
}

// loop is the single event-processing goroutine.
func (c *Corrector) loop(ctx context.Context) {
	defer close(c.done)

	layoutTicker := time.NewTicker(layoutPollInterval)
	defer layoutTicker.Stop()

	events := c.deps.Source.Events()
	for {
		// Two-phase hotkey commit: the candidate release is confirmed only
		// at a quiescent point, when the burst it belongs to is drained and
		// no modifier is still held.
		if c.hotkeyPending {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				c.handleKey(ev)
				continue
			default:
				c.commitHotkey()
			}
		}

		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleKey(ev)
		case cmd := <-c.cmds:
			cmd()
		case <-layoutTicker.C:
			c.refreshLayout(ctx)
		}
	}
}

func (c *Corrector) refreshLayout(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if l, err := c.deps.Switcher.Current(ctx); err == nil {
		c.tracker.SetActiveLayout(l)
	}
}

// fieldContext resolves where the keystroke is headed, caching the oracle's
// answer briefly.
func (c *Corrector) fieldContext() tracker.FieldContext {
	if time.Since(c.lastFieldAt) > fieldCacheTTL {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if f, err := c.deps.Oracle.Frontmost(ctx); err == nil {
			c.lastField = f
		}
		cancel()
		c.lastFieldAt = time.Now()
	}
	return tracker.FieldContext{
		AppID:   c.lastField.AppID,
		Blocked: c.blockedApps[c.lastField.AppID],
		Secure:  c.lastField.Secure,
	}
}

// handleKey processes one raw key event.
func (c *Corrector) handleKey(ev input.KeyEvent) {
	c.trackHotkey(ev)
	if ev.Modifier {
		if ev.Down {
			c.modsHeld++
		} else if c.modsHeld > 0 {
			c.modsHeld--
		}
	}
	if ev.Modifier || !ev.Down {
		return
	}
	c.keysObserved.Add(1)

	res := c.tracker.HandleKey(tracker.KeyEvent{
		Code:    ev.Code,
		Shifted: ev.Shifted,
		Ctrl:    ev.Ctrl,
		Alt:     ev.Alt,
		Meta:    ev.Meta,
	}, c.fieldContext())

	if c.paused.Load() || !c.cfg.Enabled {
		return
	}

	switch res.Outcome {
	case tracker.OutcomeAccumulated:
		c.analyzeLiveToken()
	case tracker.OutcomeCompleted:
		// The word is done; an ambiguity that survived to the boundary
		// stays uncorrected.
		c.replacer.Cancel()
	case tracker.OutcomeShortPending:
		c.analyzeShortToken(res.Token)
	case tracker.OutcomeCleared:
		c.replacer.Cancel()
	}
}

func (c *Corrector) analyzeLiveToken() {
	if c.tracker.AnalysisSuppressed() {
		return
	}
	token := c.tracker.Token()
	if len([]rune(token)) < dictionary.MinPrefixLength {
		return
	}
	c.tokensAnalyzed.Add(1)
	d := c.replacer.PlanToken(token, c.tracker.ActiveLayout())
	if d.Kind == replacer.DecisionReplace {
		c.executePlanned()
	}
}

func (c *Corrector) analyzeShortToken(token string) {
	defer c.tracker.CompletePendingAnalysis()
	if !c.cfg.CorrectShortWords || c.tracker.AnalysisSuppressed() {
		return
	}
	c.tokensAnalyzed.Add(1)
	d := c.replacer.PlanShortToken(token, c.tracker.ActiveLayout())
	if d.Kind == replacer.DecisionReplace {
		c.executePlanned()
	}
}

// executePlanned fires the stored plan. Capture is masked for the duration
// so the synthesized delete/retype sequence is not re-processed as input.
func (c *Corrector) executePlanned() {
	plan := c.replacer.TakePlan()
	if plan == nil {
		return
	}

	c.tracker.SetProcessing(true)
	err := c.executor.Execute(context.Background(), plan, func(execErr error) {
		// Executor goroutine; hop back onto the loop.
		c.cmds <- func() { c.finishReplacement(plan, execErr) }
	})
	if err != nil {
		c.tracker.SetProcessing(false)
		c.replacer.CompleteReplacement()
		c.failedReplacements.Add(1)
		c.log.Warn("replacement not started", "error", err)
	}
}

func (c *Corrector) finishReplacement(plan *replacer.ExecutionPlan, err error) {
	c.tracker.SetProcessing(false)
	c.replacer.CompleteReplacement()

	if err != nil {
		c.failedReplacements.Add(1)
		c.tracker.ForceReset("replacement failed")
		c.log.Warn("replacement failed", "source", plan.Source, "error", err)
		return
	}

	c.replacements.Add(1)
	c.tracker.SetActiveLayout(plan.TargetLayout)
	// Seed the buffer with what is now on screen so continued typing
	// appends to it, and keep our own output from being re-analyzed.
	c.tracker.SetReplacedToken(strings.TrimSuffix(plan.Replacement, " "))
	c.log.Debug("replaced token", "from", plan.Source, "to", plan.Replacement)
}

// trackHotkey runs the isolated-modifier detection state machine.
func (c *Corrector) trackHotkey(ev input.KeyEvent) {
	if !c.icfg.SelectionHotkey {
		return
	}
	switch {
	case ev.Modifier && ev.Down:
		if ev.Code == c.hotkeyCode && c.modsHeld == 0 {
			c.hotkeyCandidate = ev.Code
		} else {
			// A chord is forming.
			c.hotkeyCandidate = 0
		}
	case ev.Modifier && !ev.Down:
		if ev.Code == c.hotkeyCandidate {
			c.hotkeyPending = true
		}
		c.hotkeyCandidate = 0
	case ev.Down:
		// An ordinary key invalidates both phases.
		c.hotkeyCandidate = 0
		c.hotkeyPending = false
	}
}

// commitHotkey fires the pending hotkey if the burst settled with no
// modifier held.
func (c *Corrector) commitHotkey() {
	c.hotkeyPending = false
	if c.modsHeld > 0 {
		return
	}
	if err := c.convertSelection(); err != nil && !errors.Is(err, ErrNothingSelected) {
		c.log.Warn("selection conversion failed", "error", err)
	}
}

// convertSelection converts the current selection to the opposite layout via
// the clipboard. Runs on the loop goroutine.
func (c *Corrector) convertSelection() error {
	timeout := time.Duration(c.icfg.ClipboardTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout+2*(c.copySettle+c.pasteSettle))
	defer cancel()

	c.tracker.SetProcessing(true)
	defer c.tracker.SetProcessing(false)
	c.tracker.ForceReset("selection conversion")
	c.replacer.Cancel()

	backup, backupErr := c.deps.Clipboard.Text(ctx)

	// Clear first so an empty selection is distinguishable from whatever
	// the clipboard held before the copy.
	if err := c.deps.Clipboard.SetText(ctx, ""); err != nil {
		return err
	}
	if err := c.deps.Typist.Copy(ctx); err != nil {
		c.restoreClipboard(ctx, backup, backupErr)
		return err
	}
	// The OS needs a moment to populate the clipboard from the copy.
	time.Sleep(c.copySettle)

	selected, err := c.deps.Clipboard.Text(ctx)
	if err != nil {
		c.restoreClipboard(ctx, backup, backupErr)
		return err
	}
	if selected == "" {
		c.restoreClipboard(ctx, backup, backupErr)
		return ErrNothingSelected
	}

	from := c.deps.Converter.DetectPredominantLayout(selected)
	converted := c.deps.Converter.ConvertText(selected, from, from.Opposite())

	if err := c.deps.Clipboard.SetText(ctx, converted); err != nil {
		c.restoreClipboard(ctx, backup, backupErr)
		return err
	}
	if err := c.deps.Typist.Paste(ctx); err != nil {
		c.restoreClipboard(ctx, backup, backupErr)
		return err
	}
	// Same for consuming the paste before the clipboard is restored.
	time.Sleep(c.pasteSettle)

	if err := c.deps.Switcher.Activate(ctx, from.Opposite()); err != nil {
		c.log.Warn("layout switch after conversion failed", "error", err)
	} else {
		c.tracker.SetActiveLayout(from.Opposite())
	}

	c.restoreClipboard(ctx, backup, backupErr)
	c.selectionConversions.Add(1)
	c.log.Info("selection converted", "chars", len([]rune(selected)), "to", from.Opposite())
	return nil
}

func (c *Corrector) restoreClipboard(ctx context.Context, backup string, backupErr error) {
	if backupErr != nil {
		return
	}
	if err := c.deps.Clipboard.SetText(ctx, backup); err != nil {
		c.log.Warn("clipboard restore failed", "error", err)
	}
}
