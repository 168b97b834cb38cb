// Package replacer decides whether, when and how a typed token should be
// converted to the opposite keyboard layout.
//
// The decision engine is split into planning and execution so the expensive
// part (dictionary lookups plus conversion) happens while the triggering
// keystroke is still in flight: PlanToken computes and stores an
// ExecutionPlan, and the orchestrator fires it at the next safe point via
// TakePlan without re-analyzing. At most one replacement is in flight per
// replacer; requests arriving while one is executing are dropped, not queued.
package replacer

import (
	"unicode/utf8"

	"github.com/sergeivaskov/punto/internal/dictionary"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

// State is the replacement state machine.
type State int

const (
	// StateIdle means no analysis or replacement is in progress.
	StateIdle State = iota
	// StateAnalyzing is transient, held only inside an analyze call.
	StateAnalyzing
	// StateAmbiguous means the last token was a valid prefix in both
	// languages; the engine is waiting for more input.
	StateAmbiguous
	// StateReplacing means a plan is committed or executing; new requests
	// are dropped until CompleteReplacement or Cancel.
	StateReplacing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateAmbiguous:
		return "ambiguous"
	case StateReplacing:
		return "replacing"
	default:
		return "unknown"
	}
}

// DecisionKind is the outcome of analyzing a token.
type DecisionKind int

const (
	// DecisionNone means leave the text alone.
	DecisionNone DecisionKind = iota
	// DecisionReplace means delete and retype the token in the other layout.
	DecisionReplace
	// DecisionWait means the token is ambiguous; wait for more input.
	DecisionWait
)

func (d DecisionKind) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionReplace:
		return "replace"
	case DecisionWait:
		return "wait"
	default:
		return "unknown"
	}
}

// Decision is the result of one analysis.
type Decision struct {
	Kind DecisionKind
	Plan *ExecutionPlan
}

// ExecutionPlan is a pre-computed, not-yet-fired replacement. It is produced
// here, consumed exactly once by the executor, then discarded.
type ExecutionPlan struct {
	// Source is the token being replaced.
	Source string
	// DeleteCount is how many characters to delete, including the trailing
	// space for short completed tokens.
	DeleteCount int
	// Replacement is the text to retype.
	Replacement string
	// TargetLayout is the layout the system should switch to afterwards.
	TargetLayout layout.Layout
}

// ExcludeFunc reports whether a token must never be auto-corrected.
// Wired to the user dictionary's exclusion list.
type ExcludeFunc func(token string) bool

// AutoReplacer owns the decision procedure and the replacement state machine.
// It is driven from the single event-processing goroutine and does no locking.
type AutoReplacer struct {
	conv     *layout.Converter
	dict     *dictionary.Index
	excluded ExcludeFunc

	state        State
	pendingToken string
	plan         *ExecutionPlan

	log *logging.Logger
}

// New creates a replacer. excluded may be nil.
func New(conv *layout.Converter, dict *dictionary.Index, excluded ExcludeFunc, log *logging.Logger) *AutoReplacer {
	return &AutoReplacer{
		conv:     conv,
		dict:     dict,
		excluded: excluded,
		state:    StateIdle,
		log:      log,
	}
}

// State returns the current state.
func (ar *AutoReplacer) State() State {
	return ar.state
}

// PendingToken returns the token that put the engine into StateAmbiguous.
func (ar *AutoReplacer) PendingToken() string {
	return ar.pendingToken
}

// Cancel forces the engine back to idle and discards any stored plan.
func (ar *AutoReplacer) Cancel() {
	ar.state = StateIdle
	ar.pendingToken = ""
	ar.plan = nil
}

// CompleteReplacement closes the replacing state after the executor reports
// its result, successful or not.
func (ar *AutoReplacer) CompleteReplacement() {
	if ar.state == StateReplacing {
		ar.state = StateIdle
	}
	ar.plan = nil
}

// TakePlan returns the stored plan and removes it. The state remains
// StateReplacing until CompleteReplacement; a second call returns nil.
func (ar *AutoReplacer) TakePlan() *ExecutionPlan {
	p := ar.plan
	ar.plan = nil
	return p
}

// PlanToken analyzes a live token (three or more characters, still being
// typed) and stores an ExecutionPlan when the decision is to replace.
// current is the layout the token was typed in.
func (ar *AutoReplacer) PlanToken(token string, current layout.Layout) Decision {
	if ar.state == StateReplacing {
		// At most one in-flight replacement; drop, don't queue.
		return Decision{Kind: DecisionNone}
	}
	ar.state = StateAnalyzing
	ar.pendingToken = ""

	decision := ar.analyzeLive(token, current)
	switch decision.Kind {
	case DecisionReplace:
		ar.plan = decision.Plan
		ar.state = StateReplacing
	case DecisionWait:
		ar.pendingToken = token
		ar.state = StateAmbiguous
	default:
		ar.state = StateIdle
	}
	return decision
}

// analyzeLive implements the live-token decision procedure.
func (ar *AutoReplacer) analyzeLive(token string, current layout.Layout) Decision {
	analysis := ar.dict.AnalyzePrefix(token)
	converted := ar.conv.ConvertToken(token, current, current.Opposite())

	switch analysis {
	case dictionary.TooShort:
		return Decision{Kind: DecisionNone}

	case dictionary.LatinOnly, dictionary.CyrillicOnly:
		// The current form parses as a valid same-layout prefix, but if the
		// converted form already completes a real word the user more likely
		// finished a word in the wrong layout. Known heuristic: short
		// dual-valid prefixes can be stolen early.
		if isWord(ar.dict.AnalyzeWord(converted)) {
			return ar.replaceDecision(token, converted, converted, utf8.RuneCountInString(token), current.Opposite())
		}
		return Decision{Kind: DecisionNone}

	case dictionary.Both:
		return Decision{Kind: DecisionWait}

	default: // Neither
		switch ar.dict.AnalyzePrefix(converted) {
		case dictionary.LatinOnly, dictionary.CyrillicOnly:
			return ar.replaceDecision(token, converted, converted, utf8.RuneCountInString(token), current.Opposite())
		case dictionary.Both:
			return Decision{Kind: DecisionWait}
		default:
			return Decision{Kind: DecisionNone}
		}
	}
}

// PlanShortToken analyzes a completed 1-2 character token at a word
// boundary. The space that triggered the analysis is part of any
// replacement: it is counted in DeleteCount and re-typed after the
// converted token.
func (ar *AutoReplacer) PlanShortToken(token string, current layout.Layout) Decision {
	if ar.state == StateReplacing {
		return Decision{Kind: DecisionNone}
	}
	ar.state = StateAnalyzing
	ar.pendingToken = ""

	decision := ar.analyzeShort(token, current)
	if decision.Kind == DecisionReplace {
		ar.plan = decision.Plan
		ar.state = StateReplacing
	} else {
		ar.state = StateIdle
	}
	return decision
}

func (ar *AutoReplacer) analyzeShort(token string, current layout.Layout) Decision {
	analysis := ar.dict.AnalyzeWord(token)
	converted := ar.conv.ConvertToken(token, current, current.Opposite())

	switch analysis {
	case dictionary.TooShort, dictionary.Both:
		return Decision{Kind: DecisionNone}

	case dictionary.LatinOnly, dictionary.CyrillicOnly:
		// Recognized as a real word as typed. Even when the converted form
		// is also a word, both readings are legitimate; leave it alone
		// rather than corrupt two-letter words that exist in both languages.
		return Decision{Kind: DecisionNone}

	default: // Neither
		if isWord(ar.dict.AnalyzeWord(converted)) {
			return ar.replaceDecision(token, converted, converted+" ", utf8.RuneCountInString(token)+1, current.Opposite())
		}
		return Decision{Kind: DecisionNone}
	}
}

// replaceDecision assembles a replace decision unless either reading of the
// token is excluded.
func (ar *AutoReplacer) replaceDecision(token, converted, replacement string, deleteCount int, target layout.Layout) Decision {
	if ar.excluded != nil && (ar.excluded(token) || ar.excluded(converted)) {
		ar.log.Debug("replacement suppressed by exclusion list", "token", token)
		return Decision{Kind: DecisionNone}
	}
	return Decision{
		Kind: DecisionReplace,
		Plan: &ExecutionPlan{
			Source:       token,
			DeleteCount:  deleteCount,
			Replacement:  replacement,
			TargetLayout: target,
		},
	}
}

func isWord(a dictionary.Analysis) bool {
	switch a {
	case dictionary.LatinOnly, dictionary.CyrillicOnly, dictionary.Both:
		return true
	default:
		return false
	}
}
