package replacer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sergeivaskov/punto/internal/dictionary"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
)

// newTestReplacer builds a replacer over a dictionary containing the given
// words per language.
func newTestReplacer(t *testing.T, latinWords, cyrillicWords []string, excluded ExcludeFunc) (*AutoReplacer, *dictionary.Index) {
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
	ix.Load(write("en.txt", latinWords), write("ru.txt", cyrillicWords))

	m, err := layout.NewMapping()
	if err != nil {
		t.Fatalf("NewMapping: %v", err)
	}
	return New(layout.NewConverter(m), ix, excluded, logging.Default()), ix
}

// TestWrongLayoutWordReplaced is the worked end-to-end decision scenario:
// the JCUKEN keys for "hello" produce "руддщ", which is a prefix of nothing,
// converts to "hello", and "hello" is a complete English word.
func TestWrongLayoutWordReplaced(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)

	d := ar.PlanToken("руддщ", layout.Cyrillic)
	if d.Kind != DecisionReplace {
		t.Fatalf("decision = %v, want replace", d.Kind)
	}
	if d.Plan.Source != "руддщ" || d.Plan.Replacement != "hello" {
		t.Errorf("plan = %+v", d.Plan)
	}
	if d.Plan.DeleteCount != 5 {
		t.Errorf("delete count = %d, want 5", d.Plan.DeleteCount)
	}
	if d.Plan.TargetLayout != layout.Latin {
		t.Errorf("target layout = %v, want Latin", d.Plan.TargetLayout)
	}
	if ar.State() != StateReplacing {
		t.Errorf("state = %v, want replacing", ar.State())
	}
}

func TestValidPrefixNoAction(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)

	// "hel" is a valid English prefix and its converted form "руд" is not a
	// complete Russian word.
	d := ar.PlanToken("hel", layout.Latin)
	if d.Kind != DecisionNone {
		t.Fatalf("decision = %v, want none", d.Kind)
	}
	if ar.State() != StateIdle {
		t.Errorf("state = %v, want idle", ar.State())
	}
}

// TestValidPrefixStolenByCompleteOppositeWord covers the documented
// heuristic: a token that parses as a valid same-layout prefix is still
// converted when its opposite form completes a real word.
func TestValidPrefixStolenByCompleteOppositeWord(t *testing.T) {
	// "рщи" converts to "hob". Make "рщи" a valid Russian prefix (via
	// "рщика", an artificial entry) and "hob" a complete English word.
	ar, _ := newTestReplacer(t, []string{"hob"}, []string{"рщика"}, nil)

	d := ar.PlanToken("рщи", layout.Cyrillic)
	if d.Kind != DecisionReplace {
		t.Fatalf("decision = %v, want replace", d.Kind)
	}
	if d.Plan.Replacement != "hob" {
		t.Errorf("replacement = %q, want hob", d.Plan.Replacement)
	}
}

func TestAmbiguousPrefixWaits(t *testing.T) {
	ar, ix := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)
	// Disjoint alphabets keep file-loaded tries from ever overlapping, so
	// force a dual-indexed entry through the runtime API, the way a user
	// dictionary merge can.
	if !ix.AddWord("common", layout.Latin) || !ix.AddWord("common", layout.Cyrillic) {
		t.Fatal("AddWord failed")
	}

	d := ar.PlanToken("common", layout.Latin)
	if d.Kind != DecisionWait {
		t.Fatalf("decision = %v, want wait", d.Kind)
	}
	if ar.State() != StateAmbiguous {
		t.Errorf("state = %v, want ambiguous", ar.State())
	}
	if ar.PendingToken() != "common" {
		t.Errorf("pending token = %q", ar.PendingToken())
	}

	// A later unambiguous token resolves the pending state.
	d = ar.PlanToken("руддщ", layout.Cyrillic)
	if d.Kind != DecisionReplace {
		t.Fatalf("follow-up decision = %v, want replace", d.Kind)
	}
	if ar.PendingToken() != "" {
		t.Errorf("pending token not cleared: %q", ar.PendingToken())
	}
}

func TestNeitherReclassifiedByConvertedPrefix(t *testing.T) {
	// "ghb" is a prefix of nothing as typed, but converts to "при", a valid
	// Russian prefix: replace even though the word is unfinished.
	ar, _ := newTestReplacer(t, nil, []string{"привет"}, nil)

	d := ar.PlanToken("ghb", layout.Latin)
	if d.Kind != DecisionReplace {
		t.Fatalf("decision = %v, want replace", d.Kind)
	}
	if d.Plan.Replacement != "при" {
		t.Errorf("replacement = %q, want при", d.Plan.Replacement)
	}
}

func TestNeitherBothWaysNoAction(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)

	d := ar.PlanToken("zzz", layout.Latin)
	if d.Kind != DecisionNone {
		t.Fatalf("decision = %v, want none", d.Kind)
	}
}

func TestTooShortBeforeLoadAndBelowMinimum(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, nil, nil)

	if d := ar.PlanToken("he", layout.Latin); d.Kind != DecisionNone {
		t.Errorf("short token decision = %v, want none", d.Kind)
	}
}

func TestShortTokenMisTypedReplaced(t *testing.T) {
	// "z" typed in Latin converts to "я", a real Russian word; "z" is not
	// an English word. The replacement re-types the trailing space too.
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"я"}, nil)

	d := ar.PlanShortToken("z", layout.Latin)
	if d.Kind != DecisionReplace {
		t.Fatalf("decision = %v, want replace", d.Kind)
	}
	if d.Plan.Replacement != "я " {
		t.Errorf("replacement = %q, want %q", d.Plan.Replacement, "я ")
	}
	if d.Plan.DeleteCount != 2 {
		t.Errorf("delete count = %d, want 2 (token plus space)", d.Plan.DeleteCount)
	}
}

func TestShortTokenRecognizedWordKept(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hi"}, []string{"рш"}, nil)

	// "hi" is an English word; even though its converted form "рш" is a
	// Russian word too, both readings are valid: hands off.
	d := ar.PlanShortToken("hi", layout.Latin)
	if d.Kind != DecisionNone {
		t.Fatalf("decision = %v, want none", d.Kind)
	}
}

func TestShortTokenUnknownBothWaysKept(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)

	if d := ar.PlanShortToken("qq", layout.Latin); d.Kind != DecisionNone {
		t.Errorf("decision = %v, want none", d.Kind)
	}
}

func TestExclusionSuppressesReplacement(t *testing.T) {
	excluded := func(token string) bool { return strings.EqualFold(token, "hello") }
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, excluded)

	d := ar.PlanToken("руддщ", layout.Cyrillic)
	if d.Kind != DecisionNone {
		t.Fatalf("decision = %v, want none (excluded)", d.Kind)
	}
}

func TestAtMostOneInFlight(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)

	first := ar.PlanToken("руддщ", layout.Cyrillic)
	if first.Kind != DecisionReplace {
		t.Fatalf("first decision = %v", first.Kind)
	}

	// A second request while replacing is dropped without touching the
	// stored plan.
	second := ar.PlanToken("ghbdtn", layout.Latin)
	if second.Kind != DecisionNone {
		t.Fatalf("second decision = %v, want none", second.Kind)
	}

	plan := ar.TakePlan()
	if plan == nil || plan.Replacement != "hello" {
		t.Fatalf("plan = %+v, want the first request's plan", plan)
	}
	if ar.TakePlan() != nil {
		t.Error("plan must be consumable exactly once")
	}

	ar.CompleteReplacement()
	if ar.State() != StateIdle {
		t.Errorf("state after completion = %v, want idle", ar.State())
	}
}

func TestCancelDiscardsPlanFromAnyState(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)

	ar.PlanToken("руддщ", layout.Cyrillic)
	ar.Cancel()
	if ar.State() != StateIdle {
		t.Errorf("state = %v, want idle", ar.State())
	}
	if ar.TakePlan() != nil {
		t.Error("cancel must discard the stored plan")
	}
}

func TestCasingPreservedInPlan(t *testing.T) {
	ar, _ := newTestReplacer(t, []string{"hello"}, []string{"привет"}, nil)

	d := ar.PlanToken("Руддщ", layout.Cyrillic)
	if d.Kind != DecisionReplace {
		t.Fatalf("decision = %v, want replace", d.Kind)
	}
	if d.Plan.Replacement != "Hello" {
		t.Errorf("replacement = %q, want Hello", d.Plan.Replacement)
	}
}
