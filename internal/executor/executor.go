// Package executor performs planned replacements against the platform:
// delete the mistyped token, switch the system layout, retype the converted
// text.
package executor

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sergeivaskov/punto/internal/input"
	"github.com/sergeivaskov/punto/internal/logging"
	"github.com/sergeivaskov/punto/internal/replacer"
)

// ErrBusy is returned when a replacement is already executing.
var ErrBusy = errors.New("replacement already in flight")

// ErrInvalidPlan is returned for plans that would corrupt text if fired.
var ErrInvalidPlan = errors.New("invalid execution plan")

// Executor fires execution plans. At most one plan executes at a time;
// Execute returns ErrBusy for the rest.
type Executor struct {
	typist   input.Typist
	switcher input.LayoutSwitcher
	log      *logging.Logger

	inFlight atomic.Bool
}

// New creates an executor.
func New(typist input.Typist, switcher input.LayoutSwitcher, log *logging.Logger) *Executor {
	return &Executor{typist: typist, switcher: switcher, log: log}
}

// Busy reports whether a plan is currently executing.
func (e *Executor) Busy() bool {
	return e.inFlight.Load()
}

// Execute fires the plan on its own goroutine and reports the result through
// done, which is always called exactly once when Execute returns nil. The
// caller masks its own key events for the duration (the synthesized presses
// come back through the key source).
func (e *Executor) Execute(ctx context.Context, plan *replacer.ExecutionPlan, done func(error)) error {
	if plan == nil || plan.DeleteCount <= 0 || plan.Replacement == "" {
		return ErrInvalidPlan
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}

	go func() {
		defer e.inFlight.Store(false)
		done(e.run(ctx, plan))
	}()
	return nil
}

func (e *Executor) run(ctx context.Context, plan *replacer.ExecutionPlan) error {
	e.log.Debug("executing replacement",
		"source", plan.Source,
		"replacement", plan.Replacement,
		"delete", plan.DeleteCount,
		"layout", plan.TargetLayout)

	if err := e.typist.Backspace(ctx, plan.DeleteCount); err != nil {
		return err
	}

	// The retype maps characters to physical keys under the target layout,
	// so the switch has to land first. It is still best effort: when it
	// fails the keys for the replacement reproduce the original text under
	// the stale layout, which is recoverable by the user.
	if err := e.switcher.Activate(ctx, plan.TargetLayout); err != nil {
		e.log.Warn("layout switch failed, retyping anyway", "error", err)
	}

	return e.typist.TypeText(ctx, plan.Replacement, plan.TargetLayout)
}
