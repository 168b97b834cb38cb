package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sergeivaskov/punto/internal/input"
	"github.com/sergeivaskov/punto/internal/layout"
	"github.com/sergeivaskov/punto/internal/logging"
	"github.com/sergeivaskov/punto/internal/replacer"
)

func helloPlan() *replacer.ExecutionPlan {
	return &replacer.ExecutionPlan{
		Source:       "руддщ",
		DeleteCount:  5,
		Replacement:  "hello",
		TargetLayout: layout.Latin,
	}
}

func execute(t *testing.T, e *Executor, plan *replacer.ExecutionPlan) error {
	t.Helper()
	result := make(chan error, 1)
	if err := e.Execute(context.Background(), plan, func(err error) { result <- err }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	select {
	case err := <-result:
		return err
	case <-time.After(time.Second):
		t.Fatal("execution did not complete")
		return nil
	}
}

func TestExecuteSequence(t *testing.T) {
	typist := input.NewSimulatedTypist()
	switcher := input.NewSimulatedSwitcher()
	e := New(typist, switcher, logging.Default())

	if err := execute(t, e, helloPlan()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := typist.Journal(); got != "backspace:5,type:hello" {
		t.Errorf("journal = %q", got)
	}
	if l, _ := switcher.Current(context.Background()); l != layout.Latin {
		t.Errorf("layout after execution = %v, want Latin", l)
	}
	if e.Busy() {
		t.Error("executor still busy after completion")
	}
}

func TestInvalidPlansRejected(t *testing.T) {
	e := New(input.NewSimulatedTypist(), input.NewSimulatedSwitcher(), logging.Default())

	for _, plan := range []*replacer.ExecutionPlan{
		nil,
		{DeleteCount: 0, Replacement: "hello"},
		{DeleteCount: -1, Replacement: "hello"},
		{DeleteCount: 3, Replacement: ""},
	} {
		if err := e.Execute(context.Background(), plan, func(error) {}); !errors.Is(err, ErrInvalidPlan) {
			t.Errorf("plan %+v: err = %v, want ErrInvalidPlan", plan, err)
		}
	}
}

func TestSecondExecuteWhileBusyRejected(t *testing.T) {
	typist := input.NewSimulatedTypist()
	e := New(typist, input.NewSimulatedSwitcher(), logging.Default())

	started := make(chan struct{})
	release := make(chan struct{})
	blockingDone := make(chan error, 1)

	// Hold the first execution open by blocking in its completion callback.
	if err := e.Execute(context.Background(), helloPlan(), func(err error) {
		close(started)
		<-release
		blockingDone <- err
	}); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	<-started

	if err := e.Execute(context.Background(), helloPlan(), func(error) {}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Execute: err = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-blockingDone; err != nil {
		t.Fatalf("first execution: %v", err)
	}
}

func TestLayoutSwitchFailureStillTypes(t *testing.T) {
	typist := input.NewSimulatedTypist()
	switcher := input.NewSimulatedSwitcher()
	switcher.Err = errors.New("ibus gone")
	e := New(typist, switcher, logging.Default())

	if err := execute(t, e, helloPlan()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := typist.Journal(); got != "backspace:5,type:hello" {
		t.Errorf("journal = %q", got)
	}
}

func TestTypistFailurePropagates(t *testing.T) {
	typist := input.NewSimulatedTypist()
	typist.Err = errors.New("uinput gone")
	e := New(typist, input.NewSimulatedSwitcher(), logging.Default())

	if err := execute(t, e, helloPlan()); err == nil {
		t.Fatal("expected typist error")
	}
	if e.Busy() {
		t.Error("executor still busy after failure")
	}
}
