package graph

import (
	"testing"

	"devtwin/internal/plan"
	"devtwin/internal/runstate"
)

func TestAfterPlanner_ForcesPartialFinalizeAtLoopBudget(t *testing.T) {
	g := Build(2)
	s := &runstate.State{Transcript: []runstate.TranscriptEntry{{}, {}}}

	next := g.afterPlanner(s)

	if next != End {
		t.Fatalf("expected End, got %q", next)
	}
	if s.Iteration == nil || !s.Iteration.Done {
		t.Fatalf("expected forced Iteration.Done, got %+v", s.Iteration)
	}
}

func TestAfterPlanner_ProceedsToCoderUnderBudget(t *testing.T) {
	g := Build(8)
	s := &runstate.State{}

	if next := g.afterPlanner(s); next != "coder" {
		t.Fatalf("expected coder, got %q", next)
	}
}

func TestAfterTestLint_EndsWhenTestsOKAndPlanComplete(t *testing.T) {
	g := Build(8)
	ok := true
	s := &runstate.State{
		LastTest: &runstate.LastTest{OK: &ok},
		Plan: &plan.Plan{Steps: []plan.Step{
			{ID: "a", Status: plan.StatusCompleted},
		}},
	}

	if next := g.afterTestLint(s); next != End {
		t.Fatalf("expected End, got %q", next)
	}
}

func TestAfterTestLint_LoopsBackToCoderOnFailingTests(t *testing.T) {
	g := Build(8)
	ok := false
	s := &runstate.State{
		LastTest:   &runstate.LastTest{OK: &ok},
		Transcript: []runstate.TranscriptEntry{{}},
	}

	if next := g.afterTestLint(s); next != "coder" {
		t.Fatalf("expected coder, got %q", next)
	}
}

func TestAfterTestLint_LoopsBackOnIncompletePlan(t *testing.T) {
	g := Build(8)
	ok := true
	s := &runstate.State{
		LastTest: &runstate.LastTest{OK: &ok},
		Plan: &plan.Plan{Steps: []plan.Step{
			{ID: "a", Status: plan.StatusPending},
		}},
	}

	if next := g.afterTestLint(s); next != "coder" {
		t.Fatalf("expected coder, got %q", next)
	}
}

func TestAfterTestLint_StopsAtLoopBudgetEvenIfFailing(t *testing.T) {
	g := Build(1)
	ok := false
	s := &runstate.State{
		LastTest:   &runstate.LastTest{OK: &ok},
		Transcript: []runstate.TranscriptEntry{{}},
	}

	next := g.afterTestLint(s)

	if next != End {
		t.Fatalf("expected End, got %q", next)
	}
	if s.Iteration == nil || !s.Iteration.Done {
		t.Fatalf("expected forced Iteration.Done, got %+v", s.Iteration)
	}
}
