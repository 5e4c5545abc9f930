// Package graph drives the devtwin node graph: analysis -> setup -> planner,
// then a coder/test_lint cycle until the plan is complete or the loop budget
// is spent. It is deliberately not a framework: a transition is just a
// function from the current run state to the name of the next node.
package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"devtwin/internal/agents"
	"devtwin/internal/runstate"
	"devtwin/internal/telemetry"
)

// End is the terminal pseudo-node name returned by a transition function
// to stop the run.
const End = "END"

// NodeFunc runs one node's work against the run state.
type NodeFunc func(ctx context.Context, s *runstate.State) error

// TransitionFunc decides which node runs next, or returns End.
type TransitionFunc func(s *runstate.State) string

type nodeEntry struct {
	run  NodeFunc
	next TransitionFunc
}

// DefaultMaxLoops bounds the coder/test_lint cycle so a stuck run still
// terminates with a partial commit instead of looping forever.
const DefaultMaxLoops = 8

// Graph is a map from node name to its run function and transition
// function, plus the entry point.
type Graph struct {
	nodes   map[string]nodeEntry
	entry   string
	maxLoops int
}

func wrapSync(f func(*runstate.State) error) NodeFunc {
	return func(_ context.Context, s *runstate.State) error { return f(s) }
}

// Build assembles the devtwin node graph:
//
//	analysis -> setup -> planner -> (coder <-> test_lint) -> END
//
// After planner, if the run has already spent maxLoops iterations the graph
// forces a partial finalize and ends instead of entering the coder/test_lint
// cycle. After test_lint, the graph ends once tests pass (or there are none)
// and every plan step is complete; otherwise it loops back to coder.
func Build(maxLoops int) *Graph {
	if maxLoops <= 0 {
		maxLoops = DefaultMaxLoops
	}
	g := &Graph{nodes: make(map[string]nodeEntry), entry: "analysis", maxLoops: maxLoops}

	g.nodes["analysis"] = nodeEntry{run: agents.Analysis, next: always("setup")}
	g.nodes["setup"] = nodeEntry{run: agents.Setup, next: always("planner")}
	g.nodes["planner"] = nodeEntry{run: agents.Planner, next: g.afterPlanner}
	g.nodes["coder"] = nodeEntry{run: agents.Coder, next: always("test_lint")}
	g.nodes["test_lint"] = nodeEntry{run: wrapSync(agents.TestLint), next: g.afterTestLint}

	return g
}

func always(next string) TransitionFunc {
	return func(*runstate.State) string { return next }
}

// afterPlanner forces a partial finalize and ends the run once the loop
// budget has been spent, otherwise proceeds to coder.
func (g *Graph) afterPlanner(s *runstate.State) string {
	if len(s.Transcript) >= g.maxLoops {
		s.Iteration = &runstate.Iteration{
			CommitMessage: "dev-twin partial: loop budget exhausted before plan completion",
			Done:          true,
		}
		writeEndMarker(s, "max_loops_reached")
		return End
	}
	return "coder"
}

// afterTestLint ends the run once tests pass (or there are none) and the
// plan has no incomplete steps, otherwise sends the run back to coder with
// a note explaining why another pass is needed.
func (g *Graph) afterTestLint(s *runstate.State) string {
	testsOK := s.LastTest == nil || (s.LastTest.OK != nil && *s.LastTest.OK)
	planComplete := s.Plan == nil || len(s.Plan.Incomplete()) == 0

	if testsOK && planComplete {
		writeEndMarker(s, "complete")
		return End
	}

	if len(s.Transcript) >= g.maxLoops {
		if s.Iteration == nil {
			s.Iteration = &runstate.Iteration{}
		}
		s.Iteration.Done = true
		if s.Iteration.CommitMessage == "" {
			s.Iteration.CommitMessage = "dev-twin partial: loop budget exhausted"
		}
		writeEndMarker(s, "max_loops_reached")
		return End
	}

	reason := "tests failing"
	if testsOK && !planComplete {
		reason = "plan steps remain incomplete"
	}
	if s.LiveUpdate != nil {
		s.LiveUpdate(fmt.Sprintf("[graph] Returning to coder: %s", reason))
	}
	if s.Notes != nil {
		s.Notes.Append("graph", "looping back to coder: "+reason)
	}
	return "coder"
}

func writeEndMarker(s *runstate.State, reason string) {
	if s.ArtifactsDir == "" {
		return
	}
	_ = os.WriteFile(filepath.Join(s.ArtifactsDir, "end_marker.txt"), []byte(reason+"\n"), 0o644)
}

// Run drives the graph from its entry point to End, invoking each node's
// run function followed by its transition function in turn. Every node's
// execution is recorded as one telemetry span, named after the node.
func (g *Graph) Run(ctx context.Context, s *runstate.State) error {
	tel := telemetry.NewTelemetry()
	name := g.entry
	step := 0
	for name != End {
		entry, ok := g.nodes[name]
		if !ok {
			return fmt.Errorf("graph: unknown node %q", name)
		}
		start := time.Now()
		err := entry.run(ctx, s)
		end := time.Now()
		tel.RecordStep(ctx, telemetry.StepEvent{
			StepIndex:  step,
			StepName:   name,
			Success:    err == nil,
			StartTime:  start,
			EndTime:    end,
			DurationMs: end.Sub(start).Milliseconds(),
		})
		if err != nil {
			return fmt.Errorf("graph: node %q failed: %w", name, err)
		}
		step++
		name = entry.next(s)
	}
	return nil
}
