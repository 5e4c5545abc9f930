// Package journal implements the append-only events and notes streams
// every run writes to its artifacts directory, plus the regenerated
// human-readable notes.md view.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Event is an open-schema journal record; stable fields are Type, Tool,
// Args, Result and Step, matched on the devtwin events.jsonl contract.
type Event struct {
	Type               string                 `json:"type,omitempty"`
	Tool               string                 `json:"tool,omitempty"`
	Args               map[string]interface{} `json:"args,omitempty"`
	Result             string                 `json:"result,omitempty"`
	Step               int                    `json:"step,omitempty"`
	Content            string                 `json:"content,omitempty"`
	MessagesPreview    string                 `json:"messages_preview,omitempty"`
	PlanText           string                 `json:"plan_text,omitempty"`
	TurnsRemaining     int                    `json:"turns_remaining,omitempty"`
	MaxSteps           int                    `json:"max_steps,omitempty"`
	HasToolCalls       bool                   `json:"has_tool_calls,omitempty"`
}

// Emitter mirrors every event to an in-memory slice and to events.jsonl,
// best-effort: a write failure here must never fail the caller's operation.
type Emitter struct {
	mu           sync.Mutex
	artifactsDir string
	mirror       []Event
}

func NewEmitter(artifactsDir string) *Emitter {
	return &Emitter{artifactsDir: artifactsDir}
}

// Emit appends ev to the in-memory mirror and to events.jsonl.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mirror = append(e.mirror, ev)

	if e.artifactsDir == "" {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	path := filepath.Join(e.artifactsDir, "events.jsonl")
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(b, '\n'))
}

// Events returns a copy of the in-memory mirror.
func (e *Emitter) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.mirror))
	copy(out, e.mirror)
	return out
}

// Assistant records a non-empty assistant turn.
func (e *Emitter) Assistant(content string, hasToolCalls bool, step int) {
	if strings.TrimSpace(content) == "" {
		return
	}
	e.Emit(Event{Type: "assistant", Content: content, HasToolCalls: hasToolCalls, Step: step})
}

// ToolInvocation records a {tool, args, result} event, per §4.3.
func (e *Emitter) ToolInvocation(tool string, args map[string]interface{}, result string) {
	e.Emit(Event{Type: "tool", Tool: tool, Args: args, Result: result})
}

// Error records a synthetic-assistant-message LLM error per §7.
func (e *Emitter) Error(content string) {
	e.Emit(Event{Type: "error", Content: content})
}

// StepInput records the transient context injected at the start of a step.
func (e *Emitter) StepInput(planText string, step, maxSteps int) {
	e.Emit(Event{Type: "step_input", PlanText: clip(planText, 2000), Step: step, MaxSteps: maxSteps, TurnsRemaining: maxSteps - step - 1})
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SummarizeLastTest scans events for the most recent shell event whose
// result carries the framed "[exit N]" line and extracts its exit code (the
// command is not checked for being a test run), mirroring the driver's summarize_last_test_event helper.
func SummarizeLastTest(events []Event) (command string, exitCode int, ok bool, found bool) {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Type != "tool" || ev.Tool != "shell" {
			continue
		}
		idx := strings.Index(ev.Result, "[exit ")
		if idx == -1 {
			continue
		}
		end := strings.Index(ev.Result[idx:], "]")
		if end == -1 {
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(ev.Result[idx+6 : idx+end]))
		if err != nil {
			continue
		}
		cmd, _ := ev.Args["command"].(string)
		return cmd, code, code == 0, true
	}
	return "", 0, false, false
}
