package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"devtwin/internal/plan"
)

// PlanReadTool implements plan_read: returns the current plan.json text, or
// an empty-plan placeholder when no plan has been written yet.
func PlanReadTool(env *Env) Tool {
	return Tool{
		Name:        "plan_read",
		Description: "Read the current plan.",
		Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Invoke: func(call ToolCall) ToolResult {
			text, ok := env.PlanStore.Text()
			if !ok {
				return ToolResult{Text: `{"steps":[]}`}
			}
			return ToolResult{Text: text}
		},
	}
}

// planStepInput mirrors the JSON shape plan_update accepts for a step: id
// and description are required, rationale optional, status omitted to
// preserve whatever status the step already has.
type planStepInput struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
	Status      string `json:"status"`
}

// PlanUpdateTool implements plan_update: one of four actions — replace_steps
// installs a new ordered step list (preserving existing status per id),
// mark_completed/mark_stuck/mark_in_progress mutate specific steps by id.
func PlanUpdateTool(env *Env) Tool {
	return Tool{
		Name:        "plan_update",
		Description: "Replace or update the current plan's steps.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"action": map[string]interface{}{"type": "string", "enum": []string{"replace_steps", "mark_completed", "mark_stuck", "mark_in_progress"}},
				"steps":  map[string]interface{}{"type": "array"},
				"ids":    map[string]interface{}{"type": "array"},
				"id":     map[string]interface{}{"type": "string"},
			},
			"required": []string{"action"},
		},
		Invoke: func(call ToolCall) ToolResult {
			action := argString(call, "action", "")
			p, err := env.PlanStore.Load()
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}

			switch action {
			case "replace_steps":
				steps, err := decodeSteps(call.Arguments["steps"])
				if err != nil {
					return ToolResult{Text: "ERROR: " + err.Error()}
				}
				p.ReplaceSteps(steps)
			case "mark_completed":
				p.MarkCompleted(argStringSlice(call, "ids"))
			case "mark_stuck":
				p.MarkStuck(argStringSlice(call, "ids"))
			case "mark_in_progress":
				p.MarkInProgress(argString(call, "id", ""))
			default:
				return ToolResult{Text: "ERROR: unknown action: " + action}
			}

			if err := env.PlanStore.Save(p); err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			return ToolResult{Text: fmt.Sprintf("PLAN_UPDATED steps=%d", len(p.Steps))}
		},
	}
}

func decodeSteps(raw interface{}) ([]plan.Step, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("steps must be an array")
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	var inputs []planStepInput
	if err := json.Unmarshal(b, &inputs); err != nil {
		return nil, err
	}
	out := make([]plan.Step, len(inputs))
	for i, in := range inputs {
		out[i] = plan.Step{
			ID:          in.ID,
			Description: in.Description,
			Rationale:   in.Rationale,
			Status:      plan.Status(strings.TrimSpace(in.Status)),
		}
	}
	return out, nil
}
