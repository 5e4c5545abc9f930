package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"devtwin/internal/plan"
)

// FinalizeTool implements finalize: the gate a run must pass through to end
// successfully. It validates the plan's completeness (a run with no plan
// passes this check), runs the advisory placeholder scan,
// and records the accepted commit message as a note.
func FinalizeTool(env *Env) Tool {
	return Tool{
		Name:        "finalize",
		Description: "Signal that the work is complete and request the run end, with a commit message summarizing the change.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"commit_message": map[string]interface{}{"type": "string"},
				"done":           map[string]interface{}{"type": "boolean"},
			},
			"required": []string{"commit_message"},
		},
		Invoke: func(call ToolCall) ToolResult {
			args := plan.FinalizeArgs{
				CommitMessage: argString(call, "commit_message", ""),
				Done:          argBool(call, "done", true),
			}
			result := plan.ValidateFinalize(args, env.PlanStore, true, plan.DefaultMaxStuckRatio)
			if !result.Accepted {
				var ids []string
				for _, s := range result.IncompleteSteps {
					ids = append(ids, fmt.Sprintf("%s[%s]", s.ID, s.Status))
				}
				msg := "REJECTED: " + strings.Join(result.Reasons, "; ")
				if len(ids) > 0 {
					msg += " (" + strings.Join(ids, ", ") + ")"
				}
				return ToolResult{Text: msg}
			}

			scan := plan.ScanPlaceholders(osReadDirAdapter, osReadFileAdapter, env.RepoDir)
			advisory := ""
			if scan.TODOCount > 0 || scan.NotImplementedCount > 0 {
				advisory = fmt.Sprintf(" (advisory: %d TODO-style markers, %d not-implemented markers remain)",
					scan.TODOCount, scan.NotImplementedCount)
			}

			if env.Notes != nil {
				env.Notes.AutoNoteFinalize(args.CommitMessage)
			}
			return ToolResult{Text: "ACCEPTED: " + args.CommitMessage + advisory}
		},
	}
}

func osReadDirAdapter(dir string) ([]plan.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]plan.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = plan.DirEntry{Name: e.Name(), IsDir: e.IsDir()}
	}
	return out, nil
}

func osReadFileAdapter(path string) (string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
