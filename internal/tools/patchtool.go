package tools

import (
	"fmt"
	"strings"

	"devtwin/internal/patch"
)

// ApplyPatchTool implements apply_patch: bridges to the V4A patch engine,
// adding the friendlier error suggestions the driver gives the model when a
// patch is malformed or its context doesn't match (so the model can retry
// instead of stalling the loop).
func ApplyPatchTool(env *Env) Tool {
	return Tool{
		Name: "apply_patch",
		Description: "Apply a patch in the *** Begin Patch / *** End Patch format to add, update, " +
			"or delete files in the repository.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"patch": map[string]interface{}{"type": "string"},
			},
			"required": []string{"patch"},
		},
		Invoke: func(call ToolCall) ToolResult {
			patchText := argString(call, "patch", "")
			if strings.TrimSpace(patchText) == "" {
				return ToolResult{Text: "ERROR: empty patch"}
			}
			if !strings.Contains(patchText, "*** Begin Patch") {
				return ToolResult{Text: "ERROR: patch is missing the '*** Begin Patch' marker"}
			}
			if !strings.Contains(patchText, "*** End Patch") {
				return ToolResult{Text: "ERROR: patch is missing the '*** End Patch' marker"}
			}

			commit, err := patch.ApplyInRepo(env.RepoDir, patchText)
			if err != nil {
				return ToolResult{Text: "ERROR: " + suggestFix(err.Error())}
			}

			var lines []string
			for _, p := range commit.Order {
				ch := commit.Changes[p]
				lines = append(lines, fmt.Sprintf("%s %s", strings.ToUpper(string(ch.Type)), p))
			}
			return ToolResult{Text: "Done!\n" + strings.Join(lines, "\n")}
		},
	}
}

// suggestFix appends a short hint for the common failure modes a model runs
// into when composing a patch, so the raw engine error isn't a dead end.
func suggestFix(msg string) string {
	switch {
	case strings.Contains(msg, "Invalid Context"), strings.Contains(msg, "Invalid EOF Context"):
		return msg + " — re-read the file with read_file and copy its exact current lines into the context."
	case strings.Contains(msg, "escapes repository root"), strings.Contains(msg, "absolute paths"):
		return msg + " — use a path relative to the repository root."
	case strings.Contains(msg, "Update File Error"):
		return msg + " — the file must be opened with a matching '*** Update File:' header before its hunks."
	default:
		return msg
	}
}
