package tools

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// compileWithFlags builds a regex honoring the i/m/s single-letter flags the
// driver's replace tools accept, the same convention the shell's sed-like
// replace helpers use.
func compileWithFlags(pattern, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		}
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// ReplaceInFileTool implements replace_in_file: a regex find/replace across
// an entire file, with an optional replace-count cap.
func ReplaceInFileTool(env *Env) Tool {
	return Tool{
		Name:        "replace_in_file",
		Description: "Replace regex matches within a file relative to the repository root.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":        map[string]interface{}{"type": "string"},
				"pattern":     map[string]interface{}{"type": "string"},
				"replacement": map[string]interface{}{"type": "string"},
				"flags":       map[string]interface{}{"type": "string"},
				"count":       map[string]interface{}{"type": "integer"},
			},
			"required": []string{"path", "pattern", "replacement"},
		},
		Invoke: func(call ToolCall) ToolResult {
			rel := argString(call, "path", "")
			pattern := argString(call, "pattern", "")
			replacement := argString(call, "replacement", "")
			flags := argString(call, "flags", "")
			count := argInt(call, "count", -1)

			abs, err := resolvePath(env.RepoDir, rel)
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			b, err := os.ReadFile(abs)
			if os.IsNotExist(err) {
				return ToolResult{Text: "NOT_FOUND: " + rel}
			}
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			re, err := compileWithFlags(pattern, flags)
			if err != nil {
				return ToolResult{Text: "ERROR: bad regex: " + err.Error()}
			}

			text := string(b)
			matches := re.FindAllStringIndex(text, -1)
			if len(matches) == 0 {
				return ToolResult{Text: "NO_MATCHES"}
			}

			n := count
			if n < 0 {
				n = -1
			}
			updated := re.ReplaceAllStringFunc(text, func(m string) string {
				if n == 0 {
					return m
				}
				if n > 0 {
					n--
				}
				return re.ReplaceAllString(m, replacement)
			})
			if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			return ToolResult{Text: fmt.Sprintf("REPLACED %d match(es) in %s", len(matches), rel)}
		},
	}
}

// ReplaceRegionTool implements replace_region: replace the span between the
// first lines matching start_pattern and end_pattern (inclusive) with new
// content, for edits too structural for a single-line regex replace.
func ReplaceRegionTool(env *Env) Tool {
	return Tool{
		Name:        "replace_region",
		Description: "Replace the region between a start and end line pattern (inclusive) in a file.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":          map[string]interface{}{"type": "string"},
				"start_pattern": map[string]interface{}{"type": "string"},
				"end_pattern":   map[string]interface{}{"type": "string"},
				"content":       map[string]interface{}{"type": "string"},
			},
			"required": []string{"path", "start_pattern", "end_pattern", "content"},
		},
		Invoke: func(call ToolCall) ToolResult {
			rel := argString(call, "path", "")
			startPattern := argString(call, "start_pattern", "")
			endPattern := argString(call, "end_pattern", "")
			content := argString(call, "content", "")

			abs, err := resolvePath(env.RepoDir, rel)
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			b, err := os.ReadFile(abs)
			if os.IsNotExist(err) {
				return ToolResult{Text: "NOT_FOUND: " + rel}
			}
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			startRe, err := regexp.Compile(startPattern)
			if err != nil {
				return ToolResult{Text: "ERROR: bad start_pattern: " + err.Error()}
			}
			endRe, err := regexp.Compile(endPattern)
			if err != nil {
				return ToolResult{Text: "ERROR: bad end_pattern: " + err.Error()}
			}

			lines := strings.Split(string(b), "\n")
			startIdx := -1
			for i, line := range lines {
				if startRe.MatchString(line) {
					startIdx = i
					break
				}
			}
			if startIdx == -1 {
				return ToolResult{Text: "NO_START_MATCH"}
			}
			endIdx := -1
			for i := startIdx; i < len(lines); i++ {
				if endRe.MatchString(lines[i]) {
					endIdx = i
					break
				}
			}
			if endIdx == -1 {
				return ToolResult{Text: "NO_END_MATCH"}
			}

			var out []string
			out = append(out, lines[:startIdx]...)
			out = append(out, strings.Split(content, "\n")...)
			out = append(out, lines[endIdx+1:]...)
			if err := os.WriteFile(abs, []byte(strings.Join(out, "\n")), 0o644); err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			return ToolResult{Text: fmt.Sprintf("REPLACED region lines %d-%d in %s", startIdx+1, endIdx+1, rel)}
		},
	}
}
