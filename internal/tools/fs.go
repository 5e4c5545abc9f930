package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var excludedDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, "node_modules": true,
	".venv": true, "venv": true, "dist": true, "build": true,
	"__pycache__": true, ".tox": true, ".mypy_cache": true,
}

var excludedSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".pdf", ".zip", ".ico", ".min.js", ".min.css"}

func isExcludedFile(name string) bool {
	lower := strings.ToLower(name)
	for _, suf := range excludedSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// ReadFileTool implements read_file: full text, or a 1-based inclusive line
// slice when line_start/line_end are given.
func ReadFileTool(env *Env) Tool {
	return Tool{
		Name:        "read_file",
		Description: "Read a UTF-8 text file relative to the repository root, optionally sliced by line range.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":       map[string]interface{}{"type": "string"},
				"line_start": map[string]interface{}{"type": "integer"},
				"line_end":   map[string]interface{}{"type": "integer"},
			},
			"required": []string{"path"},
		},
		Invoke: func(call ToolCall) ToolResult {
			rel := argString(call, "path", "")
			abs, err := resolvePath(env.RepoDir, rel)
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			b, err := os.ReadFile(abs)
			if os.IsNotExist(err) {
				text := "NOT_FOUND: " + rel
				if env.Notes != nil {
					env.Notes.AutoNoteReadNotFound("read_file", text)
				}
				return ToolResult{Text: text}
			}
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			text := string(b)
			startArg, hasStart := argIntPtr(call, "line_start")
			endArg, hasEnd := argIntPtr(call, "line_end")
			if !hasStart && !hasEnd {
				return ToolResult{Text: text}
			}
			lines := strings.Split(text, "\n")
			start, end := 1, len(lines)
			if hasStart {
				start = maxInt(1, startArg)
			}
			if hasEnd {
				end = maxInt(1, endArg)
			}
			if start > end {
				start, end = end, start
			}
			if start > len(lines) {
				return ToolResult{Text: ""}
			}
			if end > len(lines) {
				end = len(lines)
			}
			return ToolResult{Text: strings.Join(lines[start-1:end], "\n")}
		},
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// WriteFileTool implements write_file: creates parent directories, writes
// UTF-8 content, returns a byte-count summary.
func WriteFileTool(env *Env) Tool {
	return Tool{
		Name:        "write_file",
		Description: "Write UTF-8 content to a file relative to the repository root, creating parent directories.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":    map[string]interface{}{"type": "string"},
				"content": map[string]interface{}{"type": "string"},
			},
			"required": []string{"path", "content"},
		},
		Invoke: func(call ToolCall) ToolResult {
			rel := strings.ReplaceAll(argString(call, "path", ""), "\\", "/")
			content := argString(call, "content", "")
			abs, err := resolvePath(env.RepoDir, rel)
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			return ToolResult{Text: fmt.Sprintf("WROTE %s (%d bytes)", rel, len(content))}
		},
	}
}

// ListDirTool implements list_dir: a recursive listing under path, pruning
// VCS/dependency/build directories and obviously binary files.
func ListDirTool(env *Env) Tool {
	return Tool{
		Name:        "list_dir",
		Description: "List files under a directory relative to the repository root, respecting common ignore rules.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
		},
		Invoke: func(call ToolCall) ToolResult {
			rel := argString(call, "path", ".")
			abs, err := resolvePath(env.RepoDir, rel)
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			info, err := os.Stat(abs)
			if os.IsNotExist(err) {
				return ToolResult{Text: ""}
			}
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			if !info.IsDir() {
				return ToolResult{Text: filepath.Base(abs)}
			}

			var results []string
			err = filepath.Walk(abs, func(path string, fi os.FileInfo, walkErr error) error {
				if walkErr != nil {
					return nil
				}
				rel, _ := filepath.Rel(abs, path)
				if rel == "." {
					return nil
				}
				if fi.IsDir() {
					if excludedDirs[strings.ToLower(fi.Name())] {
						return filepath.SkipDir
					}
					return nil
				}
				if isExcludedFile(fi.Name()) {
					return nil
				}
				results = append(results, filepath.ToSlash(rel))
				return nil
			})
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			sort.Strings(results)
			return ToolResult{Text: strings.Join(results, "\n")}
		},
	}
}

// DebugEnvTool implements debug_env: a short diagnostic of the repo root.
func DebugEnvTool(env *Env) Tool {
	return Tool{
		Name:        "debug_env",
		Description: "Show the current repository directory and its top-level contents.",
		Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Invoke: func(call ToolCall) ToolResult {
			entries, err := os.ReadDir(env.RepoDir)
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			var lines []string
			lines = append(lines, fmt.Sprintf("Repository directory: %s", env.RepoDir))
			lines = append(lines, fmt.Sprintf("Contents (%d items):", len(entries)))
			limit := len(entries)
			if limit > 10 {
				limit = 10
			}
			for _, e := range entries[:limit] {
				if e.IsDir() {
					lines = append(lines, "  DIR:  "+e.Name()+"/")
				} else {
					lines = append(lines, "  FILE: "+e.Name())
				}
			}
			if len(entries) > 10 {
				lines = append(lines, fmt.Sprintf("  ... and %d more items", len(entries)-10))
			}
			return ToolResult{Text: strings.Join(lines, "\n")}
		},
	}
}
