package tools

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const searchMaxResults = 200

// SearchTool implements search: a regex grep over files under path,
// pruning the same directories list_dir prunes.
func SearchTool(env *Env) Tool {
	return Tool{
		Name:        "search",
		Description: "Search files under a directory for a regex pattern.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{"type": "string"},
				"path":    map[string]interface{}{"type": "string"},
			},
			"required": []string{"pattern"},
		},
		Invoke: func(call ToolCall) ToolResult {
			pattern := argString(call, "pattern", "")
			rel := argString(call, "path", ".")
			abs, err := resolvePath(env.RepoDir, rel)
			if err != nil {
				return ToolResult{Text: "ERROR: " + err.Error()}
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return ToolResult{Text: "ERROR: bad regex: " + err.Error()}
			}

			var results []string
			_ = filepath.Walk(abs, func(path string, fi os.FileInfo, walkErr error) error {
				if walkErr != nil || len(results) >= searchMaxResults {
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
				if fi.Size() > 2*1024*1024 {
					return nil
				}
				f, err := os.Open(path)
				if err != nil {
					return nil
				}
				defer f.Close()
				relPath, _ := filepath.Rel(abs, path)
				scanner := bufio.NewScanner(f)
				scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
				lineNo := 0
				for scanner.Scan() {
					lineNo++
					if re.MatchString(scanner.Text()) {
						results = append(results, fmt.Sprintf("%s:%d:%s", filepath.ToSlash(relPath), lineNo, scanner.Text()))
						if len(results) >= searchMaxResults {
							break
						}
					}
				}
				return nil
			})
			return ToolResult{Text: strings.Join(results, "\n")}
		},
	}
}
