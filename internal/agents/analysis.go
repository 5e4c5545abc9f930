// Package agents implements the per-role workflow nodes (analysis,
// planner, setup, coder, test_lint, unified). The LLM-driven nodes are
// func(context.Context, *runstate.State) error and configure
// internal/toolloop with a role-specific tool subset and prompt; TestLint is
// a func(*runstate.State) error that runs lint and tests directly.
package agents

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"devtwin/internal/filegraph"
	"devtwin/internal/langdetect"
	"devtwin/internal/prompt"
	"devtwin/internal/runstate"
	"devtwin/internal/tools"
	"devtwin/internal/toolloop"
)

var snapshotFiles = []string{
	"package.json", "pyproject.toml", "requirements.txt", "go.mod",
	"Cargo.toml", "pom.xml", "build.gradle", "Dockerfile", "Makefile",
	"README.md", "README.rst",
}

func gatherRepoSnapshot(repoDir string) string {
	entries, _ := os.ReadDir(repoDir)
	var tops []string
	for _, e := range entries {
		tops = append(tops, e.Name())
	}

	var snippets []string
	for _, name := range snapshotFiles {
		p := filepath.Join(repoDir, name)
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		content := string(b)
		if len(content) > 5000 {
			content = content[:5000]
		}
		snippets = append(snippets, "## "+name+"\n"+content)
	}

	return "# Top-level entries:\n" + strings.Join(tops, "\n") + "\n\n" + strings.Join(snippets, "\n\n")
}

// Analysis infers project facts (language, build/test/run commands,
// package manager) and writes a Dockerfile suggestion when it has one: the
// model's, or a Node template when a JS package manager is detected; other
// repositories get an empty suggestion unless the model supplies one.
// Idempotent: skipped if Analysis is already populated.
func Analysis(ctx context.Context, s *runstate.State) error {
	if len(s.Analysis) > 0 {
		return nil
	}

	breakdown := langdetect.Breakdown(s.RepoDir)
	snapshot := gatherRepoSnapshot(s.RepoDir)

	env := &tools.Env{
		RepoDir:      s.RepoDir,
		ArtifactsDir: s.ArtifactsDir,
		Events:       s.Events,
		Notes:        s.Notes,
		PlanStore:    s.PlanStore,
	}
	registry := tools.BuildForRole(tools.RoleAnalysis, env)

	agentCfg := s.Config.Agent("analysis")
	systemPrompt, err := prompt.NewLoader().Load("analysis", nil)
	if err != nil {
		systemPrompt = fallbackAnalysisPrompt
	}

	if s.LiveUpdate != nil {
		s.LiveUpdate("[analysis] Reading project files and inferring type...")
	}

	result, err := toolloop.Run(ctx, s.Provider, registry, systemPrompt, snapshot, toolloop.Options{
		Model:    s.Settings.Model,
		MaxSteps: agentCfg.MaxSteps,
		NoteTag:  "analysis",
		Events:   s.Events,
		Notes:    s.Notes,
	})
	if err != nil {
		return err
	}

	data := extractFirstJSONObject(result.LastAIText)
	analysis := heuristicAnalysis(s.RepoDir, data)
	analysis["language_breakdown"] = breakdown
	analysis["relevant_files"] = relevantFiles(s.RepoDir, s.Issue.Title+" "+s.Issue.Body)
	s.Analysis = analysis

	if s.ArtifactsDir != "" {
		if b, err := json.MarshalIndent(analysis, "", "  "); err == nil {
			_ = os.WriteFile(filepath.Join(s.ArtifactsDir, "analysis.json"), b, 0o644)
		}
	}
	return nil
}

const fallbackAnalysisPrompt = `You are an expert project archeologist. Infer project type and environment details.
Return strict JSON with keys: project_type, build_commands, test_commands, run_commands, package_manager, dockerfile_suggested.`

// heuristicAnalysis fills any field the model left out using presence of
// well-known manifest/lockfiles, so analysis never comes back empty even
// when the model's JSON is incomplete.
func heuristicAnalysis(repoDir string, data map[string]interface{}) map[string]interface{} {
	pkgJSON := filepath.Join(repoDir, "package.json")
	var pm string
	switch {
	case fileExists(filepath.Join(repoDir, "pnpm-lock.yaml")):
		pm = "pnpm"
	case fileExists(filepath.Join(repoDir, "yarn.lock")):
		pm = "yarn"
	case fileExists(pkgJSON):
		pm = "npm"
	}

	scripts := readPackageScripts(pkgJSON)

	buildCmds := stringSliceField(data, "build_commands")
	if len(buildCmds) == 0 && pm != "" {
		buildCmds = []string{pm + " install"}
		if _, ok := scripts["build"]; ok {
			buildCmds = append(buildCmds, pm+" run build")
		}
	}
	testCmds := stringSliceField(data, "test_commands")
	if len(testCmds) == 0 && pm != "" {
		testCmds = []string{pm + " test"}
	}
	runCmds := stringSliceField(data, "run_commands")
	if len(runCmds) == 0 && pm != "" {
		if _, ok := scripts["dev"]; ok {
			runCmds = []string{pm + " run dev"}
		}
	}

	dockerfile, _ := data["dockerfile_suggested"].(string)
	if dockerfile == "" && pm != "" {
		dockerfile = "FROM node:20-alpine\n" +
			"RUN apk add --no-cache bash git ca-certificates ripgrep\n" +
			"WORKDIR /workspace\n" +
			"COPY package*.json ./\n" +
			"RUN " + pm + " install\n" +
			"COPY . .\n" +
			"CMD [\"sh\", \"-lc\", \"echo Ready; sleep infinity\"]\n"
	}

	projectType, _ := data["project_type"].(string)
	if projectType == "" {
		if pm != "" {
			projectType = "node"
		} else {
			projectType = "unknown"
		}
	}

	packageManager, _ := data["package_manager"].(string)
	if packageManager == "" {
		packageManager = pm
	}

	return map[string]interface{}{
		"project_type":        projectType,
		"build_commands":      buildCmds,
		"test_commands":       testCmds,
		"run_commands":        runCmds,
		"package_manager":     packageManager,
		"dockerfile_suggested": dockerfile,
	}
}

// relevantFiles ranks repo files by how well they match the issue text,
// expanded one hop along the import/dependency graph and weighted by
// PageRank centrality, so the coder node gets a short, high-signal
// starting point instead of having to read the whole tree.
func relevantFiles(repoDir, query string) []string {
	g, err := filegraph.NewBuilder(repoDir).Build()
	if err != nil || g == nil {
		return nil
	}
	g.PageRank(0.85, 20)
	paths := filegraph.NewOptimizer(g).OptimizeContext(query, 15)
	return paths
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readPackageScripts(pkgJSONPath string) map[string]interface{} {
	b, err := os.ReadFile(pkgJSONPath)
	if err != nil {
		return map[string]interface{}{}
	}
	var doc struct {
		Scripts map[string]interface{} `json:"scripts"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return map[string]interface{}{}
	}
	if doc.Scripts == nil {
		return map[string]interface{}{}
	}
	return doc.Scripts
}

func stringSliceField(data map[string]interface{}, key string) []string {
	raw, ok := data[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// extractFirstJSONObject takes the text from the first "{" to the last "}"
// and parses it, returning an empty map on any failure so callers can always
// treat the result as present-but-possibly-empty.
func extractFirstJSONObject(text string) map[string]interface{} {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return map[string]interface{}{}
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return map[string]interface{}{}
	}
	return data
}
