package agents

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"devtwin/internal/runstate"
	"devtwin/internal/tools"
)

var failedTestPattern = regexp.MustCompile(`(?m)^FAILED\s+([\w./\\:-]+)`)
var exitCodePattern = regexp.MustCompile(`\[exit (-?\d+)\]`)

// TestLint is the non-LLM node: it runs benchmark-scoped or analysis-
// provided test commands, records the outcome, runs discovered lint
// commands best-effort, reloads the plan from disk, and marks the
// iteration done when tests pass and the plan is complete.
func TestLint(s *runstate.State) error {
	env := &tools.Env{
		RepoDir:      s.RepoDir,
		ArtifactsDir: s.ArtifactsDir,
		Docker:       dockerTarget(s),
		Analysis:     s.Analysis,
		Events:       s.Events,
		Notes:        s.Notes,
		PlanStore:    s.PlanStore,
		Config:       shellConfig(s),
	}
	shell := tools.ShellTool(env)

	testCmds := discoverTestCommands(s)
	timeout := 180
	if s.Bench != nil && s.Bench.TestTimeout > 0 {
		timeout = s.Bench.TestTimeout
	}

	var lastTest *runstate.LastTest
	for _, cmd := range testCmds {
		res := shell.Invoke(tools.ToolCall{Name: "shell", Arguments: map[string]interface{}{"command": cmd, "timeout": timeout}})
		lastTest = summarizeTestResult(s.ArtifactsDir, cmd, res.Text)
		if lastTest.OK != nil && *lastTest.OK {
			break
		}
	}
	s.LastTest = lastTest
	if lastTest != nil {
		s.Notes.Append("test", cmdOutcomeLine(lastTest))
	}

	lintCmds := discoverLintCommands(s)
	if s.Analysis == nil {
		s.Analysis = map[string]interface{}{}
	}
	s.Analysis["lint_commands"] = lintCmds
	var lints []runstate.LintResult
	for _, cmd := range lintCmds {
		res := shell.Invoke(tools.ToolCall{Name: "shell", Arguments: map[string]interface{}{"command": cmd, "timeout": 120}})
		lints = append(lints, runstate.LintResult{Command: cmd, Preview: clip(res.Text, 400)})
	}
	if len(lints) > 0 {
		s.LastLint = lints
		if b, err := json.Marshal(lints); err == nil {
			s.Notes.Append("lint", clip(string(b), 400))
		}
	}

	reloadPlanFromDisk(s)

	allComplete := planComplete(s)
	if (lastTest == nil || (lastTest.OK != nil && *lastTest.OK)) && allComplete {
		commitMessage := "All tests passed; plan complete."
		if s.Iteration != nil && s.Iteration.CommitMessage != "" {
			commitMessage = s.Iteration.CommitMessage
		}
		s.Iteration = &runstate.Iteration{CommitMessage: commitMessage, Done: true}
	}
	return nil
}

func discoverTestCommands(s *runstate.State) []string {
	if s.Bench != nil && len(s.Bench.TestFiles) > 0 {
		return []string{"python -m pytest -q " + strings.Join(s.Bench.TestFiles, " ")}
	}
	if cmds := stringSliceField(s.Analysis, "test_commands"); len(cmds) > 0 {
		return cmds
	}
	if fileExists(filepath.Join(s.RepoDir, "package.json")) {
		return []string{"npm test -s"}
	}
	if fileExists(filepath.Join(s.RepoDir, "pyproject.toml")) || fileExists(filepath.Join(s.RepoDir, "requirements.txt")) {
		return []string{"python -m pytest -q"}
	}
	return nil
}

// discoverLintCommands is a conservative, language-agnostic heuristic:
// look for common config files or package scripts and assemble safe
// default checks.
func discoverLintCommands(s *runstate.State) []string {
	if cmds := stringSliceField(s.Analysis, "lint_commands"); len(cmds) > 0 {
		return cmds
	}
	repoDir := s.RepoDir
	var cmds []string

	if pkg := readPackageScripts(filepath.Join(repoDir, "package.json")); len(pkg) > 0 {
		if _, ok := pkg["lint"]; ok {
			cmds = append(cmds, "npm run lint")
		} else if fileExists(filepath.Join(repoDir, ".eslintrc")) || fileExists(filepath.Join(repoDir, ".eslintrc.js")) || fileExists(filepath.Join(repoDir, ".eslintrc.json")) {
			cmds = append(cmds, "npx eslint . --max-warnings=0")
		}
	}

	if fileExists(filepath.Join(repoDir, "pyproject.toml")) || fileExists(filepath.Join(repoDir, "requirements.txt")) {
		pyprojectText, _ := os.ReadFile(filepath.Join(repoDir, "pyproject.toml"))
		if fileExists(filepath.Join(repoDir, "ruff.toml")) || strings.Contains(string(pyprojectText), "[tool.ruff]") {
			cmds = append(cmds, "python -m ruff check . --format=json")
		}
		cmds = append(cmds, "python -m pyflakes .")
	}

	if fileExists(filepath.Join(repoDir, "go.mod")) {
		cmds = append(cmds, "go vet ./...")
	}
	if fileExists(filepath.Join(repoDir, "Cargo.toml")) {
		cmds = append(cmds, "cargo check")
	}
	return cmds
}

func summarizeTestResult(artifactsDir, cmd, resultText string) *runstate.LastTest {
	code := parseExitCode(resultText)
	ok := code != nil && *code == 0

	var detailsPath string
	if artifactsDir != "" {
		p := filepath.Join(artifactsDir, "last_test_output.txt")
		if err := os.WriteFile(p, []byte(resultText), 0o644); err == nil {
			detailsPath = p
		}
	}

	lastTest := &runstate.LastTest{
		Command:     cmd,
		Exit:        code,
		OK:          &ok,
		Preview:     clip(resultText, 240),
		DetailsPath: detailsPath,
	}
	if m := failedTestPattern.FindStringSubmatch(resultText); m != nil {
		lastTest.FirstFailedNode = m[1]
	}
	return lastTest
}

func parseExitCode(text string) *int {
	m := exitCodePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func cmdOutcomeLine(t *runstate.LastTest) string {
	ok := "?"
	exit := "?"
	if t.OK != nil {
		ok = strconv.FormatBool(*t.OK)
	}
	if t.Exit != nil {
		exit = strconv.Itoa(*t.Exit)
	}
	return t.Command + " -> ok=" + ok + " exit=" + exit
}

func reloadPlanFromDisk(s *runstate.State) {
	p, err := s.PlanStore.Load()
	if err != nil {
		return
	}
	s.Plan = p
}

func planComplete(s *runstate.State) bool {
	if s.Plan == nil || len(s.Plan.Steps) == 0 {
		return true
	}
	return len(s.Plan.Incomplete()) == 0
}

func clip(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
