package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devtwin/internal/journal"
	"devtwin/internal/plan"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	repoDir := t.TempDir()
	artifactsDir := t.TempDir()
	return &Env{
		RepoDir:      repoDir,
		ArtifactsDir: artifactsDir,
		Events:       journal.NewEmitter(artifactsDir),
		Notes:        journal.NewNotes(artifactsDir),
		PlanStore:    plan.NewStore(artifactsDir),
		Config:       ShellConfig{DefaultTimeoutSeconds: 5, MaxTimeoutSeconds: 10},
	}
}

func TestReadWriteListDir(t *testing.T) {
	env := newTestEnv(t)

	write := WriteFileTool(env)
	res := write.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "a/b.txt", "content": "one\ntwo\nthree"}})
	if !strings.HasPrefix(res.Text, "WROTE") {
		t.Fatalf("unexpected write result: %s", res.Text)
	}

	read := ReadFileTool(env)
	res = read.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "a/b.txt"}})
	if res.Text != "one\ntwo\nthree" {
		t.Fatalf("unexpected read result: %q", res.Text)
	}

	res = read.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "a/b.txt", "line_start": 2, "line_end": 2}})
	if res.Text != "two" {
		t.Fatalf("unexpected sliced read: %q", res.Text)
	}

	res = read.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "missing.txt"}})
	if !strings.HasPrefix(res.Text, "NOT_FOUND:") {
		t.Fatalf("expected NOT_FOUND, got %q", res.Text)
	}

	list := ListDirTool(env)
	res = list.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "."}})
	if res.Text != "a/b.txt" {
		t.Fatalf("unexpected list result: %q", res.Text)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	env := newTestEnv(t)
	read := ReadFileTool(env)
	res := read.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "../outside.txt"}})
	if !strings.HasPrefix(res.Text, "ERROR:") {
		t.Fatalf("expected path-escape error, got %q", res.Text)
	}
	res = read.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "/etc/passwd"}})
	if !strings.HasPrefix(res.Text, "ERROR:") {
		t.Fatalf("expected absolute-path error, got %q", res.Text)
	}
}

func TestSearchTool(t *testing.T) {
	env := newTestEnv(t)
	if err := os.MkdirAll(filepath.Join(env.RepoDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.RepoDir, "src", "main.go"), []byte("func main() {}\nfunc helper() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	search := SearchTool(env)
	res := search.Invoke(ToolCall{Arguments: map[string]interface{}{"pattern": `func \w+\(\)`}})
	if !strings.Contains(res.Text, "src/main.go:1:") || !strings.Contains(res.Text, "src/main.go:2:") {
		t.Fatalf("unexpected search result: %q", res.Text)
	}
}

func TestShellTool(t *testing.T) {
	env := newTestEnv(t)
	shell := ShellTool(env)
	res := shell.Invoke(ToolCall{Arguments: map[string]interface{}{"command": "echo hello"}})
	if !strings.Contains(res.Text, "[exit 0]") || !strings.Contains(res.Text, "hello") {
		t.Fatalf("unexpected shell result: %q", res.Text)
	}

	res = shell.Invoke(ToolCall{Arguments: map[string]interface{}{"command": "exit 3"}})
	if !strings.Contains(res.Text, "[exit 3]") {
		t.Fatalf("expected exit 3, got %q", res.Text)
	}
}

func TestShellToolTimeout(t *testing.T) {
	env := newTestEnv(t)
	shell := ShellTool(env)
	res := shell.Invoke(ToolCall{Arguments: map[string]interface{}{"command": "sleep 5", "timeout": 1}})
	if !strings.Contains(res.Text, "[KILLED AFTER TIMEOUT]") {
		t.Fatalf("expected timeout kill marker, got %q", res.Text)
	}
}

func TestLintToolNoCommands(t *testing.T) {
	env := newTestEnv(t)
	lint := LintTool(env)
	res := lint.Invoke(ToolCall{Arguments: map[string]interface{}{}})
	if res.Text != "NO_LINT_COMMANDS" {
		t.Fatalf("expected NO_LINT_COMMANDS, got %q", res.Text)
	}
}

func TestApplyPatchTool(t *testing.T) {
	env := newTestEnv(t)
	apply := ApplyPatchTool(env)
	patchText := "*** Begin Patch\n*** Add File: hello.txt\n+hello\n*** End Patch"
	res := apply.Invoke(ToolCall{Arguments: map[string]interface{}{"patch": patchText}})
	if !strings.HasPrefix(res.Text, "Done!") {
		t.Fatalf("unexpected apply_patch result: %q", res.Text)
	}
	b, err := os.ReadFile(filepath.Join(env.RepoDir, "hello.txt"))
	if err != nil || string(b) != "hello" {
		t.Fatalf("expected hello.txt with content 'hello', got %v %q", err, b)
	}

	res = apply.Invoke(ToolCall{Arguments: map[string]interface{}{"patch": "not a patch"}})
	if !strings.HasPrefix(res.Text, "ERROR:") {
		t.Fatalf("expected error for malformed patch, got %q", res.Text)
	}
}

func TestReplaceInFile(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.RepoDir, "f.txt"), []byte("foo bar foo"), 0o644); err != nil {
		t.Fatal(err)
	}
	replace := ReplaceInFileTool(env)
	res := replace.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "f.txt", "pattern": "foo", "replacement": "baz"}})
	if !strings.HasPrefix(res.Text, "REPLACED") {
		t.Fatalf("unexpected replace result: %q", res.Text)
	}
	b, _ := os.ReadFile(filepath.Join(env.RepoDir, "f.txt"))
	if string(b) != "baz bar baz" {
		t.Fatalf("unexpected content after replace: %q", b)
	}

	res = replace.Invoke(ToolCall{Arguments: map[string]interface{}{"path": "f.txt", "pattern": "nomatch", "replacement": "x"}})
	if res.Text != "NO_MATCHES" {
		t.Fatalf("expected NO_MATCHES, got %q", res.Text)
	}
}

func TestReplaceRegion(t *testing.T) {
	env := newTestEnv(t)
	content := "start\nBEGIN\nold line\nEND\ntail"
	if err := os.WriteFile(filepath.Join(env.RepoDir, "f.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	region := ReplaceRegionTool(env)
	res := region.Invoke(ToolCall{Arguments: map[string]interface{}{
		"path": "f.txt", "start_pattern": "^BEGIN$", "end_pattern": "^END$", "content": "BEGIN\nnew line\nEND",
	}})
	if !strings.HasPrefix(res.Text, "REPLACED region") {
		t.Fatalf("unexpected replace_region result: %q", res.Text)
	}
	b, _ := os.ReadFile(filepath.Join(env.RepoDir, "f.txt"))
	if string(b) != "start\nBEGIN\nnew line\nEND\ntail" {
		t.Fatalf("unexpected content: %q", b)
	}
}

func TestPlanReadUpdate(t *testing.T) {
	env := newTestEnv(t)
	read := PlanReadTool(env)
	res := read.Invoke(ToolCall{})
	if res.Text != `{"steps":[]}` {
		t.Fatalf("expected empty plan, got %q", res.Text)
	}

	update := PlanUpdateTool(env)
	res = update.Invoke(ToolCall{Arguments: map[string]interface{}{
		"action": "replace_steps",
		"steps": []interface{}{
			map[string]interface{}{"id": "1", "description": "do thing"},
		},
	}})
	if !strings.HasPrefix(res.Text, "PLAN_UPDATED") {
		t.Fatalf("unexpected plan_update result: %q", res.Text)
	}

	res = update.Invoke(ToolCall{Arguments: map[string]interface{}{"action": "mark_completed", "ids": []interface{}{"1"}}})
	if res.Text != "PLAN_UPDATED steps=1" {
		t.Fatalf("unexpected result: %q", res.Text)
	}
	p, err := env.PlanStore.Load()
	if err != nil {
		t.Fatal(err)
	}
	if p.Steps[0].Status != plan.StatusCompleted {
		t.Fatalf("expected step completed, got %s", p.Steps[0].Status)
	}
}

func TestNotesReadWrite(t *testing.T) {
	env := newTestEnv(t)
	write := NoteWriteTool(env)
	res := write.Invoke(ToolCall{Arguments: map[string]interface{}{"topic": "build", "content": "installed deps"}})
	if res.Text != "NOTED" {
		t.Fatalf("unexpected note_write result: %q", res.Text)
	}

	read := NotesReadTool(env)
	res = read.Invoke(ToolCall{Arguments: map[string]interface{}{"topic": "build"}})
	if !strings.Contains(res.Text, "installed deps") {
		t.Fatalf("unexpected notes_read result: %q", res.Text)
	}
}

func TestFinalizeRejectsMissingCommitMessage(t *testing.T) {
	env := newTestEnv(t)
	finalize := FinalizeTool(env)
	res := finalize.Invoke(ToolCall{Arguments: map[string]interface{}{}})
	if !strings.HasPrefix(res.Text, "REJECTED") {
		t.Fatalf("expected rejection, got %q", res.Text)
	}
}

func TestFinalizeRejectsIncompletePlan(t *testing.T) {
	env := newTestEnv(t)
	update := PlanUpdateTool(env)
	update.Invoke(ToolCall{Arguments: map[string]interface{}{
		"action": "replace_steps",
		"steps": []interface{}{
			map[string]interface{}{"id": "1", "description": "do thing"},
		},
	}})

	finalize := FinalizeTool(env)
	res := finalize.Invoke(ToolCall{Arguments: map[string]interface{}{"commit_message": "done"}})
	if !strings.HasPrefix(res.Text, "REJECTED") || !strings.Contains(res.Text, "incomplete") {
		t.Fatalf("expected incomplete-plan rejection, got %q", res.Text)
	}
}

func TestFinalizeAccepted(t *testing.T) {
	env := newTestEnv(t)
	finalize := FinalizeTool(env)
	res := finalize.Invoke(ToolCall{Arguments: map[string]interface{}{"commit_message": "ship it"}})
	if !strings.HasPrefix(res.Text, "ACCEPTED: ship it") {
		t.Fatalf("expected acceptance, got %q", res.Text)
	}
}

func TestBuildForRole(t *testing.T) {
	env := newTestEnv(t)
	coder := BuildForRole(RoleCoder, env)
	if _, ok := coder.Lookup("write_file"); !ok {
		t.Fatal("expected coder role to have write_file")
	}
	analysis := BuildForRole(RoleAnalysis, env)
	if _, ok := analysis.Lookup("write_file"); ok {
		t.Fatal("expected analysis role to not have write_file")
	}
	if _, ok := analysis.Lookup("read_file"); !ok {
		t.Fatal("expected analysis role to have read_file")
	}
}
