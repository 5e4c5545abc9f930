package toolloop

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"devtwin/internal/journal"
	"devtwin/internal/llm"
	"devtwin/internal/plan"
	"devtwin/internal/tools"
)

// mockProvider replays a fixed sequence of responses, one per Chat call.
type mockProvider struct {
	responses []llm.ChatResponse
	callCount int
}

func (m *mockProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if m.callCount >= len(m.responses) {
		return &llm.ChatResponse{Text: "no more responses configured"}, nil
	}
	resp := m.responses[m.callCount]
	m.callCount++
	return &resp, nil
}

func newTestEnv(t *testing.T) *tools.Env {
	t.Helper()
	repoDir := t.TempDir()
	artifactsDir := t.TempDir()
	return &tools.Env{
		RepoDir:      repoDir,
		ArtifactsDir: artifactsDir,
		Events:       journal.NewEmitter(artifactsDir),
		Notes:        journal.NewNotes(artifactsDir),
		PlanStore:    plan.NewStore(artifactsDir),
		Config:       tools.ShellConfig{DefaultTimeoutSeconds: 5, MaxTimeoutSeconds: 10},
	}
}

func TestRun_StopsWhenNoToolCalls(t *testing.T) {
	env := newTestEnv(t)
	registry := tools.BuildForRole(tools.RoleCoder, env)

	mock := &mockProvider{
		responses: []llm.ChatResponse{
			{Text: "all done, nothing to do"},
		},
	}

	result, err := Run(context.Background(), mock, registry, "system prompt", "do nothing", Options{MaxSteps: 4})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.LastAIText != "all done, nothing to do" {
		t.Fatalf("unexpected LastAIText: %q", result.LastAIText)
	}
	if mock.callCount != 1 {
		t.Fatalf("expected exactly one Chat call, got %d", mock.callCount)
	}
}

func TestRun_DispatchesToolCallAndContinues(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.RepoDir, "hello.txt"), []byte("hi there"), 0o644); err != nil {
		t.Fatal(err)
	}
	registry := tools.BuildForRole(tools.RoleCoder, env)

	mock := &mockProvider{
		responses: []llm.ChatResponse{
			{ToolCalls: []llm.ChatToolCall{{ID: "call_1", Name: "read_file", Arguments: `{"path":"hello.txt"}`}}},
			{Text: "read the file, done"},
		},
	}

	result, err := Run(context.Background(), mock, registry, "system prompt", "read hello.txt", Options{MaxSteps: 4})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if mock.callCount != 2 {
		t.Fatalf("expected two Chat calls, got %d", mock.callCount)
	}

	var sawToolResult bool
	for _, m := range result.Messages {
		if m.Role == "tool" && m.Name == "read_file" {
			sawToolResult = true
			if m.Content == "" {
				t.Fatalf("expected non-empty tool result content")
			}
		}
	}
	if !sawToolResult {
		t.Fatalf("expected a tool message for read_file in history")
	}
}

func TestRun_FinalizeAcceptedStopsLoop(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.PlanStore.Load()
	if err != nil {
		t.Fatal(err)
	}
	p.ReplaceSteps([]plan.Step{{ID: "s1", Description: "do it", Status: plan.StatusCompleted}})
	if err := env.PlanStore.Save(p); err != nil {
		t.Fatal(err)
	}
	registry := tools.BuildForRole(tools.RoleCoder, env)

	mock := &mockProvider{
		responses: []llm.ChatResponse{
			{ToolCalls: []llm.ChatToolCall{{ID: "call_1", Name: "finalize", Arguments: `{"commit_message":"ship it","done":true}`}}},
			{Text: "should not be reached"},
		},
	}

	result, err := Run(context.Background(), mock, registry, "system prompt", "wrap up", Options{MaxSteps: 4, StopOnFinalize: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.FinalizeAccepted {
		t.Fatalf("expected finalize to be accepted, got text: %q", result.FinalizeText)
	}
	if mock.callCount != 1 {
		t.Fatalf("expected loop to stop after finalize accepted, got %d Chat calls", mock.callCount)
	}
}

func TestRun_RepetitionGuardSkipsRepeatedCalls(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.RepoDir, "a.txt"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	registry := tools.BuildForRole(tools.RoleCoder, env)

	call := llm.ChatToolCall{ID: "call_x", Name: "read_file", Arguments: `{"path":"a.txt"}`}
	mock := &mockProvider{
		responses: []llm.ChatResponse{
			{ToolCalls: []llm.ChatToolCall{call}},
			{ToolCalls: []llm.ChatToolCall{call}},
			{ToolCalls: []llm.ChatToolCall{call}},
			{Text: "gave up repeating"},
		},
	}

	result, err := Run(context.Background(), mock, registry, "system prompt", "read a.txt repeatedly", Options{MaxSteps: 6, RepetitionGuardEnabled: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var sawSkip bool
	for _, m := range result.Messages {
		if m.Role == "tool" && m.Name == "read_file" && len(m.Content) > 0 && m.Content[:min(14, len(m.Content))] == "SKIPPED_REPEAT" {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Fatalf("expected a SKIPPED_REPEAT tool message after repeated read_file calls")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
