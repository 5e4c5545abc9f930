package agents

import (
	"context"
	"encoding/json"
	"strings"

	"devtwin/internal/prompt"
	"devtwin/internal/runstate"
	"devtwin/internal/tools"
	"devtwin/internal/toolloop"
)

// Unified is the single-agent alternative to the multi-node graph: it takes
// the full, per-run-configurable tool set and runs one extended tool loop
// with plan-gating on finalize, rather than splitting analysis/planning/
// coding/testing across separate nodes.
func Unified(ctx context.Context, s *runstate.State) error {
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

	agentCfg := s.Config.Agent("unified")
	registry := buildConfiguredRegistry(env, agentCfg.Tools)

	systemPrompt, err := prompt.NewLoader().Load("unified", map[string]string{
		"AVAILABLE_TOOLS": describeEnabledTools(registry),
	})
	if err != nil {
		systemPrompt = fallbackUnifiedPrompt
	}

	context := map[string]interface{}{
		"issue":    map[string]string{"title": s.Issue.Title, "body": s.Issue.Body},
		"analysis": s.Analysis,
		"bench":    s.Bench,
		"last_test": s.LastTest,
		"communication_note": "Send brief text messages (8-12 words) before tool calls that build " +
			"momentum by connecting prior work to next actions.",
		"write_policy": "Use forward slashes and full relative paths. Prefer apply_patch for multi-file edits.",
		"planning_guidance": "If the initial plan is generic, replace it with a specific 4-7 step plan " +
			"using plan_update(steps=[...]) before proceeding.",
	}
	contextJSON, _ := json.Marshal(context)

	if s.LiveUpdate != nil {
		s.LiveUpdate("[unified] Starting single-agent loop...")
	}

	result, err := toolloop.Run(ctx, s.Provider, registry, systemPrompt, string(contextJSON), toolloop.Options{
		Model:                  s.Settings.Model,
		MaxSteps:               agentCfg.MaxSteps,
		StopOnFinalize:         true,
		MaxHistoryChars:        agentCfg.MaxHistoryChars,
		KeepLastMessages:       agentCfg.KeepLastMessages,
		MaxToolResultChars:     agentCfg.MaxToolResultChars,
		RepetitionGuardEnabled: s.Config.Limits.RepetitionGuardEnabled,
		NoteTag:                "unified",
		Events:                 s.Events,
		Notes:                  s.Notes,
	})
	if err != nil {
		return err
	}

	reloadPlanFromDisk(s)

	done, _ := result.FinalizeArgs["done"].(bool)
	commitMessage, _ := result.FinalizeArgs["commit_message"].(string)
	if commitMessage == "" {
		commitMessage = "dev-twin unified changes"
	}
	s.Iteration = &runstate.Iteration{CommitMessage: commitMessage, Done: done}

	s.Transcript = append(s.Transcript, runstate.TranscriptEntry{
		Input: context,
		Output: map[string]interface{}{
			"finalize": result.FinalizeArgs,
			"preview":  result.LastAIText,
		},
	})
	return nil
}

const fallbackUnifiedPrompt = `You are an automated coding agent running end to end: analyze, plan,
implement, and finalize a GitHub issue in a single extended loop. Call finalize with a
commit_message and done: true when the work is complete or you are blocked.`

// buildConfiguredRegistry builds the unified role's full tool set and then
// keeps only the tools enabled in the agent's config, defaulting to the
// full set when no explicit configuration is present.
func buildConfiguredRegistry(env *tools.Env, enabled map[string]bool) *tools.Registry {
	full := tools.BuildForRole(tools.RoleUnified, env)
	if len(enabled) == 0 {
		return full
	}
	var kept []tools.Tool
	for _, name := range full.Names() {
		if !enabled[name] {
			continue
		}
		if t, ok := full.Lookup(name); ok {
			kept = append(kept, t)
		}
	}
	return tools.NewRegistry(kept...)
}

func describeEnabledTools(registry *tools.Registry) string {
	var lines []string
	for _, name := range registry.Names() {
		t, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		lines = append(lines, "- **"+t.Name+"** "+t.Description)
	}
	return strings.Join(lines, "\n")
}
