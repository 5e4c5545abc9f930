package agents

import (
	"context"
	"encoding/json"

	"devtwin/internal/prompt"
	"devtwin/internal/runstate"
	"devtwin/internal/tools"
	"devtwin/internal/toolloop"
)

// Setup is a best-effort environment preparation pass: it may run shell
// commands, never gates the graph, and terminates on finalize or after its
// step budget regardless of whether the environment ended up ready.
func Setup(ctx context.Context, s *runstate.State) error {
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
	registry := tools.BuildForRole(tools.RoleSetup, env)

	agentCfg := s.Config.Agent("setup")
	systemPrompt, err := prompt.NewLoader().Load("setup", nil)
	if err != nil {
		systemPrompt = fallbackSetupPrompt
	}

	context := map[string]interface{}{
		"analysis":       s.Analysis,
		"transcript_tail": lastTranscript(s, 4),
	}
	contextJSON, _ := json.Marshal(context)

	if s.LiveUpdate != nil {
		s.LiveUpdate("[setup] Preparing environment...")
	}

	_, err = toolloop.Run(ctx, s.Provider, registry, systemPrompt, string(contextJSON), toolloop.Options{
		Model:                  s.Settings.Model,
		MaxSteps:               agentCfg.MaxSteps,
		StopOnFinalize:         true,
		MaxHistoryChars:        agentCfg.MaxHistoryChars,
		KeepLastMessages:       agentCfg.KeepLastMessages,
		MaxToolResultChars:     agentCfg.MaxToolResultChars,
		RepetitionGuardEnabled: s.Config.Limits.RepetitionGuardEnabled,
		NoteTag:                "setup",
		Events:                 s.Events,
		Notes:                  s.Notes,
	})
	return err
}

const fallbackSetupPrompt = `You are preparing a repository's environment. Install missing dependencies,
verify the project builds, and call finalize with a short commit_message and done: true when ready
or blocked.`

func dockerTarget(s *runstate.State) *tools.DockerTarget {
	if s.Docker == nil {
		return nil
	}
	return &tools.DockerTarget{ContainerID: s.Docker.ContainerID, Workdir: s.Docker.Workdir}
}

func shellConfig(s *runstate.State) tools.ShellConfig {
	return tools.ShellConfig{
		DefaultTimeoutSeconds: s.Config.Limits.ShellDefaultTimeoutS,
		MaxTimeoutSeconds:     s.Config.Limits.ShellMaxTimeoutS,
	}
}

func lastTranscript(s *runstate.State, n int) []runstate.TranscriptEntry {
	if len(s.Transcript) <= n {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-n:]
}
