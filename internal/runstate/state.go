// Package runstate defines the mapping passed between workflow nodes: the
// single mutable document a run accumulates as analysis, planning, setup,
// coding, and test/lint phases each contribute to it.
package runstate

import (
	"devtwin/internal/config"
	"devtwin/internal/journal"
	"devtwin/internal/llm"
	"devtwin/internal/plan"
)

// Issue is the problem statement a run is working against.
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// Docker describes an optional containerized execution target.
type Docker struct {
	ContainerID string `json:"container_id"`
	Workdir     string `json:"workdir"`
}

// LastTest is the outcome of the most recent test-looking shell invocation.
type LastTest struct {
	Command         string `json:"command"`
	Exit            *int   `json:"exit_code,omitempty"`
	OK              *bool  `json:"ok,omitempty"`
	Preview         string `json:"preview,omitempty"`
	DetailsPath     string `json:"details_path,omitempty"`
	FirstFailedNode string `json:"first_failed_nodeid,omitempty"`
}

// LintResult is one discovered lint command's outcome preview.
type LintResult struct {
	Command string `json:"command"`
	Preview string `json:"preview"`
}

// Iteration is the coder/unified node's completion claim; the graph may
// override Done based on test/plan state.
type Iteration struct {
	CommitMessage string `json:"commit_message"`
	Done          bool   `json:"done"`
}

// TranscriptEntry is one per-iteration record of what a node was given and
// what it produced.
type TranscriptEntry struct {
	Input  interface{} `json:"input"`
	Output interface{} `json:"output"`
}

// Bench carries benchmark-scoped overrides (a fixed set of test files and a
// timeout) so a single-case run can focus test_lint on just that case.
type Bench struct {
	TestFiles   []string `json:"test_files,omitempty"`
	TestTimeout int      `json:"test_timeout,omitempty"`
}

// State is the run-state mapping shared by every node in the graph. Nodes
// read and write it in place; the graph driver owns persistence timing.
type State struct {
	Settings     Settings
	Config       *config.Config
	Provider     llm.Provider
	ConfigFile   string
	Overrides    map[string]string
	Issue        Issue
	RepoDir      string
	ArtifactsDir string
	Analysis     map[string]interface{}
	Plan         *plan.Plan
	Transcript   []TranscriptEntry
	Events       *journal.Emitter
	Notes        *journal.Notes
	PlanStore    *plan.Store
	LastTest     *LastTest
	LastLint     []LintResult
	Iteration    *Iteration
	CoderHistory []llm.ChatMessage
	Docker       *Docker
	Bench        *Bench

	// LiveUpdate, when set, receives short human-readable progress lines a
	// node emits as it works (shown by an interactive driver; nil in batch
	// or benchmark runs).
	LiveUpdate func(string)
}

// Settings is the read-only-after-init credential/workspace bundle every
// node's LLM call is built from.
type Settings struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// New creates an empty State rooted at repoDir/artifactsDir with fresh
// journal and plan stores.
func New(repoDir, artifactsDir string, cfg *config.Config) *State {
	return &State{
		Config:       cfg,
		RepoDir:      repoDir,
		ArtifactsDir: artifactsDir,
		Analysis:     map[string]interface{}{},
		Events:       journal.NewEmitter(artifactsDir),
		Notes:        journal.NewNotes(artifactsDir),
		PlanStore:    plan.NewStore(artifactsDir),
	}
}
