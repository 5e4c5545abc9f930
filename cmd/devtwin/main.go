// Command devtwin resolves GitHub issues into pull requests: it runs the
// analysis -> setup -> planner -> coder/test_lint graph against a repo
// checkout and, with --pr, commits and opens a PR against the source issue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"devtwin/internal/agents"
	"devtwin/internal/config"
	"devtwin/internal/github"
	"devtwin/internal/githubclient"
	"devtwin/internal/graph"
	"devtwin/internal/llm"
	"devtwin/internal/runstate"
	"devtwin/internal/style"
)

// version is the devtwin release the binary was built from.
const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, style.Header("error")+": "+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	var overrides map[string]string

	root := &cobra.Command{
		Use:   "devtwin",
		Short: "devtwin resolves GitHub issues into tested, committed patches",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config/default.json (defaults to the nearest one on disk)")
	root.PersistentFlags().StringToStringVar(&overrides, "set", nil, "dotted-key config overrides, e.g. --set agents.coder.max_steps=80")

	root.AddCommand(newRunCmd(&configFile, &overrides))
	root.AddCommand(newBenchCmd(&configFile, &overrides))
	root.AddCommand(newPlanCmd(&configFile, &overrides))
	root.AddCommand(newAnalyzeCmd(&configFile, &overrides))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the devtwin version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "devtwin "+version)
			return nil
		},
	}
}

func newRunCmd(configFile *string, overrides *map[string]string) *cobra.Command {
	var repoDir, artifactsDir string
	var openPR bool

	cmd := &cobra.Command{
		Use:   "run <issue-file>",
		Short: "resolve one issue against a repo checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile, *overrides)
			if err != nil {
				return err
			}
			issue, err := loadIssue(args[0])
			if err != nil {
				return err
			}
			if repoDir == "" {
				repoDir = os.Getenv("WORKDIR")
			}
			if repoDir == "" {
				repoDir = "."
			}
			if artifactsDir == "" {
				artifactsDir = filepath.Join(os.TempDir(), fmt.Sprintf("devtwin-issue-%d", issue.Number))
			}
			if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
				return fmt.Errorf("creating artifacts dir: %w", err)
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			s := runstate.New(repoDir, artifactsDir, cfg)
			s.Issue = *issue
			s.Provider = provider
			s.Settings = runstate.Settings{
				Provider: cfg.Provider.Name,
				APIKey:   cfg.Provider.APIKey,
				BaseURL:  cfg.Provider.BaseURL,
				Model:    cfg.Provider.Model,
			}
			s.LiveUpdate = func(msg string) { fmt.Fprintln(cmd.OutOrStdout(), msg) }

			if err := graph.Build(cfg.Limits.MaxLoops).Run(cmd.Context(), s); err != nil {
				writeSummary(artifactsDir, s, err)
				return err
			}
			writeSummary(artifactsDir, s, nil)

			if openPR {
				if err := landPR(repoDir, s); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), style.Header("PR not opened")+": "+err.Error())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoDir, "repo", "", "repo checkout to work in (default: $WORKDIR or .)")
	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "directory for run artifacts (default: a temp dir named after the issue)")
	cmd.Flags().BoolVar(&openPR, "pr", false, "commit, push, and open a pull request once the run ends")
	return cmd
}

func newPlanCmd(configFile *string, overrides *map[string]string) *cobra.Command {
	var issueFile string

	cmd := &cobra.Command{
		Use:   "plan <repo-dir>",
		Short: "run analysis and planning only, print the plan, and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile, *overrides)
			if err != nil {
				return err
			}
			repoDir := args[0]
			artifactsDir, err := os.MkdirTemp("", "devtwin-plan-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(artifactsDir)

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			s := runstate.New(repoDir, artifactsDir, cfg)
			if issueFile != "" {
				issue, err := loadIssue(issueFile)
				if err != nil {
					return err
				}
				s.Issue = *issue
			}
			s.Provider = provider
			s.Settings = runstate.Settings{
				Provider: cfg.Provider.Name,
				APIKey:   cfg.Provider.APIKey,
				BaseURL:  cfg.Provider.BaseURL,
				Model:    cfg.Provider.Model,
			}

			ctx := cmd.Context()
			if err := agents.Analysis(ctx, s); err != nil {
				return fmt.Errorf("analysis: %w", err)
			}
			if err := agents.Setup(ctx, s); err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			if err := agents.Planner(ctx, s); err != nil {
				return fmt.Errorf("planner: %w", err)
			}

			if s.Plan == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no plan produced")
				return nil
			}
			b, err := json.MarshalIndent(s.Plan, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&issueFile, "issue", "", "issue JSON file to plan against (optional)")
	return cmd
}

func newAnalyzeCmd(configFile *string, overrides *map[string]string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <repo-dir>",
		Short: "run analysis only and print its findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile, *overrides)
			if err != nil {
				return err
			}
			repoDir := args[0]
			artifactsDir, err := os.MkdirTemp("", "devtwin-analyze-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(artifactsDir)

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			s := runstate.New(repoDir, artifactsDir, cfg)
			s.Provider = provider
			s.Settings = runstate.Settings{
				Provider: cfg.Provider.Name,
				APIKey:   cfg.Provider.APIKey,
				BaseURL:  cfg.Provider.BaseURL,
				Model:    cfg.Provider.Model,
			}

			if err := agents.Analysis(cmd.Context(), s); err != nil {
				return fmt.Errorf("analysis: %w", err)
			}
			b, err := json.MarshalIndent(s.Analysis, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	return cmd
}

func newBenchCmd(configFile *string, overrides *map[string]string) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "bench <dataset-dir>",
		Short: "run every case under dataset-dir concurrently and report pass/fail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile, *overrides)
			if err != nil {
				return err
			}
			cases, err := discoverCases(args[0])
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				return fmt.Errorf("bench: no cases found under %s", args[0])
			}

			rawProvider, err := buildRawProvider(cfg)
			if err != nil {
				return err
			}
			rate := cfg.Provider.RatePerSecond
			if rate <= 0 {
				rate = 2
			}
			burst := cfg.Provider.Burst
			if burst <= 0 {
				burst = 4
			}
			// One limiter shared by every concurrent case, so N cases running
			// at once still stay within the provider's overall rate ceiling.
			shared := llm.NewRateLimitedProvider(rawProvider, rate, burst)

			if concurrency <= 0 {
				concurrency = 4
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)

			results := make([]benchResult, len(cases))
			for i, c := range cases {
				i, c := i, c
				g.Go(func() error {
					results[i] = runBenchCase(ctx, cfg, shared, c)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			passed := 0
			for _, r := range results {
				status := "FAIL"
				if r.Passed {
					status = "PASS"
					passed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s  %s\n", status, r.Name, r.Detail)
			}
			fmt.Fprintf(cmd.OutOrStdout(), style.Separator()+"\n%d/%d passed\n", passed, len(results))
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of cases to run concurrently")
	return cmd
}

type benchCase struct {
	name         string
	repoDir      string
	artifactsDir string
	issue        runstate.Issue
}

type benchResult struct {
	Name   string
	Passed bool
	Detail string
}

// discoverCases reads one subdirectory per benchmark case, each holding a
// repo/ checkout and an issue.json describing the problem to solve.
func discoverCases(datasetDir string) ([]benchCase, error) {
	entries, err := os.ReadDir(datasetDir)
	if err != nil {
		return nil, fmt.Errorf("bench: reading dataset dir: %w", err)
	}
	var cases []benchCase
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		caseDir := filepath.Join(datasetDir, e.Name())
		issuePath := filepath.Join(caseDir, "issue.json")
		issue, err := loadIssue(issuePath)
		if err != nil {
			continue
		}
		cases = append(cases, benchCase{
			name:         e.Name(),
			repoDir:      filepath.Join(caseDir, "repo"),
			artifactsDir: filepath.Join(caseDir, "artifacts"),
			issue:        *issue,
		})
	}
	return cases, nil
}

func runBenchCase(ctx context.Context, cfg *config.Config, provider llm.Provider, c benchCase) benchResult {
	if err := os.MkdirAll(c.artifactsDir, 0o755); err != nil {
		return benchResult{Name: c.name, Detail: err.Error()}
	}

	s := runstate.New(c.repoDir, c.artifactsDir, cfg)
	s.Issue = c.issue
	s.Provider = provider
	s.Settings = runstate.Settings{
		Provider: cfg.Provider.Name,
		APIKey:   cfg.Provider.APIKey,
		BaseURL:  cfg.Provider.BaseURL,
		Model:    cfg.Provider.Model,
	}

	err := graph.Build(cfg.Limits.MaxLoops).Run(ctx, s)
	writeSummary(c.artifactsDir, s, err)
	if err != nil {
		return benchResult{Name: c.name, Detail: err.Error()}
	}
	passed := s.Iteration != nil && s.Iteration.Done && (s.LastTest == nil || (s.LastTest.OK != nil && *s.LastTest.OK))
	detail := "done"
	if s.LastTest != nil && s.LastTest.OK != nil && !*s.LastTest.OK {
		detail = "tests failing at end of run"
	}
	return benchResult{Name: c.name, Passed: passed, Detail: detail}
}

func loadIssue(path string) (*runstate.Issue, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading issue file %s: %w", path, err)
	}
	var issue runstate.Issue
	if err := json.Unmarshal(b, &issue); err != nil {
		return nil, fmt.Errorf("parsing issue file %s: %w", path, err)
	}
	return &issue, nil
}

// buildRawProvider resolves cfg.Provider against the environment variables
// named in the config/run-state contract (PROVIDER, <PROVIDER>_API_KEY,
// BASE_URL, DEFAULT_MODEL), mutating cfg.Provider in place, and returns the
// unwrapped backend with no rate limiting applied.
func buildRawProvider(cfg *config.Config) (llm.Provider, error) {
	name := cfg.Provider.Name
	if v := os.Getenv("PROVIDER"); v != "" {
		name = v
	}
	apiKey := cfg.Provider.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(envKeyFor(name))
	}
	baseURL := cfg.Provider.BaseURL
	if v := os.Getenv("BASE_URL"); v != "" {
		baseURL = v
	}
	model := cfg.Provider.Model
	if v := os.Getenv("DEFAULT_MODEL"); v != "" {
		model = v
	}
	cfg.Provider.Name = name
	cfg.Provider.APIKey = apiKey
	cfg.Provider.BaseURL = baseURL
	cfg.Provider.Model = model

	return llm.NewProvider(llm.Settings{Provider: name, APIKey: apiKey, BaseURL: baseURL})
}

// buildProvider resolves cfg.Provider and wraps it with a per-run rate
// limiter; used by every command except bench, which shares one limiter
// across its concurrent cases instead.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	inner, err := buildRawProvider(cfg)
	if err != nil {
		return nil, err
	}
	rate := cfg.Provider.RatePerSecond
	if rate <= 0 {
		rate = 2
	}
	burst := cfg.Provider.Burst
	if burst <= 0 {
		burst = 4
	}
	return llm.NewRateLimitedProvider(inner, rate, burst), nil
}

func envKeyFor(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return "API_KEY"
	}
}

// landPR commits the run's changes, pushes a branch, and opens a pull
// request against the issue's repo, per GITHUB_TOKEN/REPO_URL.
func landPR(repoDir string, s *runstate.State) error {
	repoURL := os.Getenv("REPO_URL")
	if repoURL == "" {
		return fmt.Errorf("REPO_URL is not set")
	}
	owner, repo, err := githubclient.ParseOwnerRepo(repoURL)
	if err != nil {
		return err
	}

	client := github.NewClient(owner + "/" + repo)
	client.SetWorkDir(repoDir)

	branch := fmt.Sprintf("devtwin/issue-%d", s.Issue.Number)
	if err := client.CreateBranch(branch, ""); err != nil {
		return err
	}

	commitMsg := "dev-twin: resolve issue"
	if s.Iteration != nil && s.Iteration.CommitMessage != "" {
		commitMsg = s.Iteration.CommitMessage
	}
	if err := client.CommitChanges(github.CommitOptions{
		Message:     commitMsg,
		IssueNumber: s.Issue.Number,
		AllFiles:    true,
	}); err != nil {
		return err
	}
	if err := client.PushBranch(branch); err != nil {
		return err
	}

	var commitMessages []string
	for _, t := range s.Transcript {
		if out, ok := t.Output.(map[string]interface{}); ok {
			fin, _ := out["finalize"].(map[string]interface{})
			if msg, ok := fin["commit_message"].(string); ok && msg != "" {
				commitMessages = append(commitMessages, msg)
			}
		}
	}
	if len(commitMessages) == 0 {
		commitMessages = []string{commitMsg}
	}

	_, err = client.CreatePR(github.PRCreateOptions{
		Title:      s.Issue.Title,
		Body:       github.GeneratePRBody(s.Issue, commitMessages),
		HeadBranch: branch,
		Labels:     s.Issue.Labels,
	})
	return err
}

// summary is the shape of artifacts/summary.json every run ends with.
type summary struct {
	Status        string `json:"status"`
	CommitMessage string `json:"commit_message,omitempty"`
	IssueNumber   int    `json:"issue_number,omitempty"`
	Iterations    int    `json:"iterations"`
	Error         string `json:"error,omitempty"`
	// Solved and TestExitCode are the benchmark-run summary extensions;
	// set whenever the run has a test result, omitted otherwise.
	Solved       *bool `json:"solved,omitempty"`
	TestExitCode *int  `json:"test_exit_code,omitempty"`
}

// writeSummary writes artifacts/summary.json; status is "success" iff the
// run's iteration reported itself done and the run ended without an error,
// per §7.
func writeSummary(artifactsDir string, s *runstate.State, runErr error) {
	if artifactsDir == "" {
		return
	}
	status := "incomplete"
	commitMessage := ""
	if s.Iteration != nil {
		commitMessage = s.Iteration.CommitMessage
		if s.Iteration.Done {
			status = "success"
		}
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
		status = "incomplete"
	}
	doc := summary{
		Status:        status,
		CommitMessage: commitMessage,
		IssueNumber:   s.Issue.Number,
		Iterations:    len(s.Transcript),
		Error:         errText,
	}
	if s.LastTest != nil {
		doc.TestExitCode = s.LastTest.Exit
		ok := s.LastTest.OK != nil && *s.LastTest.OK
		doc.Solved = &ok
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(artifactsDir, "summary.json"), b, 0o644)
}
