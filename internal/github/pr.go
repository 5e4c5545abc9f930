package github

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"devtwin/internal/runstate"
)

// PullRequest is the result of a successful CreatePR call.
type PullRequest struct {
	Number     int      `json:"number"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	HeadBranch string   `json:"headRefName"`
	BaseBranch string   `json:"baseRefName"`
	URL        string   `json:"url"`
	Labels     []string `json:"labels"`
	IsDraft    bool     `json:"isDraft"`
	Repository string   `json:"repository"`
}

// CommitOptions controls CommitChanges' staging and message.
type CommitOptions struct {
	Message     string
	IssueNumber int
	FilePaths   []string
	AllFiles    bool
}

// PRCreateOptions controls CreatePR's title, body, and target branches.
type PRCreateOptions struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	IsDraft    bool
	Labels     []string
}

// CreateBranch checks out a new branch from fromBranch (default "main"),
// or switches to it if it already exists.
func (c *Client) CreateBranch(branchName, fromBranch string) error {
	if fromBranch == "" {
		fromBranch = "main"
	}

	checkoutCmd := exec.Command("git", "checkout", "-b", branchName, fromBranch)
	if c.workDir != "" {
		checkoutCmd.Dir = c.workDir
	}
	output, err := checkoutCmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "already exists") {
			checkoutCmd = exec.Command("git", "checkout", branchName)
			if c.workDir != "" {
				checkoutCmd.Dir = c.workDir
			}
			if output, err := checkoutCmd.CombinedOutput(); err != nil {
				return fmt.Errorf("failed to checkout existing branch %s: %w\nOutput: %s", branchName, err, string(output))
			}
			return nil
		}
		return fmt.Errorf("failed to create branch %s: %w\nOutput: %s", branchName, err, string(output))
	}

	return nil
}

// CommitChanges stages the given paths (or everything, if AllFiles) and
// commits with opts.Message, appending a "Closes #N" trailer when
// IssueNumber is set. A clean working tree is not an error.
func (c *Client) CommitChanges(opts CommitOptions) error {
	if opts.AllFiles {
		addCmd := exec.Command("git", "add", "-A")
		if c.workDir != "" {
			addCmd.Dir = c.workDir
		}
		if output, err := addCmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to stage all files: %w\nOutput: %s", err, string(output))
		}
	} else if len(opts.FilePaths) > 0 {
		args := append([]string{"add"}, opts.FilePaths...)
		addCmd := exec.Command("git", args...)
		if c.workDir != "" {
			addCmd.Dir = c.workDir
		}
		if output, err := addCmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to stage files: %w\nOutput: %s", err, string(output))
		}
	}

	commitMsg := opts.Message
	if opts.IssueNumber > 0 {
		commitMsg = fmt.Sprintf("%s\n\nCloses #%d", commitMsg, opts.IssueNumber)
	}

	commitCmd := exec.Command("git", "commit", "-m", commitMsg)
	if c.workDir != "" {
		commitCmd.Dir = c.workDir
	}
	output, err := commitCmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("failed to commit: %w\nOutput: %s", err, string(output))
	}

	return nil
}

// PushBranch pushes branchName to origin, creating the upstream tracking
// ref.
func (c *Client) PushBranch(branchName string) error {
	pushCmd := exec.Command("git", "push", "-u", "origin", branchName)
	if c.workDir != "" {
		pushCmd.Dir = c.workDir
	}
	output, err := pushCmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to push branch %s: %w\nOutput: %s", branchName, err, string(output))
	}

	return nil
}

// CreatePR opens a pull request via the gh CLI and parses its number out
// of the returned PR URL.
func (c *Client) CreatePR(opts PRCreateOptions) (*PullRequest, error) {
	args := []string{"pr", "create"}

	if opts.Title != "" {
		args = append(args, "--title", opts.Title)
	}
	if opts.Body != "" {
		args = append(args, "--body", opts.Body)
	}
	if opts.BaseBranch != "" {
		args = append(args, "--base", opts.BaseBranch)
	}
	if opts.HeadBranch != "" {
		args = append(args, "--head", opts.HeadBranch)
	}
	if opts.IsDraft {
		args = append(args, "--draft")
	}
	for _, label := range opts.Labels {
		args = append(args, "--label", label)
	}
	args = append(args, "--repo", c.repo)

	cmd := exec.Command("gh", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to create PR: %w\nOutput: %s", err, string(output))
	}

	prURL := strings.TrimSpace(string(output))
	parts := strings.Split(prURL, "/")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid PR URL format: %s", prURL)
	}

	prNumber := 0
	if numStr := parts[len(parts)-1]; numStr != "" {
		prNumber, _ = strconv.Atoi(numStr)
	}

	return &PullRequest{
		Number:     prNumber,
		Title:      opts.Title,
		Body:       opts.Body,
		URL:        prURL,
		HeadBranch: opts.HeadBranch,
		BaseBranch: opts.BaseBranch,
		IsDraft:    opts.IsDraft,
		Labels:     opts.Labels,
		Repository: c.repo,
	}, nil
}

// GeneratePRBody renders a pull request description closing the source
// issue and summarizing the run's iteration commit messages.
func GeneratePRBody(issue runstate.Issue, commitMessages []string) string {
	var b strings.Builder
	if issue.Number > 0 {
		fmt.Fprintf(&b, "Closes #%d\n\n", issue.Number)
	}
	b.WriteString("## Changes\n\n")
	for _, msg := range commitMessages {
		fmt.Fprintf(&b, "- %s\n", strings.SplitN(msg, "\n", 2)[0])
	}
	return b.String()
}
