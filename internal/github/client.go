// Package github drives the git/gh commands a finished run needs to land
// its work: branch, commit, push, and open a pull request against the
// issue it was resolving.
package github

// Client shells out to git and the gh CLI against one owner/repo.
type Client struct {
	repo    string
	workDir string
}

// NewClient builds a Client for repo (owner/repo format).
func NewClient(repo string) *Client {
	return &Client{repo: repo}
}

// SetWorkDir sets the working directory git/gh commands run in.
func (c *Client) SetWorkDir(dir string) {
	c.workDir = dir
}
