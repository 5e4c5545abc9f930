package tools

import "devtwin/internal/patch"

// resolvePath enforces the same root-escape guard the patch engine uses, so
// every path-taking tool and apply_patch reject absolute and escaping paths
// identically.
func resolvePath(repoDir, rel string) (string, error) {
	return patch.ResolveInRepo(repoDir, rel)
}
