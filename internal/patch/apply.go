package patch

import (
	"os"
	"path/filepath"
	"strings"
)

// Change describes the effect of applying a single patch action to one path,
// enough for a caller to render a diff or journal the edit without re-parsing
// the patch.
type Change struct {
	Path       string
	Type       ActionType
	OldContent string
	HasOld     bool
	NewContent string
}

// Commit is the fully resolved set of file-level changes a Patch produces,
// independent of however the caller chooses to persist them.
type Commit struct {
	Changes map[string]*Change
	Order   []string
}

// getUpdatedFile reconstructs the new contents of a file from its original
// text and the chunks of an update action, splicing insertions in and
// skipping over deleted regions at each chunk's orig_index.
func getUpdatedFile(text string, action *Action, path string) (string, error) {
	if action.Type != ActionUpdate {
		return "", errorf("Expected UPDATE action")
	}
	origLines := strings.Split(text, "\n")
	var destLines []string
	origIndex := 0
	for _, chunk := range action.Chunks {
		if chunk.OrigIndex > len(origLines) {
			return "", errorf("%s: chunk.orig_index %d > len(lines) %d", path, chunk.OrigIndex, len(origLines))
		}
		if origIndex > chunk.OrigIndex {
			return "", errorf("%s: orig_index %d > chunk.orig_index %d", path, origIndex, chunk.OrigIndex)
		}
		destLines = append(destLines, origLines[origIndex:chunk.OrigIndex]...)
		origIndex = chunk.OrigIndex
		if len(chunk.InsLines) > 0 {
			destLines = append(destLines, chunk.InsLines...)
		}
		origIndex += len(chunk.DelLines)
	}
	destLines = append(destLines, origLines[origIndex:]...)
	return strings.Join(destLines, "\n"), nil
}

// patchToCommit resolves a parsed Patch into concrete before/after file
// contents, in the order the actions were declared.
func patchToCommit(p *Patch, orig map[string]string) (*Commit, error) {
	commit := &Commit{Changes: map[string]*Change{}}
	for _, path := range p.Order {
		action := p.Actions[path]
		switch action.Type {
		case ActionDelete:
			old, hasOld := orig[path]
			commit.Changes[path] = &Change{Path: path, Type: ActionDelete, OldContent: old, HasOld: hasOld}
		case ActionAdd:
			commit.Changes[path] = &Change{Path: path, Type: ActionAdd, NewContent: action.NewFile}
		case ActionUpdate:
			newContent, err := getUpdatedFile(orig[path], action, path)
			if err != nil {
				return nil, err
			}
			old, hasOld := orig[path]
			commit.Changes[path] = &Change{Path: path, Type: ActionUpdate, OldContent: old, HasOld: hasOld, NewContent: newContent}
		}
		commit.Order = append(commit.Order, path)
	}
	return commit, nil
}

// FileOps abstracts the filesystem operations a commit needs so callers can
// sandbox, dry-run, or journal every write without patch knowing about it.
type FileOps interface {
	Open(path string) (string, error)
	Write(path, content string) error
	Remove(path string) error
}

// ApplyCommit executes every change in a Commit against ops, in declaration
// order, writing added and updated files and removing deleted ones.
func ApplyCommit(commit *Commit, ops FileOps) error {
	for _, path := range commit.Order {
		change := commit.Changes[path]
		switch change.Type {
		case ActionDelete:
			if err := ops.Remove(path); err != nil {
				return err
			}
		case ActionAdd, ActionUpdate:
			if err := ops.Write(path, change.NewContent); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessPatch parses patch text, resolves it against the current contents
// supplied by ops, and applies the result. It returns the resolved commit so
// the caller can journal exactly what changed.
func ProcessPatch(text string, ops FileOps) (*Commit, error) {
	if !strings.HasPrefix(text, beginMarker) {
		return nil, errorf("Patch must start with *** Begin Patch")
	}
	paths := IdentifyFilesNeeded(text)
	orig := map[string]string{}
	for _, p := range paths {
		content, err := ops.Open(p)
		if err != nil {
			return nil, errorf("File not found: %s", p)
		}
		orig[p] = content
	}
	p, _, err := textToPatch(text, orig)
	if err != nil {
		return nil, err
	}
	commit, err := patchToCommit(p, orig)
	if err != nil {
		return nil, err
	}
	if err := ApplyCommit(commit, ops); err != nil {
		return nil, err
	}
	return commit, nil
}

// ResolveInRepo resolves a repository-relative path against root, rejecting
// absolute paths and paths that escape root. Shared by the patch engine's
// own FileOps and by the tool registry's path-taking tools, so there is one
// root-escape guard in the module, not two.
func ResolveInRepo(root, p string) (string, error) {
	if filepath.IsAbs(p) {
		return "", errorf("We do not support absolute paths.")
	}
	abs := filepath.Clean(filepath.Join(root, p))
	rootAbs := filepath.Clean(root)
	if abs != rootAbs && !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return "", errorf("Path escapes repository root.")
	}
	return abs, nil
}

// repoFileOps implements FileOps against a real directory on disk, rejecting
// any path that is absolute or that resolves outside the repository root.
type repoFileOps struct {
	root string
}

func (r *repoFileOps) resolve(p string) (string, error) {
	return ResolveInRepo(r.root, p)
}

func (r *repoFileOps) Open(p string) (string, error) {
	abs, err := r.resolve(p)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *repoFileOps) Write(p, content string) error {
	abs, err := r.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte(content), 0o644)
}

func (r *repoFileOps) Remove(p string) error {
	abs, err := r.resolve(p)
	if err != nil {
		return err
	}
	return os.Remove(abs)
}

// ApplyInRepo parses and applies patchText against the real files under
// repoDir, guarding every referenced path against escaping repoDir.
func ApplyInRepo(repoDir, patchText string) (*Commit, error) {
	return ProcessPatch(patchText, &repoFileOps{root: repoDir})
}
