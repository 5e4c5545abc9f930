package plan

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FinalizeArgs is what the finalize tool call carries.
type FinalizeArgs struct {
	CommitMessage string
	Done          bool
}

// FinalizeResult is the validator's verdict.
type FinalizeResult struct {
	Accepted        bool
	Reasons         []string
	IncompleteSteps []Step
}

// DefaultMaxStuckRatio is the fraction of stuck steps above which finalize
// is rejected as likely misuse of the stuck status.
const DefaultMaxStuckRatio = 0.6

// ValidateFinalize runs the finalize admissibility check: a missing commit
// message always rejects; when checkPlanCompletion is true, an empty store
// (no plan) is treated as complete, a plan with any step outside
// {completed, stuck} is rejected listing those steps, and a plan whose
// stuck-step ratio exceeds maxStuckRatio is rejected as misuse regardless of
// the rest of the plan's state.
func ValidateFinalize(args FinalizeArgs, store *Store, checkPlanCompletion bool, maxStuckRatio float64) FinalizeResult {
	var reasons []string
	var incomplete []Step

	if strings.TrimSpace(args.CommitMessage) == "" {
		reasons = append(reasons, "missing commit_message")
	}

	if checkPlanCompletion && store != nil {
		p, err := store.Load()
		if err == nil && len(p.Steps) > 0 {
			if p.StuckRatio() > maxStuckRatio {
				reasons = append(reasons, "too many steps marked as stuck - likely misuse")
			} else {
				incomplete = p.Incomplete()
				if len(incomplete) > 0 {
					reasons = append(reasons, "plan has incomplete steps")
				}
			}
		}
	}

	return FinalizeResult{
		Accepted:        len(reasons) == 0,
		Reasons:         reasons,
		IncompleteSteps: incomplete,
	}
}

var (
	placeholderPattern    = regexp.MustCompile(`(?i)TODO|FIXME|XXX`)
	notImplementedPattern = regexp.MustCompile(`(?i)throw new Error.*not implemented|not implemented`)
	scannedExtensions     = map[string]bool{".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".py": true, ".go": true}
	scanExcludedDirs      = map[string]bool{"node_modules": true, "__pycache__": true, ".git": true, "dist": true, "build": true, "vendor": true}
)

// PlaceholderScanResult is advisory output only — per the spec's open
// question resolution, a placeholder scan never gates finalize.
type PlaceholderScanResult struct {
	TODOCount           int
	NotImplementedCount int
}

// ScanPlaceholders walks repoDir counting TODO/FIXME/XXX markers and
// "not implemented" style placeholders. It never returns an error that
// should block finalize; callers treat it as advisory.
func ScanPlaceholders(readDir func(string) ([]DirEntry, error), readFile func(string) (string, error), repoDir string) PlaceholderScanResult {
	var result PlaceholderScanResult
	walk(readDir, readFile, repoDir, &result)
	return result
}

// DirEntry is the minimal directory-entry shape ScanPlaceholders needs,
// decoupling it from os.DirEntry so callers can fake a filesystem in tests.
type DirEntry struct {
	Name  string
	IsDir bool
}

func walk(readDir func(string) ([]DirEntry, error), readFile func(string) (string, error), dir string, result *PlaceholderScanResult) {
	entries, err := readDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name)
		if e.IsDir {
			if scanExcludedDirs[e.Name] {
				continue
			}
			walk(readDir, readFile, full, result)
			continue
		}
		if !scannedExtensions[filepath.Ext(e.Name)] {
			continue
		}
		content, err := readFile(full)
		if err != nil {
			continue
		}
		result.TODOCount += len(placeholderPattern.FindAllString(content, -1))
		result.NotImplementedCount += len(notImplementedPattern.FindAllString(content, -1))
	}
}
