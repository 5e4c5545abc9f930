package plan

import "testing"

func TestReplaceSteps(t *testing.T) {
	t.Run("preserves status of existing ids", func(t *testing.T) {
		p := &Plan{Steps: []Step{{ID: "a", Status: StatusCompleted}, {ID: "b", Status: StatusInProgress}}}
		p.ReplaceSteps([]Step{{ID: "a", Description: "still a"}, {ID: "c", Description: "new"}})

		if p.byID("a").Status != StatusCompleted {
			t.Fatalf("expected a to keep completed status, got %s", p.byID("a").Status)
		}
		if p.byID("c").Status != StatusPending {
			t.Fatalf("expected new step c to default to pending, got %s", p.byID("c").Status)
		}
	})

	t.Run("explicit status in incoming step wins", func(t *testing.T) {
		p := &Plan{Steps: []Step{{ID: "a", Status: StatusPending}}}
		p.ReplaceSteps([]Step{{ID: "a", Status: StatusStuck}})
		if p.byID("a").Status != StatusStuck {
			t.Fatalf("expected explicit status to win, got %s", p.byID("a").Status)
		}
	})
}

func TestMarkInProgress(t *testing.T) {
	t.Run("demotes previous in-progress step", func(t *testing.T) {
		p := &Plan{Steps: []Step{{ID: "a", Status: StatusInProgress}, {ID: "b", Status: StatusPending}}}
		p.MarkInProgress("b")

		if p.byID("a").Status != StatusPending {
			t.Fatalf("expected a to be demoted to pending, got %s", p.byID("a").Status)
		}
		if p.byID("b").Status != StatusInProgress {
			t.Fatalf("expected b to be in_progress, got %s", p.byID("b").Status)
		}
	})
}

func TestValidateFinalize(t *testing.T) {
	t.Run("rejects empty commit message", func(t *testing.T) {
		result := ValidateFinalize(FinalizeArgs{CommitMessage: "  "}, nil, false, DefaultMaxStuckRatio)
		if result.Accepted {
			t.Fatal("expected rejection for empty commit message")
		}
	})

	t.Run("rejects incomplete plan when gating enabled", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir)
		store.Save(&Plan{Steps: []Step{{ID: "a", Status: StatusPending}, {ID: "b", Status: StatusCompleted}}})

		result := ValidateFinalize(FinalizeArgs{CommitMessage: "x"}, store, true, DefaultMaxStuckRatio)
		if result.Accepted {
			t.Fatal("expected rejection for incomplete plan")
		}
		if len(result.IncompleteSteps) != 1 || result.IncompleteSteps[0].ID != "a" {
			t.Fatalf("expected step a to be reported incomplete, got %+v", result.IncompleteSteps)
		}
	})

	t.Run("accepts when all steps completed or stuck", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir)
		store.Save(&Plan{Steps: []Step{{ID: "a", Status: StatusCompleted}, {ID: "b", Status: StatusStuck}}})

		result := ValidateFinalize(FinalizeArgs{CommitMessage: "x"}, store, true, DefaultMaxStuckRatio)
		if !result.Accepted {
			t.Fatalf("expected acceptance, got reasons: %v", result.Reasons)
		}
	})

	t.Run("rejects when stuck ratio exceeds threshold", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStore(dir)
		store.Save(&Plan{Steps: []Step{
			{ID: "a", Status: StatusStuck}, {ID: "b", Status: StatusStuck}, {ID: "c", Status: StatusCompleted},
		}})

		result := ValidateFinalize(FinalizeArgs{CommitMessage: "x"}, store, true, 0.5)
		if result.Accepted {
			t.Fatal("expected rejection for excessive stuck ratio")
		}
	})
}

func TestScanPlaceholders(t *testing.T) {
	t.Run("counts markers without blocking", func(t *testing.T) {
		files := map[string]string{
			"/repo/main.go": "// TODO: fix this\nfunc x() {}\n",
		}
		readDir := func(dir string) ([]DirEntry, error) {
			if dir == "/repo" {
				return []DirEntry{{Name: "main.go"}}, nil
			}
			return nil, nil
		}
		readFile := func(p string) (string, error) { return files[p], nil }

		result := ScanPlaceholders(readDir, readFile, "/repo")
		if result.TODOCount != 1 {
			t.Fatalf("expected 1 TODO, got %d", result.TODOCount)
		}
	})
}
