package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type memOps struct {
	files map[string]string
}

func (m *memOps) Open(p string) (string, error) {
	c, ok := m.files[p]
	if !ok {
		return "", errorf("not found: %s", p)
	}
	return c, nil
}

func (m *memOps) Write(p, content string) error {
	m.files[p] = content
	return nil
}

func (m *memOps) Remove(p string) error {
	if _, ok := m.files[p]; !ok {
		return errorf("not found: %s", p)
	}
	delete(m.files, p)
	return nil
}

func TestProcessPatch(t *testing.T) {
	t.Run("adds a new file", func(t *testing.T) {
		ops := &memOps{files: map[string]string{}}
		text := "*** Begin Patch\n*** Add File: hello.txt\n+hello\n+world\n*** End Patch"

		commit, err := ProcessPatch(text, ops)
		if err != nil {
			t.Fatalf("ProcessPatch failed: %v", err)
		}
		if commit.Changes["hello.txt"].Type != ActionAdd {
			t.Fatalf("expected add action")
		}
		if ops.files["hello.txt"] != "hello\nworld" {
			t.Fatalf("unexpected file content: %q", ops.files["hello.txt"])
		}
	})

	t.Run("deletes a file", func(t *testing.T) {
		ops := &memOps{files: map[string]string{"gone.txt": "bye"}}
		text := "*** Begin Patch\n*** Delete File: gone.txt\n*** End Patch"

		if _, err := ProcessPatch(text, ops); err != nil {
			t.Fatalf("ProcessPatch failed: %v", err)
		}
		if _, ok := ops.files["gone.txt"]; ok {
			t.Fatal("expected gone.txt to be removed")
		}
	})

	t.Run("updates a file with exact context", func(t *testing.T) {
		ops := &memOps{files: map[string]string{
			"main.go": "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n",
		}}
		text := "*** Begin Patch\n" +
			"*** Update File: main.go\n" +
			"@@ func main() {\n" +
			" \tprintln(\"hi\")\n" +
			"-}\n" +
			"+\tprintln(\"bye\")\n" +
			"+}\n" +
			"*** End Patch"

		commit, err := ProcessPatch(text, ops)
		if err != nil {
			t.Fatalf("ProcessPatch failed: %v", err)
		}
		if !strings.Contains(ops.files["main.go"], "bye") {
			t.Fatalf("expected updated content, got: %q", ops.files["main.go"])
		}
		if commit.Changes["main.go"].Type != ActionUpdate {
			t.Fatalf("expected update action")
		}
	})

	t.Run("tolerates trailing whitespace drift in context", func(t *testing.T) {
		ops := &memOps{files: map[string]string{
			"f.go": "package main   \n\nfunc a() {}\n",
		}}
		text := "*** Begin Patch\n" +
			"*** Update File: f.go\n" +
			"@@ \n" +
			" package main\n" +
			"-\n" +
			"+// marker\n" +
			"*** End Patch"

		if _, err := ProcessPatch(text, ops); err != nil {
			t.Fatalf("expected fuzzy match to tolerate trailing whitespace, got error: %v", err)
		}
	})

	t.Run("fails when context cannot be located", func(t *testing.T) {
		ops := &memOps{files: map[string]string{"f.go": "package main\n"}}
		text := "*** Begin Patch\n" +
			"*** Update File: f.go\n" +
			"@@ \n" +
			" this line does not exist anywhere\n" +
			"-x\n" +
			"+y\n" +
			"*** End Patch"

		if _, err := ProcessPatch(text, ops); err == nil {
			t.Fatal("expected an error for unmatched context")
		}
	})

	t.Run("rejects patch missing the end marker", func(t *testing.T) {
		ops := &memOps{files: map[string]string{}}
		text := "*** Begin Patch\n*** Add File: a.txt\n+hi\n"

		if _, err := ProcessPatch(text, ops); err == nil {
			t.Fatal("expected missing end patch error")
		}
	})

	t.Run("rejects update of a file never opened", func(t *testing.T) {
		ops := &memOps{files: map[string]string{}}
		text := "*** Begin Patch\n*** Update File: missing.go\n@@ \n x\n*** End Patch"

		if _, err := ProcessPatch(text, ops); err == nil {
			t.Fatal("expected file-not-found error")
		}
	})
}

func TestCanonPunct(t *testing.T) {
	t.Run("folds curly quotes and dashes", func(t *testing.T) {
		got := canonPunct("“em—dash” and ‘apostrophe’")
		want := `"em-dash" and 'apostrophe'`
		if got != want {
			t.Fatalf("canonPunct mismatch: got %q want %q", got, want)
		}
	})

	t.Run("folds ellipsis and superscripts", func(t *testing.T) {
		got := canonPunct("x² + y³ ≈ z…")
		if !strings.Contains(got, "x2 + y3") || !strings.HasSuffix(got, "...") {
			t.Fatalf("canonPunct did not fold superscripts/ellipsis: %q", got)
		}
	})
}

func TestApplyInRepo(t *testing.T) {
	t.Run("rejects absolute paths", func(t *testing.T) {
		dir := t.TempDir()
		text := "*** Begin Patch\n*** Add File: /etc/passwd\n+x\n*** End Patch"
		if _, err := ApplyInRepo(dir, text); err == nil {
			t.Fatal("expected absolute path to be rejected")
		}
	})

	t.Run("rejects paths escaping the repo root", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("keep"), 0644)
		text := "*** Begin Patch\n*** Delete File: ../keep.txt\n*** End Patch"
		if _, err := ApplyInRepo(dir, text); err == nil {
			t.Fatal("expected escaping path to be rejected")
		}
	})

	t.Run("applies an add within the repo", func(t *testing.T) {
		dir := t.TempDir()
		text := "*** Begin Patch\n*** Add File: sub/new.txt\n+contents\n*** End Patch"
		if _, err := ApplyInRepo(dir, text); err != nil {
			t.Fatalf("ApplyInRepo failed: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(dir, "sub", "new.txt"))
		if err != nil {
			t.Fatalf("expected file to be written: %v", err)
		}
		if string(b) != "contents" {
			t.Fatalf("unexpected content: %q", string(b))
		}
	})
}
