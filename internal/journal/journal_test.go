package journal

import (
	"os"
	"strings"
	"testing"
)

func TestEmitterMirrorsEvents(t *testing.T) {
	t.Run("in-memory mirror and file stay in sync", func(t *testing.T) {
		dir := t.TempDir()
		e := NewEmitter(dir)
		e.ToolInvocation("read_file", map[string]interface{}{"path": "a.go"}, "package main")

		if len(e.Events()) != 1 {
			t.Fatalf("expected 1 mirrored event, got %d", len(e.Events()))
		}
	})
}

func TestSummarizeLastTest(t *testing.T) {
	t.Run("finds most recent shell exit code", func(t *testing.T) {
		events := []Event{
			{Type: "tool", Tool: "shell", Args: map[string]interface{}{"command": "npm test"}, Result: "$ npm test\n[exit 1]\nfail"},
			{Type: "tool", Tool: "shell", Args: map[string]interface{}{"command": "npm test"}, Result: "$ npm test\n[exit 0]\nok"},
		}
		cmd, code, ok, found := SummarizeLastTest(events)
		if !found || cmd != "npm test" || code != 0 || !ok {
			t.Fatalf("unexpected summary: cmd=%q code=%d ok=%v found=%v", cmd, code, ok, found)
		}
	})
}

func TestNotesAppendAndRead(t *testing.T) {
	t.Run("regenerates markdown and filters by topic", func(t *testing.T) {
		dir := t.TempDir()
		n := NewNotes(dir)
		n.Append("shell_error", "npm test -> exit 1")
		n.Append("finalize", "done")

		notes := n.Read("finalize", 10)
		if len(notes) != 1 || notes[0].Content != "done" {
			t.Fatalf("expected 1 finalize note, got %+v", notes)
		}

		md, err := readFile(n.mdPath())
		if err != nil {
			t.Fatalf("expected notes.md to exist: %v", err)
		}
		if !strings.Contains(md, "finalize") {
			t.Fatalf("expected notes.md to mention finalize, got %q", md)
		}
	})

	t.Run("auto-notes shell non-zero exit", func(t *testing.T) {
		dir := t.TempDir()
		n := NewNotes(dir)
		n.AutoNoteShellExit("pytest", "$ pytest\n[exit 1]\nfailed")

		notes := n.Read("", 10)
		if len(notes) != 1 || notes[0].Topic != "shell_error" {
			t.Fatalf("expected a shell_error note, got %+v", notes)
		}
	})
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
