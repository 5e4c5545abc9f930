package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const notesFile = ".devtwin_notes.jsonl"
const notesMDFile = "notes.md"

// Note is one entry in the notes journal.
type Note struct {
	Timestamp string `json:"ts"`
	Topic     string `json:"topic"`
	Content   string `json:"content"`
}

// Notes manages the append-only notes journal and its regenerated Markdown
// view, rooted at a single directory (normally the run's artifacts
// directory).
type Notes struct {
	Dir string
}

func NewNotes(dir string) *Notes {
	return &Notes{Dir: dir}
}

func (n *Notes) path() string   { return filepath.Join(n.Dir, notesFile) }
func (n *Notes) mdPath() string { return filepath.Join(n.Dir, notesMDFile) }

// Append writes a note and regenerates notes.md. Best-effort: errors are
// swallowed, never propagated to the caller, per §4.3 and §7.
func (n *Notes) Append(topic, content string) {
	entry := Note{Timestamp: time.Now().UTC().Format(time.RFC3339), Topic: topic, Content: content}
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := os.MkdirAll(n.Dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(n.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	_, _ = f.Write(append(b, '\n'))
	f.Close()
	n.regenerateMarkdown()
}

func (n *Notes) regenerateMarkdown() {
	f, err := os.Open(n.path())
	if err != nil {
		return
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var note Note
		if err := json.Unmarshal(scanner.Bytes(), &note); err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] **%s**: %s", note.Timestamp, note.Topic, note.Content))
	}

	content := strings.Join(lines, "\n")
	if content == "" {
		content = "(no notes)"
	}
	_ = os.WriteFile(n.mdPath(), []byte(content), 0o644)
}

// Read returns up to limit most-recent notes, newest first, optionally
// filtered by topic.
func (n *Notes) Read(topic string, limit int) []Note {
	f, err := os.Open(n.path())
	if err != nil {
		return nil
	}
	defer f.Close()

	var all []Note
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var note Note
		if err := json.Unmarshal(scanner.Bytes(), &note); err != nil {
			continue
		}
		all = append(all, note)
	}

	if limit <= 0 {
		limit = 20
	}
	var result []Note
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		if topic != "" && all[i].Topic != topic {
			continue
		}
		result = append(result, all[i])
	}
	return result
}

// AutoNoteShellExit records shell non-zero exits and successful npm
// installs, mirroring ArtifactsManager.note_shell_exit.
func (n *Notes) AutoNoteShellExit(command, resultText string) {
	idx := strings.Index(resultText, "[exit ")
	if idx == -1 {
		return
	}
	rest := resultText[idx+6:]
	end := strings.Index(rest, "]")
	if end == -1 {
		return
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		return
	}
	if code != 0 {
		n.Append("shell_error", fmt.Sprintf("%s -> exit %d", command, code))
	} else if strings.Contains(command, "npm install") {
		n.Append("shell_ok", "npm install -> exit 0")
	}
}

// AutoNoteReadNotFound records read_file misses.
func (n *Notes) AutoNoteReadNotFound(toolName, resultText string) {
	if toolName == "read_file" && strings.HasPrefix(resultText, "NOT_FOUND:") {
		n.Append("read_not_found", resultText)
	}
}

// AutoNoteFinalize records an accepted finalize's commit message.
func (n *Notes) AutoNoteFinalize(commitMessage string) {
	if commitMessage != "" {
		n.Append("finalize", commitMessage)
	}
}
