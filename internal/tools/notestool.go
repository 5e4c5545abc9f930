package tools

import "strings"

// NotesReadTool implements notes_read: the most recent notes, optionally
// filtered by topic, rendered one per line.
func NotesReadTool(env *Env) Tool {
	return Tool{
		Name:        "notes_read",
		Description: "Read recent notes recorded during this run, optionally filtered by topic.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"topic": map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "integer"},
			},
		},
		Invoke: func(call ToolCall) ToolResult {
			if env.Notes == nil {
				return ToolResult{Text: "(no notes)"}
			}
			topic := argString(call, "topic", "")
			limit := argInt(call, "limit", 20)
			notes := env.Notes.Read(topic, limit)
			if len(notes) == 0 {
				return ToolResult{Text: "(no notes)"}
			}
			var lines []string
			for _, n := range notes {
				lines = append(lines, "["+n.Timestamp+"] "+n.Topic+": "+n.Content)
			}
			return ToolResult{Text: strings.Join(lines, "\n")}
		},
	}
}

// NoteWriteTool implements note_write: appends a topic/content pair to the
// run's notes journal.
func NoteWriteTool(env *Env) Tool {
	return Tool{
		Name:        "note_write",
		Description: "Record a short note under a topic for later reference during this run.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"topic":   map[string]interface{}{"type": "string"},
				"content": map[string]interface{}{"type": "string"},
			},
			"required": []string{"topic", "content"},
		},
		Invoke: func(call ToolCall) ToolResult {
			topic := argString(call, "topic", "general")
			content := argString(call, "content", "")
			if env.Notes != nil {
				env.Notes.Append(topic, content)
			}
			return ToolResult{Text: "NOTED"}
		},
	}
}
