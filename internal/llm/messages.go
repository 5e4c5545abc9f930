package llm

// InitialMessages seeds a new conversation with a system message followed by
// the user's opening input.
func InitialMessages(systemPrompt, userInput string) []ChatMessage {
	return []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userInput},
	}
}

// TrimMessages bounds a conversation to at most keepLastMessages entries
// (always keeping the first, system message) and then drops the oldest
// surviving entries until the total content length is under
// maxHistoryChars, never dropping below two messages. keepLastMessages < 0
// means no count-based trim.
func TrimMessages(msgs []ChatMessage, keepLastMessages, maxHistoryChars int) []ChatMessage {
	if len(msgs) == 0 {
		return msgs
	}

	var kept []ChatMessage
	if keepLastMessages < 0 {
		kept = append(kept, msgs...)
	} else {
		kept = append(kept, msgs[0])
		tail := msgs[1:]
		if len(tail) > keepLastMessages-1 && keepLastMessages > 0 {
			tail = tail[len(tail)-(keepLastMessages-1):]
		} else if keepLastMessages <= 0 {
			tail = nil
		}
		kept = append(kept, tail...)
	}

	total := 0
	for _, m := range kept {
		total += len(m.Content)
	}
	for total > maxHistoryChars && len(kept) > 2 {
		dropped := kept[1]
		kept = append(kept[:1], kept[2:]...)
		total -= len(dropped.Content)
	}
	return kept
}

// ClipText truncates text to limit characters, appending a truncation marker
// when it does.
func ClipText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	if limit < 20 {
		return text[:limit]
	}
	return text[:limit-20] + "\n...[truncated]"
}

// RemoveLastTransientMessage drops the most recently appended transient
// user message whose content starts with one of the given prefixes (e.g.
// "<plan>" or "<turns>"), used to re-inject a fresh snapshot each step
// without letting stale ones accumulate in history.
func RemoveLastTransientMessage(msgs []ChatMessage, prefixes ...string) []ChatMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "user" {
			continue
		}
		for _, p := range prefixes {
			if hasPrefix(msgs[i].Content, p) {
				out := make([]ChatMessage, 0, len(msgs)-1)
				out = append(out, msgs[:i]...)
				out = append(out, msgs[i+1:]...)
				return out
			}
		}
	}
	return msgs
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
