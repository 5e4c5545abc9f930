package patch

import "strings"

// parser walks the line-oriented patch text and builds a Patch, tracking the
// accumulated fuzz cost of every context match it had to fall back on.
type parser struct {
	currentFiles map[string]string
	lines        []string
	index        int
	patch        *Patch
	fuzz         int
}

func isDone(lines []string, index int, prefixes []string) bool {
	if index >= len(lines) {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(lines[index], strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}

func startsWithAny(lines []string, index int, prefixes ...string) bool {
	if index >= len(lines) {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(lines[index], p) {
			return true
		}
	}
	return false
}

// readStr returns the text after prefix on the current line (or the whole
// line if returnEverything is set) and the advanced index, or ("", index)
// unchanged if the line doesn't start with prefix.
func readStr(lines []string, index int, prefix string, returnEverything bool) (string, int, error) {
	if index >= len(lines) {
		return "", index, errorf("Index: %d >= %d", index, len(lines))
	}
	if strings.HasPrefix(lines[index], prefix) {
		text := lines[index]
		if !returnEverything {
			text = text[len(prefix):]
		}
		return text, index + 1, nil
	}
	return "", index, nil
}

// peekNextSection scans forward from initialIndex collecting the context and
// chunks of a single @@-anchored section, stopping at the next structural
// marker. It returns the section's "old" lines (context + deletions, as seen
// in the original file), the chunks found, the advanced index, and whether
// the section was terminated by an explicit End of File marker.
func peekNextSection(lines []string, initialIndex int) ([]string, []Chunk, int, bool, error) {
	index := initialIndex
	var old []string
	var delLines, insLines []string
	var chunks []Chunk
	mode := "keep"

	for index < len(lines) {
		s := lines[index]
		if startsWithAny(lines, index, hunkAnchorTag, endMarker, updFilePrefix, delFilePrefix, addFilePrefix, eofMarker) {
			break
		}
		if s == "***" {
			break
		}
		if strings.HasPrefix(s, "***") {
			return nil, nil, index, false, errorf("Invalid Line: %s", s)
		}
		index++
		lastMode := mode
		line := s
		switch {
		case strings.HasPrefix(line, addLinePrefix):
			mode = "add"
		case strings.HasPrefix(line, delLinePrefix):
			mode = "delete"
		case strings.HasPrefix(line, " "):
			mode = "keep"
		default:
			mode = "keep"
			line = " " + line
		}
		line = line[1:]
		if mode == "keep" && lastMode != mode {
			if len(insLines) > 0 || len(delLines) > 0 {
				chunks = append(chunks, Chunk{
					OrigIndex: len(old) - len(delLines),
					DelLines:  delLines,
					InsLines:  insLines,
				})
			}
			delLines = nil
			insLines = nil
		}
		switch mode {
		case "delete":
			delLines = append(delLines, line)
			old = append(old, line)
		case "add":
			insLines = append(insLines, line)
		default:
			old = append(old, line)
		}
	}
	if len(insLines) > 0 || len(delLines) > 0 {
		chunks = append(chunks, Chunk{
			OrigIndex: len(old) - len(delLines),
			DelLines:  delLines,
			InsLines:  insLines,
		})
	}
	if index < len(lines) && lines[index] == eofMarker {
		index++
		return old, chunks, index, true, nil
	}
	return old, chunks, index, false, nil
}

func (p *parser) parse() error {
	for !isDone(p.lines, p.index, []string{endMarker}) {
		path, next, err := readStr(p.lines, p.index, updFilePrefix, false)
		if err != nil {
			return err
		}
		if path != "" {
			p.index = next
			if _, exists := p.patch.Actions[path]; exists {
				return errorf("Update File Error: Duplicate Path: %s", path)
			}
			text, ok := p.currentFiles[path]
			if !ok {
				return errorf("Update File Error: Missing File: %s", path)
			}
			action, err := p.parseUpdateFile(text)
			if err != nil {
				return err
			}
			p.patch.set(path, action)
			continue
		}

		path, next, err = readStr(p.lines, p.index, delFilePrefix, false)
		if err != nil {
			return err
		}
		if path != "" {
			p.index = next
			if _, exists := p.patch.Actions[path]; exists {
				return errorf("Delete File Error: Duplicate Path: %s", path)
			}
			if _, ok := p.currentFiles[path]; !ok {
				return errorf("Delete File Error: Missing File: %s", path)
			}
			p.patch.set(path, &Action{Type: ActionDelete})
			continue
		}

		path, next, err = readStr(p.lines, p.index, addFilePrefix, false)
		if err != nil {
			return err
		}
		if path != "" {
			p.index = next
			if _, exists := p.patch.Actions[path]; exists {
				return errorf("Add File Error: Duplicate Path: %s", path)
			}
			if _, ok := p.currentFiles[path]; ok {
				return errorf("Add File Error: File already exists: %s", path)
			}
			action, err := p.parseAddFile()
			if err != nil {
				return err
			}
			p.patch.set(path, action)
			continue
		}

		return errorf("Unknown Line: %s", p.lines[p.index])
	}
	if !startsWithAny(p.lines, p.index, strings.TrimSpace(endMarker)) {
		return errorf("Missing End Patch")
	}
	p.index++
	return nil
}

func (p *parser) parseUpdateFile(text string) (*Action, error) {
	action := &Action{Type: ActionUpdate}
	fileLines := strings.Split(text, "\n")
	indexInFile := 0

	stopPrefixes := []string{endMarker, updFilePrefix, delFilePrefix, addFilePrefix, eofMarker}
	for !isDone(p.lines, p.index, stopPrefixes) {
		defStr, next, err := readStr(p.lines, p.index, "@@ ", false)
		if err != nil {
			return nil, err
		}
		p.index = next
		sectionStr := ""
		if defStr == "" && p.index < len(p.lines) && p.lines[p.index] == hunkAnchorTag {
			sectionStr = p.lines[p.index]
			p.index++
		}
		if defStr == "" && sectionStr == "" && indexInFile != 0 {
			return nil, errorf("Invalid Line:\n%s", p.lines[p.index])
		}

		if strings.TrimSpace(defStr) != "" {
			found := false
			canonDef := canonPunct(defStr)
			alreadySeen := false
			for _, s := range fileLines[:indexInFile] {
				if canonPunct(s) == canonDef {
					alreadySeen = true
					break
				}
			}
			if !alreadySeen {
				for i := indexInFile; i < len(fileLines); i++ {
					if canonPunct(fileLines[i]) == canonDef {
						indexInFile = i + 1
						found = true
						break
					}
				}
			}
			if !found {
				canonDefTrim := canonPunct(strings.TrimSpace(defStr))
				alreadySeenTrim := false
				for _, s := range fileLines[:indexInFile] {
					if canonPunct(strings.TrimSpace(s)) == canonDefTrim {
						alreadySeenTrim = true
						break
					}
				}
				if !alreadySeenTrim {
					for i := indexInFile; i < len(fileLines); i++ {
						if canonPunct(strings.TrimSpace(fileLines[i])) == canonDefTrim {
							indexInFile = i + 1
							p.fuzz++
							found = true
							break
						}
					}
				}
			}
		}

		nextCtx, chunks, endPatchIndex, eof, err := peekNextSection(p.lines, p.index)
		if err != nil {
			return nil, err
		}
		newIndex, fuzz := findContext(fileLines, nextCtx, indexInFile, eof)
		if newIndex == -1 {
			ctxText := strings.Join(nextCtx, "\n")
			if eof {
				return nil, errorf("Invalid EOF Context %d:\n%s", indexInFile, ctxText)
			}
			return nil, errorf("Invalid Context %d:\n%s", indexInFile, ctxText)
		}
		p.fuzz += fuzz
		for i := range chunks {
			chunks[i].OrigIndex += newIndex
			action.Chunks = append(action.Chunks, chunks[i])
		}
		indexInFile = newIndex + len(nextCtx)
		p.index = endPatchIndex
	}
	return action, nil
}

func (p *parser) parseAddFile() (*Action, error) {
	var lines []string
	stopPrefixes := []string{endMarker, updFilePrefix, delFilePrefix, addFilePrefix}
	for !isDone(p.lines, p.index, stopPrefixes) {
		s, next, err := readStr(p.lines, p.index, "", false)
		if err != nil {
			return nil, err
		}
		p.index = next
		if !strings.HasPrefix(s, addLinePrefix) {
			return nil, errorf("Invalid Add File Line: %s", s)
		}
		lines = append(lines, s[1:])
	}
	return &Action{Type: ActionAdd, NewFile: strings.Join(lines, "\n")}, nil
}

// textToPatch parses a full "*** Begin Patch" ... "*** End Patch" envelope
// against the current contents of every file it touches, returning the
// parsed Patch and the total fuzz cost accumulated while matching context.
func textToPatch(text string, orig map[string]string) (*Patch, int, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return nil, 0, errorf("Invalid patch text: Patch text must have at least two lines.")
	}
	if !strings.HasPrefix(lines[0], strings.TrimSpace(beginMarker)) {
		return nil, 0, errorf("Invalid patch text: Patch text must start with the correct patch prefix.")
	}
	if lines[len(lines)-1] != strings.TrimSpace(endMarker) {
		return nil, 0, errorf("Invalid patch text: Patch text must end with the correct patch suffix.")
	}
	p := &parser{currentFiles: orig, lines: lines, index: 1, patch: newPatch()}
	if err := p.parse(); err != nil {
		return nil, 0, err
	}
	return p.patch, p.fuzz, nil
}

// IdentifyFilesNeeded returns every path referenced by an Update or Delete
// File action in raw, unparsed patch text — used to pre-load file contents
// before a full parse is attempted.
func IdentifyFilesNeeded(text string) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	seen := map[string]bool{}
	var result []string
	for _, line := range lines {
		var path string
		switch {
		case strings.HasPrefix(line, updFilePrefix):
			path = line[len(updFilePrefix):]
		case strings.HasPrefix(line, delFilePrefix):
			path = line[len(delFilePrefix):]
		default:
			continue
		}
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}
	return result
}

// IdentifyFilesAdded returns every path referenced by an Add File action.
func IdentifyFilesAdded(text string) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	seen := map[string]bool{}
	var result []string
	for _, line := range lines {
		if strings.HasPrefix(line, addFilePrefix) {
			path := line[len(addFilePrefix):]
			if !seen[path] {
				seen[path] = true
				result = append(result, path)
			}
		}
	}
	return result
}
