package patch

import "strings"

// Fuzz cost tiers. Kept as distinct integer steps, not a continuous score,
// so a failing match can be traced back to which pass (if any) almost found it.
const (
	fuzzExact        = 0
	fuzzTrailingWS   = 1
	fuzzSurroundWS   = 100
	fuzzAnchorDrift  = 200
	fuzzEOFFallback  = 10000
)

// findContextCore locates context within lines starting at start, trying four
// passes of increasing tolerance and returning the first line index that
// matches along with the fuzz cost of the pass that found it. Returns -1 if
// no pass finds a match.
func findContextCore(lines, context []string, start int) (int, int) {
	if len(context) == 0 {
		return start, fuzzExact
	}

	canonicalContext := canonPunct(strings.Join(context, "\n"))

	// Pass 1: exact match after canonicalization.
	for i := start; i <= len(lines)-len(context); i++ {
		if canonPunct(strings.Join(lines[i:i+len(context)], "\n")) == canonicalContext {
			return i, fuzzExact
		}
	}

	// Pass 2: ignore trailing whitespace per line.
	ctxRTrim := canonPunct(strings.Join(rtrimAll(context), "\n"))
	for i := start; i <= len(lines)-len(context); i++ {
		if canonPunct(strings.Join(rtrimAll(lines[i:i+len(context)]), "\n")) == ctxRTrim {
			return i, fuzzTrailingWS
		}
	}

	// Pass 3: ignore surrounding whitespace per line.
	ctxTrim := canonPunct(strings.Join(trimAll(context), "\n"))
	for i := start; i <= len(lines)-len(context); i++ {
		if canonPunct(strings.Join(trimAll(lines[i:i+len(context)]), "\n")) == ctxTrim {
			return i, fuzzSurroundWS
		}
	}

	// Pass 4: anchor by first and last context lines, tolerating drift in between.
	if len(context) >= 2 {
		firstC := canonPunct(context[0])
		lastC := canonPunct(context[len(context)-1])
		for i := start; i <= len(lines)-len(context); i++ {
			if canonPunct(lines[i]) == firstC && canonPunct(lines[i+len(context)-1]) == lastC {
				return i, fuzzAnchorDrift
			}
		}
	}

	return -1, 0
}

// findContext wraps findContextCore with end-of-file anchoring: when eof is
// true it first tries to match against the tail of the file, falling back to
// the recorded cursor (with a heavy fuzz penalty) on miss.
func findContext(lines, context []string, start int, eof bool) (int, int) {
	if eof {
		tailStart := len(lines) - len(context)
		if tailStart < 0 {
			tailStart = 0
		}
		if idx, fuzz := findContextCore(lines, context, tailStart); idx != -1 {
			return idx, fuzz
		}
		idx, fuzz := findContextCore(lines, context, start)
		return idx, fuzz + fuzzEOFFallback
	}
	return findContextCore(lines, context, start)
}

func rtrimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, " \t\r")
	}
	return out
}

func trimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}
