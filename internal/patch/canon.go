package patch

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

func normalizeNFC(s string) string {
	return norm.NFC.String(s)
}

// canonPunct mirrors the normalization applied before fuzzy context matching:
// NFC normalization plus folding of punctuation variants (hyphens, curly
// quotes, non-breaking spaces, ellipsis, zero-width characters and
// superscript digits) to their plain ASCII equivalents. Two context blocks
// that differ only in these respects are treated as identical.
func canonPunct(s string) string {
	s = normalizeNFC(s)
	for _, pair := range punctEquivalents {
		s = strings.ReplaceAll(s, pair.from, pair.to)
	}
	s = strings.ReplaceAll(s, "…", "...")
	s = strings.ReplaceAll(s, "​", "")
	s = strings.ReplaceAll(s, "﻿", "")
	for _, pair := range superscriptDigits {
		s = strings.ReplaceAll(s, pair.from, pair.to)
	}
	return s
}

type replacement struct{ from, to string }

var punctEquivalents = []replacement{
	{"‐", "-"}, {"‑", "-"}, {"‒", "-"}, {"–", "-"},
	{"—", "-"}, {"−", "-"},
	{"“", "\""}, {"”", "\""}, {"„", "\""},
	{"«", "\""}, {"»", "\""},
	{"‘", "'"}, {"’", "'"}, {"‛", "'"},
	{" ", " "}, {" ", " "},
}

var superscriptDigits = []replacement{
	{"¹", "1"}, {"²", "2"}, {"³", "3"},
	{"⁰", "0"}, {"⁴", "4"}, {"⁵", "5"}, {"⁶", "6"},
	{"⁷", "7"}, {"⁸", "8"}, {"⁹", "9"},
}
