// file: internal/parser/filename.go
// version: 1.1.0
// guid: 8d3e5f7a-2b4c-6d8e-0f1a-3b5c7d9e1f2a

package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Result holds the fields derived from a filename and its parent directory.
// Parsing is deterministic and side-effect-free; a low-confidence split is
// returned as-is rather than reported as an error.
type Result struct {
	Title          string
	Author         string
	Series         string
	SeriesPosition int
}

// titleKeywords mark a segment as title-like rather than author-like.
// "Book1" counts: a keyword followed directly by digits is still a keyword.
var titleKeywords = []string{
	"book", "part", "pt", "vol", "volume", "chapter", "ch",
	"series", "disc", "disk", "cd",
}

// genericFolders are directory names that never carry author information.
var genericFolders = map[string]bool{
	"audio":      true,
	"audiobooks": true,
	"books":      true,
	"files":      true,
	"media":      true,
	"library":    true,
}

// Precompiled patterns — package-level to avoid per-call recompilation.
var (
	// "Title by Author"
	reTitleByAuthor = regexp.MustCompile(`(?i)^(.+?)\s+by\s+(.+)$`)

	// "Series Book N - Title" or "Series Book N: Title"
	reSeriesBookN = regexp.MustCompile(`(?i)^(.+?)\s+book\s+(\d{1,4})\s*[-:]\s*(.+)$`)

	// Leading track numbers: "01 ", "001 - ", "02. "
	reLeadingTrackNum = regexp.MustCompile(`^\d{1,3}[\s._-]+`)

	// Ordinal tokens as a prefix: "Part 2 - ", "Chapter 03.", "CD1 "
	reOrdinalPrefix = regexp.MustCompile(`(?i)^(?:book|part|pt|vol|volume|chapter|ch|disc|disk|cd)\s*\.?\s*\d{1,4}[\s._:-]*`)

	// Ordinal tokens as a suffix: " - Part 2", ", Chapter 10", "(CD 3)", "Part 2 of 12"
	reOrdinalSuffix = regexp.MustCompile(`(?i)[\s,._-]*[(\[]?(?:book|part|pt|vol|volume|chapter|ch|disc|disk|cd|track)\s*\.?\s*\d{1,4}(?:\s+of\s+\d{1,4})?[)\]]?\s*$`)

	// Keyworded ordinal anywhere: "Book 3", "Disc 12"
	reOrdinalKeyword = regexp.MustCompile(`(?i)\b(?:book|part|pt|vol|volume|chapter|ch|disc|disk|cd)\s*\.?\s*(\d{1,4})\b`)

	// Bare leading number: "03 The Title"
	reOrdinalLeading = regexp.MustCompile(`^(\d{1,4})\b`)
)

// Parse derives candidate title/author/series fields from a filename and its
// full path. Heuristics are applied in priority order, first match wins:
//
//  1. "Author - Title", rejected when the left segment is title-like
//  2. "Title by Author"
//  3. "Series Book N - Title"
//  4. parent directory "X - Y" pattern (generic folder names ignored)
//  5. the cleaned filename stands alone as the title
func Parse(filename, fullPath string) Result {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.TrimSpace(name)

	// 1. "Author - Title". Rejected when the left segment is title-like or
	// the right segment is just an ordinal ("The Hobbit - Part 2").
	if left, right, ok := splitDash(name); ok {
		if !HasTitleKeyword(left) && !isPureOrdinal(right) {
			return Result{Title: right, Author: left}
		}
	}

	// 2. "Title by Author"
	if m := reTitleByAuthor.FindStringSubmatch(name); m != nil {
		return Result{
			Title:  strings.TrimSpace(m[1]),
			Author: strings.TrimSpace(m[2]),
		}
	}

	// 3. "Series Book N - Title"
	if m := reSeriesBookN.FindStringSubmatch(name); m != nil {
		pos, _ := strconv.Atoi(m[2])
		return Result{
			Title:          strings.TrimSpace(m[3]),
			Series:         strings.TrimSpace(m[1]),
			SeriesPosition: pos,
		}
	}

	// 4. Parent directory "X - Y"
	res := Result{Title: cleanFilename(name)}
	dir := filepath.Base(filepath.Dir(fullPath))
	if dir != "" && dir != "." && !genericFolders[strings.ToLower(strings.TrimSpace(dir))] {
		if left, right, ok := splitDash(dir); ok {
			if HasTitleKeyword(left) {
				res.Author = right
			} else {
				res.Author = left
			}
			return res
		}
	}

	// 5. Cleaned filename alone.
	return res
}

// DetectOrdinal returns the chapter/part/disc number detected in a filename.
// Keyworded ordinals ("Book 3", "Part 02", "CD1") win over a bare leading
// number ("03 The Title"). The second return is false when nothing matched.
func DetectOrdinal(filename string) (int, bool) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	// The last keyworded token wins: "Book1 - Part 2" is part 2 of Book1.
	if all := reOrdinalKeyword.FindAllStringSubmatch(name, -1); len(all) > 0 {
		if n, err := strconv.Atoi(all[len(all)-1][1]); err == nil {
			return n, true
		}
	}
	if m := reOrdinalLeading.FindStringSubmatch(strings.TrimSpace(name)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// CleanDisplayTitle strips ordinal/part/chapter/disc prefixes and, where
// possible, splits off an author prefix. Presentation only: Parse never
// consults this and search queries are unaffected.
func CleanDisplayTitle(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimSpace(name)
	name = reLeadingTrackNum.ReplaceAllString(name, "")
	name = reOrdinalPrefix.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)

	if left, right, ok := splitDash(name); ok {
		if !HasTitleKeyword(left) && !isPureOrdinal(right) {
			return right
		}
	}
	return name
}

// StripOrdinalTokens removes ordinal tokens from both ends of a title so
// that parts of the same work normalize to the same string: "Book1 - Part 2"
// and "Book1" both reduce to "Book1".
func StripOrdinalTokens(title string) string {
	title = strings.TrimSpace(title)
	for {
		stripped := reOrdinalSuffix.ReplaceAllString(title, "")
		stripped = strings.TrimSpace(strings.Trim(stripped, "-_,"))
		if stripped == title || stripped == "" {
			break
		}
		title = stripped
	}
	if out := strings.TrimSpace(reOrdinalPrefix.ReplaceAllString(title, "")); out != "" {
		title = out
	}
	title = strings.TrimSpace(reLeadingTrackNum.ReplaceAllString(title, ""))
	return title
}

// HasTitleKeyword reports whether any word of s is a title-like keyword
// (book/part/volume/chapter/series/disc), optionally followed by digits.
func HasTitleKeyword(s string) bool {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,:;()[]#")
		for _, kw := range titleKeywords {
			if word == kw {
				return true
			}
			if rest, ok := strings.CutPrefix(word, kw); ok && rest != "" && isDigits(rest) {
				return true
			}
		}
	}
	return false
}

// isPureOrdinal reports whether s is nothing but an ordinal token, like
// "Part 2", "CD 3" or "Chapter 10 of 12".
func isPureOrdinal(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return strings.TrimSpace(reOrdinalSuffix.ReplaceAllString(s, "")) == ""
}

// splitDash splits on the first " - " separator, trimming both sides.
func splitDash(s string) (left, right string, ok bool) {
	idx := strings.Index(s, " - ")
	if idx < 0 {
		return "", "", false
	}
	left = strings.TrimSpace(s[:idx])
	right = strings.TrimSpace(s[idx+3:])
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

// cleanFilename strips leading track numbers and surrounding separators.
func cleanFilename(name string) string {
	cleaned := strings.TrimSpace(reLeadingTrackNum.ReplaceAllString(name, ""))
	if cleaned == "" {
		return name
	}
	return cleaned
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
