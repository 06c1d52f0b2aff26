// Package snapshot turns a browser accessibility-tree dump into plain prose.
//
// Tree lines carry a "- " marker after their indentation, e.g.
//
//	- heading "Title" [level=2]
//	  - text: "Some post body"
//	  - button "Like"
//
// Lines without the marker are prose, which is what Clean itself emits, so
// cleaning already-cleaned text returns it unchanged.
package snapshot

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoisePrefixes are accessibility roles that carry UI chrome, not content.
var NoisePrefixes = []string{
	"button ",
	"link ",
	"img ",
	"combobox ",
	"textbox ",
	"navigation ",
	"banner",
	"separator",
	"slider ",
	"toolbar ",
	"status ",
	"listitem",
	"list:",
	"table:",
	"paragraph",
	"dialog:",
	"group ",
}

// NoiseSubstrings mark raw href dumps and widget state annotations.
var NoiseSubstrings = []string{
	"/url:",
	"[pressed]",
	"[disabled]",
}

const (
	headingPrefix = "## "
	commentMarker = "---"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Clean keeps text nodes, comment attributions and headings, and drops
// everything that reads as interface furniture.
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "-" || strings.HasPrefix(trimmed, "- ") {
			if kept, ok := cleanNode(trimMarker(trimmed)); ok {
				out = append(out, kept)
			}
			continue
		}
		out = append(out, cleanProse(trimmed))
	}

	result := strings.Join(out, "\n")
	result = blankRuns.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

func cleanNode(node string) (string, bool) {
	if node == "" {
		return "", false
	}

	if value, ok := strings.CutPrefix(node, "text: "); ok {
		value = unquote(value)
		if utf8.RuneCountInString(value) <= 2 {
			return "", false
		}
		return cleanProse(value), true
	}

	if strings.HasPrefix(node, "article ") && strings.Contains(node, "Comment by") {
		attr := strings.TrimPrefix(node, "article ")
		attr = strings.TrimSuffix(attr, ":")
		attr = unquote(attr)
		if attr == "" {
			return "", false
		}
		return "\n" + commentMarker + " " + attr + " " + commentMarker, true
	}

	if strings.HasPrefix(node, "heading ") && strings.Contains(node, "[level=") {
		parts := strings.Split(node, `"`)
		if len(parts) < 2 {
			return "", false
		}
		title := trimMarker(parts[1])
		if title == "" {
			return "", false
		}
		return "\n" + headingPrefix + title, true
	}

	if isNoise(node) {
		return "", false
	}

	if hasLetter(node) && utf8.RuneCountInString(node) > 5 {
		return cleanProse(node), true
	}
	return "", false
}

// cleanProse gives any line shaped like a header its separating blank line,
// whether it came from the tree or from earlier output.
func cleanProse(line string) string {
	if strings.HasPrefix(line, headingPrefix) || isCommentHeader(line) {
		return "\n" + line
	}
	return line
}

func isCommentHeader(line string) bool {
	return len(line) > 2*len(commentMarker)+1 &&
		strings.HasPrefix(line, commentMarker+" ") &&
		strings.HasSuffix(line, " "+commentMarker)
}

func isNoise(node string) bool {
	for _, prefix := range NoisePrefixes {
		if strings.HasPrefix(node, prefix) {
			return true
		}
	}
	for _, sub := range NoiseSubstrings {
		if strings.Contains(node, sub) {
			return true
		}
	}
	return false
}

// unquote trims surrounding double quotes and anything that would make the
// value read as a tree line.
func unquote(s string) string {
	return trimMarker(strings.Trim(strings.TrimSpace(s), `"`))
}

// trimMarker strips leading dashes and whitespace, and trailing whitespace.
func trimMarker(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
