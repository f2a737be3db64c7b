package mcp

import (
	"regexp"
	"strings"

	"stackline/src/sanitize"
)

// maxMessageLines bounds the runner output kept per action.
const maxMessageLines = 15

var (
	// Leading timestamps written by CodeBuild, npm and most loggers, e.g.
	// 2024-05-21T10:00:05.123Z or 2024-05-21 10:00:05,123.
	leadingTimestamp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[.,]?\d*Z?([+-]\d{2}:?\d{2})?\s*`)

	// Paths at least four segments deep collapse to their last segment.
	deepPath = regexp.MustCompile(`/(?:[^/\s]+/){3,}([^/\s:]+(?::\d+)?)`)

	spaces = regexp.MustCompile(`\s+`)
)

// sharedPrefixMin is the shortest prefix worth replacing with "... ".
const sharedPrefixMin = 20

// compactLine rewrites one line of runner output.
func compactLine(line string) string {
	line = leadingTimestamp.ReplaceAllString(line, "")
	line = deepPath.ReplaceAllString(line, ".../$1")
	return strings.TrimSpace(spaces.ReplaceAllString(line, " "))
}

// sharedPrefix returns the prefix every line starts with, or "" when there
// are fewer than two lines or the prefix is shorter than sharedPrefixMin.
func sharedPrefix(lines []string) string {
	if len(lines) < 2 {
		return ""
	}
	n := len(lines[0])
	for _, line := range lines[1:] {
		n = min(n, len(line))
		for i := 0; i < n; i++ {
			if line[i] != lines[0][i] {
				n = i
				break
			}
		}
	}
	if n < sharedPrefixMin {
		return ""
	}
	return lines[0][:n]
}

// compressMessage turns runner output into a few token-cheap lines: secrets
// and escape sequences are removed, blank lines dropped, and only the last
// maxLines lines kept since failures are reported at the end.
func compressMessage(msg string, maxLines int) []string {
	var lines []string
	for _, raw := range strings.Split(sanitize.Clean(msg), "\n") {
		if line := compactLine(raw); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	prefix := sharedPrefix(lines)
	if prefix == "" {
		return lines
	}
	for i, line := range lines {
		lines[i] = "... " + line[len(prefix):]
	}
	return lines
}
