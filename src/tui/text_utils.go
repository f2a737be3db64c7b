package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"stackline/src/sanitize"
)

// CleanLogText prepares runner output for display: escape sequences are
// removed, secrets are masked and the text is folded onto one line.
func CleanLogText(s string) string {
	s = sanitize.Redact(ansi.Strip(s))
	s = strings.ReplaceAll(s, "\r", "")
	return strings.Join(strings.Fields(s), " ")
}

// VisualWidth returns the display width of text, accounting for multi-byte characters
func VisualWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate truncates text to maxLen characters (visual width) with optional ellipsis
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	if maxLen <= 0 {
		return ""
	}

	visualWidth := VisualWidth(s)
	if visualWidth > maxLen {
		if ellipsis && maxLen > 3 {
			// Truncate to fit maxLen-3 visual characters, then add ellipsis
			return runewidth.Truncate(s, maxLen-3, "") + "..."
		}
		return runewidth.Truncate(s, maxLen, "")
	}
	return s
}

// TruncateAndPad truncates text with optional ellipsis and pads to exact width
// Used for table cells to maintain consistent column widths
func TruncateAndPad(s string, width int, ellipsis bool) string {
	s = Truncate(s, width, ellipsis)
	visualWidth := VisualWidth(s)
	if visualWidth < width {
		return s + strings.Repeat(" ", width-visualWidth)
	}
	return s
}

// Wrap folds text onto lines of at most width display columns, breaking
// between words. Words wider than a line are split.
func Wrap(text string, width int) string {
	words := strings.Fields(text)
	if width <= 0 || len(words) == 0 {
		return text
	}

	var lines []string
	line, lineWidth := "", 0
	flush := func() {
		if lineWidth > 0 {
			lines = append(lines, line)
		}
		line, lineWidth = "", 0
	}

	for _, word := range words {
		for VisualWidth(word) > width {
			flush()
			head, rest := splitAtWidth(word, width)
			lines = append(lines, head)
			word = rest
		}
		w := VisualWidth(word)
		switch {
		case w == 0:
		case lineWidth == 0:
			line, lineWidth = word, w
		case lineWidth+1+w <= width:
			line += " " + word
			lineWidth += 1 + w
		default:
			flush()
			line, lineWidth = word, w
		}
	}
	flush()
	return strings.Join(lines, "\n")
}

// splitAtWidth returns the longest prefix of s that fits width columns and
// the remainder. At least one rune is always taken.
func splitAtWidth(s string, width int) (string, string) {
	cols := 0
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if cols+rw > width && i > 0 {
			return s[:i], s[i:]
		}
		cols += rw
	}
	return s, ""
}

// WrapLines wraps each line of text separately, keeping blank lines.
func WrapLines(text string, width int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = Wrap(sanitize.Redact(ansi.Strip(line)), width)
	}
	return strings.Join(lines, "\n")
}
