// Package sanitize cleans command and log output before it is shown in the
// watch view, returned from MCP tools or recorded as an action message.
// It strips terminal escape sequences and masks credentials.
package sanitize

import (
	"regexp"
	"sort"
	"strings"
)

// Mask replaces every redacted value.
const Mask = "[REDACTED]"

var (
	// ANSI escape codes: \x1b[...m (SGR sequences) and other CSI sequences
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

	// Operating system commands: \x1b]...\x07 (window titles, hyperlinks)
	oscPattern = regexp.MustCompile(`\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)

	credentialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`https://hooks\.slack\.com/services/[A-Za-z0-9/_-]+`),
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`),
		regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{20,}\b`),
		regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`),
		regexp.MustCompile(`(?i)(authorization:\s*(bearer|token)\s+)[^\s"']+`),
	}
)

// StripANSI removes terminal escape sequences.
func StripANSI(s string) string {
	s = oscPattern.ReplaceAllString(s, "")
	s = ansiPattern.ReplaceAllString(s, "")
	return s
}

// Redact masks webhook URLs, GitHub tokens, AWS access key ids and
// authorization header values.
func Redact(s string) string {
	for _, p := range credentialPatterns {
		s = p.ReplaceAllStringFunc(s, func(m string) string {
			if sub := p.FindStringSubmatch(m); len(sub) > 1 {
				return sub[1] + Mask
			}
			return Mask
		})
	}
	return s
}

// Clean strips escape sequences, masks credentials and drops trailing
// whitespace from every line.
func Clean(s string) string {
	return trimLines(Redact(StripANSI(s)))
}

// Redactor additionally masks known secret values, such as tokens read
// from the secret store during a run.
type Redactor struct {
	values []string
}

// NewRedactor masks the given values. Values shorter than four characters
// are ignored.
func NewRedactor(values ...string) *Redactor {
	r := &Redactor{}
	r.Add(values...)
	return r
}

// Add registers more secret values.
func (r *Redactor) Add(values ...string) {
	for _, v := range values {
		if len(v) >= 4 {
			r.values = append(r.values, v)
		}
	}
	// Longest first so a secret containing another is masked whole.
	sort.Slice(r.values, func(i, j int) bool { return len(r.values[i]) > len(r.values[j]) })
}

// Clean behaves like the package Clean and also masks the registered values.
func (r *Redactor) Clean(s string) string {
	if r != nil {
		for _, v := range r.values {
			s = strings.ReplaceAll(s, v, Mask)
		}
	}
	return Clean(s)
}

func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.Join(lines, "\n")
}
