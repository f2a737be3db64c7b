// Package junit reads JUnit XML test reports written by build and test
// commands and summarizes them for execution records.
package junit

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type testSuites struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []testSuite `xml:"testsuite"`
}

type testSuite struct {
	Name   string      `xml:"name,attr"`
	Cases  []testCase  `xml:"testcase"`
	Suites []testSuite `xml:"testsuite"`
}

type testCase struct {
	Name      string    `xml:"name,attr"`
	ClassName string    `xml:"classname,attr"`
	Failure   *problem  `xml:"failure"`
	Error     *problem  `xml:"error"`
	Skipped   *struct{} `xml:"skipped"`
}

type problem struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

// Case is a failed or errored test.
type Case struct {
	Suite   string
	Class   string
	Name    string
	Kind    string // "failure" or "error"
	Message string
	Output  string
}

// String renders the case on one line.
func (c Case) String() string {
	name := c.Name
	if c.Class != "" {
		name = c.Class + "." + c.Name
	}
	msg := c.Message
	if msg == "" {
		msg = firstLine(c.Output)
	}
	if msg == "" {
		return fmt.Sprintf("[%s] %s", c.Kind, name)
	}
	return fmt.Sprintf("[%s] %s: %s", c.Kind, name, msg)
}

// Report totals the test cases of one or more report files.
type Report struct {
	Tests    int
	Failures int
	Errors   int
	Skipped  int
	Failed   []Case
}

// Passed reports whether no test failed or errored.
func (r Report) Passed() bool {
	return r.Failures == 0 && r.Errors == 0
}

// Merge adds o to r.
func (r *Report) Merge(o Report) {
	r.Tests += o.Tests
	r.Failures += o.Failures
	r.Errors += o.Errors
	r.Skipped += o.Skipped
	r.Failed = append(r.Failed, o.Failed...)
}

// Summary renders the totals followed by at most maxCases failed cases.
func (r Report) Summary(maxCases int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d tests, %d failed, %d errored, %d skipped", r.Tests, r.Failures, r.Errors, r.Skipped)
	for i, c := range r.Failed {
		if i == maxCases {
			fmt.Fprintf(&b, "\n... %d more", len(r.Failed)-maxCases)
			break
		}
		b.WriteString("\n" + c.String())
	}
	return b.String()
}

// Parse reads a <testsuites> or a single <testsuite> document. Totals are
// counted from the test cases, not from the suite attributes.
func Parse(data []byte) (Report, error) {
	var suites testSuites
	if err := xml.Unmarshal(data, &suites); err == nil {
		return collect(suites.Suites), nil
	}

	var suite testSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return Report{}, fmt.Errorf("failed to parse JUnit XML: %w", err)
	}
	return collect([]testSuite{suite}), nil
}

func collect(suites []testSuite) Report {
	var r Report
	for _, s := range suites {
		for _, tc := range s.Cases {
			r.Tests++
			switch {
			case tc.Failure != nil:
				r.Failures++
				r.Failed = append(r.Failed, newCase(s.Name, tc, "failure", tc.Failure))
			case tc.Error != nil:
				r.Errors++
				r.Failed = append(r.Failed, newCase(s.Name, tc, "error", tc.Error))
			case tc.Skipped != nil:
				r.Skipped++
			}
		}
		// Nested suites, as written by some JavaScript reporters.
		r.Merge(collect(s.Suites))
	}
	return r
}

func newCase(suite string, tc testCase, kind string, p *problem) Case {
	return Case{
		Suite:   suite,
		Class:   tc.ClassName,
		Name:    tc.Name,
		Kind:    kind,
		Message: strings.TrimSpace(p.Message),
		Output:  strings.TrimSpace(p.Content),
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
