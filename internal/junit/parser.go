// Package junit reads JUnit XML reports into the test summary carried by a
// build snapshot.
package junit

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"buildalert/internal/types"
)

// TestSuites is the root element for multiple test suites.
type TestSuites struct {
	XMLName    xml.Name    `xml:"testsuites"`
	TestSuites []TestSuite `xml:"testsuite"`
}

// TestSuite represents a <testsuite> element.
type TestSuite struct {
	Name      string     `xml:"name,attr"`
	TestCases []TestCase `xml:"testcase"`
}

// TestCase represents a <testcase> element.
type TestCase struct {
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Failure   *Problem `xml:"failure"`
	Error     *Problem `xml:"error"`
	Skipped   *Skipped `xml:"skipped"`
}

// Problem is a <failure> or <error> element.
type Problem struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

// Skipped represents a skipped test.
type Skipped struct {
	Message string `xml:"message,attr"`
}

// FullName is the dotted class and case name, e.g. "com.example.FooTest.testBar".
func (tc TestCase) FullName() string {
	if tc.ClassName == "" {
		return tc.Name
	}
	return tc.ClassName + "." + tc.Name
}

// problem returns the failure or, failing that, the error element.
func (tc TestCase) problem() *Problem {
	if tc.Failure != nil {
		return tc.Failure
	}
	return tc.Error
}

// Parse parses one JUnit XML document. Counts are derived from the test cases
// rather than the suite attributes, which some tools leave at zero.
func Parse(data []byte) (*types.TestSummary, error) {
	// Try parsing as <testsuites> (multiple suites) first
	var suites TestSuites
	if err := xml.Unmarshal(data, &suites); err == nil && len(suites.TestSuites) > 0 {
		return summarize(suites.TestSuites), nil
	}

	var suite TestSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse JUnit XML: %w", err)
	}
	return summarize([]TestSuite{suite}), nil
}

func summarize(suites []TestSuite) *types.TestSummary {
	summary := &types.TestSummary{}
	for _, suite := range suites {
		for _, tc := range suite.TestCases {
			summary.TotalCount++
			if p := tc.problem(); p != nil {
				summary.FailCount++
				summary.FailedTests = append(summary.FailedTests, types.FailedTest{
					FullName:     tc.FullName(),
					ErrorDetails: errorDetails(p),
				})
				continue
			}
			if tc.Skipped != nil {
				summary.SkipCount++
			}
		}
	}
	return summary
}

// errorDetails prefers the message attribute and falls back to the first
// non-blank line of the element body.
func errorDetails(p *Problem) string {
	if msg := strings.TrimSpace(p.Message); msg != "" {
		return msg
	}
	for _, line := range strings.Split(p.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// ParseFiles expands each glob, parses every matching report once and merges
// the results. It returns nil when no file matched.
func ParseFiles(patterns []string) (*types.TestSummary, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid junit pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	sort.Strings(paths)

	total := &types.TestSummary{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read junit report: %w", err)
		}
		summary, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		total.Merge(summary)
	}
	return total, nil
}
