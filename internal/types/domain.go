package types

import "time"

// BuildSnapshot is a read-only view of one CI build at notification time.
// Optional sub-data (previous build, tests, variables) is nil when the CI
// server could not provide it; the payload builder omits the matching fields.
type BuildSnapshot struct {
	Kind        BuildKind   `json:"kind,omitempty"`
	ProjectName string      `json:"project_name" validate:"required"`
	DisplayName string      `json:"display_name" validate:"required"`
	Result      BuildResult `json:"result,omitempty" validate:"omitempty,oneof=SUCCESS UNSTABLE FAILURE ABORTED NOT_BUILT"`
	// StartTime is the build start timestamp; only millisecond precision is kept on the wire.
	StartTime      time.Time `json:"start_time" validate:"required"`
	DurationMillis int64     `json:"duration_ms" validate:"gte=0"`
	// URL is relative to the CI server root, e.g. "job/api/42/".
	URL string `json:"url"`

	Previous  *PreviousBuild   `json:"previous,omitempty"`
	ChangeLog []ChangeLogEntry `json:"change_log,omitempty"`
	Culprits  []string         `json:"culprits,omitempty"`
	Tests     *TestSummary     `json:"tests,omitempty"`
	Variables []BuildVariable  `json:"variables,omitempty"`
}

// StartTimeMillis returns the start timestamp as Unix epoch milliseconds.
func (b *BuildSnapshot) StartTimeMillis() int64 {
	return b.StartTime.UnixMilli()
}

// Duration returns the elapsed build time.
func (b *BuildSnapshot) Duration() time.Duration {
	return time.Duration(b.DurationMillis) * time.Millisecond
}

// PreviousBuild is the subset of a BuildSnapshot reported for the prior run.
type PreviousBuild struct {
	DisplayName string      `json:"display_name"`
	StartTime   time.Time   `json:"start_time"`
	Result      BuildResult `json:"result,omitempty"`
	// ProjectName is empty when the owning job could not be resolved.
	ProjectName string `json:"project_name,omitempty"`
}

// ChangeLogEntry is a single SCM change included in the build.
type ChangeLogEntry struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}

// TestSummary aggregates the test report attached to a build.
type TestSummary struct {
	TotalCount  int          `json:"total_count" validate:"gte=0"`
	FailCount   int          `json:"fail_count" validate:"gte=0"`
	SkipCount   int          `json:"skip_count" validate:"gte=0"`
	FailedTests []FailedTest `json:"failed_tests,omitempty"`
}

// PassCount is the number of tests that neither failed nor were skipped.
func (s *TestSummary) PassCount() int {
	return s.TotalCount - s.FailCount - s.SkipCount
}

// Merge folds another summary into s.
func (s *TestSummary) Merge(other *TestSummary) {
	if other == nil {
		return
	}
	s.TotalCount += other.TotalCount
	s.FailCount += other.FailCount
	s.SkipCount += other.SkipCount
	s.FailedTests = append(s.FailedTests, other.FailedTests...)
}

// FailedTest identifies one failing test case.
type FailedTest struct {
	FullName     string `json:"full_name"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// BuildVariable is one build parameter. A slice keeps the CI server's order.
type BuildVariable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AlertProperties carries the per-notification alert settings after
// overrides have been resolved against the configured defaults.
type AlertProperties struct {
	Tags               string
	Teams              string
	Priority           AlertPriority
	BuildStartPriority AlertPriority
}

// Overrides are optional per-call settings. Blank fields fall back to the
// configured defaults.
type Overrides struct {
	APIKey             string `json:"api_key,omitempty"`
	APIURL             string `json:"api_url,omitempty"`
	Tags               string `json:"tags,omitempty"`
	Teams              string `json:"teams,omitempty"`
	Priority           string `json:"priority,omitempty" validate:"omitempty,priority"`
	BuildStartPriority string `json:"build_start_priority,omitempty" validate:"omitempty,priority"`
}
