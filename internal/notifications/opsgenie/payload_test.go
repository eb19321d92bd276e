package opsgenie

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildalert/internal/config"
	"buildalert/internal/types"
)

var testStart = time.Date(2024, 3, 5, 14, 3, 7, 0, time.UTC)

func newTestBuilder() *PayloadBuilder {
	return NewPayloadBuilder(config.JenkinsConfig{RootURL: "https://ci.example.com/", TimeZone: "UTC"})
}

func baseSnapshot() *types.BuildSnapshot {
	return &types.BuildSnapshot{
		ProjectName:    "api",
		DisplayName:    "#42",
		Result:         types.ResultSuccess,
		StartTime:      testStart,
		DurationMillis: (3*time.Minute + 25*time.Second).Milliseconds(),
		URL:            "job/api/42/",
	}
}

func keys(p Payload) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var mandatoryKeys = []string{"displayName", "projectName", "startTimeInMillis", "status", "tags", "teams", "time", "url"}

func TestBuildMandatoryFields(t *testing.T) {
	p := newTestBuilder().BuildMandatoryFields(baseSnapshot(), types.AlertProperties{Tags: " ci , backend ", Teams: "ops"})

	assert.Equal(t, mandatoryKeys, keys(p))
	assert.Equal(t, "Tue Mar 05 14:03:07 UTC 2024", p["time"])
	assert.Equal(t, "api", p["projectName"])
	assert.Equal(t, "#42", p["displayName"])
	assert.Equal(t, "SUCCESS", p["status"])
	assert.Equal(t, "https://ci.example.com/job/api/42/", p["url"])
	assert.Equal(t, []string{"ci", "backend"}, p["tags"])
	assert.Equal(t, []string{"ops"}, p["teams"])
	assert.Equal(t, "1709647387000", p["startTimeInMillis"])
}

func TestBuildMandatoryFields_UnresolvedStatusIsSuccess(t *testing.T) {
	s := baseSnapshot()
	s.Result = types.ResultUnresolved

	p := newTestBuilder().BuildMandatoryFields(s, types.AlertProperties{})
	assert.Equal(t, "SUCCESS", p["status"])
	assert.Equal(t, []string{}, p["tags"])
	assert.Equal(t, []string{}, p["teams"])
}

func TestBuildMandatoryFields_TimeZone(t *testing.T) {
	b := NewPayloadBuilder(config.JenkinsConfig{TimeZone: "America/New_York"})
	p := b.BuildMandatoryFields(baseSnapshot(), types.AlertProperties{})

	assert.Equal(t, "Tue Mar 05 09:03:07 EST 2024", p["time"])
	assert.Equal(t, "job/api/42/", p["url"])
}

func TestBuildPreBuildPayload(t *testing.T) {
	b := newTestBuilder()

	p, err := b.BuildPreBuildPayload(baseSnapshot(), types.AlertProperties{Priority: types.PriorityP1})
	require.Nil(t, err)
	assert.Equal(t, "true", p["isPreBuild"])
	assert.NotContains(t, p, "priority", "post-build priority must not leak into pre-build")

	p, err = b.BuildPreBuildPayload(baseSnapshot(), types.AlertProperties{BuildStartPriority: types.PriorityP5})
	require.Nil(t, err)
	assert.Equal(t, "P5", p["priority"])
	assert.NotContains(t, p, "duration")
}

func TestBuildPayload_NilSnapshot(t *testing.T) {
	b := newTestBuilder()

	_, err := b.BuildPreBuildPayload(nil, types.AlertProperties{})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrCodeBuildSnapshotMissing, err.Code)

	_, err = b.BuildPostBuildPayload(nil, types.AlertProperties{})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrCodeBuildSnapshotMissing, err.Code)
}

// A successful pipeline run with no history and no tests carries only the
// mandatory fields plus isPreBuild, duration and params.
func TestBuildPostBuildPayload_MinimalSuccess(t *testing.T) {
	s := baseSnapshot()
	s.Kind = types.KindPipeline

	p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{})
	require.Nil(t, err)

	want := append(append([]string{}, mandatoryKeys...), "duration", "isPreBuild", "params")
	sort.Strings(want)
	assert.Equal(t, want, keys(p))
	assert.Equal(t, "false", p["isPreBuild"])
	assert.Equal(t, "3 minutes 25 seconds", p["duration"])
	assert.Equal(t, "", p["params"])
}

func TestBuildPostBuildPayload_LegacyAddsCommitList(t *testing.T) {
	p, err := newTestBuilder().BuildPostBuildPayload(baseSnapshot(), types.AlertProperties{})
	require.Nil(t, err)

	assert.Equal(t, "No changes.\n\n", p["commitList"])
	assert.NotContains(t, p, "culprits")
	assert.NotContains(t, p, "passedTestCount")
	assert.NotContains(t, p, "previousDisplayName")
}

func TestBuildPostBuildPayload_FailureWithCulpritsAndTests(t *testing.T) {
	s := baseSnapshot()
	s.Result = types.ResultFailure
	s.Culprits = []string{"Alice", "Bob"}
	s.Tests = &types.TestSummary{
		TotalCount: 10,
		FailCount:  2,
		SkipCount:  1,
		FailedTests: []types.FailedTest{
			{FullName: "pkg.TestA", ErrorDetails: "expected 1, got 2"},
			{FullName: "pkg.TestB", ErrorDetails: "  "},
		},
	}

	p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{Priority: types.PriorityP2})
	require.Nil(t, err)

	assert.Equal(t, "FAILURE", p["status"])
	assert.Equal(t, "Alice,Bob,", p["culprits"])
	assert.Equal(t, "7", p["passedTestCount"])
	assert.Equal(t, "2", p["failedTestCount"])
	assert.Equal(t, "1", p["skippedTestCount"])
	assert.Equal(t,
		"<strong>pkg.TestA</strong>\nexpected 1, got 2\n\n<strong>pkg.TestB</strong>\n\n\n",
		p["failedTests"])
	assert.Equal(t, "P2", p["priority"])
}

func TestBuildPostBuildPayload_CulpritsPresence(t *testing.T) {
	tests := []struct {
		name     string
		kind     types.BuildKind
		result   types.BuildResult
		culprits []string
		want     bool
	}{
		{"failure with culprits", types.KindLegacy, types.ResultFailure, []string{"Alice"}, true},
		{"unstable with culprits", types.KindLegacy, types.ResultUnstable, []string{"Alice"}, true},
		{"failure without culprits", types.KindLegacy, types.ResultFailure, nil, false},
		{"success with culprits", types.KindLegacy, types.ResultSuccess, []string{"Alice"}, false},
		{"aborted with culprits", types.KindLegacy, types.ResultAborted, []string{"Alice"}, false},
		{"pipeline failure with culprits", types.KindPipeline, types.ResultFailure, []string{"Alice"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSnapshot()
			s.Kind = tt.kind
			s.Result = tt.result
			s.Culprits = tt.culprits

			p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{})
			require.Nil(t, err)
			_, present := p["culprits"]
			assert.Equal(t, tt.want, present)
		})
	}
}

func TestBuildPostBuildPayload_TestCountsWithoutFailedTestsOnSuccess(t *testing.T) {
	s := baseSnapshot()
	s.Tests = &types.TestSummary{TotalCount: 5, SkipCount: 1}

	p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{})
	require.Nil(t, err)

	assert.Equal(t, "4", p["passedTestCount"])
	assert.Equal(t, "0", p["failedTestCount"])
	assert.Equal(t, "1", p["skippedTestCount"])
	assert.NotContains(t, p, "failedTests")
}

func TestBuildPostBuildPayload_CommitListAndParams(t *testing.T) {
	s := baseSnapshot()
	s.ChangeLog = []types.ChangeLogEntry{
		{Author: "Alice", Message: "Fix flaky test"},
		{Author: "Bob", Message: "Bump deps"},
	}
	s.Variables = []types.BuildVariable{{Key: "BRANCH", Value: "main"}, {Key: "DEPLOY", Value: "false"}}

	p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{})
	require.Nil(t, err)

	assert.Equal(t,
		"Fix flaky test - <strong>Alice</strong><br>\nBump deps - <strong>Bob</strong><br>\n",
		p["commitList"])
	assert.Equal(t, "BRANCH -> main\nDEPLOY -> false\n", p["params"])
}

func TestBuildPostBuildPayload_PipelineIgnoresSCMData(t *testing.T) {
	s := baseSnapshot()
	s.Kind = types.KindPipeline
	s.ChangeLog = []types.ChangeLogEntry{{Author: "Alice", Message: "x"}}
	s.Variables = []types.BuildVariable{{Key: "A", Value: "b"}}

	p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{})
	require.Nil(t, err)

	assert.NotContains(t, p, "commitList")
	assert.Equal(t, "", p["params"])
}

func TestBuildPostBuildPayload_PreviousBuild(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		s := baseSnapshot()
		s.Previous = &types.PreviousBuild{
			DisplayName: "#41",
			StartTime:   testStart.Add(-time.Hour),
			Result:      types.ResultUnstable,
			ProjectName: "api",
		}

		p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{})
		require.Nil(t, err)
		assert.Equal(t, "#41", p["previousDisplayName"])
		assert.Equal(t, "Tue Mar 05 13:03:07 UTC 2024", p["previousTime"])
		assert.Equal(t, "UNSTABLE", p["previousStatus"])
		assert.Equal(t, "api", p["previousProjectName"])
	})

	t.Run("unresolved result and unknown project", func(t *testing.T) {
		s := baseSnapshot()
		s.Previous = &types.PreviousBuild{DisplayName: "#41", StartTime: testStart}

		p, err := newTestBuilder().BuildPostBuildPayload(s, types.AlertProperties{})
		require.Nil(t, err)
		assert.Contains(t, p, "previousDisplayName")
		assert.Contains(t, p, "previousTime")
		assert.NotContains(t, p, "previousStatus")
		assert.NotContains(t, p, "previousProjectName")
	})
}

func TestBuildPostBuildPayload_FreshPerCall(t *testing.T) {
	b := newTestBuilder()
	s := baseSnapshot()

	pre, _ := b.BuildPreBuildPayload(s, types.AlertProperties{})
	post, _ := b.BuildPostBuildPayload(s, types.AlertProperties{})

	assert.Equal(t, "true", pre["isPreBuild"])
	assert.Equal(t, "false", post["isPreBuild"])
	assert.NotContains(t, pre, "duration")
}

func TestSplitCommaList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"a", []string{"a"}},
		{" a , b ,c ", []string{"a", "b", "c"}},
		{"a,,b", []string{"a", "b"}},
		{",a,", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SplitCommaList(tt.in)
			assert.Equal(t, tt.want, got)

			// Rejoining and splitting again yields the same tokens.
			assert.Equal(t, got, SplitCommaList(strings.Join(got, ",")))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{-time.Second, "0 seconds"},
		{450 * time.Millisecond, "450 milliseconds"},
		{65*time.Second + 300*time.Millisecond, "1 minute 5 seconds"},
		{3*time.Hour + 25*time.Minute + 40*time.Second, "3 hours 25 minutes"},
		{26 * time.Hour, "1 day 2 hours"},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestSerialize(t *testing.T) {
	body, err := Serialize(Payload{"status": "SUCCESS", "tags": []string{"ci"}, "displayName": "#1"})
	require.Nil(t, err)

	assert.Equal(t, "{\n  \"displayName\": \"#1\",\n  \"status\": \"SUCCESS\",\n  \"tags\": [\n    \"ci\"\n  ]\n}", string(body))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
}

func TestSerialize_KeepsMarkupCharacters(t *testing.T) {
	body, err := Serialize(Payload{"displayName": "<strong>#7</strong>", "projectName": "build & deploy"})
	require.Nil(t, err)

	assert.Equal(t, "{\n  \"displayName\": \"<strong>#7</strong>\",\n  \"projectName\": \"build & deploy\"\n}", string(body))
	assert.NotContains(t, string(body), `\u003c`)
	assert.NotContains(t, string(body), `\u0026`)
}

func TestSerialize_FailureYieldsEmptyBody(t *testing.T) {
	body, err := Serialize(Payload{"bad": make(chan int)})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrCodeBuildSerialization, err.Code)
	assert.Empty(t, body)
	assert.NotNil(t, body)
}
