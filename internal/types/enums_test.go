package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want AlertPriority
	}{
		{"P1", PriorityP1},
		{"p2", PriorityP2},
		{"Moderate", PriorityP3},
		{"P4-Low", PriorityP4},
		{" informational ", PriorityP5},
		{"", PriorityNone},
		{"P6", PriorityNone},
		{"urgent", PriorityNone},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePriority(tt.in))
		})
	}
}

func TestAlertPriority_DisplayName(t *testing.T) {
	assert.Equal(t, "P1-Critical", PriorityP1.DisplayName())
	assert.Equal(t, "", PriorityNone.DisplayName())
	assert.False(t, PriorityNone.IsSet())
	assert.True(t, PriorityP5.IsSet())
}

func TestBuildResult_Predicates(t *testing.T) {
	assert.False(t, ResultUnresolved.IsResolved())
	assert.True(t, ResultAborted.IsResolved())

	assert.True(t, ResultFailure.IsBroken())
	assert.True(t, ResultUnstable.IsBroken())
	assert.False(t, ResultSuccess.IsBroken())
	assert.False(t, ResultAborted.IsBroken())
}

func TestBuildKind_HasSCMData(t *testing.T) {
	assert.True(t, KindLegacy.HasSCMData())
	assert.True(t, BuildKind("").HasSCMData())
	assert.False(t, KindPipeline.HasSCMData())
}

func TestTestSummary_PassCountAndMerge(t *testing.T) {
	s := &TestSummary{TotalCount: 10, FailCount: 2, SkipCount: 1}
	assert.Equal(t, 7, s.PassCount())

	s.Merge(&TestSummary{TotalCount: 5, FailCount: 1, FailedTests: []FailedTest{{FullName: "pkg.TestX"}}})
	s.Merge(nil)
	assert.Equal(t, 15, s.TotalCount)
	assert.Equal(t, 3, s.FailCount)
	assert.Equal(t, 11, s.PassCount())
	assert.Len(t, s.FailedTests, 1)
}
