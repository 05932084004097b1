package verification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	answer string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string, _ float64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestVerify_AllChecksPass(t *testing.T) {
	e := NewEngine(nil, nil)

	report := e.Verify(context.Background(), Input{
		Categories: map[string]float64{
			"doors":    8,
			"windows":  12,
			"hardware": 24,
			"rooms":    5,
		},
		CVCounts:        map[string]float64{"doors": 8, "windows": 13},
		RequestedTrades: []string{"doors", "windows", "hardware", "rooms"},
	})

	assert.True(t, report.Bounds.AllWithinBounds)
	require.NotNil(t, report.Consistency)
	assert.True(t, report.Consistency.Consistent)
	assert.True(t, report.Completeness.Complete)
	assert.True(t, report.Logical.Consistent)
	assert.Empty(t, report.Flags)
	assert.Equal(t, []string{"All checks passed - results look good!"}, report.Recommendations)
	// Mean of 0.9, 0.85, 1.0, 0.9.
	assert.InDelta(t, (0.9+0.85+1.0+0.9)/4, report.OverallConfidence, 0.0001)
}

func TestVerify_BoundsViolation(t *testing.T) {
	e := NewEngine(nil, nil)

	report := e.Verify(context.Background(), Input{
		Categories:      map[string]float64{"doors": 600},
		RequestedTrades: []string{"doors"},
	})

	assert.False(t, report.Bounds.AllWithinBounds)
	cat := report.Bounds.Categories["doors"]
	assert.False(t, cat.Valid)
	assert.Equal(t, boundsViolationConfidence, cat.Confidence)
	assert.Equal(t, Bounds{Min: 0, Max: 500}, cat.Bounds)
	assert.Equal(t, boundsCheckFailConfidence, report.Bounds.Confidence)
	assert.Contains(t, report.Recommendations[0], "Review quantity bounds")
}

func TestVerify_RoomsLowerBound(t *testing.T) {
	e := NewEngine(nil, nil)

	report := e.Verify(context.Background(), Input{
		Categories: map[string]float64{"rooms": 0},
	})

	assert.False(t, report.Bounds.Categories["rooms"].Valid)
}

func TestVerify_UnknownCategoryUsesDefaultBounds(t *testing.T) {
	e := NewEngine(nil, nil)

	report := e.Verify(context.Background(), Input{
		Categories: map[string]float64{"millwork": 15000},
	})

	cat := report.Bounds.Categories["millwork"]
	assert.Equal(t, defaultBounds, cat.Bounds)
	assert.False(t, cat.Valid)
}

func TestConsistency_ToleranceBoundary(t *testing.T) {
	// 20 vs 25: tolerance max(2, 2.0) = 2, diff 5 -> inconsistent, 0.6.
	check := checkConsistency(
		map[string]float64{"doors": 20, "windows": 0},
		map[string]float64{"doors": 25, "windows": 0},
		consistencyToleranceRatio,
	)
	doors := check.Categories["doors"]
	assert.False(t, doors.Consistent)
	assert.Equal(t, categoryInconsistentConfidence, doors.Confidence)
	assert.Equal(t, float64(5), doors.Difference)
	assert.False(t, check.Consistent)
	assert.Equal(t, checkInconsistentConfidence, check.Confidence)

	// 20 vs 21: diff 1 <= 2 -> consistent, 0.9.
	check = checkConsistency(
		map[string]float64{"doors": 20, "windows": 0},
		map[string]float64{"doors": 21, "windows": 0},
		consistencyToleranceRatio,
	)
	doors = check.Categories["doors"]
	assert.True(t, doors.Consistent)
	assert.Equal(t, categoryConsistentConfidence, doors.Confidence)
	assert.Equal(t, checkConsistentConfidence, check.Confidence)
}

func TestVerify_ConsistencySkippedWithoutCV(t *testing.T) {
	e := NewEngine(nil, nil)

	report := e.Verify(context.Background(), Input{
		Categories: map[string]float64{"doors": 8},
	})

	assert.Nil(t, report.Consistency)
	// Mean of three executed checks only.
	expected := (report.Bounds.Confidence + report.Completeness.Confidence + report.Logical.Confidence) / 3
	assert.InDelta(t, expected, report.OverallConfidence, 0.0001)
}

func TestCompleteness_MissingCategory(t *testing.T) {
	check := checkCompleteness(
		map[string]float64{"doors": 8, "windows": 12},
		[]string{"doors", "windows", "flooring"},
	)

	assert.InDelta(t, 2.0/3.0, check.Score, 0.0001)
	assert.False(t, check.Complete)
	assert.Equal(t, []string{"flooring"}, check.Missing)
	assert.InDelta(t, 2.0/3.0, check.Confidence, 0.0001)
}

func TestCompleteness_NoMatchesFloor(t *testing.T) {
	check := checkCompleteness(
		map[string]float64{},
		[]string{"doors", "windows"},
	)

	assert.Zero(t, check.Score)
	assert.Equal(t, completenessFloor, check.Confidence)
	assert.Len(t, check.Missing, 2)
}

func TestLogical_RatioIssues(t *testing.T) {
	// 100 hardware for 5 doors = 20 per door: excessive.
	check := checkLogical(map[string]float64{"doors": 5, "hardware": 100})
	require.Len(t, check.Issues, 1)
	assert.Equal(t, "excessive_hardware", check.Issues[0].Type)
	assert.InDelta(t, logicalBaseline-logicalIssuePenalty, check.Confidence, 0.0001)

	// 2 hardware for 5 doors = 0.4 per door: insufficient.
	check = checkLogical(map[string]float64{"doors": 5, "hardware": 2})
	require.Len(t, check.Issues, 1)
	assert.Equal(t, "insufficient_hardware", check.Issues[0].Type)

	// 60 windows for 5 rooms = 12 per room: excessive; plus hardware issue.
	check = checkLogical(map[string]float64{
		"doors": 5, "hardware": 2, "rooms": 5, "windows": 60,
	})
	require.Len(t, check.Issues, 2)
	assert.InDelta(t, logicalBaseline-2*logicalIssuePenalty, check.Confidence, 0.0001)
	assert.False(t, check.Consistent)
}

func TestVerify_FlagsForFailedChecks(t *testing.T) {
	e := NewEngine(nil, nil)

	report := e.Verify(context.Background(), Input{
		Categories: map[string]float64{"doors": 20, "hardware": 2},
		CVCounts:   map[string]float64{"doors": 25},
	})

	require.Len(t, report.Flags, 2)
	types := []string{report.Flags[0].Type, report.Flags[1].Type}
	assert.Contains(t, types, "cv_text_consistency")
	assert.Contains(t, types, "logical_consistency")
}

func TestVerify_ModelRecommendationAppended(t *testing.T) {
	completer := &fakeCompleter{answer: "Re-run extraction with the door schedule page included."}
	e := NewEngine(completer, nil)

	report := e.Verify(context.Background(), Input{
		Categories:      map[string]float64{"doors": 600},
		RequestedTrades: []string{"doors"},
	})

	assert.Equal(t, 1, completer.calls)
	assert.Contains(t, report.Recommendations, "Re-run extraction with the door schedule page included.")
}

func TestVerify_ModelRecommendationFailureIgnored(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("api down")}
	e := NewEngine(completer, nil)

	report := e.Verify(context.Background(), Input{
		Categories: map[string]float64{"doors": 600},
	})

	require.Len(t, report.Recommendations, 1)
	assert.Contains(t, report.Recommendations[0], "Review quantity bounds")
}
