package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedbackFixture() (*Store, string) {
	s := NewStore()
	q := s.FindOrCreateQuestion("Do you ship?", "")
	a := s.FindOrCreateAnswer("Yes, nationwide", "")
	s.AddEdge(&Edge{ID: "qa", Source: q.ID, Target: a.ID, Type: EdgeAnswers, Weight: 0.5, Confidence: 0.5})
	return s, "qa"
}

func TestApplyFeedbackUnknownEdge(t *testing.T) {
	s, _ := feedbackFixture()
	assert.ErrorIs(t, s.ApplyFeedback("missing", 1), ErrNotFound)
}

func TestApplyFeedbackRejectsZero(t *testing.T) {
	s, id := feedbackFixture()
	assert.ErrorIs(t, s.ApplyFeedback(id, 0), ErrInvalidInput)
}

func TestApplyFeedbackBalancedIsNeutral(t *testing.T) {
	s, id := feedbackFixture()

	require.NoError(t, s.ApplyFeedback(id, 1))
	require.NoError(t, s.ApplyFeedback(id, -1))

	e, _ := s.GetEdge(id)
	assert.InDelta(t, 0.5, e.Confidence, 1e-12, "score 0 maps to exactly 0.5")
}

func TestApplyFeedbackPositiveSaturates(t *testing.T) {
	s, id := feedbackFixture()
	e, _ := s.GetEdge(id)

	// All-positive voting pins score at 1, so the first vote jumps straight to
	// sigmoid(3) and further votes hold there.
	require.NoError(t, s.ApplyFeedback(id, 1))
	saturated := 1.0 / (1.0 + math.Exp(-3.0))
	assert.InDelta(t, saturated, e.Confidence, 1e-12)

	prev := e.Confidence
	for i := 0; i < 9; i++ {
		require.NoError(t, s.ApplyFeedback(id, 1))
		assert.GreaterOrEqual(t, e.Confidence, prev)
		prev = e.Confidence
	}
	assert.Less(t, e.Confidence, 1.0)
}

func TestApplyFeedbackStaysInOpenInterval(t *testing.T) {
	s, id := feedbackFixture()
	e, _ := s.GetEdge(id)

	values := []int{-1, -1, 1, -1, -1, -1, 1, -1, -1, -1, -1, -1}
	for _, v := range values {
		require.NoError(t, s.ApplyFeedback(id, v))
		assert.Greater(t, e.Confidence, 0.0)
		assert.Less(t, e.Confidence, 1.0)
	}
}

func TestApplyFeedbackCountersAccumulate(t *testing.T) {
	s, id := feedbackFixture()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.ApplyFeedback(id, 1))
	}
	require.NoError(t, s.ApplyFeedback(id, -1))

	e, _ := s.GetEdge(id)
	pos, neg, views := feedbackCounters(e)
	assert.Equal(t, 3.0, pos)
	assert.Equal(t, 1.0, neg)
	assert.Equal(t, 4.0, views)
}

func TestApplyFeedbackSurvivesSnapshotRoundTrip(t *testing.T) {
	s, id := feedbackFixture()
	require.NoError(t, s.ApplyFeedback(id, 1))

	data, err := s.Snapshot().MarshalBytes()
	require.NoError(t, err)
	snap, err := ParseSnapshot(data)
	require.NoError(t, err)

	restored := FromSnapshot(snap)
	require.NoError(t, restored.ApplyFeedback(id, 1))

	e, _ := restored.GetEdge(id)
	pos, _, views := feedbackCounters(e)
	assert.Equal(t, 2.0, pos, "counters keep accumulating after a reload")
	assert.Equal(t, 2.0, views)
}
