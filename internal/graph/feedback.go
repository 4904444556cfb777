package graph

import (
	"fmt"
	"math"
)

// FeedbackSensitivity scales the feedback score before squashing. At 3, a
// unanimous stream of positives pushes confidence toward 1/(1+e^-3) ≈ 0.95
// instead of saturating instantly; lower values flatten the response.
const FeedbackSensitivity = 3.0

// feedbackKey is where per-edge feedback counters live in edge metadata.
const feedbackKey = "feedback"

// ApplyFeedback folds one +1/-1 judgment into the edge's confidence.
//
// The update is a squashed consensus score: every judgment bumps pos or neg
// plus a views counter, then confidence = sigmoid(FeedbackSensitivity *
// (pos-neg)/max(1, views)). No recency weighting; all history counts equally.
func (s *Store) ApplyFeedback(edgeID string, value int) error {
	if value == 0 {
		return fmt.Errorf("feedback value must be +1 or -1: %w", ErrInvalidInput)
	}

	edge, ok := s.edges[edgeID]
	if !ok {
		return fmt.Errorf("edge %s: %w", edgeID, ErrNotFound)
	}

	pos, neg, views := feedbackCounters(edge)
	if value > 0 {
		pos++
	} else {
		neg++
	}
	views++

	edge.Metadata[feedbackKey] = map[string]any{
		"pos":   pos,
		"neg":   neg,
		"views": views,
	}

	score := (pos - neg) / math.Max(1, views)
	edge.Confidence = sigmoid(FeedbackSensitivity * score)
	return nil
}

// feedbackCounters reads the accumulated counters, tolerating both freshly
// written maps and metadata that came back through a JSON round-trip.
func feedbackCounters(edge *Edge) (pos, neg, views float64) {
	raw, ok := edge.Metadata[feedbackKey].(map[string]any)
	if !ok {
		return 0, 0, 0
	}

	return toFloat(raw["pos"]), toFloat(raw["neg"]), toFloat(raw["views"])
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
