package builder

import (
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/pkg/logger"
)

// RepairTopicLinks backfills context links for graphs that have question
// nodes but no describes_context edges at all (a build mode that skipped
// topic inference leaves the topic layer empty). Every unlinked question is
// attached to one fallback topic at low confidence. Running it again is a
// no-op: a graph with any describes_context edge is left alone, and already
// linked pairs are skipped.
func (b *Builder) RepairTopicLinks(s *graph.Store) int {
	for _, e := range s.Edges() {
		if e.Type == graph.EdgeDescribesContext {
			return 0
		}
	}

	questions := s.NodesByKind(graph.KindQuestion)
	if len(questions) == 0 {
		return 0
	}

	// Reuse an existing topic when one is already present; otherwise create
	// the shared fallback.
	var topic *graph.Node
	if topics := s.NodesByKind(graph.KindTopic); len(topics) > 0 {
		topic = topics[0]
	} else {
		topic = s.FindOrCreateTopic(FallbackTopicLabel, b.intentID)
	}

	linked := 0
	for _, q := range questions {
		if b.linkTopic(s, topic.ID, q.ID, fallbackTopicConfidence, "auto_repair") {
			linked++
		}
	}

	if linked > 0 {
		logger.Info("Repaired orphan questions",
			zap.String("topic", topic.Label),
			zap.Int("linked", linked),
		)
	}

	return linked
}
