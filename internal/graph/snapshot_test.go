package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedStore() *Store {
	s := NewStore()
	topic := s.FindOrCreateTopic("Delivery & shipping", "intent-1")
	q := s.FindOrCreateQuestion("Do you ship?", "intent-1")
	a := s.FindOrCreateAnswer("Yes, nationwide", "intent-1")
	act := s.FindOrCreateAction("Take order", "Collect details", "intent-1")

	s.AddEdge(&Edge{ID: "cq", Source: topic.ID, Target: q.ID, Type: EdgeDescribesContext, Weight: 0.5, Confidence: 0.5})
	s.AddEdge(&Edge{ID: "qa", Source: q.ID, Target: a.ID, Type: EdgeAnswers, Weight: 0.5, Confidence: 0.5})
	s.AddEdge(&Edge{ID: "an", Source: a.ID, Target: act.ID, Type: EdgeNextStep, Weight: 0.5, Confidence: 0.5})
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := populatedStore()

	first, err := s.Snapshot().MarshalBytes()
	require.NoError(t, err)

	snap, err := ParseSnapshot(first)
	require.NoError(t, err)
	restored := FromSnapshot(snap)

	second, err := restored.Snapshot().MarshalBytes()
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, s.NodeCount(), restored.NodeCount())
	assert.Equal(t, s.EdgeCount(), restored.EdgeCount())
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	s := populatedStore()
	snap := s.Snapshot()

	require.Len(t, snap.Nodes, 4)
	assert.Equal(t, KindTopic, snap.Nodes[0].Kind)
	assert.Equal(t, KindQuestion, snap.Nodes[1].Kind)
	require.Len(t, snap.Edges, 3)
	assert.Equal(t, "cq", snap.Edges[0].ID)
}

func TestRestoreDefaultsMissingFields(t *testing.T) {
	raw := []byte(`{
		"nodes": [{"id": "n1", "type": "question", "label": "q", "text": "q"}],
		"edges": [{"id": "e1", "source": "n1", "target": "n2", "type": "answers", "weight": 0.5, "confidence": 0.5}]
	}`)

	snap, err := ParseSnapshot(raw)
	require.NoError(t, err)
	s := FromSnapshot(snap)

	n, ok := s.GetNode("n1")
	require.True(t, ok)
	assert.NotNil(t, n.Metadata, "missing metadata defaults to empty map")
	assert.Zero(t, n.Stats, "missing stats default to zeroed counters")

	e, ok := s.GetEdge("e1")
	require.True(t, ok)
	assert.NotNil(t, e.Metadata)
}

func TestRestoreRebuildsDedupIndex(t *testing.T) {
	s := populatedStore()

	data, err := s.Snapshot().MarshalBytes()
	require.NoError(t, err)
	snap, err := ParseSnapshot(data)
	require.NoError(t, err)

	restored := FromSnapshot(snap)
	q := restored.FindOrCreateQuestion("do you SHIP?", "intent-1")

	orig, _ := s.GetNode(q.ID)
	require.NotNil(t, orig, "restored store still dedups against loaded questions")
	assert.Equal(t, restored.NodeCount(), s.NodeCount())
}

func TestSnapshotDoesNotMutateStore(t *testing.T) {
	s := populatedStore()
	before := s.NodeCount()

	snap := s.Snapshot()
	snap.Nodes[0].Label = "mutated"

	n := s.Nodes()[0]
	assert.NotEqual(t, "mutated", n.Label)
	assert.Equal(t, before, s.NodeCount())
}

func TestParseSnapshotRejectsGarbage(t *testing.T) {
	_, err := ParseSnapshot([]byte("{not json"))
	assert.Error(t, err)
}
