package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sales-agent/backend/internal/graph"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleSnapshot() *graph.Snapshot {
	s := graph.NewStore()
	q := s.FindOrCreateQuestion("Do you ship?", "florist")
	a := s.FindOrCreateAnswer("Yes, nationwide", "florist")
	s.AddEdge(&graph.Edge{
		ID: "qa", Source: q.ID, Target: a.ID, Type: graph.EdgeAnswers,
		Weight: 0.5, Confidence: 0.7,
		Metadata: map[string]any{"source": "website_ingest"},
	})
	return s.Snapshot()
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := testClient(t)
	snap := sampleSnapshot()

	require.NoError(t, c.SaveSnapshot(snap))

	loaded, err := c.LoadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Nodes, 2)
	require.Len(t, loaded.Edges, 1)

	assert.Equal(t, snap.Nodes[0].ID, loaded.Nodes[0].ID, "insertion order preserved")
	assert.Equal(t, snap.Nodes[1].ID, loaded.Nodes[1].ID)
	assert.Equal(t, graph.KindQuestion, loaded.Nodes[0].Kind)
	assert.Equal(t, "Do you ship?", loaded.Nodes[0].Text)
	assert.Equal(t, "florist", loaded.Nodes[0].IntentID)
	assert.Equal(t, 0.7, loaded.Edges[0].Confidence)
	assert.Equal(t, "website_ingest", loaded.Edges[0].Metadata["source"])
}

func TestLoadSnapshotEmpty(t *testing.T) {
	c := testClient(t)

	snap, err := c.LoadSnapshot()

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaveSnapshotReplaces(t *testing.T) {
	c := testClient(t)
	require.NoError(t, c.SaveSnapshot(sampleSnapshot()))

	s := graph.NewStore()
	s.FindOrCreateTopic("Delivery", "")
	require.NoError(t, c.SaveSnapshot(s.Snapshot()))

	loaded, err := c.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, loaded.Nodes, 1)
	assert.Empty(t, loaded.Edges)
	assert.Equal(t, graph.KindTopic, loaded.Nodes[0].Kind)
}

func TestSessionMessages(t *testing.T) {
	c := testClient(t)

	require.NoError(t, c.AppendSessionMessage("s1", "customer", "Do you ship?"))
	require.NoError(t, c.AppendSessionMessage("s1", "agent", "Yes, nationwide"))
	require.NoError(t, c.AppendSessionMessage("s2", "customer", "Hello"))

	messages, err := c.GetSessionMessages("s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "customer", messages[0].Role)
	assert.Equal(t, "Do you ship?", messages[0].Text)
	assert.Equal(t, "agent", messages[1].Role)

	sessions, err := c.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.Equal(t, 1, sessions[1].MessageCount)
}

func TestClearSessions(t *testing.T) {
	c := testClient(t)
	require.NoError(t, c.AppendSessionMessage("s1", "customer", "hi"))

	require.NoError(t, c.ClearSessions())

	sessions, err := c.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	messages, err := c.GetSessionMessages("s1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestFeedbackLog(t *testing.T) {
	c := testClient(t)

	require.NoError(t, c.LogFeedback("edge-1", 1))
	require.NoError(t, c.LogFeedback("edge-1", -1))
	require.NoError(t, c.LogFeedback("edge-2", 1))

	records, err := c.GetFeedbackLog("edge-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Value)
	assert.Equal(t, -1, records[1].Value)
}
