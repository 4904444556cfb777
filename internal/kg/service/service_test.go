package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/internal/kg/builder"
	"github.com/sales-agent/backend/internal/query"
	"github.com/sales-agent/backend/internal/router"
	"github.com/sales-agent/backend/internal/storage/sqlite"
)

func testService(t *testing.T) *Service {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	svc := New(Options{
		Builder: builder.NewBuilder("florist"),
		Router:  router.NewLexicalRouter(),
		DB:      db,
	})
	require.NoError(t, svc.Load())
	return svc
}

func TestLoadSeedsCoreActions(t *testing.T) {
	svc := testService(t)

	snap := svc.Snapshot()

	require.Len(t, snap.Nodes, 3, "three core actions seeded into an empty store")
	for _, n := range snap.Nodes {
		assert.Equal(t, graph.KindAction, n.Kind)
	}
}

func TestBuildFromSessionAndAsk(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendSessionMessage("s1", "customer", "Do you deliver flowers on weekends?"))
	require.NoError(t, svc.AppendSessionMessage("s1", "agent", "Yes, we deliver seven days a week."))

	summary, err := svc.BuildFromSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.QACount)

	res, err := svc.Ask(ctx, "can you deliver on weekends")
	require.NoError(t, err)
	require.NotNil(t, res.Answer)
	assert.Equal(t, "Yes, we deliver seven days a week.", *res.Answer)
}

func TestBuildFromSessionEmpty(t *testing.T) {
	svc := testService(t)

	_, err := svc.BuildFromSession(context.Background(), "missing")

	assert.Error(t, err)
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := testService(t)

	res, err := svc.Ask(context.Background(), "")

	require.NoError(t, err)
	assert.Nil(t, res.Answer)
	assert.Equal(t, query.ReasonEmptyQuestion, res.Reason)
}

func TestAskNoMatch(t *testing.T) {
	svc := testService(t)

	res, err := svc.Ask(context.Background(), "tell me about quantum computing")

	require.NoError(t, err)
	assert.Nil(t, res.Answer)
	assert.Equal(t, query.ReasonRouterNoMatch, res.Reason)
}

func TestApplyFeedbackPersists(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendSessionMessage("s1", "customer", "Do you ship?"))
	require.NoError(t, svc.AppendSessionMessage("s1", "agent", "Yes, nationwide."))
	_, err := svc.BuildFromSession(ctx, "s1")
	require.NoError(t, err)

	snap := svc.Snapshot()
	var edgeID string
	for _, e := range snap.Edges {
		if e.Type == graph.EdgeAnswers {
			edgeID = e.ID
		}
	}
	require.NotEmpty(t, edgeID)

	updated, err := svc.ApplyFeedback(ctx, edgeID, 1)
	require.NoError(t, err)
	assert.Greater(t, updated.Confidence, 0.5)

	log, err := svc.FeedbackLog(edgeID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, 1, log[0].Value)
}

func TestApplyFeedbackErrors(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	_, err := svc.ApplyFeedback(ctx, "missing", 1)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	_, err = svc.ApplyFeedback(ctx, "missing", 0)
	assert.ErrorIs(t, err, graph.ErrInvalidInput)
}

func TestUpdateAnswer(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendSessionMessage("s1", "customer", "Do you ship?"))
	require.NoError(t, svc.AppendSessionMessage("s1", "agent", "Yes."))
	_, err := svc.BuildFromSession(ctx, "s1")
	require.NoError(t, err)

	snap := svc.Snapshot()
	var edgeID string
	for _, e := range snap.Edges {
		if e.Type == graph.EdgeAnswers {
			edgeID = e.ID
		}
	}

	_, err = svc.UpdateAnswer(ctx, edgeID, "Yes, we ship nationwide.")
	require.NoError(t, err)

	res, err := svc.Ask(ctx, "do you ship flowers")
	require.NoError(t, err)
	require.NotNil(t, res.Answer)
	assert.Equal(t, "Yes, we ship nationwide.", *res.Answer)
}

func TestResetClearsGraphAndSessions(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendSessionMessage("s1", "customer", "Do you ship?"))
	require.NoError(t, svc.AppendSessionMessage("s1", "agent", "Yes."))
	_, err := svc.BuildFromSession(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))

	snap := svc.Snapshot()
	assert.Len(t, snap.Nodes, 3, "back to the seeded actions")
	assert.Empty(t, snap.Edges)

	sessions, err := svc.Sessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestBuildFromExtractionFullReplace(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	ext := &builder.Extraction{
		Topics: []builder.TopicRecord{{Label: "Delivery"}},
		QAs: []builder.QARecord{
			{TopicLabel: "Delivery", Question: "Do you deliver?", Answer: "Yes, citywide.", Action: "Take order"},
		},
	}

	summary, err := svc.BuildFromExtraction(ctx, ext, "https://shop.test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TopicCount)
	assert.Equal(t, 1, summary.QACount)

	res, err := svc.Ask(ctx, "do you deliver")
	require.NoError(t, err)
	require.NotNil(t, res.Answer)
	assert.Equal(t, "Yes, citywide.", *res.Answer)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "Take order", res.Actions[0].Label)
}

func TestConfirmationTasks(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendSessionMessage("s1", "customer", "Do you ship?"))
	require.NoError(t, svc.AppendSessionMessage("s1", "agent", "Yes."))
	_, err := svc.BuildFromSession(ctx, "s1")
	require.NoError(t, err)

	tasks := svc.ConfirmationTasks()

	require.Len(t, tasks, 1)
	assert.Equal(t, "Do you ship?", tasks[0].Question)
}

func TestLoadRestoresPersistedGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := sqlite.NewClient(path)
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())

	svc := New(Options{
		Builder: builder.NewBuilder("florist"),
		Router:  router.NewLexicalRouter(),
		DB:      db,
	})
	require.NoError(t, svc.Load())
	require.NoError(t, svc.AppendSessionMessage("s1", "customer", "Do you ship?"))
	require.NoError(t, svc.AppendSessionMessage("s1", "agent", "Yes."))
	_, err = svc.BuildFromSession(context.Background(), "s1")
	require.NoError(t, err)
	before := svc.Snapshot()
	require.NoError(t, db.Close())

	db2, err := sqlite.NewClient(path)
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })

	svc2 := New(Options{
		Builder: builder.NewBuilder("florist"),
		Router:  router.NewLexicalRouter(),
		DB:      db2,
	})
	require.NoError(t, svc2.Load())

	after := svc2.Snapshot()
	require.Len(t, after.Nodes, len(before.Nodes))
	for i := range before.Nodes {
		assert.Equal(t, before.Nodes[i].ID, after.Nodes[i].ID, "insertion order survives restart")
	}
}
