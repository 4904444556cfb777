package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sales-agent/backend/internal/graph"
)

func edgesOfType(s *graph.Store, edgeType string) []*graph.Edge {
	var out []*graph.Edge
	for _, e := range s.Edges() {
		if e.Type == edgeType {
			out = append(out, e)
		}
	}
	return out
}

func TestBuildFromTranscriptPendingQuestion(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("intent-1")

	summary := b.BuildFromTranscript(s, []Turn{
		{Role: RoleCustomer, Text: "What are your hours?"},
		{Role: RoleAgent, Text: "9 to 5"},
		{Role: RoleCustomer, Text: "Unanswered?"},
	})

	assert.Equal(t, 1, summary.QACount)

	answers := edgesOfType(s, graph.EdgeAnswers)
	require.Len(t, answers, 1, "trailing unanswered question produces no edges")

	q, ok := s.GetNode(answers[0].Source)
	require.True(t, ok)
	assert.Equal(t, "What are your hours?", q.Text)
	a, ok := s.GetNode(answers[0].Target)
	require.True(t, ok)
	assert.Equal(t, "9 to 5", a.Text)
	assert.Equal(t, 0.5, answers[0].Confidence)
	assert.Equal(t, 0.5, answers[0].Weight)

	// No keyword matched, so the question maps to the general topic.
	contexts := edgesOfType(s, graph.EdgeDescribesContext)
	require.Len(t, contexts, 1)
	topic, ok := s.GetNode(contexts[0].Source)
	require.True(t, ok)
	assert.Equal(t, GeneralOfferingLabel, topic.Label)
	assert.Equal(t, q.ID, contexts[0].Target)
}

func TestBuildFromTranscriptLastQuestionWins(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	b.BuildFromTranscript(s, []Turn{
		{Role: RoleCustomer, Text: "First question?"},
		{Role: RoleCustomer, Text: "Second question?"},
		{Role: RoleAgent, Text: "Answer to the second"},
	})

	answers := edgesOfType(s, graph.EdgeAnswers)
	require.Len(t, answers, 1)
	q, _ := s.GetNode(answers[0].Source)
	assert.Equal(t, "Second question?", q.Text)

	// Both questions exist; only the answered one has an edge.
	assert.Len(t, s.NodesByKind(graph.KindQuestion), 2)
}

func TestBuildFromTranscriptIgnoresLeadingAgentTurns(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	summary := b.BuildFromTranscript(s, []Turn{
		{Role: RoleAgent, Text: "Welcome to the shop!"},
		{Role: RoleCustomer, Text: "   "},
		{Role: RoleAgent, Text: "Anything I can help with?"},
	})

	assert.Zero(t, summary.QACount)
	assert.Zero(t, s.EdgeCount())
}

func TestBuildFromTranscriptAcceptsUserRole(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	summary := b.BuildFromTranscript(s, []Turn{
		{Role: "user", Text: "Do you ship?"},
		{Role: RoleAgent, Text: "Yes, nationwide"},
	})

	assert.Equal(t, 1, summary.QACount)
}

func TestBuildFromTranscriptRepeatedRunsDontDuplicateTopicLinks(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	turns := []Turn{
		{Role: RoleCustomer, Text: "Do you ship?"},
		{Role: RoleAgent, Text: "Yes, nationwide"},
	}
	b.BuildFromTranscript(s, turns)
	b.BuildFromTranscript(s, turns)

	assert.Len(t, edgesOfType(s, graph.EdgeDescribesContext), 1, "topic link is triple-deduplicated")
	// answers edges are only id-idempotent; a second run adds another one,
	// which is the documented duplicate-answer edge case.
	assert.Len(t, edgesOfType(s, graph.EdgeAnswers), 2)
}

func TestBuildFromExtractionReplacesGraph(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("intent-1")

	s.FindOrCreateQuestion("stale question", "")

	summary := b.BuildFromExtraction(s, &Extraction{
		Topics: []TopicRecord{{Label: "Store Hours"}},
		QAs: []QARecord{
			{TopicLabel: "Store Hours", Question: "When are you open?", Answer: "9 to 5 weekdays", Action: "Take order"},
		},
	}, "https://example.com")

	assert.Equal(t, 1, summary.QACount)

	for _, n := range s.NodesByKind(graph.KindQuestion) {
		assert.NotEqual(t, "stale question", n.Text, "pre-existing state is discarded")
	}
	assert.Len(t, s.NodesByKind(graph.KindAction), 3, "default actions reseeded")

	next := edgesOfType(s, graph.EdgeNextStep)
	require.Len(t, next, 1)
	action, _ := s.GetNode(next[0].Target)
	assert.Equal(t, "Take order", action.Label)
}

func TestBuildFromExtractionTopicConfidence(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	b.BuildFromExtraction(s, &Extraction{
		QAs: []QARecord{
			{TopicLabel: "Store Hours", Question: "When are you open?", Answer: "9 to 5"},
			{Question: "Do you deliver?", Answer: "Within the city, yes"},
			{Question: "Can you recommend a gift?", Answer: "Our florist's choice is popular"},
		},
	}, "")

	contexts := edgesOfType(s, graph.EdgeDescribesContext)
	require.Len(t, contexts, 3)

	confByTopic := map[string]float64{}
	for _, e := range contexts {
		topic, _ := s.GetNode(e.Source)
		confByTopic[topic.Label] = e.Confidence
	}

	assert.Equal(t, 0.6, confByTopic["Store Hours"], "explicit label")
	assert.Equal(t, 0.6, confByTopic["Delivery & shipping"], "rule-inferred label")
	assert.Equal(t, 0.3, confByTopic[FallbackTopicLabel], "shared fallback is low-confidence")
}

func TestBuildFromExtractionSharedFallbackTopic(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	b.BuildFromExtraction(s, &Extraction{
		QAs: []QARecord{
			{Question: "First unlabelable?", Answer: "Answer one"},
			{Question: "Second unlabelable?", Answer: "Answer two"},
		},
	}, "")

	fallbacks := 0
	for _, n := range s.NodesByKind(graph.KindTopic) {
		if n.Label == FallbackTopicLabel {
			fallbacks++
		}
	}
	assert.Equal(t, 1, fallbacks, "exactly one shared fallback topic")
}

func TestBuildFromExtractionDropsUnknownActions(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	b.BuildFromExtraction(s, &Extraction{
		QAs: []QARecord{
			{Question: "Do you ship?", Answer: "Yes", Action: "Launch rocket"},
		},
	}, "")

	assert.Empty(t, edgesOfType(s, graph.EdgeNextStep), "unmatched action labels are dropped")
	assert.Len(t, s.NodesByKind(graph.KindAction), 3, "no action nodes auto-created")
}

func TestBuildFromExtractionSkipsIncompleteRecords(t *testing.T) {
	s := graph.NewStore()
	b := NewBuilder("")

	summary := b.BuildFromExtraction(s, &Extraction{
		QAs: []QARecord{
			{Question: "Question without answer?"},
			{Answer: "Answer without question"},
			{Question: " ", Answer: " "},
		},
	}, "")

	assert.Zero(t, summary.QACount)
	assert.Empty(t, edgesOfType(s, graph.EdgeAnswers))
}

func TestSeedCoreActionsIdempotent(t *testing.T) {
	s := graph.NewStore()

	SeedCoreActions(s, "intent-1")
	SeedCoreActions(s, "intent-1")

	assert.Len(t, s.NodesByKind(graph.KindAction), 3)
}
