package builder

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/pkg/logger"
)

// Transcript roles. Customer turns become question nodes, agent turns become
// answers to the most recent pending question.
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

const (
	defaultWeight     = 0.5
	defaultConfidence = 0.5

	// describes_context confidence depends on how the topic was chosen:
	// explicit or rule-inferred labels score higher than the shared fallback.
	labeledTopicConfidence  = 0.6
	fallbackTopicConfidence = 0.3
)

type Turn struct {
	Role string  `json:"role"`
	Text string  `json:"text"`
	At   float64 `json:"at,omitempty"`
}

// Extraction is the structured output of the knowledge extractor: an optional
// explicit topic list plus question/answer/action records.
type Extraction struct {
	Topics []TopicRecord `json:"topics"`
	QAs    []QARecord    `json:"qas"`
}

type TopicRecord struct {
	Label string `json:"label"`
}

type QARecord struct {
	TopicLabel string `json:"topic_label"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Action     string `json:"action"`
}

// BuildSummary reports what a build pass produced.
type BuildSummary struct {
	TopicCount int `json:"topic_count"`
	QACount    int `json:"qa_count"`
}

// Builder turns transcripts and extraction batches into store mutations.
type Builder struct {
	intentID string
}

func NewBuilder(intentID string) *Builder {
	return &Builder{intentID: intentID}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normLabel(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

func (b *Builder) newEdge(source, target, edgeType string, confidence float64, provenance string) *graph.Edge {
	return &graph.Edge{
		ID:         uuid.New().String(),
		Source:     source,
		Target:     target,
		Type:       edgeType,
		Weight:     defaultWeight,
		Confidence: confidence,
		Metadata: map[string]any{
			"created_at": float64(time.Now().UnixNano()) / float64(time.Second),
			"intent_id":  b.intentID,
			"source":     provenance,
		},
	}
}

// linkTopic adds a describes_context edge unless the (topic, question) pair
// is already linked. Edge ids are fresh per call, so the triple check is what
// keeps repeated builds from stacking duplicate context links.
func (b *Builder) linkTopic(s *graph.Store, topicID, questionID string, confidence float64, provenance string) bool {
	if _, exists := s.FindEdge(topicID, questionID, graph.EdgeDescribesContext); exists {
		return false
	}
	s.AddEdge(b.newEdge(topicID, questionID, graph.EdgeDescribesContext, confidence, provenance))
	return true
}

// BuildFromTranscript scans turns in order with a single pending-question
// slot. A customer turn overwrites any unanswered pending question (last
// question wins); an agent turn answers the pending question, links an
// inferred topic to it, and clears the slot. Existing graph state is kept.
func (b *Builder) BuildFromTranscript(s *graph.Store, turns []Turn) BuildSummary {
	const provenance = "customer_session"

	var summary BuildSummary
	var pending *graph.Node

	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}

		switch turn.Role {
		case RoleCustomer, "user":
			pending = s.FindOrCreateQuestion(text, b.intentID)

		case RoleAgent:
			if pending == nil {
				continue
			}

			answer := s.FindOrCreateAnswer(text, b.intentID)
			s.AddEdge(b.newEdge(pending.ID, answer.ID, graph.EdgeAnswers, defaultConfidence, provenance))

			label, ok := InferTopic(pending.Text)
			if !ok {
				label = GeneralOfferingLabel
			}
			topic := s.FindOrCreateTopic(label, b.intentID)
			b.linkTopic(s, topic.ID, pending.ID, defaultConfidence, provenance)

			summary.QACount++
			pending = nil
		}
	}

	summary.TopicCount = len(s.NodesByKind(graph.KindTopic))

	logger.Info("Graph built from transcript",
		zap.Int("turns", len(turns)),
		zap.Int("qa_pairs", summary.QACount),
		zap.Int("nodes", s.NodeCount()),
		zap.Int("edges", s.EdgeCount()),
	)

	return summary
}

// BuildFromExtraction replaces the whole graph with the extraction batch:
// reset + reseed default actions, pre-register topics, then wire one
// topic -> question -> answer (-> action) path per usable record.
func (b *Builder) BuildFromExtraction(s *graph.Store, ext *Extraction, sourceURL string) BuildSummary {
	const provenance = "website_ingest"

	s.Reset(CoreActionSeeder(b.intentID))

	for _, topic := range ext.Topics {
		if label := normLabel(topic.Label); label != "" {
			s.FindOrCreateTopic(label, b.intentID)
		}
	}
	for _, record := range ext.QAs {
		if label := normLabel(record.TopicLabel); label != "" {
			s.FindOrCreateTopic(label, b.intentID)
		}
	}

	var summary BuildSummary
	var fallbackTopic *graph.Node

	for _, record := range ext.QAs {
		question := normLabel(record.Question)
		answer := normLabel(record.Answer)
		if question == "" || answer == "" {
			continue
		}

		topicLabel := normLabel(record.TopicLabel)
		if topicLabel == "" {
			if inferred, ok := InferTopic(question + " " + answer); ok {
				topicLabel = inferred
			}
		}

		var topic *graph.Node
		topicConfidence := labeledTopicConfidence
		if topicLabel != "" {
			topic = s.FindOrCreateTopic(topicLabel, b.intentID)
		} else {
			// One shared low-confidence bucket for unlabelable records.
			if fallbackTopic == nil {
				fallbackTopic = s.FindOrCreateTopic(FallbackTopicLabel, b.intentID)
			}
			topic = fallbackTopic
			topicConfidence = fallbackTopicConfidence
		}

		qNode := s.FindOrCreateQuestion(question, b.intentID)
		aNode := s.FindOrCreateAnswer(answer, b.intentID)

		cq := b.newEdge(topic.ID, qNode.ID, graph.EdgeDescribesContext, topicConfidence, provenance)
		qa := b.newEdge(qNode.ID, aNode.ID, graph.EdgeAnswers, defaultConfidence, provenance)
		if sourceURL != "" {
			cq.Metadata["website"] = sourceURL
			qa.Metadata["website"] = sourceURL
		}
		if _, linked := s.FindEdge(topic.ID, qNode.ID, graph.EdgeDescribesContext); !linked {
			s.AddEdge(cq)
		}
		s.AddEdge(qa)

		if actionLabel := normLabel(record.Action); actionLabel != "" {
			// Only pre-seeded actions are linkable; extraction never mints
			// new action nodes, unknown labels are dropped.
			if action := findActionByLabel(s, actionLabel); action != nil {
				na := b.newEdge(aNode.ID, action.ID, graph.EdgeNextStep, defaultConfidence, provenance)
				if sourceURL != "" {
					na.Metadata["website"] = sourceURL
				}
				s.AddEdge(na)
			}
		}

		summary.QACount++
	}

	summary.TopicCount = len(s.NodesByKind(graph.KindTopic))

	logger.Info("Graph rebuilt from extraction",
		zap.String("source", sourceURL),
		zap.Int("topics", summary.TopicCount),
		zap.Int("qa_pairs", summary.QACount),
	)

	return summary
}

func findActionByLabel(s *graph.Store, label string) *graph.Node {
	want := strings.ToLower(strings.TrimSpace(label))
	if want == "" {
		return nil
	}
	for _, n := range s.NodesByKind(graph.KindAction) {
		if strings.ToLower(strings.TrimSpace(n.Label)) == want {
			return n
		}
	}
	return nil
}
