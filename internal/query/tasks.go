package query

import "github.com/sales-agent/backend/internal/graph"

// Task asks a human to confirm one question/answer edge; the review UI feeds
// the result back through feedback.
type Task struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	EdgeID     string  `json:"edge_id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	TopicLabel string  `json:"topic_label,omitempty"`
}

// ConfirmationTasks lists every answers edge with both endpoints present as
// an edge-confirmation task, annotated with the first topic describing the
// question.
func ConfirmationTasks(s *graph.Store) []Task {
	var contextEdges []*graph.Edge
	for _, e := range s.Edges() {
		if e.Type == graph.EdgeDescribesContext {
			contextEdges = append(contextEdges, e)
		}
	}

	tasks := []Task{}
	for _, e := range s.Edges() {
		if e.Type != graph.EdgeAnswers {
			continue
		}

		qNode, ok := s.GetNode(e.Source)
		if !ok {
			continue
		}
		aNode, ok := s.GetNode(e.Target)
		if !ok {
			continue
		}

		var topicLabel string
		for _, ce := range contextEdges {
			if ce.Target != qNode.ID {
				continue
			}
			if topic, ok := s.GetNode(ce.Source); ok {
				topicLabel = topic.Label
				if topicLabel == "" {
					topicLabel = topic.Text
				}
			}
			break
		}

		tasks = append(tasks, Task{
			ID:         e.ID,
			Kind:       "edge_confirmation",
			EdgeID:     e.ID,
			Question:   qNode.Text,
			Answer:     aNode.Text,
			Confidence: e.Confidence,
			TopicLabel: topicLabel,
		})
	}

	return tasks
}
