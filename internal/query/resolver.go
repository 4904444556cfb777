package query

import (
	"strings"

	"github.com/sales-agent/backend/internal/graph"
)

// Failure reasons are observable contract: callers and tests match on these
// exact strings, so they must stay stable.
const (
	ReasonEmptyQuestion   = "Empty question"
	ReasonNoMatch         = "No matching question node"
	ReasonNoAnswerEdge    = "Question has no answer node"
	ReasonAnswerMissing   = "Answer node missing"
	ReasonRouterNoMatch   = "No matching question in graph"
)

type Action struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Resolution is always a normal result; an unanswerable question is reported
// through Reason, never as an error.
type Resolution struct {
	QuestionID string   `json:"matched_question_id,omitempty"`
	Question   string   `json:"matched_question,omitempty"`
	Answer     *string  `json:"answer"`
	Confidence float64  `json:"confidence"`
	Actions    []Action `json:"actions"`
	Reason     string   `json:"reason,omitempty"`
}

func unresolved(reason string) Resolution {
	return Resolution{Actions: []Action{}, Reason: reason}
}

// Resolve walks question -> answers -> next_step for an already-routed
// question id. When the question has several answers edges, the first one in
// store order wins; with duplicate edges that choice is undefined across
// runs, deterministic within one.
func Resolve(s *graph.Store, questionID string) Resolution {
	if strings.TrimSpace(questionID) == "" {
		return unresolved(ReasonEmptyQuestion)
	}

	qNode, ok := s.GetNode(questionID)
	if !ok || qNode.Kind != graph.KindQuestion {
		return unresolved(ReasonNoMatch)
	}

	var answerEdge *graph.Edge
	for _, e := range s.Edges() {
		if e.Type == graph.EdgeAnswers && e.Source == qNode.ID {
			answerEdge = e
			break
		}
	}
	if answerEdge == nil {
		res := unresolved(ReasonNoAnswerEdge)
		res.QuestionID = qNode.ID
		res.Question = qNode.Text
		return res
	}

	aNode, ok := s.GetNode(answerEdge.Target)
	if !ok {
		// Dangling endpoint: tolerated at read time, reported as not found.
		res := unresolved(ReasonAnswerMissing)
		res.QuestionID = qNode.ID
		res.Question = qNode.Text
		return res
	}

	actions := []Action{}
	for _, e := range s.Edges() {
		if e.Type != graph.EdgeNextStep || e.Source != aNode.ID {
			continue
		}
		actionNode, ok := s.GetNode(e.Target)
		if !ok {
			continue
		}
		label := actionNode.Label
		if label == "" {
			label = actionNode.Text
		}
		actions = append(actions, Action{
			ID:          actionNode.ID,
			Label:       label,
			Description: actionNode.Text,
		})
	}

	answer := aNode.Text
	return Resolution{
		QuestionID: qNode.ID,
		Question:   qNode.Text,
		Answer:     &answer,
		Confidence: answerEdge.Confidence,
		Actions:    actions,
	}
}
