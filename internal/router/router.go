// Package router maps free-form user questions onto question nodes in the
// knowledge graph. The primary router asks the LLM to pick among candidates;
// a lexical router serves as a deterministic fallback when no LLM is
// available.
package router

import (
	"context"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/internal/llm"
)

// Router resolves a user question to a question node id. An empty id with a
// nil error means no candidate matched.
type Router interface {
	Route(ctx context.Context, s *graph.Store, question string) (string, error)
}

// questionCandidates lists every question node as a routing candidate,
// preferring full text over the truncated label.
func questionCandidates(s *graph.Store) []llm.RouteCandidate {
	nodes := s.NodesByKind(graph.KindQuestion)
	candidates := make([]llm.RouteCandidate, 0, len(nodes))
	for _, n := range nodes {
		text := n.Text
		if text == "" {
			text = n.Label
		}
		candidates = append(candidates, llm.RouteCandidate{ID: n.ID, Question: text})
	}
	return candidates
}
