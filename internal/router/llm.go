package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/internal/llm"
	"github.com/sales-agent/backend/pkg/logger"
)

// CandidateIndex narrows the routing candidate set before the LLM call,
// typically via a vector similarity search over question embeddings.
type CandidateIndex interface {
	Search(ctx context.Context, question string, topK int) ([]string, error)
}

type LLMRouter struct {
	client *llm.Client
	index  CandidateIndex
	topK   int
}

func NewLLMRouter(client *llm.Client) *LLMRouter {
	return &LLMRouter{client: client}
}

// WithIndex enables vector pre-selection of candidates. The full candidate
// set is still used when the index errors or returns nothing.
func (r *LLMRouter) WithIndex(index CandidateIndex, topK int) *LLMRouter {
	r.index = index
	r.topK = topK
	return r
}

func (r *LLMRouter) Route(ctx context.Context, s *graph.Store, question string) (string, error) {
	candidates := questionCandidates(s)
	if len(candidates) == 0 {
		return "", nil
	}

	if r.index != nil {
		candidates = r.preselect(ctx, candidates, question)
	}

	bestID, confidence, err := r.client.RouteQuestion(ctx, question, candidates)
	if err != nil {
		return "", err
	}
	if bestID == "" {
		return "", nil
	}

	// The model occasionally invents ids; only trust ones that resolve to a
	// question node.
	node, ok := s.GetNode(bestID)
	if !ok || node.Kind != graph.KindQuestion {
		logger.Warn("router returned unknown node id", zap.String("best_id", bestID))
		return "", nil
	}

	logger.Debug("question routed",
		zap.String("best_id", bestID),
		zap.Float64("confidence", confidence),
	)

	return bestID, nil
}

func (r *LLMRouter) preselect(ctx context.Context, candidates []llm.RouteCandidate, question string) []llm.RouteCandidate {
	topK := r.topK
	if topK <= 0 || topK >= len(candidates) {
		return candidates
	}

	ids, err := r.index.Search(ctx, question, topK)
	if err != nil {
		logger.Warn("vector pre-selection failed, using full candidate set", zap.Error(err))
		return candidates
	}
	if len(ids) == 0 {
		return candidates
	}

	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	narrowed := make([]llm.RouteCandidate, 0, len(ids))
	for _, c := range candidates {
		if keep[c.ID] {
			narrowed = append(narrowed, c)
		}
	}
	if len(narrowed) == 0 {
		return candidates
	}
	return narrowed
}
