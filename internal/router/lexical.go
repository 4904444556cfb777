package router

import (
	"context"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/sales-agent/backend/internal/graph"
)

// minOverlapScore is the smallest token overlap ratio accepted as a match.
const minOverlapScore = 0.5

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "do": true,
	"does": true, "did": true, "you": true, "your": true, "i": true, "we": true,
	"can": true, "could": true, "would": true, "will": true, "what": true,
	"when": true, "where": true, "how": true, "to": true, "of": true,
	"for": true, "in": true, "on": true, "it": true, "my": true, "me": true,
	"and": true, "or": true, "have": true, "has": true, "there": true,
}

// LexicalRouter matches questions by token overlap. It is deterministic and
// needs no API key, which makes it the fallback when the LLM router is
// unavailable and the workhorse in tests.
type LexicalRouter struct{}

func NewLexicalRouter() *LexicalRouter {
	return &LexicalRouter{}
}

func (r *LexicalRouter) Route(_ context.Context, s *graph.Store, question string) (string, error) {
	queryTokens := contentTokens(question)
	if len(queryTokens) == 0 {
		return "", nil
	}

	bestID := ""
	bestScore := 0.0

	for _, c := range questionCandidates(s) {
		candidateTokens := contentTokens(c.Question)
		if len(candidateTokens) == 0 {
			continue
		}

		overlap := 0
		for tok := range queryTokens {
			if candidateTokens[tok] {
				overlap++
			}
		}

		// Overlap relative to the smaller token set, so short questions can
		// still match longer stored phrasings.
		denom := len(queryTokens)
		if len(candidateTokens) < denom {
			denom = len(candidateTokens)
		}
		score := float64(overlap) / float64(denom)

		if score > bestScore {
			bestScore = score
			bestID = c.ID
		}
	}

	if bestScore < minOverlapScore {
		return "", nil
	}
	return bestID, nil
}

func contentTokens(text string) map[string]bool {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil
	}

	tokens := make(map[string]bool)
	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if len(word) < 2 || stopwords[word] {
			continue
		}
		tokens[word] = true
	}
	return tokens
}
