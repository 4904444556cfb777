package milvus

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/pkg/logger"
	"github.com/sales-agent/backend/pkg/utils"
)

// EmbeddingCache stores computed vectors keyed by text hash.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// CachedEmbedder fronts an Embedder with a cache so repeated questions skip
// the embedding call. Cache failures fall through to the inner embedder.
type CachedEmbedder struct {
	inner Embedder
	cache EmbeddingCache
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, cache EmbeddingCache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, ttl: ttl}
}

func (e *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashString(text)

	vec, hit, err := e.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("embedding cache read failed", zap.Error(err))
	} else if hit {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return vec, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	vec, err = e.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, key, vec, e.ttl); err != nil {
		logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

// GenerateBatchEmbeddings passes through: reindexing replaces the whole
// collection, so per-text caching only pays off on the search path.
func (e *CachedEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.GenerateBatchEmbeddings(ctx, texts)
}
