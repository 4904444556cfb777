package milvus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func (s *stubEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, s.err
}

type mapCache struct {
	entries map[string][]float32
	readErr error
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]float32{}}
}

func (m *mapCache) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	vec, ok := m.entries[textHash]
	return vec, ok, nil
}

func (m *mapCache) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	m.sets++
	m.entries[textHash] = embedding
	return nil
}

func TestCachedEmbedderMissThenHit(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.1, 0.2}}
	cache := newMapCache()
	e := NewCachedEmbedder(inner, cache, time.Minute)

	first, err := e.GenerateEmbedding(context.Background(), "do you deliver")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, first)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cache.sets)

	second, err := e.GenerateEmbedding(context.Background(), "do you deliver")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "repeat text served from cache")
}

func TestCachedEmbedderReadFailureFallsThrough(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.3}}
	cache := newMapCache()
	cache.readErr = errors.New("connection refused")
	e := NewCachedEmbedder(inner, cache, time.Minute)

	vec, err := e.GenerateEmbedding(context.Background(), "opening hours")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.3}, vec)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderEmbedErrorNotCached(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("rate limited")}
	cache := newMapCache()
	e := NewCachedEmbedder(inner, cache, time.Minute)

	_, err := e.GenerateEmbedding(context.Background(), "do you deliver")

	assert.Error(t, err)
	assert.Zero(t, cache.sets)
}

func TestCachedEmbedderBatchPassesThrough(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.5}}
	cache := newMapCache()
	e := NewCachedEmbedder(inner, cache, time.Minute)

	vecs, err := e.GenerateBatchEmbeddings(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Zero(t, cache.sets)
}
