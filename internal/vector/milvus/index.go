// Package milvus maintains an embedding index over question nodes. The
// router uses it to narrow routing candidates on large graphs.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/pkg/logger"
)

// Embedder produces embedding vectors for question text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type Index struct {
	client         client.Client
	embedder       Embedder
	collectionName string
	vectorDim      int
}

func NewIndex(endpoint, collectionName string, vectorDim int, embedder Embedder) (*Index, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus question index initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Index{
		client:         c,
		embedder:       embedder,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (x *Index) Close() error {
	return x.client.Close()
}

func (x *Index) EnsureCollection(ctx context.Context) error {
	has, err := x.client.HasCollection(ctx, x.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", x.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: x.collectionName,
		Description:    "Sales graph question embeddings",
		Fields: []*entity.Field{
			{
				Name:       "question_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", x.vectorDim),
				},
			},
			{
				Name:     "question",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "2048",
				},
			},
		},
	}

	err = x.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	err = x.client.CreateIndex(ctx, x.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = x.client.LoadCollection(ctx, x.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", x.collectionName))

	return nil
}

// Reindex replaces the indexed questions with the given nodes. Called after
// every graph rebuild.
func (x *Index) Reindex(ctx context.Context, questions []*graph.Node) error {
	if err := x.Clear(ctx); err != nil {
		return err
	}
	if len(questions) == 0 {
		return nil
	}

	ids := make([]string, 0, len(questions))
	texts := make([]string, 0, len(questions))
	for _, q := range questions {
		text := q.Text
		if text == "" {
			text = q.Label
		}
		ids = append(ids, q.ID)
		texts = append(texts, text)
	}

	embeddings, err := x.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed questions: %w", err)
	}
	if len(embeddings) != len(ids) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(ids))
	}

	_, err = x.client.Insert(
		ctx,
		x.collectionName,
		"",
		entity.NewColumnVarChar("question_id", ids),
		entity.NewColumnFloatVector("embedding", x.vectorDim, embeddings),
		entity.NewColumnVarChar("question", texts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert questions: %w", err)
	}

	err = x.client.Flush(ctx, x.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Questions indexed", zap.Int("count", len(ids)))

	return nil
}

// Clear removes every indexed question, typically on graph reset.
func (x *Index) Clear(ctx context.Context) error {
	err := x.client.Delete(ctx, x.collectionName, "", `question_id != ""`)
	if err != nil {
		return fmt.Errorf("failed to clear question index: %w", err)
	}
	return nil
}

// Search returns the ids of the topK questions closest to the given text.
// Implements the router's CandidateIndex.
func (x *Index) Search(ctx context.Context, question string, topK int) ([]string, error) {
	embedding, err := x.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := x.client.Search(
		ctx,
		x.collectionName,
		[]string{},
		"",
		[]string{"question_id"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var ids []string
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("question_id")
		if idCol == nil {
			continue
		}
		for i := 0; i < sr.ResultCount; i++ {
			id, err := idCol.Get(i)
			if err != nil {
				continue
			}
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
	}

	logger.Debug("Question search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(ids)),
	)

	return ids, nil
}
