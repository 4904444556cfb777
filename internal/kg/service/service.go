// Package service owns the live knowledge graph. All reads and mutations go
// through it: it serializes access to the in-memory store, persists every
// change to SQLite, and keeps the cache, vector index, and Neo4j mirror in
// step.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/cache/redis"
	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/internal/kg/builder"
	"github.com/sales-agent/backend/internal/kg/neo4j"
	"github.com/sales-agent/backend/internal/metrics"
	"github.com/sales-agent/backend/internal/query"
	"github.com/sales-agent/backend/internal/router"
	"github.com/sales-agent/backend/internal/storage/models"
	"github.com/sales-agent/backend/internal/storage/sqlite"
	"github.com/sales-agent/backend/internal/vector/milvus"
	"github.com/sales-agent/backend/pkg/logger"
	"github.com/sales-agent/backend/pkg/utils"
)

type Service struct {
	mu      sync.RWMutex
	store   *graph.Store
	builder *builder.Builder
	router  router.Router

	db       *sqlite.Client
	cache    *redis.Client
	cacheTTL time.Duration
	mirror   *neo4j.Client
	vector   *milvus.Index
}

type Options struct {
	Builder  *builder.Builder
	Router   router.Router
	DB       *sqlite.Client
	Cache    *redis.Client
	CacheTTL time.Duration
	Mirror   *neo4j.Client
	Vector   *milvus.Index
}

func New(opts Options) *Service {
	return &Service{
		store:    graph.NewStore(),
		builder:  opts.Builder,
		router:   opts.Router,
		db:       opts.DB,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		mirror:   opts.Mirror,
		vector:   opts.Vector,
	}
}

// Load restores the graph from SQLite, seeding the core actions when no
// snapshot exists yet.
func (s *Service) Load() error {
	snap, err := s.db.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("failed to load graph snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap == nil {
		s.builder.Seed(s.store)
		logger.Info("no stored graph, seeded core actions")
	} else {
		s.store = graph.FromSnapshot(snap)
		logger.Info("graph restored",
			zap.Int("nodes", s.store.NodeCount()),
			zap.Int("edges", s.store.EdgeCount()),
		)
	}

	s.updateGauges()
	return nil
}

// Snapshot returns a consistent copy of the current graph.
func (s *Service) Snapshot() *graph.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Snapshot()
}

// Reset wipes the graph back to the seeded core actions, drops all
// sessions, and clears every derived store.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.store.Reset(func(st *graph.Store) { s.builder.Seed(st) })
	snap := s.store.Snapshot()
	s.updateGauges()
	s.mu.Unlock()

	if err := s.db.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("failed to persist reset graph: %w", err)
	}
	if err := s.db.ClearSessions(); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	s.invalidateCache(ctx)
	s.clearVector(ctx)
	s.mirrorSnapshot(ctx, snap)

	logger.Info("graph reset")
	return nil
}

// ApplyFeedback records a vote on an answer edge and returns the updated
// edge.
func (s *Service) ApplyFeedback(ctx context.Context, edgeID string, value int) (graph.Edge, error) {
	s.mu.Lock()
	err := s.store.ApplyFeedback(edgeID, value)
	var updated graph.Edge
	if err == nil {
		if edge, ok := s.store.GetEdge(edgeID); ok {
			updated = *edge
		}
	}
	var snap *graph.Snapshot
	if err == nil {
		snap = s.store.Snapshot()
	}
	s.mu.Unlock()

	if err != nil {
		return graph.Edge{}, err
	}

	direction := "positive"
	if value < 0 {
		direction = "negative"
	}
	metrics.FeedbackTotal.WithLabelValues(direction).Inc()

	if logErr := s.db.LogFeedback(edgeID, value); logErr != nil {
		logger.Warn("failed to log feedback", zap.Error(logErr))
	}
	if err := s.db.SaveSnapshot(snap); err != nil {
		return graph.Edge{}, fmt.Errorf("failed to persist feedback: %w", err)
	}

	s.invalidateCache(ctx)
	s.mirrorSnapshot(ctx, snap)

	return updated, nil
}

// UpdateAnswer replaces the answer text behind an answers edge.
func (s *Service) UpdateAnswer(ctx context.Context, edgeID, newText string) (*graph.Snapshot, error) {
	s.mu.Lock()
	err := s.store.UpdateAnswer(edgeID, newText)
	var snap *graph.Snapshot
	if err == nil {
		snap = s.store.Snapshot()
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if err := s.db.SaveSnapshot(snap); err != nil {
		return nil, fmt.Errorf("failed to persist answer update: %w", err)
	}

	s.invalidateCache(ctx)
	s.mirrorSnapshot(ctx, snap)

	return snap, nil
}

// AppendSessionMessage records one conversation turn for later mining.
func (s *Service) AppendSessionMessage(sessionID, role, text string) error {
	return s.db.AppendSessionMessage(sessionID, role, text)
}

func (s *Service) SessionMessages(sessionID string) ([]models.SessionMessage, error) {
	return s.db.GetSessionMessages(sessionID)
}

func (s *Service) Sessions() ([]models.Session, error) {
	return s.db.ListSessions()
}

// BuildFromSession mines a stored session transcript into the graph.
func (s *Service) BuildFromSession(ctx context.Context, sessionID string) (builder.BuildSummary, error) {
	messages, err := s.db.GetSessionMessages(sessionID)
	if err != nil {
		return builder.BuildSummary{}, err
	}
	if len(messages) == 0 {
		return builder.BuildSummary{}, fmt.Errorf("session %s has no messages", sessionID)
	}

	turns := make([]builder.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, builder.Turn{Role: m.Role, Text: m.Text, At: float64(m.CreatedAt.Unix())})
	}

	s.mu.Lock()
	summary := s.builder.BuildFromTranscript(s.store, turns)
	snap := s.store.Snapshot()
	s.updateGauges()
	s.mu.Unlock()

	if err := s.afterBuild(ctx, snap); err != nil {
		metrics.BuildsTotal.WithLabelValues("session", "error").Inc()
		return builder.BuildSummary{}, err
	}

	metrics.BuildsTotal.WithLabelValues("session", "ok").Inc()
	return summary, nil
}

// BuildFromExtraction rebuilds the graph from a website extraction. The
// graph is reset and reseeded first, so ingest is full-replace.
func (s *Service) BuildFromExtraction(ctx context.Context, ext *builder.Extraction, website string) (builder.BuildSummary, error) {
	s.mu.Lock()
	summary := s.builder.BuildFromExtraction(s.store, ext, website)
	snap := s.store.Snapshot()
	s.updateGauges()
	s.mu.Unlock()

	if err := s.afterBuild(ctx, snap); err != nil {
		metrics.BuildsTotal.WithLabelValues("website", "error").Inc()
		return builder.BuildSummary{}, err
	}

	metrics.BuildsTotal.WithLabelValues("website", "ok").Inc()
	return summary, nil
}

// RepairTopicLinks reattaches orphaned questions to a topic.
func (s *Service) RepairTopicLinks(ctx context.Context) (int, error) {
	s.mu.Lock()
	repaired := s.builder.RepairTopicLinks(s.store)
	var snap *graph.Snapshot
	if repaired > 0 {
		snap = s.store.Snapshot()
	}
	s.mu.Unlock()

	if repaired == 0 {
		return 0, nil
	}

	if err := s.afterBuild(ctx, snap); err != nil {
		return 0, err
	}
	return repaired, nil
}

// Ask answers a free-form question from the graph: cache, then routing,
// then resolution. Routing holds the read lock; builds are infrequent
// enough that this is fine.
func (s *Service) Ask(ctx context.Context, question string) (*query.Resolution, error) {
	start := time.Now()
	defer func() {
		metrics.QADuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
	}()

	if cached := s.cachedResolution(ctx, question); cached != nil {
		return cached, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	resolution := s.resolveLocked(ctx, question)

	if resolution.Answer != nil {
		metrics.QATotal.WithLabelValues("answered").Inc()
		metrics.QAConfidence.Observe(resolution.Confidence)
	} else {
		metrics.QATotal.WithLabelValues("unresolved").Inc()
	}

	s.cacheResolution(ctx, question, resolution)
	return resolution, nil
}

func (s *Service) resolveLocked(ctx context.Context, question string) *query.Resolution {
	if question == "" {
		return &query.Resolution{Reason: query.ReasonEmptyQuestion}
	}

	questionID, err := s.router.Route(ctx, s.store, question)
	if err != nil {
		logger.Warn("routing failed", zap.Error(err))
		return &query.Resolution{Reason: query.ReasonRouterNoMatch}
	}
	if questionID == "" {
		return &query.Resolution{Reason: query.ReasonRouterNoMatch}
	}

	res := query.Resolve(s.store, questionID)
	return &res
}

// ConfirmationTasks lists low-trust answer edges for human review.
func (s *Service) ConfirmationTasks() []query.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.ConfirmationTasks(s.store)
}

func (s *Service) FeedbackLog(edgeID string) ([]models.FeedbackRecord, error) {
	return s.db.GetFeedbackLog(edgeID)
}

// afterBuild persists a post-mutation snapshot and refreshes every derived
// store.
func (s *Service) afterBuild(ctx context.Context, snap *graph.Snapshot) error {
	if err := s.db.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("failed to persist graph: %w", err)
	}

	s.invalidateCache(ctx)
	s.reindexQuestions(ctx, snap)
	s.mirrorSnapshot(ctx, snap)
	return nil
}

func (s *Service) cachedResolution(ctx context.Context, question string) *query.Resolution {
	if s.cache == nil {
		return nil
	}

	var resolution query.Resolution
	hit, err := s.cache.GetAnswer(ctx, utils.HashString(question), &resolution)
	if err != nil {
		logger.Warn("answer cache read failed", zap.Error(err))
		return nil
	}
	if !hit {
		metrics.CacheMisses.WithLabelValues("qa").Inc()
		return nil
	}

	metrics.CacheHits.WithLabelValues("qa").Inc()
	return &resolution
}

func (s *Service) cacheResolution(ctx context.Context, question string, resolution *query.Resolution) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetAnswer(ctx, utils.HashString(question), resolution, s.cacheTTL); err != nil {
		logger.Warn("answer cache write failed", zap.Error(err))
	}
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAnswers(ctx); err != nil {
		logger.Warn("answer cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) reindexQuestions(ctx context.Context, snap *graph.Snapshot) {
	if s.vector == nil {
		return
	}

	var questions []*graph.Node
	for i := range snap.Nodes {
		if snap.Nodes[i].Kind == graph.KindQuestion {
			questions = append(questions, &snap.Nodes[i])
		}
	}

	if err := s.vector.Reindex(ctx, questions); err != nil {
		logger.Warn("question reindex failed", zap.Error(err))
	}
}

func (s *Service) clearVector(ctx context.Context) {
	if s.vector == nil {
		return
	}
	if err := s.vector.Clear(ctx); err != nil {
		logger.Warn("question index clear failed", zap.Error(err))
	}
}

func (s *Service) mirrorSnapshot(ctx context.Context, snap *graph.Snapshot) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.MirrorSnapshot(ctx, snap); err != nil {
		logger.Warn("neo4j mirror failed", zap.Error(err))
	}
}

func (s *Service) updateGauges() {
	metrics.GraphNodesTotal.Set(float64(s.store.NodeCount()))
	metrics.GraphEdgesTotal.Set(float64(s.store.EdgeCount()))
}
