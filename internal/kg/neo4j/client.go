package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/pkg/circuitbreaker"
	"github.com/sales-agent/backend/pkg/logger"
	"github.com/sales-agent/backend/pkg/retry"
)

// Client mirrors the in-memory sales graph into Neo4j for external
// exploration. The in-memory store stays authoritative; mirroring is
// best-effort and full-replace.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// MirrorSnapshot wipes the mirrored graph and rewrites it from the
// snapshot. Edge ids ride on the relationship so feedback stays traceable.
func (c *Client) MirrorSnapshot(ctx context.Context, snap *graph.Snapshot) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `MATCH (n:SalesNode) DETACH DELETE n`, nil)
		if err != nil {
			return fmt.Errorf("failed to clear mirror: %w", err)
		}

		for _, node := range snap.Nodes {
			_, err = session.Run(ctx, `
				CREATE (n:SalesNode {id: $id, kind: $kind, label: $label, text: $text, intent_id: $intent_id})
			`, map[string]interface{}{
				"id":        node.ID,
				"kind":      string(node.Kind),
				"label":     node.Label,
				"text":      node.Text,
				"intent_id": node.IntentID,
			})
			if err != nil {
				return fmt.Errorf("failed to mirror node %s: %w", node.ID, err)
			}
		}

		for _, edge := range snap.Edges {
			_, err = session.Run(ctx, `
				MATCH (s:SalesNode {id: $source}), (t:SalesNode {id: $target})
				CREATE (s)-[:RELATES {id: $id, type: $type, weight: $weight, confidence: $confidence}]->(t)
			`, map[string]interface{}{
				"id":         edge.ID,
				"source":     edge.Source,
				"target":     edge.Target,
				"type":       edge.Type,
				"weight":     edge.Weight,
				"confidence": edge.Confidence,
			})
			if err != nil {
				return fmt.Errorf("failed to mirror edge %s: %w", edge.ID, err)
			}
		}

		logger.Debug("graph mirrored to neo4j",
			zap.Int("nodes", len(snap.Nodes)),
			zap.Int("edges", len(snap.Edges)),
		)
		return nil
	})
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}
