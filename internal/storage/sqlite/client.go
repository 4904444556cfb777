package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/internal/graph"
	"github.com/sales-agent/backend/internal/storage/models"
	"github.com/sales-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS graph_nodes (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		text TEXT,
		intent_id TEXT,
		metadata TEXT,
		stats TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_kind ON graph_nodes(kind);

	CREATE TABLE IF NOT EXISTS graph_edges (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		type TEXT NOT NULL,
		weight REAL,
		confidence REAL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON graph_edges(source);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON graph_edges(target);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON session_messages(session_id);

	CREATE TABLE IF NOT EXISTS feedback_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		edge_id TEXT NOT NULL,
		value INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_edge ON feedback_log(edge_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

// SaveSnapshot replaces the persisted graph with the given snapshot. Row
// positions preserve insertion order so a reload round-trips exactly.
func (c *Client) SaveSnapshot(snap *graph.Snapshot) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM graph_nodes"); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM graph_edges"); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}

	for i, node := range snap.Nodes {
		metadata, err := json.Marshal(node.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode node metadata: %w", err)
		}
		stats, err := json.Marshal(node.Stats)
		if err != nil {
			return fmt.Errorf("failed to encode node stats: %w", err)
		}

		_, err = tx.Exec(
			`INSERT INTO graph_nodes (id, position, kind, label, text, intent_id, metadata, stats)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			node.ID, i, string(node.Kind), node.Label, node.Text, node.IntentID,
			string(metadata), string(stats),
		)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	for i, edge := range snap.Edges {
		metadata, err := json.Marshal(edge.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode edge metadata: %w", err)
		}

		_, err = tx.Exec(
			`INSERT INTO graph_edges (id, position, source, target, type, weight, confidence, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			edge.ID, i, edge.Source, edge.Target, edge.Type, edge.Weight, edge.Confidence,
			string(metadata),
		)
		if err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", edge.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	logger.Debug("graph snapshot saved",
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)),
	)
	return nil
}

// LoadSnapshot reads the persisted graph in insertion order. It returns
// (nil, nil) when nothing has been saved yet.
func (c *Client) LoadSnapshot() (*graph.Snapshot, error) {
	snap := &graph.Snapshot{Nodes: []graph.Node{}, Edges: []graph.Edge{}}

	rows, err := c.db.Query(
		`SELECT id, kind, label, text, intent_id, metadata, stats
		 FROM graph_nodes ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var node graph.Node
		var kind, metadata, stats string
		if err := rows.Scan(&node.ID, &kind, &node.Label, &node.Text, &node.IntentID, &metadata, &stats); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node.Kind = graph.NodeKind(kind)
		if err := json.Unmarshal([]byte(metadata), &node.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode node metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &node.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode node stats: %w", err)
		}
		snap.Nodes = append(snap.Nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	edgeRows, err := c.db.Query(
		`SELECT id, source, target, type, weight, confidence, metadata
		 FROM graph_edges ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge graph.Edge
		var metadata string
		if err := edgeRows.Scan(&edge.ID, &edge.Source, &edge.Target, &edge.Type, &edge.Weight, &edge.Confidence, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &edge.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode edge metadata: %w", err)
		}
		snap.Edges = append(snap.Edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}

	if len(snap.Nodes) == 0 && len(snap.Edges) == 0 {
		return nil, nil
	}
	return snap, nil
}

// AppendSessionMessage records one conversation turn, creating the session
// row on first use.
func (c *Client) AppendSessionMessage(sessionID, role, text string) error {
	now := time.Now().Unix()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO session_messages (session_id, role, text, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, text, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return tx.Commit()
}

func (c *Client) GetSessionMessages(sessionID string) ([]models.SessionMessage, error) {
	rows, err := c.db.Query(
		`SELECT id, session_id, role, text, created_at
		 FROM session_messages WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.SessionMessage{}
	for rows.Next() {
		var m models.SessionMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (c *Client) ListSessions() ([]models.Session, error) {
	rows, err := c.db.Query(
		`SELECT s.id, s.created_at, s.updated_at, COUNT(m.id)
		 FROM sessions s
		 LEFT JOIN session_messages m ON m.session_id = s.id
		 GROUP BY s.id ORDER BY s.created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var s models.Session
		var createdAt, updatedAt int64
		if err := rows.Scan(&s.ID, &createdAt, &updatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0)
		s.UpdatedAt = time.Unix(updatedAt, 0)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ClearSessions drops every session and its messages. Used on graph reset.
func (c *Client) ClearSessions() error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM session_messages"); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return tx.Commit()
}

func (c *Client) LogFeedback(edgeID string, value int) error {
	_, err := c.db.Exec(
		`INSERT INTO feedback_log (edge_id, value, created_at) VALUES (?, ?, ?)`,
		edgeID, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	return nil
}

func (c *Client) GetFeedbackLog(edgeID string) ([]models.FeedbackRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, edge_id, value, created_at FROM feedback_log WHERE edge_id = ? ORDER BY id`,
		edgeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback log: %w", err)
	}
	defer rows.Close()

	records := []models.FeedbackRecord{}
	for rows.Next() {
		var r models.FeedbackRecord
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.EdgeID, &r.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback record: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
