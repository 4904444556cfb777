package models

import "time"

// Session is one customer conversation whose transcript can be mined into
// the knowledge graph.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type SessionMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackRecord is the audit log row behind an edge feedback vote.
type FeedbackRecord struct {
	ID        int64     `json:"id"`
	EdgeID    string    `json:"edge_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}
