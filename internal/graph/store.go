package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store owns the authoritative node and edge sets for one graph instance.
// Iteration order is insertion order, which keeps snapshots and "first
// matching edge" lookups deterministic within a run. The store itself is not
// safe for concurrent use; callers serialize access (see kg/service).
type Store struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string

	// dedupIndex maps kind+normalized key to node id so find-or-create stays
	// O(1) while preserving linear-scan semantics (first inserted node wins).
	dedupIndex map[string]string
}

func NewStore() *Store {
	return &Store{
		nodes:      make(map[string]*Node),
		edges:      make(map[string]*Edge),
		dedupIndex: make(map[string]string),
	}
}

// normalize is the dedup key form: trimmed, lowercased.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func dedupKey(kind NodeKind, value string) string {
	return string(kind) + "\x00" + normalize(value)
}

// AddNode inserts node unless its id is already present, in which case the
// stored node is returned unchanged.
func (s *Store) AddNode(node *Node) *Node {
	if existing, ok := s.nodes[node.ID]; ok {
		return existing
	}

	if node.Metadata == nil {
		node.Metadata = make(map[string]any)
	}

	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)
	s.indexNode(node)
	return node
}

func (s *Store) indexNode(node *Node) {
	var key string
	switch node.Kind {
	case KindQuestion, KindAnswer:
		key = dedupKey(node.Kind, node.Text)
	case KindTopic, KindAction:
		key = dedupKey(node.Kind, node.Label)
	default:
		return
	}

	if _, taken := s.dedupIndex[key]; !taken {
		s.dedupIndex[key] = node.ID
	}
}

// AddEdge inserts edge unless its id is already present. Idempotence is by id
// only; callers that need one edge per (source, target, type) triple check
// with FindEdge first.
func (s *Store) AddEdge(edge *Edge) *Edge {
	if existing, ok := s.edges[edge.ID]; ok {
		return existing
	}

	if edge.Metadata == nil {
		edge.Metadata = make(map[string]any)
	}

	s.edges[edge.ID] = edge
	s.edgeOrder = append(s.edgeOrder, edge.ID)
	return edge
}

func (s *Store) GetNode(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

func (s *Store) GetEdge(id string) (*Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

// Nodes returns all nodes in insertion order.
func (s *Store) Nodes() []*Node {
	out := make([]*Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (s *Store) Edges() []*Edge {
	out := make([]*Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		out = append(out, s.edges[id])
	}
	return out
}

func (s *Store) NodesByKind(kind NodeKind) []*Node {
	var out []*Node
	for _, id := range s.nodeOrder {
		if n := s.nodes[id]; n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// FindEdge returns the first edge matching the (source, target, type) triple.
func (s *Store) FindEdge(source, target, edgeType string) (*Edge, bool) {
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		if e.Source == source && e.Target == target && e.Type == edgeType {
			return e, true
		}
	}
	return nil, false
}

func (s *Store) NodeCount() int { return len(s.nodes) }
func (s *Store) EdgeCount() int { return len(s.edges) }

// FindOrCreateQuestion dedups on normalized text. Repeated calls with
// equivalent text always return the same node.
func (s *Store) FindOrCreateQuestion(text, intentID string) *Node {
	return s.findOrCreateByText(KindQuestion, text, intentID)
}

// FindOrCreateAnswer dedups on normalized text.
func (s *Store) FindOrCreateAnswer(text, intentID string) *Node {
	return s.findOrCreateByText(KindAnswer, text, intentID)
}

func (s *Store) findOrCreateByText(kind NodeKind, text, intentID string) *Node {
	if id, ok := s.dedupIndex[dedupKey(kind, text)]; ok {
		return s.nodes[id]
	}

	return s.AddNode(&Node{
		ID:       uuid.New().String(),
		Kind:     kind,
		Label:    truncateLabel(text),
		Text:     text,
		IntentID: intentID,
		Metadata: map[string]any{"created_at": nowSeconds()},
	})
}

// FindOrCreateTopic dedups on normalized label.
func (s *Store) FindOrCreateTopic(label, intentID string) *Node {
	if id, ok := s.dedupIndex[dedupKey(KindTopic, label)]; ok {
		return s.nodes[id]
	}

	return s.AddNode(&Node{
		ID:       uuid.New().String(),
		Kind:     KindTopic,
		Label:    truncateLabel(label),
		Text:     label,
		IntentID: intentID,
		Metadata: map[string]any{"created_at": nowSeconds()},
	})
}

// FindOrCreateAction dedups on normalized label. The description becomes the
// node text when present.
func (s *Store) FindOrCreateAction(label, description, intentID string) *Node {
	if id, ok := s.dedupIndex[dedupKey(KindAction, label)]; ok {
		return s.nodes[id]
	}

	text := description
	if text == "" {
		text = label
	}

	return s.AddNode(&Node{
		ID:       uuid.New().String(),
		Kind:     KindAction,
		Label:    truncateLabel(label),
		Text:     text,
		IntentID: intentID,
		Metadata: map[string]any{"created_at": nowSeconds()},
	})
}

// UpdateAnswer corrects the answer text behind an answers edge. This is the
// only text mutation the graph permits.
func (s *Store) UpdateAnswer(edgeID, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return fmt.Errorf("empty answer text: %w", ErrInvalidInput)
	}

	edge, ok := s.edges[edgeID]
	if !ok {
		return fmt.Errorf("edge %s: %w", edgeID, ErrNotFound)
	}

	node, ok := s.nodes[edge.Target]
	if !ok {
		return fmt.Errorf("answer node %s: %w", edge.Target, ErrNotFound)
	}
	if node.Kind != KindAnswer {
		return fmt.Errorf("node %s is not an answer: %w", node.ID, ErrInvalidInput)
	}

	delete(s.dedupIndex, dedupKey(KindAnswer, node.Text))
	node.Text = newText
	node.Label = truncateLabel(newText)
	s.indexNode(node)
	return nil
}

// Reset discards every node and edge, then runs seed (when non-nil) to
// recreate default nodes. This is the graph's only destructive operation.
func (s *Store) Reset(seed func(*Store)) {
	s.nodes = make(map[string]*Node)
	s.nodeOrder = nil
	s.edges = make(map[string]*Edge)
	s.edgeOrder = nil
	s.dedupIndex = make(map[string]string)

	if seed != nil {
		seed(s)
	}
}

// nowSeconds matches the snapshot wire format for timestamps: JSON numbers
// round-trip as float64, so creation times are stored that way up front.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
