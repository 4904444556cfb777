package graph

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the persistence wire format: two insertion-ordered collections.
// Deserializing a snapshot and re-serializing it must reproduce the same
// node/edge field values.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Snapshot copies the current state. Node and edge values are shallow copies;
// the caller must not mutate nested metadata maps.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		Nodes: make([]Node, 0, len(s.nodeOrder)),
		Edges: make([]Edge, 0, len(s.edgeOrder)),
	}

	for _, id := range s.nodeOrder {
		snap.Nodes = append(snap.Nodes, *s.nodes[id])
	}
	for _, id := range s.edgeOrder {
		snap.Edges = append(snap.Edges, *s.edges[id])
	}
	return snap
}

// FromSnapshot reconstructs a store. Missing metadata defaults to an empty
// map and stats stay zeroed; duplicate ids keep the first occurrence, same as
// AddNode/AddEdge.
func FromSnapshot(snap *Snapshot) *Store {
	s := NewStore()
	if snap == nil {
		return s
	}

	for i := range snap.Nodes {
		node := snap.Nodes[i]
		s.AddNode(&node)
	}
	for i := range snap.Edges {
		edge := snap.Edges[i]
		s.AddEdge(&edge)
	}
	return s
}

func (snap *Snapshot) MarshalBytes() ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}
