package builder

import "github.com/sales-agent/backend/internal/graph"

type seedAction struct {
	label       string
	description string
}

var coreActions = []seedAction{
	{"Take order", "Collect customer details and create a new order."},
	{"Book pickup time", "Schedule a pickup time for an existing or new order."},
	{"Update order ledger", "Record an order or update its status in the order ledger."},
}

// SeedCoreActions creates the default action nodes. Find-or-create keeps it
// idempotent across restarts and resets.
func SeedCoreActions(s *graph.Store, intentID string) {
	for _, a := range coreActions {
		s.FindOrCreateAction(a.label, a.description, intentID)
	}
}

// Seed creates the builder's core actions in the given store.
func (b *Builder) Seed(s *graph.Store) {
	SeedCoreActions(s, b.intentID)
}

// CoreActionSeeder adapts SeedCoreActions to the store's reset hook.
func CoreActionSeeder(intentID string) func(*graph.Store) {
	return func(s *graph.Store) {
		SeedCoreActions(s, intentID)
	}
}
