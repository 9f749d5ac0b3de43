// internal/store/store.go
package store

import "context"

// Kind identifies a top-level collection in the store.
type Kind string

const (
	// KindCoins holds in-flight CoinRecords keyed by mint.
	KindCoins Kind = "coins"
	// KindPositions holds simulated positions keyed by mint.
	KindPositions Kind = "account_performance"
	// KindSimulation holds the singleton ledger under SimulationID.
	KindSimulation Kind = "simulation"
	// KindFailCounts holds diagnostic counters keyed by criterion name.
	KindFailCounts Kind = "criteria_fail_counts"
)

// SimulationID is the key of the singleton ledger record.
const SimulationID = "ledger"

// Store is durable keyed state with last-write-wins semantics.
// There are no transactions across keys; callers that need
// read-modify-write atomicity serialize access themselves.
type Store interface {
	// Load reads the value for (kind, id) into out.
	// Returns false if the key does not exist.
	Load(ctx context.Context, kind Kind, id string, out any) (bool, error)

	// Save writes the value for (kind, id), replacing any previous value.
	Save(ctx context.Context, kind Kind, id string, value any) error

	// Remove deletes (kind, id). Removing a missing key is a no-op.
	Remove(ctx context.Context, kind Kind, id string) error

	// List returns the ids present under kind.
	List(ctx context.Context, kind Kind) ([]string, error)
}
