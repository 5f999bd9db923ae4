package storage

import (
	"context"

	"github.com/sig-0/ratehub/storage/types"
)

// HistoryCap is the maximum number of retained history entries.
// Once exceeded, the oldest entries are evicted first
const HistoryCap = 1000

// Store is an abstraction over the durable rate snapshot and
// the bounded observation history
type Store interface {
	// LoadSnapshot loads the current rate snapshot.
	// A missing or unreadable snapshot yields an empty one, not an error
	LoadSnapshot(context.Context) (*types.Snapshot, error)

	// SaveSnapshot replaces the snapshot with the given rates, stamping
	// every pair (and the snapshot itself) with one refresh timestamp
	SaveSnapshot(ctx context.Context, rates map[string]float64, source string) error

	// AppendHistory appends one observation per rate to the history,
	// evicting the oldest entries beyond HistoryCap
	AppendHistory(ctx context.Context, rates map[string]float64, source, cycleID string) error

	// LoadHistory loads all retained history entries, oldest first
	LoadHistory(context.Context) ([]types.HistoryEntry, error)

	// GetPair fetches one pair from the snapshot, or nil if absent
	GetPair(ctx context.Context, key string) (*types.RatePair, error)

	// HistoryForPair lists retained observations for the pair,
	// newest first, capped at limit
	HistoryForPair(ctx context.Context, key string, limit int) ([]types.HistoryEntry, error)
}
