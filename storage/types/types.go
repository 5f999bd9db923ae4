package types

import (
	"fmt"
	"strings"
	"time"
)

// PairSeparator joins the two currency codes of a pair key, e.g. "BTC_USD"
const PairSeparator = "_"

// PairKey builds the canonical pair key for the given currency codes
func PairKey(from, to string) string {
	return strings.ToUpper(from) + PairSeparator + strings.ToUpper(to)
}

// SplitPairKey splits a pair key into its from / to currency codes
func SplitPairKey(key string) (string, string, error) {
	parts := strings.Split(key, PairSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pair key %q", key)
	}

	return parts[0], parts[1], nil
}

// RatePair is the latest known rate for a single currency pair
type RatePair struct {
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`
	Rate      float64   `json:"rate"`
}

// Snapshot is the single current best-known rate per pair, fully replaced
// on each successful update cycle
type Snapshot struct {
	Pairs       map[string]RatePair `json:"pairs"`
	LastRefresh *time.Time          `json:"last_refresh"`
}

// EmptySnapshot returns the default structure for a missing or unreadable
// snapshot file
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Pairs: make(map[string]RatePair),
	}
}

// HistoryEntry is an immutable record of a single source observation
type HistoryEntry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Meta         map[string]string `json:"meta"`
	ID           string            `json:"id"`
	FromCurrency string            `json:"from_currency"`
	ToCurrency   string            `json:"to_currency"`
	Source       string            `json:"source"`
	Rate         float64           `json:"rate"`
}

// PairKey reconstructs the pair key of the history entry
func (e *HistoryEntry) PairKey() string {
	return PairKey(e.FromCurrency, e.ToCurrency)
}

// Summary describes the state of the current snapshot
type Summary struct {
	LastRefresh *time.Time `json:"last_refresh"`
	Sources     []string   `json:"sources_used"`
	TotalPairs  int        `json:"total_pairs"`
}
