package source

import "context"

// Source is a single external exchange-rate provider
type Source interface {
	// Name returns the registry name of the source, e.g. "coingecko"
	Name() string

	// Label returns the human-readable label stamped into stored data
	Label() string

	// Fetch queries the provider and yields a pair-key -> rate mapping
	Fetch(context.Context) (map[string]float64, error)
}
