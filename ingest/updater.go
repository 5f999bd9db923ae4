package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/ratehub/source"
	"github.com/sig-0/ratehub/storage"
	"github.com/sig-0/ratehub/storage/types"
)

// MultiSourceLabel marks snapshots merged from more than one source
const MultiSourceLabel = "Multiple Sources"

var (
	errInvalidSource   = errors.New("invalid source")
	errDuplicateSource = errors.New("source already registered")
)

// Updater coordinates one update cycle: it invokes the requested sources,
// isolates per-source failures, merges the results and persists the merged
// snapshot along with the per-source history
type Updater struct {
	store  storage.Store
	logger *slog.Logger

	sources map[string]source.Source
	order   []string

	ttl time.Duration
	now func() time.Time
}

// NewUpdater creates a new updater on top of the given store.
// ttl is the cache freshness window
func NewUpdater(store storage.Store, ttl time.Duration, opts ...UpdaterOption) *Updater {
	u := &Updater{
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		sources: make(map[string]source.Source),
		ttl:     ttl,
		now:     time.Now,
	}

	// Apply the options
	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Register registers a new source with the updater
func (u *Updater) Register(s source.Source) error {
	if s == nil || s.Name() == "" {
		return errInvalidSource
	}

	if _, ok := u.sources[s.Name()]; ok {
		return errDuplicateSource
	}

	u.sources[s.Name()] = s
	u.order = append(u.order, s.Name())

	u.logger.Info(
		"registered new source",
		"name", s.Name(),
	)

	return nil
}

// SourceNames lists the registered source names, in registration order
func (u *Updater) SourceNames() []string {
	out := make([]string, len(u.order))
	copy(out, u.order)

	return out
}

// Run executes one update cycle over the named sources, defaulting to all
// registered sources. Per-source failures are absorbed and recorded as a
// zero count; partial success is the normal case. Only a failed durable
// write surfaces as an error.
// Returns the per-source fetched-rate counts
func (u *Updater) Run(ctx context.Context, names ...string) (map[string]int, error) {
	if len(names) == 0 {
		names = u.order
	}

	cycleID := xid.New().String()

	u.logger.Info(
		"starting rates update",
		"cycle", cycleID,
		"sources", names,
	)

	var (
		results = make(map[string]int, len(names))
		merged  = make(map[string]float64)

		label = MultiSourceLabel
	)

	if len(names) == 1 {
		if s, ok := u.sources[names[0]]; ok {
			label = s.Label()
		}
	}

	for _, name := range names {
		s, ok := u.sources[name]
		if !ok {
			u.logger.Warn(
				"unknown source, skipping",
				"cycle", cycleID,
				"name", name,
			)

			continue
		}

		rates, err := s.Fetch(ctx)
		if err != nil {
			u.logger.Error(
				"unable to fetch rates",
				"cycle", cycleID,
				"name", name,
				"err", err,
			)

			results[name] = 0

			continue
		}

		results[name] = len(rates)

		// Later sources overwrite earlier ones for the same pair key
		for key, rate := range rates {
			merged[key] = rate
		}

		if err := u.store.AppendHistory(ctx, rates, s.Label(), cycleID); err != nil {
			return results, fmt.Errorf("unable to record history: %w", err)
		}

		u.logger.Info(
			"fetched rates",
			"cycle", cycleID,
			"name", name,
			"count", len(rates),
		)
	}

	if len(merged) == 0 {
		u.logger.Warn(
			"no rates were updated from any source",
			"cycle", cycleID,
		)

		return results, nil
	}

	if err := u.store.SaveSnapshot(ctx, merged, label); err != nil {
		return results, fmt.Errorf("unable to save snapshot: %w", err)
	}

	u.logger.Info(
		"update completed",
		"cycle", cycleID,
		"total", len(merged),
		"source", label,
	)

	return results, nil
}

// Summary reads the current snapshot state
func (u *Updater) Summary(ctx context.Context) (*types.Summary, error) {
	snapshot, err := u.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load snapshot: %w", err)
	}

	seen := make(map[string]struct{})

	for _, pair := range snapshot.Pairs {
		seen[pair.Source] = struct{}{}
	}

	sources := make([]string, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}

	sort.Strings(sources)

	return &types.Summary{
		LastRefresh: snapshot.LastRefresh,
		TotalPairs:  len(snapshot.Pairs),
		Sources:     sources,
	}, nil
}

// CheckFreshness compares the snapshot age against the configured TTL.
// A snapshot with no refresh timestamp is always stale
func (u *Updater) CheckFreshness(ctx context.Context) (bool, string) {
	snapshot, err := u.store.LoadSnapshot(ctx)
	if err != nil {
		return false, fmt.Sprintf("unable to read cache: %s", err)
	}

	if snapshot.LastRefresh == nil {
		return false, "no cached data"
	}

	age := u.now().UTC().Sub(snapshot.LastRefresh.UTC())

	if age > u.ttl {
		return false, fmt.Sprintf(
			"rates are stale (updated %dm ago, TTL %ds)",
			int(age.Minutes()),
			int(u.ttl.Seconds()),
		)
	}

	return true, fmt.Sprintf(
		"rates are fresh (updated %ds ago, TTL %ds)",
		int(age.Seconds()),
		int(u.ttl.Seconds()),
	)
}
