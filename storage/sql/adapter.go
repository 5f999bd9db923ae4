package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sig-0/ratehub/storage"
	"github.com/sig-0/ratehub/storage/types"
)

// Store is the Postgres-backed store adapter. The snapshot lives in a
// single-row table replaced transactionally per refresh, so readers observe
// either the previous or the new complete snapshot
type Store struct {
	pool *pgxpool.Pool

	now func() time.Time
}

// Option configures the SQL store
type Option func(s *Store)

// WithTimeSource specifies the time source used for refresh stamps.
// Defaults to time.Now
func WithTimeSource(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new SQL store on top of the given connection pool
func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool: pool,
		now:  time.Now,
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// LoadSnapshot loads the current snapshot.
// An absent snapshot row yields an empty snapshot
func (s *Store) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	row := s.pool.QueryRow(
		ctx,
		`SELECT pairs, last_refresh FROM rate_snapshot WHERE id = 1`,
	)

	var (
		rawPairs    []byte
		lastRefresh *time.Time
	)

	if err := row.Scan(&rawPairs, &lastRefresh); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.EmptySnapshot(), nil
		}

		return nil, fmt.Errorf("unable to load snapshot: %w", err)
	}

	pairs := make(map[string]types.RatePair)
	if err := json.Unmarshal(rawPairs, &pairs); err != nil {
		return types.EmptySnapshot(), nil
	}

	return &types.Snapshot{
		Pairs:       pairs,
		LastRefresh: lastRefresh,
	}, nil
}

// SaveSnapshot replaces the snapshot row with the given rates
func (s *Store) SaveSnapshot(
	ctx context.Context,
	rates map[string]float64,
	source string,
) error {
	refresh := s.now().UTC()

	pairs := make(map[string]types.RatePair, len(rates))
	for key, rate := range rates {
		pairs[key] = types.RatePair{
			Rate:      rate,
			UpdatedAt: refresh,
			Source:    source,
		}
	}

	rawPairs, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("unable to encode snapshot: %w", errors.Join(storage.ErrPersistence, err))
	}

	_, err = s.pool.Exec(
		ctx,
		`INSERT INTO rate_snapshot (id, pairs, last_refresh)
		 VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET
		 	pairs = EXCLUDED.pairs,
		 	last_refresh = EXCLUDED.last_refresh`,
		rawPairs,
		refresh,
	)
	if err != nil {
		return fmt.Errorf("unable to save snapshot: %w", errors.Join(storage.ErrPersistence, err))
	}

	return nil
}

// AppendHistory inserts one observation per rate and trims the history to
// the retention cap, oldest entries first
func (s *Store) AppendHistory(
	ctx context.Context,
	rates map[string]float64,
	source, cycleID string,
) error {
	if len(rates) == 0 {
		return nil
	}

	timestamp := s.now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("unable to begin history append: %w", errors.Join(storage.ErrPersistence, err))
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for key, rate := range rates {
		from, to, splitErr := types.SplitPairKey(key)
		if splitErr != nil {
			continue // malformed keys are not recorded
		}

		meta := map[string]string{
			"cycle":      cycleID,
			"source_api": source,
		}

		rawMeta, metaErr := json.Marshal(meta)
		if metaErr != nil {
			return fmt.Errorf("unable to encode meta: %w", errors.Join(storage.ErrPersistence, metaErr))
		}

		_, err = tx.Exec(
			ctx,
			`INSERT INTO history_entries
				(id, from_currency, to_currency, rate, observed_at, source, meta)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entryID(key, timestamp),
			from,
			to,
			rate,
			timestamp,
			source,
			rawMeta,
		)
		if err != nil {
			return fmt.Errorf("unable to append history: %w", errors.Join(storage.ErrPersistence, err))
		}
	}

	// Evict everything past the newest HistoryCap entries
	_, err = tx.Exec(
		ctx,
		`DELETE FROM history_entries
		 WHERE seq NOT IN (
		 	SELECT seq FROM history_entries
		 	ORDER BY seq DESC
		 	LIMIT $1
		 )`,
		storage.HistoryCap,
	)
	if err != nil {
		return fmt.Errorf("unable to trim history: %w", errors.Join(storage.ErrPersistence, err))
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("unable to commit history append: %w", errors.Join(storage.ErrPersistence, err))
	}

	return nil
}

// LoadHistory loads all retained history entries, oldest first
func (s *Store) LoadHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT id, from_currency, to_currency, rate, observed_at, source, meta
		 FROM history_entries
		 ORDER BY seq ASC`,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []types.HistoryEntry{}, nil
		}

		return nil, fmt.Errorf("unable to load history: %w", err)
	}

	defer rows.Close()

	return scanEntries(rows)
}

// GetPair fetches one pair from the snapshot, or nil if absent
func (s *Store) GetPair(ctx context.Context, key string) (*types.RatePair, error) {
	snapshot, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	pair, ok := snapshot.Pairs[key]
	if !ok {
		return nil, nil //nolint:nilnil // valid case
	}

	return &pair, nil
}

// HistoryForPair lists retained observations for the pair, newest first
func (s *Store) HistoryForPair(
	ctx context.Context,
	key string,
	limit int,
) ([]types.HistoryEntry, error) {
	from, to, err := types.SplitPairKey(key)
	if err != nil {
		return nil, err
	}

	// A non-positive limit means no truncation
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT id, from_currency, to_currency, rate, observed_at, source, meta
		 FROM history_entries
		 WHERE from_currency = $1 AND to_currency = $2
		 ORDER BY observed_at DESC
		 LIMIT $3`,
		from,
		to,
		limitArg,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("unable to load pair history: %w", err)
	}

	defer rows.Close()

	return scanEntries(rows)
}

// scanEntries collects history entries from the given row set
func scanEntries(rows pgx.Rows) ([]types.HistoryEntry, error) {
	out := make([]types.HistoryEntry, 0)

	for rows.Next() {
		var (
			entry   types.HistoryEntry
			rawMeta []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.FromCurrency,
			&entry.ToCurrency,
			&entry.Rate,
			&entry.Timestamp,
			&entry.Source,
			&rawMeta,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to scan history entry: %w", err)
		}

		if len(rawMeta) > 0 {
			_ = json.Unmarshal(rawMeta, &entry.Meta) //nolint:errcheck // meta is advisory
		}

		out = append(out, entry)
	}

	return out, rows.Err()
}

// entryID derives the synthetic history entry id from the pair key
// and the observation timestamp
func entryID(key string, timestamp time.Time) string {
	stamp := timestamp.Format(time.RFC3339Nano)
	stamp = strings.ReplaceAll(stamp, ":", "-")
	stamp = strings.ReplaceAll(stamp, ".", "-")

	return key + "_" + stamp
}
