package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sig-0/ratehub/storage"
	"github.com/sig-0/ratehub/storage/types"
)

// Store is the flat-file store adapter. The snapshot and the history each
// live in a single JSON file, replaced atomically on every write so a
// concurrent reader observes either the previous or the new complete file
type Store struct {
	snapshotPath string
	historyPath  string

	now func() time.Time
}

// Option configures the file store
type Option func(s *Store)

// WithTimeSource specifies the time source used for refresh stamps.
// Defaults to time.Now
func WithTimeSource(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new file store, making sure the parent directories
// of both backing files exist
func NewStore(snapshotPath, historyPath string, opts ...Option) (*Store, error) {
	s := &Store{
		snapshotPath: snapshotPath,
		historyPath:  historyPath,
		now:          time.Now,
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	for _, path := range []string{snapshotPath, historyPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create data directory: %w", err)
		}
	}

	return s, nil
}

// LoadSnapshot loads the current snapshot from disk.
// A missing or corrupt snapshot file yields an empty snapshot
func (s *Store) LoadSnapshot(_ context.Context) (*types.Snapshot, error) {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return types.EmptySnapshot(), nil
	}

	var snapshot types.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return types.EmptySnapshot(), nil
	}

	if snapshot.Pairs == nil {
		snapshot.Pairs = make(map[string]types.RatePair)
	}

	return &snapshot, nil
}

// SaveSnapshot replaces the snapshot with the given rates, stamping every
// pair with the same refresh timestamp
func (s *Store) SaveSnapshot(
	_ context.Context,
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

	snapshot := &types.Snapshot{
		Pairs:       pairs,
		LastRefresh: &refresh,
	}

	if err := atomicWriteJSON(s.snapshotPath, snapshot); err != nil {
		return fmt.Errorf("unable to save snapshot: %w", errors.Join(storage.ErrPersistence, err))
	}

	return nil
}

// AppendHistory creates one history entry per rate and rewrites the capped
// history file atomically
func (s *Store) AppendHistory(
	ctx context.Context,
	rates map[string]float64,
	source, cycleID string,
) error {
	timestamp := s.now().UTC()

	entries := make([]types.HistoryEntry, 0, len(rates))

	for key, rate := range rates {
		from, to, err := types.SplitPairKey(key)
		if err != nil {
			continue // malformed keys are not recorded
		}

		entries = append(entries, types.HistoryEntry{
			ID:           entryID(key, timestamp),
			FromCurrency: from,
			ToCurrency:   to,
			Rate:         rate,
			Timestamp:    timestamp,
			Source:       source,
			Meta: map[string]string{
				"cycle":      cycleID,
				"source_api": source,
			},
		})
	}

	if len(entries) == 0 {
		return nil
	}

	// Keep the on-disk entry order deterministic
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})

	history, err := s.LoadHistory(ctx)
	if err != nil {
		return err
	}

	history = append(history, entries...)

	// The history is a capped log, oldest entries are evicted first
	if len(history) > storage.HistoryCap {
		history = history[len(history)-storage.HistoryCap:]
	}

	if err := atomicWriteJSON(s.historyPath, history); err != nil {
		return fmt.Errorf("unable to save history: %w", errors.Join(storage.ErrPersistence, err))
	}

	return nil
}

// LoadHistory loads all retained history entries.
// A missing or corrupt history file yields an empty history
func (s *Store) LoadHistory(_ context.Context) ([]types.HistoryEntry, error) {
	data, err := os.ReadFile(s.historyPath)
	if err != nil {
		return []types.HistoryEntry{}, nil
	}

	var history []types.HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return []types.HistoryEntry{}, nil
	}

	return history, nil
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
	history, err := s.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]types.HistoryEntry, 0, limit)

	for _, entry := range history {
		if entry.PairKey() == key {
			filtered = append(filtered, entry)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return filtered, nil
}

// entryID derives the synthetic history entry id from the pair key
// and the observation timestamp
func entryID(key string, timestamp time.Time) string {
	stamp := timestamp.Format(time.RFC3339Nano)
	stamp = strings.ReplaceAll(stamp, ":", "-")
	stamp = strings.ReplaceAll(stamp, ".", "-")

	return key + "_" + stamp
}

// atomicWriteJSON serializes v to a temporary file in the target's
// directory, then atomically replaces the target
func atomicWriteJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}

	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("unable to encode data: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("unable to flush temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("unable to replace %s: %w", path, err)
	}

	return nil
}
