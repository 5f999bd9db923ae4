package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/ratehub/storage"
)

// newTestStore creates a file store backed by a temporary directory,
// with a fixed time source
func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()

	dir := t.TempDir()

	s, err := NewStore(
		filepath.Join(dir, "rates.json"),
		filepath.Join(dir, "exchange_rates.json"),
		WithTimeSource(func() time.Time {
			return now
		}),
	)
	require.NoError(t, err)

	return s
}

func TestStore_New(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Parent directories are created on demand
	_, err := NewStore(
		filepath.Join(dir, "nested", "data", "rates.json"),
		filepath.Join(dir, "nested", "data", "exchange_rates.json"),
	)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "nested", "data"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_Snapshot(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t, time.Now())

		snapshot, err := s.LoadSnapshot(context.Background())
		require.NoError(t, err)

		assert.Empty(t, snapshot.Pairs)
		assert.Nil(t, snapshot.LastRefresh)
	})

	t.Run("corrupt file", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t, time.Now())

		require.NoError(t, os.WriteFile(s.snapshotPath, []byte("{not json"), 0o644))

		snapshot, err := s.LoadSnapshot(context.Background())
		require.NoError(t, err)

		assert.Empty(t, snapshot.Pairs)
	})

	t.Run("save and load round trip", func(t *testing.T) {
		t.Parallel()

		var (
			now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
			s   = newTestStore(t, now)
			ctx = context.Background()

			rates = map[string]float64{
				"BTC_USD": 59337.21,
				"EUR_USD": 1.0823,
			}
		)

		require.NoError(t, s.SaveSnapshot(ctx, rates, "CoinGecko"))

		snapshot, err := s.LoadSnapshot(ctx)
		require.NoError(t, err)

		require.Len(t, snapshot.Pairs, 2)

		pair := snapshot.Pairs["BTC_USD"]
		assert.InDelta(t, 59337.21, pair.Rate, 0.0001)
		assert.Equal(t, "CoinGecko", pair.Source)
		assert.True(t, pair.UpdatedAt.Equal(now))

		require.NotNil(t, snapshot.LastRefresh)
		assert.True(t, snapshot.LastRefresh.Equal(now))
	})

	t.Run("save replaces previous pairs", func(t *testing.T) {
		t.Parallel()

		var (
			s   = newTestStore(t, time.Now())
			ctx = context.Background()
		)

		require.NoError(t, s.SaveSnapshot(ctx, map[string]float64{"BTC_USD": 60000}, "CoinGecko"))
		require.NoError(t, s.SaveSnapshot(ctx, map[string]float64{"EUR_USD": 1.08}, "ExchangeRate-API"))

		snapshot, err := s.LoadSnapshot(ctx)
		require.NoError(t, err)

		// The snapshot is a full replacement, not a merge
		require.Len(t, snapshot.Pairs, 1)
		assert.Contains(t, snapshot.Pairs, "EUR_USD")
	})

	t.Run("unwritable target", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t, time.Now())

		// Make the snapshot path a directory so the rename fails
		require.NoError(t, os.MkdirAll(s.snapshotPath, 0o755))

		err := s.SaveSnapshot(context.Background(), map[string]float64{"BTC_USD": 1}, "CoinGecko")
		assert.ErrorIs(t, err, storage.ErrPersistence)
	})
}

func TestStore_GetPair(t *testing.T) {
	t.Parallel()

	var (
		s   = newTestStore(t, time.Now())
		ctx = context.Background()
	)

	require.NoError(t, s.SaveSnapshot(ctx, map[string]float64{"BTC_USD": 60000}, "CoinGecko"))

	t.Run("present pair", func(t *testing.T) {
		t.Parallel()

		pair, err := s.GetPair(ctx, "BTC_USD")
		require.NoError(t, err)

		require.NotNil(t, pair)
		assert.InDelta(t, 60000, pair.Rate, 0.0001)
	})

	t.Run("absent pair", func(t *testing.T) {
		t.Parallel()

		pair, err := s.GetPair(ctx, "XRP_USD")
		require.NoError(t, err)

		assert.Nil(t, pair)
	})
}

func TestStore_History(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t, time.Now())

		history, err := s.LoadHistory(context.Background())
		require.NoError(t, err)

		assert.Empty(t, history)
	})

	t.Run("append and load", func(t *testing.T) {
		t.Parallel()

		var (
			now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
			s   = newTestStore(t, now)
			ctx = context.Background()
		)

		require.NoError(t, s.AppendHistory(
			ctx,
			map[string]float64{
				"BTC_USD": 60000,
				"ETH_USD": 2400,
			},
			"CoinGecko",
			"cycle-1",
		))

		history, err := s.LoadHistory(ctx)
		require.NoError(t, err)

		require.Len(t, history, 2)

		// Entries are ordered by id within a cycle
		entry := history[0]
		assert.Equal(t, "BTC", entry.FromCurrency)
		assert.Equal(t, "USD", entry.ToCurrency)
		assert.Equal(t, "CoinGecko", entry.Source)
		assert.True(t, entry.Timestamp.Equal(now))
		assert.Equal(t, "cycle-1", entry.Meta["cycle"])
	})

	t.Run("malformed keys skipped", func(t *testing.T) {
		t.Parallel()

		var (
			s   = newTestStore(t, time.Now())
			ctx = context.Background()
		)

		require.NoError(t, s.AppendHistory(
			ctx,
			map[string]float64{
				"BTC_USD":   60000,
				"malformed": 1,
			},
			"CoinGecko",
			"cycle-1",
		))

		history, err := s.LoadHistory(ctx)
		require.NoError(t, err)

		require.Len(t, history, 1)
		assert.Equal(t, "BTC", history[0].FromCurrency)
	})

	t.Run("cap evicts oldest", func(t *testing.T) {
		t.Parallel()

		var (
			now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
			s   = newTestStore(t, now)
			ctx = context.Background()
		)

		// Overflow the cap with batches of distinct pairs
		batch := make(map[string]float64, 100)
		for i := 0; i < 100; i++ {
			batch[fmt.Sprintf("C%02d_USD", i)] = float64(i)
		}

		for i := 0; i < storage.HistoryCap/len(batch)+1; i++ {
			i := i
			s.now = func() time.Time {
				return now.Add(time.Duration(i) * time.Minute)
			}

			require.NoError(t, s.AppendHistory(ctx, batch, "CoinGecko", "cycle"))
		}

		history, err := s.LoadHistory(ctx)
		require.NoError(t, err)

		require.Len(t, history, storage.HistoryCap)

		// The first batch was evicted, the newest retained
		assert.True(t, history[0].Timestamp.After(now))
		assert.True(
			t,
			history[len(history)-1].Timestamp.Equal(
				now.Add(time.Duration(storage.HistoryCap/len(batch))*time.Minute),
			),
		)
	})
}

func TestStore_HistoryForPair(t *testing.T) {
	t.Parallel()

	var (
		now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
		s   = newTestStore(t, now)
		ctx = context.Background()
	)

	for i := 0; i < 5; i++ {
		i := i
		s.now = func() time.Time {
			return now.Add(time.Duration(i) * time.Minute)
		}

		require.NoError(t, s.AppendHistory(
			ctx,
			map[string]float64{
				"BTC_USD": float64(60000 + i),
				"ETH_USD": float64(2400 + i),
			},
			"CoinGecko",
			"cycle",
		))
	}

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		entries, err := s.HistoryForPair(ctx, "BTC_USD", 0)
		require.NoError(t, err)

		require.Len(t, entries, 5)

		for _, entry := range entries {
			assert.Equal(t, "BTC_USD", entry.PairKey())
		}

		assert.InDelta(t, 60004, entries[0].Rate, 0.0001)
		assert.InDelta(t, 60000, entries[4].Rate, 0.0001)
	})

	t.Run("limit applied", func(t *testing.T) {
		t.Parallel()

		entries, err := s.HistoryForPair(ctx, "BTC_USD", 2)
		require.NoError(t, err)

		require.Len(t, entries, 2)
		assert.InDelta(t, 60004, entries[0].Rate, 0.0001)
	})

	t.Run("unknown pair", func(t *testing.T) {
		t.Parallel()

		entries, err := s.HistoryForPair(ctx, "XRP_USD", 0)
		require.NoError(t, err)

		assert.Empty(t, entries)
	})
}
