package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/ratehub/ingest"
	"github.com/sig-0/ratehub/query"
	"github.com/sig-0/ratehub/storage/mock"
	"github.com/sig-0/ratehub/storage/types"
)

// newTestServer creates a server over a facade backed by the given store
func newTestServer(t *testing.T, store *mock.Store) *Server {
	t.Helper()

	facade := query.NewFacade(
		store,
		ingest.NewUpdater(store, time.Second*300),
		query.NewRegistry(
			[]string{"USD", "EUR", "GBP"},
			[]string{"BTC", "ETH"},
		),
	)

	s, err := New(facade)
	require.NoError(t, err)

	return s
}

// snapshotStore creates a mock store serving the given snapshot
func snapshotStore(snapshot *types.Snapshot) *mock.Store {
	return &mock.Store{
		LoadSnapshotFn: func(_ context.Context) (*types.Snapshot, error) {
			return snapshot, nil
		},
		GetPairFn: func(_ context.Context, key string) (*types.RatePair, error) {
			pair, ok := snapshot.Pairs[key]
			if !ok {
				return nil, nil //nolint:nilnil // valid case
			}

			return &pair, nil
		},
	}
}

func testSnapshot() *types.Snapshot {
	now := time.Now().UTC()

	return &types.Snapshot{
		Pairs: map[string]types.RatePair{
			"BTC_USD": {Rate: 60000, UpdatedAt: now, Source: "CoinGecko"},
			"EUR_USD": {Rate: 1.08, UpdatedAt: now, Source: "ExchangeRate-API"},
		},
		LastRefresh: &now,
	}
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &mock.Store{})

	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Rates(t *testing.T) {
	t.Parallel()

	t.Run("full listing", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var view query.RatesView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

		assert.Equal(t, 2, view.Total)
		assert.Equal(t, "USD", view.BaseCurrency)
		assert.Equal(t, "BTC_USD", view.Rates[0].Pair)
	})

	t.Run("top filter", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates?top=1", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var view query.RatesView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

		require.Len(t, view.Rates, 1)
		assert.Equal(t, "BTC_USD", view.Rates[0].Pair)
	})

	t.Run("invalid top", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates?top=abc", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown currency", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates?currency=XYZ", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Contains(t, resp.Error, "XYZ")
	})
}

func TestServer_RateForPair(t *testing.T) {
	t.Parallel()

	t.Run("cached pair", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates/EUR/USD", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var result query.RateResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

		assert.Equal(t, "EUR_USD", result.Pair)
		assert.InDelta(t, 1.08, result.Rate, 0.0001)
		assert.False(t, result.IsInverse)
	})

	t.Run("inverse pair", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates/USD/EUR", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var result query.RateResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

		assert.True(t, result.IsInverse)
		assert.InDelta(t, 0.9259, result.Rate, 0.0001)
	})

	t.Run("unknown currency", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates/EUR/XYZ", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("pair not cached", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/rates/GBP/EUR", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_TriggerUpdate(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &mock.Store{})

	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/update", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var result query.UpdateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	// No sources registered, so the cycle yields nothing
	assert.False(t, result.Success)
}

func TestServer_HistoryForPair(t *testing.T) {
	t.Parallel()

	t.Run("valid pair", func(t *testing.T) {
		t.Parallel()

		var requestedLimit int

		store := &mock.Store{
			HistoryForPairFn: func(_ context.Context, key string, limit int) ([]types.HistoryEntry, error) {
				require.Equal(t, "BTC_USD", key)

				requestedLimit = limit

				return []types.HistoryEntry{
					{FromCurrency: "BTC", ToCurrency: "USD", Rate: 60000},
				}, nil
			},
		}

		s := newTestServer(t, store)

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/history/BTC/USD", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, defaultHistoryLimit, requestedLimit)
	})

	t.Run("limit capped", func(t *testing.T) {
		t.Parallel()

		var requestedLimit int

		store := &mock.Store{
			HistoryForPairFn: func(_ context.Context, _ string, limit int) ([]types.HistoryEntry, error) {
				requestedLimit = limit

				return nil, nil
			},
		}

		s := newTestServer(t, store)

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/history/BTC/USD?limit=9999", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, maxHistoryLimit, requestedLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, &mock.Store{})

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/history/BTC/USD?limit=-1", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown currency", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, &mock.Store{})

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/history/XYZ/USD", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_Freshness(t *testing.T) {
	t.Parallel()

	t.Run("no cached data", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, &mock.Store{})

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/freshness", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp FreshnessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.False(t, resp.Fresh)
		assert.Equal(t, "no cached data", resp.Message)
	})

	t.Run("fresh snapshot", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, snapshotStore(testSnapshot()))

		w := httptest.NewRecorder()
		s.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/freshness", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var resp FreshnessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.True(t, resp.Fresh)
	})
}
