package mock

import (
	"context"

	"github.com/sig-0/ratehub/storage/types"
)

type (
	LoadSnapshotDelegate   func(context.Context) (*types.Snapshot, error)
	SaveSnapshotDelegate   func(context.Context, map[string]float64, string) error
	AppendHistoryDelegate  func(context.Context, map[string]float64, string, string) error
	LoadHistoryDelegate    func(context.Context) ([]types.HistoryEntry, error)
	GetPairDelegate        func(context.Context, string) (*types.RatePair, error)
	HistoryForPairDelegate func(context.Context, string, int) ([]types.HistoryEntry, error)
)

type Store struct {
	LoadSnapshotFn   LoadSnapshotDelegate
	SaveSnapshotFn   SaveSnapshotDelegate
	AppendHistoryFn  AppendHistoryDelegate
	LoadHistoryFn    LoadHistoryDelegate
	GetPairFn        GetPairDelegate
	HistoryForPairFn HistoryForPairDelegate
}

func (m *Store) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	if m.LoadSnapshotFn != nil {
		return m.LoadSnapshotFn(ctx)
	}

	return types.EmptySnapshot(), nil
}

func (m *Store) SaveSnapshot(
	ctx context.Context,
	rates map[string]float64,
	source string,
) error {
	if m.SaveSnapshotFn != nil {
		return m.SaveSnapshotFn(ctx, rates, source)
	}

	return nil
}

func (m *Store) AppendHistory(
	ctx context.Context,
	rates map[string]float64,
	source, cycleID string,
) error {
	if m.AppendHistoryFn != nil {
		return m.AppendHistoryFn(ctx, rates, source, cycleID)
	}

	return nil
}

func (m *Store) LoadHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	if m.LoadHistoryFn != nil {
		return m.LoadHistoryFn(ctx)
	}

	return nil, nil
}

func (m *Store) GetPair(ctx context.Context, key string) (*types.RatePair, error) {
	if m.GetPairFn != nil {
		return m.GetPairFn(ctx, key)
	}

	return nil, nil //nolint:nilnil // valid case
}

func (m *Store) HistoryForPair(
	ctx context.Context,
	key string,
	limit int,
) ([]types.HistoryEntry, error) {
	if m.HistoryForPairFn != nil {
		return m.HistoryForPairFn(ctx, key, limit)
	}

	return nil, nil
}
