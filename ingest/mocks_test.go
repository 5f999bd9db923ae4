package ingest

import "context"

type (
	nameDelegate  func() string
	labelDelegate func() string
	fetchDelegate func(context.Context) (map[string]float64, error)
)

type mockSource struct {
	nameFn  nameDelegate
	labelFn labelDelegate
	fetchFn fetchDelegate
}

func (m *mockSource) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockSource) Label() string {
	if m.labelFn != nil {
		return m.labelFn()
	}

	return m.Name()
}

func (m *mockSource) Fetch(ctx context.Context) (map[string]float64, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}

	return nil, nil
}

// newMockSource creates a static mock source
func newMockSource(name string, rates map[string]float64, err error) *mockSource {
	return &mockSource{
		nameFn: func() string {
			return name
		},
		fetchFn: func(_ context.Context) (map[string]float64, error) {
			return rates, err
		},
	}
}
