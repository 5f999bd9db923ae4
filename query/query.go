package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sig-0/ratehub/ingest"
	"github.com/sig-0/ratehub/storage"
	"github.com/sig-0/ratehub/storage/types"
)

// freshnessWindow is the fixed staleness threshold for single-pair lookups,
// independent of the updater's own TTL
const freshnessWindow = time.Minute * 10

// Facade is the read/write surface consumed by the outer layers:
// trigger an update, list cached rates, fetch one pair
type Facade struct {
	store    storage.Store
	updater  *ingest.Updater
	registry *Registry
	logger   *slog.Logger

	now func() time.Time
}

// Option configures the facade
type Option func(f *Facade)

// WithLogger specifies the logger for the facade
func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) {
		f.logger = l
	}
}

// WithTimeSource specifies the time source for freshness checks.
// Defaults to time.Now
func WithTimeSource(now func() time.Time) Option {
	return func(f *Facade) {
		f.now = now
	}
}

// NewFacade creates a new query facade
func NewFacade(
	store storage.Store,
	updater *ingest.Updater,
	registry *Registry,
	opts ...Option,
) *Facade {
	f := &Facade{
		store:    store,
		updater:  updater,
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}

	// Apply the options
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// UpdateResult is the outcome of a triggered update cycle
type UpdateResult struct {
	Summary   *types.Summary `json:"summary"`
	Results   map[string]int `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
}

// UpdateRates triggers an update cycle over one source, or all registered
// sources when sourceName is empty
func (f *Facade) UpdateRates(ctx context.Context, sourceName string) (*UpdateResult, error) {
	var names []string
	if sourceName != "" {
		names = []string{sourceName}
	}

	results, err := f.updater.Run(ctx, names...)
	if err != nil {
		return nil, err
	}

	summary, err := f.updater.Summary(ctx)
	if err != nil {
		return nil, err
	}

	var success bool

	for _, count := range results {
		if count > 0 {
			success = true

			break
		}
	}

	return &UpdateResult{
		Success:   success,
		Results:   results,
		Summary:   summary,
		Timestamp: f.now().UTC(),
	}, nil
}

// RateView is one cached pair prepared for display
type RateView struct {
	UpdatedAt     time.Time `json:"updated_at"`
	Pair          string    `json:"pair"`
	Source        string    `json:"source"`
	FormattedRate string    `json:"formatted_rate"`
	Rate          float64   `json:"rate"`
}

// RatesView is the filtered, ordered listing of the cached snapshot
type RatesView struct {
	LastRefresh  *time.Time `json:"last_refresh"`
	BaseCurrency string     `json:"base_currency"`
	Message      string     `json:"message,omitempty"`
	Rates        []RateView `json:"rates"`
	Total        int        `json:"total"`
}

// ShowRates lists cached rates, optionally filtered by a currency code and
// truncated to the top rates by value
func (f *Facade) ShowRates(
	ctx context.Context,
	currency string,
	top int,
	base string,
) (*RatesView, error) {
	base = strings.ToUpper(base)

	snapshot, err := f.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load snapshot: %w", err)
	}

	if len(snapshot.Pairs) == 0 {
		return &RatesView{
			Rates:        []RateView{},
			Total:        0,
			LastRefresh:  snapshot.LastRefresh,
			BaseCurrency: base,
			Message:      "rate cache is empty, run an update to load data",
		}, nil
	}

	filtered := snapshot.Pairs

	if currency != "" {
		currency = strings.ToUpper(currency)

		if !f.registry.Supported(currency) {
			return nil, &CurrencyNotFoundError{Code: currency}
		}

		filtered = make(map[string]types.RatePair)

		for key, pair := range snapshot.Pairs {
			from, to, err := types.SplitPairKey(key)
			if err != nil {
				continue
			}

			if from == currency || to == currency {
				filtered[key] = pair
			}
		}
	}

	views := make([]RateView, 0, len(filtered))

	for key, pair := range filtered {
		views = append(views, RateView{
			Pair:          key,
			Rate:          pair.Rate,
			UpdatedAt:     pair.UpdatedAt,
			Source:        pair.Source,
			FormattedRate: formatRate(pair.Rate),
		})
	}

	// Highest rates first
	sort.Slice(views, func(i, j int) bool {
		if views[i].Rate != views[j].Rate {
			return views[i].Rate > views[j].Rate
		}

		return views[i].Pair < views[j].Pair
	})

	if top > 0 && len(views) > top {
		views = views[:top]
	}

	return &RatesView{
		Rates:        views,
		Total:        len(views),
		LastRefresh:  snapshot.LastRefresh,
		BaseCurrency: base,
	}, nil
}

// RateResult is a single-pair lookup outcome
type RateResult struct {
	UpdatedAt   time.Time `json:"updated_at"`
	Pair        string    `json:"pair"`
	Source      string    `json:"source"`
	Rate        float64   `json:"rate"`
	InverseRate float64   `json:"inverse_rate"`
	IsInverse   bool      `json:"is_inverse"`
	IsFresh     bool      `json:"is_fresh"`
}

// GetRate looks up the rate for one currency pair, synthesizing the value
// from the inverse pair when only that one is cached
func (f *Facade) GetRate(ctx context.Context, from, to string) (*RateResult, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	for _, code := range []string{from, to} {
		if !f.registry.Supported(code) {
			return nil, &CurrencyNotFoundError{Code: code}
		}
	}

	var (
		key       = types.PairKey(from, to)
		isInverse bool
	)

	pair, err := f.store.GetPair(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("unable to look up pair: %w", err)
	}

	if pair == nil {
		inverse, err := f.store.GetPair(ctx, types.PairKey(to, from))
		if err != nil {
			return nil, fmt.Errorf("unable to look up inverse pair: %w", err)
		}

		if inverse != nil && inverse.Rate != 0 {
			pair = &types.RatePair{
				Rate:      1 / inverse.Rate,
				UpdatedAt: inverse.UpdatedAt,
				Source:    inverse.Source,
			}
			isInverse = true
		}
	}

	if pair == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrRateUnavailable)
	}

	var inverseRate float64
	if pair.Rate != 0 {
		inverseRate = 1 / pair.Rate
	}

	return &RateResult{
		Pair:        key,
		Rate:        pair.Rate,
		InverseRate: inverseRate,
		UpdatedAt:   pair.UpdatedAt,
		Source:      pair.Source,
		IsInverse:   isInverse,
		IsFresh:     f.now().UTC().Sub(pair.UpdatedAt.UTC()) <= freshnessWindow,
	}, nil
}

// PairHistory lists retained observations for one pair, newest first
func (f *Facade) PairHistory(
	ctx context.Context,
	from, to string,
	limit int,
) ([]types.HistoryEntry, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	for _, code := range []string{from, to} {
		if !f.registry.Supported(code) {
			return nil, &CurrencyNotFoundError{Code: code}
		}
	}

	entries, err := f.store.HistoryForPair(ctx, types.PairKey(from, to), limit)
	if err != nil {
		return nil, fmt.Errorf("unable to load pair history: %w", err)
	}

	return entries, nil
}

// Freshness reports whether the whole snapshot is within the updater TTL
func (f *Facade) Freshness(ctx context.Context) (bool, string) {
	return f.updater.CheckFreshness(ctx)
}

// formatRate renders a rate with four decimal places and thousands
// separators, e.g. "59,337.2100"
func formatRate(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)

	dot := strings.IndexByte(s, '.')

	intPart, fracPart := s[:dot], s[dot:]

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	var b strings.Builder

	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}

		b.WriteRune(digit)
	}

	return sign + b.String() + fracPart
}
