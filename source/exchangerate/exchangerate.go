package exchangerate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sig-0/ratehub/source"
)

// DefaultURL is the ExchangeRate-API v6 endpoint root
const DefaultURL = "https://v6.exchangerate-api.com/v6"

// fallbackRates are approximate fiat rates returned whenever the API cannot
// be reached or yields nothing usable. Degraded data is deliberately
// preferred over a hard failure for this non-critical source
var fallbackRates = map[string]float64{
	"EUR_USD": 1.0821,
	"GBP_USD": 1.2628,
	"JPY_USD": 0.0067,
	"CAD_USD": 0.7412,
	"AUD_USD": 0.6589,
	"CHF_USD": 1.1284,
	"CNY_USD": 0.1389,
	"RUB_USD": 0.0108,
}

// Config holds the fiat source settings
type Config struct {
	// URL is the API endpoint root
	URL string

	// APIKey is the ExchangeRate-API credential
	APIKey string

	// BaseCurrency is the currency the fiat codes are quoted in
	BaseCurrency string

	// TrackedCodes are the fiat currency codes to quote
	TrackedCodes []string

	// Timeout bounds the outbound request
	Timeout time.Duration
}

// Source quotes the tracked fiat codes against the base currency via
// ExchangeRate-API, falling back to the approximate table on any failure
type Source struct {
	client *source.Client
	logger *slog.Logger
	cfg    Config
}

// Option configures the fiat source
type Option func(s *Source)

// WithLogger specifies the logger for the fiat source
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		s.logger = l
	}
}

// NewSource creates a new ExchangeRate-API source
func NewSource(cfg Config, opts ...Option) *Source {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}

	s := &Source{
		client: source.NewClient(cfg.Timeout),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:    cfg,
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Source) Name() string {
	return "exchangerate"
}

func (s *Source) Label() string {
	return "ExchangeRate-API"
}

// latestResponse is the ExchangeRate-API "latest" payload.
// v6 responses carry "conversion_rates", older ones plain "rates"
type latestResponse struct {
	ConversionRates map[string]float64 `json:"conversion_rates"`
	Rates           map[string]float64 `json:"rates"`
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	BaseCode        string             `json:"base_code"`
}

func (r *latestResponse) rates() map[string]float64 {
	if len(r.ConversionRates) > 0 {
		return r.ConversionRates
	}

	return r.Rates
}

func (s *Source) Fetch(ctx context.Context) (map[string]float64, error) {
	endpoint := fmt.Sprintf(
		"%s/%s/latest/%s",
		s.cfg.URL,
		s.cfg.APIKey,
		strings.ToUpper(s.cfg.BaseCurrency),
	)

	var data latestResponse

	if err := s.client.GetJSON(ctx, endpoint, nil, &data); err != nil {
		s.logger.Warn(
			"fiat rate fetch failed, using fallback rates",
			"err", err,
		)

		return fallback(), nil
	}

	if data.Result != "success" {
		s.logger.Warn(
			"fiat rate API returned an error, using fallback rates",
			"error_type", data.ErrorType,
		)

		return fallback(), nil
	}

	base := data.BaseCode
	if base == "" {
		base = strings.ToUpper(s.cfg.BaseCurrency)
	}

	tracked := make(map[string]struct{}, len(s.cfg.TrackedCodes))
	for _, code := range s.cfg.TrackedCodes {
		tracked[strings.ToUpper(code)] = struct{}{}
	}

	rates := make(map[string]float64, len(tracked))

	for code, rate := range data.rates() {
		code = strings.ToUpper(code)

		if _, ok := tracked[code]; !ok || code == base {
			continue
		}

		rates[code+"_"+base] = rate
	}

	if len(rates) == 0 {
		s.logger.Warn("fiat rate API returned no usable rates, using fallback rates")

		return fallback(), nil
	}

	return rates, nil
}

// fallback returns a copy of the fallback table, so callers can merge
// into it freely
func fallback() map[string]float64 {
	out := make(map[string]float64, len(fallbackRates))
	for pair, rate := range fallbackRates {
		out[pair] = rate
	}

	return out
}
