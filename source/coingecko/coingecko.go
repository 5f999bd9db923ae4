package coingecko

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sig-0/ratehub/source"
	"github.com/sig-0/ratehub/storage/types"
)

// DefaultURL is the CoinGecko simple-price endpoint
const DefaultURL = "https://api.coingecko.com/api/v3/simple/price"

// Config holds the crypto source settings
type Config struct {
	// URL is the simple-price endpoint
	URL string

	// BaseCurrency is the fiat currency the crypto codes are quoted in
	BaseCurrency string

	// TrackedCodes are the crypto currency codes to quote
	TrackedCodes []string

	// IDMap maps crypto currency codes to CoinGecko asset ids.
	// Codes without a mapping are skipped
	IDMap map[string]string

	// Timeout bounds the outbound request
	Timeout time.Duration
}

// Source quotes the tracked crypto codes against the base currency in a
// single CoinGecko call
type Source struct {
	client *source.Client
	cfg    Config
}

// NewSource creates a new CoinGecko source
func NewSource(cfg Config) *Source {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}

	return &Source{
		client: source.NewClient(cfg.Timeout),
		cfg:    cfg,
	}
}

func (s *Source) Name() string {
	return "coingecko"
}

func (s *Source) Label() string {
	return "CoinGecko"
}

func (s *Source) Fetch(ctx context.Context) (map[string]float64, error) {
	ids := make([]string, 0, len(s.cfg.TrackedCodes))

	for _, code := range s.cfg.TrackedCodes {
		id, ok := s.cfg.IDMap[strings.ToUpper(code)]
		if !ok {
			continue // unmapped codes are skipped
		}

		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return map[string]float64{}, nil
	}

	var (
		vsCurrency = strings.ToLower(s.cfg.BaseCurrency)

		query = url.Values{
			"ids":           []string{strings.Join(ids, ",")},
			"vs_currencies": []string{vsCurrency},
		}
	)

	// Response shape: {"bitcoin": {"usd": 59337.21}, ...}
	var data map[string]map[string]float64

	if err := s.client.GetJSON(ctx, s.cfg.URL, query, &data); err != nil {
		return nil, err
	}

	rates := make(map[string]float64, len(data))

	for id, quotes := range data {
		code, ok := s.codeForID(id)
		if !ok {
			continue
		}

		rate, ok := quotes[vsCurrency]
		if !ok {
			continue
		}

		rates[types.PairKey(code, s.cfg.BaseCurrency)] = rate
	}

	return rates, nil
}

// codeForID finds the tracked currency code for a CoinGecko asset id
func (s *Source) codeForID(id string) (string, bool) {
	for code, mapped := range s.cfg.IDMap {
		if mapped == id {
			return code, true
		}
	}

	return "", false
}
