package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

const (
	DefaultBaseCurrency = "USD"

	DefaultSnapshotPath = "data/rates.json"
	DefaultHistoryPath  = "data/exchange_rates.json"
)

var (
	ErrMissingAPIKey      = errors.New("missing ExchangeRate-API key")
	ErrMissingBase        = errors.New("missing base currency")
	ErrUnmappedCryptoCode = errors.New("tracked crypto code has no provider id mapping")
	ErrInvalidInterval    = errors.New("invalid interval")
)

// Config defines the base-level application configuration.
// Construction is pure: nothing here performs I/O beyond Read
type Config struct {
	// CryptoIDMap maps tracked crypto codes to CoinGecko asset ids
	CryptoIDMap map[string]string `toml:"crypto_id_map"`

	// ExchangeRateAPIKey is the fiat source credential.
	// Usually supplied through the environment, not the file
	ExchangeRateAPIKey string `toml:"exchangerate_api_key"`

	// BaseCurrency is the currency every tracked code is quoted in
	BaseCurrency string `toml:"base_currency"`

	// SnapshotPath is the location of the current-rates file
	SnapshotPath string `toml:"snapshot_path"`

	// HistoryPath is the location of the capped observation log
	HistoryPath string `toml:"history_path"`

	// CoinGeckoURL overrides the crypto source endpoint, if set
	CoinGeckoURL string `toml:"coingecko_url"`

	// ExchangeRateURL overrides the fiat source endpoint root, if set
	ExchangeRateURL string `toml:"exchangerate_url"`

	// FiatCurrencies are the tracked fiat codes
	FiatCurrencies []string `toml:"fiat_currencies"`

	// CryptoCurrencies are the tracked crypto codes
	CryptoCurrencies []string `toml:"crypto_currencies"`

	// RatesTTLSeconds is the cache freshness window
	RatesTTLSeconds int64 `toml:"rates_ttl_seconds"`

	// RequestTimeoutSeconds bounds each outbound source call
	RequestTimeoutSeconds int64 `toml:"request_timeout_seconds"`

	// UpdateIntervalMinutes is the background refresh interval
	UpdateIntervalMinutes int64 `toml:"update_interval_minutes"`

	// PollGranularitySeconds is the scheduler cancellation poll step,
	// bounding worst-case shutdown latency
	PollGranularitySeconds int64 `toml:"poll_granularity_seconds"`
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		BaseCurrency:     DefaultBaseCurrency,
		SnapshotPath:     DefaultSnapshotPath,
		HistoryPath:      DefaultHistoryPath,
		FiatCurrencies:   []string{"EUR", "GBP", "RUB", "JPY", "CNY"},
		CryptoCurrencies: []string{"BTC", "ETH", "SOL", "BNB", "ADA"},
		CryptoIDMap: map[string]string{
			"BTC": "bitcoin",
			"ETH": "ethereum",
			"SOL": "solana",
			"BNB": "binancecoin",
			"ADA": "cardano",
		},
		RatesTTLSeconds:        300,
		RequestTimeoutSeconds:  10,
		UpdateIntervalMinutes:  5,
		PollGranularitySeconds: 1,
	}
}

// ValidateConfig validates the application configuration
func ValidateConfig(config *Config) error {
	if config.ExchangeRateAPIKey == "" {
		return ErrMissingAPIKey
	}

	if config.BaseCurrency == "" {
		return ErrMissingBase
	}

	for _, code := range config.CryptoCurrencies {
		if _, ok := config.CryptoIDMap[strings.ToUpper(code)]; !ok {
			return fmt.Errorf("%w: %s", ErrUnmappedCryptoCode, code)
		}
	}

	if config.UpdateIntervalMinutes < 1 {
		return fmt.Errorf("%w: update interval must be at least one minute", ErrInvalidInterval)
	}

	if config.PollGranularitySeconds < 1 {
		return fmt.Errorf("%w: poll granularity must be at least one second", ErrInvalidInterval)
	}

	return nil
}

// Read reads the configuration from the given path
func Read(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Parse it on top of the defaults
	cfg := DefaultConfig()

	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RatesTTL returns the cache freshness window
func (c *Config) RatesTTL() time.Duration {
	return time.Duration(c.RatesTTLSeconds) * time.Second
}

// RequestTimeout returns the outbound call bound
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// UpdateInterval returns the background refresh interval
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMinutes) * time.Minute
}

// PollGranularity returns the scheduler cancellation poll step
func (c *Config) PollGranularity() time.Duration {
	return time.Duration(c.PollGranularitySeconds) * time.Second
}
