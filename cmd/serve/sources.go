package serve

import (
	"log/slog"

	appcfg "github.com/sig-0/ratehub/config"
	"github.com/sig-0/ratehub/source"
	"github.com/sig-0/ratehub/source/coingecko"
	"github.com/sig-0/ratehub/source/exchangerate"
)

// defaultSources returns the rate sources built from the configuration
func defaultSources(cfg *appcfg.Config, logger *slog.Logger) []source.Source {
	var (
		// Crypto quotes against the base currency
		cryptoSource = coingecko.NewSource(coingecko.Config{
			URL:          cfg.CoinGeckoURL,
			BaseCurrency: cfg.BaseCurrency,
			TrackedCodes: cfg.CryptoCurrencies,
			IDMap:        cfg.CryptoIDMap,
			Timeout:      cfg.RequestTimeout(),
		})

		// Fiat quotes against the base currency, degrading to the
		// fallback table on failure
		fiatSource = exchangerate.NewSource(
			exchangerate.Config{
				URL:          cfg.ExchangeRateURL,
				APIKey:       cfg.ExchangeRateAPIKey,
				BaseCurrency: cfg.BaseCurrency,
				TrackedCodes: cfg.FiatCurrencies,
				Timeout:      cfg.RequestTimeout(),
			},
			exchangerate.WithLogger(logger),
		)
	)

	return []source.Source{
		cryptoSource,
		fiatSource,
	}
}
