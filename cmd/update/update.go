package update

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/ratehub/cmd/env"
	appcfg "github.com/sig-0/ratehub/config"
	"github.com/sig-0/ratehub/ingest"
	"github.com/sig-0/ratehub/query"
	"github.com/sig-0/ratehub/source"
	"github.com/sig-0/ratehub/source/coingecko"
	"github.com/sig-0/ratehub/source/exchangerate"
	"github.com/sig-0/ratehub/storage/file"
)

// updateCfg wraps the update configuration
type updateCfg struct {
	appConfig *appcfg.Config

	appConfigPath string
	sourceName    string
}

// NewUpdateCmd creates the update subcommand: a manual, one-shot trigger
// of the rate update cycle against the flat-file datastore
func NewUpdateCmd() *ffcli.Command {
	cfg := &updateCfg{
		appConfig: appcfg.DefaultConfig(),
	}

	fs := flag.NewFlagSet("update", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "update",
		ShortUsage: "update [flags]",
		LongHelp:   "Triggers one rate update cycle and prints the results",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *updateCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.sourceName,
		"source",
		"",
		"the single source to update from (defaults to all)",
	)

	fs.StringVar(
		&c.appConfigPath,
		"rates-config",
		"",
		"the path to the rates TOML configuration, if any",
	)
}

func (c *updateCfg) exec(ctx context.Context, _ []string) error {
	// Create a new logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	if c.appConfigPath != "" {
		appConfig, err := appcfg.Read(c.appConfigPath)
		if err != nil {
			return fmt.Errorf("unable to read rates config, %w", err)
		}

		c.appConfig = appConfig
	}

	if c.appConfig.ExchangeRateAPIKey == "" {
		c.appConfig.ExchangeRateAPIKey = os.Getenv(env.Prefix + env.APIKeySuffix)
	}

	if err := appcfg.ValidateConfig(c.appConfig); err != nil {
		return fmt.Errorf("invalid rates configuration, %w", err)
	}

	// Create the file store
	store, err := file.NewStore(c.appConfig.SnapshotPath, c.appConfig.HistoryPath)
	if err != nil {
		return fmt.Errorf("unable to create file store, %w", err)
	}

	// Create the updater and register the sources
	updater := ingest.NewUpdater(
		store,
		c.appConfig.RatesTTL(),
		ingest.WithLogger(logger),
	)

	sources := []source.Source{
		coingecko.NewSource(coingecko.Config{
			URL:          c.appConfig.CoinGeckoURL,
			BaseCurrency: c.appConfig.BaseCurrency,
			TrackedCodes: c.appConfig.CryptoCurrencies,
			IDMap:        c.appConfig.CryptoIDMap,
			Timeout:      c.appConfig.RequestTimeout(),
		}),
		exchangerate.NewSource(
			exchangerate.Config{
				URL:          c.appConfig.ExchangeRateURL,
				APIKey:       c.appConfig.ExchangeRateAPIKey,
				BaseCurrency: c.appConfig.BaseCurrency,
				TrackedCodes: c.appConfig.FiatCurrencies,
				Timeout:      c.appConfig.RequestTimeout(),
			},
			exchangerate.WithLogger(logger),
		),
	}

	for _, s := range sources {
		if err := updater.Register(s); err != nil {
			return fmt.Errorf("unable to register source: %w", err)
		}
	}

	// Create the query facade
	registry := query.NewRegistry(
		c.appConfig.FiatCurrencies,
		c.appConfig.CryptoCurrencies,
		[]string{c.appConfig.BaseCurrency},
	)

	facade := query.NewFacade(
		store,
		updater,
		registry,
		query.WithLogger(logger),
	)

	// Run one update cycle
	result, err := facade.UpdateRates(ctx, c.sourceName)
	if err != nil {
		return fmt.Errorf("unable to update rates: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}
