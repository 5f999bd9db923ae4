package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/ratehub/cmd/env"
	"github.com/sig-0/ratehub/ingest"
	"github.com/sig-0/ratehub/query"
	"github.com/sig-0/ratehub/server"
	"github.com/sig-0/ratehub/storage"
	"github.com/sig-0/ratehub/storage/file"
)

type serveFileCfg struct {
	rootCfg *serveCfg
}

// newServeFileCmd creates the serve file command
func newServeFileCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveFileCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("file", flag.ExitOnError)
	cfg.rootCfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "file",
		ShortUsage: "serve file [flags]",
		LongHelp:   "Serves the ratehub backend, using the flat-file datastore",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveFileCfg) exec(ctx context.Context, _ []string) error {
	// Create a new logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	if err := c.rootCfg.loadConfigs(); err != nil {
		return err
	}

	// Create the file store
	store, err := file.NewStore(
		c.rootCfg.appConfig.SnapshotPath,
		c.rootCfg.appConfig.HistoryPath,
	)
	if err != nil {
		return fmt.Errorf("unable to create file store, %w", err)
	}

	return run(ctx, c.rootCfg, store, logger)
}

// run wires the updater, scheduler, facade and server on top of the given
// store, and drives them until the context is cancelled
func run(
	ctx context.Context,
	cfg *serveCfg,
	store storage.Store,
	logger *slog.Logger,
) error {
	// Create the updater and register the sources
	updater := ingest.NewUpdater(
		store,
		cfg.appConfig.RatesTTL(),
		ingest.WithLogger(logger),
	)

	for _, s := range defaultSources(cfg.appConfig, logger) {
		if err := updater.Register(s); err != nil {
			return fmt.Errorf("unable to register source: %w", err)
		}
	}

	// Create the background scheduler
	scheduler := ingest.NewScheduler(
		updater,
		cfg.appConfig.UpdateInterval(),
		ingest.WithSchedulerLogger(logger),
		ingest.WithPollGranularity(cfg.appConfig.PollGranularity()),
	)

	// Create the query facade
	registry := query.NewRegistry(
		cfg.appConfig.FiatCurrencies,
		cfg.appConfig.CryptoCurrencies,
		[]string{cfg.appConfig.BaseCurrency},
	)

	facade := query.NewFacade(
		store,
		updater,
		registry,
		query.WithLogger(logger),
	)

	// Create the server instance
	s, err := server.New(
		facade,
		server.WithLogger(logger),
		server.WithConfig(cfg.serverConfig),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the background refresh loop
	group.Go(func() error {
		scheduler.Start()

		<-gCtx.Done()

		scheduler.Stop()

		return nil
	})

	return group.Wait()
}
