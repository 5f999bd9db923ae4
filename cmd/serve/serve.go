package serve

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/ratehub/cmd/env"
	appcfg "github.com/sig-0/ratehub/config"
	"github.com/sig-0/ratehub/server/config"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	appConfig    *appcfg.Config
	serverConfig *config.Config

	appConfigPath    string
	serverConfigPath string
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{
		appConfig:    appcfg.DefaultConfig(),
		serverConfig: config.DefaultConfig(),
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	cmd := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve <subcommand> [flags]",
		LongHelp:   "Serves the ratehub backend",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newServeFileCmd(cfg),
		newServeSQLCmd(cfg),
	}

	return cmd
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.serverConfig.ListenAddress,
		"listen",
		config.DefaultListenAddress,
		"the IP:PORT URL for the server",
	)

	fs.StringVar(
		&c.serverConfigPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	fs.StringVar(
		&c.appConfigPath,
		"rates-config",
		"",
		"the path to the rates TOML configuration, if any",
	)
}

// loadConfigs reads the optional TOML configurations and pulls the fiat
// source credential from the environment
func (c *serveCfg) loadConfigs() error {
	if c.serverConfigPath != "" {
		serverCfg, err := config.Read(c.serverConfigPath)
		if err != nil {
			return fmt.Errorf("unable to read server config, %w", err)
		}

		c.serverConfig = serverCfg
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

	return nil
}
