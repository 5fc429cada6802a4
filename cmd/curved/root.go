package main

import (
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/bondcurve/internal/config"
	"github.com/rovshanmuradov/bondcurve/internal/logger"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "curved",
		Short:         "Bonding curve launch service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config file (defaults and "+config.EnvPrefix+"_* environment when empty)")

	cmd.AddCommand(
		newServeCmd(opts),
		newQuoteCmd(),
		newExportCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// setup loads the configuration and the process logger it describes.
func (o *rootOptions) setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Options{
		Debug:  cfg.DebugLogging,
		Pretty: cfg.PrettyLogging,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
