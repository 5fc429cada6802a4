package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("Starting curved",
				zap.String("version", version),
				zap.String("listen_addr", cfg.ListenAddr),
				zap.String("storage", cfg.StorageDriver))

			a, err := app.New(ctx, cfg, log.Logger)
			if err != nil {
				log.Error("Failed to initialize", zap.Error(err))
				return err
			}
			if err := a.Run(ctx); err != nil {
				log.Error("Service stopped with error", zap.Error(err))
				return err
			}
			log.Info("Service stopped")
			return nil
		},
	}
}
