package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/config"
	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/export"
	"github.com/rovshanmuradov/bondcurve/internal/storage/gormstore"
)

type exportOptions struct {
	mint   string
	format string
	side   string
	since  string
	until  string
	outDir string
}

func newExportCmd(root *rootOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a curve's trade history to CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			path, err := opts.run(cmd.Context(), cfg, log.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mint, "mint", "", "curve mint (base58)")
	f.StringVar(&opts.format, "format", string(export.FormatCSV), "csv or json")
	f.StringVar(&opts.side, "side", "", "only buy or sell trades")
	f.StringVar(&opts.since, "since", "", "RFC3339 lower bound on execution time")
	f.StringVar(&opts.until, "until", "", "RFC3339 upper bound on execution time")
	f.StringVar(&opts.outDir, "out", "exports", "output directory")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func (o *exportOptions) options() (export.ExportOptions, error) {
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return export.ExportOptions{}, err
	}
	eo := export.ExportOptions{Format: format, OutputDir: o.outDir}

	switch side := engine.Side(o.side); side {
	case "", engine.SideBuy, engine.SideSell:
		eo.Side = side
	default:
		return export.ExportOptions{}, fmt.Errorf("unknown side %q", o.side)
	}

	if eo.StartTime, err = parseTime("since", o.since); err != nil {
		return export.ExportOptions{}, err
	}
	if eo.EndTime, err = parseTime("until", o.until); err != nil {
		return export.ExportOptions{}, err
	}
	return eo, nil
}

func (o *exportOptions) run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (string, error) {
	if cfg.StorageDriver == config.StorageMemory {
		return "", fmt.Errorf("export needs a persistent storage_driver, got %q", cfg.StorageDriver)
	}
	mint, err := solana.PublicKeyFromBase58(o.mint)
	if err != nil {
		return "", fmt.Errorf("invalid mint: %w", err)
	}
	eo, err := o.options()
	if err != nil {
		return "", err
	}
	params, err := cfg.Params()
	if err != nil {
		return "", err
	}

	store, err := gormstore.Open(cfg.StorageDriver, cfg.StorageDSN, params.ProgramID, logger)
	if err != nil {
		return "", err
	}
	defer store.Close()

	trades, err := store.ListTrades(ctx, mint, 0, 0)
	if err != nil {
		return "", err
	}
	return export.NewTradeExporter(logger).ExportTrades(trades, eo)
}

func parseTime(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}
