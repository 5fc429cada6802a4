package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/engine"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat accepts "csv" or "json".
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format    ExportFormat
	StartTime time.Time
	EndTime   time.Time
	Side      engine.Side // empty exports both sides
	OutputDir string
}

// TradeExporter writes trade history to files
type TradeExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// ExportTrades writes the trades matching options and returns the file path.
func (te *TradeExporter) ExportTrades(trades []engine.TradeRecord, options ExportOptions) (string, error) {
	filtered := te.filterTrades(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ExecutedAt.Before(filtered[j].ExecutedAt)
	})

	outputPath := filepath.Join(options.OutputDir, te.generateFilename(filtered[0], options))
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = te.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func (te *TradeExporter) filterTrades(trades []engine.TradeRecord, options ExportOptions) []engine.TradeRecord {
	var filtered []engine.TradeRecord
	for _, trade := range trades {
		if !options.StartTime.IsZero() && trade.ExecutedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && trade.ExecutedAt.After(options.EndTime) {
			continue
		}
		if options.Side != "" && trade.Side != options.Side {
			continue
		}
		filtered = append(filtered, trade)
	}
	return filtered
}

func (te *TradeExporter) generateFilename(first engine.TradeRecord, options ExportOptions) string {
	timestamp := te.now().Format("20060102_150405")

	prefix := "trades_all"
	if options.Side != "" {
		prefix = fmt.Sprintf("trades_%s", options.Side)
	}
	if mint := first.Mint.String(); len(mint) >= 8 {
		prefix += "_" + mint[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

// CSVHeaders returns the column names written by the CSV export.
func CSVHeaders() []string {
	return []string{"id", "executed_at", "side", "mint", "trader", "amount", "value", "fee", "discount", "real_value", "real_tokens"}
}

func toCSV(t engine.TradeRecord) []string {
	return []string{
		t.ID,
		t.ExecutedAt.UTC().Format(time.RFC3339Nano),
		string(t.Side),
		t.Mint.String(),
		t.Trader.String(),
		strconv.FormatUint(t.Amount, 10),
		strconv.FormatUint(t.Value, 10),
		strconv.FormatUint(t.Fee, 10),
		strconv.FormatBool(t.Discount),
		strconv.FormatUint(t.Reserves.RealValue, 10),
		strconv.FormatUint(t.Reserves.RealTokens, 10),
	}
}

func (te *TradeExporter) exportToCSV(trades []engine.TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, trade := range trades {
		if err := writer.Write(toCSV(trade)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func (te *TradeExporter) exportToJSON(trades []engine.TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time            `json:"export_time"`
		TradeCount int                  `json:"trade_count"`
		Trades     []engine.TradeRecord `json:"trades"`
		Summary    ExportSummary        `json:"summary"`
	}{
		ExportTime: te.now().UTC(),
		TradeCount: len(trades),
		Trades:     trades,
		Summary:    Summarize(trades),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary contains summary statistics for exported trades
type ExportSummary struct {
	TotalTrades     int       `json:"total_trades"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	UniqueTraders   int       `json:"unique_traders"`
	TokensBought    uint64    `json:"tokens_bought"`
	TokensSold      uint64    `json:"tokens_sold"`
	TotalBuyVolume  uint64    `json:"total_buy_volume"`
	TotalSellVolume uint64    `json:"total_sell_volume"`
	TotalFees       uint64    `json:"total_fees"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// Summarize aggregates trades, which must be sorted oldest first.
func Summarize(trades []engine.TradeRecord) ExportSummary {
	summary := ExportSummary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return summary
	}
	summary.StartDate = trades[0].ExecutedAt
	summary.EndDate = trades[len(trades)-1].ExecutedAt

	traders := make(map[string]struct{})
	for _, trade := range trades {
		traders[trade.Trader.String()] = struct{}{}
		summary.TotalFees += trade.Fee

		switch trade.Side {
		case engine.SideBuy:
			summary.BuyCount++
			summary.TokensBought += trade.Amount
			summary.TotalBuyVolume += trade.Value
		case engine.SideSell:
			summary.SellCount++
			summary.TokensSold += trade.Amount
			summary.TotalSellVolume += trade.Value
		}
	}
	summary.UniqueTraders = len(traders)
	return summary
}
