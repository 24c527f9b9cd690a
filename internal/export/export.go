// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/storage/models"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat validates a format name.
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
	Format      ExportFormat
	StartTime   time.Time
	EndTime     time.Time
	TokenFilter string // адрес экономики
	SideFilter  string // buy/sell
	OutputDir   string
}

// TradeExporter handles trade export functionality
type TradeExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// ExportTrades writes matching trades into a new file under options.OutputDir
// and returns its path.
func (te *TradeExporter) ExportTrades(trades []*models.TradeRecord, options ExportOptions) (string, error) {
	filtered := te.Filter(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, te.generateFilename(options))

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := te.Write(file, filtered, options.Format); err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

// Write encodes already filtered trades in the given format.
func (te *TradeExporter) Write(w io.Writer, trades []*models.TradeRecord, format ExportFormat) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, trades)
	case FormatJSON:
		return te.writeJSON(w, trades)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Filter applies the options filters and orders the result by execution time.
func (te *TradeExporter) Filter(trades []*models.TradeRecord, options ExportOptions) []*models.TradeRecord {
	var filtered []*models.TradeRecord

	for _, trade := range trades {
		if trade == nil {
			continue
		}
		if !options.StartTime.IsZero() && trade.ExecutedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && !trade.ExecutedAt.Before(options.EndTime) {
			continue
		}
		if options.TokenFilter != "" && trade.Token != options.TokenFilter {
			continue
		}
		if options.SideFilter != "" && trade.Side != options.SideFilter {
			continue
		}
		filtered = append(filtered, trade)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].ExecutedAt.Equal(filtered[j].ExecutedAt) {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].ExecutedAt.Before(filtered[j].ExecutedAt)
	})
	return filtered
}

func (te *TradeExporter) generateFilename(options ExportOptions) string {
	timestamp := te.now().Format("20060102_150405")

	prefix := "trades_all"
	if options.SideFilter != "" {
		prefix = "trades_" + options.SideFilter
	}
	if token := options.TokenFilter; token != "" {
		if len(token) > 8 {
			token = token[:8]
		}
		prefix += "_" + token
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

// CSVHeaders returns the column names of a CSV export.
func CSVHeaders() []string {
	return []string{
		"id", "executed_at", "token", "account", "side",
		"amount_in", "amount_out", "fee", "fee_recipient", "referrer",
		"reserve_after", "supply_after", "price_ppm",
	}
}

func csvRow(t *models.TradeRecord) []string {
	return []string{
		strconv.FormatUint(uint64(t.ID), 10),
		t.ExecutedAt.UTC().Format(time.RFC3339Nano),
		t.Token, t.Account, t.Side,
		t.AmountIn, t.AmountOut, t.Fee, t.FeeRecipient, t.Referrer,
		t.ReserveAfter, t.SupplyAfter, t.PricePPM,
	}
}

func writeCSV(w io.Writer, trades []*models.TradeRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, trade := range trades {
		if err := writer.Write(csvRow(trade)); err != nil {
			return fmt.Errorf("failed to write trade %d: %w", trade.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (te *TradeExporter) writeJSON(w io.Writer, trades []*models.TradeRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time             `json:"export_time"`
		TradeCount int                   `json:"trade_count"`
		Trades     []*models.TradeRecord `json:"trades"`
		Summary    ExportSummary         `json:"summary"`
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

// ExportSummary contains summary statistics for exported trades. Volumes are
// in whole reserve units.
type ExportSummary struct {
	TotalTrades     int             `json:"total_trades"`
	BuyCount        int             `json:"buy_count"`
	SellCount       int             `json:"sell_count"`
	UniqueTokens    int             `json:"unique_tokens"`
	UniqueAccounts  int             `json:"unique_accounts"`
	TotalBuyVolume  decimal.Decimal `json:"total_buy_volume"`
	TotalSellVolume decimal.Decimal `json:"total_sell_volume"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
}

// reserveVolume is the reserve side of a trade: paid in on buy, paid out on sell.
func reserveVolume(t *models.TradeRecord) decimal.Decimal {
	raw := t.AmountIn
	if t.Side == models.SideSell {
		raw = t.AmountOut
	}
	return units(raw)
}

func units(raw string) decimal.Decimal {
	a, err := types.ParseAmount(raw)
	if err != nil {
		return decimal.Zero
	}
	return types.FormatUnits(a, types.Decimals)
}

// Summarize calculates summary statistics over trades sorted by time.
func Summarize(trades []*models.TradeRecord) ExportSummary {
	summary := ExportSummary{
		TotalTrades:     len(trades),
		TotalBuyVolume:  decimal.Zero,
		TotalSellVolume: decimal.Zero,
		TotalVolume:     decimal.Zero,
		TotalFees:       decimal.Zero,
	}
	if len(trades) == 0 {
		return summary
	}

	summary.StartDate = trades[0].ExecutedAt
	summary.EndDate = trades[len(trades)-1].ExecutedAt

	tokenSet := make(map[string]struct{})
	accountSet := make(map[string]struct{})
	for _, trade := range trades {
		tokenSet[trade.Token] = struct{}{}
		accountSet[trade.Account] = struct{}{}
		summary.TotalFees = summary.TotalFees.Add(units(trade.Fee))

		switch trade.Side {
		case models.SideBuy:
			summary.BuyCount++
			summary.TotalBuyVolume = summary.TotalBuyVolume.Add(reserveVolume(trade))
		case models.SideSell:
			summary.SellCount++
			summary.TotalSellVolume = summary.TotalSellVolume.Add(reserveVolume(trade))
		}
	}

	summary.UniqueTokens = len(tokenSet)
	summary.UniqueAccounts = len(accountSet)
	summary.TotalVolume = summary.TotalBuyVolume.Add(summary.TotalSellVolume)
	return summary
}

// ExportDailyReport exports a summary of one UTC day. It returns an empty
// path when the day has no trades.
func (te *TradeExporter) ExportDailyReport(trades []*models.TradeRecord, date time.Time, outputDir string) (string, error) {
	date = date.UTC()
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	filtered := te.Filter(trades, ExportOptions{
		StartTime: startOfDay,
		EndTime:   startOfDay.Add(24 * time.Hour),
	})
	if len(filtered) == 0 {
		te.logger.Info("No trades for daily report", zap.Time("date", startOfDay))
		return "", nil
	}

	report := DailyReport{
		Date:            startOfDay,
		TradeCount:      len(filtered),
		Summary:         Summarize(filtered),
		HourlyBreakdown: HourlyBreakdown(filtered),
		Trades:          filtered,
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("daily_report_%s.json", startOfDay.Format("20060102")))
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	te.logger.Info("Daily report exported",
		zap.String("file", outputPath),
		zap.Time("date", startOfDay),
		zap.Int("trades", len(filtered)))

	return outputPath, nil
}

// DailyReport represents a daily trading report
type DailyReport struct {
	Date            time.Time             `json:"date"`
	TradeCount      int                   `json:"trade_count"`
	Summary         ExportSummary         `json:"summary"`
	HourlyBreakdown []HourlyStats         `json:"hourly_breakdown"`
	Trades          []*models.TradeRecord `json:"trades"`
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour       int             `json:"hour"`
	TradeCount int             `json:"trade_count"`
	BuyCount   int             `json:"buy_count"`
	SellCount  int             `json:"sell_count"`
	Volume     decimal.Decimal `json:"volume"`
	Fees       decimal.Decimal `json:"fees"`
}

// HourlyBreakdown groups trades by UTC hour, skipping empty hours.
func HourlyBreakdown(trades []*models.TradeRecord) []HourlyStats {
	hourlyMap := make(map[int]*HourlyStats)

	for _, trade := range trades {
		hour := trade.ExecutedAt.UTC().Hour()

		stats, exists := hourlyMap[hour]
		if !exists {
			stats = &HourlyStats{Hour: hour, Volume: decimal.Zero, Fees: decimal.Zero}
			hourlyMap[hour] = stats
		}

		stats.TradeCount++
		stats.Volume = stats.Volume.Add(reserveVolume(trade))
		stats.Fees = stats.Fees.Add(units(trade.Fee))

		switch trade.Side {
		case models.SideBuy:
			stats.BuyCount++
		case models.SideSell:
			stats.SellCount++
		}
	}

	var breakdown []HourlyStats
	for hour := 0; hour < 24; hour++ {
		if stats, exists := hourlyMap[hour]; exists {
			breakdown = append(breakdown, *stats)
		}
	}
	return breakdown
}
