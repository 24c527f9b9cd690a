// internal/cli/export.go
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/config"
	"github.com/Musing-io/musing-protocol/internal/export"
	"github.com/Musing-io/musing-protocol/internal/storage"
	"github.com/Musing-io/musing-protocol/internal/storage/models"
	"github.com/Musing-io/musing-protocol/internal/types"
)

const exportPageSize = 500

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Tokens     []string
	Side       string
	Since      string
	Until      string
	FileFormat string
	OutputDir  string
	Daily      string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export persisted trades as CSV or JSON",
		Long: `Read the trade history of one or more economies from storage and write it
as CSV or JSON. Without --out the export goes to stdout.

Examples:
  bondctl export -c musing.yaml --token 0xeconomy
  bondctl export -c musing.yaml --token 0xeconomy --side sell --since 2026-01-01T00:00:00Z
  bondctl export -c musing.yaml --token 0xa --token 0xb --file-format json --out ./exports
  bondctl export -c musing.yaml --token 0xeconomy --daily 2026-01-02 --out ./reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Tokens, "token", nil, "economy token address (repeatable)")
	cmd.Flags().StringVar(&opts.Side, "side", "", "only buy or sell trades")
	cmd.Flags().StringVar(&opts.Since, "since", "", "RFC3339 lower bound (inclusive)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "RFC3339 upper bound (exclusive)")
	cmd.Flags().StringVar(&opts.FileFormat, "file-format", string(export.FormatCSV), "export encoding (csv|json)")
	cmd.Flags().StringVar(&opts.OutputDir, "out", "", "output directory; stdout when empty")
	cmd.Flags().StringVar(&opts.Daily, "daily", "", "write a daily report for YYYY-MM-DD (requires --out)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func (o *ExportOptions) exportOptions() (export.ExportOptions, error) {
	format, err := export.ParseFormat(o.FileFormat)
	if err != nil {
		return export.ExportOptions{}, NewExitError(ExitCommandError, err.Error())
	}
	switch o.Side {
	case "", models.SideBuy, models.SideSell:
	default:
		return export.ExportOptions{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid side %q: must be buy or sell", o.Side))
	}

	opts := export.ExportOptions{Format: format, SideFilter: o.Side, OutputDir: o.OutputDir}
	if len(o.Tokens) == 1 {
		opts.TokenFilter = o.Tokens[0]
	}
	if o.Since != "" {
		if opts.StartTime, err = time.Parse(time.RFC3339, o.Since); err != nil {
			return export.ExportOptions{}, WrapExitError(ExitCommandError, "invalid --since", err)
		}
	}
	if o.Until != "" {
		if opts.EndTime, err = time.Parse(time.RFC3339, o.Until); err != nil {
			return export.ExportOptions{}, WrapExitError(ExitCommandError, "invalid --until", err)
		}
	}
	return opts, nil
}

func runExport(ctx context.Context, out io.Writer, opts *ExportOptions) error {
	options, err := opts.exportOptions()
	if err != nil {
		return err
	}
	var day time.Time
	if opts.Daily != "" {
		if opts.OutputDir == "" {
			return NewExitError(ExitCommandError, "--daily requires --out")
		}
		if day, err = time.Parse(time.DateOnly, opts.Daily); err != nil {
			return WrapExitError(ExitCommandError, "invalid --daily", err)
		}
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == config.DriverNone {
		return NewExitError(ExitCommandError, "storage.driver is none: nothing to export")
	}

	log, err := opts.newLogger(cfg.Log.File, cfg.Log.Debug)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer log.Close()
	defer log.TrackPerformance("export")()

	if ctx == nil {
		ctx = context.Background()
	}
	opLog := log.WithOperation("export")
	store, err := storage.Open(ctx, cfg.Storage, opLog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	defer store.Close()

	var trades []*models.TradeRecord
	for _, token := range opts.Tokens {
		page, err := loadTrades(ctx, store, token)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read trades of "+token, err)
		}
		var symbol string
		if econ, err := store.GetEconomy(ctx, token); err == nil && econ != nil {
			symbol = econ.Symbol
		}
		log.WithEconomy(types.Address(token), symbol).Debug("Trades loaded", zap.Int("count", len(page)))
		trades = append(trades, page...)
	}

	exporter := export.NewTradeExporter(opLog)
	switch {
	case opts.Daily != "":
		path, err := exporter.ExportDailyReport(trades, day, opts.OutputDir)
		if err != nil {
			return WrapExitError(ExitFailure, "daily report failed", err)
		}
		if path == "" {
			_, err = fmt.Fprintf(out, "no trades on %s\n", opts.Daily)
			return err
		}
		_, err = fmt.Fprintln(out, path)
		return err

	case opts.OutputDir != "":
		path, err := exporter.ExportTrades(trades, options)
		if err != nil {
			return WrapExitError(ExitFailure, "export failed", err)
		}
		_, err = fmt.Fprintln(out, path)
		return err

	default:
		return exporter.Write(out, exporter.Filter(trades, options), options.Format)
	}
}

// loadTrades pages through the whole trade history of one economy.
func loadTrades(ctx context.Context, store storage.Storage, token string) ([]*models.TradeRecord, error) {
	var all []*models.TradeRecord
	for offset := 0; ; offset += exportPageSize {
		page, err := store.ListTrades(ctx, token, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}
