// internal/cli/quote.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Musing-io/musing-protocol/internal/bond"
	"github.com/Musing-io/musing-protocol/internal/curve"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// QuoteOptions holds flags for the quote commands. Amounts are whole units.
type QuoteOptions struct {
	*RootOptions
	Supply    string
	Reserve   string
	Amount    string
	WeightPPM uint32
}

// QuoteResult is the outcome of a pure curve evaluation.
type QuoteResult struct {
	Side           string `json:"side"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	SupplyAfter    string `json:"supply_after"`
	ReserveAfter   string `json:"reserve_after"`
	PricePPMBefore string `json:"price_ppm_before"`
	PricePPMAfter  string `json:"price_ppm_after"`
}

// NewQuoteCommand creates the quote command with buy and sell subcommands.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuoteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Evaluate the curve without an engine",
		Long: `Evaluate the Bancor curve for a hypothetical economy.

Examples:
  bondctl quote buy --supply 10000 --reserve 1 --amount 1
  bondctl quote sell --supply 10139.594797900291386901 --reserve 2 --amount 139.594797900291386901`,
	}

	cmd.PersistentFlags().StringVar(&opts.Supply, "supply", "", "current token supply (whole units)")
	cmd.PersistentFlags().StringVar(&opts.Reserve, "reserve", "", "current reserve balance (whole units)")
	cmd.PersistentFlags().StringVar(&opts.Amount, "amount", "", "reserve deposited (buy) or tokens sold (sell), whole units")
	cmd.PersistentFlags().Uint32Var(&opts.WeightPPM, "weight", bond.DefaultWeightPPM, "connector weight in ppm")
	for _, name := range []string{"supply", "reserve", "amount"} {
		_ = cmd.MarkPersistentFlagRequired(name)
	}

	for _, side := range []string{"buy", "sell"} {
		side := side
		cmd.AddCommand(&cobra.Command{
			Use:   side,
			Short: "Quote a " + side,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := evaluateQuote(side, opts)
				if err != nil {
					return WrapExitError(ExitCommandError, "quote failed", err)
				}
				return printQuote(cmd, opts, res)
			},
		})
	}
	return cmd
}

func evaluateQuote(side string, opts *QuoteOptions) (QuoteResult, error) {
	parse := func(name, s string) (types.Amount, error) {
		v, err := types.ParseUnits(s, types.Decimals)
		if err != nil {
			return types.Zero(), fmt.Errorf("--%s: %w", name, err)
		}
		return v, nil
	}
	supply, err := parse("supply", opts.Supply)
	if err != nil {
		return QuoteResult{}, err
	}
	reserve, err := parse("reserve", opts.Reserve)
	if err != nil {
		return QuoteResult{}, err
	}
	amount, err := parse("amount", opts.Amount)
	if err != nil {
		return QuoteResult{}, err
	}

	before, err := curve.PricePPM(reserve, supply, opts.WeightPPM)
	if err != nil {
		return QuoteResult{}, err
	}

	formula := curve.NewBancor()
	var out, supplyAfter, reserveAfter types.Amount
	switch side {
	case "buy":
		if out, err = formula.PurchaseReturn(reserve, supply, opts.WeightPPM, amount); err != nil {
			return QuoteResult{}, err
		}
		if supplyAfter, err = types.SafeAdd(supply, out); err != nil {
			return QuoteResult{}, err
		}
		if reserveAfter, err = types.SafeAdd(reserve, amount); err != nil {
			return QuoteResult{}, err
		}
	default:
		if out, err = formula.SaleReturn(reserve, supply, opts.WeightPPM, amount); err != nil {
			return QuoteResult{}, err
		}
		if supplyAfter, err = types.SafeSub(supply, amount); err != nil {
			return QuoteResult{}, err
		}
		if reserveAfter, err = types.SafeSub(reserve, out); err != nil {
			return QuoteResult{}, err
		}
	}

	after, err := curve.PricePPM(reserveAfter, supplyAfter, opts.WeightPPM)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{
		Side:           side,
		AmountIn:       types.FormatUnits(amount, types.Decimals).String(),
		AmountOut:      types.FormatUnits(out, types.Decimals).String(),
		SupplyAfter:    types.FormatUnits(supplyAfter, types.Decimals).String(),
		ReserveAfter:   types.FormatUnits(reserveAfter, types.Decimals).String(),
		PricePPMBefore: before.String(),
		PricePPMAfter:  after.String(),
	}, nil
}

func printQuote(cmd *cobra.Command, opts *QuoteOptions, r QuoteResult) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, r)
	}
	fmt.Fprintln(out, titleStyle.Render("Quote: "+r.Side))
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, [][]string{
		{"amount in", r.AmountIn},
		{"amount out", r.AmountOut},
		{"supply after", r.SupplyAfter},
		{"reserve after", r.ReserveAfter},
		{"price before (ppm)", r.PricePPMBefore},
		{"price after (ppm)", r.PricePPMAfter},
	}))
	return nil
}
