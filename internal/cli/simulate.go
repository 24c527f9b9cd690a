// internal/cli/simulate.go
package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Musing-io/musing-protocol/internal/scenario"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// SimulateResult is the JSON form of a scenario run.
type SimulateResult struct {
	Scenario  string            `json:"scenario"`
	Pass      bool              `json:"pass"`
	Error     string            `json:"error,omitempty"`
	Steps     []SimulateStep    `json:"steps"`
	Economies []SimulateEconomy `json:"economies"`
	Events    int               `json:"events"`
}

type SimulateStep struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

type SimulateEconomy struct {
	Alias    string `json:"alias"`
	Token    string `json:"token"`
	Symbol   string `json:"symbol"`
	Supply   string `json:"supply"`
	Reserve  string `json:"reserve"`
	PricePPM string `json:"price_ppm"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate [scenario.yaml]",
		Short: "Run a scenario against a fresh in-memory engine",
		Long: `Run a YAML scenario (init, approve, create, buy, sell and expect steps)
against a fresh in-memory engine and print the outcome of every step.
Without an argument the bundled reference scenario runs.

Exit codes:
  0 - Scenario passed
  1 - A step did not go as scripted
  2 - Command error (unreadable or invalid scenario)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := scenario.Reference()
			if len(args) == 1 {
				var err error
				if sc, err = scenario.Load(args[0]); err != nil {
					return WrapExitError(ExitCommandError, "failed to load scenario", err)
				}
			}
			return runSimulate(cmd, opts, sc)
		},
	}
}

func runSimulate(cmd *cobra.Command, opts *RootOptions, sc *scenario.Scenario) error {
	log, err := opts.newLogger("", false)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer log.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, runErr := scenario.Run(ctx, sc, log.WithComponent("scenario"))

	result := SimulateResult{Scenario: sc.Name, Pass: runErr == nil}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if report != nil {
		for _, st := range report.Steps {
			result.Steps = append(result.Steps, SimulateStep{Index: st.Index, Action: st.Action, Detail: st.Detail})
		}
		for _, e := range report.Economies {
			result.Economies = append(result.Economies, SimulateEconomy{
				Alias:    e.Alias,
				Token:    e.State.ID.String(),
				Symbol:   e.State.Symbol,
				Supply:   types.FormatUnits(e.State.CurrentSupply, types.Decimals).String(),
				Reserve:  types.FormatUnits(e.State.Reserve, types.Decimals).String(),
				PricePPM: e.State.PricePPM.String(),
			})
		}
		result.Events = len(report.Events)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		printSimulateText(cmd, result)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "scenario failed", runErr)
	}
	return nil
}

func printSimulateText(cmd *cobra.Command, r SimulateResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Scenario: "+r.Scenario))

	steps := make([][]string, 0, len(r.Steps))
	for _, st := range r.Steps {
		steps = append(steps, []string{strconv.Itoa(st.Index), st.Action, st.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Action", "Detail"}, steps))

	if len(r.Economies) > 0 {
		rows := make([][]string, 0, len(r.Economies))
		for _, e := range r.Economies {
			rows = append(rows, []string{e.Alias, e.Symbol, e.Token, e.Supply, e.Reserve, e.PricePPM})
		}
		fmt.Fprintln(out, renderTable([]string{"Economy", "Symbol", "Token", "Supply", "Reserve", "Price (ppm)"}, rows))
	}

	if r.Pass {
		fmt.Fprintln(out, passStyle.Render(fmt.Sprintf("PASS (%d steps, %d events)", len(r.Steps), r.Events)))
		return
	}
	fmt.Fprintln(out, failStyle.Render("FAIL: "+r.Error))
}
