// internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/bond"
	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/token"
	"github.com/Musing-io/musing-protocol/internal/types"
)

const (
	engineAddress   types.Address = "0xbond"
	treasuryAddress types.Address = "0xtreasury"
	reserveAddress  types.Address = "0xreserve"
)

// ExpectationError reports a step whose outcome differs from the script.
type ExpectationError struct {
	Step   int
	Action string
	Reason string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Step, e.Action, e.Reason)
}

// StepResult describes one executed step.
type StepResult struct {
	Index  int
	Action string
	Detail string
}

// EconomyResult is the final state of an economy bound by a create step.
type EconomyResult struct {
	Alias string
	State bond.State
}

// Report is the outcome of a run.
type Report struct {
	Scenario  string
	Steps     []StepResult
	Economies []EconomyResult
	Events    []events.Event
}

type runner struct {
	engine   *bond.Engine
	reserve  *token.Fungible
	factory  *token.Factory
	recorder *events.Recorder
	aliases  map[string]types.Address
	logger   *zap.Logger
}

// Run executes sc against a fresh in-memory engine and stops at the first
// step that does not go as scripted.
func Run(ctx context.Context, sc *Scenario, logger *zap.Logger) (*Report, error) {
	logger = logger.Named("scenario").With(zap.String("scenario", sc.Name))

	weight := sc.WeightPPM
	if weight == 0 {
		weight = bond.DefaultWeightPPM
	}

	r := &runner{
		reserve:  token.NewFungible("Musing", "MSC", reserveAddress, treasuryAddress),
		factory:  token.NewFactory(engineAddress, logger),
		recorder: &events.Recorder{},
		aliases:  make(map[string]types.Address),
		logger:   logger,
	}
	r.engine = bond.New(bond.Config{Address: engineAddress, WeightPPM: weight},
		r.reserve.Holder(engineAddress), r.factory,
		bond.WithLogger(logger), bond.WithPublisher(r.recorder))

	names := make([]string, 0, len(sc.Accounts))
	for name := range sc.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		amount, err := types.ParseUnits(sc.Accounts[name], types.Decimals)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", name, err)
		}
		if err := r.reserve.Mint(treasuryAddress, types.Address(name), amount); err != nil {
			return nil, fmt.Errorf("genesis for %s: %w", name, err)
		}
	}

	report := &Report{Scenario: sc.Name}
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		detail, err := r.step(ctx, st)
		if err = r.settle(i, st, err); err != nil {
			logger.Warn("Scenario step failed", zap.Int("step", i), zap.String("action", st.Action), zap.Error(err))
			return report, err
		}
		if st.Error != "" {
			detail = "rejected: " + st.Error
		}
		report.Steps = append(report.Steps, StepResult{Index: i, Action: st.Action, Detail: detail})
	}

	for _, alias := range sortedAliases(r.aliases) {
		s, err := r.engine.Economy(ctx, r.aliases[alias])
		if err != nil {
			return report, err
		}
		report.Economies = append(report.Economies, EconomyResult{Alias: alias, State: s})
	}
	report.Events = r.recorder.Events()
	logger.Info("Scenario passed", zap.Int("steps", len(report.Steps)))
	return report, nil
}

// settle compares a step error with the scripted outcome.
func (r *runner) settle(i int, st Step, err error) error {
	var expErr *ExpectationError
	if errors.As(err, &expErr) {
		expErr.Step, expErr.Action = i, st.Action
		return expErr
	}
	if st.Error == "" {
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Action, err)
		}
		return nil
	}
	if err == nil {
		return &ExpectationError{Step: i, Action: st.Action, Reason: fmt.Sprintf("expected error %q, got success", st.Error)}
	}
	if kind := types.Kind(err); kind == nil || kind.Error() != st.Error {
		return &ExpectationError{Step: i, Action: st.Action, Reason: fmt.Sprintf("expected error %q, got %v", st.Error, err)}
	}
	return nil
}

func (r *runner) step(ctx context.Context, st Step) (string, error) {
	acct := types.Address(st.Account)
	switch st.Action {
	case ActionInit:
		return "engine " + engineAddress.String(), r.engine.Init(ctx)

	case ActionApprove:
		amount, err := units(st.Amount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s allows %s", acct, st.Amount), r.reserve.Approve(acct, engineAddress, amount)

	case ActionCreate:
		var p bond.CreateParams
		p.Name, p.Symbol = st.Name, st.Symbol
		var err error
		if p.MaxSupply, err = units(st.MaxSupply); err != nil {
			return "", err
		}
		if p.ReserveAmount, err = units(st.Reserve); err != nil {
			return "", err
		}
		if p.InitialSupply, err = units(st.InitialSupply); err != nil {
			return "", err
		}
		tok, err := r.engine.CreateEconomy(ctx, acct, p)
		if err != nil {
			return "", err
		}
		r.aliases[st.Economy] = tok
		return fmt.Sprintf("%s -> %s", st.Economy, tok), r.engine.CheckSolvency(ctx)

	case ActionBuy:
		deposit, minReturn, err := amounts(st)
		if err != nil {
			return "", err
		}
		minted, err := r.engine.Buy(ctx, acct, r.aliases[st.Economy], deposit, minReturn, types.Address(st.Referrer))
		if err != nil {
			return "", err
		}
		return "minted " + format(minted), r.engine.CheckSolvency(ctx)

	case ActionSell:
		amount, minReturn, err := amounts(st)
		if err != nil {
			return "", err
		}
		paid, err := r.engine.Sell(ctx, acct, r.aliases[st.Economy], amount, minReturn)
		if err != nil {
			return "", err
		}
		return "paid " + format(paid), r.engine.CheckSolvency(ctx)

	case ActionExpect:
		return r.expect(ctx, st)
	}
	return "", fmt.Errorf("unknown action %q", st.Action)
}

func (r *runner) expect(ctx context.Context, st Step) (string, error) {
	tolerance := types.Zero()
	if st.Tolerance != "" {
		var err error
		if tolerance, err = units(st.Tolerance); err != nil {
			return "", err
		}
	}
	acct := types.Address(st.Account)

	var checks []string
	check := func(what, want string, got types.Amount, tol types.Amount, parse func(string) (types.Amount, error)) error {
		if want == "" {
			return nil
		}
		expected, err := parse(want)
		if err != nil {
			return err
		}
		diff := types.OrZero(got).Sub(expected).Abs()
		if diff.GT(tol) {
			return &ExpectationError{Reason: fmt.Sprintf("%s is %s, want %s (±%s)", what, got, expected, tol)}
		}
		checks = append(checks, what)
		return nil
	}

	if st.Wallet != "" {
		if err := check("wallet", st.Wallet, r.reserve.BalanceOf(acct), tolerance, units); err != nil {
			return "", err
		}
	}
	if st.Economy == "" {
		return fmt.Sprintf("%v ok", checks), nil
	}

	tok := r.aliases[st.Economy]
	s, err := r.engine.Economy(ctx, tok)
	if err != nil {
		return "", err
	}
	econToken, ok := r.factory.Token(tok)
	if !ok {
		return "", fmt.Errorf("%w: %s", types.ErrTokenNotFound, tok)
	}

	for _, c := range []struct {
		what, want string
		got, tol   types.Amount
		parse      func(string) (types.Amount, error)
	}{
		{"supply", st.Supply, s.CurrentSupply, tolerance, units},
		{"token supply", st.Supply, econToken.TotalSupply(), tolerance, units},
		{"reserve", st.Reserve, s.Reserve, tolerance, units},
		{"price_ppm", st.PricePPM, s.PricePPM, types.Zero(), types.ParseAmount},
		{"balance", st.Balance, econToken.BalanceOf(acct), tolerance, units},
	} {
		if err := check(c.what, c.want, c.got, c.tol, c.parse); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s: %v ok", st.Economy, checks), nil
}

func amounts(st Step) (amount, minReturn types.Amount, err error) {
	if amount, err = units(st.Amount); err != nil {
		return
	}
	minReturn = types.Zero()
	if st.MinReturn != "" {
		minReturn, err = units(st.MinReturn)
	}
	return
}

func units(s string) (types.Amount, error) { return types.ParseUnits(s, types.Decimals) }

func format(a types.Amount) string { return types.FormatUnits(a, types.Decimals).String() }

func sortedAliases(m map[string]types.Address) []string {
	out := make([]string, 0, len(m))
	for alias := range m {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
