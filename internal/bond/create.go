// internal/bond/create.go
package bond

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/curve"
	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/registry"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// CreateParams describes a new economy.
type CreateParams struct {
	Name          string
	Symbol        string
	MaxSupply     types.Amount
	ReserveAmount types.Amount
	InitialSupply types.Amount
}

// CreateEconomy deploys a new economy token, seeds its reserve with
// ReserveAmount pulled from caller and mints InitialSupply to caller.
// It returns the token address, which is also the economy id.
func (e *Engine) CreateEconomy(ctx context.Context, caller types.Address, p CreateParams) (types.Address, error) {
	start := time.Now()
	ctx, leave, err := e.enter(ctx, "create")
	if err != nil {
		return types.ZeroAddress, err
	}
	defer leave()

	j := &journal{}
	econ, err := e.createEconomy(ctx, j, caller, p)
	if err = e.finish(ctx, j, "create", start, err); err != nil {
		e.logger.Warn("Economy creation failed",
			zap.String("caller", caller.String()),
			zap.String("name", p.Name),
			zap.String("symbol", p.Symbol),
			zap.Error(err))
		return types.ZeroAddress, err
	}

	s, err := e.state(econ.ID)
	if err != nil {
		return econ.ID, err
	}
	e.logger.Info("Economy created",
		zap.String("token", econ.ID.String()),
		zap.String("symbol", econ.Symbol),
		zap.String("creator", caller.String()),
		zap.String("reserve", s.Reserve.String()),
		zap.String("supply", s.CurrentSupply.String()),
		zap.String("price_ppm", s.PricePPM.String()))

	e.publish(events.EconomyCreatedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EconomyCreated, EventTime: econ.CreatedAt},
		Token:     econ.ID,
		Name:      econ.Name,
		Symbol:    econ.Symbol,
		Creator:   econ.Creator,
		WeightPPM: econ.WeightPPM,
		MaxSupply: econ.MaxSupply,
		Reserve:   s.Reserve,
		Supply:    s.CurrentSupply,
		PricePPM:  s.PricePPM,
	})
	e.recordEconomy(s)
	return econ.ID, nil
}

func (e *Engine) createEconomy(ctx context.Context, j *journal, caller types.Address, p CreateParams) (registry.Economy, error) {
	if err := e.ready(); err != nil {
		return registry.Economy{}, err
	}
	if caller.IsZero() {
		return registry.Economy{}, fmt.Errorf("%w: caller is required", types.ErrInvalidParams)
	}
	name, symbol := strings.TrimSpace(p.Name), strings.TrimSpace(p.Symbol)
	if name == "" || symbol == "" {
		return registry.Economy{}, fmt.Errorf("%w: name and symbol are required", types.ErrInvalidParams)
	}
	reserve, initial, maxSupply := types.OrZero(p.ReserveAmount), types.OrZero(p.InitialSupply), types.OrZero(p.MaxSupply)
	if !reserve.IsPositive() {
		return registry.Economy{}, fmt.Errorf("%w: reserve amount must be positive", types.ErrInvalidAmount)
	}
	if !initial.IsPositive() {
		return registry.Economy{}, fmt.Errorf("%w: initial supply must be positive", types.ErrInvalidAmount)
	}
	if initial.GT(maxSupply) {
		return registry.Economy{}, types.NewSupplyCapError(types.ErrSupplyCapExceeded, types.Zero(), initial.String(), maxSupply)
	}
	price, err := curve.PricePPM(reserve, initial, e.cfg.WeightPPM)
	if err != nil {
		return registry.Economy{}, err
	}
	if !price.IsPositive() {
		return registry.Economy{}, fmt.Errorf("%w: initial price of %s reserve over %s supply rounds to zero",
			types.ErrInvalidAmount, reserve, initial)
	}

	// The token address is the economy id, so the token exists before any
	// effect is applied. A later failure leaves it deployed but unregistered.
	e.interact(ctx)
	tok, err := e.factory.Deploy(ctx, name, symbol)
	if err != nil {
		return registry.Economy{}, fmt.Errorf("deploy token: %w", err)
	}
	id := tok.Address()

	// effects
	econ, err := e.registry.Register(registry.Params{
		Name:           name,
		Symbol:         symbol,
		Token:          id,
		Creator:        caller,
		WeightPPM:      e.cfg.WeightPPM,
		MaxSupply:      maxSupply,
		InitialSupply:  initial,
		InitialReserve: reserve,
		CreatedAt:      e.now(),
	})
	if err != nil {
		return registry.Economy{}, err
	}
	j.push("register economy", func(context.Context) error {
		e.registry.Remove(id)
		return nil
	})

	if err := e.ledger.Open(id); err != nil {
		return registry.Economy{}, err
	}
	j.push("open reserve entry", func(context.Context) error {
		e.ledger.Close(id)
		return nil
	})
	if err := e.ledger.Credit(id, reserve); err != nil {
		return registry.Economy{}, err
	}

	e.tokens[id] = tok
	j.push("bind token", func(context.Context) error {
		delete(e.tokens, id)
		return nil
	})

	// interactions
	if err := e.reserve.TransferFrom(ctx, caller, e.cfg.Address, reserve); err != nil {
		return registry.Economy{}, fmt.Errorf("pull reserve: %w", err)
	}
	j.push("refund reserve", func(ctx context.Context) error {
		return e.reserve.Transfer(ctx, caller, reserve)
	})

	if err := tok.Mint(ctx, caller, initial); err != nil {
		return registry.Economy{}, fmt.Errorf("mint initial supply: %w", err)
	}
	return econ, nil
}
