// internal/bond/trade.go
package bond

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/types"
)

func (e *Engine) token(id types.Address) (EconomyToken, error) {
	tok, ok := e.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTokenNotFound, id)
	}
	return tok, nil
}

// Buy deposits reserve asset into an economy and mints the curve's return
// to caller. The optional referrer is passed to the fee policy.
func (e *Engine) Buy(ctx context.Context, caller, token types.Address, deposit, minReturn types.Amount, referrer types.Address) (types.Amount, error) {
	start := time.Now()
	ctx, leave, err := e.enter(ctx, "buy")
	if err != nil {
		return types.Zero(), err
	}
	defer leave()

	j := &journal{}
	q, err := e.buy(ctx, j, caller, token, deposit, minReturn, referrer)
	if err = e.finish(ctx, j, "buy", start, err); err != nil {
		e.logger.Warn("Buy rejected",
			zap.String("caller", caller.String()),
			zap.String("token", token.String()),
			zap.String("deposit", types.OrZero(deposit).String()),
			zap.String("min_return", types.OrZero(minReturn).String()),
			zap.Error(err))
		return types.Zero(), err
	}

	e.commitTrade(events.TokensBought, caller, token, referrer, q)
	return q.AmountOut, nil
}

func (e *Engine) buy(ctx context.Context, j *journal, caller, token types.Address, deposit, minReturn types.Amount, referrer types.Address) (Quote, error) {
	if err := e.ready(); err != nil {
		return Quote{}, err
	}
	if caller.IsZero() {
		return Quote{}, fmt.Errorf("%w: caller is required", types.ErrInvalidParams)
	}
	q, err := e.quoteBuy(token, deposit, referrer)
	if err != nil {
		return Quote{}, err
	}
	if err := types.CheckSlippage(q.AmountOut, minReturn); err != nil {
		return Quote{}, err
	}
	tok, err := e.token(token)
	if err != nil {
		return Quote{}, err
	}

	e.logger.Debug("Buy computed",
		zap.String("token", token.String()),
		zap.String("deposit", q.AmountIn.String()),
		zap.String("fee", q.Fee.String()),
		zap.String("mint", q.AmountOut.String()))

	// effects
	net := q.AmountIn.Sub(q.Fee)
	if err := e.ledger.Credit(token, net); err != nil {
		return Quote{}, err
	}
	j.push("credit reserve", func(context.Context) error {
		return e.ledger.Debit(token, net)
	})
	minted := q.AmountOut.BigInt()
	if _, err := e.registry.SupplyBump(token, minted); err != nil {
		return Quote{}, err
	}
	j.push("bump supply", func(context.Context) error {
		_, err := e.registry.SupplyBump(token, new(big.Int).Neg(minted))
		return err
	})

	// interactions
	e.interact(ctx)
	if err := e.reserve.TransferFrom(ctx, caller, e.cfg.Address, q.AmountIn); err != nil {
		return Quote{}, fmt.Errorf("pull deposit: %w", err)
	}
	j.push("refund deposit", func(ctx context.Context) error {
		return e.reserve.Transfer(ctx, caller, q.AmountIn)
	})
	if err := tok.Mint(ctx, caller, q.AmountOut); err != nil {
		return Quote{}, fmt.Errorf("mint: %w", err)
	}
	if q.Fee.IsPositive() {
		j.push("burn minted", func(ctx context.Context) error {
			return tok.Burn(ctx, caller, q.AmountOut)
		})
		if err := e.reserve.Transfer(ctx, q.FeeRecipient, q.Fee); err != nil {
			return Quote{}, fmt.Errorf("pay fee: %w", err)
		}
	}
	return q, nil
}

// Sell burns amount of an economy's token from caller and pays out the
// curve's reserve return, net of fees.
func (e *Engine) Sell(ctx context.Context, caller, token types.Address, amount, minReturn types.Amount) (types.Amount, error) {
	start := time.Now()
	ctx, leave, err := e.enter(ctx, "sell")
	if err != nil {
		return types.Zero(), err
	}
	defer leave()

	j := &journal{}
	q, err := e.sell(ctx, j, caller, token, amount, minReturn)
	if err = e.finish(ctx, j, "sell", start, err); err != nil {
		e.logger.Warn("Sell rejected",
			zap.String("caller", caller.String()),
			zap.String("token", token.String()),
			zap.String("amount", types.OrZero(amount).String()),
			zap.String("min_return", types.OrZero(minReturn).String()),
			zap.Error(err))
		return types.Zero(), err
	}

	e.commitTrade(events.TokensSold, caller, token, types.ZeroAddress, q)
	return q.AmountOut, nil
}

func (e *Engine) sell(ctx context.Context, j *journal, caller, token types.Address, amount, minReturn types.Amount) (Quote, error) {
	if err := e.ready(); err != nil {
		return Quote{}, err
	}
	if caller.IsZero() {
		return Quote{}, fmt.Errorf("%w: caller is required", types.ErrInvalidParams)
	}
	q, err := e.quoteSell(token, amount)
	if err != nil {
		return Quote{}, err
	}
	if err := types.CheckSlippage(q.AmountOut, minReturn); err != nil {
		return Quote{}, err
	}
	tok, err := e.token(token)
	if err != nil {
		return Quote{}, err
	}
	gross := q.AmountOut.Add(q.Fee)

	e.logger.Debug("Sell computed",
		zap.String("token", token.String()),
		zap.String("amount", q.AmountIn.String()),
		zap.String("withdraw", gross.String()),
		zap.String("fee", q.Fee.String()))

	// effects
	if err := e.ledger.Debit(token, gross); err != nil {
		return Quote{}, err
	}
	j.push("debit reserve", func(context.Context) error {
		return e.ledger.Credit(token, gross)
	})
	burned := q.AmountIn.BigInt()
	if _, err := e.registry.SupplyBump(token, new(big.Int).Neg(burned)); err != nil {
		return Quote{}, err
	}
	j.push("drop supply", func(context.Context) error {
		_, err := e.registry.SupplyBump(token, burned)
		return err
	})

	// interactions
	e.interact(ctx)
	if err := tok.Burn(ctx, caller, q.AmountIn); err != nil {
		return Quote{}, fmt.Errorf("burn: %w", err)
	}
	j.push("restore burned", func(ctx context.Context) error {
		return tok.Mint(ctx, caller, q.AmountIn)
	})
	if err := e.reserve.Transfer(ctx, caller, q.AmountOut); err != nil {
		return Quote{}, fmt.Errorf("pay out: %w", err)
	}
	if q.Fee.IsPositive() {
		// Reclaiming the payout needs an allowance from caller; without one
		// the rollback reports the shortfall.
		j.push("reclaim payout", func(ctx context.Context) error {
			return e.reserve.TransferFrom(ctx, caller, e.cfg.Address, q.AmountOut)
		})
		if err := e.reserve.Transfer(ctx, q.FeeRecipient, q.Fee); err != nil {
			return Quote{}, fmt.Errorf("pay fee: %w", err)
		}
	}
	return q, nil
}

func (e *Engine) commitTrade(typ events.EventType, caller, token, referrer types.Address, q Quote) {
	s, err := e.state(token)
	if err != nil {
		e.logger.Error("Read after commit failed", zap.String("token", token.String()), zap.Error(err))
		return
	}
	ev := events.TradeEvent{
		BaseEvent:    events.BaseEvent{EventType: typ, EventTime: e.now()},
		Token:        token,
		Account:      caller,
		Referrer:     referrer,
		AmountIn:     q.AmountIn,
		AmountOut:    q.AmountOut,
		Fee:          q.Fee,
		FeeRecipient: q.FeeRecipient,
		ReserveAfter: s.Reserve,
		SupplyAfter:  s.CurrentSupply,
		PricePPM:     s.PricePPM,
	}

	e.logger.Info("Trade committed",
		zap.String("side", ev.Side()),
		zap.String("token", token.String()),
		zap.String("account", caller.String()),
		zap.String("amount_in", q.AmountIn.String()),
		zap.String("amount_out", q.AmountOut.String()),
		zap.String("reserve", s.Reserve.String()),
		zap.String("supply", s.CurrentSupply.String()),
		zap.String("price_ppm", s.PricePPM.String()))

	e.publish(ev)
	e.recordEconomy(s)
}
