// internal/api/contracts.go
package api

import (
	"fmt"
	"time"

	"github.com/Musing-io/musing-protocol/internal/bond"
	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/storage/models"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// Amounts travel as base-10 strings in base units.

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status      string        `json:"status"`
	Initialized bool          `json:"initialized"`
	Engine      string        `json:"engine"`
	Economies   int           `json:"economies"`
	Events      *events.Stats `json:"events,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

type CreateEconomyRequest struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MaxSupply     string `json:"max_supply"`
	ReserveAmount string `json:"reserve_amount"`
	InitialSupply string `json:"initial_supply"`
}

func (req CreateEconomyRequest) params() (bond.CreateParams, error) {
	p := bond.CreateParams{Name: req.Name, Symbol: req.Symbol}
	for _, f := range []struct {
		name string
		raw  string
		dst  *types.Amount
	}{
		{"max_supply", req.MaxSupply, &p.MaxSupply},
		{"reserve_amount", req.ReserveAmount, &p.ReserveAmount},
		{"initial_supply", req.InitialSupply, &p.InitialSupply},
	} {
		v, err := types.ParseAmount(f.raw)
		if err != nil {
			return bond.CreateParams{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

// BuyRequest and SellRequest take either an explicit min_return or a
// slippage policy applied to a fresh quote.
type BuyRequest struct {
	Deposit   string                `json:"deposit"`
	MinReturn string                `json:"min_return,omitempty"`
	Slippage  *types.SlippageConfig `json:"slippage,omitempty"`
	Referrer  string                `json:"referrer,omitempty"`
}

type SellRequest struct {
	Amount    string                `json:"amount"`
	MinReturn string                `json:"min_return,omitempty"`
	Slippage  *types.SlippageConfig `json:"slippage,omitempty"`
}

type ApproveRequest struct {
	Amount string `json:"amount"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type EconomyResponse struct {
	Token          string    `json:"token"`
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol"`
	Creator        string    `json:"creator"`
	WeightPPM      uint32    `json:"weight_ppm"`
	MaxSupply      string    `json:"max_supply"`
	Supply         string    `json:"supply"`
	Reserve        string    `json:"reserve"`
	PricePPM       string    `json:"price_ppm"`
	InitialSupply  string    `json:"initial_supply"`
	InitialReserve string    `json:"initial_reserve"`
	CreatedAt      time.Time `json:"created_at"`
}

func economyView(s bond.State) EconomyResponse {
	return EconomyResponse{
		Token:          s.ID.String(),
		Name:           s.Name,
		Symbol:         s.Symbol,
		Creator:        s.Creator.String(),
		WeightPPM:      s.WeightPPM,
		MaxSupply:      types.OrZero(s.MaxSupply).String(),
		Supply:         types.OrZero(s.CurrentSupply).String(),
		Reserve:        types.OrZero(s.Reserve).String(),
		PricePPM:       types.OrZero(s.PricePPM).String(),
		InitialSupply:  types.OrZero(s.CreatedSupply).String(),
		InitialReserve: types.OrZero(s.CreatedReserve).String(),
		CreatedAt:      s.CreatedAt,
	}
}

type PriceResponse struct {
	Token    string `json:"token"`
	PricePPM string `json:"price_ppm"`
	Price    string `json:"price"`
}

type BalanceResponse struct {
	Token   string `json:"token,omitempty"`
	Account string `json:"account,omitempty"`
	Balance string `json:"balance"`
}

type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type QuoteResponse struct {
	AmountIn      string `json:"amount_in"`
	Fee           string `json:"fee"`
	FeeRecipient  string `json:"fee_recipient,omitempty"`
	AmountOut     string `json:"amount_out"`
	ReserveAfter  string `json:"reserve_after"`
	SupplyAfter   string `json:"supply_after"`
	PricePPMAfter string `json:"price_ppm_after"`
}

func quoteView(q bond.Quote) QuoteResponse {
	return QuoteResponse{
		AmountIn:      types.OrZero(q.AmountIn).String(),
		Fee:           types.OrZero(q.Fee).String(),
		FeeRecipient:  q.FeeRecipient.String(),
		AmountOut:     types.OrZero(q.AmountOut).String(),
		ReserveAfter:  types.OrZero(q.ReserveAfter).String(),
		SupplyAfter:   types.OrZero(q.SupplyAfter).String(),
		PricePPMAfter: types.OrZero(q.PricePPMAfter).String(),
	}
}

type TradeResponse struct {
	Side         string    `json:"side"`
	Account      string    `json:"account"`
	AmountIn     string    `json:"amount_in"`
	AmountOut    string    `json:"amount_out"`
	Fee          string    `json:"fee"`
	FeeRecipient string    `json:"fee_recipient,omitempty"`
	Referrer     string    `json:"referrer,omitempty"`
	ReserveAfter string    `json:"reserve_after"`
	SupplyAfter  string    `json:"supply_after"`
	PricePPM     string    `json:"price_ppm"`
	ExecutedAt   time.Time `json:"executed_at"`
}

func tradeView(rec *models.TradeRecord) TradeResponse {
	return TradeResponse{
		Side:         rec.Side,
		Account:      rec.Account,
		AmountIn:     rec.AmountIn,
		AmountOut:    rec.AmountOut,
		Fee:          rec.Fee,
		FeeRecipient: rec.FeeRecipient,
		Referrer:     rec.Referrer,
		ReserveAfter: rec.ReserveAfter,
		SupplyAfter:  rec.SupplyAfter,
		PricePPM:     rec.PricePPM,
		ExecutedAt:   rec.ExecutedAt,
	}
}

type SnapshotResponse struct {
	Token    string    `json:"token"`
	Reserve  string    `json:"reserve"`
	Supply   string    `json:"supply"`
	PricePPM string    `json:"price_ppm"`
	TakenAt  time.Time `json:"taken_at"`
}
