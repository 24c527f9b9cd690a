// internal/bond/interfaces.go
package bond

import (
	"context"
	"time"

	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// ReserveAsset is the shared asset every economy is priced against, seen from
// the engine's own account.
type ReserveAsset interface {
	// TransferFrom moves amount from `from` to `to` using the allowance `from`
	// granted to the engine.
	TransferFrom(ctx context.Context, from, to types.Address, amount types.Amount) error
	// Transfer moves amount out of the engine's own balance.
	Transfer(ctx context.Context, to types.Address, amount types.Amount) error
	BalanceOf(ctx context.Context, holder types.Address) (types.Amount, error)
}

// EconomyToken is a deployed per-economy token the engine may mint and burn.
type EconomyToken interface {
	Address() types.Address
	Mint(ctx context.Context, to types.Address, amount types.Amount) error
	Burn(ctx context.Context, from types.Address, amount types.Amount) error
	TotalSupply(ctx context.Context) (types.Amount, error)
	BalanceOf(ctx context.Context, holder types.Address) (types.Amount, error)
}

// TokenFactory deploys new economy tokens owned by the engine.
type TokenFactory interface {
	Deploy(ctx context.Context, name, symbol string) (EconomyToken, error)
}

// Publisher receives committed engine events.
type Publisher interface {
	Publish(event events.Event) error
}

// MetricsRecorder observes engine activity.
type MetricsRecorder interface {
	RecordTrade(side, status string, duration time.Duration)
	RecordEconomy(token string, reserve, pricePPM types.Amount)
}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordTrade(string, string, time.Duration)        {}
func (noopMetrics) RecordEconomy(string, types.Amount, types.Amount) {}
