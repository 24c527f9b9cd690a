// internal/registry/registry.go
package registry

import (
	"fmt"
	"math/big"
	"time"

	"github.com/Musing-io/musing-protocol/internal/curve"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// Economy is the immutable curve configuration of one continuous token plus
// its current circulating supply.
type Economy struct {
	ID             types.Address
	Name           string
	Symbol         string
	Token          types.Address
	Creator        types.Address
	WeightPPM      uint32
	MaxSupply      types.Amount
	CurrentSupply  types.Amount
	CreatedSupply  types.Amount
	CreatedReserve types.Amount
	CreatedAt      time.Time
}

// Params describes a new economy.
type Params struct {
	Name           string
	Symbol         string
	Token          types.Address
	Creator        types.Address
	WeightPPM      uint32
	MaxSupply      types.Amount
	InitialSupply  types.Amount
	InitialReserve types.Amount
	CreatedAt      time.Time
}

// Registry maps an economy id (its token address) to its parameters.
// It is not safe for concurrent use; the bond engine serialises access.
type Registry struct {
	economies map[types.Address]*Economy
	order     []types.Address
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{economies: make(map[types.Address]*Economy)}
}

// Register adds a new economy keyed by its token address.
func (r *Registry) Register(p Params) (Economy, error) {
	if p.Token.IsZero() {
		return Economy{}, fmt.Errorf("%w: empty token address", types.ErrInvalidParams)
	}
	if _, ok := r.economies[p.Token]; ok {
		return Economy{}, fmt.Errorf("%w: %s", types.ErrDuplicateEconomy, p.Token)
	}
	if err := curve.ValidateWeight(p.WeightPPM); err != nil {
		return Economy{}, err
	}
	maxSupply, initial := types.OrZero(p.MaxSupply), types.OrZero(p.InitialSupply)
	if !initial.IsPositive() {
		return Economy{}, fmt.Errorf("%w: initial supply must be positive", types.ErrInvalidAmount)
	}
	if initial.GT(maxSupply) {
		return Economy{}, types.NewSupplyCapError(types.ErrSupplyCapExceeded, types.Zero(), initial.String(), maxSupply)
	}

	e := &Economy{
		ID:             p.Token,
		Name:           p.Name,
		Symbol:         p.Symbol,
		Token:          p.Token,
		Creator:        p.Creator,
		WeightPPM:      p.WeightPPM,
		MaxSupply:      maxSupply,
		CurrentSupply:  initial,
		CreatedSupply:  initial,
		CreatedReserve: types.OrZero(p.InitialReserve),
		CreatedAt:      p.CreatedAt,
	}
	r.economies[e.ID] = e
	r.order = append(r.order, e.ID)
	return *e, nil
}

// Remove forgets an economy. Only used to undo a failed creation.
func (r *Registry) Remove(id types.Address) {
	if _, ok := r.economies[id]; !ok {
		return
	}
	delete(r.economies, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the economy.
func (r *Registry) Get(id types.Address) (Economy, error) {
	e, ok := r.economies[id]
	if !ok {
		return Economy{}, fmt.Errorf("%w: %s", types.ErrTokenNotFound, id)
	}
	return *e, nil
}

// List returns every economy in creation order.
func (r *Registry) List() []Economy {
	out := make([]Economy, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.economies[id])
	}
	return out
}

// Len returns the number of registered economies.
func (r *Registry) Len() int { return len(r.order) }

// CheckSupplyBump validates currentSupply + delta without applying it.
func (r *Registry) CheckSupplyBump(id types.Address, delta *big.Int) (types.Amount, error) {
	e, ok := r.economies[id]
	if !ok {
		return types.Zero(), fmt.Errorf("%w: %s", types.ErrTokenNotFound, id)
	}
	next := new(big.Int).Add(e.CurrentSupply.BigInt(), delta)
	if next.Sign() <= 0 {
		return types.Zero(), types.NewSupplyCapError(types.ErrSupplyUnderflow, e.CurrentSupply, delta.String(), e.MaxSupply)
	}
	if next.Cmp(e.MaxSupply.BigInt()) > 0 {
		return types.Zero(), types.NewSupplyCapError(types.ErrSupplyCapExceeded, e.CurrentSupply, delta.String(), e.MaxSupply)
	}
	return types.AmountFromBig(next)
}

// SupplyBump applies a signed change to the circulating supply, keeping
// 0 < supply <= maxSupply.
func (r *Registry) SupplyBump(id types.Address, delta *big.Int) (types.Amount, error) {
	next, err := r.CheckSupplyBump(id, delta)
	if err != nil {
		return types.Zero(), err
	}
	r.economies[id].CurrentSupply = next
	return next, nil
}
