// internal/token/fungible.go
package token

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Musing-io/musing-protocol/internal/types"
)

// Fungible is an in-memory fungible token: balances, allowances and an owner
// that alone may mint and burn. It backs both the reserve asset and every
// economy token outside of a real chain.
type Fungible struct {
	mu          sync.RWMutex
	name        string
	symbol      string
	address     types.Address
	owner       types.Address
	totalSupply types.Amount
	balances    map[types.Address]types.Amount
	allowances  map[types.Address]map[types.Address]types.Amount
}

// NewAddress returns a fresh random contract/account address.
func NewAddress() types.Address {
	id := uuid.New()
	return types.Address("0x" + hex.EncodeToString(id[:]))
}

// NewFungible creates an empty token owned by owner.
func NewFungible(name, symbol string, address, owner types.Address) *Fungible {
	if address.IsZero() {
		address = NewAddress()
	}
	return &Fungible{
		name:        name,
		symbol:      symbol,
		address:     address,
		owner:       owner,
		totalSupply: types.Zero(),
		balances:    make(map[types.Address]types.Amount),
		allowances:  make(map[types.Address]map[types.Address]types.Amount),
	}
}

func (f *Fungible) Name() string                   { return f.name }
func (f *Fungible) Symbol() string                 { return f.symbol }
func (f *Fungible) Address() types.Address         { return f.address }
func (f *Fungible) Owner() types.Address           { return f.owner }
func (f *Fungible) Decimals() int                  { return types.Decimals }
func (f *Fungible) Holder(a types.Address) *Holder { return &Holder{token: f, self: a} }

// TotalSupply returns the circulating supply.
func (f *Fungible) TotalSupply() types.Amount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.totalSupply
}

// BalanceOf returns holder's balance.
func (f *Fungible) BalanceOf(holder types.Address) types.Amount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.balanceOf(holder)
}

func (f *Fungible) balanceOf(holder types.Address) types.Amount {
	if b, ok := f.balances[holder]; ok {
		return b
	}
	return types.Zero()
}

// Allowance returns how much spender may move on owner's behalf.
func (f *Fungible) Allowance(owner, spender types.Address) types.Amount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.allowance(owner, spender)
}

func (f *Fungible) allowance(owner, spender types.Address) types.Amount {
	if m, ok := f.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return types.Zero()
}

// Approve sets spender's allowance over owner's balance.
func (f *Fungible) Approve(owner, spender types.Address, amount types.Amount) error {
	if owner.IsZero() || spender.IsZero() {
		return fmt.Errorf("%w: approve with empty address", types.ErrInvalidParams)
	}
	amount = types.OrZero(amount)
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative allowance", types.ErrInvalidAmount)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowances[owner] == nil {
		f.allowances[owner] = make(map[types.Address]types.Amount)
	}
	f.allowances[owner][spender] = amount
	return nil
}

// Transfer moves amount from one holder to another.
func (f *Fungible) Transfer(from, to types.Address, amount types.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transfer(from, to, amount)
}

// TransferFrom moves amount using spender's allowance over from.
func (f *Fungible) TransferFrom(spender, from, to types.Address, amount types.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	allowed := f.allowance(from, spender)
	if allowed.LT(types.OrZero(amount)) {
		return fmt.Errorf("%w: %s allowed %s to spend %s, needs %s",
			types.ErrInsufficientApproval, from, spender, allowed, amount)
	}
	if err := f.transfer(from, to, amount); err != nil {
		return err
	}
	f.allowances[from][spender] = allowed.Sub(amount)
	return nil
}

func (f *Fungible) transfer(from, to types.Address, amount types.Amount) error {
	amount = types.OrZero(amount)
	if to.IsZero() {
		return fmt.Errorf("%w: transfer to empty address", types.ErrInvalidParams)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative transfer", types.ErrInvalidAmount)
	}
	bal := f.balanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", types.ErrInsufficientBalance, from, bal, f.symbol, amount)
	}
	if from == to {
		return nil
	}
	credited, err := types.SafeAdd(f.balanceOf(to), amount)
	if err != nil {
		return err
	}
	f.balances[from] = bal.Sub(amount)
	f.balances[to] = credited
	return nil
}

// Mint creates amount for `to`. Only the owner may mint.
func (f *Fungible) Mint(caller, to types.Address, amount types.Amount) error {
	amount = types.OrZero(amount)
	if caller != f.owner {
		return fmt.Errorf("%w: %s cannot mint %s", types.ErrUnauthorized, caller, f.symbol)
	}
	if to.IsZero() {
		return fmt.Errorf("%w: mint to empty address", types.ErrInvalidParams)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative mint", types.ErrInvalidAmount)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	supply, err := types.SafeAdd(f.totalSupply, amount)
	if err != nil {
		return err
	}
	bal, err := types.SafeAdd(f.balanceOf(to), amount)
	if err != nil {
		return err
	}
	f.totalSupply = supply
	f.balances[to] = bal
	return nil
}

// Burn destroys amount held by `from`. Only the owner may burn.
func (f *Fungible) Burn(caller, from types.Address, amount types.Amount) error {
	amount = types.OrZero(amount)
	if caller != f.owner {
		return fmt.Errorf("%w: %s cannot burn %s", types.ErrUnauthorized, caller, f.symbol)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative burn", types.ErrInvalidAmount)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	bal := f.balanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s holds %s %s, burn needs %s", types.ErrInsufficientBalance, from, bal, f.symbol, amount)
	}
	f.balances[from] = bal.Sub(amount)
	f.totalSupply = f.totalSupply.Sub(amount)
	return nil
}

// Holder is a view of a Fungible bound to one account, the way a contract
// sees a token: every call is made "as" that account.
type Holder struct {
	token *Fungible
	self  types.Address
}

// Token returns the underlying token.
func (h *Holder) Token() *Fungible { return h.token }

// Self returns the account this view acts as.
func (h *Holder) Self() types.Address { return h.self }

func (h *Holder) Address() types.Address { return h.token.address }

func (h *Holder) TransferFrom(_ context.Context, from, to types.Address, amount types.Amount) error {
	return h.token.TransferFrom(h.self, from, to, amount)
}

func (h *Holder) Transfer(_ context.Context, to types.Address, amount types.Amount) error {
	return h.token.Transfer(h.self, to, amount)
}

func (h *Holder) BalanceOf(_ context.Context, holder types.Address) (types.Amount, error) {
	return h.token.BalanceOf(holder), nil
}

func (h *Holder) TotalSupply(_ context.Context) (types.Amount, error) {
	return h.token.TotalSupply(), nil
}

func (h *Holder) Mint(_ context.Context, to types.Address, amount types.Amount) error {
	return h.token.Mint(h.self, to, amount)
}

func (h *Holder) Burn(_ context.Context, from types.Address, amount types.Amount) error {
	return h.token.Burn(h.self, from, amount)
}
