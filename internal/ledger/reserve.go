// internal/ledger/reserve.go
package ledger

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/Musing-io/musing-protocol/internal/types"
)

// ReserveLedger tracks how much reserve asset the engine holds for each economy.
// It is not safe for concurrent use; the bond engine serialises access.
type ReserveLedger struct {
	balances map[types.Address]types.Amount
}

// NewReserveLedger creates an empty ledger.
func NewReserveLedger() *ReserveLedger {
	return &ReserveLedger{balances: make(map[types.Address]types.Amount)}
}

// Open creates a zero entry for a new economy.
func (l *ReserveLedger) Open(id types.Address) error {
	if _, ok := l.balances[id]; ok {
		return fmt.Errorf("%w: reserve entry %s", types.ErrDuplicateEconomy, id)
	}
	l.balances[id] = types.Zero()
	return nil
}

// Close drops an entry. Only used to undo a failed economy creation.
func (l *ReserveLedger) Close(id types.Address) {
	delete(l.balances, id)
}

// Credit adds amount to the economy's reserve.
func (l *ReserveLedger) Credit(id types.Address, amount types.Amount) error {
	bal, ok := l.balances[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrTokenNotFound, id)
	}
	if types.OrZero(amount).IsNegative() {
		return fmt.Errorf("%w: negative credit", types.ErrInvalidAmount)
	}
	next, err := types.SafeAdd(bal, amount)
	if err != nil {
		return err
	}
	l.balances[id] = next
	return nil
}

// Debit removes amount from the economy's reserve.
func (l *ReserveLedger) Debit(id types.Address, amount types.Amount) error {
	bal, ok := l.balances[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrTokenNotFound, id)
	}
	amount = types.OrZero(amount)
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative debit", types.ErrInvalidAmount)
	}
	if amount.GT(bal) {
		return fmt.Errorf("%w: debit %s exceeds balance %s", types.ErrReserveUnderflow, amount, bal)
	}
	l.balances[id] = bal.Sub(amount)
	return nil
}

// BalanceOf returns the reserve held for an economy.
func (l *ReserveLedger) BalanceOf(id types.Address) (types.Amount, error) {
	bal, ok := l.balances[id]
	if !ok {
		return types.Zero(), fmt.Errorf("%w: %s", types.ErrTokenNotFound, id)
	}
	return bal, nil
}

// Total sums every reserve entry. The engine's real reserve-asset balance must
// never be below it.
func (l *ReserveLedger) Total() (types.Amount, error) {
	sum := new(big.Int)
	for _, bal := range l.balances {
		sum.Add(sum, bal.BigInt())
	}
	return types.AmountFromBig(sum)
}

// IDs returns the economies with a reserve entry in a stable order.
func (l *ReserveLedger) IDs() []types.Address {
	ids := make([]types.Address, 0, len(l.balances))
	for id := range l.balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
