package token

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Musing-io/musing-protocol/internal/types"
)

const (
	owner types.Address = "0x0wner"
	alice types.Address = "0xa11ce"
	bob   types.Address = "0xb0b"
)

func TestFungible_MintBurnOwnerOnly(t *testing.T) {
	tok := NewFungible("Musing", "MSG", "", owner)
	assert.True(t, strings.HasPrefix(tok.Address().String(), "0x"))

	require.NoError(t, tok.Mint(owner, alice, types.NewAmount(100)))
	assert.ErrorIs(t, tok.Mint(alice, alice, types.NewAmount(1)), types.ErrUnauthorized)
	assert.ErrorIs(t, tok.Burn(alice, alice, types.NewAmount(1)), types.ErrUnauthorized)
	assert.ErrorIs(t, tok.Burn(owner, alice, types.NewAmount(101)), types.ErrInsufficientBalance)

	require.NoError(t, tok.Burn(owner, alice, types.NewAmount(40)))
	assert.Equal(t, "60", tok.BalanceOf(alice).String())
	assert.Equal(t, "60", tok.TotalSupply().String())
}

func TestFungible_TransferFromNeedsAllowance(t *testing.T) {
	tok := NewFungible("Musing", "MSG", "0xmsg", owner)
	require.NoError(t, tok.Mint(owner, alice, types.NewAmount(100)))

	err := tok.TransferFrom(bob, alice, bob, types.NewAmount(10))
	assert.ErrorIs(t, err, types.ErrInsufficientApproval)

	require.NoError(t, tok.Approve(alice, bob, types.NewAmount(30)))
	require.NoError(t, tok.TransferFrom(bob, alice, bob, types.NewAmount(10)))
	assert.Equal(t, "20", tok.Allowance(alice, bob).String())
	assert.Equal(t, "90", tok.BalanceOf(alice).String())
	assert.Equal(t, "10", tok.BalanceOf(bob).String())

	// allowance above balance still fails on balance, and keeps the allowance
	require.NoError(t, tok.Approve(alice, bob, types.NewAmount(1000)))
	assert.ErrorIs(t, tok.TransferFrom(bob, alice, bob, types.NewAmount(500)), types.ErrInsufficientBalance)
	assert.Equal(t, "1000", tok.Allowance(alice, bob).String())
}

func TestFungible_TransferEdgeCases(t *testing.T) {
	tok := NewFungible("Musing", "MSG", "0xmsg", owner)
	require.NoError(t, tok.Mint(owner, alice, types.NewAmount(5)))

	assert.ErrorIs(t, tok.Transfer(alice, types.ZeroAddress, types.NewAmount(1)), types.ErrInvalidParams)
	assert.ErrorIs(t, tok.Transfer(alice, bob, types.NewAmount(6)), types.ErrInsufficientBalance)
	require.NoError(t, tok.Transfer(alice, alice, types.NewAmount(5)))
	assert.Equal(t, "5", tok.BalanceOf(alice).String())
	assert.ErrorIs(t, tok.Approve(types.ZeroAddress, bob, types.NewAmount(1)), types.ErrInvalidParams)
}

func TestHolder_ActsAsAccount(t *testing.T) {
	ctx := context.Background()
	tok := NewFungible("Musing", "MSG", "0xmsg", owner)
	require.NoError(t, tok.Mint(owner, alice, types.NewAmount(50)))
	require.NoError(t, tok.Approve(alice, bob, types.NewAmount(50)))

	h := tok.Holder(bob)
	assert.Equal(t, bob, h.Self())
	assert.Same(t, tok, h.Token())

	require.NoError(t, h.TransferFrom(ctx, alice, bob, types.NewAmount(20)))
	require.NoError(t, h.Transfer(ctx, alice, types.NewAmount(5)))
	assert.ErrorIs(t, h.Mint(ctx, bob, types.NewAmount(1)), types.ErrUnauthorized)

	bal, err := h.BalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "15", bal.String())
	supply, err := h.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "50", supply.String())
}

func TestFactory_Deploy(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(owner, zaptest.NewLogger(t))

	a, err := f.Deploy(ctx, "Alpha", "ALP")
	require.NoError(t, err)
	b, err := f.Deploy(ctx, "Beta", "BET")
	require.NoError(t, err)
	assert.NotEqual(t, a.Address(), b.Address())
	assert.Equal(t, 2, f.Tokens())

	require.NoError(t, a.Mint(ctx, alice, types.NewAmount(7)))
	tok, ok := f.Token(a.Address())
	require.True(t, ok)
	assert.Equal(t, "7", tok.BalanceOf(alice).String())
	assert.Equal(t, "ALP", tok.Symbol())

	_, err = f.Deploy(ctx, "", "X")
	assert.ErrorIs(t, err, types.ErrInvalidParams)
}
