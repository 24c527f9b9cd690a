// internal/token/factory.go
package token

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/bond"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// Factory deploys in-memory economy tokens owned by the bond engine.
type Factory struct {
	mu     sync.RWMutex
	owner  types.Address
	tokens map[types.Address]*Fungible
	logger *zap.Logger
}

// NewFactory creates a factory whose tokens are minted and burned by owner.
func NewFactory(owner types.Address, logger *zap.Logger) *Factory {
	return &Factory{
		owner:  owner,
		tokens: make(map[types.Address]*Fungible),
		logger: logger.Named("token_factory"),
	}
}

// Deploy creates a new economy token.
func (f *Factory) Deploy(_ context.Context, name, symbol string) (bond.EconomyToken, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: token name and symbol are required", types.ErrInvalidParams)
	}

	t := NewFungible(name, symbol, NewAddress(), f.owner)

	f.mu.Lock()
	f.tokens[t.Address()] = t
	f.mu.Unlock()

	f.logger.Debug("Economy token deployed",
		zap.String("name", name),
		zap.String("symbol", symbol),
		zap.String("address", t.Address().String()))

	return t.Holder(f.owner), nil
}

// Token looks up a deployed token.
func (f *Factory) Token(addr types.Address) (*Fungible, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tokens[addr]
	return t, ok
}

// Tokens returns the number of deployed tokens.
func (f *Factory) Tokens() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tokens)
}
