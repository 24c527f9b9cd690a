// =============================
// File: internal/bond/engine.go
// =============================
package bond

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/curve"
	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/ledger"
	"github.com/Musing-io/musing-protocol/internal/registry"
	"github.com/Musing-io/musing-protocol/internal/types"
)

// DefaultWeightPPM is the connector weight of new economies (2%).
const DefaultWeightPPM uint32 = 20_000

// Trade statuses reported to the MetricsRecorder.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// Config holds the deployment constants of an engine.
type Config struct {
	// Address is the engine's own account on the reserve asset.
	Address types.Address
	// WeightPPM is the connector weight given to every new economy.
	WeightPPM uint32
}

// Engine is the bonding-curve market maker. It exclusively owns the reserve
// ledger and the economy registry; economy state is reachable only through
// its methods.
//
// Mutating operations are serialised. Each one validates and computes first,
// then applies its ledger and registry effects, and only then calls the
// reserve asset and economy token. A failing collaborator call undoes every
// step already taken.
type Engine struct {
	mu sync.RWMutex
	// interacting names the operation whose collaborators are running. Any
	// call arriving then without the operation's context is refused instead
	// of waiting on mu, which the operation holds.
	interacting atomic.Pointer[string]

	cfg       Config
	reserve   ReserveAsset
	factory   TokenFactory
	formula   curve.Formula
	ledger    *ledger.ReserveLedger
	registry  *registry.Registry
	tokens    map[types.Address]EconomyToken
	fees      FeePolicy
	publisher Publisher
	metrics   MetricsRecorder
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithFeePolicy sets the trade fee policy. The default is NoFee.
func WithFeePolicy(p FeePolicy) Option {
	return func(e *Engine) { e.fees = p }
}

// WithPublisher sets where committed events go.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. It must be initialised with Init before use.
func New(cfg Config, reserve ReserveAsset, factory TokenFactory, opts ...Option) *Engine {
	if cfg.WeightPPM == 0 {
		cfg.WeightPPM = DefaultWeightPPM
	}
	e := &Engine{
		cfg:       cfg,
		reserve:   reserve,
		factory:   factory,
		ledger:    ledger.NewReserveLedger(),
		registry:  registry.New(),
		tokens:    make(map[types.Address]EconomyToken),
		fees:      NoFee{},
		publisher: noopPublisher{},
		metrics:   noopMetrics{},
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("bond")
	return e
}

// Address returns the engine's own account.
func (e *Engine) Address() types.Address { return e.cfg.Address }

// WeightPPM returns the connector weight given to new economies.
func (e *Engine) WeightPPM() uint32 { return e.cfg.WeightPPM }

// opKey marks a context as belonging to an in-flight mutating operation.
type opKey struct{}

// enter serialises a mutating operation. A context already carrying the
// marker means a collaborator called back into the engine; so does any call
// made while an operation is talking to its collaborators.
func (e *Engine) enter(ctx context.Context, op string) (context.Context, func(), error) {
	if err := e.reentrant(ctx, op); err != nil {
		return ctx, nil, err
	}
	e.mu.Lock()
	leave := func() {
		e.interacting.Store(nil)
		e.mu.Unlock()
	}
	return context.WithValue(ctx, opKey{}, op), leave, nil
}

// view takes the read lock unless called from inside an operation, which
// already holds the write lock.
func (e *Engine) view(ctx context.Context) (func(), error) {
	if inside, _ := ctx.Value(opKey{}).(string); inside != "" {
		return func() {}, nil
	}
	if err := e.reentrant(ctx, "read"); err != nil {
		return nil, err
	}
	e.mu.RLock()
	return e.mu.RUnlock, nil
}

func (e *Engine) reentrant(ctx context.Context, op string) error {
	inside, _ := ctx.Value(opKey{}).(string)
	if inside == "" {
		if current := e.interacting.Load(); current != nil {
			inside = *current
		}
	}
	if inside == "" {
		return nil
	}
	e.logger.Warn("Re-entrant call rejected",
		zap.String("operation", op),
		zap.String("in_flight", inside))
	return fmt.Errorf("%w: %s during %s", types.ErrReentrantCall, op, inside)
}

// interact marks the start of the collaborator calls of op. The mark lasts
// until the operation leaves, so rollbacks are covered too.
func (e *Engine) interact(ctx context.Context) {
	if op, _ := ctx.Value(opKey{}).(string); op != "" {
		e.interacting.Store(&op)
	}
}

func (e *Engine) ready() error {
	if e.formula == nil {
		return types.ErrUninitialized
	}
	return nil
}

// Init binds the curve formula. It may only run once.
func (e *Engine) Init(ctx context.Context) error {
	_, leave, err := e.enter(ctx, "init")
	if err != nil {
		return err
	}
	defer leave()

	if e.formula != nil {
		return types.ErrAlreadyInitialized
	}
	if e.cfg.Address.IsZero() {
		return fmt.Errorf("%w: engine address is required", types.ErrInvalidParams)
	}
	if err := curve.ValidateWeight(e.cfg.WeightPPM); err != nil {
		return err
	}
	e.formula = curve.NewBancor()

	e.logger.Info("Bond engine initialised",
		zap.String("address", e.cfg.Address.String()),
		zap.Uint32("weight_ppm", e.cfg.WeightPPM))
	return nil
}

// Initialized reports whether Init has completed.
func (e *Engine) Initialized(ctx context.Context) bool {
	leave, err := e.view(ctx)
	if err != nil {
		// only an initialised engine reaches its interaction phase
		return true
	}
	defer leave()
	return e.formula != nil
}

// State is a consistent read of one economy.
type State struct {
	registry.Economy
	Reserve  types.Amount
	PricePPM types.Amount
}

func (e *Engine) state(id types.Address) (State, error) {
	econ, err := e.registry.Get(id)
	if err != nil {
		return State{}, err
	}
	reserve, err := e.ledger.BalanceOf(id)
	if err != nil {
		return State{}, err
	}
	price, err := curve.PricePPM(reserve, econ.CurrentSupply, econ.WeightPPM)
	if err != nil {
		return State{}, err
	}
	return State{Economy: econ, Reserve: reserve, PricePPM: price}, nil
}

// ReserveBalance returns the reserve held for an economy.
func (e *Engine) ReserveBalance(ctx context.Context, token types.Address) (types.Amount, error) {
	leave, err := e.view(ctx)
	if err != nil {
		return types.Zero(), err
	}
	defer leave()
	if err := e.ready(); err != nil {
		return types.Zero(), err
	}
	return e.ledger.BalanceOf(token)
}

// Price returns reserve / (supply * weight) in ppm, rounded down.
func (e *Engine) Price(ctx context.Context, token types.Address) (types.Amount, error) {
	leave, err := e.view(ctx)
	if err != nil {
		return types.Zero(), err
	}
	defer leave()
	if err := e.ready(); err != nil {
		return types.Zero(), err
	}
	s, err := e.state(token)
	if err != nil {
		return types.Zero(), err
	}
	return s.PricePPM, nil
}

// Economy returns the current state of one economy.
func (e *Engine) Economy(ctx context.Context, token types.Address) (State, error) {
	leave, err := e.view(ctx)
	if err != nil {
		return State{}, err
	}
	defer leave()
	if err := e.ready(); err != nil {
		return State{}, err
	}
	return e.state(token)
}

// Economies returns every economy in creation order.
func (e *Engine) Economies(ctx context.Context) ([]State, error) {
	leave, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()
	if err := e.ready(); err != nil {
		return nil, err
	}
	list := e.registry.List()
	out := make([]State, 0, len(list))
	for _, econ := range list {
		s, err := e.state(econ.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Quote is the outcome a trade would have against the current state.
type Quote struct {
	AmountIn      types.Amount
	Fee           types.Amount
	FeeRecipient  types.Address
	AmountOut     types.Amount
	ReserveAfter  types.Amount
	SupplyAfter   types.Amount
	PricePPMAfter types.Amount
}

// QuoteBuy evaluates a buy without applying it.
func (e *Engine) QuoteBuy(ctx context.Context, token types.Address, deposit types.Amount, referrer types.Address) (Quote, error) {
	leave, err := e.view(ctx)
	if err != nil {
		return Quote{}, err
	}
	defer leave()
	if err := e.ready(); err != nil {
		return Quote{}, err
	}
	return e.quoteBuy(token, deposit, referrer)
}

// QuoteSell evaluates a sell without applying it.
func (e *Engine) QuoteSell(ctx context.Context, token types.Address, amount types.Amount) (Quote, error) {
	leave, err := e.view(ctx)
	if err != nil {
		return Quote{}, err
	}
	defer leave()
	if err := e.ready(); err != nil {
		return Quote{}, err
	}
	return e.quoteSell(token, amount)
}

func (e *Engine) quoteBuy(token types.Address, deposit types.Amount, referrer types.Address) (Quote, error) {
	deposit = types.OrZero(deposit)
	if !deposit.IsPositive() {
		return Quote{}, fmt.Errorf("%w: deposit must be positive", types.ErrInvalidAmount)
	}
	s, err := e.state(token)
	if err != nil {
		return Quote{}, err
	}

	fee, recipient := e.fees.BuyFee(token, deposit, referrer)
	fee, err = checkFee(fee, deposit, recipient)
	if err != nil {
		return Quote{}, err
	}
	net := deposit.Sub(fee)

	minted, err := e.formula.PurchaseReturn(s.Reserve, s.CurrentSupply, s.WeightPPM, net)
	if err != nil {
		return Quote{}, err
	}
	if !minted.IsPositive() {
		return Quote{}, fmt.Errorf("%w: deposit %s mints nothing", types.ErrInvalidAmount, deposit)
	}
	supplyAfter, err := e.registry.CheckSupplyBump(token, minted.BigInt())
	if err != nil {
		return Quote{}, err
	}
	reserveAfter, err := types.SafeAdd(s.Reserve, net)
	if err != nil {
		return Quote{}, err
	}
	price, err := curve.PricePPM(reserveAfter, supplyAfter, s.WeightPPM)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		AmountIn:      deposit,
		Fee:           fee,
		FeeRecipient:  recipient,
		AmountOut:     minted,
		ReserveAfter:  reserveAfter,
		SupplyAfter:   supplyAfter,
		PricePPMAfter: price,
	}, nil
}

// quoteSell reports the payout net of fees in AmountOut; the reserve drops by
// the gross withdrawal.
func (e *Engine) quoteSell(token types.Address, amount types.Amount) (Quote, error) {
	amount = types.OrZero(amount)
	if !amount.IsPositive() {
		return Quote{}, fmt.Errorf("%w: sell amount must be positive", types.ErrInvalidAmount)
	}
	s, err := e.state(token)
	if err != nil {
		return Quote{}, err
	}
	supplyAfter, err := e.registry.CheckSupplyBump(token, new(big.Int).Neg(amount.BigInt()))
	if err != nil {
		return Quote{}, err
	}

	gross, err := e.formula.SaleReturn(s.Reserve, s.CurrentSupply, s.WeightPPM, amount)
	if err != nil {
		return Quote{}, err
	}
	if gross.GT(s.Reserve) {
		return Quote{}, fmt.Errorf("%w: withdrawal %s exceeds reserve %s", types.ErrReserveUnderflow, gross, s.Reserve)
	}

	fee, recipient := e.fees.SellFee(token, gross)
	fee, err = checkFee(fee, gross, recipient)
	if err != nil {
		return Quote{}, err
	}
	payout := gross.Sub(fee)
	if !payout.IsPositive() {
		return Quote{}, fmt.Errorf("%w: selling %s withdraws nothing", types.ErrInvalidAmount, amount)
	}

	reserveAfter := s.Reserve.Sub(gross)
	price, err := curve.PricePPM(reserveAfter, supplyAfter, s.WeightPPM)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		AmountIn:      amount,
		Fee:           fee,
		FeeRecipient:  recipient,
		AmountOut:     payout,
		ReserveAfter:  reserveAfter,
		SupplyAfter:   supplyAfter,
		PricePPMAfter: price,
	}, nil
}

// CheckSolvency verifies the engine holds at least as much reserve asset as
// its ledger owes across all economies.
func (e *Engine) CheckSolvency(ctx context.Context) error {
	leave, err := e.view(ctx)
	if err != nil {
		return err
	}
	defer leave()
	if err := e.ready(); err != nil {
		return err
	}
	owed, err := e.ledger.Total()
	if err != nil {
		return err
	}
	held, err := e.reserve.BalanceOf(ctx, e.cfg.Address)
	if err != nil {
		return fmt.Errorf("reserve balance: %w", err)
	}
	if types.OrZero(held).LT(owed) {
		return fmt.Errorf("%w: engine holds %s, ledger owes %s", types.ErrReserveUnderflow, held, owed)
	}
	return nil
}

// finish rolls back on failure and reports the trade outcome.
func (e *Engine) finish(ctx context.Context, j *journal, side string, start time.Time, err error) error {
	if err == nil {
		e.metrics.RecordTrade(side, StatusOK, time.Since(start))
		return nil
	}
	status := StatusRejected
	if len(j.steps) > 0 {
		status = StatusFailed
		if rbErr := j.rollback(ctx); rbErr != nil {
			e.logger.Error("Rollback incomplete",
				zap.String("operation", side),
				zap.Error(rbErr))
			err = fmt.Errorf("%w (%w)", err, rbErr)
		}
	}
	e.metrics.RecordTrade(side, status, time.Since(start))
	return err
}

func (e *Engine) publish(ev events.Event) {
	if err := e.publisher.Publish(ev); err != nil {
		e.logger.Warn("Failed to publish event",
			zap.String("event_type", string(ev.Type())),
			zap.Error(err))
	}
}

func (e *Engine) recordEconomy(s State) {
	e.metrics.RecordEconomy(s.ID.String(), s.Reserve, s.PricePPM)
}
