// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/bond"
	"github.com/Musing-io/musing-protocol/internal/events"
	"github.com/Musing-io/musing-protocol/internal/storage"
	"github.com/Musing-io/musing-protocol/internal/token"
	"github.com/Musing-io/musing-protocol/internal/types"
	"github.com/Musing-io/musing-protocol/internal/utils/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Engine is the part of the bond engine the API drives.
type Engine interface {
	Address() types.Address
	Init(ctx context.Context) error
	Initialized(ctx context.Context) bool
	CreateEconomy(ctx context.Context, caller types.Address, p bond.CreateParams) (types.Address, error)
	Economy(ctx context.Context, token types.Address) (bond.State, error)
	Economies(ctx context.Context) ([]bond.State, error)
	Price(ctx context.Context, token types.Address) (types.Amount, error)
	ReserveBalance(ctx context.Context, token types.Address) (types.Amount, error)
	QuoteBuy(ctx context.Context, token types.Address, deposit types.Amount, referrer types.Address) (bond.Quote, error)
	QuoteSell(ctx context.Context, token types.Address, amount types.Amount) (bond.Quote, error)
	Buy(ctx context.Context, caller, token types.Address, deposit, minReturn types.Amount, referrer types.Address) (types.Amount, error)
	Sell(ctx context.Context, caller, token types.Address, amount, minReturn types.Amount) (types.Amount, error)
}

// ReserveToken is the reserve asset as seen by its holders.
type ReserveToken interface {
	Approve(owner, spender types.Address, amount types.Amount) error
	Transfer(from, to types.Address, amount types.Amount) error
	Allowance(owner, spender types.Address) types.Amount
	BalanceOf(holder types.Address) types.Amount
}

// TokenDirectory resolves deployed economy tokens.
type TokenDirectory interface {
	Token(addr types.Address) (*token.Fungible, bool)
}

// EventStats reports the state of the event bus.
type EventStats interface {
	Stats() events.Stats
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	engine  Engine
	reserve ReserveToken
	tokens  TokenDirectory
	store   storage.Storage
	events  EventStats
	logger  *logger.Logger
}

// NewHandlers creates a new handlers instance. store may be nil.
func NewHandlers(engine Engine, reserve ReserveToken, tokens TokenDirectory, store storage.Storage, log *zap.Logger) *Handlers {
	if store == nil {
		store = storage.Noop{}
	}
	return &Handlers{
		engine:  engine,
		reserve: reserve,
		tokens:  tokens,
		store:   store,
		logger:  logger.Wrap(log.Named("handlers")),
	}
}

// WithEvents adds bus statistics to /health.
func (h *Handlers) WithEvents(bus EventStats) *Handlers {
	h.events = bus
	return h
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.Error("Request failed",
			zap.String("request_id", requestID(r)),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   err.Error(),
		RequestID: requestID(r),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handlers) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", types.ErrInvalidParams, err)
	}
	return nil
}

func caller(r *http.Request) (types.Address, error) {
	acct := types.Address(r.Header.Get(AccountHeader))
	if acct.IsZero() {
		return "", errMissingAccount
	}
	return acct, nil
}

func tokenVar(r *http.Request) types.Address {
	return types.Address(mux.Vars(r)["token"])
}

// optionalAmount parses s, treating an empty string as zero.
func optionalAmount(s string) (types.Amount, error) {
	if s == "" {
		return types.Zero(), nil
	}
	return types.ParseAmount(s)
}

// minReturn resolves the trade floor: an explicit value wins, otherwise the
// slippage policy is applied to the quoted output.
func (h *Handlers) minReturn(explicit string, slippage *types.SlippageConfig, quote func() (bond.Quote, error)) (types.Amount, error) {
	if slippage == nil {
		return optionalAmount(explicit)
	}
	if explicit != "" {
		return types.Zero(), fmt.Errorf("%w: min_return and slippage are mutually exclusive", types.ErrInvalidParams)
	}
	q, err := quote()
	if err != nil {
		return types.Zero(), err
	}
	return types.MinReturn(q.AmountOut, *slippage)
}

func page(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultPageSize, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 || limit > maxPageSize {
			return 0, 0, fmt.Errorf("%w: limit must be 1..%d", types.ErrInvalidParams, maxPageSize)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: invalid offset", types.ErrInvalidParams)
		}
	}
	return limit, offset, nil
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Initialized: h.engine.Initialized(r.Context()),
		Engine:      h.engine.Address().String(),
		Timestamp:   time.Now().UTC(),
	}
	if resp.Initialized {
		if list, err := h.engine.Economies(r.Context()); err == nil {
			resp.Economies = len(list)
		}
	} else {
		resp.Status = "uninitialized"
	}
	if h.events != nil {
		stats := h.events.Stats()
		resp.Events = &stats
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Init handles POST /v1/init
func (h *Handlers) Init(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Init(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"engine": h.engine.Address().String()})
}

// CreateEconomy handles POST /v1/economies
func (h *Handlers) CreateEconomy(w http.ResponseWriter, r *http.Request) {
	acct, err := caller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req CreateEconomyRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	params, err := req.params()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tok, err := h.engine.CreateEconomy(r.Context(), acct, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.engine.Economy(r.Context(), tok)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.WithEconomy(st.ID, st.Symbol).Info("Economy created",
		zap.String("request_id", requestID(r)),
		zap.String("creator", acct.String()),
		zap.String("price_ppm", types.OrZero(st.PricePPM).String()))
	h.writeJSON(w, http.StatusCreated, economyView(st))
}

// ListEconomies handles GET /v1/economies
func (h *Handlers) ListEconomies(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Economies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]EconomyResponse, 0, len(list))
	for _, st := range list {
		out = append(out, economyView(st))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetEconomy handles GET /v1/economies/{token}
func (h *Handlers) GetEconomy(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Economy(r.Context(), tokenVar(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, economyView(st))
}

// Price handles GET /v1/economies/{token}/price
func (h *Handlers) Price(w http.ResponseWriter, r *http.Request) {
	tok := tokenVar(r)
	price, err := h.engine.Price(r.Context(), tok)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PriceResponse{
		Token:    tok.String(),
		PricePPM: price.String(),
		Price:    types.PPMToDecimal(price).String(),
	})
}

// ReserveBalance handles GET /v1/economies/{token}/reserve
func (h *Handlers) ReserveBalance(w http.ResponseWriter, r *http.Request) {
	tok := tokenVar(r)
	reserve, err := h.engine.ReserveBalance(r.Context(), tok)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{Token: tok.String(), Balance: reserve.String()})
}

// Quote handles GET /v1/economies/{token}/quote?side=buy|sell&amount=&referrer=
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := types.ParseAmount(q.Get("amount"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var quote bond.Quote
	switch side := q.Get("side"); side {
	case "", "buy":
		quote, err = h.engine.QuoteBuy(r.Context(), tokenVar(r), amount, types.Address(q.Get("referrer")))
	case "sell":
		quote, err = h.engine.QuoteSell(r.Context(), tokenVar(r), amount)
	default:
		err = fmt.Errorf("%w: unknown side %q", types.ErrInvalidParams, side)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quoteView(quote))
}

// Buy handles POST /v1/economies/{token}/buy
func (h *Handlers) Buy(w http.ResponseWriter, r *http.Request) {
	acct, err := caller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req BuyRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	deposit, err := types.ParseAmount(req.Deposit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	minReturn, err := h.minReturn(req.MinReturn, req.Slippage, func() (bond.Quote, error) {
		return h.engine.QuoteBuy(r.Context(), tokenVar(r), deposit, types.Address(req.Referrer))
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	minted, err := h.engine.Buy(r.Context(), acct, tokenVar(r), deposit, minReturn, types.Address(req.Referrer))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.WithAccount(acct).Info("Buy executed",
		zap.String("request_id", requestID(r)),
		zap.String("token", tokenVar(r).String()),
		zap.String("deposit", deposit.String()),
		zap.String("minted", minted.String()))
	h.writeTrade(w, r, "minted", minted)
}

// Sell handles POST /v1/economies/{token}/sell
func (h *Handlers) Sell(w http.ResponseWriter, r *http.Request) {
	acct, err := caller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req SellRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	minReturn, err := h.minReturn(req.MinReturn, req.Slippage, func() (bond.Quote, error) {
		return h.engine.QuoteSell(r.Context(), tokenVar(r), amount)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	paid, err := h.engine.Sell(r.Context(), acct, tokenVar(r), amount, minReturn)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.WithAccount(acct).Info("Sell executed",
		zap.String("request_id", requestID(r)),
		zap.String("token", tokenVar(r).String()),
		zap.String("amount", amount.String()),
		zap.String("paid", paid.String()))
	h.writeTrade(w, r, "paid", paid)
}

func (h *Handlers) writeTrade(w http.ResponseWriter, r *http.Request, key string, out types.Amount) {
	tok := tokenVar(r)
	resp := map[string]interface{}{key: out.String(), "token": tok.String()}
	if st, err := h.engine.Economy(r.Context(), tok); err == nil {
		resp["economy"] = economyView(st)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Trades handles GET /v1/economies/{token}/trades
func (h *Handlers) Trades(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recs, err := h.store.ListTrades(r.Context(), tokenVar(r).String(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]TradeResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, tradeView(rec))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Snapshots handles GET /v1/economies/{token}/snapshots
func (h *Handlers) Snapshots(w http.ResponseWriter, r *http.Request) {
	limit, _, err := page(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snaps, err := h.store.ListPriceSnapshots(r.Context(), tokenVar(r).String(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]SnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, SnapshotResponse{
			Token: s.Token, Reserve: s.Reserve, Supply: s.Supply, PricePPM: s.PricePPM, TakenAt: s.TakenAt,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// TokenBalance handles GET /v1/economies/{token}/balance/{account}
func (h *Handlers) TokenBalance(w http.ResponseWriter, r *http.Request) {
	tok := tokenVar(r)
	econ, ok := h.tokens.Token(tok)
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: %s", types.ErrTokenNotFound, tok))
		return
	}
	acct := types.Address(mux.Vars(r)["account"])
	h.writeJSON(w, http.StatusOK, BalanceResponse{
		Token:   tok.String(),
		Account: acct.String(),
		Balance: econ.BalanceOf(acct).String(),
	})
}

// Approve handles POST /v1/reserve/approve; the spender is always the engine.
func (h *Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	acct, err := caller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ApproveRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	spender := h.engine.Address()
	if err := h.reserve.Approve(acct, spender, amount); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     acct.String(),
		Spender:   spender.String(),
		Allowance: h.reserve.Allowance(acct, spender).String(),
	})
}

// Transfer handles POST /v1/reserve/transfer
func (h *Handlers) Transfer(w http.ResponseWriter, r *http.Request) {
	acct, err := caller(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req TransferRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to := types.Address(req.To)
	if err := h.reserve.Transfer(acct, to, amount); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{
		Account: acct.String(),
		Balance: h.reserve.BalanceOf(acct).String(),
	})
}

// ReserveAccountBalance handles GET /v1/reserve/balance/{account}
func (h *Handlers) ReserveAccountBalance(w http.ResponseWriter, r *http.Request) {
	acct := types.Address(mux.Vars(r)["account"])
	h.writeJSON(w, http.StatusOK, BalanceResponse{
		Account: acct.String(),
		Balance: h.reserve.BalanceOf(acct).String(),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:     http.StatusText(http.StatusNotFound),
		Code:      "endpoint_not_found",
		Message:   "The requested endpoint does not exist",
		RequestID: requestID(r),
		Timestamp: time.Now().UTC(),
	})
}

// MethodNotAllowed handles 405 responses
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:     http.StatusText(http.StatusMethodNotAllowed),
		Code:      "method_not_allowed",
		Message:   r.Method + " is not supported on " + r.URL.Path,
		RequestID: requestID(r),
		Timestamp: time.Now().UTC(),
	})
}
