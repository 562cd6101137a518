// Package order implements the order lifecycle: placement, cancellation,
// modification, scheduled market fills, and the position and trade
// bookkeeping that follows a fill.
//
// All monetary values use shopspring/decimal.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/metrics"
	"github.com/atmx/gateway-sim/internal/model"
	"github.com/atmx/gateway-sim/internal/position"
	"github.com/atmx/gateway-sim/internal/store"
)

// DefaultFillDelay is how long a market order waits before it fills.
const DefaultFillDelay = 100 * time.Millisecond

// Publisher receives every entity the engine changes. The user hub
// implements it.
type Publisher interface {
	PublishAccount(a model.Account)
	PublishOrder(o model.Order)
	PublishPosition(p model.Position)
	PublishTrade(t model.Trade)
}

// PriceSource supplies the fill price for orders without a limit price.
type PriceSource interface {
	FillPrice(c model.Contract) decimal.Decimal
}

// PriceFunc adapts a function to PriceSource.
type PriceFunc func(c model.Contract) decimal.Decimal

func (f PriceFunc) FillPrice(c model.Contract) decimal.Decimal { return f(c) }

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	FillDelay time.Duration
	Journal   store.Journal
}

// Engine owns every order state transition. One mutex serializes all
// operations, including scheduled fills, so each runs to completion
// before the next starts.
type Engine struct {
	mu      sync.Mutex
	store   store.Store
	pub     Publisher
	prices  PriceSource
	journal store.Journal
	delay   time.Duration
	fills   *scheduler
	now     func() time.Time
}

// NewEngine creates an engine over st. pub and prices are required.
func NewEngine(st store.Store, pub Publisher, prices PriceSource, opts Options) *Engine {
	if opts.FillDelay <= 0 {
		opts.FillDelay = DefaultFillDelay
	}
	if opts.Journal == nil {
		opts.Journal = store.NopJournal{}
	}
	return &Engine{
		store:   st,
		pub:     pub,
		prices:  prices,
		journal: opts.Journal,
		delay:   opts.FillDelay,
		fills:   newScheduler(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PlaceRequest describes a new order.
type PlaceRequest struct {
	AccountID  int64
	ContractID string
	Type       model.OrderType
	Side       model.OrderSide
	Size       int
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal
	CustomTag  string
}

// ModifyRequest overwrites the non-nil fields of an open order.
type ModifyRequest struct {
	AccountID  int64
	OrderID    int64
	Size       *int
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal
}

// Place validates and stores a new order and returns its id. Market
// orders start Pending and fill after the configured delay; every other
// type starts Open and stays there until cancelled.
func (e *Engine) Place(ctx context.Context, req PlaceRequest) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.account(ctx, req.AccountID)
	if err != nil {
		return 0, e.reject("place", err)
	}
	c, err := e.store.GetContract(ctx, req.ContractID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, e.reject("place", fmt.Errorf("%w: %s", ErrContractNotFound, req.ContractID))
		}
		return 0, err
	}
	if !c.ActiveContract {
		return 0, e.reject("place", fmt.Errorf("%w: %s", ErrContractNotActive, c.ID))
	}
	if !acct.CanTrade {
		return 0, e.reject("place", fmt.Errorf("%w: %d", ErrAccountRejected, acct.ID))
	}
	if req.Size <= 0 {
		return 0, e.reject("place", fmt.Errorf("%w: got %d", ErrInvalidSize, req.Size))
	}
	if !req.Side.Valid() {
		return 0, e.reject("place", fmt.Errorf("%w: %d", ErrInvalidSide, req.Side))
	}
	// Close holds e.mu, so a market order accepted here is sure to be
	// scheduled below.
	if req.Type == model.OrderTypeMarket && e.fills.isClosed() {
		return 0, e.reject("place", ErrEngineClosed)
	}

	status := model.OrderStatusOpen
	if req.Type == model.OrderTypeMarket {
		status = model.OrderStatusPending
	}
	now := e.now()
	o := &model.Order{
		AccountID:         acct.ID,
		ContractID:        c.ID,
		SymbolID:          c.SymbolID,
		CreationTimestamp: now,
		UpdateTimestamp:   now,
		Status:            status,
		Type:              req.Type,
		Side:              req.Side,
		Size:              req.Size,
		LimitPrice:        req.LimitPrice,
		StopPrice:         req.StopPrice,
		FillVolume:        0,
		CustomTag:         req.CustomTag,
	}
	if err := e.store.CreateOrder(ctx, o); err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	slog.Info("order placed",
		"order_id", o.ID,
		"account_id", o.AccountID,
		"contract_id", o.ContractID,
		"type", o.Type.String(),
		"side", o.Side.String(),
		"size", o.Size,
	)
	metrics.OrdersPlaced.WithLabelValues(o.Type.String()).Inc()
	e.pub.PublishOrder(*o)

	if o.Type == model.OrderTypeMarket {
		e.fills.schedule(o.ID, e.delay, e.fill)
	}
	return o.ID, nil
}

// Cancel moves an Open or Pending order to Cancelled. A pending market
// fill is stopped.
func (e *Engine) Cancel(ctx context.Context, accountID, orderID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.account(ctx, accountID); err != nil {
		return e.reject("cancel", err)
	}
	o, err := e.owned(ctx, accountID, orderID)
	if err != nil {
		return e.reject("cancel", err)
	}
	if !o.Status.Working() {
		return e.reject("cancel", fmt.Errorf("%w: order %d is %s", ErrInvalidStatus, o.ID, o.Status))
	}

	e.fills.cancel(o.ID)
	o.Status = model.OrderStatusCancelled
	o.UpdateTimestamp = e.now()
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		return fmt.Errorf("cancel order %d: %w", o.ID, err)
	}

	slog.Info("order cancelled", "order_id", o.ID, "account_id", accountID)
	metrics.OrdersCancelled.Inc()
	e.pub.PublishOrder(*o)
	return nil
}

// Modify overwrites size and prices of an Open order. Pending market
// orders cannot be modified.
func (e *Engine) Modify(ctx context.Context, req ModifyRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.account(ctx, req.AccountID); err != nil {
		return e.reject("modify", err)
	}
	o, err := e.owned(ctx, req.AccountID, req.OrderID)
	if err != nil {
		return e.reject("modify", err)
	}
	if o.Status != model.OrderStatusOpen {
		return e.reject("modify", fmt.Errorf("%w: order %d is %s", ErrInvalidStatus, o.ID, o.Status))
	}
	if req.Size != nil && *req.Size <= 0 {
		return e.reject("modify", fmt.Errorf("%w: got %d", ErrInvalidSize, *req.Size))
	}

	if req.Size != nil {
		o.Size = *req.Size
	}
	if req.LimitPrice != nil {
		o.LimitPrice = req.LimitPrice
	}
	if req.StopPrice != nil {
		o.StopPrice = req.StopPrice
	}
	o.UpdateTimestamp = e.now()
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		return fmt.Errorf("modify order %d: %w", o.ID, err)
	}

	slog.Info("order modified", "order_id", o.ID, "size", o.Size)
	e.pub.PublishOrder(*o)
	return nil
}

// fill completes a scheduled order. It does nothing if the order is gone
// or no longer working, which covers a cancel that won the lock first.
func (e *Engine) fill(orderID int64) {
	ctx := context.Background()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fills.forget(orderID)

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		slog.Warn("fill skipped", "order_id", orderID, "err", err)
		return
	}
	if !o.Status.Working() {
		slog.Debug("fill skipped", "order_id", orderID, "status", o.Status.String())
		return
	}
	c, err := e.store.GetContract(ctx, o.ContractID)
	if err != nil {
		slog.Warn("fill skipped", "order_id", orderID, "err", err)
		return
	}

	var price decimal.Decimal
	if o.LimitPrice != nil {
		price = *o.LimitPrice
	} else {
		price = e.prices.FillPrice(*c)
	}
	now := e.now()

	o.Status = model.OrderStatusFilled
	o.FillVolume = o.Size
	o.FilledPrice = &price
	o.UpdateTimestamp = now
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		slog.Error("fill failed", "order_id", orderID, "err", err)
		return
	}
	slog.Info("order filled", "order_id", o.ID, "price", price.String(), "size", o.Size)
	metrics.Fills.WithLabelValues(o.Side.String()).Inc()
	metrics.FillLatency.Observe(now.Sub(o.CreationTimestamp).Seconds())
	e.pub.PublishOrder(*o)

	e.applyFill(ctx, position.Fill{
		AccountID:  o.AccountID,
		ContractID: o.ContractID,
		Side:       o.Side,
		Size:       o.Size,
		Price:      price,
		At:         now,
	})

	t, err := e.recordTrade(ctx, o, c, price, now)
	if err != nil {
		slog.Error("fill failed", "order_id", orderID, "err", err)
		return
	}
	e.settleFee(ctx, t)

	if err := e.journal.RecordFill(ctx, o, t); err != nil {
		slog.Error("journal write failed", "order_id", o.ID, "err", err)
	}
}

// applyFill nets f into the account's position and publishes every
// record it touches. A deleted record is published with size 0.
func (e *Engine) applyFill(ctx context.Context, f position.Fill) {
	existing, err := e.store.FindPosition(ctx, f.AccountID, f.ContractID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("position lookup failed", "account_id", f.AccountID, "contract_id", f.ContractID, "err", err)
			return
		}
		existing = nil
	}

	out := position.Net(existing, f)
	if out.Closed != nil {
		if err := e.removePosition(ctx, *out.Closed); err != nil {
			slog.Error("position delete failed", "position_id", out.Closed.ID, "err", err)
			return
		}
	}
	if out.Open == nil {
		return
	}

	if out.Created() {
		err = e.store.CreatePosition(ctx, out.Open)
		if err == nil {
			metrics.OpenPositions.Inc()
		}
	} else {
		err = e.store.UpdatePosition(ctx, out.Open)
	}
	if err != nil {
		slog.Error("position write failed", "account_id", f.AccountID, "contract_id", f.ContractID, "err", err)
		return
	}

	slog.Debug("position updated",
		"position_id", out.Open.ID,
		"type", out.Open.Type.String(),
		"size", out.Open.Size,
		"avg_price", out.Open.AveragePrice.String(),
		"flipped", out.Flipped(),
	)
	e.pub.PublishPosition(*out.Open)
}

// ClosePosition flattens the account's position in contractID.
func (e *Engine) ClosePosition(ctx context.Context, accountID int64, contractID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.account(ctx, accountID); err != nil {
		return e.reject("close", err)
	}
	p, err := e.position(ctx, accountID, contractID)
	if err != nil {
		return e.reject("close", err)
	}
	if _, err := e.store.GetContract(ctx, contractID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.reject("close", fmt.Errorf("%w: %s", ErrContractNotFound, contractID))
		}
		return err
	}

	if err := e.removePosition(ctx, *p); err != nil {
		return fmt.Errorf("close position %d: %w", p.ID, err)
	}
	slog.Info("position closed", "position_id", p.ID, "account_id", accountID, "contract_id", contractID)
	return nil
}

// PartialClosePosition shrinks the account's position by size, which
// must be strictly less than the current size.
func (e *Engine) PartialClosePosition(ctx context.Context, accountID int64, contractID string, size int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.account(ctx, accountID); err != nil {
		return e.reject("partial_close", err)
	}
	p, err := e.position(ctx, accountID, contractID)
	if err != nil {
		return e.reject("partial_close", err)
	}
	next, ok := position.Reduce(p, size)
	if !ok {
		return e.reject("partial_close", fmt.Errorf("%w: close %d of %d", ErrInvalidCloseSize, size, p.Size))
	}
	if err := e.store.UpdatePosition(ctx, &next); err != nil {
		return fmt.Errorf("partial close position %d: %w", p.ID, err)
	}

	slog.Info("position reduced", "position_id", p.ID, "closed", size, "remaining", next.Size)
	e.pub.PublishPosition(next)
	return nil
}

// PendingFills returns the number of market orders waiting to fill.
func (e *Engine) PendingFills() int {
	return e.fills.pending()
}

// Close stops every pending fill. Orders left Pending stay Pending.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n := e.fills.stopAll(); n > 0 {
		slog.Info("pending fills stopped", "count", n)
	}
}

func (e *Engine) removePosition(ctx context.Context, p model.Position) error {
	if err := e.store.DeletePosition(ctx, p.ID); err != nil {
		return err
	}
	metrics.OpenPositions.Dec()
	p.Size = 0
	e.pub.PublishPosition(p)
	return nil
}

func (e *Engine) account(ctx context.Context, id int64) (*model.Account, error) {
	a, err := e.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

func (e *Engine) owned(ctx context.Context, accountID, orderID int64) (*model.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	if o.AccountID != accountID {
		return nil, fmt.Errorf("%w: order %d", ErrNotOwner, orderID)
	}
	return o, nil
}

func (e *Engine) position(ctx context.Context, accountID int64, contractID string) (*model.Position, error) {
	p, err := e.store.FindPosition(ctx, accountID, contractID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %d contract %s", ErrPositionNotFound, accountID, contractID)
		}
		return nil, err
	}
	return p, nil
}

// reject counts and logs a validation failure, then returns err.
func (e *Engine) reject(op string, err error) error {
	metrics.OrdersRejected.WithLabelValues(op, reason(err)).Inc()
	slog.Debug("order operation rejected", "op", op, "err", err)
	return err
}

func reason(err error) string {
	for _, s := range []error{
		ErrAccountNotFound, ErrContractNotFound, ErrContractNotActive,
		ErrAccountRejected, ErrInvalidSize, ErrInvalidSide, ErrOrderNotFound,
		ErrNotOwner, ErrInvalidStatus, ErrPositionNotFound, ErrInvalidCloseSize,
		ErrEngineClosed,
	} {
		if errors.Is(err, s) {
			return s.Error()[len("order: "):]
		}
	}
	return "internal"
}
