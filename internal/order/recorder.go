package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/model"
)

// FeeTicksPerContract is the illustrative fee model: every filled
// contract is charged this many tick values.
const FeeTicksPerContract = 2

// Fee returns the commission for a fill of size contracts.
func Fee(size int, tickValue decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(size)).
		Mul(tickValue).
		Mul(decimal.NewFromInt(FeeTicksPerContract))
}

// recordTrade appends the trade for a filled order and publishes it.
// Caller holds e.mu.
func (e *Engine) recordTrade(ctx context.Context, o *model.Order, c *model.Contract, price decimal.Decimal, at time.Time) (*model.Trade, error) {
	t := &model.Trade{
		AccountID:         o.AccountID,
		ContractID:        o.ContractID,
		CreationTimestamp: at,
		Price:             price,
		Fees:              Fee(o.Size, c.TickValue),
		Side:              o.Side,
		Size:              o.Size,
		Voided:            false,
		OrderID:           o.ID,
	}
	if err := e.store.CreateTrade(ctx, t); err != nil {
		return nil, fmt.Errorf("record trade for order %d: %w", o.ID, err)
	}

	slog.Info("trade recorded",
		"trade_id", t.ID,
		"order_id", o.ID,
		"account_id", t.AccountID,
		"contract_id", t.ContractID,
		"side", t.Side.String(),
		"size", t.Size,
		"price", t.Price.String(),
		"fees", t.Fees.String(),
	)
	e.pub.PublishTrade(*t)
	return t, nil
}

// settleFee charges the trade's fee to the account and publishes the new
// balance. Caller holds e.mu.
func (e *Engine) settleFee(ctx context.Context, t *model.Trade) {
	if t.Fees.IsZero() {
		return
	}
	acct, err := e.store.AdjustBalance(ctx, t.AccountID, t.Fees.Neg())
	if err != nil {
		slog.Error("fee settlement failed", "trade_id", t.ID, "account_id", t.AccountID, "err", err)
		return
	}
	e.pub.PublishAccount(*acct)
}
