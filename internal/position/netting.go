// Package position implements position netting: combining a fill with an
// account's existing position in the same contract.
//
// Netting is direction-aware:
//   - same direction accumulates size and re-weights the average price
//   - opposite direction reduces size, keeping the average price
//   - an exact offset closes the position
//   - an overshoot closes the position and opens the opposite direction
//     with the excess, priced at the flipping fill
//
// Net is pure; the caller applies the Outcome to its store.
package position

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/model"
)

// PriceScale is the number of decimal places kept for average prices.
var PriceScale int32 = 8

// Fill is a fully-filled order as seen by the netting step.
type Fill struct {
	AccountID  int64
	ContractID string
	Side       model.OrderSide
	Size       int
	Price      decimal.Decimal
	At         time.Time
}

// Outcome describes what the store must do after a fill.
type Outcome struct {
	// Closed is the existing record to delete, nil if none.
	Closed *model.Position
	// Open is the record to keep: updated in place when it carries the
	// existing ID, created when ID is zero. Nil when the pair goes flat.
	Open *model.Position
}

// Created reports whether Open is a new record.
func (o Outcome) Created() bool {
	return o.Open != nil && o.Open.ID == 0
}

// Flipped reports whether the fill reversed the position's direction.
func (o Outcome) Flipped() bool {
	return o.Closed != nil && o.Open != nil
}

// Net applies f to existing (nil when no position) and returns the
// resulting change. existing is not modified.
func Net(existing *model.Position, f Fill) Outcome {
	if existing == nil {
		return Outcome{Open: open(f, model.DirectionOf(f.Side), f.Size)}
	}

	if existing.Type == model.DirectionOf(f.Side) {
		next := *existing
		next.Size = existing.Size + f.Size
		next.AveragePrice = weightedAverage(existing.AveragePrice, existing.Size, f.Price, f.Size)
		return Outcome{Open: &next}
	}

	delta := existing.Size - f.Size
	closed := *existing
	switch {
	case delta > 0:
		next := *existing
		next.Size = delta
		return Outcome{Open: &next}
	case delta == 0:
		return Outcome{Closed: &closed}
	default:
		return Outcome{
			Closed: &closed,
			Open:   open(f, existing.Type.Opposite(), -delta),
		}
	}
}

// Reduce shrinks p by size without a fill, as a partial close does.
// It returns false when size is not strictly between 0 and p.Size.
func Reduce(p *model.Position, size int) (model.Position, bool) {
	if size <= 0 || size >= p.Size {
		return *p, false
	}
	next := *p
	next.Size = p.Size - size
	return next, true
}

func open(f Fill, dir model.PositionType, size int) *model.Position {
	return &model.Position{
		AccountID:         f.AccountID,
		ContractID:        f.ContractID,
		CreationTimestamp: f.At,
		Type:              dir,
		Size:              size,
		AveragePrice:      f.Price,
	}
}

// weightedAverage computes (p1*q1 + p2*q2) / (q1+q2).
func weightedAverage(p1 decimal.Decimal, q1 int, p2 decimal.Decimal, q2 int) decimal.Decimal {
	d1 := decimal.NewFromInt(int64(q1))
	d2 := decimal.NewFromInt(int64(q2))
	total := p1.Mul(d1).Add(p2.Mul(d2))
	return total.Div(d1.Add(d2)).Round(PriceScale)
}
