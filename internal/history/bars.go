// Package history synthesizes OHLCV bars for the history endpoint.
package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/model"
)

// MaxBars is the largest limit a request may ask for.
const MaxBars = 5000

var (
	ErrContractNotFound  = errors.New("history: contract not found")
	ErrUnitInvalid       = errors.New("history: unknown bar unit")
	ErrUnitNumberInvalid = errors.New("history: unit number must be positive")
	ErrLimitInvalid      = errors.New("history: limit out of range")
)

// ContractLookup resolves contract ids. store.Store implements it.
type ContractLookup interface {
	GetContract(ctx context.Context, id string) (*model.Contract, error)
}

// Request selects a bar series.
type Request struct {
	ContractID string
	StartTime  time.Time
	EndTime    time.Time
	Unit       model.BarUnit
	UnitNumber int
	Limit      int
}

// Generator produces random-walk bar series.
type Generator struct {
	contracts ContractLookup

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. The same seed yields the same series
// for the same sequence of requests.
func NewGenerator(contracts ContractLookup, seed uint64) *Generator {
	return &Generator{
		contracts: contracts,
		rng:       rand.New(rand.NewPCG(seed, seed^0x5bd1e995)),
	}
}

// Bars returns up to req.Limit bars from req.StartTime, one per interval,
// ending at or before req.EndTime.
func (g *Generator) Bars(ctx context.Context, req Request) ([]model.Bar, error) {
	if _, err := g.contracts.GetContract(ctx, req.ContractID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, req.ContractID)
	}
	if req.Limit <= 0 || req.Limit > MaxBars {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrLimitInvalid, req.Limit, MaxBars)
	}
	if req.UnitNumber <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrUnitNumberInvalid, req.UnitNumber)
	}
	step, err := Interval(req.Unit, req.UnitNumber)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	bars := make([]model.Bar, 0, min(req.Limit, 256))
	price := g.between(4000, 5000)
	for t := req.StartTime; !t.After(req.EndTime) && len(bars) < req.Limit; t = t.Add(step) {
		open := price
		last := open.Add(g.between(-50, 50))
		bars = append(bars, model.Bar{
			T: t.UTC(),
			O: open,
			H: decimal.Max(open, last).Add(g.between(0, 20)),
			L: decimal.Min(open, last).Sub(g.between(0, 20)),
			C: last,
			V: int64(100 + g.rng.IntN(10000-100+1)),
		})
		price = last
	}
	return bars, nil
}

// Interval returns the duration of n units. Unspecified falls back to
// minutes; a month is 30 days.
func Interval(unit model.BarUnit, n int) (time.Duration, error) {
	var base time.Duration
	switch unit {
	case model.BarUnitSecond:
		base = time.Second
	case model.BarUnitUnspecified, model.BarUnitMinute:
		base = time.Minute
	case model.BarUnitHour:
		base = time.Hour
	case model.BarUnitDay:
		base = 24 * time.Hour
	case model.BarUnitWeek:
		base = 7 * 24 * time.Hour
	case model.BarUnitMonth:
		base = 30 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnitInvalid, unit)
	}
	if int64(n) > math.MaxInt64/int64(base) {
		return 0, fmt.Errorf("%w: %d units overflow the bar step", ErrUnitNumberInvalid, n)
	}
	return base * time.Duration(n), nil
}

func (g *Generator) between(lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(lo + g.rng.Float64()*(hi-lo)).Round(2)
}
