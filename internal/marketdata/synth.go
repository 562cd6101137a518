// Package marketdata synthesizes quotes, tape prints and depth updates for
// contracts that have market hub subscribers.
package marketdata

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/hub"
	"github.com/atmx/gateway-sim/internal/metrics"
	"github.com/atmx/gateway-sim/internal/model"
)

// DefaultInterval is the time between synthesizer ticks.
const DefaultInterval = time.Second

const (
	tradeProbability = 0.3
	depthProbability = 0.5
	walkTicks        = 2
)

// Publisher is the market hub surface the synthesizer drives.
type Publisher interface {
	Publish(e hub.MarketEvent) int
	SubscribedContracts() []string
}

// ContractLookup resolves contract ids. store.Store implements it.
type ContractLookup interface {
	GetContract(ctx context.Context, id string) (*model.Contract, error)
}

// Options tunes a Synthesizer. Zero values select defaults.
type Options struct {
	Interval time.Duration
	Seed     uint64
}

// Synthesizer keeps a random-walk base price per contract and, on every
// tick, publishes one quote and possibly a trade and a depth update for
// each subscribed contract. Contracts nobody follows cost nothing.
type Synthesizer struct {
	hub       Publisher
	contracts ContractLookup
	interval  time.Duration
	now       func() time.Time

	mu     sync.Mutex // guards rng and prices
	rng    *rand.Rand
	prices map[string]decimal.Decimal

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// New creates a stopped synthesizer.
func New(h Publisher, contracts ContractLookup, opts Options) *Synthesizer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Synthesizer{
		hub:       h,
		contracts: contracts,
		interval:  opts.Interval,
		now:       func() time.Time { return time.Now().UTC() },
		rng:       rand.New(rand.NewPCG(opts.Seed, opts.Seed+1)),
		prices:    make(map[string]decimal.Decimal),
	}
}

// Start launches the tick loop. It returns false if already running.
func (s *Synthesizer) Start() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.stop != nil {
		return false
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)

	slog.Info("market data synthesizer started", "interval", s.interval.String())
	return true
}

// Stop halts the tick loop and waits for it to exit. It returns false if
// not running.
func (s *Synthesizer) Stop() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.stop == nil {
		return false
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil

	slog.Info("market data synthesizer stopped")
	return true
}

// Running reports whether the tick loop is active.
func (s *Synthesizer) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.stop != nil
}

func (s *Synthesizer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Tick generates one round of events and returns the number of contracts
// it produced data for.
func (s *Synthesizer) Tick(ctx context.Context) int {
	ids := s.hub.SubscribedContracts()
	if len(ids) == 0 {
		return 0
	}

	produced := 0
	for _, id := range ids {
		c, err := s.contracts.GetContract(ctx, id)
		if err != nil {
			continue
		}
		for _, e := range s.generate(*c) {
			s.hub.Publish(e)
		}
		produced++
	}
	if produced > 0 {
		metrics.MarketDataTicks.Inc()
	}
	return produced
}

// FillPrice returns the contract's current walked price, seeding it on
// first use. It satisfies order.PriceSource.
func (s *Synthesizer) FillPrice(c model.Contract) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base(c)
}

func (s *Synthesizer) generate(c model.Contract) []hub.MarketEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.walk(c)
	now := s.now()

	events := []hub.MarketEvent{hub.QuoteEvent{
		ContractID: c.ID,
		Quote: model.Quote{
			Symbol:        c.SymbolID,
			SymbolName:    c.Name,
			LastPrice:     price,
			BestBid:       price.Sub(s.between(0.25, 1)),
			BestAsk:       price.Add(s.between(0.25, 1)),
			Change:        s.between(-50, 50),
			ChangePercent: s.between(-2, 2),
			Open:          price.Sub(s.between(-20, 20)),
			High:          price.Add(s.between(0, 30)),
			Low:           price.Sub(s.between(0, 30)),
			Volume:        s.intBetween(1000, 50000),
			LastUpdated:   now,
			Timestamp:     now,
		},
	}}

	if s.rng.Float64() < tradeProbability {
		side := model.TradeLogTypeBuy
		if s.rng.IntN(2) == 1 {
			side = model.TradeLogTypeSell
		}
		events = append(events, hub.MarketTradeEvent{
			ContractID: c.ID,
			Trade: model.MarketTrade{
				SymbolID:  c.SymbolID,
				Price:     price.Add(s.between(-1, 1)),
				Timestamp: now,
				Type:      side,
				Volume:    s.intBetween(1, 10),
			},
		})
	}

	if s.rng.Float64() < depthProbability {
		dom := model.DomTypeBid
		if s.rng.IntN(2) == 1 {
			dom = model.DomTypeAsk
		}
		events = append(events, hub.DepthEvent{
			ContractID: c.ID,
			Level: model.DepthLevel{
				Timestamp:     now,
				Type:          dom,
				Price:         price.Add(s.between(-5, 5)),
				Volume:        s.intBetween(1, 100),
				CurrentVolume: s.intBetween(1, 50),
			},
		})
	}
	return events
}

// base returns the seeded price for c. Caller holds s.mu.
func (s *Synthesizer) base(c model.Contract) decimal.Decimal {
	if p, ok := s.prices[c.ID]; ok {
		return p
	}
	p := snap(s.between(4000, 5000), c.TickSize)
	s.prices[c.ID] = p
	return p
}

// walk moves c's price by up to walkTicks ticks, never below one tick.
// Caller holds s.mu.
func (s *Synthesizer) walk(c model.Contract) decimal.Decimal {
	tick := c.TickSize
	if !tick.IsPositive() {
		tick = decimal.RequireFromString("0.01")
	}
	steps := s.rng.IntN(2*walkTicks+1) - walkTicks
	p := s.base(c).Add(tick.Mul(decimal.NewFromInt(int64(steps))))
	if p.LessThan(tick) {
		p = tick
	}
	s.prices[c.ID] = p
	return p
}

func (s *Synthesizer) between(lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(lo + s.rng.Float64()*(hi-lo)).Round(2)
}

func (s *Synthesizer) intBetween(lo, hi int) int64 {
	return int64(lo + s.rng.IntN(hi-lo+1))
}

// snap rounds p to a multiple of tick.
func snap(p, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return p
	}
	return p.Div(tick).Round(0).Mul(tick)
}
