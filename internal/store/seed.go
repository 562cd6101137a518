package store

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/contract"
	"github.com/atmx/gateway-sim/internal/model"
)

// SeedConfig controls synthetic reference data generation.
type SeedConfig struct {
	NumAccounts  int
	NumContracts int
	Seed         uint64
}

type accountTier struct {
	prefix  string
	balance int64
}

var accountTiers = []accountTier{
	{"50KTC", 50_000},
	{"100KTC", 100_000},
	{"150KTC", 150_000},
}

type contractTemplate struct {
	name, description string
	tickSize          string
	tickValue         string
	active            bool
	symbol            string
}

var contractTemplates = []contractTemplate{
	{"E-mini S&P 500 Mar 2025", "E-mini S&P 500 Futures March 2025", "0.25", "12.50", true, "F.US.EP"},
	{"E-mini S&P 500 Jun 2025", "E-mini S&P 500 Futures June 2025", "0.25", "12.50", true, "F.US.EP"},
	{"E-mini NASDAQ Mar 2025", "E-mini NASDAQ-100 Futures March 2025", "0.25", "5.00", true, "F.US.NQ"},
	{"E-mini NASDAQ Jun 2025", "E-mini NASDAQ-100 Futures June 2025", "0.25", "5.00", true, "F.US.NQ"},
	{"E-mini Russell 2000 Mar 2025", "E-mini Russell 2000 Futures March 2025", "0.10", "5.00", true, "F.US.RTY"},
	{"E-mini Dow Mar 2025", "E-mini Dow Jones Futures March 2025", "1.00", "5.00", true, "F.US.YM"},
	{"Crude Oil Mar 2025", "WTI Crude Oil Futures March 2025", "0.01", "10.00", true, "F.US.CL"},
	{"Crude Oil Apr 2025", "WTI Crude Oil Futures April 2025", "0.01", "10.00", false, "F.US.CL"},
	{"Gold Apr 2025", "Gold Futures April 2025", "0.10", "10.00", true, "F.US.GC"},
	{"Natural Gas Mar 2025", "Natural Gas Futures March 2025", "0.001", "10.00", true, "F.US.NG"},
	{"Euro FX Mar 2025", "Euro FX Futures March 2025", "0.00005", "6.25", true, "F.US.6E"},
	{"10-Year T-Note Mar 2025", "10-Year Treasury Note Futures March 2025", "0.015625", "15.625", true, "F.US.ZN"},
	{"Corn Mar 2025", "Corn Futures March 2025", "0.25", "12.50", true, "F.US.ZC"},
	{"Soybeans Mar 2025", "Soybean Futures March 2025", "0.25", "12.50", true, "F.US.ZS"},
	{"Bitcoin Mar 2025", "Bitcoin Futures March 2025", "5.00", "25.00", true, "F.US.BTC"},
	{"Micro E-mini S&P Mar 2025", "Micro E-mini S&P 500 Futures March 2025", "0.25", "1.25", true, "F.US.MES"},
	{"Micro E-mini NASDAQ Mar 2025", "Micro E-mini NASDAQ-100 Futures March 2025", "0.25", "0.50", true, "F.US.MNQ"},
}

var (
	quarterlies   = []time.Month{time.March, time.June, time.September, time.December}
	years         = []int{2025, 2026}
	extraRoots    = []string{"EP", "NQ", "RTY", "YM", "CL", "GC"}
	maxIDAttempts = 8
)

// Seed fills s with synthetic accounts and contracts. The same seed always
// produces the same data.
func Seed(ctx context.Context, s Store, cfg SeedConfig) error {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	for i := 0; i < cfg.NumAccounts; i++ {
		tier := accountTiers[i*len(accountTiers)/cfg.NumAccounts]
		a := &model.Account{
			ID:        int64(i + 1),
			Name:      fmt.Sprintf("%s-V2-%d-%d", tier.prefix, randRange(rng, 100000, 999999), randRange(rng, 10000000, 99999999)),
			Balance:   decimal.NewFromInt(tier.balance),
			CanTrade:  true,
			IsVisible: true,
			Simulated: true,
		}
		if err := s.AddAccount(ctx, a); err != nil {
			return fmt.Errorf("seed account %d: %w", a.ID, err)
		}
	}

	added := 0
	for i := 0; i < cfg.NumContracts && i < len(contractTemplates); i++ {
		t := contractTemplates[i]
		c := &model.Contract{
			Name:           t.name,
			Description:    t.description,
			TickSize:       decimal.RequireFromString(t.tickSize),
			TickValue:      decimal.RequireFromString(t.tickValue),
			ActiveContract: t.active,
			SymbolID:       t.symbol,
		}
		if addWithFreshID(ctx, s, rng, c) {
			added++
		}
	}

	for i := len(contractTemplates); i < cfg.NumContracts; i++ {
		root := extraRoots[rng.IntN(len(extraRoots))]
		c := &model.Contract{
			TickSize:       decimal.RequireFromString("0.25"),
			TickValue:      decimal.NewFromFloat(5 + rng.Float64()*20).Round(2),
			ActiveContract: rng.IntN(11) > 2,
			SymbolID:       "F.US." + root,
		}
		if addWithFreshID(ctx, s, rng, c) {
			added++
		}
	}

	slog.Info("reference data seeded", "accounts", cfg.NumAccounts, "contracts", added, "seed", cfg.Seed)
	return nil
}

// addWithFreshID draws quarterly expiries for c.SymbolID until an unused
// contract id is found. Gives up after maxIDAttempts collisions.
func addWithFreshID(ctx context.Context, s Store, rng *rand.Rand, c *model.Contract) bool {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := contract.Format(c.SymbolID, quarterlies[rng.IntN(len(quarterlies))], years[rng.IntN(len(years))])
		if err != nil {
			slog.Error("seed contract id", "symbol", c.SymbolID, "err", err)
			return false
		}
		if _, err := s.GetContract(ctx, id); err == nil {
			continue
		}
		c.ID = id
		if c.Name == "" {
			parsed, _ := contract.Parse(id)
			c.Name = contract.DisplayName(parsed)
			c.Description = "Futures Contract " + c.Name
		}
		return s.AddContract(ctx, c) == nil
	}
	return false
}

func randRange(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}
