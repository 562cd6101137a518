// Package store holds the gateway's authoritative state: accounts,
// contracts, orders, positions and trades. The in-memory implementation is
// the source of truth for a run; Journal implementations export fills to
// external systems and are never read back.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/model"
)

var (
	// ErrNotFound is returned (wrapped) when a lookup misses.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicatePosition is returned when a second position would be
	// created for the same (account, contract) pair.
	ErrDuplicatePosition = errors.New("store: position already exists for account and contract")
)

// Store is the state interface consumed by the engine, hubs and API.
// Reads return copies; callers mutate through the Update methods.
type Store interface {
	// --- Accounts ---

	AddAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	// ListAccounts returns all accounts, or only those that can trade and
	// are visible when onlyActive is set.
	ListAccounts(ctx context.Context, onlyActive bool) ([]model.Account, error)
	// AdjustBalance adds delta to the account balance and returns the
	// updated account.
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*model.Account, error)

	// --- Contracts ---

	AddContract(ctx context.Context, c *model.Contract) error
	GetContract(ctx context.Context, id string) (*model.Contract, error)
	// SearchContracts filters by case-insensitive substring of name,
	// description or symbol, and by the active flag when liveOnly is set.
	SearchContracts(ctx context.Context, text string, liveOnly bool) ([]model.Contract, error)

	// --- Orders ---

	// CreateOrder assigns the next order id and persists o.
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrder(ctx context.Context, o *model.Order) error
	// ListOrders returns the account's orders created within [start, end].
	// A zero bound is open.
	ListOrders(ctx context.Context, accountID int64, start, end time.Time) ([]model.Order, error)
	ListOpenOrders(ctx context.Context, accountID int64) ([]model.Order, error)

	// --- Positions ---

	// CreatePosition assigns the next position id. At most one position
	// may exist per (account, contract).
	CreatePosition(ctx context.Context, p *model.Position) error
	GetPosition(ctx context.Context, id int64) (*model.Position, error)
	FindPosition(ctx context.Context, accountID int64, contractID string) (*model.Position, error)
	UpdatePosition(ctx context.Context, p *model.Position) error
	DeletePosition(ctx context.Context, id int64) error
	ListPositions(ctx context.Context, accountID int64) ([]model.Position, error)

	// --- Trades (append-only) ---

	CreateTrade(ctx context.Context, t *model.Trade) error
	ListTrades(ctx context.Context, accountID int64, start, end time.Time) ([]model.Trade, error)

	Stats(ctx context.Context) Stats
}

// Stats is a row count per table.
type Stats struct {
	Accounts  int `json:"accounts"`
	Contracts int `json:"contracts"`
	Orders    int `json:"orders"`
	Positions int `json:"positions"`
	Trades    int `json:"trades"`
}

// Journal receives a copy of every fill for export.
type Journal interface {
	RecordFill(ctx context.Context, o *model.Order, t *model.Trade) error
}

// NopJournal discards everything.
type NopJournal struct{}

func (NopJournal) RecordFill(context.Context, *model.Order, *model.Trade) error { return nil }
