package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/gateway-sim/internal/model"
)

type positionKey struct {
	accountID  int64
	contractID string
}

// MemoryStore implements Store with in-memory maps. It is the
// authoritative state for one process lifetime; nothing is persisted.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[int64]*model.Account
	contracts map[string]*model.Contract
	orders    map[int64]*model.Order
	positions map[int64]*model.Position
	byPair    map[positionKey]int64
	trades    []model.Trade

	nextOrderID    int64
	nextPositionID int64
	nextTradeID    int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:       make(map[int64]*model.Account),
		contracts:      make(map[string]*model.Contract),
		orders:         make(map[int64]*model.Order),
		positions:      make(map[int64]*model.Position),
		byPair:         make(map[positionKey]int64),
		nextOrderID:    1,
		nextPositionID: 1,
		nextTradeID:    1,
	}
}

// --- Accounts ---

func (s *MemoryStore) AddAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %d already exists", a.ID)
	}
	copy := *a
	s.accounts[a.ID] = &copy
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id int64) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context, onlyActive bool) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if onlyActive && !(a.CanTrade && a.IsVisible) {
			continue
		}
		accounts = append(accounts, *a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *MemoryStore) AdjustBalance(_ context.Context, id int64, delta decimal.Decimal) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	a.Balance = a.Balance.Add(delta)
	copy := *a
	return &copy, nil
}

// --- Contracts ---

func (s *MemoryStore) AddContract(_ context.Context, c *model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[c.ID]; ok {
		return fmt.Errorf("contract %s already exists", c.ID)
	}
	copy := *c
	s.contracts[c.ID] = &copy
	return nil
}

func (s *MemoryStore) GetContract(_ context.Context, id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", ErrNotFound, id)
	}
	copy := *c
	return &copy, nil
}

func (s *MemoryStore) SearchContracts(_ context.Context, text string, liveOnly bool) ([]model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(text)
	contracts := make([]model.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		if liveOnly && !c.ActiveContract {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Description), needle) &&
			!strings.Contains(strings.ToLower(c.SymbolID), needle) {
			continue
		}
		contracts = append(contracts, *c)
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
	return contracts, nil
}

// --- Orders ---

func (s *MemoryStore) CreateOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextOrderID
	s.nextOrderID++
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id int64) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		return fmt.Errorf("%w: order %d", ErrNotFound, o.ID)
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryStore) ListOrders(_ context.Context, accountID int64, start, end time.Time) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []model.Order
	for _, o := range s.orders {
		if o.AccountID != accountID || !inRange(o.CreationTimestamp, start, end) {
			continue
		}
		orders = append(orders, *cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (s *MemoryStore) ListOpenOrders(_ context.Context, accountID int64) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []model.Order
	for _, o := range s.orders {
		if o.AccountID == accountID && o.Status == model.OrderStatusOpen {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

// --- Positions ---

func (s *MemoryStore) CreatePosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey{p.AccountID, p.ContractID}
	if _, ok := s.byPair[key]; ok {
		return fmt.Errorf("%w: account %d contract %s", ErrDuplicatePosition, p.AccountID, p.ContractID)
	}
	if p.Size <= 0 {
		return fmt.Errorf("position size must be positive, got %d", p.Size)
	}

	p.ID = s.nextPositionID
	s.nextPositionID++
	copy := *p
	s.positions[p.ID] = &copy
	s.byPair[key] = p.ID
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id int64) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: position %d", ErrNotFound, id)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) FindPosition(_ context.Context, accountID int64, contractID string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[positionKey{accountID, contractID}]
	if !ok {
		return nil, fmt.Errorf("%w: position for account %d contract %s", ErrNotFound, accountID, contractID)
	}
	copy := *s.positions[id]
	return &copy, nil
}

func (s *MemoryStore) UpdatePosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.positions[p.ID]
	if !ok {
		return fmt.Errorf("%w: position %d", ErrNotFound, p.ID)
	}
	if p.Size <= 0 {
		return fmt.Errorf("position size must be positive, got %d", p.Size)
	}
	// The (account, contract) pair is fixed for the life of a record.
	existing.Type = p.Type
	existing.Size = p.Size
	existing.AveragePrice = p.AveragePrice
	return nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return fmt.Errorf("%w: position %d", ErrNotFound, id)
	}
	delete(s.byPair, positionKey{p.AccountID, p.ContractID})
	delete(s.positions, id)
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context, accountID int64) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, p := range s.positions {
		if p.AccountID == accountID {
			positions = append(positions, *p)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].ID < positions[j].ID })
	return positions, nil
}

// --- Trades ---

func (s *MemoryStore) CreateTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextTradeID
	s.nextTradeID++
	s.trades = append(s.trades, *t)
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context, accountID int64, start, end time.Time) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trades []model.Trade
	for _, t := range s.trades {
		if t.AccountID == accountID && inRange(t.CreationTimestamp, start, end) {
			trades = append(trades, t)
		}
	}
	return trades, nil
}

func (s *MemoryStore) Stats(_ context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Accounts:  len(s.accounts),
		Contracts: len(s.contracts),
		Orders:    len(s.orders),
		Positions: len(s.positions),
		Trades:    len(s.trades),
	}
}

func inRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.LimitPrice = cloneDecimal(o.LimitPrice)
	c.StopPrice = cloneDecimal(o.StopPrice)
	c.FilledPrice = cloneDecimal(o.FilledPrice)
	return &c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
