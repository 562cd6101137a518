package hub

import (
	"log/slog"
	"net/http"

	"github.com/atmx/gateway-sim/internal/model"
)

type userMethod int

const (
	userSubscribeAccounts userMethod = iota + 1
	userUnsubscribeAccounts
	userSubscribeOrders
	userUnsubscribeOrders
	userSubscribePositions
	userUnsubscribePositions
	userSubscribeTrades
	userUnsubscribeTrades
)

var userMethods = map[string]userMethod{
	"SubscribeAccounts":    userSubscribeAccounts,
	"UnsubscribeAccounts":  userUnsubscribeAccounts,
	"SubscribeOrders":      userSubscribeOrders,
	"UnsubscribeOrders":    userUnsubscribeOrders,
	"SubscribePositions":   userSubscribePositions,
	"UnsubscribePositions": userUnsubscribePositions,
	"SubscribeTrades":      userSubscribeTrades,
	"UnsubscribeTrades":    userUnsubscribeTrades,
}

type userSubscription struct {
	accounts  bool
	orders    keySet[int64]
	positions keySet[int64]
	trades    keySet[int64]
}

func newUserSubscription() *userSubscription {
	return &userSubscription{
		orders:    keySet[int64]{},
		positions: keySet[int64]{},
		trades:    keySet[int64]{},
	}
}

// UserEvent is one of AccountEvent, OrderEvent, PositionEvent or
// TradeEvent.
type UserEvent interface {
	userEvent() string
	matches(s *userSubscription) bool
}

// AccountEvent goes to every connection subscribed to accounts.
type AccountEvent model.Account

// OrderEvent goes to order subscribers of the owning account.
type OrderEvent model.Order

// PositionEvent goes to position subscribers of the owning account. A
// size of zero means the position was closed.
type PositionEvent model.Position

// TradeEvent goes to trade subscribers of the owning account.
type TradeEvent model.Trade

func (AccountEvent) userEvent() string  { return "GatewayUserAccount" }
func (OrderEvent) userEvent() string    { return "GatewayUserOrder" }
func (PositionEvent) userEvent() string { return "GatewayUserPosition" }
func (TradeEvent) userEvent() string    { return "GatewayUserTrade" }

func (AccountEvent) matches(s *userSubscription) bool    { return s.accounts }
func (e OrderEvent) matches(s *userSubscription) bool    { return s.orders.has(e.AccountID) }
func (e PositionEvent) matches(s *userSubscription) bool { return s.positions.has(e.AccountID) }
func (e TradeEvent) matches(s *userSubscription) bool    { return s.trades.has(e.AccountID) }

// UserHub serves /hubs/user.
type UserHub struct {
	core *core[userSubscription]
}

// NewUserHub creates a user hub. mirror may be nil.
func NewUserHub(mirror Mirror) *UserHub {
	h := &UserHub{}
	h.core = newCore[userSubscription]("user", newUserSubscription, h.handle, mirror)
	return h
}

// ServeHTTP upgrades the request to a hub connection.
func (h *UserHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.core.serve(w, r)
}

// Publish delivers e to matching connections and returns how many it was
// queued for.
func (h *UserHub) Publish(e UserEvent) int {
	return h.core.broadcast(eventMessage{Type: typeEvent, Event: e.userEvent(), Data: e}, e.matches)
}

func (h *UserHub) PublishAccount(a model.Account)   { h.Publish(AccountEvent(a)) }
func (h *UserHub) PublishOrder(o model.Order)       { h.Publish(OrderEvent(o)) }
func (h *UserHub) PublishPosition(p model.Position) { h.Publish(PositionEvent(p)) }
func (h *UserHub) PublishTrade(t model.Trade)       { h.Publish(TradeEvent(t)) }

// Clients returns the number of live connections.
func (h *UserHub) Clients() int { return h.core.count() }

// Close disconnects every client.
func (h *UserHub) Close() { h.core.closeAll() }

func (h *UserHub) handle(c *client, raw []byte) (func(*userSubscription), bool) {
	inv, known, err := decodeInvocation(raw, userMethods)
	if err != nil {
		logDecodeError(h.core.name, c, err)
		return nil, false
	}
	if !known {
		slog.Warn("unknown hub method", "hub", h.core.name, "conn", c.id, "method", inv.name)
		return nil, false
	}

	switch inv.method {
	case userSubscribeAccounts:
		slog.Debug("subscribed", "hub", h.core.name, "conn", c.id, "method", inv.name)
		return func(s *userSubscription) { s.accounts = true }, true
	case userUnsubscribeAccounts:
		slog.Debug("unsubscribed", "hub", h.core.name, "conn", c.id, "method", inv.name)
		return func(s *userSubscription) { s.accounts = false }, true
	}

	id, err := accountArg(inv.args)
	if err != nil {
		logDecodeError(h.core.name, c, err)
		return nil, false
	}
	slog.Debug("subscription changed", "hub", h.core.name, "conn", c.id, "method", inv.name, "account_id", id)

	switch inv.method {
	case userSubscribeOrders:
		return func(s *userSubscription) { s.orders.add(id) }, true
	case userUnsubscribeOrders:
		return func(s *userSubscription) { s.orders.remove(id) }, true
	case userSubscribePositions:
		return func(s *userSubscription) { s.positions.add(id) }, true
	case userUnsubscribePositions:
		return func(s *userSubscription) { s.positions.remove(id) }, true
	case userSubscribeTrades:
		return func(s *userSubscription) { s.trades.add(id) }, true
	case userUnsubscribeTrades:
		return func(s *userSubscription) { s.trades.remove(id) }, true
	}
	return nil, false
}
