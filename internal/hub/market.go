package hub

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/atmx/gateway-sim/internal/model"
)

type marketMethod int

const (
	marketSubscribeQuotes marketMethod = iota + 1
	marketUnsubscribeQuotes
	marketSubscribeTrades
	marketUnsubscribeTrades
	marketSubscribeDepth
	marketUnsubscribeDepth
)

var marketMethods = map[string]marketMethod{
	"SubscribeContractQuotes":        marketSubscribeQuotes,
	"UnsubscribeContractQuotes":      marketUnsubscribeQuotes,
	"SubscribeContractTrades":        marketSubscribeTrades,
	"UnsubscribeContractTrades":      marketUnsubscribeTrades,
	"SubscribeContractMarketDepth":   marketSubscribeDepth,
	"UnsubscribeContractMarketDepth": marketUnsubscribeDepth,
}

type marketSubscription struct {
	quotes keySet[string]
	trades keySet[string]
	depth  keySet[string]
}

func newMarketSubscription() *marketSubscription {
	return &marketSubscription{
		quotes: keySet[string]{},
		trades: keySet[string]{},
		depth:  keySet[string]{},
	}
}

// MarketEvent is one of QuoteEvent, MarketTradeEvent or DepthEvent.
type MarketEvent interface {
	marketEvent() string
	contract() string
	payload() any
	matches(s *marketSubscription) bool
}

// QuoteEvent goes to quote subscribers of the contract.
type QuoteEvent struct {
	ContractID string
	Quote      model.Quote
}

// MarketTradeEvent goes to tape subscribers of the contract.
type MarketTradeEvent struct {
	ContractID string
	Trade      model.MarketTrade
}

// DepthEvent goes to depth subscribers of the contract.
type DepthEvent struct {
	ContractID string
	Level      model.DepthLevel
}

func (QuoteEvent) marketEvent() string       { return "GatewayQuote" }
func (MarketTradeEvent) marketEvent() string { return "GatewayTrade" }
func (DepthEvent) marketEvent() string       { return "GatewayDepth" }

func (e QuoteEvent) contract() string       { return e.ContractID }
func (e MarketTradeEvent) contract() string { return e.ContractID }
func (e DepthEvent) contract() string       { return e.ContractID }

func (e QuoteEvent) payload() any       { return e.Quote }
func (e MarketTradeEvent) payload() any { return e.Trade }
func (e DepthEvent) payload() any       { return e.Level }

func (e QuoteEvent) matches(s *marketSubscription) bool       { return s.quotes.has(e.ContractID) }
func (e MarketTradeEvent) matches(s *marketSubscription) bool { return s.trades.has(e.ContractID) }
func (e DepthEvent) matches(s *marketSubscription) bool       { return s.depth.has(e.ContractID) }

// MarketHub serves /hubs/market.
type MarketHub struct {
	core *core[marketSubscription]
}

// NewMarketHub creates a market hub. mirror may be nil.
func NewMarketHub(mirror Mirror) *MarketHub {
	h := &MarketHub{}
	h.core = newCore[marketSubscription]("market", newMarketSubscription, h.handle, mirror)
	return h
}

// ServeHTTP upgrades the request to a hub connection.
func (h *MarketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.core.serve(w, r)
}

// Publish delivers e to matching connections and returns how many it was
// queued for.
func (h *MarketHub) Publish(e MarketEvent) int {
	msg := eventMessage{
		Type:       typeEvent,
		Event:      e.marketEvent(),
		ContractID: e.contract(),
		Data:       e.payload(),
	}
	return h.core.broadcast(msg, e.matches)
}

// SubscribedContracts returns the sorted union of contract ids that any
// connection follows for quotes, trades or depth.
func (h *MarketHub) SubscribedContracts() []string {
	union := keySet[string]{}
	h.core.each(func(s *marketSubscription) {
		for _, set := range []keySet[string]{s.quotes, s.trades, s.depth} {
			for id := range set {
				union.add(id)
			}
		}
	})

	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clients returns the number of live connections.
func (h *MarketHub) Clients() int { return h.core.count() }

// Close disconnects every client.
func (h *MarketHub) Close() { h.core.closeAll() }

func (h *MarketHub) handle(c *client, raw []byte) (func(*marketSubscription), bool) {
	inv, known, err := decodeInvocation(raw, marketMethods)
	if err != nil {
		logDecodeError(h.core.name, c, err)
		return nil, false
	}
	if !known {
		slog.Warn("unknown hub method", "hub", h.core.name, "conn", c.id, "method", inv.name)
		return nil, false
	}

	id, err := contractArg(inv.args)
	if err != nil {
		logDecodeError(h.core.name, c, err)
		return nil, false
	}
	slog.Debug("subscription changed", "hub", h.core.name, "conn", c.id, "method", inv.name, "contract_id", id)

	switch inv.method {
	case marketSubscribeQuotes:
		return func(s *marketSubscription) { s.quotes.add(id) }, true
	case marketUnsubscribeQuotes:
		return func(s *marketSubscription) { s.quotes.remove(id) }, true
	case marketSubscribeTrades:
		return func(s *marketSubscription) { s.trades.add(id) }, true
	case marketUnsubscribeTrades:
		return func(s *marketSubscription) { s.trades.remove(id) }, true
	case marketSubscribeDepth:
		return func(s *marketSubscription) { s.depth.add(id) }, true
	case marketUnsubscribeDepth:
		return func(s *marketSubscription) { s.depth.remove(id) }, true
	}
	return nil, false
}
