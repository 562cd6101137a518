// Package model defines the core domain types shared across the gateway.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Gateway clients expect prices as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Account is a simulated trading account.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CanTrade  bool            `json:"canTrade"`
	IsVisible bool            `json:"isVisible"`
	Simulated bool            `json:"simulated"`
}

// Contract is a tradable futures contract. Read-only once seeded.
type Contract struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	TickSize       decimal.Decimal `json:"tickSize"`
	TickValue      decimal.Decimal `json:"tickValue"`
	ActiveContract bool            `json:"activeContract"`
	SymbolID       string          `json:"symbolId"`
}

// Order is a client order. Orders are never deleted; terminal orders stay
// queryable.
type Order struct {
	ID                int64            `json:"id"`
	AccountID         int64            `json:"accountId"`
	ContractID        string           `json:"contractId"`
	SymbolID          string           `json:"symbolId"`
	CreationTimestamp time.Time        `json:"creationTimestamp"`
	UpdateTimestamp   time.Time        `json:"updateTimestamp"`
	Status            OrderStatus      `json:"status"`
	Type              OrderType        `json:"type"`
	Side              OrderSide        `json:"side"`
	Size              int              `json:"size"`
	LimitPrice        *decimal.Decimal `json:"limitPrice,omitempty"`
	StopPrice         *decimal.Decimal `json:"stopPrice,omitempty"`
	FillVolume        int              `json:"fillVolume"`
	FilledPrice       *decimal.Decimal `json:"filledPrice,omitempty"`
	CustomTag         string           `json:"customTag,omitempty"`
}

// Position is the net holding of one account in one contract.
// Size is strictly positive while the record exists.
type Position struct {
	ID                int64           `json:"id"`
	AccountID         int64           `json:"accountId"`
	ContractID        string          `json:"contractId"`
	CreationTimestamp time.Time       `json:"creationTimestamp"`
	Type              PositionType    `json:"type"`
	Size              int             `json:"size"`
	AveragePrice      decimal.Decimal `json:"averagePrice"`
}

// Trade is an immutable half-turn execution record, one per fill.
type Trade struct {
	ID                int64            `json:"id"`
	AccountID         int64            `json:"accountId"`
	ContractID        string           `json:"contractId"`
	CreationTimestamp time.Time        `json:"creationTimestamp"`
	Price             decimal.Decimal  `json:"price"`
	ProfitAndLoss     *decimal.Decimal `json:"profitAndLoss,omitempty"`
	Fees              decimal.Decimal  `json:"fees"`
	Side              OrderSide        `json:"side"`
	Size              int              `json:"size"`
	Voided            bool             `json:"voided"`
	OrderID           int64            `json:"orderId"`
}

// Bar is one aggregated OHLCV bar.
type Bar struct {
	T time.Time       `json:"t"`
	O decimal.Decimal `json:"o"`
	H decimal.Decimal `json:"h"`
	L decimal.Decimal `json:"l"`
	C decimal.Decimal `json:"c"`
	V int64           `json:"v"`
}

// Quote is a synthetic top-of-book snapshot for a contract.
type Quote struct {
	Symbol        string          `json:"symbol"`
	SymbolName    string          `json:"symbolName"`
	LastPrice     decimal.Decimal `json:"lastPrice"`
	BestBid       decimal.Decimal `json:"bestBid"`
	BestAsk       decimal.Decimal `json:"bestAsk"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Volume        int64           `json:"volume"`
	LastUpdated   time.Time       `json:"lastUpdated"`
	Timestamp     time.Time       `json:"timestamp"`
}

// MarketTrade is a synthetic tape print.
type MarketTrade struct {
	SymbolID  string          `json:"symbolId"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TradeLogType    `json:"type"`
	Volume    int64           `json:"volume"`
}

// DepthLevel is a synthetic market-depth update.
type DepthLevel struct {
	Timestamp     time.Time       `json:"timestamp"`
	Type          DomType         `json:"type"`
	Price         decimal.Decimal `json:"price"`
	Volume        int64           `json:"volume"`
	CurrentVolume int64           `json:"currentVolume"`
}
