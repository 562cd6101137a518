package model

import "strconv"

// OrderStatus values match the gateway wire enumeration.
type OrderStatus int

const (
	OrderStatusNone OrderStatus = iota
	OrderStatusOpen
	OrderStatusFilled
	OrderStatusCancelled
	// Expired, Rejected, PendingCancellation and Suspended are never
	// produced by the simulator; they exist for wire parity.
	OrderStatusExpired
	OrderStatusRejected
	OrderStatusPending
	OrderStatusPendingCancellation
	OrderStatusSuspended
)

var orderStatusNames = [...]string{
	"None", "Open", "Filled", "Cancelled", "Expired",
	"Rejected", "Pending", "PendingCancellation", "Suspended",
}

func (s OrderStatus) String() string {
	if s >= 0 && int(s) < len(orderStatusNames) {
		return orderStatusNames[s]
	}
	return "OrderStatus(" + strconv.Itoa(int(s)) + ")"
}

// Working reports whether the order can still be filled or cancelled.
func (s OrderStatus) Working() bool {
	return s == OrderStatusOpen || s == OrderStatusPending
}

// OrderType values match the gateway wire enumeration.
type OrderType int

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	OrderTypeStopLimit
	OrderTypeStop
	OrderTypeTrailingStop
	OrderTypeJoinBid
	OrderTypeJoinAsk
)

var orderTypeNames = [...]string{
	"Unknown", "Limit", "Market", "StopLimit", "Stop",
	"TrailingStop", "JoinBid", "JoinAsk",
}

func (t OrderType) String() string {
	if t >= 0 && int(t) < len(orderTypeNames) {
		return orderTypeNames[t]
	}
	return "OrderType(" + strconv.Itoa(int(t)) + ")"
}

// OrderSide is bid (buy) or ask (sell).
type OrderSide int

const (
	OrderSideBid OrderSide = iota
	OrderSideAsk
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBid:
		return "Bid"
	case OrderSideAsk:
		return "Ask"
	}
	return "OrderSide(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is Bid or Ask.
func (s OrderSide) Valid() bool {
	return s == OrderSideBid || s == OrderSideAsk
}

// PositionType is the direction of a position.
type PositionType int

const (
	PositionTypeUndefined PositionType = iota
	PositionTypeLong
	PositionTypeShort
)

func (t PositionType) String() string {
	switch t {
	case PositionTypeLong:
		return "Long"
	case PositionTypeShort:
		return "Short"
	}
	return "Undefined"
}

// Opposite returns the reverse direction.
func (t PositionType) Opposite() PositionType {
	switch t {
	case PositionTypeLong:
		return PositionTypeShort
	case PositionTypeShort:
		return PositionTypeLong
	}
	return PositionTypeUndefined
}

// DirectionOf maps an order side to the position it opens.
func DirectionOf(side OrderSide) PositionType {
	if side == OrderSideBid {
		return PositionTypeLong
	}
	return PositionTypeShort
}

// DomType classifies a market-depth update.
type DomType int

const (
	DomTypeUnknown DomType = iota
	DomTypeAsk
	DomTypeBid
	DomTypeBestAsk
	DomTypeBestBid
	DomTypeTrade
	DomTypeReset
	DomTypeLow
	DomTypeHigh
	DomTypeNewBestBid
	DomTypeNewBestAsk
	DomTypeFill
)

// TradeLogType is the aggressor side of a tape print.
type TradeLogType int

const (
	TradeLogTypeBuy TradeLogType = iota
	TradeLogTypeSell
)

// BarUnit is the aggregation unit for historical bars.
type BarUnit int

const (
	BarUnitUnspecified BarUnit = iota
	BarUnitSecond
	BarUnitMinute
	BarUnitHour
	BarUnitDay
	BarUnitWeek
	BarUnitMonth
)
