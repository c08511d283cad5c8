package domain

import "time"

// TradeSide is the contract side being bought: yes or no.
type TradeSide string

const (
	TradeSideYes TradeSide = "yes"
	TradeSideNo  TradeSide = "no"
)

// OrderStatus tracks the order lifecycle. Paper orders are never submitted to
// the exchange; open orders have been. Closing (settlement) happens outside
// the trading loop.
type OrderStatus string

const (
	OrderStatusPaper     OrderStatus = "paper"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a persisted record of an attempted or executed trade. All monetary
// fields are integer cents.
type Order struct {
	ID              string
	MarketType      string // exchange identifier, "kalshi"
	MarketID        string // exchange ticker
	MarketTitle     string
	Side            TradeSide
	SizeCents       int64
	EntryPriceCents int64
	ClosePriceCents *int64
	PnLCents        *int64 // nil until closed
	Status          OrderStatus
	OpenedAt        time.Time
	ClosedAt        *time.Time
	Strategy        string
	GameID          string
	Metadata        string // JSON audit blob: estimate + risk decision
	ExternalOrderID string // exchange order id, live orders only
	SubmittedAt     *time.Time
}

// OrderResult is the exchange's response to an order submission.
type OrderResult struct {
	OrderID     string
	Status      string
	FilledCount int64
}
