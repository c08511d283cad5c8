package kalshi

import (
	"time"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// Market represents a market as returned by the Kalshi REST API. All prices
// are integer cents (1-99).
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	YesSubTitle  string `json:"yes_sub_title"`
	NoSubTitle   string `json:"no_sub_title"`
	Status       string `json:"status"` // "active", "closed", "settled"
	YesBid       int64  `json:"yes_bid"`
	YesAsk       int64  `json:"yes_ask"`
	NoBid        int64  `json:"no_bid"`
	NoAsk        int64  `json:"no_ask"`
	LastPrice    int64  `json:"last_price"`
	Volume       int64  `json:"volume"`
	Volume24H    int64  `json:"volume_24h"`
	OpenInterest int64  `json:"open_interest"`
	OpenTime     string `json:"open_time"`
	CloseTime    string `json:"close_time"`
	Result       string `json:"result"` // "yes", "no", "" (unsettled)
}

// Event represents an exchange event with its nested markets, as returned by
// GET /events?with_nested_markets=true.
type Event struct {
	EventTicker  string   `json:"event_ticker"`
	SeriesTicker string   `json:"series_ticker"`
	Title        string   `json:"title"`
	SubTitle     string   `json:"sub_title"`
	Markets      []Market `json:"markets"`
}

// OrderRequest represents an order submission payload.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "market" or "limit"
	Count         int64  `json:"count"`
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
	TimeInForce   string `json:"time_in_force,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// OrderResponse represents the API response after placing an order.
type OrderResponse struct {
	Order struct {
		OrderID        string `json:"order_id"`
		Ticker         string `json:"ticker"`
		Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
		Action         string `json:"action"`
		Side           string `json:"side"`
		Type           string `json:"type"`
		YesPrice       int64  `json:"yes_price"`
		NoPrice        int64  `json:"no_price"`
		InitialCount   int64  `json:"initial_count"`
		FillCount      int64  `json:"fill_count"`
		RemainingCount int64  `json:"remaining_count"`
		TakerFillCost  int64  `json:"taker_fill_cost"`
		PlacedTime     string `json:"placed_time"`
	} `json:"order"`
}

// ErrorResponse represents a Kalshi API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// Conversion helpers
// --------------------------------------------------------------------------

// toSnapshot converts an API market into a domain snapshot. A close_time that
// fails to parse is left as the zero time; callers filtering on the close
// window treat that as outside the window.
func toSnapshot(m Market) domain.MarketSnapshot {
	closeTime, _ := time.Parse(time.RFC3339, m.CloseTime)

	return domain.MarketSnapshot{
		Ticker:       m.Ticker,
		EventTicker:  m.EventTicker,
		Title:        m.Title,
		YesSubTitle:  m.YesSubTitle,
		NoSubTitle:   m.NoSubTitle,
		Status:       m.Status,
		YesBidCents:  m.YesBid,
		YesAskCents:  m.YesAsk,
		NoBidCents:   m.NoBid,
		NoAskCents:   m.NoAsk,
		LastPrice:    m.LastPrice,
		Volume:       m.Volume,
		OpenInterest: m.OpenInterest,
		CloseTime:    closeTime,
	}
}
