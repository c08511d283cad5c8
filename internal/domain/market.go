package domain

import "time"

// MarketStatus values as reported by the exchange. Only active markets are
// evaluated.
const MarketStatusActive = "active"

// MarketSnapshot is a point-in-time view of a tradable contract on the
// exchange. All prices are in cents (1-99). The core treats snapshots as
// stale after one poll interval and always re-fetches before acting.
type MarketSnapshot struct {
	Ticker       string
	EventTicker  string
	Title        string
	YesSubTitle  string
	NoSubTitle   string
	Status       string
	YesBidCents  int64
	YesAskCents  int64
	NoBidCents   int64
	NoAskCents   int64
	LastPrice    int64
	Volume       int64
	OpenInterest int64
	CloseTime    time.Time
}

// Active reports whether the market is still tradable.
func (m MarketSnapshot) Active() bool {
	return m.Status == MarketStatusActive
}
