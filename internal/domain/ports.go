package domain

import (
	"context"
	"time"
)

// Exchange is the prediction-market exchange the agent trades on.
type Exchange interface {
	// SearchMarkets finds contracts whose titles mention either team, with
	// close times inside a window around the scheduled start.
	SearchMarkets(ctx context.Context, home, away string, scheduled time.Time, sport Sport) ([]MarketSnapshot, error)
	// GetMarket fetches a fresh snapshot for one ticker.
	GetMarket(ctx context.Context, ticker string) (MarketSnapshot, error)
	// CreateOrder submits a market order for count contracts on side.
	CreateOrder(ctx context.Context, ticker string, side TradeSide, count int64) (OrderResult, error)
	// GetBalance returns the available account balance in cents.
	GetBalance(ctx context.Context) (int64, error)
}

// FeedResult is one incremental poll of the live event feed.
type FeedResult struct {
	ConnectionID string
	Events       []GameEvent
}

// Feed is the sports data provider. GetSchedule upserts Game rows as a side
// effect; GetLiveEvents owns the scheduled->live transition and the
// incremental cursor.
type Feed interface {
	GetSchedule(ctx context.Context, sport Sport) ([]Game, error)
	GetLiveEvents(ctx context.Context, gameID string, sport Sport, limit int) (FeedResult, error)
}

// Forecaster estimates the probability of a market's YES outcome from the
// accumulated game history.
type Forecaster interface {
	EstimateProbability(ctx context.Context, sport Sport, gameID string, events []GameEvent, market MarketSnapshot) (ProbabilityEstimate, error)
}

// LockManager provides distributed locking, used to keep two processes from
// running a trading loop against the same game.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting for outbound API calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}
