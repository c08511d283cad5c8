package trading

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

const testGameID = "test-game-1"

type loopFixture struct {
	games      *memGameStore
	orders     *memOrderStore
	feed       *fakeFeed
	exchange   *fakeExchange
	forecaster *fakeForecaster
	notifier   *fakeNotifier
	loop       *Loop

	mu     sync.Mutex
	sleeps []time.Duration
}

func newLoopFixture(t *testing.T) *loopFixture {
	t.Helper()

	f := &loopFixture{
		games:      newMemGameStore(),
		orders:     &memOrderStore{},
		feed:       &fakeFeed{},
		exchange:   newFakeExchange(50_000),
		forecaster: &fakeForecaster{},
		notifier:   &fakeNotifier{},
	}

	cfg := testTradingConfig()
	risk := NewRiskManager(cfg, f.exchange, f.orders, testLogger())
	f.loop = NewLoop(cfg, f.games, f.orders, f.feed, f.exchange, f.forecaster, risk, f.notifier, testLogger())
	f.loop.sleep = func(_ context.Context, d time.Duration) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func (f *loopFixture) seedGame(status domain.GameStatus) {
	start := time.Now().Add(time.Hour)
	_ = f.games.Upsert(context.Background(), domain.Game{
		ID:                 "row-1",
		GameID:             testGameID,
		Sport:              domain.SportNBA,
		Status:             status,
		HomeTeam:           "Lakers",
		AwayTeam:           "Celtics",
		ScheduledStartTime: &start,
	})
}

func (f *loopFixture) seedMarket(ticker string, yesAsk, noAsk int64) domain.MarketSnapshot {
	m := domain.MarketSnapshot{
		Ticker:      ticker,
		Title:       "Will the Lakers win?",
		Status:      domain.MarketStatusActive,
		YesAskCents: yesAsk,
		NoAskCents:  noAsk,
		CloseTime:   time.Now().Add(2 * time.Hour),
	}
	f.exchange.searchResults = append(f.exchange.searchResults, m)
	f.exchange.markets[ticker] = m
	return m
}

// pollOnceThenComplete returns one batch of events on the first poll and marks
// the game completed with an empty batch afterwards.
func (f *loopFixture) pollOnceThenComplete(events ...domain.GameEvent) {
	f.feed.poll = func(call int) (domain.FeedResult, error) {
		if call == 1 {
			return domain.FeedResult{ConnectionID: "conn-1", Events: events}, nil
		}
		_ = f.games.UpdateStatus(context.Background(), testGameID, domain.GameStatusCompleted)
		return domain.FeedResult{ConnectionID: "conn-1"}, nil
	}
}

func testEvent(id string) domain.GameEvent {
	return domain.GameEvent{
		EventID: id,
		GameID:  testGameID,
		Raw:     json.RawMessage(`{"event_id":"` + id + `","game_id":"` + testGameID + `","type":"score"}`),
	}
}

func TestLoopExitsForCompletedGame(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusCompleted)

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	assert.Zero(t, f.exchange.searchCalls)
	assert.Zero(t, f.feed.pollCalls)
}

func TestLoopExitsWhenNoMarkets(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	assert.Equal(t, 1, f.exchange.searchCalls)
	assert.Zero(t, f.feed.pollCalls)
}

func TestLoopExitsWhenGameUnresolvable(t *testing.T) {
	f := newLoopFixture(t)
	// No game seeded, no schedules to fetch: the loop gives up without error.

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	assert.Zero(t, f.exchange.searchCalls)
}

func TestLoopResolvesGameFromSchedule(t *testing.T) {
	f := newLoopFixture(t)
	start := time.Now().Add(time.Hour)
	f.feed.games = f.games
	f.feed.schedules = map[domain.Sport][]domain.Game{
		domain.SportNFL: {{
			ID:                 "row-nfl",
			GameID:             testGameID,
			Sport:              domain.SportNFL,
			Status:             domain.GameStatusCompleted,
			HomeTeam:           "Chiefs",
			AwayTeam:           "Bills",
			ScheduledStartTime: &start,
		}},
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	// The game resolved via the NFL schedule as completed, so the loop exits
	// before market discovery.
	assert.Zero(t, f.exchange.searchCalls)
}

func TestLoopPaperModeFullCycle(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-TEST", 40, 62)
	f.pollOnceThenComplete(testEvent("evt-1"))
	f.forecaster.estimate = domain.ProbabilityEstimate{
		YesProbability: 0.65,
		Confidence:     domain.ConfidenceHigh,
		Reasoning:      "test",
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	orders := f.orders.all()
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, domain.OrderStatusPaper, o.Status)
	assert.Equal(t, domain.TradeSideYes, o.Side)
	assert.Equal(t, "MKT-TEST", o.MarketID)
	assert.Equal(t, "kalshi", o.MarketType)
	assert.Equal(t, int64(40), o.EntryPriceCents)
	assert.Equal(t, testGameID, o.GameID)
	assert.Equal(t, "value-bet", o.Strategy)
	assert.Empty(t, o.ExternalOrderID)
	assert.Empty(t, f.exchange.placed, "paper mode must not touch the exchange")

	var meta struct {
		Estimate  domain.ProbabilityEstimate `json:"estimate"`
		RiskCheck domain.TradeDecision       `json:"riskCheck"`
	}
	require.NoError(t, json.Unmarshal([]byte(o.Metadata), &meta))
	assert.Equal(t, 0.65, meta.Estimate.YesProbability)
	assert.True(t, meta.RiskCheck.Approved)

	assert.Contains(t, f.notifier.events(), "trade_executed")
	assert.Contains(t, f.notifier.events(), "game_completed")
}

func TestLoopLiveModeSubmitsOrder(t *testing.T) {
	f := newLoopFixture(t)
	f.loop.cfg.Paper = false
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-TEST", 40, 62)
	f.pollOnceThenComplete(testEvent("evt-1"))
	f.forecaster.estimate = domain.ProbabilityEstimate{
		YesProbability: 0.65,
		Confidence:     domain.ConfidenceHigh,
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	require.Len(t, f.exchange.placed, 1)
	assert.Equal(t, "MKT-TEST", f.exchange.placed[0].ticker)
	assert.Equal(t, domain.TradeSideYes, f.exchange.placed[0].side)

	orders := f.orders.all()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusOpen, orders[0].Status)
	assert.Equal(t, "ord-1", orders[0].ExternalOrderID)
	require.NotNil(t, orders[0].SubmittedAt)
}

func TestLoopSkipsTradeWhenNoEdge(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-TEST", 65, 37)
	f.pollOnceThenComplete(testEvent("evt-1"))
	// yesEdge = 0.63-0.65 < 0, noEdge = 0.37-0.37 = 0: nothing to buy.
	f.forecaster.estimate = domain.ProbabilityEstimate{
		YesProbability: 0.63,
		Confidence:     domain.ConfidenceHigh,
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	assert.Empty(t, f.orders.all())
}

func TestLoopSkipsTradeWhenRiskRejects(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-TEST", 65, 30)
	f.pollOnceThenComplete(testEvent("evt-1"))
	// yesEdge = 1%: tradable, but under the 5% risk floor.
	f.forecaster.estimate = domain.ProbabilityEstimate{
		YesProbability: 0.66,
		Confidence:     domain.ConfidenceHigh,
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	assert.Empty(t, f.orders.all())
}

func TestLoopBuysNoWhenNoEdgeDominates(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-TEST", 40, 55)
	f.pollOnceThenComplete(testEvent("evt-1"))
	// yesEdge = 0.30-0.40 < 0, noEdge = 0.70-0.55 = 0.15.
	f.forecaster.estimate = domain.ProbabilityEstimate{
		YesProbability: 0.30,
		Confidence:     domain.ConfidenceHigh,
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	orders := f.orders.all()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.TradeSideNo, orders[0].Side)
	assert.Equal(t, int64(55), orders[0].EntryPriceCents)
}

func TestLoopIsolatesMarketErrors(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-BROKEN", 40, 62)
	f.seedMarket("MKT-GOOD", 40, 62)
	f.exchange.getMarketErr["MKT-BROKEN"] = errors.New("exchange exploded")
	f.pollOnceThenComplete(testEvent("evt-1"))
	f.forecaster.estimate = domain.ProbabilityEstimate{
		YesProbability: 0.65,
		Confidence:     domain.ConfidenceHigh,
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	orders := f.orders.all()
	require.Len(t, orders, 1)
	assert.Equal(t, "MKT-GOOD", orders[0].MarketID)
}

func TestLoopBacksOffOnTickError(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-TEST", 40, 62)
	f.feed.poll = func(call int) (domain.FeedResult, error) {
		if call == 1 {
			return domain.FeedResult{}, errors.New("feed unavailable")
		}
		_ = f.games.UpdateStatus(context.Background(), testGameID, domain.GameStatusCompleted)
		return domain.FeedResult{}, nil
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	interval := f.loop.cfg.PollInterval.Duration
	require.NotEmpty(t, f.sleeps)
	assert.Equal(t, 2*interval, f.sleeps[0], "tick error sleeps a doubled interval")
	assert.Contains(t, f.notifier.events(), "loop_error")
}

func TestLoopIdlesWhileGameScheduled(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusScheduled)
	f.seedMarket("MKT-TEST", 40, 62)
	f.feed.poll = func(call int) (domain.FeedResult, error) {
		if call < 3 {
			return domain.FeedResult{}, nil
		}
		_ = f.games.UpdateStatus(context.Background(), testGameID, domain.GameStatusCompleted)
		return domain.FeedResult{}, nil
	}

	require.NoError(t, f.loop.Run(context.Background(), testGameID))

	interval := f.loop.cfg.PollInterval.Duration
	require.Len(t, f.sleeps, 2)
	assert.Equal(t, interval, f.sleeps[0])
	assert.Equal(t, interval, f.sleeps[1])
	assert.Empty(t, f.orders.all())
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	f := newLoopFixture(t)
	f.seedGame(domain.GameStatusLive)
	f.seedMarket("MKT-TEST", 40, 62)

	ctx, cancel := context.WithCancel(context.Background())
	f.feed.poll = func(call int) (domain.FeedResult, error) {
		cancel()
		return domain.FeedResult{}, nil
	}
	f.loop.sleep = sleepContext

	err := f.loop.Run(ctx, testGameID)
	assert.ErrorIs(t, err, context.Canceled)
}
