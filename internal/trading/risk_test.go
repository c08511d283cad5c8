package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/valuebot/internal/config"
	"github.com/alanyoungcy/valuebot/internal/domain"
)

func testRequest(overrides func(*TradeRequest)) TradeRequest {
	req := TradeRequest{
		MarketTicker:         "MKT-TEST",
		GameID:               "test-game-1",
		Side:                 domain.TradeSideYes,
		EstimatedProbability: 0.70,
		MarketPriceCents:     50,
		Confidence:           domain.ConfidenceHigh,
	}
	if overrides != nil {
		overrides(&req)
	}
	return req
}

func newTestRiskManager(t *testing.T, cfg config.TradingConfig, balanceCents int64, store *memOrderStore) *RiskManager {
	t.Helper()
	return NewRiskManager(cfg, newFakeExchange(balanceCents), store, testLogger())
}

func TestRiskManagerApprovesSufficientEdge(t *testing.T) {
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, &memOrderStore{})

	// 70% estimated vs 50c market = 20% edge.
	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.True(t, decision.Approved)
	assert.Greater(t, decision.ContractCount, int64(0))
}

func TestRiskManagerRejectsBelowMinEdge(t *testing.T) {
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, &memOrderStore{})

	// 54% estimated vs 50c market = 4% edge, minimum is 5%.
	decision, err := rm.CheckTrade(context.Background(), testRequest(func(r *TradeRequest) {
		r.EstimatedProbability = 0.54
	}))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Edge")
}

func TestRiskManagerRejectsLowConfidence(t *testing.T) {
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, &memOrderStore{})

	decision, err := rm.CheckTrade(context.Background(), testRequest(func(r *TradeRequest) {
		r.Confidence = domain.ConfidenceLow
	}))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Confidence")
}

func TestRiskManagerRejectsBelowBalanceFloor(t *testing.T) {
	// Balance $50 < minimum $100.
	rm := newTestRiskManager(t, testTradingConfig(), 5_000, &memOrderStore{})

	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Balance")
}

func TestRiskManagerRejectsAtDailyTradeLimit(t *testing.T) {
	store := &memOrderStore{}
	now := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, store.Create(context.Background(), domain.Order{
			Status:   domain.OrderStatusPaper,
			OpenedAt: now,
		}))
	}
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, store)

	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Daily trade")
}

func TestRiskManagerRejectsAtDailyLossLimit(t *testing.T) {
	store := &memOrderStore{}
	now := time.Now()
	for i := 0; i < 6; i++ {
		pnl := int64(-10_000)
		require.NoError(t, store.Create(context.Background(), domain.Order{
			Status:   domain.OrderStatusClosed,
			OpenedAt: now,
			PnLCents: &pnl,
		}))
	}
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, store)

	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Daily loss")
}

func TestRiskManagerRejectsAtTotalExposureLimit(t *testing.T) {
	store := &memOrderStore{}
	yesterday := time.Now().AddDate(0, 0, -1)
	for i := 0; i < 11; i++ {
		require.NoError(t, store.Create(context.Background(), domain.Order{
			Status:    domain.OrderStatusOpen,
			SizeCents: 100_000,
			OpenedAt:  yesterday,
		}))
	}
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, store)

	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "exposure")
}

func TestRiskManagerSkipsMarketShareGateWithNoExposure(t *testing.T) {
	// The first position in any market would always be 100% of exposure, so
	// the single-market gate must not fire on an empty book.
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, &memOrderStore{})

	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.True(t, decision.Approved)
}

func TestRiskManagerRejectsConcentratedMarket(t *testing.T) {
	store := &memOrderStore{}
	yesterday := time.Now().AddDate(0, 0, -1)
	// 60% of open exposure already sits on the requested market.
	require.NoError(t, store.Create(context.Background(), domain.Order{
		Status:    domain.OrderStatusOpen,
		MarketID:  "MKT-TEST",
		SizeCents: 6_000,
		OpenedAt:  yesterday,
	}))
	require.NoError(t, store.Create(context.Background(), domain.Order{
		Status:    domain.OrderStatusOpen,
		MarketID:  "MKT-OTHER",
		SizeCents: 4_000,
		OpenedAt:  yesterday,
	}))
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, store)

	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Market exposure")
}

func TestRiskManagerCapsPositionAtMaxSize(t *testing.T) {
	// High balance and a big edge should hit the per-position cap.
	rm := newTestRiskManager(t, testTradingConfig(), 1_000_000, &memOrderStore{})

	decision, err := rm.CheckTrade(context.Background(), testRequest(func(r *TradeRequest) {
		r.EstimatedProbability = 0.90
	}))
	require.NoError(t, err)

	assert.True(t, decision.Approved)
	assert.LessOrEqual(t, decision.PositionSizeCents, int64(1_000*100))
}

func TestRiskManagerKellySizing(t *testing.T) {
	// p=0.7 at 50c: b = (100/50)-1 = 1, kelly = (1*0.7-0.3)/1, adjusted by
	// the 0.25 fraction. With a $500 balance the float math lands one cent
	// under the exact tenth: floor(50000 * 0.0999...) = 4999.
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, &memOrderStore{})

	decision, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.True(t, decision.Approved)
	assert.Equal(t, int64(4999), decision.PositionSizeCents)
	assert.Equal(t, int64(99), decision.ContractCount)
}

func TestRiskManagerRejectsZeroContractPosition(t *testing.T) {
	cfg := testTradingConfig()
	cfg.KellyFraction = 0.01
	// $100.01, barely above the balance floor: position rounds below one
	// contract.
	rm := newTestRiskManager(t, cfg, 10_001, &memOrderStore{})

	decision, err := rm.CheckTrade(context.Background(), testRequest(func(r *TradeRequest) {
		r.EstimatedProbability = 0.60
	}))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Position size too small")
}

func TestRiskManagerGateOrderFirstFailureWins(t *testing.T) {
	// A request that fails both the edge and confidence gates reports the
	// edge failure: gates run in a fixed order.
	rm := newTestRiskManager(t, testTradingConfig(), 5_000, &memOrderStore{})

	decision, err := rm.CheckTrade(context.Background(), testRequest(func(r *TradeRequest) {
		r.EstimatedProbability = 0.54
		r.Confidence = domain.ConfidenceLow
	}))
	require.NoError(t, err)

	assert.False(t, decision.Approved)
	assert.Contains(t, decision.RejectionReason, "Edge")
}

func TestRiskManagerStatsAggregation(t *testing.T) {
	store := &memOrderStore{}
	ctx := context.Background()
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	// Open positions, from before today.
	require.NoError(t, store.Create(ctx, domain.Order{
		Status: domain.OrderStatusOpen, SizeCents: 5_000, OpenedAt: yesterday,
	}))
	require.NoError(t, store.Create(ctx, domain.Order{
		Status: domain.OrderStatusOpen, SizeCents: 3_000, OpenedAt: yesterday,
	}))

	// Closed order today.
	todayPnL := int64(500)
	require.NoError(t, store.Create(ctx, domain.Order{
		Status: domain.OrderStatusClosed, SizeCents: 2_000, OpenedAt: now, PnLCents: &todayPnL,
	}))

	// Closed order yesterday does not count toward daily stats.
	yesterdayPnL := int64(-200)
	require.NoError(t, store.Create(ctx, domain.Order{
		Status: domain.OrderStatusClosed, SizeCents: 1_000, OpenedAt: yesterday, PnLCents: &yesterdayPnL,
	}))

	rm := newTestRiskManager(t, testTradingConfig(), 50_000, store)

	stats, err := rm.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(50_000), stats.BalanceCents)
	assert.Equal(t, 2, stats.OpenPositionCount)
	assert.Equal(t, int64(8_000), stats.TotalExposureCents)
	assert.Equal(t, 1, stats.DailyTradeCount)
	assert.Equal(t, int64(500), stats.DailyPnLCents)
}

func TestRiskManagerCheckTradeIsReadOnly(t *testing.T) {
	store := &memOrderStore{}
	rm := newTestRiskManager(t, testTradingConfig(), 50_000, store)

	first, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)
	second, err := rm.CheckTrade(context.Background(), testRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Empty(t, store.all())
}
