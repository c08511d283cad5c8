package trading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/valuebot/internal/config"
	"github.com/alanyoungcy/valuebot/internal/domain"
)

// TradeRequest is the input to a risk check: one candidate trade on one
// market.
type TradeRequest struct {
	MarketTicker         string
	GameID               string
	Side                 domain.TradeSide
	EstimatedProbability float64
	MarketPriceCents     int64
	Confidence           domain.Confidence
}

// RiskManager gates candidate trades through a fixed sequence of limits and
// sizes approved positions with a fractional Kelly criterion. Account state is
// recomputed from the order table and a live balance query on every check.
type RiskManager struct {
	cfg      config.TradingConfig
	exchange domain.Exchange
	orders   domain.OrderStore
	logger   *slog.Logger

	// now is swapped in tests to pin the day boundary.
	now func() time.Time
}

// NewRiskManager creates a RiskManager with the given trading limits.
func NewRiskManager(cfg config.TradingConfig, exchange domain.Exchange, orders domain.OrderStore, logger *slog.Logger) *RiskManager {
	return &RiskManager{
		cfg:      cfg,
		exchange: exchange,
		orders:   orders,
		logger:   logger.With(slog.String("component", "risk")),
		now:      time.Now,
	}
}

// CheckTrade runs every risk gate against the request, in order, and returns
// the first failure or an approved, sized decision. Gates never mutate state,
// so a rejected request can be re-checked after conditions change.
func (r *RiskManager) CheckTrade(ctx context.Context, req TradeRequest) (domain.TradeDecision, error) {
	stats, err := r.Stats(ctx)
	if err != nil {
		return domain.TradeDecision{}, err
	}

	// 1. Edge threshold
	marketProb := float64(req.MarketPriceCents) / 100
	edge := (req.EstimatedProbability - marketProb) * 100
	if edge < r.cfg.MinEdgePct {
		return r.reject(ctx, fmt.Sprintf("Edge %.1f%% below minimum %g%%", edge, r.cfg.MinEdgePct), stats), nil
	}

	// 2. Confidence threshold. Unknown configured tiers fall back to medium;
	// unknown reported tiers rank below low.
	minRank := domain.Confidence(r.cfg.MinConfidence).Rank()
	if minRank < 0 {
		minRank = domain.ConfidenceMedium.Rank()
	}
	actualRank := req.Confidence.Rank()
	if actualRank < 0 {
		actualRank = 0
	}
	if actualRank < minRank {
		return r.reject(ctx, fmt.Sprintf("Confidence '%s' below minimum '%s'", req.Confidence, r.cfg.MinConfidence), stats), nil
	}

	// 3. Balance floor
	minBalanceCents := int64(r.cfg.MinAccountBalanceUSD * 100)
	if stats.BalanceCents < minBalanceCents {
		return r.reject(ctx, fmt.Sprintf("Balance $%.2f below minimum $%g",
			float64(stats.BalanceCents)/100, r.cfg.MinAccountBalanceUSD), stats), nil
	}

	// 4. Daily trade count
	if stats.DailyTradeCount >= r.cfg.MaxDailyTrades {
		return r.reject(ctx, fmt.Sprintf("Daily trade limit reached (%d/%d)",
			stats.DailyTradeCount, r.cfg.MaxDailyTrades), stats), nil
	}

	// 5. Daily loss limit
	maxDailyLossCents := r.cfg.MaxDailyLossUSD * 100
	if stats.DailyPnLCents < 0 && float64(-stats.DailyPnLCents) >= maxDailyLossCents {
		return r.reject(ctx, fmt.Sprintf("Daily loss $%.2f exceeds limit $%g",
			float64(-stats.DailyPnLCents)/100, r.cfg.MaxDailyLossUSD), stats), nil
	}

	// 6. Total exposure
	maxExposureCents := r.cfg.MaxTotalExposureUSD * 100
	if float64(stats.TotalExposureCents) >= maxExposureCents {
		return r.reject(ctx, fmt.Sprintf("Total exposure $%.2f exceeds limit $%g",
			float64(stats.TotalExposureCents)/100, r.cfg.MaxTotalExposureUSD), stats), nil
	}

	// 7. Single market exposure %. Skipped when nothing is open: the first
	// position in a market would always be 100% of exposure.
	if stats.TotalExposureCents > 0 {
		marketExposure, err := r.marketExposure(ctx, req.MarketTicker)
		if err != nil {
			return domain.TradeDecision{}, err
		}
		marketPct := float64(marketExposure) / float64(stats.TotalExposureCents) * 100
		if marketPct >= r.cfg.MaxSingleMarketPercent {
			return r.reject(ctx, fmt.Sprintf("Market exposure %.1f%% exceeds limit %g%%",
				marketPct, r.cfg.MaxSingleMarketPercent), stats), nil
		}
	}

	// Position sizing via the Kelly criterion: b is the net odds of a
	// winning contract, f* = (b*p - q) / b, scaled down by the configured
	// fraction and floored at zero.
	p := req.EstimatedProbability
	q := 1 - p
	b := 100/float64(req.MarketPriceCents) - 1
	kelly := (b*p - q) / b
	adjustedKelly := math.Max(0, kelly*r.cfg.KellyFraction)
	positionSizeCents := int64(math.Floor(float64(stats.BalanceCents) * adjustedKelly))

	// 8. Cap at max position size, then reject anything too small to buy a
	// single contract.
	maxPositionCents := int64(r.cfg.MaxPositionSizeUSD * 100)
	if positionSizeCents > maxPositionCents {
		positionSizeCents = maxPositionCents
	}

	contractCount := positionSizeCents / req.MarketPriceCents

	if contractCount <= 0 {
		return r.reject(ctx, "Position size too small for any contracts", stats), nil
	}

	r.logger.InfoContext(ctx, "trade approved",
		slog.String("ticker", req.MarketTicker),
		slog.Int64("contracts", contractCount),
		slog.Int64("price_cents", req.MarketPriceCents),
		slog.Float64("kelly_pct", adjustedKelly*100),
	)

	return domain.TradeDecision{
		Approved:          true,
		PositionSizeCents: positionSizeCents,
		ContractCount:     contractCount,
		Stats:             stats,
	}, nil
}

// Stats derives the current account state: live balance, open exposure, and
// today's trade count and realized PnL.
func (r *RiskManager) Stats(ctx context.Context) (domain.TradingStats, error) {
	balanceCents, err := r.exchange.GetBalance(ctx)
	if err != nil {
		return domain.TradingStats{}, fmt.Errorf("risk: get balance: %w", err)
	}

	openOrders, err := r.orders.ListOpen(ctx)
	if err != nil {
		return domain.TradingStats{}, fmt.Errorf("risk: list open orders: %w", err)
	}

	var totalExposureCents int64
	for _, o := range openOrders {
		totalExposureCents += o.SizeCents
	}

	now := r.now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	dailyOrders, err := r.orders.ListOpenedSince(ctx, todayStart)
	if err != nil {
		return domain.TradingStats{}, fmt.Errorf("risk: list daily orders: %w", err)
	}

	var dailyPnLCents int64
	for _, o := range dailyOrders {
		if o.PnLCents != nil {
			dailyPnLCents += *o.PnLCents
		}
	}

	return domain.TradingStats{
		BalanceCents:       balanceCents,
		OpenPositionCount:  len(openOrders),
		TotalExposureCents: totalExposureCents,
		DailyTradeCount:    len(dailyOrders),
		DailyPnLCents:      dailyPnLCents,
	}, nil
}

// marketExposure sums the open position size on a single market.
func (r *RiskManager) marketExposure(ctx context.Context, marketTicker string) (int64, error) {
	orders, err := r.orders.ListOpenByMarket(ctx, marketTicker)
	if err != nil {
		return 0, fmt.Errorf("risk: list market orders: %w", err)
	}

	var total int64
	for _, o := range orders {
		total += o.SizeCents
	}
	return total, nil
}

func (r *RiskManager) reject(ctx context.Context, reason string, stats domain.TradingStats) domain.TradeDecision {
	r.logger.InfoContext(ctx, "trade rejected", slog.String("reason", reason))
	return domain.TradeDecision{
		Approved:        false,
		RejectionReason: reason,
		Stats:           stats,
	}
}
