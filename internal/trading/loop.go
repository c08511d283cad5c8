package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/valuebot/internal/config"
	"github.com/alanyoungcy/valuebot/internal/domain"
)

// eventLimit caps one incremental feed poll.
const eventLimit = 100

// strategyName tags every order written by the loop.
const strategyName = "value-bet"

// Notifier is the slice of the notification system the loop uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Loop polls the live event feed for one game and trades every discovered
// market on each batch of new events. It owns the game's full trading
// lifecycle: resolution, market discovery, polling, and the completed-game
// exit.
type Loop struct {
	cfg        config.TradingConfig
	games      domain.GameStore
	orders     domain.OrderStore
	feed       domain.Feed
	exchange   domain.Exchange
	forecaster domain.Forecaster
	risk       *RiskManager
	notifier   Notifier
	logger     *slog.Logger

	// sleep is swapped in tests; the default honours context cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLoop creates a trading loop for the given collaborators.
func NewLoop(
	cfg config.TradingConfig,
	games domain.GameStore,
	orders domain.OrderStore,
	feed domain.Feed,
	exchange domain.Exchange,
	forecaster domain.Forecaster,
	risk *RiskManager,
	notifier Notifier,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		cfg:        cfg,
		games:      games,
		orders:     orders,
		feed:       feed,
		exchange:   exchange,
		forecaster: forecaster,
		risk:       risk,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "loop")),
		sleep:      sleepContext,
	}
}

// Run drives the trading loop for one game until the game completes or ctx is
// cancelled. A game that cannot be resolved, has already completed, or has no
// markets is not an error: the loop logs and returns nil.
//
// Tick-level failures never terminate the loop; they are logged and retried
// after a doubled poll interval.
func (l *Loop) Run(ctx context.Context, gameID string) error {
	logger := l.logger.With(slog.String("game_id", gameID))
	logger.InfoContext(ctx, "starting trading loop")

	game, err := l.resolveGame(ctx, gameID, logger)
	if err != nil {
		return err
	}
	if game == nil {
		logger.WarnContext(ctx, "game not found after fetching schedules; run games mode first")
		return nil
	}

	switch game.Status {
	case domain.GameStatusCompleted:
		logger.InfoContext(ctx, "game already completed")
		return nil
	case domain.GameStatusScheduled:
		start := "TBD"
		if game.ScheduledStartTime != nil {
			start = game.ScheduledStartTime.Format(time.RFC3339)
		}
		logger.InfoContext(ctx, "game not started yet, polling until live", slog.String("scheduled", start))
	}

	home := game.HomeTeam
	if home == "" {
		home = "Home"
	}
	away := game.AwayTeam
	if away == "" {
		away = "Away"
	}
	scheduled := time.Now()
	if game.ScheduledStartTime != nil {
		scheduled = *game.ScheduledStartTime
	}

	logger.InfoContext(ctx, "searching markets",
		slog.String("away", away),
		slog.String("home", home),
	)

	markets, err := l.exchange.SearchMarkets(ctx, home, away, scheduled, game.Sport)
	if err != nil {
		return fmt.Errorf("trading: search markets for %s: %w", gameID, err)
	}
	if len(markets) == 0 {
		logger.InfoContext(ctx, "no markets found")
		return nil
	}

	logger.InfoContext(ctx, "markets discovered", slog.Int("count", len(markets)))

	// Event history is append-only: every estimate sees the full game so far.
	var allEvents []domain.GameEvent

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := l.tick(ctx, gameID, game.Sport, markets, &allEvents, logger)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			backoff := 2 * l.cfg.PollInterval.Duration
			logger.ErrorContext(ctx, "trading loop tick failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			_ = l.notifier.Notify(ctx, "loop_error", "Trading loop error",
				fmt.Sprintf("Game %s: %v", gameID, err))

			if err := l.sleep(ctx, backoff); err != nil {
				return err
			}
			continue
		}
		if done {
			return nil
		}
	}
}

// resolveGame loads the game, fetching schedules across every known sport when
// it is absent. Schedule errors for individual sports are tolerated; the
// result is nil only when no sport's schedule carries the game.
func (l *Loop) resolveGame(ctx context.Context, gameID string, logger *slog.Logger) (*domain.Game, error) {
	game, err := l.games.GetByGameID(ctx, gameID)
	if err == nil {
		return &game, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("trading: load game %s: %w", gameID, err)
	}

	logger.InfoContext(ctx, "game not tracked yet, fetching schedules")

	for _, sport := range domain.KnownSports {
		if _, err := l.feed.GetSchedule(ctx, sport); err != nil {
			// Sport may not be available; try the next one.
			logger.DebugContext(ctx, "schedule fetch failed",
				slog.String("sport", string(sport)),
				slog.String("error", err.Error()),
			)
			continue
		}

		game, err = l.games.GetByGameID(ctx, gameID)
		if err == nil {
			return &game, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("trading: load game %s: %w", gameID, err)
		}
	}

	return nil, nil
}

// tick performs one poll cycle. It returns true when the game has completed
// and the loop should exit.
func (l *Loop) tick(ctx context.Context, gameID string, sport domain.Sport, markets []domain.MarketSnapshot, allEvents *[]domain.GameEvent, logger *slog.Logger) (bool, error) {
	result, err := l.feed.GetLiveEvents(ctx, gameID, sport, eventLimit)
	if err != nil {
		return false, fmt.Errorf("poll live events: %w", err)
	}

	// Re-read the game: the feed client flips statuses underneath us.
	fresh, err := l.games.GetByGameID(ctx, gameID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("reload game: %w", err)
	}

	if len(result.Events) == 0 {
		if fresh.Status == domain.GameStatusCompleted {
			logger.InfoContext(ctx, "game completed, exiting loop")
			_ = l.notifier.Notify(ctx, "game_completed", "Game completed",
				fmt.Sprintf("Game %s completed, trading loop exited", gameID))
			return true, nil
		}

		if err := l.sleep(ctx, l.cfg.PollInterval.Duration); err != nil {
			return false, err
		}
		return false, nil
	}

	*allEvents = append(*allEvents, result.Events...)
	logger.DebugContext(ctx, "events accumulated",
		slog.Int("new", len(result.Events)),
		slog.Int("total", len(*allEvents)),
	)

	for _, market := range markets {
		if err := l.processMarket(ctx, gameID, sport, market, *allEvents, logger); err != nil {
			// One market failing must not starve the others.
			logger.ErrorContext(ctx, "market processing failed",
				slog.String("ticker", market.Ticker),
				slog.String("error", err.Error()),
			)
		}
	}

	stats, err := l.risk.Stats(ctx)
	if err != nil {
		return false, err
	}
	logger.InfoContext(ctx, "tick stats",
		slog.Float64("balance_usd", float64(stats.BalanceCents)/100),
		slog.Int("open_positions", stats.OpenPositionCount),
		slog.Float64("exposure_usd", float64(stats.TotalExposureCents)/100),
		slog.Int("daily_trades", stats.DailyTradeCount),
		slog.Float64("daily_pnl_usd", float64(stats.DailyPnLCents)/100),
	)

	if err := l.sleep(ctx, l.cfg.PollInterval.Duration); err != nil {
		return false, err
	}
	return false, nil
}

// processMarket evaluates one market against the accumulated events and trades
// it when the edge and risk gates allow.
func (l *Loop) processMarket(ctx context.Context, gameID string, sport domain.Sport, market domain.MarketSnapshot, allEvents []domain.GameEvent, logger *slog.Logger) error {
	// Discovery snapshots go stale fast; always act on fresh prices.
	fresh, err := l.exchange.GetMarket(ctx, market.Ticker)
	if err != nil {
		return err
	}
	if !fresh.Active() {
		return nil
	}

	estimate, err := l.forecaster.EstimateProbability(ctx, sport, gameID, allEvents, fresh)
	if err != nil {
		return err
	}

	candidate, ok := Evaluate(estimate, fresh)
	if !ok {
		logger.DebugContext(ctx, "no edge", slog.String("ticker", fresh.Ticker))
		return nil
	}

	decision, err := l.risk.CheckTrade(ctx, TradeRequest{
		MarketTicker:         fresh.Ticker,
		GameID:               gameID,
		Side:                 candidate.Side,
		EstimatedProbability: candidate.Probability,
		MarketPriceCents:     candidate.PriceCents,
		Confidence:           estimate.Confidence,
	})
	if err != nil {
		return err
	}
	if !decision.Approved {
		logger.InfoContext(ctx, "trade skipped",
			slog.String("ticker", fresh.Ticker),
			slog.String("side", string(candidate.Side)),
			slog.String("reason", decision.RejectionReason),
		)
		return nil
	}

	return l.executeTrade(ctx, gameID, fresh, candidate, estimate, decision, logger)
}

// executeTrade writes the order record and, outside paper mode, submits the
// order to the exchange first.
func (l *Loop) executeTrade(ctx context.Context, gameID string, market domain.MarketSnapshot, candidate domain.TradeCandidate, estimate domain.ProbabilityEstimate, decision domain.TradeDecision, logger *slog.Logger) error {
	// The audit trail keeps the exact inputs that produced the trade.
	metadata, err := json.Marshal(struct {
		Estimate  domain.ProbabilityEstimate `json:"estimate"`
		RiskCheck domain.TradeDecision       `json:"riskCheck"`
	}{estimate, decision})
	if err != nil {
		return fmt.Errorf("marshal order metadata: %w", err)
	}

	order := domain.Order{
		ID:              uuid.New().String(),
		MarketType:      "kalshi",
		MarketID:        market.Ticker,
		MarketTitle:     market.Title,
		Side:            candidate.Side,
		SizeCents:       decision.PositionSizeCents,
		EntryPriceCents: candidate.PriceCents,
		Status:          domain.OrderStatusPaper,
		OpenedAt:        time.Now(),
		Strategy:        strategyName,
		GameID:          gameID,
		Metadata:        string(metadata),
	}

	if l.cfg.Paper {
		logger.InfoContext(ctx, "paper trade",
			slog.String("ticker", market.Ticker),
			slog.String("side", string(candidate.Side)),
			slog.Int64("contracts", decision.ContractCount),
			slog.Int64("price_cents", candidate.PriceCents),
			slog.Float64("probability", candidate.Probability),
			slog.String("confidence", string(estimate.Confidence)),
		)
	} else {
		result, err := l.exchange.CreateOrder(ctx, market.Ticker, candidate.Side, decision.ContractCount)
		if err != nil {
			return fmt.Errorf("submit order: %w", err)
		}

		now := time.Now()
		order.Status = domain.OrderStatusOpen
		order.ExternalOrderID = result.OrderID
		order.SubmittedAt = &now

		logger.InfoContext(ctx, "live trade",
			slog.String("ticker", market.Ticker),
			slog.String("side", string(candidate.Side)),
			slog.Int64("contracts", decision.ContractCount),
			slog.Int64("price_cents", candidate.PriceCents),
			slog.String("order_id", result.OrderID),
		)
	}

	if err := l.orders.Create(ctx, order); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}

	mode := "LIVE"
	if l.cfg.Paper {
		mode = "PAPER"
	}
	_ = l.notifier.Notify(ctx, "trade_executed", "Trade executed",
		fmt.Sprintf("%s %s %dx %s @ %dc", mode, candidate.Side, decision.ContractCount, market.Ticker, candidate.PriceCents))

	return nil
}

// sleepContext sleeps for d unless ctx is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
