package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/valuebot/internal/domain"
	"github.com/alanyoungcy/valuebot/internal/trading"
)

// gameLockTTL bounds how long a crashed process can shadow a game. It covers
// the longest games with room to spare; a clean exit releases the lock
// immediately.
const gameLockTTL = 8 * time.Hour

// runTradeMode runs one trading loop per configured game, each guarded by a
// Redis lock so two processes never trade the same game concurrently.
func (a *App) runTradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Int("games", len(a.cfg.Games)),
	)

	risk := trading.NewRiskManager(a.cfg.Trading, deps.Exchange, deps.OrderStore, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	for _, gameID := range a.cfg.Games {
		gameID := gameID
		g.Go(func() error {
			unlock, err := deps.LockManager.Acquire(ctx, "game:"+gameID, gameLockTTL)
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.WarnContext(ctx, "game already being traded elsewhere, skipping",
					slog.String("game_id", gameID),
				)
				return nil
			}
			if err != nil {
				return fmt.Errorf("app: lock game %s: %w", gameID, err)
			}
			defer unlock()

			loop := trading.NewLoop(
				a.cfg.Trading,
				deps.GameStore,
				deps.OrderStore,
				deps.Feed,
				deps.Exchange,
				deps.Forecaster,
				risk,
				deps.Notifier,
				a.logger,
			)
			return loop.Run(ctx, gameID)
		})
	}

	return g.Wait()
}

// runGamesMode fetches the schedule for every known sport and prints the
// upcoming games so the operator can pick game ids for trade mode.
func (a *App) runGamesMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting games mode")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SPORT\tGAME ID\tAWAY\tHOME\tSTART\tSTATUS")

	for _, sport := range domain.KnownSports {
		games, err := deps.Feed.GetSchedule(ctx, sport)
		if err != nil {
			// A sport with no feed coverage should not hide the others.
			a.logger.WarnContext(ctx, "schedule fetch failed",
				slog.String("sport", string(sport)),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, game := range games {
			start := "TBD"
			if game.ScheduledStartTime != nil {
				start = game.ScheduledStartTime.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				sport, game.GameID, game.AwayTeam, game.HomeTeam, start, game.Status)
		}
	}

	return w.Flush()
}
