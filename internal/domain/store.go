package domain

import (
	"context"
	"time"
)

// GameStore persists tracked games keyed by the external game identifier.
type GameStore interface {
	Upsert(ctx context.Context, game Game) error
	GetByGameID(ctx context.Context, gameID string) (Game, error)
	// UpdateStatus advances the game lifecycle. The store sets
	// actual_start_time on the first transition to live and end_time on the
	// transition to completed, each exactly once.
	UpdateStatus(ctx context.Context, gameID string, status GameStatus) error
	ListBySport(ctx context.Context, sport Sport) ([]Game, error)
}

// OrderStore persists trade orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	// ListOpen returns every order in open status (paper orders are not
	// exposure).
	ListOpen(ctx context.Context) ([]Order, error)
	ListOpenByMarket(ctx context.Context, marketID string) ([]Order, error)
	// ListOpenedSince returns orders opened at or after t, any status.
	ListOpenedSince(ctx context.Context, t time.Time) ([]Order, error)
}

// ConnectionStore persists feed connections and their incremental cursors.
type ConnectionStore interface {
	Create(ctx context.Context, conn Connection) error
	GetByFilter(ctx context.Context, filterInstructions string) (Connection, error)
	UpdateCursor(ctx context.Context, connectionID, lastEventID string) error
}
