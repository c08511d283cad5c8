package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts a new order.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, market_type, market_id, market_title, side,
			size_cents, entry_price_cents, close_price_cents, pnl_cents,
			status, opened_at, closed_at, strategy, game_id, metadata,
			external_order_id, submitted_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17
		)`

	var externalID *string
	if o.ExternalOrderID != "" {
		externalID = &o.ExternalOrderID
	}

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.MarketType, o.MarketID, o.MarketTitle, string(o.Side),
		o.SizeCents, o.EntryPriceCents, o.ClosePriceCents, o.PnLCents,
		string(o.Status), o.OpenedAt, o.ClosedAt, o.Strategy, o.GameID, o.Metadata,
		externalID, o.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

const orderSelectCols = `id, market_type, market_id, market_title, side,
	size_cents, entry_price_cents, close_price_cents, pnl_cents,
	status, opened_at, closed_at, strategy, game_id, metadata,
	external_order_id, submitted_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var side, status string
	var strategy, gameID, externalID *string

	err := scanner.Scan(
		&o.ID, &o.MarketType, &o.MarketID, &o.MarketTitle, &side,
		&o.SizeCents, &o.EntryPriceCents, &o.ClosePriceCents, &o.PnLCents,
		&status, &o.OpenedAt, &o.ClosedAt, &strategy, &gameID, &o.Metadata,
		&externalID, &o.SubmittedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Side = domain.TradeSide(side)
	o.Status = domain.OrderStatus(status)
	if strategy != nil {
		o.Strategy = *strategy
	}
	if gameID != nil {
		o.GameID = *gameID
	}
	if externalID != nil {
		o.ExternalOrderID = *externalID
	}
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID retrieves a single order by ID.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListOpen returns all orders in open status, newest first.
func (s *OrderStore) ListOpen(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE status = 'open'
		 ORDER BY opened_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open orders: %w", err)
	}
	return orders, nil
}

// ListOpenByMarket returns open orders for a single market ticker.
func (s *OrderStore) ListOpenByMarket(ctx context.Context, marketID string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE market_id = $1 AND status = 'open'
		 ORDER BY opened_at DESC`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders for %s: %w", marketID, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open orders for %s: %w", marketID, err)
	}
	return orders, nil
}

// ListOpenedSince returns orders opened at or after t, regardless of status.
func (s *OrderStore) ListOpenedSince(ctx context.Context, t time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE opened_at >= $1
		 ORDER BY opened_at DESC`, t)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders since %s: %w", t, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders since %s: %w", t, err)
	}
	return orders, nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
