package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

// ConnectionStore implements domain.ConnectionStore using PostgreSQL.
type ConnectionStore struct {
	pool *pgxpool.Pool
}

// NewConnectionStore creates a new ConnectionStore backed by the given pool.
func NewConnectionStore(pool *pgxpool.Pool) *ConnectionStore {
	return &ConnectionStore{pool: pool}
}

// Create inserts a new feed connection record.
func (s *ConnectionStore) Create(ctx context.Context, c domain.Connection) error {
	const query = `
		INSERT INTO connections (
			id, connection_id, filter_instructions, sport, enabled,
			name, description, created_at, last_run_at, last_event_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.ConnectionID, c.FilterInstructions, string(c.Sport), c.Enabled,
		c.Name, c.Description, c.LastRunAt, c.LastEventID,
	)
	if err != nil {
		return fmt.Errorf("postgres: create connection %s: %w", c.ConnectionID, err)
	}
	return nil
}

const connectionSelectCols = `id, connection_id, filter_instructions, sport, enabled,
	name, description, created_at, last_run_at, last_event_id`

func scanConnection(scanner interface{ Scan(dest ...any) error }) (domain.Connection, error) {
	var c domain.Connection
	var sport string
	var name, description, lastEventID *string

	err := scanner.Scan(
		&c.ID, &c.ConnectionID, &c.FilterInstructions, &sport, &c.Enabled,
		&name, &description, &c.CreatedAt, &c.LastRunAt, &lastEventID,
	)
	if err != nil {
		return domain.Connection{}, err
	}

	c.Sport = domain.Sport(sport)
	if name != nil {
		c.Name = *name
	}
	if description != nil {
		c.Description = *description
	}
	if lastEventID != nil {
		c.LastEventID = *lastEventID
	}
	return c, nil
}

// GetByFilter retrieves a connection by its filter instructions.
func (s *ConnectionStore) GetByFilter(ctx context.Context, filter string) (domain.Connection, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+connectionSelectCols+` FROM connections WHERE filter_instructions = $1`, filter)

	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Connection{}, domain.ErrNotFound
		}
		return domain.Connection{}, fmt.Errorf("postgres: get connection by filter: %w", err)
	}
	return c, nil
}

// UpdateCursor records the most recently consumed event for a connection and
// stamps last_run_at. An empty lastEventID leaves the stored cursor in place.
func (s *ConnectionStore) UpdateCursor(ctx context.Context, connectionID, lastEventID string) error {
	const query = `
		UPDATE connections
		SET last_run_at = NOW(),
		    last_event_id = CASE WHEN $2 = '' THEN last_event_id ELSE $2 END
		WHERE connection_id = $1`

	tag, err := s.pool.Exec(ctx, query, connectionID, lastEventID)
	if err != nil {
		return fmt.Errorf("postgres: update connection cursor %s: %w", connectionID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.ConnectionStore = (*ConnectionStore)(nil)
