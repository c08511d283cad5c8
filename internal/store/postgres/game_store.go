package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

// GameStore implements domain.GameStore using PostgreSQL.
type GameStore struct {
	pool *pgxpool.Pool
}

// NewGameStore creates a new GameStore backed by the given connection pool.
func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

// Upsert inserts a game or refreshes its schedule-derived fields, keyed by the
// external game_id. Lifecycle timestamps are never touched here; those belong
// to UpdateStatus.
func (s *GameStore) Upsert(ctx context.Context, g domain.Game) error {
	const query = `
		INSERT INTO games (
			id, game_id, sport, status, home_team, away_team, venue,
			scheduled_start_time, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (game_id) DO UPDATE SET
			status = EXCLUDED.status,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			venue = EXCLUDED.venue,
			scheduled_start_time = EXCLUDED.scheduled_start_time,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		g.ID, g.GameID, string(g.Sport), string(g.Status),
		g.HomeTeam, g.AwayTeam, g.Venue,
		g.ScheduledStartTime, g.Metadata,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert game %s: %w", g.GameID, err)
	}
	return nil
}

const gameSelectCols = `id, game_id, sport, status, home_team, away_team, venue,
	scheduled_start_time, actual_start_time, end_time, metadata, created_at, updated_at`

func scanGame(scanner interface{ Scan(dest ...any) error }) (domain.Game, error) {
	var g domain.Game
	var sport, status string
	var homeTeam, awayTeam, venue, metadata *string

	err := scanner.Scan(
		&g.ID, &g.GameID, &sport, &status,
		&homeTeam, &awayTeam, &venue,
		&g.ScheduledStartTime, &g.ActualStartTime, &g.EndTime,
		&metadata, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return domain.Game{}, err
	}

	g.Sport = domain.Sport(sport)
	g.Status = domain.GameStatus(status)
	if homeTeam != nil {
		g.HomeTeam = *homeTeam
	}
	if awayTeam != nil {
		g.AwayTeam = *awayTeam
	}
	if venue != nil {
		g.Venue = *venue
	}
	if metadata != nil {
		g.Metadata = *metadata
	}
	return g, nil
}

// GetByGameID retrieves a single game by its external identifier.
func (s *GameStore) GetByGameID(ctx context.Context, gameID string) (domain.Game, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+gameSelectCols+` FROM games WHERE game_id = $1`, gameID)

	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Game{}, domain.ErrNotFound
		}
		return domain.Game{}, fmt.Errorf("postgres: get game %s: %w", gameID, err)
	}
	return g, nil
}

// UpdateStatus advances the game lifecycle. actual_start_time and end_time
// are set at most once: COALESCE keeps an existing value on repeated
// transitions.
func (s *GameStore) UpdateStatus(ctx context.Context, gameID string, status domain.GameStatus) error {
	var query string
	switch status {
	case domain.GameStatusLive:
		query = `UPDATE games
			SET status = $1, actual_start_time = COALESCE(actual_start_time, NOW()), updated_at = NOW()
			WHERE game_id = $2`
	case domain.GameStatusCompleted:
		query = `UPDATE games
			SET status = $1, end_time = COALESCE(end_time, NOW()), updated_at = NOW()
			WHERE game_id = $2`
	default:
		query = `UPDATE games SET status = $1, updated_at = NOW() WHERE game_id = $2`
	}

	tag, err := s.pool.Exec(ctx, query, string(status), gameID)
	if err != nil {
		return fmt.Errorf("postgres: update game status %s: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListBySport returns all games for a sport, most recently scheduled first.
func (s *GameStore) ListBySport(ctx context.Context, sport domain.Sport) ([]domain.Game, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+gameSelectCols+` FROM games
		 WHERE sport = $1
		 ORDER BY scheduled_start_time DESC NULLS LAST`, string(sport))
	if err != nil {
		return nil, fmt.Errorf("postgres: list games for %s: %w", sport, err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// Compile-time interface check.
var _ domain.GameStore = (*GameStore)(nil)
