// Package shipp is the REST client for the Shipp sports data feed.
package shipp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

// defaultEventLimit caps a single incremental poll.
const defaultEventLimit = 100

// Client talks to the Shipp feed API and maintains the game and connection
// tables as a side effect. It implements domain.Feed.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	games  domain.GameStore
	conns  domain.ConnectionStore
	logger *slog.Logger
}

// NewClient creates a new Shipp feed client.
func NewClient(baseURL, apiKey string, games domain.GameStore, conns domain.ConnectionStore, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		games:  games,
		conns:  conns,
		logger: logger.With(slog.String("component", "shipp")),
	}
}

// GetSchedule fetches the schedule for a sport and upserts each entry into the
// game store. Entries without a usable identifier are skipped. The returned
// games carry the raw feed payload in Metadata.
func (c *Client) GetSchedule(ctx context.Context, sport domain.Sport) ([]domain.Game, error) {
	path := fmt.Sprintf("/sports/%s/schedule", url.PathEscape(string(sport)))

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("shipp: get schedule for %s: %w", sport, err)
	}

	var resp scheduleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("shipp: decode schedule: %w", err)
	}

	games := make([]domain.Game, 0, len(resp.Schedule))
	for _, raw := range resp.Schedule {
		var entry scheduleGame
		if err := json.Unmarshal(raw, &entry); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed schedule entry", slog.String("error", err.Error()))
			continue
		}
		if entry.identifier() == "" {
			continue
		}

		status := domain.GameStatus(entry.GameStatus)
		if status == "" {
			status = domain.GameStatusScheduled
		}

		g := domain.Game{
			ID:       uuid.New().String(),
			GameID:   entry.identifier(),
			Sport:    sport,
			Status:   status,
			HomeTeam: entry.Home,
			AwayTeam: entry.Away,
			Venue:    entry.Venue,
			Metadata: string(raw),
		}
		if entry.Scheduled != "" {
			if t, err := time.Parse(time.RFC3339, entry.Scheduled); err == nil {
				g.ScheduledStartTime = &t
			}
		}

		if err := c.games.Upsert(ctx, g); err != nil {
			return nil, fmt.Errorf("shipp: persist game %s: %w", g.GameID, err)
		}
		games = append(games, g)
	}

	c.logger.InfoContext(ctx, "schedule fetched",
		slog.String("sport", string(sport)),
		slog.Int("games", len(games)),
	)

	return games, nil
}

// GetLiveEvents polls the incremental event feed for one game. A connection
// scoped to the game is created on first use and reused afterwards via its
// filter text. Events belonging to other games are discarded. The first batch
// of events flips a scheduled game to live, and the connection cursor advances
// past the last consumed event.
//
// Completed games are never polled; the result is empty.
func (c *Client) GetLiveEvents(ctx context.Context, gameID string, sport domain.Sport, limit int) (domain.FeedResult, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}

	game, err := c.games.GetByGameID(ctx, gameID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Unknown game: poll anyway, the status flip is simply skipped.
	case err != nil:
		return domain.FeedResult{}, fmt.Errorf("shipp: load game %s: %w", gameID, err)
	case game.Status == domain.GameStatusCompleted:
		c.logger.InfoContext(ctx, "skipping completed game", slog.String("game_id", gameID))
		return domain.FeedResult{}, nil
	}

	filter := fmt.Sprintf("Live events for %s game %s", sport, gameID)

	conn, err := c.getOrCreateConnection(ctx, filter, sport, gameID)
	if err != nil {
		return domain.FeedResult{}, err
	}

	req := connectionRunRequest{
		SinceEventID: conn.LastEventID,
		Limit:        limit,
	}

	body, err := c.do(ctx, http.MethodPost, "/connections/"+url.PathEscape(conn.ConnectionID), req)
	if err != nil {
		return domain.FeedResult{}, fmt.Errorf("shipp: poll connection %s: %w", conn.ConnectionID, err)
	}

	var resp connectionRunResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.FeedResult{}, fmt.Errorf("shipp: decode events: %w", err)
	}

	// The connection should already be scoped to this game, but guard against
	// extra data from a reused or overly broad filter.
	var events []domain.GameEvent
	for _, raw := range resp.Data {
		var ev domain.GameEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.logger.WarnContext(ctx, "skipping malformed event", slog.String("error", err.Error()))
			continue
		}
		if ev.GameID != gameID {
			continue
		}
		ev.Raw = raw
		events = append(events, ev)
	}

	if len(events) > 0 {
		if game.Status == domain.GameStatusScheduled {
			if err := c.games.UpdateStatus(ctx, gameID, domain.GameStatusLive); err != nil {
				return domain.FeedResult{}, fmt.Errorf("shipp: mark game live %s: %w", gameID, err)
			}
			c.logger.InfoContext(ctx, "game is live", slog.String("game_id", gameID))
		}

		if lastID := events[len(events)-1].Identifier(); lastID != "" {
			if err := c.conns.UpdateCursor(ctx, conn.ConnectionID, lastID); err != nil {
				return domain.FeedResult{}, fmt.Errorf("shipp: advance cursor %s: %w", conn.ConnectionID, err)
			}
		}
	}

	c.logger.DebugContext(ctx, "live events polled",
		slog.String("game_id", gameID),
		slog.Int("events", len(events)),
	)

	return domain.FeedResult{ConnectionID: conn.ConnectionID, Events: events}, nil
}

// getOrCreateConnection returns the stored connection for a filter, creating
// one through the API on first use.
func (c *Client) getOrCreateConnection(ctx context.Context, filter string, sport domain.Sport, gameID string) (domain.Connection, error) {
	conn, err := c.conns.GetByFilter(ctx, filter)
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Connection{}, fmt.Errorf("shipp: lookup connection: %w", err)
	}

	c.logger.InfoContext(ctx, "creating connection", slog.String("filter", filter))

	body, err := c.do(ctx, http.MethodPost, "/connections/create", connectionCreateRequest{
		FilterInstructions: filter,
	})
	if err != nil {
		return domain.Connection{}, fmt.Errorf("shipp: create connection: %w", err)
	}

	var resp connectionCreateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Connection{}, fmt.Errorf("shipp: decode connection: %w", err)
	}

	conn = domain.Connection{
		ID:                 uuid.New().String(),
		ConnectionID:       resp.ConnectionID,
		FilterInstructions: filter,
		Sport:              sport,
		Enabled:            resp.Enabled,
		Name:               fmt.Sprintf("%s - %s", sport, gameID),
	}
	if err := c.conns.Create(ctx, conn); err != nil {
		return domain.Connection{}, fmt.Errorf("shipp: persist connection %s: %w", resp.ConnectionID, err)
	}

	return conn, nil
}

// do builds, sends, and reads an HTTP request against the Shipp API. The API
// key travels as a query parameter on every request.
func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path
	if c.apiKey != "" {
		sep := "?"
		if u, err := url.Parse(fullURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		fullURL += sep + "api_key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Error bodies stay out of logs and errors: the key is on the URL.
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("HTTP %d %s: %w", resp.StatusCode, path, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, path)
	}

	return respBody, nil
}

// Compile-time interface check.
var _ domain.Feed = (*Client)(nil)
