package trading

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/valuebot/internal/config"
	"github.com/alanyoungcy/valuebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTradingConfig() config.TradingConfig {
	cfg := config.Defaults().Trading
	cfg.PollInterval.Duration = time.Millisecond
	return cfg
}

// ---------------------------------------------------------------------------
// In-memory stores
// ---------------------------------------------------------------------------

type memOrderStore struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (s *memOrderStore) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	return nil
}

func (s *memOrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *memOrderStore) ListOpen(_ context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusOpen {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderStore) ListOpenByMarket(_ context.Context, marketID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusOpen && o.MarketID == marketID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderStore) ListOpenedSince(_ context.Context, t time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if !o.OpenedAt.Before(t) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderStore) all() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Order(nil), s.orders...)
}

type memGameStore struct {
	mu    sync.Mutex
	games map[string]domain.Game
}

func newMemGameStore() *memGameStore {
	return &memGameStore{games: make(map[string]domain.Game)}
}

func (s *memGameStore) Upsert(_ context.Context, g domain.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.GameID] = g
	return nil
}

func (s *memGameStore) GetByGameID(_ context.Context, gameID string) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return domain.Game{}, domain.ErrNotFound
	}
	return g, nil
}

func (s *memGameStore) UpdateStatus(_ context.Context, gameID string, status domain.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return domain.ErrNotFound
	}
	g.Status = status
	s.games[gameID] = g
	return nil
}

func (s *memGameStore) ListBySport(_ context.Context, sport domain.Sport) ([]domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Game
	for _, g := range s.games {
		if g.Sport == sport {
			out = append(out, g)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Fake collaborators
// ---------------------------------------------------------------------------

type placedOrder struct {
	ticker string
	side   domain.TradeSide
	count  int64
}

type fakeExchange struct {
	mu            sync.Mutex
	balanceCents  int64
	searchResults []domain.MarketSnapshot
	searchErr     error
	searchCalls   int
	markets       map[string]domain.MarketSnapshot
	getMarketErr  map[string]error
	placed        []placedOrder
}

func newFakeExchange(balanceCents int64) *fakeExchange {
	return &fakeExchange{
		balanceCents: balanceCents,
		markets:      make(map[string]domain.MarketSnapshot),
		getMarketErr: make(map[string]error),
	}
}

func (e *fakeExchange) SearchMarkets(_ context.Context, _, _ string, _ time.Time, _ domain.Sport) ([]domain.MarketSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.searchCalls++
	return e.searchResults, e.searchErr
}

func (e *fakeExchange) GetMarket(_ context.Context, ticker string) (domain.MarketSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.getMarketErr[ticker]; err != nil {
		return domain.MarketSnapshot{}, err
	}
	m, ok := e.markets[ticker]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return m, nil
}

func (e *fakeExchange) CreateOrder(_ context.Context, ticker string, side domain.TradeSide, count int64) (domain.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.placed = append(e.placed, placedOrder{ticker: ticker, side: side, count: count})
	return domain.OrderResult{OrderID: "ord-1", Status: "executed", FilledCount: count}, nil
}

func (e *fakeExchange) GetBalance(_ context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balanceCents, nil
}

type fakeFeed struct {
	mu        sync.Mutex
	schedules map[domain.Sport][]domain.Game
	games     *memGameStore
	poll      func(call int) (domain.FeedResult, error)
	pollCalls int
}

// GetSchedule mirrors the real feed client: fetched games are upserted into
// the game store as a side effect.
func (f *fakeFeed) GetSchedule(ctx context.Context, sport domain.Sport) ([]domain.Game, error) {
	f.mu.Lock()
	games := f.schedules[sport]
	f.mu.Unlock()
	if f.games != nil {
		for _, g := range games {
			if err := f.games.Upsert(ctx, g); err != nil {
				return nil, err
			}
		}
	}
	return games, nil
}

func (f *fakeFeed) GetLiveEvents(_ context.Context, _ string, _ domain.Sport, _ int) (domain.FeedResult, error) {
	f.mu.Lock()
	f.pollCalls++
	call := f.pollCalls
	f.mu.Unlock()
	if f.poll == nil {
		return domain.FeedResult{}, nil
	}
	return f.poll(call)
}

type fakeForecaster struct {
	estimate domain.ProbabilityEstimate
	err      error
}

func (f *fakeForecaster) EstimateProbability(_ context.Context, _ domain.Sport, _ string, _ []domain.GameEvent, _ domain.MarketSnapshot) (domain.ProbabilityEstimate, error) {
	return f.estimate, f.err
}

type notification struct {
	event   string
	message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{event: event, message: message})
	return nil
}

func (n *fakeNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.event)
	}
	return out
}
