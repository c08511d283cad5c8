package domain

import "time"

// Sport identifies a sports league supported by the feed.
type Sport string

const (
	SportNBA    Sport = "NBA"
	SportNFL    Sport = "NFL"
	SportNCAAFB Sport = "NCAAFB"
	SportMLB    Sport = "MLB"
	SportSoccer Sport = "Soccer"
)

// KnownSports lists every sport the feed can serve, in the order game
// resolution tries them.
var KnownSports = []Sport{SportNBA, SportNFL, SportNCAAFB, SportMLB, SportSoccer}

// GameStatus represents the lifecycle state of a tracked game.
// Transitions are monotonic: scheduled -> live -> completed.
type GameStatus string

const (
	GameStatusScheduled GameStatus = "scheduled"
	GameStatusLive      GameStatus = "live"
	GameStatusCompleted GameStatus = "completed"
)

// statusRank orders game statuses for the monotonic-transition check.
var statusRank = map[GameStatus]int{
	GameStatusScheduled: 0,
	GameStatusLive:      1,
	GameStatusCompleted: 2,
}

// CanTransition reports whether moving from s to next is a valid (forward)
// lifecycle transition. A status never moves backward and completed is
// terminal.
func (s GameStatus) CanTransition(next GameStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Game is one tracked sporting event. It is created on first schedule
// ingestion and advanced by the feed client and the trading loop; it is never
// deleted.
type Game struct {
	ID                 string
	GameID             string // external feed identifier, unique
	Sport              Sport
	Status             GameStatus
	HomeTeam           string
	AwayTeam           string
	Venue              string
	ScheduledStartTime *time.Time
	ActualStartTime    *time.Time // set once, on the first transition to live
	EndTime            *time.Time // set once, on the transition to completed
	Metadata           string     // raw feed payload, JSON
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
