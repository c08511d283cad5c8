package domain

import (
	"encoding/json"
	"time"
)

// GameEvent is one live event from the sports feed. The payload shape varies
// by sport, so everything beyond the identifying fields is kept as raw JSON
// and passed through to the forecaster untouched.
type GameEvent struct {
	EventID        string          `json:"event_id,omitempty"`
	ID             string          `json:"id,omitempty"`
	GameID         string          `json:"game_id,omitempty"`
	WallClockStart string          `json:"wall_clock_start,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// Identifier returns the event's feed identifier, preferring event_id.
func (e GameEvent) Identifier() string {
	if e.EventID != "" {
		return e.EventID
	}
	return e.ID
}

// Connection records a feed subscription and its incremental polling cursor.
// The feed client reuses connections by filter text and advances LastEventID
// after every successful poll.
type Connection struct {
	ID                 string
	ConnectionID       string // identifier assigned by the feed
	FilterInstructions string
	Sport              Sport
	Enabled            bool
	Name               string
	Description        string
	CreatedAt          time.Time
	LastRunAt          *time.Time
	LastEventID        string
}
