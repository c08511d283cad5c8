package shipp

import "encoding/json"

// --------------------------------------------------------------------------
// Shipp API DTOs. Payload shapes vary by sport, so list entries are decoded
// twice: once into the identifying fields and once kept as raw JSON.
// --------------------------------------------------------------------------

// scheduleResponse is the body of GET /sports/{sport}/schedule.
type scheduleResponse struct {
	Schedule []json.RawMessage `json:"schedule"`
}

// scheduleGame holds the identifying fields of one schedule entry.
type scheduleGame struct {
	GameID     string `json:"game_id"`
	ID         string `json:"id"`
	Home       string `json:"home"`
	Away       string `json:"away"`
	Scheduled  string `json:"scheduled"` // ISO 8601
	GameStatus string `json:"game_status"`
	Venue      string `json:"venue"`
}

// identifier returns the entry's feed identifier, preferring game_id.
func (g scheduleGame) identifier() string {
	if g.GameID != "" {
		return g.GameID
	}
	return g.ID
}

// connectionCreateRequest is the body of POST /connections/create.
type connectionCreateRequest struct {
	FilterInstructions string `json:"filter_instructions"`
}

// connectionCreateResponse is the reply to a connection create.
type connectionCreateResponse struct {
	ConnectionID string `json:"connection_id"`
	Enabled      bool   `json:"enabled"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

// connectionRunRequest is the body of POST /connections/{id}.
type connectionRunRequest struct {
	Since        string `json:"since,omitempty"`
	SinceEventID string `json:"since_event_id,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// connectionRunResponse is one incremental batch of feed events.
type connectionRunResponse struct {
	ConnectionID string            `json:"connection_id"`
	Data         []json.RawMessage `json:"data"`
}
