package domain

// TradeCandidate is the edge evaluator's output: the side worth buying and
// the price it would be bought at.
type TradeCandidate struct {
	Side        TradeSide `json:"side"`
	Probability float64   `json:"probability"` // probability attributed to Side
	PriceCents  int64     `json:"priceCents"`
}

// TradeDecision is the risk manager's verdict on a candidate. Stats is the
// account snapshot the decision was derived from, kept for the audit trail.
type TradeDecision struct {
	Approved          bool         `json:"approved"`
	PositionSizeCents int64        `json:"positionSizeCents"`
	ContractCount     int64        `json:"contractCount"`
	RejectionReason   string       `json:"rejectionReason,omitempty"`
	Stats             TradingStats `json:"stats"`
}

// TradingStats is the derived account state used by the risk gates. It is
// recomputed from the order table and a live balance query on every risk
// check, never cached.
type TradingStats struct {
	BalanceCents       int64 `json:"balanceCents"`
	OpenPositionCount  int   `json:"openPositionCount"`
	TotalExposureCents int64 `json:"totalExposureCents"`
	DailyTradeCount    int   `json:"dailyTradeCount"`
	DailyPnLCents      int64 `json:"dailyPnlCents"`
}
