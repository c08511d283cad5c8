package domain

// Confidence is the forecaster's self-reported confidence tier.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// confidenceRank orders tiers for threshold comparisons. Unknown tiers rank
// below low so a malformed value never passes a confidence floor.
var confidenceRank = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// Rank returns the ordinal rank of the tier (low=0, medium=1, high=2).
// Unknown values return -1.
func (c Confidence) Rank() int {
	if r, ok := confidenceRank[c]; ok {
		return r
	}
	return -1
}

// ProbabilityEstimate is the forecaster's view of a market: the probability
// that the YES outcome occurs. YesProbability is clamped to [0,1] by the
// forecaster adapter before the core consumes it.
type ProbabilityEstimate struct {
	YesProbability float64    `json:"yesProbability"`
	Confidence     Confidence `json:"confidence"`
	Reasoning      string     `json:"reasoning"`
}
