// Package trading contains the value-betting core: edge evaluation, risk
// gating with Kelly sizing, and the per-game trading loop.
package trading

import "github.com/alanyoungcy/valuebot/internal/domain"

// Evaluate compares a probability estimate against a market's ask prices and
// picks the side worth buying, if any.
//
// The yes edge is the estimated probability minus the yes ask (as a
// probability); the no edge is the complement probability minus the no ask.
// Yes wins when its edge is strictly larger and positive; otherwise no wins
// when its edge is positive. Equal positive edges therefore go to no. The
// second return value is false when neither side has a positive edge.
func Evaluate(estimate domain.ProbabilityEstimate, market domain.MarketSnapshot) (domain.TradeCandidate, bool) {
	yesEdge := estimate.YesProbability - float64(market.YesAskCents)/100
	noEdge := (1 - estimate.YesProbability) - float64(market.NoAskCents)/100

	switch {
	case yesEdge > noEdge && yesEdge > 0:
		return domain.TradeCandidate{
			Side:        domain.TradeSideYes,
			Probability: estimate.YesProbability,
			PriceCents:  market.YesAskCents,
		}, true
	case noEdge > 0:
		return domain.TradeCandidate{
			Side:        domain.TradeSideNo,
			Probability: 1 - estimate.YesProbability,
			PriceCents:  market.NoAskCents,
		}, true
	default:
		return domain.TradeCandidate{}, false
	}
}
