package detection

import "github.com/alanyoungcy/battleoracle/internal/domain"

// Decision thresholds.
const (
	CreateMarketThreshold = 75
	AutoSettleThreshold   = 90
	ReviewThreshold       = 70
)

// ShouldCreateMarket reports whether a fresh detection is a credible
// two-party contest.
func ShouldCreateMarket(r Result) bool {
	return r.Confidence >= CreateMarketThreshold && r.HasPlayers() && r.PlayerOne != r.PlayerTwo
}

// ShouldAutoSettle reports whether the winner can be applied without a human.
func ShouldAutoSettle(r Result) bool {
	if r.Confidence < AutoSettleThreshold || !r.HasWinner() {
		return false
	}
	return r.Winner == r.PlayerOne || r.Winner == r.PlayerTwo
}

// NeedsAdminReview reports whether the winner is plausible but not certain.
func NeedsAdminReview(r Result) bool {
	return r.Confidence >= ReviewThreshold && r.Confidence < AutoSettleThreshold && r.HasWinner()
}

// ProposalStatus maps a winner resolution to the tag its proposal carries.
// Results below the review range, or certain results without a valid winner,
// produce no proposal.
func ProposalStatus(r Result) (domain.SettlementStatus, bool) {
	switch {
	case ShouldAutoSettle(r):
		return domain.SettlementAutoSettle, true
	case NeedsAdminReview(r):
		return domain.SettlementNeedsReview, true
	}
	return "", false
}
