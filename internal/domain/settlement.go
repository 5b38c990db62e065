package domain

import "time"

// SettlementStatus is the closed set of states a settlement proposal can be
// in. The first three are the tags a monitor may attach when proposing; the
// last two are terminal states reached by the settle step or an admin.
type SettlementStatus string

const (
	SettlementAutoSettle        SettlementStatus = "auto_settle"
	SettlementNeedsReview       SettlementStatus = "needs_review"
	SettlementNeedsManualReview SettlementStatus = "needs_manual_review"
	SettlementSettled           SettlementStatus = "settled"
	SettlementRejected          SettlementStatus = "rejected"
)

// IsProposalTag reports whether s may be attached to a newly created proposal.
func (s SettlementStatus) IsProposalTag() bool {
	switch s {
	case SettlementAutoSettle, SettlementNeedsReview, SettlementNeedsManualReview:
		return true
	}
	return false
}

// IsReview reports whether s requires a human decision.
func (s SettlementStatus) IsReview() bool {
	return s == SettlementNeedsReview || s == SettlementNeedsManualReview
}

// IsTerminal reports whether no further transition is allowed from s.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementSettled || s == SettlementRejected
}

// ParseSettlementStatus validates a raw status string.
func ParseSettlementStatus(raw string) (SettlementStatus, error) {
	s := SettlementStatus(raw)
	if s.IsProposalTag() || s.IsTerminal() {
		return s, nil
	}
	return "", ErrInvalidStatus
}

// SettlementProposal records a detected (or missing) winner for a market.
// Winner is empty when the stream ended without an actionable winner.
type SettlementProposal struct {
	ID          string           `json:"id"`
	MarketID    string           `json:"market_id"`
	SessionID   string           `json:"stream_session_id"`
	StreamTitle string           `json:"stream_title"`
	Winner      string           `json:"parsed_winner,omitempty"`
	Confidence  int              `json:"confidence_score"`
	Status      SettlementStatus `json:"settlement_status"`
	SettledAt   *time.Time       `json:"settled_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ReviewItem is a proposal joined with the market fields an admin needs to
// decide on it.
type ReviewItem struct {
	SettlementProposal
	MarketTitle string `json:"market_title"`
	PlayerOne   string `json:"player_one,omitempty"`
	PlayerTwo   string `json:"player_two,omitempty"`
	ChannelName string `json:"twitch_channel_name,omitempty"`
}

// DetectionLog is an append-only audit row written for every detection made
// on a session title.
type DetectionLog struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"stream_session_id"`
	RawTitle   string    `json:"raw_title"`
	PlayerOne  string    `json:"detected_player_one,omitempty"`
	PlayerTwo  string    `json:"detected_player_two,omitempty"`
	Winner     string    `json:"detected_winner,omitempty"`
	Pattern    string    `json:"detection_pattern"`
	Confidence int       `json:"confidence_score"`
	CreatedAt  time.Time `json:"created_at"`
}
