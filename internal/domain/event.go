package domain

import "time"

// Event types published on the signal bus and websocket hub.
const (
	EventDetection      = "detection"
	EventMarketCreated  = "market_created"
	EventProposal       = "settlement_proposed"
	EventMarketSettled  = "market_settled"
	EventProposalReject = "proposal_rejected"
	EventCycleComplete  = "cycle_complete"
)

// Event is the JSON envelope written to pub/sub channels.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}
