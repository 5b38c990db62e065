package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents the lifecycle state of a betting market.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusResolved MarketStatus = "resolved"
)

// MarketType distinguishes binary yes/no markets from multi-option ones.
type MarketType string

const (
	MarketTypeBinary MarketType = "binary"
	MarketTypeMulti  MarketType = "multi"
)

// Market is a betting market, usually spawned from a detected battle on a
// live stream. PlayerOne and PlayerTwo are empty for markets that were not
// created from a two-party detection.
type Market struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	EventDate      time.Time       `json:"event_date"`
	Status         MarketStatus    `json:"status"`
	MarketType     MarketType      `json:"market_type"`
	YesOdds        decimal.Decimal `json:"yes_odds"`
	NoOdds         decimal.Decimal `json:"no_odds"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	Liquidity      decimal.Decimal `json:"liquidity"`
	ImageURL       string          `json:"image_url"`
	SessionID      string          `json:"twitch_stream_id"`
	ChannelName    string          `json:"twitch_channel_name"`
	IsLiveStream   bool            `json:"is_live_stream"`
	StreamEmbedURL string          `json:"stream_embed_url"`
	PlayerOne      string          `json:"player_one,omitempty"`
	PlayerTwo      string          `json:"player_two,omitempty"`
	ViewerCount    int             `json:"viewer_count"`
	Outcome        string          `json:"outcome,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HasPlayers reports whether both participant labels are recorded.
func (m Market) HasPlayers() bool {
	return m.PlayerOne != "" && m.PlayerTwo != ""
}

// IsParticipant reports whether name is exactly one of the market's players.
func (m Market) IsParticipant(name string) bool {
	return name != "" && (name == m.PlayerOne || name == m.PlayerTwo)
}

// MarketOption is one selectable outcome of a market.
type MarketOption struct {
	ID        string          `json:"id"`
	MarketID  string          `json:"market_id"`
	Name      string          `json:"option_name"`
	Odds      decimal.Decimal `json:"odds"`
	TotalPool decimal.Decimal `json:"total_pool"`
}
