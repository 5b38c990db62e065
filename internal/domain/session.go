package domain

import "time"

// LiveStream is one broadcast as reported by the streaming platform.
type LiveStream struct {
	ID           string
	UserID       string
	UserLogin    string
	UserName     string
	GameID       string
	GameName     string
	Title        string
	ViewerCount  int
	StartedAt    time.Time
	Language     string
	ThumbnailURL string // templated, contains {width} and {height}
}

// Session is our record of an observed live broadcast, keyed by the
// platform's stream ID.
type Session struct {
	ID           string     `json:"id"`
	StreamID     string     `json:"stream_id"`
	ChannelName  string     `json:"channel_name"`
	UserID       string     `json:"user_id"`
	GameID       string     `json:"game_id"`
	GameName     string     `json:"game_name"`
	Title        string     `json:"title"`
	ViewerCount  int        `json:"viewer_count"`
	ThumbnailURL string     `json:"thumbnail_url"`
	IsLive       bool       `json:"is_live"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SessionUpdate carries the mutable fields refreshed on every poll where the
// title changed or the session came back live.
type SessionUpdate struct {
	Title        string
	ViewerCount  int
	ThumbnailURL string
}

// GameCategory is a platform category that the monitor polls for streams.
type GameCategory struct {
	GameID    string    `json:"game_id"`
	GameName  string    `json:"game_name"`
	Category  string    `json:"game_category,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
