package twitch

import (
	"time"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// APIStream is the Helix representation of a live stream.
type APIStream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameID       string    `json:"game_id"`
	GameName     string    `json:"game_name"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	Language     string    `json:"language"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

// ToDomain converts the API stream to the domain type.
func (s APIStream) ToDomain() domain.LiveStream {
	return domain.LiveStream{
		ID:           s.ID,
		UserID:       s.UserID,
		UserLogin:    s.UserLogin,
		UserName:     s.UserName,
		GameID:       s.GameID,
		GameName:     s.GameName,
		Title:        s.Title,
		ViewerCount:  s.ViewerCount,
		StartedAt:    s.StartedAt,
		Language:     s.Language,
		ThumbnailURL: s.ThumbnailURL,
	}
}

// Category is a Helix game category, as returned by search and /games.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

type pagination struct {
	Cursor string `json:"cursor"`
}

type streamsResponse struct {
	Data       []APIStream `json:"data"`
	Pagination pagination  `json:"pagination"`
}

type categoriesResponse struct {
	Data []Category `json:"data"`
}

// StreamsQuery filters GET /streams. Every game ID and login is sent.
type StreamsQuery struct {
	GameIDs    []string
	UserLogins []string
	First      int
	After      string
}
