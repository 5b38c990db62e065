package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

const maxPageSize = 100

// GetStreams returns one page of live streams and the cursor for the next
// page (empty when there is none).
func (c *Client) GetStreams(ctx context.Context, q StreamsQuery) ([]APIStream, string, error) {
	params := url.Values{}
	for _, id := range q.GameIDs {
		params.Add("game_id", id)
	}
	for _, login := range q.UserLogins {
		params.Add("user_login", login)
	}
	first := q.First
	if first <= 0 || first > maxPageSize {
		first = maxPageSize
	}
	params.Set("first", strconv.Itoa(first))
	if q.After != "" {
		params.Set("after", q.After)
	}

	body, err := c.doGet(ctx, "/streams", params)
	if err != nil {
		return nil, "", fmt.Errorf("twitch: get streams: %w", err)
	}
	var resp streamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("twitch: decode streams: %w", err)
	}
	return resp.Data, resp.Pagination.Cursor, nil
}

// LiveStreams fetches live streams for the given games, following the
// pagination cursor for at most maxPages pages.
func (c *Client) LiveStreams(ctx context.Context, gameIDs []string, first, maxPages int) ([]domain.LiveStream, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	var (
		out    []domain.LiveStream
		cursor string
	)
	for page := 0; page < maxPages; page++ {
		streams, next, err := c.GetStreams(ctx, StreamsQuery{GameIDs: gameIDs, First: first, After: cursor})
		if err != nil {
			return nil, err
		}
		for _, s := range streams {
			out = append(out, s.ToDomain())
		}
		if next == "" || len(streams) == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}
