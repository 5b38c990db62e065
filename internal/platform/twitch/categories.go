package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// SearchCategories returns categories whose names match query.
func (c *Client) SearchCategories(ctx context.Context, query string) ([]Category, error) {
	params := url.Values{}
	params.Set("query", query)

	body, err := c.doGet(ctx, "/search/categories", params)
	if err != nil {
		return nil, fmt.Errorf("twitch: search categories %q: %w", query, err)
	}
	var resp categoriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("twitch: decode categories: %w", err)
	}
	return resp.Data, nil
}

// GetGame returns a single category by ID.
func (c *Client) GetGame(ctx context.Context, id string) (Category, error) {
	params := url.Values{}
	params.Set("id", id)

	body, err := c.doGet(ctx, "/games", params)
	if err != nil {
		return Category{}, fmt.Errorf("twitch: get game %s: %w", id, err)
	}
	var resp categoriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Category{}, fmt.Errorf("twitch: decode game: %w", err)
	}
	if len(resp.Data) == 0 {
		return Category{}, fmt.Errorf("twitch: get game %s: %w", id, domain.ErrNotFound)
	}
	return resp.Data[0], nil
}
