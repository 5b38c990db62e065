package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/store/memory"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]domain.Market
	hits int
}

func (c *mapCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[m.ID] = m
	return nil
}

func (c *mapCache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.data[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	c.hits++
	return m, nil
}

func (c *mapCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, id)
	return nil
}

func TestMarketServiceCacheFirst(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	m := seedMarket(t, stores, "s1")
	cache := &mapCache{data: make(map[string]domain.Market)}
	svc := NewMarketService(stores.Markets, cache, quietLogger())

	got, err := svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Title, got.Title)
	assert.Zero(t, cache.hits)

	_, err = svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits, "second read is served from the cache")

	_, err = svc.GetMarket(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketDetailAndList(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	m := seedMarket(t, stores, "s1")
	seedMarket(t, stores, "s2")
	require.NoError(t, stores.Markets.Resolve(ctx, "m-s2", "Ash"))
	svc := NewMarketService(stores.Markets, nil, quietLogger())

	detail, err := svc.GetMarketDetail(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Options, 2)

	open, err := svc.List(ctx, domain.MarketStatusOpen, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, m.ID, open[0].ID)

	all, err := svc.List(ctx, "", domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
