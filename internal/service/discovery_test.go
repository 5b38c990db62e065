package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/platform/twitch"
	"github.com/alanyoungcy/battleoracle/internal/store/memory"
)

type fakeSearcher struct {
	results map[string][]twitch.Category
	fail    map[string]bool
	calls   int
}

func (f *fakeSearcher) SearchCategories(_ context.Context, q string) ([]twitch.Category, error) {
	f.calls++
	if f.fail[q] {
		return nil, errors.New("search failed")
	}
	return f.results[q], nil
}

func TestIsPokemonName(t *testing.T) {
	tests := map[string]bool{
		"Pokémon Scarlet/Violet": true,
		"POKEMON UNITE":          true,
		"Pokemon Showdown":       true,
		"Palworld":               false,
		"Digimon Story":          false,
	}
	for name, want := range tests {
		assert.Equal(t, want, isPokemonName(name), name)
	}
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	searcher := &fakeSearcher{
		results: map[string][]twitch.Category{
			"Pokemon Scarlet": {{ID: "1", Name: "Pokémon Scarlet/Violet"}, {ID: "9", Name: "Palworld"}},
			"Pokemon Violet":  {{ID: "1", Name: "Pokémon Scarlet/Violet"}},
			"Pokemon":         {{ID: "2", Name: "Pokémon Trading Card Game"}, {ID: "1", Name: "Pokémon Scarlet/Violet"}},
		},
		fail: map[string]bool{"Pokemon Unite": true},
	}
	svc := NewDiscoveryService(searcher, stores.Games, time.Minute, quietLogger())

	report, err := svc.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Queried)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Games, 2)
	assert.Equal(t, "1", report.Games[0].GameID)
	assert.Equal(t, "Pokemon Scarlet", report.Games[0].Category, "first query wins")
	assert.Equal(t, "Pokemon", report.Games[1].Category)

	ids, err := svc.ActiveGameIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestDiscoverAllQueriesFail(t *testing.T) {
	searcher := &fakeSearcher{fail: map[string]bool{"a": true, "b": true}}
	svc := NewDiscoveryService(searcher, memory.New().Games, 0, quietLogger()).WithQueries([]string{"a", "b"})

	_, err := svc.Discover(context.Background())
	require.Error(t, err)
}

func TestInitializeOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	searcher := &fakeSearcher{results: map[string][]twitch.Category{
		"Pokemon": {{ID: "7", Name: "Pokemon Showdown"}},
	}}
	svc := NewDiscoveryService(searcher, stores.Games, 0, quietLogger()).WithQueries([]string{"Pokemon"})

	require.NoError(t, svc.Initialize(ctx))
	require.NoError(t, svc.Initialize(ctx))
	assert.Equal(t, 1, searcher.calls)
}

func TestActiveGameIDsCache(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	svc := NewDiscoveryService(&fakeSearcher{}, stores.Games, time.Minute, quietLogger())
	now := time.Unix(0, 0)
	svc.now = func() time.Time { return now }

	require.NoError(t, stores.Games.Upsert(ctx, gameCategory("1", true)))
	ids, err := svc.ActiveGameIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)

	require.NoError(t, stores.Games.Upsert(ctx, gameCategory("2", true)))
	ids, _ = svc.ActiveGameIDs(ctx)
	assert.Equal(t, []string{"1"}, ids, "served from cache")

	now = now.Add(2 * time.Minute)
	ids, _ = svc.ActiveGameIDs(ctx)
	assert.Equal(t, []string{"1", "2"}, ids)

	require.NoError(t, svc.SetActive(ctx, "1", false))
	ids, _ = svc.ActiveGameIDs(ctx)
	assert.Equal(t, []string{"2"}, ids, "toggling invalidates the cache")
}
