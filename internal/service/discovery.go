package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/platform/twitch"
)

// DefaultDiscoveryQueries are searched in order; the first query that finds
// a category labels it.
var DefaultDiscoveryQueries = []string{
	"Pokemon Showdown",
	"Pokemon Scarlet",
	"Pokemon Violet",
	"Pokemon Sword",
	"Pokemon Shield",
	"Pokemon Unite",
	"Pokemon",
}

// CategorySearcher searches the streaming platform's categories.
type CategorySearcher interface {
	SearchCategories(ctx context.Context, query string) ([]twitch.Category, error)
}

// DiscoveryReport summarises one discovery run.
type DiscoveryReport struct {
	Queried int                   `json:"queried"`
	Failed  int                   `json:"failed"`
	Games   []domain.GameCategory `json:"games"`
}

// DiscoveryService finds the game categories to monitor and serves the
// active set to the monitor with a short in-process cache.
type DiscoveryService struct {
	searcher CategorySearcher
	games    domain.GameStore
	queries  []string
	cacheTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.RWMutex
	cached   []string
	cachedAt time.Time
}

// NewDiscoveryService creates a DiscoveryService. cacheTTL <= 0 disables the
// active-ID cache.
func NewDiscoveryService(searcher CategorySearcher, games domain.GameStore, cacheTTL time.Duration, logger *slog.Logger) *DiscoveryService {
	return &DiscoveryService{
		searcher: searcher,
		games:    games,
		queries:  DefaultDiscoveryQueries,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "discovery")),
	}
}

// WithQueries replaces the search queries.
func (s *DiscoveryService) WithQueries(queries []string) *DiscoveryService {
	if len(queries) > 0 {
		s.queries = queries
	}
	return s
}

// Discover searches every query and upserts matching categories as active.
// A failing query is skipped; Discover fails only when every query failed.
func (s *DiscoveryService) Discover(ctx context.Context) (DiscoveryReport, error) {
	var report DiscoveryReport
	seen := make(map[string]bool)
	var errs []error

	for _, q := range s.queries {
		report.Queried++
		cats, err := s.searcher.SearchCategories(ctx, q)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", q, err))
			s.logger.WarnContext(ctx, "category search failed",
				slog.String("query", q),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, c := range cats {
			if seen[c.ID] || !isPokemonName(c.Name) {
				continue
			}
			seen[c.ID] = true
			g := domain.GameCategory{GameID: c.ID, GameName: c.Name, Category: q, IsActive: true}
			if err := s.games.Upsert(ctx, g); err != nil {
				return report, fmt.Errorf("discovery: upsert game %s: %w", c.ID, err)
			}
			report.Games = append(report.Games, g)
		}
	}
	s.invalidate()

	if report.Failed == report.Queried && report.Queried > 0 {
		return report, fmt.Errorf("discovery: every query failed: %w", errors.Join(errs...))
	}
	s.logger.InfoContext(ctx, "discovery complete",
		slog.Int("games", len(report.Games)),
		slog.Int("failed_queries", report.Failed),
	)
	return report, nil
}

// Initialize runs discovery only when no category is stored yet.
func (s *DiscoveryService) Initialize(ctx context.Context) error {
	n, err := s.games.Count(ctx)
	if err != nil {
		return fmt.Errorf("discovery: count games: %w", err)
	}
	if n > 0 {
		return nil
	}
	s.logger.InfoContext(ctx, "no games stored, running discovery")
	_, err = s.Discover(ctx)
	return err
}

// ActiveGameIDs returns the IDs of active categories.
func (s *DiscoveryService) ActiveGameIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	if ids, ok := s.fresh(); ok {
		s.mu.RUnlock()
		return ids, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if ids, ok := s.fresh(); ok {
		return ids, nil
	}

	ids, err := s.games.ListActiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: list active ids: %w", err)
	}
	if s.cacheTTL > 0 {
		s.cached = ids
		s.cachedAt = s.now()
	}
	return append([]string(nil), ids...), nil
}

// fresh must be called with mu held.
func (s *DiscoveryService) fresh() ([]string, bool) {
	if s.cached == nil || s.now().Sub(s.cachedAt) >= s.cacheTTL {
		return nil, false
	}
	return append([]string(nil), s.cached...), true
}

// ListGames returns every stored category.
func (s *DiscoveryService) ListGames(ctx context.Context) ([]domain.GameCategory, error) {
	games, err := s.games.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: list games: %w", err)
	}
	return games, nil
}

// SetActive toggles whether a category is polled.
func (s *DiscoveryService) SetActive(ctx context.Context, gameID string, active bool) error {
	if err := s.games.SetActive(ctx, gameID, active); err != nil {
		return fmt.Errorf("discovery: set %s active: %w", gameID, err)
	}
	s.invalidate()
	return nil
}

func (s *DiscoveryService) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// isPokemonName reports whether name mentions pokemon, ignoring case and
// accents ("Pokémon" matches).
func isPokemonName(name string) bool {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.Contains(strings.ToLower(folded), "pokemon")
}
