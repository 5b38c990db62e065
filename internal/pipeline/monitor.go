package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/battleoracle/internal/detection"
	"github.com/alanyoungcy/battleoracle/internal/domain"
	"github.com/alanyoungcy/battleoracle/internal/metrics"
	"github.com/alanyoungcy/battleoracle/internal/notify"
)

// StreamSource lists live streams for a set of game categories.
type StreamSource interface {
	LiveStreams(ctx context.Context, gameIDs []string, first, maxPages int) ([]domain.LiveStream, error)
}

// GameIDProvider returns the categories to poll.
type GameIDProvider interface {
	ActiveGameIDs(ctx context.Context) ([]string, error)
}

// Notifier alerts operators. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, key, title, message string) error
}

var thumbnailSize = strings.NewReplacer("{width}", "1920", "{height}", "1080")

// MonitorConfig tunes a Monitor.
type MonitorConfig struct {
	PageSize    int
	MaxPages    int
	Concurrency int
	CallTimeout time.Duration
	LockTTL     time.Duration

	// SkipDetectOnTitleChange turns off battle detection on title changes
	// of sessions that never had a market.
	SkipDetectOnTitleChange bool
	EmbedParent             string
	Odds                    decimal.Decimal
	Liquidity               decimal.Decimal
}

// DefaultMonitorConfig returns the defaults used when a field is left zero.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PageSize:    100,
		MaxPages:    1,
		Concurrency: 4,
		CallTimeout: 8 * time.Second,
		LockTTL:     30 * time.Second,
		EmbedParent: "localhost",
		Odds:        decimal.RequireFromString("1.5"),
		Liquidity:   decimal.NewFromInt(100),
	}
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	d := DefaultMonitorConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	if c.EmbedParent == "" {
		c.EmbedParent = d.EmbedParent
	}
	if c.Odds.IsZero() {
		c.Odds = d.Odds
	}
	if c.Liquidity.IsZero() {
		c.Liquidity = d.Liquidity
	}
	return c
}

// CycleReport summarises one monitoring pass.
type CycleReport struct {
	NoGames        bool          `json:"no_games,omitempty"`
	StreamsFound   int           `json:"streams_found"`
	NewSessions    int           `json:"new_sessions"`
	TitleChanges   int           `json:"title_changes"`
	Detections     int           `json:"detections"`
	MarketsCreated int           `json:"markets_created"`
	Proposals      int           `json:"proposals"`
	EndedSessions  int           `json:"ended_sessions"`
	Skipped        int           `json:"skipped"`
	Failures       int           `json:"failures"`
	Duration       time.Duration `json:"duration"`
}

// tally collects counters from concurrent stream workers.
type tally struct {
	newSessions, titleChanges, detections, markets atomic.Int64
	proposals, ended, skipped, failures             atomic.Int64
}

func (t *tally) fill(r *CycleReport) {
	r.NewSessions = int(t.newSessions.Load())
	r.TitleChanges = int(t.titleChanges.Load())
	r.Detections = int(t.detections.Load())
	r.MarketsCreated = int(t.markets.Load())
	r.Proposals = int(t.proposals.Load())
	r.EndedSessions = int(t.ended.Load())
	r.Skipped = int(t.skipped.Load())
	r.Failures = int(t.failures.Load())
}

// Monitor polls live streams, keeps sessions in sync, opens markets for
// detected battles and proposes settlements when a winner shows up in a
// title or a stream ends.
type Monitor struct {
	streams     StreamSource
	games       GameIDProvider
	sessions    domain.SessionStore
	markets     domain.MarketStore
	detections  domain.DetectionStore
	settlements domain.SettlementStore

	locks    domain.LockManager
	bus      domain.SignalBus
	notifier Notifier
	metrics  *metrics.OracleMetrics

	cfg    MonitorConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewMonitor creates a Monitor. Locks, the signal bus, notifications and
// metrics are optional and attached with the With* methods.
func NewMonitor(
	streams StreamSource,
	games GameIDProvider,
	sessions domain.SessionStore,
	markets domain.MarketStore,
	detections domain.DetectionStore,
	settlements domain.SettlementStore,
	cfg MonitorConfig,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		streams:     streams,
		games:       games,
		sessions:    sessions,
		markets:     markets,
		detections:  detections,
		settlements: settlements,
		cfg:         cfg.withDefaults(),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With(slog.String("component", "monitor")),
	}
}

// WithLocks guards per-session work with distributed locks.
func (m *Monitor) WithLocks(l domain.LockManager) *Monitor {
	m.locks = l
	return m
}

// WithSignalBus publishes detections, markets and proposals.
func (m *Monitor) WithSignalBus(b domain.SignalBus) *Monitor {
	m.bus = b
	return m
}

// WithNotifier alerts operators about markets and review proposals.
func (m *Monitor) WithNotifier(n Notifier) *Monitor {
	m.notifier = n
	return m
}

// WithMetrics records cycle metrics.
func (m *Monitor) WithMetrics(om *metrics.OracleMetrics) *Monitor {
	m.metrics = om
	return m
}

// RunCycle performs one polling pass. It fails only when the game list or
// the stream listing cannot be fetched; per-stream problems are counted in
// the report.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	start := m.now()
	var report CycleReport

	gameIDs, err := m.activeGameIDs(ctx)
	if err != nil {
		m.metrics.RecordCycle(m.now().Sub(start), 0, 0, err)
		return report, fmt.Errorf("monitor: load game ids: %w", err)
	}
	if len(gameIDs) == 0 {
		m.logger.WarnContext(ctx, "no game ids configured, skipping cycle")
		report.NoGames = true
		return report, nil
	}

	streams, err := m.liveStreams(ctx, gameIDs)
	if err != nil {
		m.metrics.RecordCycle(m.now().Sub(start), 0, 0, err)
		return report, fmt.Errorf("monitor: fetch streams: %w", err)
	}
	report.StreamsFound = len(streams)

	var t tally
	live := make(map[string]struct{}, len(streams))
	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Concurrency)
	for _, s := range streams {
		s := s
		live[s.ID] = struct{}{}
		g.Go(func() error {
			m.processStream(ctx, s, &t)
			return nil
		})
	}
	_ = g.Wait()

	m.markOffline(ctx, live, &t)

	t.fill(&report)
	report.Duration = m.now().Sub(start)
	m.metrics.RecordCycle(report.Duration, report.StreamsFound, report.EndedSessions, nil)
	m.publish(ctx, domain.ChannelCycle, domain.EventCycleComplete, report)

	m.logger.InfoContext(ctx, "monitor cycle complete",
		slog.Int("streams", report.StreamsFound),
		slog.Int("new_sessions", report.NewSessions),
		slog.Int("markets_created", report.MarketsCreated),
		slog.Int("proposals", report.Proposals),
		slog.Int("ended", report.EndedSessions),
		slog.Int("failures", report.Failures),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// RunLoop runs a cycle immediately, then on every tick or trigger until ctx
// is cancelled. trigger may be nil.
func (m *Monitor) RunLoop(ctx context.Context, interval time.Duration, trigger <-chan struct{}) error {
	m.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor loop stopped")
			return ctx.Err()
		case <-ticker.C:
			m.runLogged(ctx)
		case <-trigger:
			m.logger.Info("manual monitor trigger")
			m.runLogged(ctx)
		}
	}
}

func (m *Monitor) runLogged(ctx context.Context) {
	if _, err := m.RunCycle(ctx); err != nil && ctx.Err() == nil {
		m.logger.Error("monitor cycle failed", slog.String("error", err.Error()))
	}
}

func (m *Monitor) activeGameIDs(ctx context.Context) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	return m.games.ActiveGameIDs(cctx)
}

func (m *Monitor) liveStreams(ctx context.Context, gameIDs []string) ([]domain.LiveStream, error) {
	// Pagination may take several requests, each bounded by the client.
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout*time.Duration(m.cfg.MaxPages))
	defer cancel()
	return m.streams.LiveStreams(cctx, gameIDs, m.cfg.PageSize, m.cfg.MaxPages)
}

// processStream reconciles one live stream with its stored session.
func (m *Monitor) processStream(ctx context.Context, s domain.LiveStream, t *tally) {
	log := m.logger.With(slog.String("stream_id", s.ID), slog.String("channel", s.UserLogin))

	unlock, ok := m.lock(ctx, "session:"+s.ID, t, log)
	if !ok {
		return
	}
	defer unlock()

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	sess, err := m.sessions.GetByStreamID(cctx, s.ID)
	cancel()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		m.newSession(ctx, s, t, log)
	case err != nil:
		m.fail(ctx, "session_lookup", err, t, log)
	default:
		m.existingSession(ctx, sess, s, t, log)
	}
}

func (m *Monitor) newSession(ctx context.Context, s domain.LiveStream, t *tally, log *slog.Logger) {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	sess, err := m.sessions.Create(cctx, domain.Session{
		StreamID:     s.ID,
		ChannelName:  s.UserLogin,
		UserID:       s.UserID,
		GameID:       s.GameID,
		GameName:     s.GameName,
		Title:        s.Title,
		ViewerCount:  s.ViewerCount,
		ThumbnailURL: thumbnailSize.Replace(s.ThumbnailURL),
		IsLive:       true,
		StartedAt:    s.StartedAt,
	})
	cancel()
	if errors.Is(err, domain.ErrAlreadyExists) {
		log.Debug("session created concurrently")
		t.skipped.Add(1)
		return
	}
	if err != nil {
		m.fail(ctx, "session_create", err, t, log)
		return
	}
	t.newSessions.Add(1)
	log.Info("new session", slog.String("session_id", sess.ID), slog.String("title", s.Title))

	m.battleCheck(ctx, sess, s, t, log)
}

func (m *Monitor) existingSession(ctx context.Context, sess domain.Session, s domain.LiveStream, t *tally, log *slog.Logger) {
	log = log.With(slog.String("session_id", sess.ID))
	titleChanged := sess.Title != s.Title

	if titleChanged || !sess.IsLive {
		cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		err := m.sessions.UpdateLive(cctx, sess.ID, domain.SessionUpdate{
			Title:        s.Title,
			ViewerCount:  s.ViewerCount,
			ThumbnailURL: thumbnailSize.Replace(s.ThumbnailURL),
		})
		cancel()
		if err != nil {
			m.fail(ctx, "session_update", err, t, log)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	market, err := m.markets.GetOpenBySession(cctx, sess.ID)
	cancel()
	hasOpen := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		m.fail(ctx, "market_lookup", err, t, log)
		return
	}

	if titleChanged {
		t.titleChanges.Add(1)
		log.Info("title changed", slog.String("old", sess.Title), slog.String("new", s.Title))

		switch {
		case hasOpen && market.HasPlayers():
			m.resolveWinner(ctx, market, sess.ID, s.Title, t, log)
		case !hasOpen && !m.cfg.SkipDetectOnTitleChange && m.neverHadMarket(ctx, sess.ID, t, log):
			sess.Title = s.Title
			m.battleCheck(ctx, sess, s, t, log)
		}
	}

	if hasOpen {
		cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		err := m.markets.UpdateViewerCount(cctx, market.ID, s.ViewerCount)
		cancel()
		if err != nil {
			m.fail(ctx, "viewer_update", err, t, log)
		}
	}
}

// neverHadMarket reports whether no market, open or resolved, exists for the
// session. Lookup errors count as "had one" so nothing is created twice.
func (m *Monitor) neverHadMarket(ctx context.Context, sessionID string, t *tally, log *slog.Logger) bool {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	_, err := m.markets.GetBySession(cctx, sessionID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	if err != nil {
		m.fail(ctx, "market_lookup", err, t, log)
	}
	return false
}

// battleCheck runs detection on a session title, logs it and opens a market
// when the policy allows.
func (m *Monitor) battleCheck(ctx context.Context, sess domain.Session, s domain.LiveStream, t *tally, log *slog.Logger) {
	r, ok := detection.Detect(sess.Title)
	if !ok {
		return
	}
	t.detections.Add(1)
	m.metrics.RecordDetection("detect", r.Pattern)
	log.Info("battle detected",
		slog.String("pattern", r.Pattern),
		slog.String("player_one", r.PlayerOne),
		slog.String("player_two", r.PlayerTwo),
		slog.Int("confidence", r.Confidence),
	)

	entry := domain.DetectionLog{
		SessionID:  sess.ID,
		RawTitle:   sess.Title,
		PlayerOne:  r.PlayerOne,
		PlayerTwo:  r.PlayerTwo,
		Winner:     r.Winner,
		Pattern:    r.Pattern,
		Confidence: r.Confidence,
		CreatedAt:  m.now(),
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	err := m.detections.Insert(cctx, entry)
	cancel()
	if err != nil {
		m.fail(ctx, "detection_log", err, t, log)
	}
	m.publish(ctx, domain.ChannelDetection, domain.EventDetection, entry)

	if !detection.ShouldCreateMarket(r) {
		m.metrics.RecordDecision("ignore")
		return
	}
	m.metrics.RecordDecision("create_market")
	m.createMarket(ctx, sess, s, r, t, log)
}

func (m *Monitor) createMarket(ctx context.Context, sess domain.Session, s domain.LiveStream, r detection.Result, t *tally, log *slog.Logger) {
	unlock, ok := m.lock(ctx, "market:create:"+sess.ID, t, log)
	if !ok {
		return
	}
	defer unlock()

	if !m.neverHadMarket(ctx, sess.ID, t, log) {
		log.Debug("market already exists for session")
		return
	}

	now := m.now()
	market := domain.Market{
		ID:             uuid.NewString(),
		Title:          fmt.Sprintf("Pokemon Battle: %s vs %s", r.PlayerOne, r.PlayerTwo),
		Category:       "pokemon",
		Description:    fmt.Sprintf("Live Pokemon battle on %s's stream", s.UserLogin),
		EventDate:      now,
		Status:         domain.MarketStatusOpen,
		MarketType:     domain.MarketTypeBinary,
		YesOdds:        m.cfg.Odds,
		NoOdds:         m.cfg.Odds,
		TotalVolume:    decimal.Zero,
		Liquidity:      m.cfg.Liquidity,
		ImageURL:       thumbnailSize.Replace(s.ThumbnailURL),
		SessionID:      sess.ID,
		ChannelName:    s.UserLogin,
		IsLiveStream:   true,
		StreamEmbedURL: embedURL(s.UserLogin, m.cfg.EmbedParent),
		PlayerOne:      r.PlayerOne,
		PlayerTwo:      r.PlayerTwo,
		ViewerCount:    s.ViewerCount,
	}
	options := []domain.MarketOption{
		{Name: r.PlayerOne, Odds: m.cfg.Odds, TotalPool: decimal.Zero},
		{Name: r.PlayerTwo, Odds: m.cfg.Odds, TotalPool: decimal.Zero},
	}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	err := m.markets.CreateWithOptions(cctx, market, options)
	cancel()
	if errors.Is(err, domain.ErrAlreadyExists) {
		log.Debug("market created concurrently")
		return
	}
	if err != nil {
		m.fail(ctx, "market_create", err, t, log)
		return
	}

	t.markets.Add(1)
	m.metrics.RecordMarketCreated(market.Liquidity)
	log.Info("market created", slog.String("market_id", market.ID), slog.String("title", market.Title))
	m.publish(ctx, domain.ChannelMarket, domain.EventMarketCreated, market)
	m.notify(ctx, notify.EventMarketCreated, market.ID, "Market created", market.Title)
}

// resolveWinner looks for a winner in title and files a tagged proposal.
func (m *Monitor) resolveWinner(ctx context.Context, market domain.Market, sessionID, title string, t *tally, log *slog.Logger) bool {
	r, ok := detection.Resolve(title, market.PlayerOne, market.PlayerTwo)
	if !ok {
		return false
	}
	m.metrics.RecordDetection("resolve", r.Pattern)
	status, ok := detection.ProposalStatus(r)
	if !ok {
		m.metrics.RecordDecision("ignore")
		return false
	}
	m.metrics.RecordDecision(string(status))
	m.propose(ctx, market, sessionID, title, r.Winner, r.Confidence, status, t, log)
	return true
}

func (m *Monitor) propose(
	ctx context.Context,
	market domain.Market,
	sessionID, title, winner string,
	confidence int,
	status domain.SettlementStatus,
	t *tally,
	log *slog.Logger,
) {
	p := domain.SettlementProposal{
		ID:          uuid.NewString(),
		MarketID:    market.ID,
		SessionID:   sessionID,
		StreamTitle: title,
		Winner:      winner,
		Confidence:  confidence,
		Status:      status,
		CreatedAt:   m.now(),
	}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	err := m.settlements.Insert(cctx, p)
	cancel()
	if err != nil {
		m.fail(ctx, "proposal", err, t, log)
		return
	}

	t.proposals.Add(1)
	m.metrics.RecordProposal(string(status))
	log.Info("settlement proposed",
		slog.String("market_id", market.ID),
		slog.String("winner", winner),
		slog.Int("confidence", confidence),
		slog.String("status", string(status)),
	)
	m.publish(ctx, domain.ChannelSettlement, domain.EventProposal, p)
	m.appendProposal(ctx, p, log)

	if status.IsReview() {
		msg := fmt.Sprintf("%s\nwinner: %q (confidence %d)\ntitle: %s", market.Title, winner, confidence, title)
		event := notify.EventNeedsReview
		if status == domain.SettlementNeedsManualReview {
			event = notify.EventNeedsManualReview
		}
		m.notify(ctx, event, p.MarketID, "Settlement needs review", msg)
	}
}

// markOffline ends every live session missing from the fetched streams and
// settles or flags its open market.
func (m *Monitor) markOffline(ctx context.Context, live map[string]struct{}, t *tally) {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	sessions, err := m.sessions.ListLive(cctx)
	cancel()
	if err != nil {
		m.fail(ctx, "list_live", err, t, m.logger)
		return
	}

	for _, sess := range sessions {
		if _, ok := live[sess.StreamID]; ok {
			continue
		}
		m.endSession(ctx, sess, t)
	}
}

func (m *Monitor) endSession(ctx context.Context, sess domain.Session, t *tally) {
	log := m.logger.With(slog.String("session_id", sess.ID), slog.String("channel", sess.ChannelName))

	unlock, ok := m.lock(ctx, "session:"+sess.StreamID, t, log)
	if !ok {
		return
	}
	defer unlock()

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	err := m.sessions.MarkEnded(cctx, sess.ID, m.now())
	cancel()
	if err != nil {
		m.fail(ctx, "session_end", err, t, log)
		return
	}
	t.ended.Add(1)
	log.Info("stream ended")

	cctx, cancel = context.WithTimeout(ctx, m.cfg.CallTimeout)
	market, err := m.markets.GetOpenBySession(cctx, sess.ID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		m.fail(ctx, "market_lookup", err, t, log)
		return
	}
	if !market.HasPlayers() {
		return
	}

	if m.resolveWinner(ctx, market, sess.ID, sess.Title, t, log) {
		return
	}
	m.propose(ctx, market, sess.ID, sess.Title, "", 0, domain.SettlementNeedsManualReview, t, log)
}

// lock takes a distributed lock when a LockManager is attached. ok is false
// when the work must be skipped this cycle.
func (m *Monitor) lock(ctx context.Context, key string, t *tally, log *slog.Logger) (func(), bool) {
	if m.locks == nil {
		return func() {}, true
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	unlock, err := m.locks.Acquire(cctx, key, m.cfg.LockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		log.Debug("lock held elsewhere, skipping", slog.String("lock", key))
		t.skipped.Add(1)
		return nil, false
	}
	if err != nil {
		m.fail(ctx, "lock", err, t, log)
		return nil, false
	}
	return unlock, true
}

func (m *Monitor) fail(ctx context.Context, step string, err error, t *tally, log *slog.Logger) {
	t.failures.Add(1)
	m.metrics.RecordFailure(step)
	log.ErrorContext(ctx, "monitor step failed",
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
}

func (m *Monitor) publish(ctx context.Context, channel, eventType string, data any) {
	if m.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.Event{Type: eventType, Data: data, At: m.now()})
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	if err := m.bus.Publish(cctx, channel, payload); err != nil {
		m.logger.Warn("publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

func (m *Monitor) appendProposal(ctx context.Context, p domain.SettlementProposal, log *slog.Logger) {
	if m.bus == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	if err := m.bus.StreamAppend(cctx, domain.StreamProposals, payload); err != nil {
		log.Warn("proposal stream append failed", slog.String("error", err.Error()))
	}
}

func (m *Monitor) notify(ctx context.Context, event, key, title, msg string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, event, key, title, msg); err != nil {
		m.logger.Warn("notification failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func embedURL(channel, parent string) string {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("parent", parent)
	return "https://player.twitch.tv/?" + q.Encode()
}
