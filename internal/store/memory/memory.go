// Package memory is an in-process implementation of the domain stores. It
// backs dry runs and tests; nothing is persisted.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

type db struct {
	mu          sync.Mutex
	sessions    map[string]domain.Session
	markets     map[string]domain.Market
	options     map[string][]domain.MarketOption
	detections  []domain.DetectionLog
	proposals   map[string]domain.SettlementProposal
	games       map[string]domain.GameCategory
	audit       []domain.AuditEntry
	detectionID int64
	now         func() time.Time
}

// Stores groups the in-memory stores, which share one dataset.
type Stores struct {
	Sessions    *SessionStore
	Markets     *MarketStore
	Detections  *DetectionStore
	Settlements *SettlementStore
	Games       *GameStore
	Audit       *AuditStore
}

// New returns an empty dataset.
func New() Stores {
	d := &db{
		sessions:  make(map[string]domain.Session),
		markets:   make(map[string]domain.Market),
		options:   make(map[string][]domain.MarketOption),
		proposals: make(map[string]domain.SettlementProposal),
		games:     make(map[string]domain.GameCategory),
		now:       func() time.Time { return time.Now().UTC() },
	}
	return Stores{
		Sessions:    &SessionStore{d},
		Markets:     &MarketStore{d},
		Detections:  &DetectionStore{d},
		Settlements: &SettlementStore{d},
		Games:       &GameStore{d},
		Audit:       &AuditStore{d},
	}
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func inRange(t time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && t.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && !t.Before(*opts.Until) {
		return false
	}
	return true
}

// SessionStore implements domain.SessionStore.
type SessionStore struct{ db *db }

func (s *SessionStore) GetByStreamID(_ context.Context, streamID string) (domain.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, sess := range s.db.sessions {
		if sess.StreamID == streamID {
			return sess, nil
		}
	}
	return domain.Session{}, domain.ErrNotFound
}

func (s *SessionStore) Create(_ context.Context, sess domain.Session) (domain.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.sessions {
		if existing.StreamID == sess.StreamID {
			return domain.Session{}, domain.ErrAlreadyExists
		}
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := s.db.now()
	sess.CreatedAt, sess.UpdatedAt = now, now
	s.db.sessions[sess.ID] = sess
	return sess, nil
}

func (s *SessionStore) UpdateLive(_ context.Context, id string, upd domain.SessionUpdate) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.Title = upd.Title
	sess.ViewerCount = upd.ViewerCount
	sess.ThumbnailURL = upd.ThumbnailURL
	sess.IsLive = true
	sess.UpdatedAt = s.db.now()
	s.db.sessions[id] = sess
	return nil
}

func (s *SessionStore) ListLive(_ context.Context) ([]domain.Session, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Session
	for _, sess := range s.db.sessions {
		if sess.IsLive {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StreamID < out[j].StreamID })
	return out, nil
}

func (s *SessionStore) MarkEnded(_ context.Context, id string, endedAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.IsLive = false
	sess.EndedAt = &endedAt
	s.db.sessions[id] = sess
	return nil
}

// Get returns a session by primary key.
func (s *SessionStore) Get(id string) (domain.Session, bool) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	return sess, ok
}

// MarketStore implements domain.MarketStore.
type MarketStore struct{ db *db }

func (s *MarketStore) CreateWithOptions(_ context.Context, m domain.Market, opts []domain.MarketOption) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if m.SessionID != "" {
		for _, existing := range s.db.markets {
			if existing.SessionID == m.SessionID {
				return domain.ErrAlreadyExists
			}
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.db.now()
	m.CreatedAt, m.UpdatedAt = now, now
	s.db.markets[m.ID] = m
	stored := make([]domain.MarketOption, 0, len(opts))
	for _, o := range opts {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		o.MarketID = m.ID
		stored = append(stored, o)
	}
	s.db.options[m.ID] = stored
	return nil
}

func (s *MarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *MarketStore) find(match func(domain.Market) bool) (domain.Market, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, m := range s.db.markets {
		if match(m) {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *MarketStore) GetBySession(_ context.Context, sessionID string) (domain.Market, error) {
	return s.find(func(m domain.Market) bool { return m.SessionID == sessionID })
}

func (s *MarketStore) GetOpenBySession(_ context.Context, sessionID string) (domain.Market, error) {
	return s.find(func(m domain.Market) bool {
		return m.SessionID == sessionID && m.Status == domain.MarketStatusOpen
	})
}

func (s *MarketStore) UpdateViewerCount(_ context.Context, id string, viewers int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if m, ok := s.db.markets[id]; ok {
		m.ViewerCount = viewers
		s.db.markets[id] = m
	}
	return nil
}

func (s *MarketStore) Resolve(_ context.Context, id, outcome string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.resolveLocked(id, outcome)
}

func (d *db) resolveLocked(id, outcome string) error {
	m, ok := d.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusOpen {
		return domain.ErrAlreadySettled
	}
	m.Status = domain.MarketStatusResolved
	m.Outcome = outcome
	m.IsLiveStream = false
	m.UpdatedAt = d.now()
	d.markets[id] = m
	return nil
}

func (s *MarketStore) ListByStatus(_ context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Market
	for _, m := range s.db.markets {
		if (status == "" || m.Status == status) && inRange(m.CreatedAt, opts) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, opts), nil
}

func (s *MarketStore) ListOptions(_ context.Context, marketID string) ([]domain.MarketOption, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return append([]domain.MarketOption(nil), s.db.options[marketID]...), nil
}

func (s *MarketStore) Count(_ context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.db.markets)), nil
}

// DetectionStore implements domain.DetectionStore.
type DetectionStore struct{ db *db }

func (s *DetectionStore) Insert(_ context.Context, d domain.DetectionLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.detectionID++
	d.ID = s.db.detectionID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.db.now()
	}
	s.db.detections = append(s.db.detections, d)
	return nil
}

func (s *DetectionStore) filter(match func(domain.DetectionLog) bool, newestFirst bool) []domain.DetectionLog {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.DetectionLog
	for _, d := range s.db.detections {
		if match(d) {
			out = append(out, d)
		}
	}
	if newestFirst {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return out
}

func (s *DetectionStore) List(_ context.Context, opts domain.ListOpts) ([]domain.DetectionLog, error) {
	out := s.filter(func(d domain.DetectionLog) bool { return inRange(d.CreatedAt, opts) }, true)
	return page(out, opts), nil
}

func (s *DetectionStore) ListBySession(_ context.Context, sessionID string, opts domain.ListOpts) ([]domain.DetectionLog, error) {
	out := s.filter(func(d domain.DetectionLog) bool {
		return d.SessionID == sessionID && inRange(d.CreatedAt, opts)
	}, true)
	return page(out, opts), nil
}

func (s *DetectionStore) ListBefore(_ context.Context, before time.Time) ([]domain.DetectionLog, error) {
	return s.filter(func(d domain.DetectionLog) bool { return d.CreatedAt.Before(before) }, false), nil
}

func (s *DetectionStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	kept := s.db.detections[:0]
	var n int64
	for _, d := range s.db.detections {
		if d.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	s.db.detections = kept
	return n, nil
}

// SettlementStore implements domain.SettlementStore.
type SettlementStore struct{ db *db }

func (s *SettlementStore) Insert(_ context.Context, p domain.SettlementProposal) error {
	if !p.Status.IsProposalTag() {
		return domain.ErrInvalidStatus
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.db.now()
	}
	s.db.proposals[p.ID] = p
	return nil
}

func (s *SettlementStore) GetByID(_ context.Context, id string) (domain.SettlementProposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proposals[id]
	if !ok {
		return domain.SettlementProposal{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *SettlementStore) ListPending(_ context.Context, statuses []domain.SettlementStatus, opts domain.ListOpts) ([]domain.ReviewItem, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[domain.SettlementStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []domain.ReviewItem
	for _, p := range s.db.proposals {
		if p.SettledAt != nil || !want[p.Status] || !inRange(p.CreatedAt, opts) {
			continue
		}
		m, ok := s.db.markets[p.MarketID]
		if !ok {
			continue
		}
		out = append(out, domain.ReviewItem{
			SettlementProposal: p,
			MarketTitle:        m.Title,
			PlayerOne:          m.PlayerOne,
			PlayerTwo:          m.PlayerTwo,
			ChannelName:        m.ChannelName,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, opts), nil
}

func (s *SettlementStore) Settle(_ context.Context, proposalID, winner string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proposals[proposalID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.SettledAt != nil || p.Status.IsTerminal() {
		return domain.ErrAlreadySettled
	}
	if err := s.db.resolveLocked(p.MarketID, winner); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			p.Status = domain.SettlementRejected
			p.SettledAt = &at
			s.db.proposals[proposalID] = p
		}
		return err
	}
	p.Status = domain.SettlementSettled
	p.Winner = winner
	p.SettledAt = &at
	s.db.proposals[proposalID] = p
	return nil
}

func (s *SettlementStore) MarkRejected(_ context.Context, proposalID string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proposals[proposalID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.SettledAt != nil || p.Status.IsTerminal() {
		return domain.ErrAlreadySettled
	}
	p.Status = domain.SettlementRejected
	p.SettledAt = &at
	s.db.proposals[proposalID] = p
	return nil
}

func (s *SettlementStore) ListBefore(_ context.Context, before time.Time) ([]domain.SettlementProposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.SettlementProposal
	for _, p := range s.db.proposals {
		if p.CreatedAt.Before(before) && p.Status.IsTerminal() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *SettlementStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, p := range s.db.proposals {
		if p.CreatedAt.Before(before) && p.Status.IsTerminal() {
			delete(s.db.proposals, id)
			n++
		}
	}
	return n, nil
}

// All returns every proposal, oldest first.
func (s *SettlementStore) All() []domain.SettlementProposal {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]domain.SettlementProposal, 0, len(s.db.proposals))
	for _, p := range s.db.proposals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// GameStore implements domain.GameStore.
type GameStore struct{ db *db }

func (s *GameStore) Upsert(_ context.Context, g domain.GameCategory) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := s.db.now()
	if existing, ok := s.db.games[g.GameID]; ok {
		g.CreatedAt = existing.CreatedAt
	} else {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	s.db.games[g.GameID] = g
	return nil
}

func (s *GameStore) ListActiveIDs(_ context.Context) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []string
	for id, g := range s.db.games {
		if g.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *GameStore) List(_ context.Context) ([]domain.GameCategory, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]domain.GameCategory, 0, len(s.db.games))
	for _, g := range s.db.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameName < out[j].GameName })
	return out, nil
}

func (s *GameStore) Count(_ context.Context) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.db.games)), nil
}

func (s *GameStore) SetActive(_ context.Context, gameID string, active bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.games[gameID]
	if !ok {
		return domain.ErrNotFound
	}
	g.IsActive = active
	g.UpdatedAt = s.db.now()
	s.db.games[gameID] = g
	return nil
}

// AuditStore implements domain.AuditStore.
type AuditStore struct{ db *db }

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.audit = append(s.db.audit, domain.AuditEntry{
		ID:        int64(len(s.db.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: s.db.now(),
	})
	return nil
}

func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(s.db.audit) - 1; i >= 0; i-- {
		if inRange(s.db.audit[i].CreatedAt, opts) {
			out = append(out, s.db.audit[i])
		}
	}
	return page(out, opts), nil
}

var (
	_ domain.SessionStore    = (*SessionStore)(nil)
	_ domain.MarketStore     = (*MarketStore)(nil)
	_ domain.DetectionStore  = (*DetectionStore)(nil)
	_ domain.SettlementStore = (*SettlementStore)(nil)
	_ domain.GameStore       = (*GameStore)(nil)
	_ domain.AuditStore      = (*AuditStore)(nil)
)
