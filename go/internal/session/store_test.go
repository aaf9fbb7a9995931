package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/focusguard/focusguard/go/internal/events"
	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/reward"
)

type recordedEvent struct {
	SessionID uuid.UUID
	Type      events.EventType
	Payload   any
}

// memStore serialises transactions and restores its state when one fails.
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	outcomes map[uuid.UUID]models.RewardOutcome
	stats    map[string]models.UserStats
	items    []models.GardenItem
	events   []recordedEvent

	failOutcome error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uuid.UUID]*models.Session),
		outcomes: make(map[uuid.UUID]models.RewardOutcome),
		stats:    make(map[string]models.UserStats),
	}
}

type memState struct {
	sessions map[uuid.UUID]*models.Session
	outcomes map[uuid.UUID]models.RewardOutcome
	stats    map[string]models.UserStats
	items    []models.GardenItem
	events   []recordedEvent
}

func (m *memStore) save() memState {
	st := memState{
		sessions: make(map[uuid.UUID]*models.Session, len(m.sessions)),
		outcomes: make(map[uuid.UUID]models.RewardOutcome, len(m.outcomes)),
		stats:    make(map[string]models.UserStats, len(m.stats)),
		items:    append([]models.GardenItem(nil), m.items...),
		events:   append([]recordedEvent(nil), m.events...),
	}
	for k, v := range m.sessions {
		st.sessions[k] = v.Clone()
	}
	for k, v := range m.outcomes {
		st.outcomes[k] = v
	}
	for k, v := range m.stats {
		st.stats[k] = v
	}
	return st
}

func (m *memStore) restore(st memState) {
	m.sessions = st.sessions
	m.outcomes = st.outcomes
	m.stats = st.stats
	m.items = st.items
	m.events = st.events
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.save()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) GetOpenSession(_ context.Context, ownerID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.openSession(ownerID); s != nil {
		return s.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *memStore) ListSessions(_ context.Context, req ListSessionsRequest) ([]*models.Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*models.Session
	for _, s := range m.sessions {
		if s.OwnerID != req.OwnerID {
			continue
		}
		if req.CompletedOnly && s.State != models.SessionStateCompleted {
			continue
		}
		all = append(all, s.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if req.Offset >= total {
		return nil, total, nil
	}
	end := req.Offset + req.Limit
	if end > total {
		end = total
	}
	return all[req.Offset:end], total, nil
}

func (m *memStore) ListStaleSessions(_ context.Context, createdBefore, updatedBefore time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []*models.Session
	for _, s := range m.sessions {
		if !s.State.IsTerminal() && s.CreatedAt.Before(createdBefore) && s.UpdatedAt.Before(updatedBefore) {
			stale = append(stale, s)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	ids := make([]uuid.UUID, len(stale))
	for i, s := range stale {
		ids[i] = s.ID
	}
	return ids, nil
}

func (m *memStore) openSession(ownerID string) *models.Session {
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && !s.State.IsTerminal() {
			return s
		}
	}
	return nil
}

func (m *memStore) session(id uuid.UUID) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id].Clone()
}

func (m *memStore) eventsOf(t events.EventType) []recordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedEvent
	for _, ev := range m.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (m *memStore) outcomeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outcomes)
}

func (m *memStore) userStats(ownerID string) models.UserStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[ownerID]
}

// memTx runs with memStore.mu held.
type memTx struct {
	m *memStore
}

func (t *memTx) CreateSession(_ context.Context, s *models.Session) error {
	if t.m.openSession(s.OwnerID) != nil {
		return ErrConflict
	}
	t.m.sessions[s.ID] = s.Clone()
	return nil
}

func (t *memTx) LockSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := t.m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (t *memTx) UpdateSession(_ context.Context, s *models.Session) error {
	cur, ok := t.m.sessions[s.ID]
	if !ok || cur.Version != s.Version {
		return errVersionConflict
	}
	s.Version++
	t.m.sessions[s.ID] = s.Clone()
	return nil
}

func (t *memTx) GetRewardOutcome(_ context.Context, sessionID uuid.UUID) (*models.RewardOutcome, error) {
	o, ok := t.m.outcomes[sessionID]
	if !ok {
		return nil, reward.ErrOutcomeNotFound
	}
	return &o, nil
}

func (t *memTx) InsertEvent(_ context.Context, s *models.Session, eventType events.EventType, payload any) error {
	t.m.events = append(t.m.events, recordedEvent{SessionID: s.ID, Type: eventType, Payload: payload})
	return nil
}

func (t *memTx) Ledger() reward.Ledger {
	return t
}

func (t *memTx) LockUserStats(_ context.Context, ownerID string, now time.Time) (*models.UserStats, error) {
	s, ok := t.m.stats[ownerID]
	if !ok {
		s = models.UserStats{OwnerID: ownerID, Level: 1, UpdatedAt: now}
	}
	return &s, nil
}

func (t *memTx) SaveUserStats(_ context.Context, stats *models.UserStats) error {
	t.m.stats[stats.OwnerID] = *stats
	return nil
}

func (t *memTx) NextPlantNum(_ context.Context, ownerID string) (int, error) {
	next := 0
	for _, it := range t.m.items {
		if it.OwnerID == ownerID && it.PlantNum >= next {
			next = it.PlantNum + 1
		}
	}
	return next, nil
}

func (t *memTx) InsertGardenItem(_ context.Context, item *models.GardenItem) error {
	t.m.items = append(t.m.items, *item)
	return nil
}

func (t *memTx) InsertRewardOutcome(_ context.Context, outcome *models.RewardOutcome) error {
	if t.m.failOutcome != nil {
		return t.m.failOutcome
	}
	if _, dup := t.m.outcomes[outcome.SessionID]; dup {
		return errors.New("duplicate key value violates unique constraint \"reward_outcomes_pkey\"")
	}
	t.m.outcomes[outcome.SessionID] = *outcome
	return nil
}
