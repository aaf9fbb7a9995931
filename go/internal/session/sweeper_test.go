package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusguard/focusguard/go/internal/events"
	"github.com/focusguard/focusguard/go/internal/models"
)

func TestSweepOnce_IgnoresYoungExpiredSession(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 60).Session.ID
	f.clock.Advance(2 * time.Hour)

	snap, err := f.app.GetSession(context.Background(), owner, id)
	require.NoError(t, err)
	require.Equal(t, 0, snap.RemainingSeconds)

	n, err := NewSweeper(f.app, DefaultSweepConfig()).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.SessionStateActive, f.store.session(id).State)
}

func TestSweepOnce_AbandonsOrphanedSession(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 1500).Session.ID
	f.clock.Advance(7 * time.Hour)

	n, err := NewSweeper(f.app, DefaultSweepConfig()).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s := f.store.session(id)
	assert.Equal(t, models.SessionStateAbandoned, s.State)
	assert.Zero(t, f.store.outcomeCount())

	abandoned := f.store.eventsOf(events.EventTypeSessionAbandoned)
	require.Len(t, abandoned, 1)
	assert.Equal(t, events.AbandonReasonIdleSweep, abandoned[0].Payload.(events.SessionAbandonedPayload).Reason)

	// nothing left on the next pass
	n, err = NewSweeper(f.app, DefaultSweepConfig()).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepOnce_SkipsRecentlyTouchedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, 3600).Session.ID

	f.clock.Advance(6*time.Hour + 30*time.Minute)
	_, err := f.app.Pause(ctx, owner, id)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	n, err := NewSweeper(f.app, DefaultSweepConfig()).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.SessionStatePaused, f.store.session(id).State)
}

func TestSweepOnce_LeavesCompletedSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, 1500).Session.ID
	f.clock.Advance(25 * time.Minute)
	_, err := f.app.Complete(ctx, owner, id, nil)
	require.NoError(t, err)
	f.clock.Advance(12 * time.Hour)

	n, err := NewSweeper(f.app, DefaultSweepConfig()).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.SessionStateCompleted, f.store.session(id).State)
}

func TestSweepOnce_ManyOwners(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultSweepConfig()
	cfg.BatchSize = 3
	cfg.Workers = 2

	for _, o := range []string{"a", "b", "c", "d", "e"} {
		_, err := f.app.Create(context.Background(), CreateSessionRequest{OwnerID: o, PlannedDurationSeconds: 600})
		require.NoError(t, err)
	}
	f.clock.Advance(8 * time.Hour)

	sweeper := NewSweeper(f.app, cfg)
	n, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, sweeper.inFlight)
}

func TestSweeper_RunTicks(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, 1500).Session.ID
	f.clock.Advance(7 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	cfg := DefaultSweepConfig()
	go func() { done <- NewSweeper(f.app, cfg).Run(ctx) }()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(cfg.Interval)

	assert.Eventually(t, func() bool {
		return f.store.session(id).State == models.SessionStateAbandoned
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSweepConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultSweepConfig().Validate())

	cfg := DefaultSweepConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultSweepConfig()
	cfg.Interval = 0
	assert.Error(t, cfg.Validate())
}
