package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SweepConfig controls the idle sweep. A session is reclaimed only when it is
// older than Ceiling and has not been touched for IdleGrace.
type SweepConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Ceiling   time.Duration `yaml:"ceiling"`
	IdleGrace time.Duration `yaml:"idle_grace"`
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
}

func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval:  5 * time.Minute,
		Ceiling:   6 * time.Hour,
		IdleGrace: time.Hour,
		BatchSize: 100,
		Workers:   4,
	}
}

func (c SweepConfig) Validate() error {
	if c.Interval <= 0 || c.Ceiling <= 0 || c.IdleGrace < 0 {
		return fmt.Errorf("sweep interval and ceiling must be positive and idle grace non-negative")
	}
	if c.BatchSize < 1 || c.Workers < 1 {
		return fmt.Errorf("sweep batch size and workers must be at least 1")
	}
	return nil
}

// Sweeper abandons orphaned open sessions.
type Sweeper struct {
	app   *App
	clock clockwork.Clock
	cfg   SweepConfig

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]struct{}
}

func NewSweeper(app *App, cfg SweepConfig) *Sweeper {
	return &Sweeper{
		app:      app,
		clock:    app.clock,
		cfg:      cfg,
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// Run sweeps every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", s.cfg.Interval).
		Dur("ceiling", s.cfg.Ceiling).
		Dur("idle_grace", s.cfg.IdleGrace).
		Int("workers", s.cfg.Workers).
		Msg("idle sweeper started")

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("idle sweeper shutting down")
			return nil
		case <-ticker.Chan():
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Error().Err(err).Msg("idle sweep failed")
			}
		}
	}
}

// SweepOnce runs one pass and returns how many sessions it abandoned.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	createdBefore := now.Add(-s.cfg.Ceiling)
	updatedBefore := now.Add(-s.cfg.IdleGrace)

	ids, err := s.app.store.ListStaleSessions(ctx, createdBefore, updatedBefore, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	workCh := make(chan uuid.UUID)
	var abandoned atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, i, workCh, createdBefore, updatedBefore, &abandoned)
	}

dispatch:
	for _, id := range ids {
		if !s.claim(id) {
			log.Debug().Str("session_id", id.String()).Msg("session already being swept")
			continue
		}
		select {
		case workCh <- id:
		case <-ctx.Done():
			s.release(id)
			break dispatch
		}
	}
	close(workCh)
	wg.Wait()

	n := int(abandoned.Load())
	log.Info().
		Int("candidates", len(ids)).
		Int("abandoned", n).
		Msg("idle sweep finished")
	return n, nil
}

func (s *Sweeper) worker(ctx context.Context, wg *sync.WaitGroup, workerID int, workCh <-chan uuid.UUID, createdBefore, updatedBefore time.Time, abandoned *atomic.Int64) {
	defer wg.Done()

	for id := range workCh {
		ok, err := s.app.abandonIdle(ctx, id, createdBefore, updatedBefore)
		s.release(id)
		if err != nil {
			log.Warn().
				Err(err).
				Str("session_id", id.String()).
				Int("worker_id", workerID).
				Msg("skipping session after sweep error")
			continue
		}
		if ok {
			abandoned.Add(1)
			log.Info().
				Str("session_id", id.String()).
				Int("worker_id", workerID).
				Msg("abandoned idle session")
		}
	}
}

func (s *Sweeper) claim(id uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Sweeper) release(id uuid.UUID) {
	s.inFlightMu.Lock()
	delete(s.inFlight, id)
	s.inFlightMu.Unlock()
}
