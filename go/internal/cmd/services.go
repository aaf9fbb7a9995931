package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/focusguard/focusguard/go/internal/config"
	"github.com/focusguard/focusguard/go/internal/db"
	"github.com/focusguard/focusguard/go/internal/reward"
	"github.com/focusguard/focusguard/go/internal/session"
	"github.com/focusguard/focusguard/go/internal/stats"
)

type Services struct {
	Session *session.Service
	Stats   *stats.Service
	Sweeper *session.Sweeper
}

func setupServices(database *sql.DB, cfg *config.Config, clock clockwork.Clock) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	queries := db.New(database)

	engine, err := reward.NewEngine(cfg.Reward)
	if err != nil {
		return nil, fmt.Errorf("failed to create reward engine: %w", err)
	}

	// Sessions
	sessionRepo := session.NewRepository(queries, database)
	sessionApp := session.NewApp(sessionRepo, engine, clock, cfg.Session)
	sessionService := session.NewService(sessionApp)

	// Stats
	statsRepo := stats.NewRepository(queries)
	statsApp, err := stats.NewApp(statsRepo, cfg.Reward, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats app: %w", err)
	}
	statsService := stats.NewService(statsApp)

	return &Services{
		Session: sessionService,
		Stats:   statsService,
		Sweeper: session.NewSweeper(sessionApp, cfg.Sweep),
	}, nil
}
