package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/focusguard/focusguard/go/internal/db"
	"github.com/focusguard/focusguard/go/internal/dbconfig"
	"github.com/focusguard/focusguard/go/internal/logging"
	"github.com/focusguard/focusguard/go/internal/outbox"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	logging.Setup("outbox-relay")

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := dbconfig.NewConfigFromEnv()
	database, err := dbconfig.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	// JetStream publisher
	jsCfg := outbox.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	jsPublisher, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := jsPublisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	metrics := outbox.NewCounterMetrics()
	publisher := outbox.NewMetricPublisher(jsPublisher, metrics)

	// Listener config
	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = cfg.DSN()
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	notifier, err := outbox.NewPQNotifier(ltCfg.DatabaseURL, ltCfg.NotifyChannel)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	store := outbox.NewRepository(db.New(database))
	clock := clockwork.NewRealClock()
	listener := outbox.NewListener(store, notifier, publisher, ltCfg,
		outbox.WithMetrics(metrics),
		outbox.WithClock(clock),
	)

	checker := outbox.NewRelayHealthChecker(listener, database, store, jsPublisher.Conn().IsConnected, clock, 2*time.Minute)
	mux := http.NewServeMux()
	mux.Handle("/health", checker)
	mux.Handle("/metrics", outbox.NewPrometheusExporter(checker, metrics))
	srv := &http.Server{
		Addr:              ":" + getEnv("OUTBOX_HTTP_PORT", "8082"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msg("starting realtime listener")
		return listener.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("health server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("outbox relay exited unexpectedly")
		os.Exit(1)
	}
	log.Info().Msg("graceful shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
