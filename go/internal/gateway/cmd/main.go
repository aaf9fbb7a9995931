package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/focusguard/focusguard/go/internal/gateway"
	"github.com/focusguard/focusguard/go/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	logging.Setup("gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := getEnv("GATEWAY_PORT", "8081")
	apiURL := getEnv("API_URL", "http://localhost:8080")

	cfg := gateway.DefaultConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.JetStreamConfig.URL = url
	}

	clock := clockwork.NewRealClock()
	provider := gateway.NewSessionStateProvider(&http.Client{Timeout: 10 * time.Second}, apiURL)

	svc, err := gateway.NewService(ctx, cfg, provider, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !svc.Healthy() {
			http.Error(w, "NATS disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service":     "session-gateway",
			"connections": svc.Stats().TotalConnections,
		})
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           logging.AccessLog(cors.AllowAll().Handler(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().
		Str("nats_url", cfg.JetStreamConfig.URL).
		Str("api_url", apiURL).
		Str("port", port).
		Msg("starting session gateway")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("gateway exited unexpectedly")
		os.Exit(1)
	}
	log.Info().Msg("session gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
