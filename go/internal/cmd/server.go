package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/focusguard/focusguard/go/internal/logging"
	"github.com/focusguard/focusguard/go/internal/rpc"
)

func setupServer(port string, services *Services, database *sql.DB) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
	})

	registerServices(mux, services)
	setupHealthCheck(mux, database)

	handler := logging.AccessLog(c.Handler(mux))

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	mux.Handle(services.Session.Handler())
	mux.Handle(services.Stats.Handler())
	log.Info().
		Str("owner_header", rpc.OwnerHeader).
		Msg("registered SessionService and StatsService")
}

func setupHealthCheck(mux *http.ServeMux, database *sql.DB) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
