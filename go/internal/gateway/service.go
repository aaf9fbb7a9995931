package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service is the session gateway: it owns the websocket pools and the JetStream consumer
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

// Config holds configuration for the session gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the session gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates a new session gateway service
func NewService(ctx context.Context, config Config, stateProvider StateProvider, clock clockwork.Clock) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	eventConsumer, err := NewEventConsumer(ctx, connectionManager, clock, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, stateProvider, clock),
		eventConsumer:     eventConsumer,
	}, nil
}

// Start runs the connection manager and the consumer until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting session gateway service")

	go s.connectionManager.Start(ctx)

	err := s.eventConsumer.Start(ctx)
	if stopErr := s.eventConsumer.Stop(); stopErr != nil {
		log.Error().Err(stopErr).Msg("failed to stop event consumer")
	}

	log.Info().Msg("session gateway service stopped")
	return err
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("session gateway routes registered")
}

// Stats returns statistics about the gateway's connections
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

// Healthy reports whether the gateway can still receive events
func (s *Service) Healthy() bool {
	return s.eventConsumer.Connected()
}
