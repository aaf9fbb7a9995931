package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/focusguard/focusguard/go/internal/rpc"
)

const snapshotTimeout = 5 * time.Second

// WebSocketHandler handles WebSocket upgrade requests for session connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stateProvider     StateProvider
	clock             clockwork.Clock
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, provider StateProvider, clock clockwork.Clock) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stateProvider:     provider,
		clock:             clock,
	}
}

// HandleSessionConnection upgrades the request and sends the owner's current session first
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.Header.Get(rpc.OwnerHeader))
	if ownerID == "" {
		ownerID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if ownerID == "" {
		http.Error(w, "user_id is required", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	sess, err := h.stateProvider.ActiveSession(ctx, ownerID)
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to load session snapshot")
		http.Error(w, "failed to load session state", http.StatusBadGateway)
		return
	}
	snapshot, err := snapshotEvent(sess, h.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to build session snapshot")
		http.Error(w, "failed to load session state", http.StatusInternalServerError)
		return
	}

	// Upgrade writes its own error response on failure.
	if _, err := h.connectionManager.UpgradeConnection(w, r, ownerID, snapshot); err != nil {
		log.Error().
			Err(err).
			Str("owner_id", ownerID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/sessions", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
