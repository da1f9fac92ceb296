package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/service"
	"github.com/yourusername/lucky-wheel/internal/websocket"
)

const snapshotTimeout = 5 * time.Second

// SnapshotSource builds the state sent to a client on connect
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*service.Snapshot, error)
}

// WSHandler accepts WebSocket connections
type WSHandler struct {
	wsHub     *websocket.Hub
	wsManager *websocket.Manager
	snapshots SnapshotSource
	clientCfg websocket.ClientConfig
	upgrader  gorillaws.Upgrader
}

// NewWSHandler creates the handler and registers client message handlers.
// An empty allowedOrigins accepts any origin.
func NewWSHandler(
	wsHub *websocket.Hub,
	wsManager *websocket.Manager,
	snapshots SnapshotSource,
	allowedOrigins []string,
	clientCfg websocket.ClientConfig,
) *WSHandler {
	h := &WSHandler{
		wsHub:     wsHub,
		wsManager: wsManager,
		snapshots: snapshots,
		clientCfg: clientCfg,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			CheckOrigin:       originChecker(allowedOrigins),
			EnableCompression: true,
		},
	}

	h.registerMessageHandlers()

	return h
}

// originChecker allows requests without an Origin header (non-browser
// clients) and origins from the allow list.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		log.Warn().Str("origin", origin).Msg("[WSHandler] Rejected origin")
		return false
	}
}

// HandleConnection upgrades the request. The optional role query parameter
// is display, spectator or admin.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	role := c.DefaultQuery("role", websocket.RoleSpectator)
	switch role {
	case websocket.RoleDisplay, websocket.RoleSpectator, websocket.RoleAdmin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown role %q", role)})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn().Err(err).Msg("[WSHandler] Upgrade failed")
		return
	}

	client := websocket.NewClient(h.wsHub, conn, role, h.clientCfg)
	log.Info().Str("conn_id", client.ConnectionID).Str("role", role).Msg("[WSHandler] Client connected")

	client.StartPumps(h.wsManager.HandleMessage, h.sendSnapshot)
}

// Metrics returns hub metrics
func (h *WSHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.wsManager.GetMetrics())
}

// sendSnapshot queues the full state for one client. The hub queue keeps it
// ahead of any event broadcast afterwards.
func (h *WSHandler) sendSnapshot(client *websocket.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := h.snapshots.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Str("conn_id", client.ConnectionID).Msg("[WSHandler] Snapshot failed")
		h.wsManager.SendErrorToClient(client, "snapshot_failed", "Failed to load current state")
		return
	}
	if err := h.wsManager.SendEventToClient(client.ConnectionID, websocket.SYNC_SNAPSHOT, snap); err != nil {
		log.Warn().Err(err).Str("conn_id", client.ConnectionID).Msg("[WSHandler] Failed to queue snapshot")
	}
}

func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.SYNC_REQUEST, func(_ json.RawMessage, client *websocket.Client) error {
		h.sendSnapshot(client)
		return nil
	})

	h.wsManager.RegisterHandler(websocket.CLIENT_HEARTBEAT, func(_ json.RawMessage, client *websocket.Client) error {
		resp := map[string]interface{}{
			"timestamp": time.Now().UnixMilli(),
		}
		if err := h.wsManager.SendEventToClient(client.ConnectionID, websocket.SERVER_HEARTBEAT, resp); err != nil {
			log.Warn().Err(err).Str("conn_id", client.ConnectionID).Msg("[WSHandler] Failed to send heartbeat")
		}
		return nil
	})
}
