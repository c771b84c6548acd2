package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from a different origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler manages WebSocket endpoints
type Handler struct {
	logger *zap.Logger
	hub    *CredentialEventHub
}

func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger: logger.Named("ws"),
		hub:    NewCredentialEventHub(logger),
	}
}

// Start runs the hub until ctx is done.
func (h *Handler) Start(ctx context.Context) {
	go h.hub.Run(ctx)
}

func (h *Handler) Stop() {
	h.hub.Stop()
}

// Hub returns the hub the expiry watcher publishes to.
func (h *Handler) Hub() *CredentialEventHub {
	return h.hub
}

// HandleCredentialEvents upgrades the request and subscribes it to credential
// events. An organization_id query parameter narrows the stream.
func (h *Handler) HandleCredentialEvents(w http.ResponseWriter, r *http.Request) {
	var orgID uuid.UUID
	if raw := r.URL.Query().Get("organization_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "organization_id must be a UUID", http.StatusBadRequest)
			return
		}
		orgID = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := NewCredentialClient(conn, h.hub, orgID)
	if !h.hub.Register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// Info describes the connected subscribers.
type Info struct {
	ActiveConnections int `json:"active_connections"`
}

func (h *Handler) Info() Info {
	return Info{ActiveConnections: h.hub.ClientCount()}
}
