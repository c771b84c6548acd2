package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/service/expiry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// CredentialEventType represents the type of a pushed credential event
type CredentialEventType string

const (
	EventCredentialUsable       CredentialEventType = "credential.usable"
	EventCredentialNeedsRefresh CredentialEventType = "credential.needs_refresh"
	EventCredentialExpired      CredentialEventType = "credential.expired"
	EventConnectionEstablished  CredentialEventType = "connection.established"
)

// CredentialEvent is the message written to subscribers.
type CredentialEvent struct {
	ID             string              `json:"id"`
	Type           CredentialEventType `json:"type"`
	CredentialID   string              `json:"credential_id,omitempty"`
	OrganizationID string              `json:"organization_id,omitempty"`
	GSTIN          string              `json:"gstin,omitempty"`
	TokenExpiry    *time.Time          `json:"token_expiry,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	Data           interface{}         `json:"data,omitempty"`

	organizationID uuid.UUID
}

// CredentialEventHub fans expiry watcher events out to connected UIs. It
// implements expiry.Notifier.
type CredentialEventHub struct {
	logger      *zap.Logger
	clients     map[uuid.UUID]*CredentialClient
	clientsLock sync.RWMutex
	broadcast   chan *CredentialEvent
	register    chan *CredentialClient
	unregister  chan *CredentialClient
	done        chan struct{}
	stopped     chan struct{}
	stopOnce    sync.Once
}

// CredentialClient is one subscriber. A client bound to an organization only
// receives that organization's events.
type CredentialClient struct {
	ID             uuid.UUID
	conn           *websocket.Conn
	send           chan *CredentialEvent
	hub            *CredentialEventHub
	organizationID uuid.UUID
	connectedAt    time.Time
}

var _ expiry.Notifier = (*CredentialEventHub)(nil)

func NewCredentialEventHub(logger *zap.Logger) *CredentialEventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialEventHub{
		logger:     logger.Named("ws"),
		clients:    make(map[uuid.UUID]*CredentialClient),
		broadcast:  make(chan *CredentialEvent, 100),
		register:   make(chan *CredentialClient),
		unregister: make(chan *CredentialClient),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run serves the hub until ctx is done or Stop is called.
func (h *CredentialEventHub) Run(ctx context.Context) {
	defer close(h.stopped)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *CredentialEventHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish queues an expiry event for delivery. It never blocks; events are
// dropped when the queue is full or the hub has stopped.
func (h *CredentialEventHub) Publish(_ context.Context, event expiry.Event) {
	msg := &CredentialEvent{
		ID:             uuid.NewString(),
		Type:           eventType(event.Kind),
		CredentialID:   event.CredentialID.String(),
		OrganizationID: event.OrganizationID.String(),
		GSTIN:          event.GSTIN,
		TokenExpiry:    event.TokenExpiry,
		Timestamp:      event.At,
		organizationID: event.OrganizationID,
	}
	select {
	case <-h.stopped:
	case h.broadcast <- msg:
	default:
		h.logger.Warn("credential event dropped, broadcast queue full",
			zap.String("credential_id", msg.CredentialID),
			zap.String("type", string(msg.Type)))
	}
}

func eventType(kind expiry.EventKind) CredentialEventType {
	switch kind {
	case expiry.EventNeedsRefresh:
		return EventCredentialNeedsRefresh
	case expiry.EventExpired:
		return EventCredentialExpired
	default:
		return EventCredentialUsable
	}
}

// ClientCount reports the number of connected subscribers.
func (h *CredentialEventHub) ClientCount() int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients)
}

func (h *CredentialEventHub) Register(client *CredentialClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *CredentialEventHub) Unregister(client *CredentialClient) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

func (h *CredentialEventHub) registerClient(client *CredentialClient) {
	h.clientsLock.Lock()
	h.clients[client.ID] = client
	h.clientsLock.Unlock()

	h.logger.Info("websocket client registered",
		zap.String("client_id", client.ID.String()),
		zap.String("organization_id", client.organizationID.String()))

	welcome := &CredentialEvent{
		ID:        uuid.NewString(),
		Type:      EventConnectionEstablished,
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"client_id": client.ID.String()},
	}
	select {
	case client.send <- welcome:
	default:
	}
}

func (h *CredentialEventHub) unregisterClient(client *CredentialClient) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, exists := h.clients[client.ID]; exists {
		delete(h.clients, client.ID)
		close(client.send)
		h.logger.Info("websocket client unregistered", zap.String("client_id", client.ID.String()))
	}
}

func (h *CredentialEventHub) broadcastEvent(event *CredentialEvent) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	for id, client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- event:
		default:
			h.logger.Warn("client send channel full, closing connection", zap.String("client_id", id.String()))
			delete(h.clients, id)
			close(client.send)
		}
	}
}

func (h *CredentialEventHub) shutdown() {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[uuid.UUID]*CredentialClient)
}

func NewCredentialClient(conn *websocket.Conn, hub *CredentialEventHub, organizationID uuid.UUID) *CredentialClient {
	return &CredentialClient{
		ID:             uuid.New(),
		conn:           conn,
		send:           make(chan *CredentialEvent, sendBuffer),
		hub:            hub,
		organizationID: organizationID,
		connectedAt:    time.Now().UTC(),
	}
}

func (c *CredentialClient) wants(event *CredentialEvent) bool {
	return c.organizationID == uuid.Nil || c.organizationID == event.organizationID
}

// ReadPump discards client messages and unregisters the client when the
// connection closes.
func (c *CredentialClient) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error",
					zap.String("client_id", c.ID.String()),
					zap.Error(err))
			}
			return
		}
	}
}

// WritePump writes queued events and keeps the connection alive with pings.
func (c *CredentialClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
