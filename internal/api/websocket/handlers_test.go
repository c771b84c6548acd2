package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/gstbooks/internal/service/expiry"
)

func startHandler(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandler(zaptest.NewLogger(t))
	h.Start(ctx)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleCredentialEvents))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome CredentialEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, EventConnectionEstablished, welcome.Type)
	return conn
}

func TestHub_DeliversExpiryEvents(t *testing.T) {
	h, srv := startHandler(t)
	conn := dial(t, srv, "")

	credID, orgID := uuid.New(), uuid.New()
	expiresAt := time.Date(2024, 9, 1, 18, 0, 0, 0, time.UTC)
	h.Hub().Publish(context.Background(), expiry.Event{
		Kind:           expiry.EventNeedsRefresh,
		CredentialID:   credID,
		OrganizationID: orgID,
		GSTIN:          "29AAACR5055K1Z5",
		TokenExpiry:    &expiresAt,
		At:             expiresAt.Add(-10 * time.Minute),
	})

	var got CredentialEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventCredentialNeedsRefresh, got.Type)
	assert.Equal(t, credID.String(), got.CredentialID)
	assert.Equal(t, orgID.String(), got.OrganizationID)
	assert.Equal(t, "29AAACR5055K1Z5", got.GSTIN)
	require.NotNil(t, got.TokenExpiry)
	assert.True(t, expiresAt.Equal(*got.TokenExpiry))
	assert.Equal(t, 1, h.Info().ActiveConnections)
}

func TestHub_OrganizationFilter(t *testing.T) {
	h, srv := startHandler(t)
	mine, other := uuid.New(), uuid.New()
	conn := dial(t, srv, "?organization_id="+mine.String())

	h.Hub().Publish(context.Background(), expiry.Event{Kind: expiry.EventExpired, CredentialID: uuid.New(), OrganizationID: other, At: time.Now()})
	h.Hub().Publish(context.Background(), expiry.Event{Kind: expiry.EventExpired, CredentialID: uuid.New(), OrganizationID: mine, At: time.Now()})

	var got CredentialEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventCredentialExpired, got.Type)
	assert.Equal(t, mine.String(), got.OrganizationID)
}

func TestHandler_RejectsBadOrganization(t *testing.T) {
	_, srv := startHandler(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?organization_id=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHub_PublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewCredentialEventHub(zaptest.NewLogger(t))
	done := make(chan struct{})
	go func() {
		hub.Run(context.Background())
		close(done)
	}()
	hub.Stop()
	<-done

	for i := 0; i < 200; i++ {
		hub.Publish(context.Background(), expiry.Event{Kind: expiry.EventUsable, At: time.Now()})
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestEventType(t *testing.T) {
	assert.Equal(t, EventCredentialUsable, eventType(expiry.EventUsable))
	assert.Equal(t, EventCredentialNeedsRefresh, eventType(expiry.EventNeedsRefresh))
	assert.Equal(t, EventCredentialExpired, eventType(expiry.EventExpired))
}
