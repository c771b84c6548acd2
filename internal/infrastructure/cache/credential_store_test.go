package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
)

var storeEpoch = time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)

func newTestCredential(t *testing.T, orgID uuid.UUID, created time.Time) *gst.Credential {
	t.Helper()
	c, err := gst.NewCredential(orgID, "29AAACR5055K1Z5", "ops@example.com", "29", "10.0.0.1")
	require.NoError(t, err)
	c.CreatedAt = created
	c.UpdatedAt = created
	return c
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := setupTestRedis(t)
	store := NewCredentialStore(c, 0, zaptest.NewLogger(t))

	orgID := uuid.New()
	cred := newTestCredential(t, orgID, storeEpoch)
	require.NoError(t, cred.IssueTransaction("txn-1", storeEpoch))
	require.NoError(t, cred.CompleteAuthentication("txn-1", gst.AuthToken{Value: "sek", Expiry: storeEpoch.Add(6 * time.Hour)}, storeEpoch))

	require.NoError(t, store.SaveCredential(ctx, cred))

	got, err := store.GetCredential(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, got.ID)
	assert.Equal(t, gst.StatusAuthenticated, got.AuthStatus)
	assert.Equal(t, "29AAACR5055K1Z5", got.GSTIN.String())
	require.NotNil(t, got.Token)
	assert.True(t, got.Token.Expiry.Equal(cred.Token.Expiry))
	assert.True(t, got.IsUsable(storeEpoch.Add(time.Hour)))
}

func TestCredentialStore_GetMissing(t *testing.T) {
	store := NewCredentialStore(setupTestMemory(t), 0, zaptest.NewLogger(t))

	_, err := store.GetCredential(context.Background(), uuid.New())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestCredentialStore_ListAndWatch(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(setupTestMemory(t), 0, zaptest.NewLogger(t))

	orgA, orgB := uuid.New(), uuid.New()
	second := newTestCredential(t, orgA, storeEpoch.Add(time.Hour))
	first := newTestCredential(t, orgA, storeEpoch)
	other := newTestCredential(t, orgB, storeEpoch)
	for _, c := range []*gst.Credential{second, first, other} {
		require.NoError(t, store.SaveCredential(ctx, c))
	}
	// Saving twice must not duplicate index entries.
	require.NoError(t, store.SaveCredential(ctx, first))

	list, err := store.ListCredentials(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	empty, err := store.ListCredentials(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)

	all, err := store.WatchedCredentials(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCredentialStore_ExpiredRecordsDropOutOfIndex(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestRedis(t)
	store := NewCredentialStore(c, time.Hour, zaptest.NewLogger(t))

	orgID := uuid.New()
	require.NoError(t, store.SaveCredential(ctx, newTestCredential(t, orgID, storeEpoch)))

	mr.FastForward(2 * time.Hour)

	list, err := store.ListCredentials(ctx, orgID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCredentialStore_ActiveSelection(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(setupTestMemory(t), 0, zaptest.NewLogger(t))
	orgID, credID := uuid.New(), uuid.New()

	id, err := store.GetActive(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)

	require.NoError(t, store.SetActive(ctx, orgID, credID))
	id, err = store.GetActive(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, credID, id)
}

func TestCredentialStore_Locks(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestRedis(t)
	store := NewCredentialStore(c, 0, zaptest.NewLogger(t))

	ok, err := store.AcquireLock(ctx, "credential:x:authenticate", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLock(ctx, "credential:x:authenticate", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is refused")

	require.NoError(t, store.ReleaseLock(ctx, "credential:x:authenticate"))
	ok, err = store.AcquireLock(ctx, "credential:x:authenticate", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// An abandoned lock frees itself after its ttl.
	mr.FastForward(2 * time.Minute)
	ok, err = store.AcquireLock(ctx, "credential:x:authenticate", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
