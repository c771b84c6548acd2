package gst_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newCredential(t *testing.T) *gst.Credential {
	t.Helper()
	c, err := gst.NewCredential(uuid.New(), "22AAAAA0000A1Z5", "Tax@Example.com", "22", "10.0.0.1")
	require.NoError(t, err)
	return c
}

func TestNewCredential(t *testing.T) {
	clock := gst.NewMockClock(epoch)
	gst.SetClock(clock)
	defer gst.ResetClock()

	t.Run("valid registration is pending", func(t *testing.T) {
		c := newCredential(t)
		assert.Equal(t, gst.StatusPending, c.AuthStatus)
		assert.Equal(t, "tax@example.com", c.Email.String())
		assert.Equal(t, epoch, c.CreatedAt)
		assert.False(t, c.IsUsable(epoch))
		assert.Nil(t, c.Token)
	})

	tests := []struct {
		name      string
		orgID     uuid.UUID
		gstin     string
		email     string
		stateCode string
		ip        string
		code      string
	}{
		{name: "missing organization", orgID: uuid.Nil, gstin: "22AAAAA0000A1Z5", email: "a@b.co", stateCode: "22", code: "MISSING_ORGANIZATION"},
		{name: "short gstin", orgID: uuid.New(), gstin: "22AAAAA0000A1Z", email: "a@b.co", stateCode: "22", code: "INVALID_GSTIN"},
		{name: "bad email", orgID: uuid.New(), gstin: "22AAAAA0000A1Z5", email: "nope", stateCode: "22", code: "INVALID_EMAIL"},
		{name: "bad state code", orgID: uuid.New(), gstin: "22AAAAA0000A1Z5", email: "a@b.co", stateCode: "2A", code: "INVALID_STATE_CODE"},
		{name: "state code differs from gstin", orgID: uuid.New(), gstin: "22AAAAA0000A1Z5", email: "a@b.co", stateCode: "27", code: "STATE_CODE_MISMATCH"},
		{name: "bad ip", orgID: uuid.New(), gstin: "22AAAAA0000A1Z5", email: "a@b.co", stateCode: "22", ip: "300.1.1.1", code: "INVALID_IP_ADDRESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gst.NewCredential(tt.orgID, tt.gstin, tt.email, tt.stateCode, tt.ip)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.Equal(t, tt.code, errors.Code(err))
		})
	}
}

func TestCredential_Lifecycle(t *testing.T) {
	clock := gst.NewMockClock(epoch)
	c := newCredential(t)

	require.NoError(t, c.IssueTransaction("txn-1", clock.Now()))
	assert.True(t, c.AwaitingOTP())

	// A second OTP request supersedes the first.
	require.NoError(t, c.IssueTransaction("txn-2", clock.Now()))

	err := c.CompleteAuthentication("txn-1", gst.AuthToken{Value: "tok", Expiry: epoch.Add(6 * time.Hour)}, clock.Now())
	assert.Equal(t, "STALE_TRANSACTION", errors.Code(err))
	assert.Equal(t, gst.StatusPending, c.AuthStatus)

	require.NoError(t, c.CompleteAuthentication("txn-2", gst.AuthToken{Value: "tok", Expiry: epoch.Add(6 * time.Hour)}, clock.Now()))
	assert.Equal(t, gst.StatusAuthenticated, c.AuthStatus)
	assert.False(t, c.AwaitingOTP())
	assert.True(t, c.IsUsable(clock.Now()))

	clock.Advance(6*time.Hour - time.Second)
	assert.True(t, c.IsUsable(clock.Now()))

	clock.Advance(time.Second)
	assert.False(t, c.IsUsable(clock.Now()))
	assert.True(t, c.TokenExpired(clock.Now()))
	assert.Equal(t, gst.StatusAuthenticated, c.AuthStatus, "expiry must not rewrite the stored status")

	// The used transaction cannot be replayed.
	err = c.CompleteAuthentication("txn-2", gst.AuthToken{Value: "tok2", Expiry: clock.Now().Add(time.Hour)}, clock.Now())
	assert.Equal(t, "NO_PENDING_OTP", errors.Code(err))
}

func TestCredential_CompleteAuthenticationRequiresToken(t *testing.T) {
	c := newCredential(t)
	require.NoError(t, c.IssueTransaction("txn", epoch))

	err := c.CompleteAuthentication("txn", gst.AuthToken{Expiry: epoch.Add(time.Hour)}, epoch)
	assert.Equal(t, "INVALID_TOKEN", errors.Code(err))
	assert.Equal(t, gst.StatusPending, c.AuthStatus)
	assert.True(t, c.AwaitingOTP())
}

func TestCredential_AcceptTokenKeepsPendingTransaction(t *testing.T) {
	c := newCredential(t)
	require.NoError(t, c.IssueTransaction("txn-2", epoch))

	err := c.AcceptToken(gst.AuthToken{Value: "s", Expiry: epoch.Add(time.Hour)}, epoch)
	require.NoError(t, err)
	assert.Equal(t, gst.StatusAuthenticated, c.AuthStatus)
	assert.Equal(t, "txn-2", c.TransactionID)
	assert.True(t, c.IsUsable(epoch))

	err = c.AcceptToken(gst.AuthToken{}, epoch)
	assert.Equal(t, "INVALID_TOKEN", errors.Code(err))
}

func TestCredential_SameRevision(t *testing.T) {
	base := newCredential(t)
	require.NoError(t, base.IssueTransaction("txn-1", epoch))

	tests := []struct {
		name   string
		change func(c *gst.Credential)
		same   bool
	}{
		{name: "identical copy", change: func(c *gst.Credential) {}, same: true},
		{name: "newer transaction", change: func(c *gst.Credential) { c.TransactionID = "txn-2" }},
		{name: "new token at the same instant", change: func(c *gst.Credential) {
			c.Token = &gst.AuthToken{Value: "s", Expiry: epoch.Add(time.Hour)}
		}},
		{name: "later update", change: func(c *gst.Credential) { c.UpdatedAt = epoch.Add(time.Second) }},
		{name: "status changed", change: func(c *gst.Credential) { c.AuthStatus = gst.StatusFailed }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.change(other)
			assert.Equal(t, tt.same, base.SameRevision(other))
		})
	}
	assert.False(t, base.SameRevision(nil))
}

func TestCredential_Evaluate(t *testing.T) {
	window := 30 * time.Minute
	c := newCredential(t)
	require.NoError(t, c.IssueTransaction("txn", epoch))
	require.NoError(t, c.CompleteAuthentication("txn", gst.AuthToken{Value: "tok", Expiry: epoch.Add(2 * time.Hour)}, epoch))

	tests := []struct {
		name     string
		at       time.Time
		validate func(t *testing.T, u gst.Usability)
	}{
		{
			name: "fresh token",
			at:   epoch,
			validate: func(t *testing.T, u gst.Usability) {
				assert.True(t, u.Usable)
				assert.False(t, u.NeedsRefresh)
				assert.False(t, u.NeedsReauth)
				assert.Equal(t, 2*time.Hour, u.ExpiresIn)
			},
		},
		{
			name: "inside the warning window",
			at:   epoch.Add(90 * time.Minute),
			validate: func(t *testing.T, u gst.Usability) {
				assert.True(t, u.Usable)
				assert.True(t, u.NeedsRefresh)
				assert.False(t, u.TokenExpired)
			},
		},
		{
			name: "past expiry",
			at:   epoch.Add(3 * time.Hour),
			validate: func(t *testing.T, u gst.Usability) {
				assert.False(t, u.Usable)
				assert.False(t, u.NeedsRefresh)
				assert.True(t, u.TokenExpired)
				assert.True(t, u.NeedsReauth)
				assert.Equal(t, gst.StatusAuthenticated, u.AuthStatus)
				require.NotNil(t, u.TokenExpiry)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, c.Evaluate(tt.at, window))
		})
	}
}

func TestCredential_ApplyStatusReport(t *testing.T) {
	t.Run("server expiry makes the credential unusable", func(t *testing.T) {
		c := newCredential(t)
		require.NoError(t, c.IssueTransaction("txn", epoch))
		require.NoError(t, c.CompleteAuthentication("txn", gst.AuthToken{Value: "tok", Expiry: epoch.Add(time.Hour)}, epoch))

		c.ApplyStatusReport(gst.StatusReport{AuthStatus: gst.StatusAuthenticated, TokenExpired: true}, epoch)
		assert.False(t, c.IsUsable(epoch))
		assert.True(t, c.TokenExpired(epoch))
		require.NotNil(t, c.LastCheckedAt)
	})

	t.Run("report cannot authenticate a credential without a token", func(t *testing.T) {
		c := newCredential(t)
		expiry := epoch.Add(time.Hour)
		c.ApplyStatusReport(gst.StatusReport{Authenticated: true, AuthStatus: gst.StatusAuthenticated, TokenExpiry: &expiry}, epoch)
		assert.Equal(t, gst.StatusPending, c.AuthStatus)
		assert.False(t, c.IsUsable(epoch))
	})

	t.Run("server declared failure is stored", func(t *testing.T) {
		c := newCredential(t)
		c.ApplyStatusReport(gst.StatusReport{AuthStatus: gst.StatusFailed}, epoch)
		assert.Equal(t, gst.StatusFailed, c.AuthStatus)
	})
}

func TestCredential_CloneAndJSON(t *testing.T) {
	c := newCredential(t)
	require.NoError(t, c.IssueTransaction("txn", epoch))
	require.NoError(t, c.CompleteAuthentication("txn", gst.AuthToken{Value: "tok", Expiry: epoch.Add(time.Hour)}, epoch))

	clone := c.Clone()
	clone.Token.Expiry = epoch
	assert.True(t, c.IsUsable(epoch))

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded gst.Credential
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c.ID, decoded.ID)
	assert.Equal(t, c.GSTIN, decoded.GSTIN)
	assert.Equal(t, gst.StatusAuthenticated, decoded.AuthStatus)
	assert.True(t, decoded.IsUsable(epoch))
}

func TestParseAuthStatus(t *testing.T) {
	s, err := gst.ParseAuthStatus("authenticated")
	require.NoError(t, err)
	assert.Equal(t, gst.StatusAuthenticated, s)

	_, err = gst.ParseAuthStatus("LOCKED")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
