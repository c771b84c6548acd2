package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/gstbooks/internal/domain/gst"
)

// CredentialGateway mock
type CredentialGateway struct {
	mock.Mock
}

func (m *CredentialGateway) CreateCredential(ctx context.Context, draft *gst.Credential) (*gst.Credential, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.Credential), args.Error(1)
}

func (m *CredentialGateway) RequestOTP(ctx context.Context, credentialID uuid.UUID) (string, error) {
	args := m.Called(ctx, credentialID)
	return args.String(0), args.Error(1)
}

func (m *CredentialGateway) Authenticate(ctx context.Context, credentialID uuid.UUID, otp, transactionID string) (*gst.Credential, error) {
	args := m.Called(ctx, credentialID, otp, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.Credential), args.Error(1)
}

func (m *CredentialGateway) AuthStatus(ctx context.Context, credentialID uuid.UUID) (*gst.StatusReport, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.StatusReport), args.Error(1)
}

// CredentialStore mock
type CredentialStore struct {
	mock.Mock
}

func (m *CredentialStore) SaveCredential(ctx context.Context, c *gst.Credential) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *CredentialStore) GetCredential(ctx context.Context, id uuid.UUID) (*gst.Credential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.Credential), args.Error(1)
}

func (m *CredentialStore) ListCredentials(ctx context.Context, orgID uuid.UUID) ([]*gst.Credential, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*gst.Credential), args.Error(1)
}

func (m *CredentialStore) SetActive(ctx context.Context, orgID, credentialID uuid.UUID) error {
	args := m.Called(ctx, orgID, credentialID)
	return args.Error(0)
}

func (m *CredentialStore) GetActive(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *CredentialStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *CredentialStore) ReleaseLock(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// CredentialMetrics mock
type CredentialMetrics struct {
	mock.Mock
}

func (m *CredentialMetrics) RecordOTPRequest(outcome string) {
	m.Called(outcome)
}

func (m *CredentialMetrics) RecordAuthentication(outcome string) {
	m.Called(outcome)
}
