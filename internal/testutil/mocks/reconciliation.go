package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/gstbooks/internal/domain/reconciliation"
	"github.com/davidleathers/gstbooks/internal/domain/values"
	"github.com/davidleathers/gstbooks/internal/service/credential"
)

// ReconciliationGateway mock
type ReconciliationGateway struct {
	mock.Mock
}

func (m *ReconciliationGateway) Reconcile(ctx context.Context, req *reconciliation.Request) ([]byte, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// CredentialChecker mock
type CredentialChecker struct {
	mock.Mock
}

func (m *CredentialChecker) Usability(ctx context.Context, credentialID uuid.UUID) (*credential.StatusResponse, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.StatusResponse), args.Error(1)
}

// ResultStore mock
type ResultStore struct {
	mock.Mock
}

func (m *ResultStore) SaveResult(ctx context.Context, result *reconciliation.Result) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *ResultStore) LatestResult(ctx context.Context, credentialID uuid.UUID, period values.ReturnPeriod) (*reconciliation.Result, error) {
	args := m.Called(ctx, credentialID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}
