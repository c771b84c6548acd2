package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
	domainrecon "github.com/davidleathers/gstbooks/internal/domain/reconciliation"
	"github.com/davidleathers/gstbooks/internal/service/credential"
	"github.com/davidleathers/gstbooks/internal/service/documents"
	"github.com/davidleathers/gstbooks/internal/service/reconciliation"
)

// CredentialService mock
type CredentialService struct {
	mock.Mock
}

func (m *CredentialService) Create(ctx context.Context, req credential.CreateRequest) (*gst.Credential, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.Credential), args.Error(1)
}

func (m *CredentialService) RequestOTP(ctx context.Context, credentialID uuid.UUID) (string, error) {
	args := m.Called(ctx, credentialID)
	return args.String(0), args.Error(1)
}

func (m *CredentialService) Authenticate(ctx context.Context, req credential.AuthenticateRequest) (*gst.Credential, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.Credential), args.Error(1)
}

func (m *CredentialService) Status(ctx context.Context, credentialID uuid.UUID) (*credential.StatusResponse, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.StatusResponse), args.Error(1)
}

func (m *CredentialService) Usability(ctx context.Context, credentialID uuid.UUID) (*credential.StatusResponse, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.StatusResponse), args.Error(1)
}

func (m *CredentialService) Get(ctx context.Context, credentialID uuid.UUID) (*gst.Credential, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.Credential), args.Error(1)
}

func (m *CredentialService) List(ctx context.Context, orgID uuid.UUID) ([]*gst.Credential, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*gst.Credential), args.Error(1)
}

func (m *CredentialService) SelectActive(ctx context.Context, orgID, credentialID uuid.UUID) error {
	args := m.Called(ctx, orgID, credentialID)
	return args.Error(0)
}

func (m *CredentialService) Active(ctx context.Context, orgID uuid.UUID) (*gst.Credential, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gst.Credential), args.Error(1)
}

// ReconciliationService mock
type ReconciliationService struct {
	mock.Mock
}

func (m *ReconciliationService) Reconcile(ctx context.Context, input reconciliation.ReconcileInput) (*domainrecon.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainrecon.Result), args.Error(1)
}

func (m *ReconciliationService) Latest(ctx context.Context, credentialID uuid.UUID, period string) (*domainrecon.Result, error) {
	args := m.Called(ctx, credentialID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainrecon.Result), args.Error(1)
}

// DocumentService mock
type DocumentService struct {
	mock.Mock
}

func (m *DocumentService) Preview(ctx context.Context, req documents.PreviewRequest) (*documents.PreviewResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*documents.PreviewResult), args.Error(1)
}

func (m *DocumentService) Submit(ctx context.Context, doc *document.Document) (*documents.SubmitResult, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*documents.SubmitResult), args.Error(1)
}

var (
	_ credential.Service     = (*CredentialService)(nil)
	_ reconciliation.Service = (*ReconciliationService)(nil)
	_ documents.Service      = (*DocumentService)(nil)
)
