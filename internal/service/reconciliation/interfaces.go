package reconciliation

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/reconciliation"
	"github.com/davidleathers/gstbooks/internal/domain/values"
	"github.com/davidleathers/gstbooks/internal/service/credential"
)

// Service forwards reconciliation requests to the remote matcher once the
// credential has been confirmed usable.
type Service interface {
	Reconcile(ctx context.Context, input ReconcileInput) (*reconciliation.Result, error)
	// Latest returns the most recent stored result for a credential and period.
	Latest(ctx context.Context, credentialID uuid.UUID, period string) (*reconciliation.Result, error)
}

// Gateway is the remote matcher. It returns the raw aggregate payload.
type Gateway interface {
	Reconcile(ctx context.Context, req *reconciliation.Request) ([]byte, error)
}

// CredentialChecker is the slice of the credential service this package needs.
type CredentialChecker interface {
	Usability(ctx context.Context, credentialID uuid.UUID) (*credential.StatusResponse, error)
}

// ResultStore persists results as read-only rendering input.
type ResultStore interface {
	SaveResult(ctx context.Context, result *reconciliation.Result) error
	LatestResult(ctx context.Context, credentialID uuid.UUID, period values.ReturnPeriod) (*reconciliation.Result, error)
}

// MetricsRecorder receives one outcome per reconciliation attempt.
type MetricsRecorder interface {
	RecordReconciliation(outcome string, empty bool)
}

type ReconcileInput struct {
	CredentialID      uuid.UUID
	Period            string
	FinancialYear     string
	Books             []document.Document
	FetchRemoteReturn bool
}
