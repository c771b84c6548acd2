package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/reconciliation"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

// ReconciliationRepository stores matcher results as immutable rows. The raw
// payload is kept so a result renders exactly as it was received.
type ReconciliationRepository struct {
	db *pgxpool.Pool
}

func NewReconciliationRepository(db *pgxpool.Pool) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

func (r *ReconciliationRepository) SaveResult(ctx context.Context, result *reconciliation.Result) error {
	query := `
		INSERT INTO reconciliation_results (
			id, credential_id, return_period, financial_year,
			matched, partial, missing_in_books, missing_in_return, itc_lost,
			payload, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	payload := []byte(result.Raw)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := r.db.Exec(ctx, query,
		result.ID, result.CredentialID, result.Period.String(), result.FinancialYear.String(),
		result.Summary.Matched, result.Summary.Partial,
		result.Summary.MissingInBooks, result.Summary.MissingInReturn,
		result.Summary.ITCLost.StringFixed(2),
		payload, result.ReceivedAt,
	)
	if err := WrapRepositoryError(err); err != nil {
		if err == ErrDuplicateKey {
			return apperrors.NewConflictError(fmt.Sprintf("reconciliation result %s already stored", result.ID))
		}
		return apperrors.NewTransientFailure("save reconciliation result", err)
	}
	return nil
}

func (r *ReconciliationRepository) LatestResult(ctx context.Context, credentialID uuid.UUID, period values.ReturnPeriod) (*reconciliation.Result, error) {
	query := `
		SELECT id, financial_year, payload, received_at
		FROM reconciliation_results
		WHERE credential_id = $1 AND return_period = $2
		ORDER BY received_at DESC
		LIMIT 1
	`

	var (
		id         uuid.UUID
		fyRaw      string
		payload    []byte
		receivedAt time.Time
	)
	err := r.db.QueryRow(ctx, query, credentialID, period.String()).Scan(&id, &fyRaw, &payload, &receivedAt)
	if err := WrapRepositoryError(err); err != nil {
		if err == ErrNotFound {
			return nil, apperrors.NewNotFoundError("reconciliation result")
		}
		return nil, apperrors.NewTransientFailure("load reconciliation result", err)
	}

	fy, err := values.NewFinancialYear(fyRaw)
	if err != nil {
		return nil, apperrors.NewInternalError("stored financial year is invalid").WithCause(err)
	}
	req := &reconciliation.Request{CredentialID: credentialID, Period: period, FinancialYear: fy}
	result, err := reconciliation.ParseResult(req, payload, receivedAt.UTC())
	if err != nil {
		return nil, err
	}
	result.ID = id
	return result, nil
}
