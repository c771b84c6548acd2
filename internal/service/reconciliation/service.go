package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
	"github.com/davidleathers/gstbooks/internal/domain/reconciliation"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

type service struct {
	gateway     Gateway
	credentials CredentialChecker
	results     ResultStore
	metrics     MetricsRecorder
	clock       gst.Clock
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewService creates a new reconciliation service. results may be nil, in
// which case nothing is persisted and Latest reports not found.
func NewService(gateway Gateway, credentials CredentialChecker, results ResultStore, metrics MetricsRecorder, clock gst.Clock, logger *zap.Logger) Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if clock == nil {
		clock = gst.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		gateway:     gateway,
		credentials: credentials,
		results:     results,
		metrics:     metrics,
		clock:       clock,
		logger:      logger.Named("reconciliation"),
		tracer:      otel.Tracer("gstbooks.reconciliation"),
	}
}

// Reconcile validates the request shape, refuses to run for an unusable
// credential and otherwise passes the matcher's aggregate through unchanged.
func (s *service) Reconcile(ctx context.Context, input ReconcileInput) (result *reconciliation.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "ReconciliationService.Reconcile", trace.WithAttributes(
		attribute.String("credential.id", input.CredentialID.String()),
		attribute.String("return.period", input.Period),
	))
	defer func() {
		empty := result != nil && result.IsEmpty()
		s.metrics.RecordReconciliation(outcome(err), empty)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := reconciliation.NewRequest(input.CredentialID, input.Period, input.FinancialYear, input.Books, input.FetchRemoteReturn)
	if err != nil {
		return nil, err
	}

	status, err := s.credentials.Usability(ctx, input.CredentialID)
	if err != nil {
		return nil, err
	}
	if !status.Usability.Usable {
		return nil, errors.NewPreconditionFailed(
			"CREDENTIAL_NOT_USABLE",
			"GST credential is not authenticated or its session has expired; request a new OTP",
		).WithDetails(map[string]interface{}{
			"authStatus":   status.Usability.AuthStatus.String(),
			"tokenExpired": status.Usability.TokenExpired,
		})
	}

	payload, err := s.gateway.Reconcile(ctx, req)
	if err != nil {
		s.logger.Warn("reconciliation failed",
			zap.String("credential_id", input.CredentialID.String()),
			zap.String("period", req.Period.String()),
			zap.Error(err))
		return nil, err
	}

	result, err = reconciliation.ParseResult(req, payload, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if s.results != nil {
		if err := s.results.SaveResult(ctx, result); err != nil {
			// The caller still gets the result; only the stored copy is missing.
			s.logger.Error("failed to store reconciliation result",
				zap.String("result_id", result.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("reconciliation completed",
		zap.String("credential_id", input.CredentialID.String()),
		zap.String("period", req.Period.String()),
		zap.Int("entries", len(result.Entries)),
		zap.Bool("empty", result.IsEmpty()))
	return result, nil
}

func (s *service) Latest(ctx context.Context, credentialID uuid.UUID, period string) (*reconciliation.Result, error) {
	p, err := values.NewReturnPeriod(period)
	if err != nil {
		return nil, err
	}
	if s.results == nil {
		return nil, errors.NewNotFoundError("reconciliation result")
	}
	return s.results.LatestResult(ctx, credentialID, p)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.TypeOf(err))
}

type noopMetrics struct{}

func (noopMetrics) RecordReconciliation(string, bool) {}
