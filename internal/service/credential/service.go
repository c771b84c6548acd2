package credential

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
)

var otpPattern = regexp.MustCompile(`^[0-9]{4,8}$`)

// service implements the Service interface
type service struct {
	gateway Gateway
	store   Store
	metrics MetricsRecorder
	clock   gst.Clock
	config  Config
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewService creates a new credential service
func NewService(gateway Gateway, store Store, metrics MetricsRecorder, clock gst.Clock, cfg Config, logger *zap.Logger) Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if clock == nil {
		clock = gst.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = defaults.RefreshWindow
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}

	return &service{
		gateway: gateway,
		store:   store,
		metrics: metrics,
		clock:   clock,
		config:  cfg,
		logger:  logger.Named("credential"),
		tracer:  otel.Tracer("gstbooks.credential"),
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*gst.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "CredentialService.Create")
	defer span.End()

	draft, err := gst.NewCredential(req.OrganizationID, req.GSTIN, req.Email, req.StateCode, req.IPAddress)
	if err != nil {
		return nil, finish(span, err)
	}

	created, err := s.gateway.CreateCredential(ctx, draft)
	if err != nil {
		s.logger.Warn("credential registration failed",
			zap.String("gstin", draft.GSTIN.String()),
			zap.Error(err))
		return nil, finish(span, err)
	}
	if created.OrganizationID == uuid.Nil {
		created.OrganizationID = draft.OrganizationID
	}
	if created.AuthStatus == "" {
		created.AuthStatus = gst.StatusPending
	}

	if err := s.store.SaveCredential(ctx, created); err != nil {
		return nil, finish(span, errors.NewInternalError("failed to save credential").WithCause(err))
	}

	span.SetAttributes(attribute.String("credential.id", created.ID.String()))
	s.logger.Info("credential registered",
		zap.String("credential_id", created.ID.String()),
		zap.String("gstin", created.GSTIN.String()))
	return created, nil
}

func (s *service) RequestOTP(ctx context.Context, credentialID uuid.UUID) (txn string, err error) {
	ctx, span := s.tracer.Start(ctx, "CredentialService.RequestOTP",
		trace.WithAttributes(attribute.String("credential.id", credentialID.String())))
	defer func() {
		s.metrics.RecordOTPRequest(outcome(err))
		finish(span, err)
		span.End()
	}()

	if _, err := s.store.GetCredential(ctx, credentialID); err != nil {
		return "", err
	}

	txn, err = s.gateway.RequestOTP(ctx, credentialID)
	if err != nil {
		s.logger.Warn("OTP request failed",
			zap.String("credential_id", credentialID.String()),
			zap.Error(err))
		return "", err
	}

	// Re-read so a concurrent authentication or OTP request is not lost.
	// The newest transaction wins.
	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return "", err
	}
	if err := cred.IssueTransaction(txn, s.clock.Now()); err != nil {
		return "", errors.NewRemoteRejection("MISSING_TRANSACTION_ID", "backend did not return a transaction", 422).WithCause(err)
	}
	if err := s.store.SaveCredential(ctx, cred); err != nil {
		return "", errors.NewInternalError("failed to save credential").WithCause(err)
	}

	s.logger.Info("OTP requested", zap.String("credential_id", credentialID.String()))
	return txn, nil
}

func (s *service) Authenticate(ctx context.Context, req AuthenticateRequest) (cred *gst.Credential, err error) {
	ctx, span := s.tracer.Start(ctx, "CredentialService.Authenticate",
		trace.WithAttributes(attribute.String("credential.id", req.CredentialID.String())))
	defer func() {
		s.metrics.RecordAuthentication(outcome(err))
		finish(span, err)
		span.End()
	}()

	otp := strings.TrimSpace(req.OTP)
	if !otpPattern.MatchString(otp) {
		return nil, errors.NewValidationError("INVALID_OTP", "OTP must be 4 to 8 digits")
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, errors.NewValidationError("MISSING_TRANSACTION_ID", "transaction ID is required")
	}

	unlock, err := s.lock(ctx, req.CredentialID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cred, err = s.store.GetCredential(ctx, req.CredentialID)
	if err != nil {
		return nil, err
	}
	if err := cred.CheckTransaction(req.TransactionID); err != nil {
		return nil, err
	}

	remote, err := s.gateway.Authenticate(ctx, req.CredentialID, otp, req.TransactionID)
	if err != nil {
		s.logger.Warn("authentication failed",
			zap.String("credential_id", req.CredentialID.String()),
			zap.Error(err))
		return nil, err
	}
	if remote == nil || remote.AuthStatus != gst.StatusAuthenticated || remote.Token == nil {
		return nil, errors.NewRemoteRejection("AUTHENTICATION_NOT_CONFIRMED", "the GST backend did not confirm authentication", 422)
	}

	fresh, err := s.store.GetCredential(ctx, req.CredentialID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if fresh.TransactionID == req.TransactionID {
		err = fresh.CompleteAuthentication(req.TransactionID, *remote.Token, now)
	} else {
		// A newer OTP was requested meanwhile; keep it pending.
		err = fresh.AcceptToken(*remote.Token, now)
	}
	if err != nil {
		return nil, err
	}
	cred = fresh
	if err := s.store.SaveCredential(ctx, cred); err != nil {
		return nil, errors.NewInternalError("failed to save credential").WithCause(err)
	}

	s.logger.Info("credential authenticated",
		zap.String("credential_id", cred.ID.String()),
		zap.Time("token_expiry", cred.Token.Expiry))
	return cred, nil
}

func (s *service) Status(ctx context.Context, credentialID uuid.UUID) (*StatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "CredentialService.Status",
		trace.WithAttributes(attribute.String("credential.id", credentialID.String())))
	defer span.End()

	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, finish(span, err)
	}

	report, err := s.gateway.AuthStatus(ctx, credentialID)
	if err != nil {
		return nil, finish(span, err)
	}

	now := s.clock.Now()
	fresh, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, finish(span, err)
	}
	if !fresh.SameRevision(cred) {
		// The record changed while the backend answered; the report describes
		// a superseded snapshot.
		s.logger.Debug("discarding status report for superseded credential",
			zap.String("credential_id", credentialID.String()))
		return &StatusResponse{Credential: fresh, Usability: fresh.Evaluate(now, s.config.RefreshWindow)}, nil
	}

	fresh.ApplyStatusReport(*report, now)
	if err := s.store.SaveCredential(ctx, fresh); err != nil {
		return nil, finish(span, errors.NewInternalError("failed to save credential").WithCause(err))
	}

	return &StatusResponse{Credential: fresh, Usability: fresh.Evaluate(now, s.config.RefreshWindow)}, nil
}

func (s *service) Usability(ctx context.Context, credentialID uuid.UUID) (*StatusResponse, error) {
	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Credential: cred, Usability: cred.Evaluate(s.clock.Now(), s.config.RefreshWindow)}, nil
}

func (s *service) Get(ctx context.Context, credentialID uuid.UUID) (*gst.Credential, error) {
	return s.store.GetCredential(ctx, credentialID)
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]*gst.Credential, error) {
	if orgID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_ORGANIZATION", "organization ID is required")
	}
	return s.store.ListCredentials(ctx, orgID)
}

func (s *service) SelectActive(ctx context.Context, orgID, credentialID uuid.UUID) error {
	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return err
	}
	if cred.OrganizationID != orgID {
		return errors.NewNotFoundError("credential")
	}
	if err := s.store.SetActive(ctx, orgID, credentialID); err != nil {
		return errors.NewInternalError("failed to select active credential").WithCause(err)
	}
	s.logger.Info("active credential selected",
		zap.String("organization_id", orgID.String()),
		zap.String("credential_id", credentialID.String()))
	return nil
}

func (s *service) Active(ctx context.Context, orgID uuid.UUID) (*gst.Credential, error) {
	activeID, err := s.store.GetActive(ctx, orgID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read active credential").WithCause(err)
	}
	if activeID != uuid.Nil {
		return s.store.GetCredential(ctx, activeID)
	}

	creds, err := s.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 1 {
		return creds[0], nil
	}
	return nil, errors.NewNotFoundError("active credential").WithDetails(map[string]interface{}{
		"credentials": len(creds),
	})
}

// lock enforces one outstanding authentication per credential.
func (s *service) lock(ctx context.Context, credentialID uuid.UUID) (func(), error) {
	key := fmt.Sprintf("credential:%s:authenticate", credentialID)
	ok, err := s.store.AcquireLock(ctx, key, s.config.LockTTL)
	if err != nil {
		return nil, errors.NewInternalError("failed to acquire credential lock").WithCause(err)
	}
	if !ok {
		return nil, errors.NewConflictError("an authentication for this credential is already in progress")
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.store.ReleaseLock(releaseCtx, key); err != nil {
			s.logger.Error("failed to release credential lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.TypeOf(err))
}

func finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

type noopMetrics struct{}

func (noopMetrics) RecordOTPRequest(string)     {}
func (noopMetrics) RecordAuthentication(string) {}
