package documents

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

type service struct {
	gateway  Gateway
	metrics  MetricsRecorder
	currency string
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures the service.
type Option func(*service)

// WithCurrency sets the ISO 4217 currency payments are recorded in.
func WithCurrency(code string) Option {
	return func(s *service) {
		if code != "" {
			s.currency = code
		}
	}
}

// NewService creates a new document submission service
func NewService(gateway Gateway, metrics MetricsRecorder, logger *zap.Logger, opts ...Option) Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &service{
		gateway:  gateway,
		metrics:  metrics,
		currency: values.INR,
		logger:   logger.Named("documents"),
		tracer:   otel.Tracer("gstbooks.documents"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	if req.Document == nil {
		return nil, errors.NewValidationError("MISSING_DOCUMENT", "document is required")
	}
	doc := *req.Document
	doc.Lines = append([]document.LineItem(nil), req.Document.Lines...)
	doc.JournalLines = append([]document.JournalLine(nil), req.Document.JournalLines...)
	if err := doc.Recompute(); err != nil {
		return nil, err
	}

	result := &PreviewResult{Document: &doc}
	if doc.Kind != document.KindJournal && req.SupplierState != "" {
		split := tax.SplitGST(doc.Totals.TaxAmount, req.SupplierState, req.PlaceOfSupply)
		result.Split = &split
	}
	return result, nil
}

func (s *service) Submit(ctx context.Context, doc *document.Document) (result *SubmitResult, err error) {
	if doc == nil {
		return nil, errors.NewValidationError("MISSING_DOCUMENT", "document is required")
	}

	ctx, span := s.tracer.Start(ctx, "DocumentService.Submit",
		trace.WithAttributes(attribute.String("document.kind", doc.Kind.String())))
	defer func() {
		s.metrics.RecordDocumentSubmission(doc.Kind.String(), outcome(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// Totals are always recomputed here so a stale draft is never submitted.
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	total, err := values.NewMoney(doc.Totals.Total, s.currency)
	if err != nil {
		return nil, err
	}
	total = total.RoundToPaise()

	if doc.Number == "" {
		number, err := s.gateway.NextNumber(ctx, doc.Kind)
		if err != nil {
			return nil, atStage(err, "number", "")
		}
		doc.Number = number
	}

	remoteID, err := s.create(ctx, doc)
	if err != nil {
		return nil, atStage(err, "create", "")
	}
	result = &SubmitResult{Document: doc, RemoteID: remoteID, Total: total}

	if err := s.gateway.Post(ctx, doc.Kind, remoteID); err != nil {
		s.logger.Warn("document created but not posted",
			zap.String("kind", doc.Kind.String()),
			zap.String("remote_id", remoteID),
			zap.Error(err))
		return nil, atStage(err, "post", remoteID)
	}
	result.Posted = true

	if doc.Kind != document.KindJournal && doc.PaymentMethod.SettlesImmediately() {
		payment := Payment{
			DocumentKind: doc.Kind,
			DocumentID:   remoteID,
			Amount:       total,
			Method:       doc.PaymentMethod,
			Date:         doc.Date,
			Reference:    doc.Reference,
		}
		if err := s.gateway.RecordPayment(ctx, payment); err != nil {
			s.logger.Warn("document posted but payment not recorded",
				zap.String("remote_id", remoteID),
				zap.Error(err))
			return nil, atStage(err, "payment", remoteID)
		}
		result.PaymentRecorded = true
		result.Payment = &payment
	}

	s.logger.Info("document submitted",
		zap.String("kind", doc.Kind.String()),
		zap.String("number", doc.Number),
		zap.String("remote_id", remoteID),
		zap.String("total", total.StringWithCode()))
	return result, nil
}

func (s *service) create(ctx context.Context, doc *document.Document) (string, error) {
	switch doc.Kind {
	case document.KindInvoice:
		return s.gateway.CreateInvoice(ctx, doc)
	case document.KindBill:
		return s.gateway.CreateBill(ctx, doc)
	case document.KindJournal:
		return s.gateway.CreateJournal(ctx, doc)
	default:
		return "", errors.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", doc.Kind))
	}
}

// atStage annotates a remote failure with the submission step that failed and
// the remote document already created, if any.
func atStage(err error, stage, remoteID string) error {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		return errors.NewTransientFailure(fmt.Sprintf("document %s", stage), err)
	}
	details := map[string]interface{}{"stage": stage}
	for k, v := range appErr.Details {
		details[k] = v
	}
	if remoteID != "" {
		details["remoteId"] = remoteID
	}
	annotated := *appErr
	annotated.Details = details
	return &annotated
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.TypeOf(err))
}

type noopMetrics struct{}

func (noopMetrics) RecordDocumentSubmission(string, string) {}
