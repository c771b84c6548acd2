package documents

import (
	"context"
	"time"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

// Service submits invoices, bills and manual journals to the accounting
// backend after checking them locally.
type Service interface {
	// Preview recomputes a draft without sending it anywhere.
	Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error)
	// Submit validates, numbers, creates and posts a document, recording a
	// payment when the payment method settles it immediately.
	Submit(ctx context.Context, doc *document.Document) (*SubmitResult, error)
}

// Gateway is the remote persistence and posting API. Numbering belongs to the
// backend so concurrent sessions never collide.
type Gateway interface {
	NextNumber(ctx context.Context, kind document.Kind) (string, error)
	CreateInvoice(ctx context.Context, doc *document.Document) (string, error)
	CreateBill(ctx context.Context, doc *document.Document) (string, error)
	CreateJournal(ctx context.Context, doc *document.Document) (string, error)
	Post(ctx context.Context, kind document.Kind, id string) error
	RecordPayment(ctx context.Context, payment Payment) error
}

// MetricsRecorder receives one outcome per submission.
type MetricsRecorder interface {
	RecordDocumentSubmission(kind, outcome string)
}

// Payment settles a submitted invoice or bill.
type Payment struct {
	DocumentKind document.Kind          `json:"documentKind"`
	DocumentID   string                 `json:"documentId"`
	Amount       values.Money           `json:"amount"`
	Method       document.PaymentMethod `json:"method"`
	Date         time.Time              `json:"date"`
	Reference    string                 `json:"reference,omitempty"`
}

type PreviewRequest struct {
	Document *document.Document
	// SupplierState and PlaceOfSupply select the CGST/SGST or IGST split.
	SupplierState string
	PlaceOfSupply string
}

type PreviewResult struct {
	Document *document.Document `json:"document"`
	Split    *tax.GSTSplit      `json:"gstSplit,omitempty"`
}

type SubmitResult struct {
	Document        *document.Document `json:"document"`
	RemoteID        string             `json:"remoteId"`
	Posted          bool               `json:"posted"`
	PaymentRecorded bool               `json:"paymentRecorded"`
	Total           values.Money       `json:"total"`
	Payment         *Payment           `json:"payment,omitempty"`
}
