package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
)

// Kind identifies the document family member.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindBill    Kind = "bill"
	KindJournal Kind = "journal"
)

// MinLines is the smallest number of lines a document of this kind may hold.
func (k Kind) MinLines() int {
	if k == KindJournal {
		return 2
	}
	return 1
}

func (k Kind) String() string {
	return string(k)
}

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindInvoice:
		return KindInvoice, nil
	case KindBill:
		return KindBill, nil
	case KindJournal:
		return KindJournal, nil
	default:
		return "", errors.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", s))
	}
}

// PaymentMethod says how a document is settled. Anything other than
// PaymentCredit is settled immediately and gets a payment recorded on submission.
type PaymentMethod string

const (
	PaymentCredit       PaymentMethod = "credit"
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentUPI          PaymentMethod = "upi"
	PaymentCheque       PaymentMethod = "cheque"
	PaymentCard         PaymentMethod = "card"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PaymentCredit, nil
	case PaymentCredit, PaymentCash, PaymentBankTransfer, PaymentUPI, PaymentCheque, PaymentCard:
		return m, nil
	default:
		return "", errors.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("unknown payment method %q", s))
	}
}

// SettlesImmediately reports whether submission should also record a payment.
func (m PaymentMethod) SettlesImmediately() bool {
	return m != PaymentCredit && m != ""
}

// Header carries the document fields that are not derived from lines.
type Header struct {
	Number          string        `json:"number,omitempty"`
	CounterpartyRef string        `json:"counterpartyRef,omitempty"`
	Date            time.Time     `json:"date"`
	DueDate         *time.Time    `json:"dueDate,omitempty"`
	Reference       string        `json:"reference,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
}

// Document is a submission snapshot of an invoice, bill or manual journal.
// Totals are derived and always recomputed from the lines.
type Document struct {
	ID   uuid.UUID `json:"id"`
	Kind Kind      `json:"kind"`
	Header

	Lines                   []LineItem       `json:"lines,omitempty"`
	JournalLines            []JournalLine    `json:"journalLines,omitempty"`
	DocumentDiscountPercent decimal.Decimal  `json:"documentDiscountPercent"`
	DiscountBase            tax.DiscountBase `json:"discountBase,omitempty"`

	Totals        tax.DocumentTotals `json:"totals"`
	JournalTotals *JournalTotals     `json:"journalTotals,omitempty"`
}

// Recompute re-derives every line amount and the document totals from the
// editable inputs, overwriting whatever was stored.
func (d *Document) Recompute() error {
	if d.Kind == KindJournal {
		totals := sumJournal(d.JournalLines)
		d.JournalTotals = &totals
		d.Totals = tax.DocumentTotals{
			Subtotal:      totals.TotalDebits,
			TaxableAmount: totals.TotalDebits,
			Total:         totals.TotalDebits,
		}
		return nil
	}

	amounts := make([]tax.LineAmounts, len(d.Lines))
	for i := range d.Lines {
		if err := d.Lines[i].recompute(); err != nil {
			return lineError(i, err)
		}
		amounts[i] = d.Lines[i].amounts
	}

	totals, err := tax.ComputeDocumentTotals(amounts, d.DocumentDiscountPercent, d.DiscountBase)
	if err != nil {
		return err
	}
	d.Totals = totals.Rounded()
	return nil
}

// Validate runs every local check that must pass before a document is sent
// anywhere. It recomputes totals as a side effect.
func (d *Document) Validate() error {
	switch d.Kind {
	case KindInvoice, KindBill:
		if strings.TrimSpace(d.CounterpartyRef) == "" {
			return errors.NewValidationError("MISSING_COUNTERPARTY", "counterparty is required")
		}
		if len(d.Lines) < d.Kind.MinLines() {
			return errors.NewValidationError("TOO_FEW_LINES", fmt.Sprintf("%s needs at least %d line", d.Kind, d.Kind.MinLines()))
		}
		for i, l := range d.Lines {
			if strings.TrimSpace(l.ItemRef) == "" {
				return lineError(i, errors.NewValidationError("MISSING_ITEM", "item is required"))
			}
		}
	case KindJournal:
		if len(d.JournalLines) < d.Kind.MinLines() {
			return errors.NewValidationError("TOO_FEW_LINES", fmt.Sprintf("journal needs at least %d lines", d.Kind.MinLines()))
		}
		for i, l := range d.JournalLines {
			if err := l.validateForSubmission(); err != nil {
				return lineError(i, err)
			}
		}
	default:
		return errors.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", d.Kind))
	}

	if d.Date.IsZero() {
		return errors.NewValidationError("MISSING_DATE", "document date is required")
	}
	if d.DueDate != nil && d.DueDate.Before(d.Date) {
		return errors.NewValidationError("INVALID_DUE_DATE", "due date cannot be before the document date")
	}
	if _, err := ParsePaymentMethod(string(d.PaymentMethod)); err != nil {
		return err
	}

	if err := d.Recompute(); err != nil {
		return err
	}

	if d.Kind == KindJournal && !d.JournalTotals.IsBalanced() {
		return errors.NewValidationError("UNBALANCED_JOURNAL", "total debits must equal total credits").
			WithDetails(map[string]interface{}{
				"totalDebits":  d.JournalTotals.TotalDebits.StringFixed(2),
				"totalCredits": d.JournalTotals.TotalCredits.StringFixed(2),
			})
	}
	return nil
}

func lineError(index int, err error) error {
	if appErr, ok := err.(*errors.AppError); ok {
		details := map[string]interface{}{"line": index}
		for k, v := range appErr.Details {
			details[k] = v
		}
		return &errors.AppError{
			Type:       appErr.Type,
			Code:       appErr.Code,
			Message:    fmt.Sprintf("line %d: %s", index+1, appErr.Message),
			Details:    details,
			Cause:      appErr.Cause,
			Retryable:  appErr.Retryable,
			StatusCode: appErr.StatusCode,
		}
	}
	return fmt.Errorf("line %d: %w", index+1, err)
}
