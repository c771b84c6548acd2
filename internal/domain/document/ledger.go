package document

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
)

// Ledger is the editable line collection behind an invoice or bill. Every
// mutation recomputes and returns fresh totals; nothing is cached between calls.
type Ledger struct {
	kind             Kind
	base             tax.DiscountBase
	lines            []LineItem
	documentDiscount decimal.Decimal
}

// NewLedger starts a ledger seeded with the minimum number of default lines.
func NewLedger(kind Kind, base tax.DiscountBase) (*Ledger, error) {
	if kind != KindInvoice && kind != KindBill {
		return nil, errors.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("line ledger does not support %q", kind))
	}
	if base == "" {
		base = tax.DiscountOnLineTotals
	}

	l := &Ledger{kind: kind, base: base}
	for i := 0; i < kind.MinLines(); i++ {
		line := DefaultLine()
		if err := line.recompute(); err != nil {
			return nil, err
		}
		l.lines = append(l.lines, line)
	}
	return l, nil
}

func (l *Ledger) Kind() Kind { return l.kind }

func (l *Ledger) Len() int { return len(l.lines) }

// Lines returns a copy of the current lines with their derived amounts.
func (l *Ledger) Lines() []LineItem {
	out := make([]LineItem, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Ledger) DocumentDiscount() decimal.Decimal { return l.documentDiscount }

// AddLine appends a line. An invalid line is rejected and not added.
func (l *Ledger) AddLine(item LineItem) (tax.DocumentTotals, error) {
	if err := item.recompute(); err != nil {
		return tax.DocumentTotals{}, lineError(len(l.lines), err)
	}
	l.lines = append(l.lines, item)
	return l.Recompute()
}

// RemoveLine drops the line at index unless that would leave fewer lines than
// the document kind requires.
func (l *Ledger) RemoveLine(index int) (tax.DocumentTotals, error) {
	if err := l.checkIndex(index); err != nil {
		return tax.DocumentTotals{}, err
	}
	if len(l.lines)-1 < l.kind.MinLines() {
		return tax.DocumentTotals{}, errors.NewPolicyViolation(
			"MIN_LINES",
			fmt.Sprintf("%s must keep at least %d line", l.kind, l.kind.MinLines()),
		)
	}
	l.lines = append(l.lines[:index], l.lines[index+1:]...)
	return l.Recompute()
}

// UpdateLine applies patch to the line at index. The edit is all-or-nothing:
// an invalid result leaves the line untouched.
func (l *Ledger) UpdateLine(index int, patch LinePatch) (tax.DocumentTotals, error) {
	if err := l.checkIndex(index); err != nil {
		return tax.DocumentTotals{}, err
	}
	updated := patch.apply(l.lines[index])
	if err := updated.recompute(); err != nil {
		return tax.DocumentTotals{}, lineError(index, err)
	}
	l.lines[index] = updated
	return l.Recompute()
}

// SetDocumentDiscount changes the document-level discount percentage.
func (l *Ledger) SetDocumentDiscount(percent decimal.Decimal) (tax.DocumentTotals, error) {
	previous := l.documentDiscount
	l.documentDiscount = percent
	totals, err := l.Recompute()
	if err != nil {
		l.documentDiscount = previous
		return tax.DocumentTotals{}, err
	}
	return totals, nil
}

// Recompute derives every line amount and the document totals from scratch.
// Returned totals are at full precision.
func (l *Ledger) Recompute() (tax.DocumentTotals, error) {
	amounts := make([]tax.LineAmounts, len(l.lines))
	for i := range l.lines {
		if err := l.lines[i].recompute(); err != nil {
			return tax.DocumentTotals{}, lineError(i, err)
		}
		amounts[i] = l.lines[i].amounts
	}
	return tax.ComputeDocumentTotals(amounts, l.documentDiscount, l.base)
}

// Build snapshots the ledger into a Document for submission. The snapshot is
// validated, so an incomplete draft never leaves the client.
func (l *Ledger) Build(h Header) (*Document, error) {
	doc := &Document{
		ID:                      uuid.New(),
		Kind:                    l.kind,
		Header:                  h,
		Lines:                   l.Lines(),
		DocumentDiscountPercent: l.documentDiscount,
		DiscountBase:            l.base,
	}
	if doc.PaymentMethod == "" {
		doc.PaymentMethod = PaymentCredit
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (l *Ledger) checkIndex(index int) error {
	if index < 0 || index >= len(l.lines) {
		return errors.NewValidationError("INVALID_LINE_INDEX", fmt.Sprintf("line index %d out of range", index))
	}
	return nil
}
