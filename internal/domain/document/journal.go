package document

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

// Side is the posting side of a journal line.
type Side string

const (
	SideNone   Side = ""
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// JournalLine posts an amount to one account on exactly one side.
type JournalLine struct {
	AccountRef  string          `json:"accountRef"`
	Description string          `json:"description,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// Side reports which column carries the amount. A blank line has no side.
func (j JournalLine) Side() Side {
	switch {
	case j.Debit.IsPositive():
		return SideDebit
	case j.Credit.IsPositive():
		return SideCredit
	default:
		return SideNone
	}
}

func (j JournalLine) validateAmounts() error {
	if j.Debit.IsNegative() || j.Credit.IsNegative() {
		return errors.NewValidationError("INVALID_JOURNAL_AMOUNT", "journal amounts cannot be negative")
	}
	if j.Debit.IsPositive() && j.Credit.IsPositive() {
		return errors.NewValidationError("INVALID_JOURNAL_AMOUNT", "a journal line cannot carry both a debit and a credit")
	}
	return nil
}

func (j JournalLine) validateForSubmission() error {
	if strings.TrimSpace(j.AccountRef) == "" {
		return errors.NewValidationError("MISSING_ACCOUNT", "account is required")
	}
	if err := j.validateAmounts(); err != nil {
		return err
	}
	if j.Side() == SideNone {
		return errors.NewValidationError("MISSING_AMOUNT", "a debit or a credit amount is required")
	}
	return nil
}

// JournalPatch edits the descriptive fields of a journal line. Amounts go
// through SetDebit and SetCredit so the one-side rule is kept.
type JournalPatch struct {
	AccountRef  *string `json:"accountRef,omitempty"`
	Description *string `json:"description,omitempty"`
}

// JournalTotals sums both columns of a journal.
type JournalTotals struct {
	TotalDebits  decimal.Decimal `json:"totalDebits"`
	TotalCredits decimal.Decimal `json:"totalCredits"`
}

// IsBalanced is true when the columns agree and something was posted.
func (t JournalTotals) IsBalanced() bool {
	return t.TotalDebits.Equal(t.TotalCredits) && t.TotalDebits.IsPositive()
}

// Difference is debits minus credits.
func (t JournalTotals) Difference() decimal.Decimal {
	return t.TotalDebits.Sub(t.TotalCredits)
}

func sumJournal(lines []JournalLine) JournalTotals {
	totals := JournalTotals{TotalDebits: decimal.Zero, TotalCredits: decimal.Zero}
	for _, l := range lines {
		totals.TotalDebits = totals.TotalDebits.Add(l.Debit)
		totals.TotalCredits = totals.TotalCredits.Add(l.Credit)
	}
	return totals
}

// JournalLedger is the editable line collection behind a manual journal.
type JournalLedger struct {
	lines []JournalLine
}

// NewJournalLedger starts with the two blank lines every journal needs.
func NewJournalLedger() *JournalLedger {
	l := &JournalLedger{}
	for i := 0; i < KindJournal.MinLines(); i++ {
		l.lines = append(l.lines, JournalLine{Debit: decimal.Zero, Credit: decimal.Zero})
	}
	return l
}

func (l *JournalLedger) Len() int { return len(l.lines) }

func (l *JournalLedger) Lines() []JournalLine {
	out := make([]JournalLine, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *JournalLedger) AddLine(line JournalLine) (JournalTotals, error) {
	if err := line.validateAmounts(); err != nil {
		return JournalTotals{}, lineError(len(l.lines), err)
	}
	l.lines = append(l.lines, line)
	return l.Totals(), nil
}

// RemoveLine drops a line unless the journal would fall below two lines.
func (l *JournalLedger) RemoveLine(index int) (JournalTotals, error) {
	if err := l.checkIndex(index); err != nil {
		return JournalTotals{}, err
	}
	if len(l.lines)-1 < KindJournal.MinLines() {
		return JournalTotals{}, errors.NewPolicyViolation(
			"MIN_LINES",
			fmt.Sprintf("journal must keep at least %d lines", KindJournal.MinLines()),
		)
	}
	l.lines = append(l.lines[:index], l.lines[index+1:]...)
	return l.Totals(), nil
}

// SetDebit puts amount in the debit column and clears the credit.
func (l *JournalLedger) SetDebit(index int, amount decimal.Decimal) (JournalTotals, error) {
	return l.setAmount(index, amount, SideDebit)
}

// SetCredit puts amount in the credit column and clears the debit.
func (l *JournalLedger) SetCredit(index int, amount decimal.Decimal) (JournalTotals, error) {
	return l.setAmount(index, amount, SideCredit)
}

func (l *JournalLedger) setAmount(index int, amount decimal.Decimal, side Side) (JournalTotals, error) {
	if err := l.checkIndex(index); err != nil {
		return JournalTotals{}, err
	}
	if amount.IsNegative() {
		return JournalTotals{}, lineError(index, errors.NewValidationError("INVALID_JOURNAL_AMOUNT", "journal amounts cannot be negative"))
	}
	line := l.lines[index]
	if side == SideDebit {
		line.Debit, line.Credit = amount, decimal.Zero
	} else {
		line.Debit, line.Credit = decimal.Zero, amount
	}
	l.lines[index] = line
	return l.Totals(), nil
}

func (l *JournalLedger) UpdateLine(index int, patch JournalPatch) (JournalTotals, error) {
	if err := l.checkIndex(index); err != nil {
		return JournalTotals{}, err
	}
	if patch.AccountRef != nil {
		l.lines[index].AccountRef = *patch.AccountRef
	}
	if patch.Description != nil {
		l.lines[index].Description = *patch.Description
	}
	return l.Totals(), nil
}

func (l *JournalLedger) Totals() JournalTotals {
	return sumJournal(l.lines)
}

func (l *JournalLedger) IsBalanced() bool {
	return l.Totals().IsBalanced()
}

// Build snapshots the journal for submission. Unbalanced journals are refused.
func (l *JournalLedger) Build(h Header) (*Document, error) {
	doc := &Document{
		ID:           uuid.New(),
		Kind:         KindJournal,
		Header:       h,
		JournalLines: l.Lines(),
	}
	if doc.PaymentMethod == "" {
		doc.PaymentMethod = PaymentCredit
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (l *JournalLedger) checkIndex(index int) error {
	if index < 0 || index >= len(l.lines) {
		return errors.NewValidationError("INVALID_LINE_INDEX", fmt.Sprintf("line index %d out of range", index))
	}
	return nil
}
