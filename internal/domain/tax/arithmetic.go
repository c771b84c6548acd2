// Package tax computes per-line and per-document amounts for invoices, bills
// and journals. All figures are kept at full decimal precision; callers round
// with Round2 only when presenting or submitting.
package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

// PresentationPlaces is the number of decimal places used at presentation and
// submission boundaries.
const PresentationPlaces int32 = 2

// LineAmounts holds the derived figures for one line item.
type LineAmounts struct {
	TaxableAmount decimal.Decimal `json:"taxableAmount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
}

// Rounded returns a copy rounded to PresentationPlaces.
func (a LineAmounts) Rounded() LineAmounts {
	return LineAmounts{
		TaxableAmount: Round2(a.TaxableAmount),
		TaxAmount:     Round2(a.TaxAmount),
		LineTotal:     Round2(a.LineTotal),
	}
}

// DiscountBase selects which figure the document-level discount applies to.
type DiscountBase string

const (
	// DiscountOnLineTotals applies the document discount to the tax-inclusive
	// subtotal. This is the established behaviour of the books.
	DiscountOnLineTotals DiscountBase = "line_totals"
	// DiscountOnTaxable applies the document discount to the sum of taxable amounts.
	DiscountOnTaxable DiscountBase = "taxable"
)

// ParseDiscountBase accepts the configuration spelling of a DiscountBase.
func ParseDiscountBase(s string) (DiscountBase, error) {
	switch DiscountBase(strings.ToLower(strings.TrimSpace(s))) {
	case DiscountOnLineTotals, "":
		return DiscountOnLineTotals, nil
	case DiscountOnTaxable:
		return DiscountOnTaxable, nil
	default:
		return "", errors.NewValidationError("INVALID_DISCOUNT_BASE", fmt.Sprintf("unknown discount base %q", s))
	}
}

// DocumentTotals holds the derived figures for a whole document.
type DocumentTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxableAmount  decimal.Decimal `json:"taxableAmount"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
}

// Rounded returns a copy rounded to PresentationPlaces. Each figure is rounded
// independently from its full-precision value.
func (t DocumentTotals) Rounded() DocumentTotals {
	return DocumentTotals{
		Subtotal:       Round2(t.Subtotal),
		TaxableAmount:  Round2(t.TaxableAmount),
		TaxAmount:      Round2(t.TaxAmount),
		DiscountAmount: Round2(t.DiscountAmount),
		Total:          Round2(t.Total),
	}
}

// Equal compares all figures exactly.
func (t DocumentTotals) Equal(other DocumentTotals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.TaxableAmount.Equal(other.TaxableAmount) &&
		t.TaxAmount.Equal(other.TaxAmount) &&
		t.DiscountAmount.Equal(other.DiscountAmount) &&
		t.Total.Equal(other.Total)
}

// ValidateLineInputs checks the four editable line inputs.
func ValidateLineInputs(quantity, unitPrice, discountPercent, taxRatePercent decimal.Decimal) error {
	if !quantity.IsPositive() {
		return errors.NewValidationError("INVALID_QUANTITY", "quantity must be greater than zero").
			WithDetails(map[string]interface{}{"field": "quantity", "value": quantity.String()})
	}
	if unitPrice.IsNegative() {
		return errors.NewValidationError("INVALID_UNIT_PRICE", "unit price cannot be negative").
			WithDetails(map[string]interface{}{"field": "unitPrice", "value": unitPrice.String()})
	}
	if _, err := values.NewPercent(discountPercent, "discountPercent"); err != nil {
		return err
	}
	if _, err := values.NewPercent(taxRatePercent, "taxRatePercent"); err != nil {
		return err
	}
	return nil
}

// ComputeLine derives taxable amount, tax and line total. Tax is charged on
// the post-discount taxable amount.
func ComputeLine(quantity, unitPrice, discountPercent, taxRatePercent decimal.Decimal) (LineAmounts, error) {
	if err := ValidateLineInputs(quantity, unitPrice, discountPercent, taxRatePercent); err != nil {
		return LineAmounts{}, err
	}

	gross := quantity.Mul(unitPrice)
	taxable := gross.Mul(decimal.NewFromInt(1).Sub(fraction(discountPercent)))
	taxAmount := taxable.Mul(fraction(taxRatePercent))

	return LineAmounts{
		TaxableAmount: taxable,
		TaxAmount:     taxAmount,
		LineTotal:     taxable.Add(taxAmount),
	}, nil
}

// ComputeDocumentTotals sums line amounts and applies the document discount.
func ComputeDocumentTotals(lines []LineAmounts, documentDiscountPercent decimal.Decimal, base DiscountBase) (DocumentTotals, error) {
	if _, err := values.NewPercent(documentDiscountPercent, "documentDiscountPercent"); err != nil {
		return DocumentTotals{}, err
	}

	var totals DocumentTotals
	for _, l := range lines {
		totals.Subtotal = totals.Subtotal.Add(l.LineTotal)
		totals.TaxableAmount = totals.TaxableAmount.Add(l.TaxableAmount)
		totals.TaxAmount = totals.TaxAmount.Add(l.TaxAmount)
	}

	discountBase := totals.Subtotal
	if base == DiscountOnTaxable {
		discountBase = totals.TaxableAmount
	}
	totals.DiscountAmount = discountBase.Mul(fraction(documentDiscountPercent))
	totals.Total = totals.Subtotal.Sub(totals.DiscountAmount)

	return totals, nil
}

// Round2 rounds half away from zero to PresentationPlaces.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(PresentationPlaces)
}

// fraction is exact: shifting the exponent avoids division rounding.
func fraction(percent decimal.Decimal) decimal.Decimal {
	return percent.Shift(-2)
}
