package document

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/tax"
)

// LineItem is one priced line of an invoice or bill. Only the editable inputs
// are exported; the derived amounts are recomputed by the ledger and read
// through Amounts.
type LineItem struct {
	ItemRef         string          `json:"itemRef"`
	Description     string          `json:"description,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	TaxRatePercent  decimal.Decimal `json:"taxRatePercent"`
	HSNCode         string          `json:"hsnCode,omitempty"`

	amounts tax.LineAmounts
}

// DefaultLine is the blank line added by the editor: one unit at zero price.
func DefaultLine() LineItem {
	return LineItem{
		Quantity:        decimal.NewFromInt(1),
		UnitPrice:       decimal.Zero,
		DiscountPercent: decimal.Zero,
		TaxRatePercent:  decimal.Zero,
	}
}

// Amounts returns the derived figures at full precision.
func (l LineItem) Amounts() tax.LineAmounts {
	return l.amounts
}

func (l *LineItem) recompute() error {
	amounts, err := tax.ComputeLine(l.Quantity, l.UnitPrice, l.DiscountPercent, l.TaxRatePercent)
	if err != nil {
		return err
	}
	l.amounts = amounts
	return nil
}

// MarshalJSON emits the inputs plus the derived amounts rounded for presentation.
func (l LineItem) MarshalJSON() ([]byte, error) {
	type inputs LineItem
	rounded := l.amounts.Rounded()
	return json.Marshal(struct {
		inputs
		TaxableAmount decimal.Decimal `json:"taxableAmount"`
		TaxAmount     decimal.Decimal `json:"taxAmount"`
		LineTotal     decimal.Decimal `json:"lineTotal"`
	}{
		inputs:        inputs(l),
		TaxableAmount: rounded.TaxableAmount,
		TaxAmount:     rounded.TaxAmount,
		LineTotal:     rounded.LineTotal,
	})
}

// UnmarshalJSON reads only the editable inputs. Derived amounts in the payload
// are dropped; they stay zero until the owning document or ledger recomputes.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	type inputs LineItem
	var in inputs
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*l = LineItem(in)
	return nil
}

// LinePatch is a partial edit; nil fields are left unchanged.
type LinePatch struct {
	ItemRef         *string          `json:"itemRef,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice       *decimal.Decimal `json:"unitPrice,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discountPercent,omitempty"`
	TaxRatePercent  *decimal.Decimal `json:"taxRatePercent,omitempty"`
	HSNCode         *string          `json:"hsnCode,omitempty"`
}

func (p LinePatch) apply(l LineItem) LineItem {
	if p.ItemRef != nil {
		l.ItemRef = *p.ItemRef
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		l.UnitPrice = *p.UnitPrice
	}
	if p.DiscountPercent != nil {
		l.DiscountPercent = *p.DiscountPercent
	}
	if p.TaxRatePercent != nil {
		l.TaxRatePercent = *p.TaxRatePercent
	}
	if p.HSNCode != nil {
		l.HSNCode = *p.HSNCode
	}
	return l
}
