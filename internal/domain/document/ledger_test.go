package document

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func exampleLine() LineItem {
	return LineItem{
		ItemRef:         "ITEM-1",
		Quantity:        dec("2"),
		UnitPrice:       dec("500"),
		DiscountPercent: dec("10"),
		TaxRatePercent:  dec("18"),
	}
}

func TestNewLedger(t *testing.T) {
	t.Run("invoice starts with one default line", func(t *testing.T) {
		l, err := NewLedger(KindInvoice, "")
		require.NoError(t, err)
		assert.Equal(t, 1, l.Len())

		line := l.Lines()[0]
		assert.True(t, line.Quantity.Equal(decimal.NewFromInt(1)))
		assert.True(t, line.UnitPrice.IsZero())
		assert.True(t, line.Amounts().LineTotal.IsZero())
	})

	t.Run("journal kind is rejected", func(t *testing.T) {
		_, err := NewLedger(KindJournal, tax.DiscountOnLineTotals)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})
}

func TestLedger_InvoiceExample(t *testing.T) {
	l, err := NewLedger(KindInvoice, tax.DiscountOnLineTotals)
	require.NoError(t, err)

	line := exampleLine()
	totals, err := l.UpdateLine(0, LinePatch{
		ItemRef:         &line.ItemRef,
		Quantity:        &line.Quantity,
		UnitPrice:       &line.UnitPrice,
		DiscountPercent: &line.DiscountPercent,
		TaxRatePercent:  &line.TaxRatePercent,
	})
	require.NoError(t, err)

	amounts := l.Lines()[0].Amounts()
	assert.True(t, amounts.TaxableAmount.Equal(dec("900")))
	assert.True(t, amounts.TaxAmount.Equal(dec("162")))
	assert.True(t, amounts.LineTotal.Equal(dec("1062")))

	assert.True(t, totals.Subtotal.Equal(dec("1062")))
	assert.True(t, totals.Total.Equal(dec("1062")))

	totals, err = l.SetDocumentDiscount(dec("10"))
	require.NoError(t, err)
	assert.True(t, totals.DiscountAmount.Equal(dec("106.2")))
	assert.True(t, totals.Total.Equal(dec("955.8")))
}

func TestLedger_UpdateLineIsAtomic(t *testing.T) {
	l, err := NewLedger(KindBill, "")
	require.NoError(t, err)
	_, err = l.UpdateLine(0, LinePatch{ItemRef: ptr("A"), UnitPrice: ptr(dec("10"))})
	require.NoError(t, err)

	_, err = l.UpdateLine(0, LinePatch{UnitPrice: ptr(dec("99")), Quantity: ptr(dec("0"))})
	require.Error(t, err)
	assert.Equal(t, "INVALID_QUANTITY", errors.Code(err))

	line := l.Lines()[0]
	assert.True(t, line.UnitPrice.Equal(dec("10")))
	assert.True(t, line.Quantity.Equal(dec("1")))
}

func TestLedger_AddAndRemove(t *testing.T) {
	l, err := NewLedger(KindInvoice, "")
	require.NoError(t, err)

	t.Run("removing the only line is rejected", func(t *testing.T) {
		_, err := l.RemoveLine(0)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypePolicy))
		assert.Equal(t, 1, l.Len())
	})

	t.Run("invalid line is not added", func(t *testing.T) {
		bad := exampleLine()
		bad.TaxRatePercent = dec("150")
		_, err := l.AddLine(bad)
		require.Error(t, err)
		assert.Equal(t, 1, l.Len())
	})

	t.Run("added line contributes to totals and removal recomputes", func(t *testing.T) {
		totals, err := l.AddLine(exampleLine())
		require.NoError(t, err)
		assert.Equal(t, 2, l.Len())
		assert.True(t, totals.Total.Equal(dec("1062")))

		totals, err = l.RemoveLine(1)
		require.NoError(t, err)
		assert.Equal(t, 1, l.Len())
		assert.True(t, totals.Total.IsZero())
	})

	t.Run("out of range index", func(t *testing.T) {
		_, err := l.RemoveLine(5)
		assert.Equal(t, "INVALID_LINE_INDEX", errors.Code(err))
	})
}

func TestLedger_RecomputeIsIdempotent(t *testing.T) {
	l, err := NewLedger(KindInvoice, "")
	require.NoError(t, err)
	_, err = l.AddLine(exampleLine())
	require.NoError(t, err)
	_, err = l.SetDocumentDiscount(dec("7.5"))
	require.NoError(t, err)

	first, err := l.Recompute()
	require.NoError(t, err)
	second, err := l.Recompute()
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestLedger_Build(t *testing.T) {
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	l, err := NewLedger(KindInvoice, "")
	require.NoError(t, err)

	t.Run("blank item is refused", func(t *testing.T) {
		_, err := l.Build(Header{CounterpartyRef: "C-1", Date: date})
		require.Error(t, err)
		assert.Equal(t, "MISSING_ITEM", errors.Code(err))
	})

	_, err = l.UpdateLine(0, LinePatch{ItemRef: ptr("ITEM-1"), UnitPrice: ptr(dec("100")), TaxRatePercent: ptr(dec("5"))})
	require.NoError(t, err)

	t.Run("missing counterparty", func(t *testing.T) {
		_, err := l.Build(Header{Date: date})
		assert.Equal(t, "MISSING_COUNTERPARTY", errors.Code(err))
	})

	t.Run("due date before document date", func(t *testing.T) {
		due := date.AddDate(0, 0, -1)
		_, err := l.Build(Header{CounterpartyRef: "C-1", Date: date, DueDate: &due})
		assert.Equal(t, "INVALID_DUE_DATE", errors.Code(err))
	})

	t.Run("valid snapshot has rounded totals", func(t *testing.T) {
		doc, err := l.Build(Header{CounterpartyRef: "C-1", Date: date})
		require.NoError(t, err)
		assert.Equal(t, KindInvoice, doc.Kind)
		assert.Equal(t, PaymentCredit, doc.PaymentMethod)
		assert.Equal(t, "105.00", doc.Totals.Total.StringFixed(2))
	})
}

func TestLineItem_JSON(t *testing.T) {
	line := exampleLine()
	require.NoError(t, line.recompute())

	data, err := json.Marshal(line)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ITEM-1", raw["itemRef"])
	assert.Equal(t, "1062", raw["lineTotal"])

	// Derived amounts in the payload are ignored.
	tampered := []byte(`{"itemRef":"X","quantity":"1","unitPrice":"10","discountPercent":"0","taxRatePercent":"0","lineTotal":"999"}`)
	var decoded LineItem
	require.NoError(t, json.Unmarshal(tampered, &decoded))
	assert.True(t, decoded.Amounts().LineTotal.IsZero())
	require.NoError(t, decoded.recompute())
	assert.True(t, decoded.Amounts().LineTotal.Equal(dec("10")))
}

func TestDocument_RecomputeReportsInvalidDecodedLine(t *testing.T) {
	var doc Document
	payload := []byte(`{"kind":"invoice","counterpartyRef":"C-1","lines":[{"itemRef":"X","quantity":"0","unitPrice":"10","discountPercent":"0","taxRatePercent":"0","lineTotal":"10"}]}`)
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.True(t, doc.Lines[0].Amounts().LineTotal.IsZero())

	err := doc.Recompute()
	require.Error(t, err)
	assert.Equal(t, "INVALID_QUANTITY", errors.Code(err))
}
