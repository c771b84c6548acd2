package documents_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/values"
	"github.com/davidleathers/gstbooks/internal/service/documents"
	"github.com/davidleathers/gstbooks/internal/testutil/mocks"
)

var docDate = time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)

func invoice(method document.PaymentMethod) *document.Document {
	return &document.Document{
		Kind: document.KindInvoice,
		Header: document.Header{
			CounterpartyRef: "CUST-9",
			Date:            docDate,
			PaymentMethod:   method,
		},
		Lines: []document.LineItem{{
			ItemRef:         "SKU-1",
			Quantity:        decimal.NewFromInt(2),
			UnitPrice:       decimal.NewFromInt(500),
			DiscountPercent: decimal.NewFromInt(10),
			TaxRatePercent:  decimal.NewFromInt(18),
		}},
	}
}

func journal(debit, credit string) *document.Document {
	return &document.Document{
		Kind:   document.KindJournal,
		Header: document.Header{Date: docDate, PaymentMethod: document.PaymentCredit},
		JournalLines: []document.JournalLine{
			{AccountRef: "rent", Debit: decimal.RequireFromString(debit)},
			{AccountRef: "bank", Credit: decimal.RequireFromString(credit)},
		},
	}
}

type recordingMetrics struct {
	calls [][2]string
}

func (r *recordingMetrics) RecordDocumentSubmission(kind, outcome string) {
	r.calls = append(r.calls, [2]string{kind, outcome})
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		doc        *document.Document
		setupMocks func(gw *mocks.DocumentGateway)
		validate   func(t *testing.T, gw *mocks.DocumentGateway, res *documents.SubmitResult, err error)
	}{
		{
			name: "credit invoice is numbered, created and posted",
			doc:  invoice(document.PaymentCredit),
			setupMocks: func(gw *mocks.DocumentGateway) {
				gw.On("NextNumber", mock.Anything, document.KindInvoice).Return("INV-0042", nil)
				gw.On("CreateInvoice", mock.Anything, mock.AnythingOfType("*document.Document")).Return("r-1", nil)
				gw.On("Post", mock.Anything, document.KindInvoice, "r-1").Return(nil)
			},
			validate: func(t *testing.T, gw *mocks.DocumentGateway, res *documents.SubmitResult, err error) {
				require.NoError(t, err)
				assert.Equal(t, "INV-0042", res.Document.Number)
				assert.Equal(t, "1062.00", res.Document.Totals.Total.StringFixed(2))
				assert.True(t, res.Posted)
				assert.False(t, res.PaymentRecorded)
				gw.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything)
			},
		},
		{
			name: "cash invoice records a payment for the total",
			doc:  invoice(document.PaymentCash),
			setupMocks: func(gw *mocks.DocumentGateway) {
				gw.On("NextNumber", mock.Anything, document.KindInvoice).Return("INV-0043", nil)
				gw.On("CreateInvoice", mock.Anything, mock.Anything).Return("r-2", nil)
				gw.On("Post", mock.Anything, document.KindInvoice, "r-2").Return(nil)
				gw.On("RecordPayment", mock.Anything, mock.MatchedBy(func(p documents.Payment) bool {
					return p.DocumentID == "r-2" && p.Amount.Amount().Equal(decimal.NewFromInt(1062)) && p.Amount.Currency() == values.INR && p.Method == document.PaymentCash
				})).Return(nil)
			},
			validate: func(t *testing.T, gw *mocks.DocumentGateway, res *documents.SubmitResult, err error) {
				require.NoError(t, err)
				assert.True(t, res.PaymentRecorded)
				require.NotNil(t, res.Payment)
				assert.Equal(t, "1062.00 INR", res.Payment.Amount.StringWithCode())
				assert.Equal(t, "1062.00 INR", res.Total.StringWithCode())
				gw.AssertExpectations(t)
			},
		},
		{
			name: "unbalanced journal never reaches the backend",
			doc:  journal("100", "60"),
			setupMocks: func(gw *mocks.DocumentGateway) {
			},
			validate: func(t *testing.T, gw *mocks.DocumentGateway, res *documents.SubmitResult, err error) {
				assert.Equal(t, "UNBALANCED_JOURNAL", errors.Code(err))
				gw.AssertNotCalled(t, "NextNumber", mock.Anything, mock.Anything)
				gw.AssertNotCalled(t, "CreateJournal", mock.Anything, mock.Anything)
			},
		},
		{
			name: "balanced journal with its own number",
			doc: func() *document.Document {
				d := journal("100", "100")
				d.Number = "JV-7"
				return d
			}(),
			setupMocks: func(gw *mocks.DocumentGateway) {
				gw.On("CreateJournal", mock.Anything, mock.Anything).Return("j-1", nil)
				gw.On("Post", mock.Anything, document.KindJournal, "j-1").Return(nil)
			},
			validate: func(t *testing.T, gw *mocks.DocumentGateway, res *documents.SubmitResult, err error) {
				require.NoError(t, err)
				assert.Equal(t, "JV-7", res.Document.Number)
				gw.AssertNotCalled(t, "NextNumber", mock.Anything, mock.Anything)
			},
		},
		{
			name: "remote rejection on create is surfaced verbatim",
			doc:  invoice(document.PaymentCredit),
			setupMocks: func(gw *mocks.DocumentGateway) {
				gw.On("NextNumber", mock.Anything, document.KindInvoice).Return("INV-1", nil)
				gw.On("CreateInvoice", mock.Anything, mock.Anything).
					Return("", errors.NewRemoteRejection("CUSTOMER_INACTIVE", "Customer is inactive", 422))
			},
			validate: func(t *testing.T, gw *mocks.DocumentGateway, res *documents.SubmitResult, err error) {
				require.Error(t, err)
				assert.Equal(t, "Customer is inactive", err.Error())
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "create", appErr.Details["stage"])
			},
		},
		{
			name: "post failure reports the created document",
			doc:  invoice(document.PaymentCredit),
			setupMocks: func(gw *mocks.DocumentGateway) {
				gw.On("NextNumber", mock.Anything, document.KindInvoice).Return("INV-2", nil)
				gw.On("CreateInvoice", mock.Anything, mock.Anything).Return("r-9", nil)
				gw.On("Post", mock.Anything, document.KindInvoice, "r-9").
					Return(errors.NewTransientFailure("post document", context.DeadlineExceeded))
			},
			validate: func(t *testing.T, gw *mocks.DocumentGateway, res *documents.SubmitResult, err error) {
				require.Error(t, err)
				assert.True(t, errors.IsRetryable(err))
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "r-9", appErr.Details["remoteId"])
				assert.Equal(t, "post", appErr.Details["stage"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mocks.DocumentGateway)
			tt.setupMocks(gw)
			metrics := &recordingMetrics{}
			svc := documents.NewService(gw, metrics, zaptest.NewLogger(t))

			res, err := svc.Submit(ctx, tt.doc)
			tt.validate(t, gw, res, err)
			require.Len(t, metrics.calls, 1)
			assert.Equal(t, tt.doc.Kind.String(), metrics.calls[0][0])
		})
	}
}

func TestService_SubmitRecomputesStaleTotals(t *testing.T) {
	ctx := context.Background()
	gw := new(mocks.DocumentGateway)
	gw.On("CreateBill", mock.Anything, mock.Anything).Return("b-1", nil)
	gw.On("Post", mock.Anything, document.KindBill, "b-1").Return(nil)

	doc := invoice(document.PaymentCredit)
	doc.Kind = document.KindBill
	doc.Number = "B-1"
	doc.Totals.Total = decimal.NewFromInt(1)

	res, err := documents.NewService(gw, nil, nil).Submit(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "1062.00", res.Document.Totals.Total.StringFixed(2))
}

func TestService_Preview(t *testing.T) {
	ctx := context.Background()
	svc := documents.NewService(nil, nil, nil)

	t.Run("intra-state split", func(t *testing.T) {
		draft := invoice(document.PaymentCredit)
		res, err := svc.Preview(ctx, documents.PreviewRequest{Document: draft, SupplierState: "27", PlaceOfSupply: "27"})
		require.NoError(t, err)
		require.NotNil(t, res.Split)
		assert.True(t, res.Split.CGST.Equal(decimal.NewFromInt(81)))
		assert.True(t, res.Split.SGST.Equal(decimal.NewFromInt(81)))
		assert.True(t, draft.Totals.Total.IsZero(), "preview must not mutate the draft")
	})

	t.Run("inter-state split", func(t *testing.T) {
		res, err := svc.Preview(ctx, documents.PreviewRequest{Document: invoice(document.PaymentCredit), SupplierState: "27", PlaceOfSupply: "29"})
		require.NoError(t, err)
		assert.True(t, res.Split.IGST.Equal(decimal.NewFromInt(162)))
	})

	t.Run("invalid line", func(t *testing.T) {
		draft := invoice(document.PaymentCredit)
		draft.Lines[0].Quantity = decimal.Zero
		_, err := svc.Preview(ctx, documents.PreviewRequest{Document: draft})
		assert.Equal(t, "INVALID_QUANTITY", errors.Code(err))
	})
}

func TestService_SubmitCurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("payment carries the configured currency", func(t *testing.T) {
		gw := &mocks.DocumentGateway{}
		gw.On("NextNumber", mock.Anything, document.KindInvoice).Return("INV-0007", nil)
		gw.On("CreateInvoice", mock.Anything, mock.Anything).Return("r-7", nil)
		gw.On("Post", mock.Anything, document.KindInvoice, "r-7").Return(nil)
		gw.On("RecordPayment", mock.Anything, mock.MatchedBy(func(p documents.Payment) bool {
			return p.Amount.Currency() == "AED" && p.Amount.Amount().Equal(decimal.NewFromInt(1062))
		})).Return(nil)

		svc := documents.NewService(gw, nil, zaptest.NewLogger(t), documents.WithCurrency("AED"))
		res, err := svc.Submit(ctx, invoice(document.PaymentUPI))
		require.NoError(t, err)
		assert.True(t, res.PaymentRecorded)
		gw.AssertExpectations(t)
	})

	t.Run("unsupported currency fails before any remote call", func(t *testing.T) {
		gw := &mocks.DocumentGateway{}
		svc := documents.NewService(gw, nil, zaptest.NewLogger(t), documents.WithCurrency("XYZ"))

		_, err := svc.Submit(ctx, invoice(document.PaymentCash))
		require.Error(t, err)
		assert.Equal(t, "INVALID_CURRENCY", errors.Code(err))
		gw.AssertNotCalled(t, "NextNumber", mock.Anything, mock.Anything)
	})
}
