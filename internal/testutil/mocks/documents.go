package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/service/documents"
)

// DocumentGateway mock
type DocumentGateway struct {
	mock.Mock
}

func (m *DocumentGateway) NextNumber(ctx context.Context, kind document.Kind) (string, error) {
	args := m.Called(ctx, kind)
	return args.String(0), args.Error(1)
}

func (m *DocumentGateway) CreateInvoice(ctx context.Context, doc *document.Document) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

func (m *DocumentGateway) CreateBill(ctx context.Context, doc *document.Document) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

func (m *DocumentGateway) CreateJournal(ctx context.Context, doc *document.Document) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

func (m *DocumentGateway) Post(ctx context.Context, kind document.Kind, id string) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

func (m *DocumentGateway) RecordPayment(ctx context.Context, payment documents.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}
