package gstapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/service/documents"
)

// collection maps a document kind to its backend resource.
func collection(kind document.Kind) (string, error) {
	switch kind {
	case document.KindInvoice:
		return "invoices", nil
	case document.KindBill:
		return "bills", nil
	case document.KindJournal:
		return "journals", nil
	default:
		return "", errors.NewValidationError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", kind))
	}
}

type createdDocument struct {
	ID string `json:"id"`
}

// NextNumber reserves the next document number from the backend sequence.
func (c *Client) NextNumber(ctx context.Context, kind document.Kind) (string, error) {
	if _, err := collection(kind); err != nil {
		return "", err
	}
	var out struct {
		Number string `json:"number"`
	}
	if err := c.do(ctx, call{
		operation: "document.next_number",
		method:    http.MethodPost,
		path:      fmt.Sprintf("sequences/%s/next", kind),
		body:      struct{}{},
		out:       &out,
	}); err != nil {
		return "", err
	}
	if out.Number == "" {
		return "", errors.NewRemoteRejection("MISSING_DOCUMENT_NUMBER", "backend did not issue a document number", 422)
	}
	return out.Number, nil
}

func (c *Client) CreateInvoice(ctx context.Context, doc *document.Document) (string, error) {
	return c.create(ctx, document.KindInvoice, doc)
}

func (c *Client) CreateBill(ctx context.Context, doc *document.Document) (string, error) {
	return c.create(ctx, document.KindBill, doc)
}

func (c *Client) CreateJournal(ctx context.Context, doc *document.Document) (string, error) {
	return c.create(ctx, document.KindJournal, doc)
}

func (c *Client) create(ctx context.Context, kind document.Kind, doc *document.Document) (string, error) {
	resource, err := collection(kind)
	if err != nil {
		return "", err
	}
	var out createdDocument
	if err := c.do(ctx, call{
		operation: "document.create",
		method:    http.MethodPost,
		path:      resource,
		body:      doc,
		out:       &out,
	}); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.NewRemoteRejection("MISSING_DOCUMENT_ID", "backend did not return a document id", 422)
	}
	return out.ID, nil
}

func (c *Client) Post(ctx context.Context, kind document.Kind, id string) error {
	resource, err := collection(kind)
	if err != nil {
		return err
	}
	return c.do(ctx, call{
		operation: "document.post",
		method:    http.MethodPost,
		path:      fmt.Sprintf("%s/%s/post", resource, url.PathEscape(id)),
		body:      struct{}{},
	})
}

func (c *Client) RecordPayment(ctx context.Context, payment documents.Payment) error {
	return c.do(ctx, call{
		operation: "document.payment",
		method:    http.MethodPost,
		path:      "payments",
		body:      payment,
	})
}
