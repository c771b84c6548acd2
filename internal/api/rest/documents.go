package rest

import (
	"net/http"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
	"github.com/davidleathers/gstbooks/internal/service/documents"
)

type previewRequest struct {
	Document      *document.Document `json:"document" validate:"required"`
	SupplierState string             `json:"supplierState" validate:"omitempty,statecode"`
	PlaceOfSupply string             `json:"placeOfSupply" validate:"omitempty,statecode"`
}

// handlePreview recomputes a draft's totals without submitting it.
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	kind, err := document.ParseKind(string(req.Document.Kind))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Document.Kind = kind
	if err := h.applyDefaults(req.Document); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.documents.Preview(r.Context(), documents.PreviewRequest{
		Document:      req.Document,
		SupplierState: req.SupplierState,
		PlaceOfSupply: req.PlaceOfSupply,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, result)
}

// handleSubmit validates, numbers and posts a document of the route's kind.
// Any kind in the body is overridden by the route.
func (h *Handler) handleSubmit(kind document.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc document.Document
		if err := h.decode(w, r, &doc); err != nil {
			h.writeError(w, r, err)
			return
		}
		doc.Kind = kind
		if err := h.applyDefaults(&doc); err != nil {
			h.writeError(w, r, err)
			return
		}

		result, err := h.documents.Submit(r.Context(), &doc)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeSuccess(w, r, http.StatusCreated, result)
	}
}

// applyDefaults fills the configured discount base and checks the enumerated
// header fields.
func (h *Handler) applyDefaults(doc *document.Document) error {
	if doc.DiscountBase == "" {
		doc.DiscountBase = h.config.DiscountBase
	}
	base, err := tax.ParseDiscountBase(string(doc.DiscountBase))
	if err != nil {
		return err
	}
	doc.DiscountBase = base

	method, err := document.ParsePaymentMethod(string(doc.PaymentMethod))
	if err != nil {
		return err
	}
	doc.PaymentMethod = method
	return nil
}
