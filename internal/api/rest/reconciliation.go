package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/service/reconciliation"
)

type reconcileRequest struct {
	ReturnPeriod  string              `json:"returnPeriod" validate:"required,returnperiod"`
	FinancialYear string              `json:"financialYear" validate:"required,financialyear"`
	BooksData     []document.Document `json:"booksData"`
	// FetchRemoteReturn defaults to true.
	FetchRemoteReturn *bool `json:"fetchRemoteReturn"`
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req reconcileRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	for i := range req.BooksData {
		if err := h.applyDefaults(&req.BooksData[i]); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	fetch := true
	if req.FetchRemoteReturn != nil {
		fetch = *req.FetchRemoteReturn
	}

	result, err := h.reconciliation.Reconcile(r.Context(), reconciliation.ReconcileInput{
		CredentialID:      id,
		Period:            req.ReturnPeriod,
		FinancialYear:     req.FinancialYear,
		Books:             req.BooksData,
		FetchRemoteReturn: fetch,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, result)
}

func (h *Handler) handleLatestReconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.reconciliation.Latest(r.Context(), id, chi.URLParam(r, "period"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, result)
}
