package rest

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

const healthTimeout = 3 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

var (
	errNotFoundRoute    = errors.NewNotFoundError("route")
	errMethodNotAllowed = &errors.AppError{
		Type:       errors.ErrorTypeValidation,
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "method not allowed",
		StatusCode: http.StatusMethodNotAllowed,
	}
	errUnhealthy = errors.NewTransientFailure("health check", stderrors.New("dependency unavailable"))
)

type healthView struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth runs every registered check. Any failure answers 503.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	view := healthView{Status: "ok", Checks: make(map[string]string, len(h.health))}
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			view.Status = "degraded"
			view.Checks[name] = err.Error()
			continue
		}
		view.Checks[name] = "ok"
	}

	if view.Status != "ok" {
		status, body := h.errorResponse(errUnhealthy)
		body.Details = map[string]interface{}{"checks": view.Checks}
		h.writeJSON(w, status, ResponseEnvelope{Success: false, Data: view, Error: body, Meta: meta(r)})
		return
	}
	h.writeSuccess(w, r, http.StatusOK, view)
}
