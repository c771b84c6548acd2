// Package rest is the HTTP API over the credential, reconciliation and
// document services.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/api/middleware"
	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
	"github.com/davidleathers/gstbooks/internal/service/credential"
	"github.com/davidleathers/gstbooks/internal/service/documents"
	"github.com/davidleathers/gstbooks/internal/service/reconciliation"
)

// Config holds API configuration
type Config struct {
	Version              string
	DiscountBase         tax.DiscountBase
	OTPRequestsPerMinute int
	OTPBurst             int
}

func DefaultConfig() Config {
	return Config{
		Version:              "v1",
		DiscountBase:         tax.DiscountOnLineTotals,
		OTPRequestsPerMinute: 3,
		OTPBurst:             1,
	}
}

// Dependencies are the collaborators the router dispatches to. Events,
// Metrics and MetricsHandler are optional.
type Dependencies struct {
	Credentials    credential.Service
	Reconciliation reconciliation.Service
	Documents      documents.Service
	Events         http.HandlerFunc
	Metrics        middleware.HTTPMetrics
	MetricsHandler http.Handler
	Health         map[string]HealthCheck
}

// Handler serves the v1 API.
type Handler struct {
	credentials    credential.Service
	reconciliation reconciliation.Service
	documents      documents.Service
	health         map[string]HealthCheck
	otpLimiter     *OTPLimiter
	validate       *validator.Validate
	config         Config
	logger         *zap.Logger
}

func NewHandler(deps Dependencies, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DiscountBase == "" {
		cfg.DiscountBase = tax.DiscountOnLineTotals
	}
	return &Handler{
		credentials:    deps.Credentials,
		reconciliation: deps.Reconciliation,
		documents:      deps.Documents,
		health:         deps.Health,
		otpLimiter:     NewOTPLimiter(cfg.OTPRequestsPerMinute, cfg.OTPBurst),
		validate:       newValidator(),
		config:         cfg,
		logger:         logger.Named("rest"),
	}
}

// NewRouter builds the full HTTP surface.
func NewRouter(deps Dependencies, cfg Config, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewHandler(deps, cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(otel.Tracer("gstbooks.api"), otel.GetTextMapPropagator()))
	r.Use(middleware.Logging(logger.Named("http")))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.writeError(w, req, errNotFoundRoute)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		h.writeError(w, req, errMethodNotAllowed)
	})

	r.Get("/healthz", h.handleHealth)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.Events != nil {
		r.Get("/ws/credentials", deps.Events)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents/preview", h.handlePreview)
		r.Post("/invoices", h.handleSubmit(document.KindInvoice))
		r.Post("/bills", h.handleSubmit(document.KindBill))
		r.Post("/journals", h.handleSubmit(document.KindJournal))

		r.Route("/gst/credentials", func(r chi.Router) {
			r.Post("/", h.handleCreateCredential)
			r.Get("/", h.handleListCredentials)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetCredential)
				r.Post("/otp", h.handleRequestOTP)
				r.Post("/authenticate", h.handleAuthenticate)
				r.Get("/auth-status", h.handleAuthStatus)
				r.Post("/reconcile", h.handleReconcile)
				r.Get("/reconciliations/{period}", h.handleLatestReconciliation)
			})
		})
		r.Put("/gst/active-credential", h.handleSelectActive)
		r.Get("/gst/active-credential", h.handleGetActive)
	})

	return r
}
