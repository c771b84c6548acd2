package rest

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/api/middleware"
	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

// ResponseEnvelope wraps every JSON response.
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Meta    ResponseMeta   `json:"meta"`
}

// ErrorResponse is the client-facing view of an AppError.
type ErrorResponse struct {
	Type      string                 `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Fields    map[string][]string    `json:"fields,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

type ResponseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// fieldErrors is a validation failure on request DTO fields.
type fieldErrors struct {
	fields map[string][]string
}

func (e *fieldErrors) Error() string {
	return "Validation failed"
}

func meta(r *http.Request) ResponseMeta {
	return ResponseMeta{
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	h.writeJSON(w, status, ResponseEnvelope{Success: true, Data: data, Meta: meta(r)})
}

// writeError maps err onto a status code and the error envelope. Messages of
// remote rejections are passed through verbatim; unknown errors are hidden.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.errorResponse(err)
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		body.TraceID = sc.TraceID().String()
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
	h.writeJSON(w, status, ResponseEnvelope{Success: false, Error: body, Meta: meta(r)})
}

func (h *Handler) errorResponse(err error) (int, *ErrorResponse) {
	var fe *fieldErrors
	if stderrors.As(err, &fe) {
		return http.StatusBadRequest, &ErrorResponse{
			Type:    string(errors.ErrorTypeValidation),
			Code:    "VALIDATION_FAILED",
			Message: fe.Error(),
			Fields:  fe.fields,
		}
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		resp := &ErrorResponse{
			Type:      string(appErr.Type),
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			Retryable: appErr.Retryable,
		}
		if appErr.Type == errors.ErrorTypeInternal {
			resp.Message = "An internal error occurred"
			resp.Details = nil
		}
		return status, resp
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError
	switch {
	case stderrors.As(err, &syntaxErr), stderrors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, &ErrorResponse{
			Type: string(errors.ErrorTypeValidation), Code: "INVALID_JSON", Message: "Request body is not valid JSON",
		}
	case stderrors.As(err, &typeErr):
		return http.StatusBadRequest, &ErrorResponse{
			Type: string(errors.ErrorTypeValidation), Code: "TYPE_MISMATCH", Message: "Invalid type for field '" + typeErr.Field + "'",
		}
	case stderrors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, &ErrorResponse{
			Type: string(errors.ErrorTypeValidation), Code: "BODY_TOO_LARGE", Message: "Request body too large",
		}
	case stderrors.Is(err, io.EOF):
		return http.StatusBadRequest, &ErrorResponse{
			Type: string(errors.ErrorTypeValidation), Code: "EMPTY_BODY", Message: "Request body is required",
		}
	}

	return http.StatusInternalServerError, &ErrorResponse{
		Type:    string(errors.ErrorTypeInternal),
		Code:    "INTERNAL_ERROR",
		Message: "An internal error occurred",
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}
