package rest

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
	"github.com/davidleathers/gstbooks/internal/service/credential"
)

type createCredentialRequest struct {
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
	GSTIN          string `json:"gstin" validate:"required,gstin"`
	Email          string `json:"email" validate:"required,email"`
	StateCode      string `json:"stateCode" validate:"required,statecode"`
	IPAddress      string `json:"ipAddress" validate:"omitempty,ip"`
}

type authenticateRequest struct {
	OTP string `json:"otp" validate:"required,numeric,min=4,max=8"`
	// TransactionID defaults to the transaction issued by the last OTP request.
	TransactionID string `json:"transactionId"`
}

type selectActiveRequest struct {
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
	CredentialID   string `json:"credentialId" validate:"required,uuid"`
}

// credentialView is the client-facing credential. The session token itself
// never leaves the server.
type credentialView struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organizationId"`
	GSTIN          string         `json:"gstin"`
	Email          string         `json:"email"`
	StateCode      string         `json:"stateCode"`
	IPAddress      string         `json:"ipAddress,omitempty"`
	AuthStatus     gst.AuthStatus `json:"authStatus"`
	TokenExpiry    *time.Time     `json:"tokenExpiry,omitempty"`
	AwaitingOTP    bool           `json:"awaitingOtp"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type authStatusView struct {
	Authenticated    bool           `json:"authenticated"`
	AuthStatus       gst.AuthStatus `json:"authStatus"`
	TokenExpiry      *time.Time     `json:"tokenExpiry,omitempty"`
	TokenExpired     bool           `json:"tokenExpired"`
	NeedsRefresh     bool           `json:"needsRefresh"`
	IsUsable         bool           `json:"isUsable"`
	NeedsReauth      bool           `json:"needsReauth"`
	ExpiresInSeconds int64          `json:"expiresInSeconds,omitempty"`
}

func newCredentialView(c *gst.Credential) credentialView {
	v := credentialView{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		GSTIN:          c.GSTIN.String(),
		Email:          c.Email.String(),
		StateCode:      c.StateCode.String(),
		IPAddress:      c.IPAddress,
		AuthStatus:     c.AuthStatus,
		AwaitingOTP:    c.AwaitingOTP(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.Token != nil {
		expiry := c.Token.Expiry
		v.TokenExpiry = &expiry
	}
	return v
}

func newAuthStatusView(u gst.Usability) authStatusView {
	return authStatusView{
		Authenticated:    u.AuthStatus == gst.StatusAuthenticated,
		AuthStatus:       u.AuthStatus,
		TokenExpiry:      u.TokenExpiry,
		TokenExpired:     u.TokenExpired,
		NeedsRefresh:     u.NeedsRefresh,
		IsUsable:         u.Usable,
		NeedsReauth:      u.NeedsReauth,
		ExpiresInSeconds: int64(u.ExpiresIn / time.Second),
	}
}

func (h *Handler) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ip := req.IPAddress
	if ip == "" {
		ip = clientIP(r)
	}

	created, err := h.credentials.Create(r.Context(), credential.CreateRequest{
		OrganizationID: uuid.MustParse(req.OrganizationID),
		GSTIN:          req.GSTIN,
		Email:          req.Email,
		StateCode:      req.StateCode,
		IPAddress:      ip,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, newCredentialView(created))
}

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryUUID(r, "organization_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	creds, err := h.credentials.List(r.Context(), orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]credentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, newCredentialView(c))
	}
	h.writeSuccess(w, r, http.StatusOK, views)
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cred, err := h.credentials.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, newCredentialView(cred))
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !h.otpLimiter.Allow(id.String()) {
		h.writeError(w, r, h.otpLimiter.rejection())
		return
	}

	txn, err := h.credentials.RequestOTP(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, map[string]string{"transactionId": txn})
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req authenticateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	txn := strings.TrimSpace(req.TransactionID)
	if txn == "" {
		stored, err := h.credentials.Get(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		txn = stored.TransactionID
	}

	cred, err := h.credentials.Authenticate(r.Context(), credential.AuthenticateRequest{
		CredentialID:  id,
		OTP:           req.OTP,
		TransactionID: txn,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, newCredentialView(cred))
}

// handleAuthStatus refreshes from the backend. With ?local=true only the
// stored record is evaluated.
func (h *Handler) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var status *credential.StatusResponse
	if r.URL.Query().Get("local") == "true" {
		status, err = h.credentials.Usability(r.Context(), id)
	} else {
		status, err = h.credentials.Status(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, newAuthStatusView(status.Usability))
}

func (h *Handler) handleSelectActive(w http.ResponseWriter, r *http.Request) {
	var req selectActiveRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	orgID, credID := uuid.MustParse(req.OrganizationID), uuid.MustParse(req.CredentialID)
	if err := h.credentials.SelectActive(r.Context(), orgID, credID); err != nil {
		h.writeError(w, r, err)
		return
	}
	cred, err := h.credentials.Active(r.Context(), orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, newCredentialView(cred))
}

func (h *Handler) handleGetActive(w http.ResponseWriter, r *http.Request) {
	orgID, err := queryUUID(r, "organization_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cred, err := h.credentials.Active(r.Context(), orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, newCredentialView(cred))
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", name+" must be a UUID")
	}
	return id, nil
}

func queryUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, errors.NewValidationError("MISSING_"+strings.ToUpper(name), name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_"+strings.ToUpper(name), name+" must be a UUID")
	}
	return id, nil
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
