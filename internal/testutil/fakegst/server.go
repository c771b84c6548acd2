// Package fakegst is an in-process stand-in for the remote GST and
// accounting backend. OTPs are real TOTP codes so tests can read the
// out-of-band passcode with OTP.
package fakegst

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/davidleathers/gstbooks/internal/domain/values"
)

type credential struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	GSTIN          string     `json:"gstin"`
	Email          string     `json:"email"`
	StateCode      string     `json:"stateCode"`
	IPAddress      string     `json:"ipAddress,omitempty"`
	AuthStatus     string     `json:"authStatus"`
	AuthToken      string     `json:"authToken,omitempty"`
	TokenExpiry    *time.Time `json:"tokenExpiry,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`

	secret string
	txn    string
}

type failure struct {
	status int
	body   string
}

// Server records every call and can be told to fail the next call of an
// operation.
type Server struct {
	*httptest.Server

	// TokenTTL is the lifetime of issued session tokens.
	TokenTTL time.Duration
	// Now is the backend clock.
	Now func() time.Time
	// ReconcileResponse is returned verbatim by the reconcile endpoint.
	ReconcileResponse string

	mu        sync.Mutex
	creds     map[string]*credential
	failures  map[string][]failure
	calls     map[string]int
	sequences map[string]int
	documents map[string]json.RawMessage
	payments  []json.RawMessage
	posted    map[string]bool
}

func New() *Server {
	s := &Server{
		TokenTTL:          6 * time.Hour,
		Now:               func() time.Time { return time.Now().UTC() },
		ReconcileResponse: `{"summary":{"matched":0,"partial":0,"missingInBooks":0,"missingInReturn":0,"itcLost":"0"},"results":[]}`,
		creds:             make(map[string]*credential),
		failures:          make(map[string][]failure),
		calls:             make(map[string]int),
		sequences:         make(map[string]int),
		documents:         make(map[string]json.RawMessage),
		posted:            make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Route("/gst/credentials", func(r chi.Router) {
		r.Post("/", s.handle("create", s.createCredential))
		r.Post("/{id}/otp", s.handle("otp", s.requestOTP))
		r.Post("/{id}/authenticate", s.handle("authenticate", s.authenticate))
		r.Get("/{id}/auth-status", s.handle("auth_status", s.authStatus))
		r.Post("/{id}/reconcile", s.handle("reconcile", s.reconcile))
	})
	r.Post("/sequences/{kind}/next", s.handle("next_number", s.nextNumber))
	for _, coll := range []string{"invoices", "bills", "journals"} {
		r.Post("/"+coll, s.handle("create_document", s.createDocument))
		r.Post("/"+coll+"/{id}/post", s.handle("post_document", s.postDocument))
	}
	r.Post("/payments", s.handle("payment", s.recordPayment))

	s.Server = httptest.NewServer(r)
	return s
}

// FailNext makes the next call of operation answer with status and body.
func (s *Server) FailNext(operation string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[operation] = append(s.failures[operation], failure{status: status, body: body})
}

// Calls reports how many times operation was invoked, failures included.
func (s *Server) Calls(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[operation]
}

// OTP returns the passcode the backend currently accepts for a credential.
func (s *Server) OTP(credentialID string) (string, error) {
	s.mu.Lock()
	c, ok := s.creds[credentialID]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown credential %s", credentialID)
	}
	return totp.GenerateCode(c.secret, time.Now())
}

// ExpireToken marks a credential's token as expired on the backend side.
func (s *Server) ExpireToken(credentialID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.creds[credentialID]; ok && c.TokenExpiry != nil {
		past := s.Now().Add(-time.Minute)
		c.TokenExpiry = &past
	}
}

// Posted reports whether a created document was posted.
func (s *Server) Posted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posted[id]
}

// Payments returns the raw payment bodies received.
func (s *Server) Payments() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.payments...)
}

// Document returns the raw body a document was created with.
func (s *Server) Document(id string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documents[id]
}

func (s *Server) handle(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[operation]++
		var injected *failure
		if queue := s.failures[operation]; len(queue) > 0 {
			injected = &queue[0]
			s.failures[operation] = queue[1:]
		}
		s.mu.Unlock()

		if injected != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(injected.status)
			_, _ = w.Write([]byte(injected.body))
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*credential, bool) {
	c, ok := s.creds[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "CREDENTIAL_NOT_FOUND", "GST credential not found")
	}
	return c, ok
}

func (s *Server) createCredential(w http.ResponseWriter, r *http.Request) {
	var c credential
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is not valid JSON")
		return
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "fakegst", AccountName: c.GSTIN})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.creds {
		if existing.GSTIN == c.GSTIN && existing.OrganizationID == c.OrganizationID {
			writeError(w, http.StatusConflict, "DUPLICATE_CREDENTIAL", "A credential for this GSTIN already exists")
			return
		}
	}
	c.ID = uuid.NewString()
	c.AuthStatus = "PENDING"
	c.CreatedAt = s.Now()
	c.secret = key.Secret()
	s.creds[c.ID] = &c
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": c})
}

func (s *Server) requestOTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	c.txn = uuid.NewString()
	writeJSON(w, http.StatusOK, map[string]string{"transactionId": c.txn})
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP           string `json:"otp"`
		TransactionID string `json:"transactionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is not valid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if c.txn == "" || c.txn != body.TransactionID {
		writeError(w, http.StatusBadRequest, "TRANSACTION_EXPIRED", "OTP transaction has expired, request a new OTP")
		return
	}
	if !totp.Validate(body.OTP, c.secret) {
		c.AuthStatus = "FAILED"
		writeError(w, http.StatusBadRequest, "INVALID_OTP", "Invalid OTP entered")
		return
	}

	expiry := s.Now().Add(s.TokenTTL)
	c.AuthStatus = "AUTHENTICATED"
	c.AuthToken = uuid.NewString()
	c.TokenExpiry = &expiry
	c.txn = ""
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) authStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	now := s.Now()
	expired := c.TokenExpiry != nil && !now.Before(*c.TokenExpiry)
	status := c.AuthStatus
	if expired && status == "AUTHENTICATED" {
		status = "EXPIRED"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": status == "AUTHENTICATED",
		"authStatus":    status,
		"tokenExpiry":   c.TokenExpiry,
		"tokenExpired":  expired,
		"needsRefresh":  !expired && c.TokenExpiry != nil && c.TokenExpiry.Sub(now) < 30*time.Minute,
	})
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c, ok := s.lookup(w, r)
	response := s.ReconcileResponse
	s.mu.Unlock()
	if !ok {
		return
	}
	if c.AuthStatus != "AUTHENTICATED" {
		writeError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "GST session is not authenticated")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(response))
}

var prefixes = map[string]string{"invoice": "INV", "bill": "BILL", "journal": "JV"}

func (s *Server) nextNumber(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	prefix, ok := prefixes[kind]
	if !ok {
		writeError(w, http.StatusBadRequest, "UNKNOWN_SEQUENCE", "unknown sequence "+kind)
		return
	}
	s.mu.Lock()
	s.sequences[kind]++
	n := s.sequences[kind]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"number": fmt.Sprintf("%s-%04d", prefix, n)})
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is not valid JSON")
		return
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.documents[id] = raw
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) postDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		writeError(w, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found")
		return
	}
	s.posted[id] = true
	writeJSON(w, http.StatusOK, map[string]bool{"posted": true})
}

func (s *Server) recordPayment(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is not valid JSON")
		return
	}
	var payment struct {
		Amount values.Money `json:"amount"`
	}
	if err := json.Unmarshal(raw, &payment); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYMENT", "payment amount is not valid")
		return
	}
	s.mu.Lock()
	s.payments = append(s.payments, raw)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]bool{"recorded": true})
}
