package gst

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

// AuthStatus is the server-declared authentication state of a credential.
type AuthStatus string

const (
	StatusPending       AuthStatus = "PENDING"
	StatusAuthenticated AuthStatus = "AUTHENTICATED"
	StatusExpired       AuthStatus = "EXPIRED"
	StatusFailed        AuthStatus = "FAILED"
)

func (s AuthStatus) String() string {
	return string(s)
}

func (s AuthStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAuthenticated, StatusExpired, StatusFailed:
		return true
	default:
		return false
	}
}

func ParseAuthStatus(raw string) (AuthStatus, error) {
	s := AuthStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", errors.NewValidationError("INVALID_AUTH_STATUS", fmt.Sprintf("unknown auth status %q", raw))
	}
	return s, nil
}

// AuthToken is the session issued by the GST backend after a successful OTP
// exchange. The value is opaque and must never be logged.
type AuthToken struct {
	Value  string    `json:"value"`
	Expiry time.Time `json:"expiry"`
}

// Credential is one GSTIN registration an organization can reconcile against.
type Credential struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	GSTIN          values.GSTIN     `json:"gstin"`
	Email          values.Email     `json:"email"`
	StateCode      values.StateCode `json:"state_code"`
	IPAddress      string           `json:"ip_address,omitempty"`
	AuthStatus     AuthStatus       `json:"auth_status"`
	Token          *AuthToken       `json:"token,omitempty"`

	// TransactionID is the OTP transaction currently awaiting authentication.
	// Requesting a new OTP replaces it.
	TransactionID string `json:"transaction_id,omitempty"`

	// ServerExpired is set when the backend reports the token expired ahead of
	// the stored expiry.
	ServerExpired bool       `json:"server_expired,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCredential validates registration details locally and returns a PENDING
// credential. Nothing invalid here is ever sent to the backend.
func NewCredential(orgID uuid.UUID, gstin, email, stateCode, ipAddress string) (*Credential, error) {
	if orgID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_ORGANIZATION", "organization ID is required")
	}

	g, err := values.NewGSTIN(gstin)
	if err != nil {
		return nil, err
	}
	e, err := values.NewEmail(email)
	if err != nil {
		return nil, err
	}
	sc, err := values.NewStateCode(stateCode)
	if err != nil {
		return nil, err
	}
	if g.StateCode() != sc.String() {
		return nil, errors.NewValidationError(
			"STATE_CODE_MISMATCH",
			fmt.Sprintf("state code %s does not match GSTIN state %s", sc, g.StateCode()),
		)
	}

	ip := strings.TrimSpace(ipAddress)
	if ip != "" && net.ParseIP(ip) == nil {
		return nil, errors.NewValidationError("INVALID_IP_ADDRESS", "IP address is not valid")
	}

	now := clock.Now()
	return &Credential{
		ID:             uuid.New(),
		OrganizationID: orgID,
		GSTIN:          g,
		Email:          e,
		StateCode:      sc,
		IPAddress:      ip,
		AuthStatus:     StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IssueTransaction records the newest OTP transaction. Any earlier
// transaction is forgotten and can no longer authenticate.
func (c *Credential) IssueTransaction(transactionID string, now time.Time) error {
	if strings.TrimSpace(transactionID) == "" {
		return errors.NewValidationError("MISSING_TRANSACTION_ID", "transaction ID is required")
	}
	c.TransactionID = transactionID
	c.UpdatedAt = now
	return nil
}

// CheckTransaction reports whether transactionID is the one currently
// awaiting an OTP.
func (c *Credential) CheckTransaction(transactionID string) error {
	if c.TransactionID == "" {
		return errors.NewValidationError("NO_PENDING_OTP", "request an OTP before authenticating")
	}
	if transactionID != c.TransactionID {
		return errors.NewValidationError("STALE_TRANSACTION", "transaction has been superseded by a newer OTP request")
	}
	return nil
}

// CompleteAuthentication moves the credential to AUTHENTICATED once the
// backend has accepted the OTP for the current transaction.
func (c *Credential) CompleteAuthentication(transactionID string, token AuthToken, now time.Time) error {
	if err := c.CheckTransaction(transactionID); err != nil {
		return err
	}
	if err := c.AcceptToken(token, now); err != nil {
		return err
	}
	c.TransactionID = ""
	return nil
}

// AcceptToken records a token the backend has confirmed without touching the
// pending OTP transaction. It is used when a newer OTP was requested while
// an earlier one was being verified.
func (c *Credential) AcceptToken(token AuthToken, now time.Time) error {
	if token.Value == "" || token.Expiry.IsZero() {
		return errors.NewValidationError("INVALID_TOKEN", "authentication did not return a usable token")
	}
	c.AuthStatus = StatusAuthenticated
	c.Token = &token
	c.ServerExpired = false
	c.UpdatedAt = now
	return nil
}

// SameRevision reports whether other is the same stored snapshot as c.
func (c *Credential) SameRevision(other *Credential) bool {
	if other == nil {
		return false
	}
	tokenValue := func(x *Credential) string {
		if x.Token == nil {
			return ""
		}
		return x.Token.Value
	}
	return c.UpdatedAt.Equal(other.UpdatedAt) &&
		c.TransactionID == other.TransactionID &&
		c.AuthStatus == other.AuthStatus &&
		tokenValue(c) == tokenValue(other)
}

// IsUsable is true only for an authenticated credential whose token has not
// reached its expiry. It never changes AuthStatus.
func (c *Credential) IsUsable(now time.Time) bool {
	return c.AuthStatus == StatusAuthenticated &&
		c.Token != nil &&
		now.Before(c.Token.Expiry) &&
		!c.ServerExpired
}

// TokenExpired reports whether a token was issued and is no longer valid.
func (c *Credential) TokenExpired(now time.Time) bool {
	if c.AuthStatus == StatusExpired || c.ServerExpired {
		return true
	}
	return c.Token != nil && !now.Before(c.Token.Expiry)
}

// NeedsRefresh flags a usable credential whose token expires within window.
func (c *Credential) NeedsRefresh(now time.Time, window time.Duration) bool {
	return c.IsUsable(now) && c.Token.Expiry.Sub(now) <= window
}

// AwaitingOTP reports whether an OTP has been requested but not yet used.
func (c *Credential) AwaitingOTP() bool {
	return c.TransactionID != ""
}

// Usability is the derived, read-time view of a credential.
type Usability struct {
	AuthStatus   AuthStatus    `json:"authStatus"`
	Usable       bool          `json:"isUsable"`
	NeedsRefresh bool          `json:"needsRefresh"`
	TokenExpired bool          `json:"tokenExpired"`
	NeedsReauth  bool          `json:"needsReauth"`
	TokenExpiry  *time.Time    `json:"tokenExpiry,omitempty"`
	ExpiresIn    time.Duration `json:"-"`
}

// Evaluate derives the usability view at now.
func (c *Credential) Evaluate(now time.Time, window time.Duration) Usability {
	u := Usability{
		AuthStatus:   c.AuthStatus,
		Usable:       c.IsUsable(now),
		NeedsRefresh: c.NeedsRefresh(now, window),
		TokenExpired: c.TokenExpired(now),
	}
	u.NeedsReauth = !u.Usable
	if c.Token != nil {
		expiry := c.Token.Expiry
		u.TokenExpiry = &expiry
		if u.Usable {
			u.ExpiresIn = expiry.Sub(now)
		}
	}
	return u
}

// StatusReport is the backend's view returned by the auth-status endpoint.
type StatusReport struct {
	Authenticated bool       `json:"authenticated"`
	AuthStatus    AuthStatus `json:"authStatus"`
	TokenExpiry   *time.Time `json:"tokenExpiry,omitempty"`
	TokenExpired  bool       `json:"tokenExpired"`
	NeedsRefresh  bool       `json:"needsRefresh"`
}

// ApplyStatusReport merges a backend status report. The backend owns the
// token expiry, but a report never authenticates a credential that holds no
// token.
func (c *Credential) ApplyStatusReport(r StatusReport, now time.Time) {
	if r.AuthStatus.IsValid() {
		if r.AuthStatus != StatusAuthenticated || c.Token != nil {
			c.AuthStatus = r.AuthStatus
		}
	}
	if r.TokenExpiry != nil && c.Token != nil {
		c.Token.Expiry = *r.TokenExpiry
	}
	c.ServerExpired = r.TokenExpired
	checked := now
	c.LastCheckedAt = &checked
	c.UpdatedAt = now
}

// Clone returns a deep copy so stored snapshots are never aliased.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.Token != nil {
		token := *c.Token
		out.Token = &token
	}
	if c.LastCheckedAt != nil {
		checked := *c.LastCheckedAt
		out.LastCheckedAt = &checked
	}
	return &out
}

func (s AuthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s *AuthStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseAuthStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
