package credential

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/gstbooks/internal/domain/gst"
)

// Service drives the GST credential lifecycle: registration, the two-step OTP
// handshake and read-time usability checks.
type Service interface {
	// Create validates the registration locally, then registers it remotely.
	Create(ctx context.Context, req CreateRequest) (*gst.Credential, error)

	// RequestOTP issues a new OTP transaction, superseding any earlier one.
	RequestOTP(ctx context.Context, credentialID uuid.UUID) (string, error)

	// Authenticate exchanges the OTP for a session token. Only one call per
	// credential may be in flight.
	Authenticate(ctx context.Context, req AuthenticateRequest) (*gst.Credential, error)

	// Status refreshes the credential from the backend's auth-status view.
	Status(ctx context.Context, credentialID uuid.UUID) (*StatusResponse, error)

	// Usability evaluates the stored credential against the clock without
	// calling the backend.
	Usability(ctx context.Context, credentialID uuid.UUID) (*StatusResponse, error)

	Get(ctx context.Context, credentialID uuid.UUID) (*gst.Credential, error)
	List(ctx context.Context, orgID uuid.UUID) ([]*gst.Credential, error)

	// SelectActive makes credentialID the organization's active credential.
	SelectActive(ctx context.Context, orgID, credentialID uuid.UUID) error

	// Active returns the selected credential, or the only one when the
	// organization has exactly one.
	Active(ctx context.Context, orgID uuid.UUID) (*gst.Credential, error)
}

// Gateway is the remote GST backend.
type Gateway interface {
	CreateCredential(ctx context.Context, draft *gst.Credential) (*gst.Credential, error)
	RequestOTP(ctx context.Context, credentialID uuid.UUID) (string, error)
	Authenticate(ctx context.Context, credentialID uuid.UUID, otp, transactionID string) (*gst.Credential, error)
	AuthStatus(ctx context.Context, credentialID uuid.UUID) (*gst.StatusReport, error)
}

// Store keeps the last-known-good credential records and the per-organization
// active selection.
type Store interface {
	SaveCredential(ctx context.Context, c *gst.Credential) error
	// GetCredential returns a not_found AppError when the record is missing.
	GetCredential(ctx context.Context, id uuid.UUID) (*gst.Credential, error)
	ListCredentials(ctx context.Context, orgID uuid.UUID) ([]*gst.Credential, error)
	SetActive(ctx context.Context, orgID, credentialID uuid.UUID) error
	// GetActive returns uuid.Nil when nothing has been selected.
	GetActive(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error)
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// MetricsRecorder receives one outcome per remote operation.
type MetricsRecorder interface {
	RecordOTPRequest(outcome string)
	RecordAuthentication(outcome string)
}

type CreateRequest struct {
	OrganizationID uuid.UUID
	GSTIN          string
	Email          string
	StateCode      string
	IPAddress      string
}

type AuthenticateRequest struct {
	CredentialID  uuid.UUID
	OTP           string
	TransactionID string
}

// StatusResponse is a credential together with its read-time usability.
type StatusResponse struct {
	Credential *gst.Credential
	Usability  gst.Usability
}

// Config holds the timing knobs of the service.
type Config struct {
	RefreshWindow time.Duration
	LockTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		RefreshWindow: 30 * time.Minute,
		LockTTL:       2 * time.Minute,
	}
}
