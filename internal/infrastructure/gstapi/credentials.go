package gstapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

// credentialRecord is the backend's credential representation.
type credentialRecord struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId,omitempty"`
	GSTIN          string     `json:"gstin"`
	Email          string     `json:"email"`
	StateCode      string     `json:"stateCode"`
	IPAddress      string     `json:"ipAddress,omitempty"`
	AuthStatus     string     `json:"authStatus,omitempty"`
	AuthToken      string     `json:"authToken,omitempty"`
	TokenExpiry    *time.Time `json:"tokenExpiry,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

func credentialPath(id uuid.UUID, action string) string {
	if action == "" {
		return "gst/credentials/" + id.String()
	}
	return fmt.Sprintf("gst/credentials/%s/%s", id, action)
}

// toCredential converts the backend record. Authentication responses may
// omit the registration fields.
func (r credentialRecord) toCredential() (*gst.Credential, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, errors.NewInternalError("backend returned a credential without a valid id").WithCause(err)
	}
	c := &gst.Credential{ID: id, IPAddress: r.IPAddress}
	if r.GSTIN != "" {
		if c.GSTIN, err = values.NewGSTIN(r.GSTIN); err != nil {
			return nil, errors.NewInternalError("backend returned an invalid GSTIN").WithCause(err)
		}
	}
	if r.Email != "" {
		if c.Email, err = values.NewEmail(r.Email); err != nil {
			return nil, errors.NewInternalError("backend returned an invalid email").WithCause(err)
		}
	}
	if r.StateCode != "" {
		if c.StateCode, err = values.NewStateCode(r.StateCode); err != nil {
			return nil, errors.NewInternalError("backend returned an invalid state code").WithCause(err)
		}
	}
	if r.OrganizationID != "" {
		if orgID, err := uuid.Parse(r.OrganizationID); err == nil {
			c.OrganizationID = orgID
		}
	}
	if r.AuthStatus != "" {
		status, err := gst.ParseAuthStatus(r.AuthStatus)
		if err != nil {
			return nil, errors.NewInternalError(fmt.Sprintf("backend returned unknown auth status %q", r.AuthStatus))
		}
		c.AuthStatus = status
	}
	if r.AuthToken != "" && r.TokenExpiry != nil {
		c.Token = &gst.AuthToken{Value: r.AuthToken, Expiry: r.TokenExpiry.UTC()}
	}
	if r.CreatedAt != nil {
		c.CreatedAt = r.CreatedAt.UTC()
	}
	if r.UpdatedAt != nil {
		c.UpdatedAt = r.UpdatedAt.UTC()
	}
	return c, nil
}

func (c *Client) CreateCredential(ctx context.Context, draft *gst.Credential) (*gst.Credential, error) {
	body := credentialRecord{
		OrganizationID: draft.OrganizationID.String(),
		GSTIN:          draft.GSTIN.String(),
		Email:          draft.Email.String(),
		StateCode:      draft.StateCode.String(),
		IPAddress:      draft.IPAddress,
	}
	var out credentialRecord
	if err := c.do(ctx, call{
		operation: "credential.create",
		method:    http.MethodPost,
		path:      "gst/credentials",
		body:      body,
		out:       &out,
	}); err != nil {
		return nil, err
	}
	created, err := out.toCredential()
	if err != nil {
		return nil, err
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = draft.CreatedAt
		created.UpdatedAt = draft.UpdatedAt
	}
	return created, nil
}

func (c *Client) RequestOTP(ctx context.Context, credentialID uuid.UUID) (string, error) {
	var out struct {
		TransactionID string `json:"transactionId"`
	}
	if err := c.do(ctx, call{
		operation: "credential.otp",
		method:    http.MethodPost,
		path:      credentialPath(credentialID, "otp"),
		body:      struct{}{},
		out:       &out,
	}); err != nil {
		return "", err
	}
	return out.TransactionID, nil
}

// Authenticate is never retried: a lost response must not replay the OTP.
func (c *Client) Authenticate(ctx context.Context, credentialID uuid.UUID, otp, transactionID string) (*gst.Credential, error) {
	body := struct {
		OTP           string `json:"otp"`
		TransactionID string `json:"transactionId"`
	}{OTP: otp, TransactionID: transactionID}

	var out credentialRecord
	if err := c.do(ctx, call{
		operation: "credential.authenticate",
		method:    http.MethodPost,
		path:      credentialPath(credentialID, "authenticate"),
		body:      body,
		out:       &out,
	}); err != nil {
		return nil, err
	}
	return out.toCredential()
}

// AuthStatus is a read and is retried with backoff on transient failures.
func (c *Client) AuthStatus(ctx context.Context, credentialID uuid.UUID) (*gst.StatusReport, error) {
	var out struct {
		Authenticated bool       `json:"authenticated"`
		AuthStatus    string     `json:"authStatus"`
		TokenExpiry   *time.Time `json:"tokenExpiry"`
		TokenExpired  bool       `json:"tokenExpired"`
		NeedsRefresh  bool       `json:"needsRefresh"`
	}
	if err := c.do(ctx, call{
		operation:  "credential.auth_status",
		method:     http.MethodGet,
		path:       credentialPath(credentialID, "auth-status"),
		out:        &out,
		idempotent: true,
	}); err != nil {
		return nil, err
	}

	report := &gst.StatusReport{
		Authenticated: out.Authenticated,
		TokenExpired:  out.TokenExpired,
		NeedsRefresh:  out.NeedsRefresh,
	}
	if out.AuthStatus != "" {
		status, err := gst.ParseAuthStatus(out.AuthStatus)
		if err != nil {
			return nil, errors.NewInternalError(fmt.Sprintf("backend returned unknown auth status %q", out.AuthStatus))
		}
		report.AuthStatus = status
	}
	if out.TokenExpiry != nil {
		expiry := out.TokenExpiry.UTC()
		report.TokenExpiry = &expiry
	}
	return report, nil
}
