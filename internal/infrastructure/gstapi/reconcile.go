package gstapi

import (
	"context"
	"net/http"

	"github.com/davidleathers/gstbooks/internal/domain/reconciliation"
)

// Reconcile forwards the request and returns the raw aggregate. It is a
// mutating call on the backend and is never retried.
func (c *Client) Reconcile(ctx context.Context, req *reconciliation.Request) ([]byte, error) {
	var raw []byte
	if err := c.do(ctx, call{
		operation: "credential.reconcile",
		method:    http.MethodPost,
		path:      credentialPath(req.CredentialID, "reconcile"),
		body:      req,
		out:       &raw,
	}); err != nil {
		return nil, err
	}
	return raw, nil
}
