// Package reconciliation models the request sent to the remote GSTR-2A matcher
// and the aggregate it returns. Matching itself happens remotely; nothing here
// interprets individual results beyond counting them.
package reconciliation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/document"
	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/values"
)

// Request is a validated reconciliation call.
type Request struct {
	CredentialID      uuid.UUID            `json:"credentialId"`
	Period            values.ReturnPeriod  `json:"returnPeriod"`
	FinancialYear     values.FinancialYear `json:"financialYear"`
	Books             []document.Document  `json:"booksData"`
	FetchRemoteReturn bool                 `json:"fetchRemoteReturn"`
}

// NewRequest checks the request shape locally. Every book document is
// validated, so its totals are freshly recomputed before they are sent.
func NewRequest(credentialID uuid.UUID, period, financialYear string, books []document.Document, fetchRemote bool) (*Request, error) {
	if credentialID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_CREDENTIAL", "credential ID is required")
	}
	p, err := values.NewReturnPeriod(period)
	if err != nil {
		return nil, err
	}
	fy, err := values.NewFinancialYear(financialYear)
	if err != nil {
		return nil, err
	}
	if !fy.Contains(p) {
		return nil, errors.NewValidationError(
			"PERIOD_OUTSIDE_FINANCIAL_YEAR",
			fmt.Sprintf("return period %s is not part of financial year %s", p, fy),
		)
	}

	snapshot := make([]document.Document, len(books))
	for i := range books {
		snapshot[i] = books[i]
		if err := snapshot[i].Validate(); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("books document %d", i+1))
		}
	}

	return &Request{
		CredentialID:      credentialID,
		Period:            p,
		FinancialYear:     fy,
		Books:             snapshot,
		FetchRemoteReturn: fetchRemote,
	}, nil
}

// Summary is the aggregate the matcher reports alongside its line results.
type Summary struct {
	Matched         int             `json:"matched"`
	Partial         int             `json:"partial"`
	MissingInBooks  int             `json:"missingInBooks"`
	MissingInReturn int             `json:"missingInReturn"`
	ITCLost         decimal.Decimal `json:"itcLost"`
}

func (s Summary) Total() int {
	return s.Matched + s.Partial + s.MissingInBooks + s.MissingInReturn
}

// Result is the read-only outcome of one reconciliation. Entries and
// SuggestedJournals are kept exactly as the matcher returned them.
type Result struct {
	ID                uuid.UUID            `json:"id"`
	CredentialID      uuid.UUID            `json:"credentialId"`
	Period            values.ReturnPeriod  `json:"returnPeriod"`
	FinancialYear     values.FinancialYear `json:"financialYear"`
	Summary           Summary              `json:"summary"`
	Entries           []json.RawMessage    `json:"results"`
	SuggestedJournals []json.RawMessage    `json:"suggestedJournals,omitempty"`
	Raw               json.RawMessage      `json:"-"`
	ReceivedAt        time.Time            `json:"receivedAt"`
}

// IsEmpty reports the valid "nothing to reconcile" outcome.
func (r *Result) IsEmpty() bool {
	return len(r.Entries) == 0 && r.Summary.Total() == 0
}

type wireResult struct {
	Summary           *Summary          `json:"summary"`
	Results           []json.RawMessage `json:"results"`
	SuggestedJournals []json.RawMessage `json:"suggestedJournals"`
}

// ParseResult decodes a matcher payload for req. An empty body is an empty
// result, not an error.
func ParseResult(req *Request, payload []byte, receivedAt time.Time) (*Result, error) {
	result := &Result{
		ID:            uuid.New(),
		CredentialID:  req.CredentialID,
		Period:        req.Period,
		FinancialYear: req.FinancialYear,
		Summary:       Summary{ITCLost: decimal.Zero},
		Entries:       []json.RawMessage{},
		ReceivedAt:    receivedAt,
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		result.Raw = json.RawMessage("{}")
		return result, nil
	}

	var wire wireResult
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, errors.NewInternalError("reconciliation response could not be decoded").WithCause(err)
	}
	if wire.Summary != nil {
		result.Summary = *wire.Summary
	}
	if wire.Results != nil {
		result.Entries = wire.Results
	}
	result.SuggestedJournals = wire.SuggestedJournals
	result.Raw = append(json.RawMessage(nil), trimmed...)
	return result, nil
}
