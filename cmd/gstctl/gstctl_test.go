package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/gstbooks/internal/domain/gst"
	"github.com/davidleathers/gstbooks/internal/infrastructure/gstapi"
	"github.com/davidleathers/gstbooks/internal/testutil/fakegst"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const invoiceJSON = `{
  "kind": "invoice",
  "lines": [
    {"itemRef": "ITEM-1", "quantity": "2", "unitPrice": "500", "discountPercent": "10", "taxRatePercent": "18"},
    {"itemRef": "ITEM-2", "quantity": "1", "unitPrice": "100", "discountPercent": "0", "taxRatePercent": "5"}
  ],
  "documentDiscountPercent": "0"
}`

func TestTotals(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		stdin    string
		wantErr  string
		validate func(t *testing.T, out string)
	}{
		{
			name:  "inter-state split",
			args:  []string{"totals", "--file", "-", "--supplier-state", "29", "--place-of-supply", "27"},
			stdin: invoiceJSON,
			validate: func(t *testing.T, out string) {
				var result struct {
					Document struct {
						Totals struct {
							Subtotal      decimal.Decimal `json:"subtotal"`
							TaxableAmount decimal.Decimal `json:"taxableAmount"`
							TaxAmount     decimal.Decimal `json:"taxAmount"`
							Total         decimal.Decimal `json:"total"`
						} `json:"totals"`
					} `json:"document"`
					Split struct {
						IGST       decimal.Decimal `json:"igst"`
						InterState bool            `json:"interState"`
					} `json:"gstSplit"`
				}
				require.NoError(t, json.Unmarshal([]byte(out), &result))
				// 900 taxable at 18% plus 100 at 5%.
				assert.True(t, result.Document.Totals.TaxableAmount.Equal(decimal.NewFromInt(1000)), result.Document.Totals.TaxableAmount.String())
				assert.True(t, result.Document.Totals.Subtotal.Equal(decimal.NewFromInt(1167)), result.Document.Totals.Subtotal.String())
				assert.True(t, result.Document.Totals.TaxAmount.Equal(decimal.NewFromInt(167)), result.Document.Totals.TaxAmount.String())
				assert.True(t, result.Document.Totals.Total.Equal(decimal.NewFromInt(1167)))
				assert.True(t, result.Split.InterState)
				assert.True(t, result.Split.IGST.Equal(decimal.NewFromInt(167)))
			},
		},
		{
			name:  "no split without supplier state",
			args:  []string{"totals", "-f", "-"},
			stdin: invoiceJSON,
			validate: func(t *testing.T, out string) {
				assert.NotContains(t, out, "gstSplit")
			},
		},
		{
			name:    "unknown discount base",
			args:    []string{"totals", "--file", "-", "--discount-base", "gross"},
			stdin:   invoiceJSON,
			wantErr: "unknown discount base",
		},
		{
			name:    "malformed document",
			args:    []string{"totals", "--file", "-"},
			stdin:   `{"lines": [`,
			wantErr: "reading document",
		},
		{
			name:    "file flag is required",
			args:    []string{"totals"},
			wantErr: `required flag(s) "file" not set`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validate(t, out)
		})
	}
}

func TestCredentialFlow(t *testing.T) {
	server := fakegst.New()
	defer server.Close()

	client, err := gstapi.NewClient(server.URL, zaptest.NewLogger(t))
	require.NoError(t, err)
	draft, err := gst.NewCredential(uuid.New(), "27AAPFU0939F1ZV", "gst@example.com", "27", "")
	require.NoError(t, err)
	created, err := client.CreateCredential(context.Background(), draft)
	require.NoError(t, err)
	id := created.ID.String()

	out, err := execute(t, "", "credential", "otp", "--base-url", server.URL, "--id", id)
	require.NoError(t, err)
	var otpOut map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &otpOut))
	require.NotEmpty(t, otpOut["transactionId"])

	code, err := server.OTP(id)
	require.NoError(t, err)
	out, err = execute(t, "", "credential", "authenticate", "--base-url", server.URL,
		"--id", id, "--otp", code, "--transaction", otpOut["transactionId"])
	require.NoError(t, err)
	assert.Contains(t, out, `"authStatus": "AUTHENTICATED"`)
	assert.Contains(t, out, "tokenExpiry")

	out, err = execute(t, "", "credential", "status", "--base-url", server.URL, "--id", id)
	require.NoError(t, err)
	var report gst.StatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Authenticated)
	assert.False(t, report.TokenExpired)
}

func TestCredentialStatus_BadID(t *testing.T) {
	_, err := execute(t, "", "credential", "status", "--base-url", "http://127.0.0.1:1", "--id", "nope")
	assert.ErrorContains(t, err, "--id must be a UUID")
}
