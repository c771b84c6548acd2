package values

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		currency string
		wantErr  bool
	}{
		{
			name:     "valid INR amount",
			amount:   decimal.RequireFromString("1062.00"),
			currency: INR,
		},
		{
			name:     "lower-case currency is normalized",
			amount:   decimal.NewFromInt(10),
			currency: "inr",
		},
		{
			name:     "zero amount",
			amount:   decimal.Zero,
			currency: INR,
		},
		{
			name:     "empty currency",
			amount:   decimal.NewFromInt(100),
			currency: "",
			wantErr:  true,
		},
		{
			name:     "unsupported currency",
			amount:   decimal.NewFromInt(100),
			currency: "XYZ",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := NewMoney(tt.amount, tt.currency)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}

			require.NoError(t, err)
			assert.True(t, money.Amount().Equal(tt.amount))
			assert.Equal(t, INR, money.Currency())
		})
	}
}

func TestMoney_Rounding(t *testing.T) {
	third, err := NewMoney(decimal.NewFromInt(900).Div(decimal.NewFromInt(3)).Add(decimal.RequireFromString("0.005")), INR)
	require.NoError(t, err)
	assert.Equal(t, "300.01", third.RoundToPaise().Amount().String())
	assert.False(t, third.Amount().Equal(third.RoundToPaise().Amount()), "rounding is explicit")
	assert.Equal(t, "300.01 INR", third.StringWithCode())
	assert.Equal(t, INR, third.Round(0).Currency())
}

func TestMoney_JSON(t *testing.T) {
	m, err := NewMoney(decimal.RequireFromString("12.5"), INR)
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.50","currency":"INR"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Amount().Equal(decimal.RequireFromString("12.5")))

	err = json.Unmarshal([]byte(`{"amount":"abc","currency":"INR"}`), &decoded)
	assert.Equal(t, "INVALID_AMOUNT", errors.Code(err))

	err = json.Unmarshal([]byte(`{"amount":"1","currency":"XYZ"}`), &decoded)
	assert.Equal(t, "INVALID_CURRENCY", errors.Code(err))
}
