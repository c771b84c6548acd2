package values

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

// Money represents a monetary value with currency. Amounts keep full decimal
// precision; rounding happens only through Round / RoundToPaise.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Common currency codes (ISO 4217)
const (
	INR = "INR"
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
)

// NewMoney creates a new Money value object
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := validateCurrency(currency); err != nil {
		return Money{}, err
	}

	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyFromString creates Money from string amount and currency
func NewMoneyFromString(amount, currency string) (Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, errors.NewValidationError("INVALID_AMOUNT", "amount is not a number").WithCause(err)
	}

	return NewMoney(dec, currency)
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() string {
	return m.currency
}

// StringWithCode returns the amount with its currency code, e.g. "1062.00 INR".
func (m Money) StringWithCode() string {
	return m.amount.StringFixed(2) + " " + m.currency
}

// Round rounds the amount half away from zero to the given places
func (m Money) Round(places int32) Money {
	return Money{
		amount:   m.amount.Round(places),
		currency: m.currency,
	}
}

// RoundToPaise rounds to 2 decimal places
func (m Money) RoundToPaise() Money {
	return m.Round(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	data := struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(2),
		Currency: m.currency,
	}
	return json.Marshal(data)
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var temp struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	money, err := NewMoneyFromString(temp.Amount, temp.Currency)
	if err != nil {
		return err
	}

	*m = money
	return nil
}

func validateCurrency(currency string) error {
	if currency == "" {
		return errors.NewValidationError("INVALID_CURRENCY", "currency cannot be empty")
	}

	if len(currency) != 3 {
		return errors.NewValidationError("INVALID_CURRENCY", "currency code must be 3 characters")
	}

	validCurrencies := map[string]bool{
		INR: true, USD: true, EUR: true, GBP: true,
		"AED": true, "SGD": true, "JPY": true, "AUD": true,
	}

	if !validCurrencies[currency] {
		return errors.NewValidationError("INVALID_CURRENCY", fmt.Sprintf("unsupported currency: %s", currency))
	}

	return nil
}
