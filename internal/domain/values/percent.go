package values

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

var hundred = decimal.NewFromInt(100)

// Percent is a percentage constrained to [0, 100].
type Percent struct {
	value decimal.Decimal
}

// NewPercent validates the range. field names the input in the error code.
func NewPercent(value decimal.Decimal, field string) (Percent, error) {
	if value.IsNegative() || value.GreaterThan(hundred) {
		return Percent{}, errors.NewValidationError(
			"INVALID_PERCENT",
			fmt.Sprintf("%s must be between 0 and 100, got %s", field, value.String()),
		).WithDetails(map[string]interface{}{"field": field})
	}
	return Percent{value: value}, nil
}

// MustNewPercent panics on error (for constants/tests)
func MustNewPercent(value decimal.Decimal) Percent {
	p, err := NewPercent(value, "percent")
	if err != nil {
		panic(err)
	}
	return p
}

func (p Percent) Decimal() decimal.Decimal {
	return p.value
}

// Fraction returns p/100 exactly.
func (p Percent) Fraction() decimal.Decimal {
	return p.value.Shift(-2)
}

func (p Percent) IsZero() bool {
	return p.value.IsZero()
}

func (p Percent) String() string {
	return p.value.String() + "%"
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value.String())
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return errors.NewValidationError("INVALID_PERCENT", "percent is not a number").WithCause(err)
	}
	parsed, err := NewPercent(d, "percent")
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
