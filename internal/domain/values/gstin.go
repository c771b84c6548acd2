package values

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

var (
	// 2-digit state, 10-char PAN, entity number, fixed 'Z', checksum character
	gstinRegex = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

	stateCodeRegex = regexp.MustCompile(`^[0-9]{2}$`)
)

// GSTIN is a validated Goods & Services Tax Identification Number.
type GSTIN struct {
	value string
}

// NewGSTIN trims and upper-cases the input before matching the 15-character pattern.
func NewGSTIN(raw string) (GSTIN, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return GSTIN{}, errors.NewValidationError("INVALID_GSTIN", "gstin cannot be empty")
	}
	if len(normalized) != 15 {
		return GSTIN{}, errors.NewValidationError("INVALID_GSTIN", "gstin must be exactly 15 characters")
	}
	if !gstinRegex.MatchString(normalized) {
		return GSTIN{}, errors.NewValidationError("INVALID_GSTIN", "gstin does not match the required format")
	}
	return GSTIN{value: normalized}, nil
}

// IsValidGSTIN reports whether raw is a well-formed GSTIN.
func IsValidGSTIN(raw string) bool {
	_, err := NewGSTIN(raw)
	return err == nil
}

// MustNewGSTIN creates a GSTIN and panics on error (for constants/tests)
func MustNewGSTIN(raw string) GSTIN {
	g, err := NewGSTIN(raw)
	if err != nil {
		panic(err)
	}
	return g
}

func (g GSTIN) String() string {
	return g.value
}

func (g GSTIN) IsEmpty() bool {
	return g.value == ""
}

// StateCode returns the two leading digits.
func (g GSTIN) StateCode() string {
	if len(g.value) < 2 {
		return ""
	}
	return g.value[:2]
}

// PAN returns the embedded permanent account number.
func (g GSTIN) PAN() string {
	if len(g.value) < 12 {
		return ""
	}
	return g.value[2:12]
}

func (g GSTIN) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.value)
}

func (g *GSTIN) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewGSTIN(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// StateCode is a two-digit GST state code.
type StateCode struct {
	value string
}

func NewStateCode(raw string) (StateCode, error) {
	trimmed := strings.TrimSpace(raw)
	if !stateCodeRegex.MatchString(trimmed) {
		return StateCode{}, errors.NewValidationError("INVALID_STATE_CODE", "state code must be exactly 2 digits")
	}
	return StateCode{value: trimmed}, nil
}

// IsValidStateCode reports whether raw is a two-digit state code.
func IsValidStateCode(raw string) bool {
	_, err := NewStateCode(raw)
	return err == nil
}

func (s StateCode) String() string {
	return s.value
}

func (s StateCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

func (s *StateCode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewStateCode(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
