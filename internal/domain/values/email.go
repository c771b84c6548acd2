package values

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

// Email represents a validated email address value object
type Email struct {
	address string
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// NewEmail creates a new Email value object with validation
func NewEmail(address string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(address))
	if normalized == "" {
		return Email{}, errors.NewValidationError("INVALID_EMAIL", "email address cannot be empty")
	}

	parsed, err := mail.ParseAddress(normalized)
	if err != nil {
		return Email{}, errors.NewValidationError("INVALID_EMAIL", "invalid email format").WithCause(err)
	}

	if !emailRegex.MatchString(parsed.Address) {
		return Email{}, errors.NewValidationError("INVALID_EMAIL", "email address does not meet format requirements")
	}

	if len(parsed.Address) > 254 {
		return Email{}, errors.NewValidationError("INVALID_EMAIL", "email address too long (max 254 characters)")
	}

	return Email{address: parsed.Address}, nil
}

// MustNewEmail creates Email and panics on error (for constants/tests)
func MustNewEmail(address string) Email {
	email, err := NewEmail(address)
	if err != nil {
		panic(err)
	}
	return email
}

func (e Email) String() string {
	return e.address
}

func (e Email) IsEmpty() bool {
	return e.address == ""
}

func (e Email) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.address)
}

func (e *Email) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewEmail(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
