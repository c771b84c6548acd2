package values

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

var (
	returnPeriodRegex  = regexp.MustCompile(`^[0-9]{4}$`)
	financialYearRegex = regexp.MustCompile(`^([0-9]{4})-([0-9]{2})$`)
)

// ReturnPeriod is a GST return period in MMYY form, e.g. "0424" for April 2024.
type ReturnPeriod struct {
	month int
	year  int
}

func NewReturnPeriod(raw string) (ReturnPeriod, error) {
	if !returnPeriodRegex.MatchString(raw) {
		return ReturnPeriod{}, errors.NewValidationError("INVALID_RETURN_PERIOD", "return period must be 4 digits in MMYY form")
	}
	month, _ := strconv.Atoi(raw[:2])
	yy, _ := strconv.Atoi(raw[2:])
	if month < 1 || month > 12 {
		return ReturnPeriod{}, errors.NewValidationError("INVALID_RETURN_PERIOD", fmt.Sprintf("return period month %02d is out of range", month))
	}
	return ReturnPeriod{month: month, year: 2000 + yy}, nil
}

func IsValidReturnPeriod(raw string) bool {
	_, err := NewReturnPeriod(raw)
	return err == nil
}

func (p ReturnPeriod) Month() int { return p.month }

// Year returns the four-digit calendar year.
func (p ReturnPeriod) Year() int { return p.year }

func (p ReturnPeriod) IsZero() bool { return p.month == 0 }

func (p ReturnPeriod) String() string {
	return fmt.Sprintf("%02d%02d", p.month, p.year%100)
}

func (p ReturnPeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *ReturnPeriod) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewReturnPeriod(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// FinancialYear is an April–March year written "YYYY-YY", e.g. "2024-25".
type FinancialYear struct {
	startYear int
}

func NewFinancialYear(raw string) (FinancialYear, error) {
	m := financialYearRegex.FindStringSubmatch(raw)
	if m == nil {
		return FinancialYear{}, errors.NewValidationError("INVALID_FINANCIAL_YEAR", "financial year must be in YYYY-YY form")
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if (start+1)%100 != end {
		return FinancialYear{}, errors.NewValidationError(
			"INVALID_FINANCIAL_YEAR",
			fmt.Sprintf("financial year %s does not span consecutive years", raw),
		)
	}
	return FinancialYear{startYear: start}, nil
}

func IsValidFinancialYear(raw string) bool {
	_, err := NewFinancialYear(raw)
	return err == nil
}

func (f FinancialYear) StartYear() int { return f.startYear }

func (f FinancialYear) EndYear() int { return f.startYear + 1 }

// Contains reports whether the period falls between April of the start year
// and March of the end year.
func (f FinancialYear) Contains(p ReturnPeriod) bool {
	switch p.Year() {
	case f.startYear:
		return p.Month() >= 4
	case f.startYear + 1:
		return p.Month() <= 3
	default:
		return false
	}
}

func (f FinancialYear) String() string {
	return fmt.Sprintf("%04d-%02d", f.startYear, (f.startYear+1)%100)
}

func (f FinancialYear) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *FinancialYear) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewFinancialYear(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
