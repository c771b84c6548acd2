package rest

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/gstbooks/internal/domain/values"
)

const maxBodySize = 1 << 20

// newValidator registers the GST value-object tags used by request DTOs.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validator: %v", tag, err))
		}
	}
	must("gstin", stringRule(values.IsValidGSTIN))
	must("statecode", stringRule(values.IsValidStateCode))
	must("returnperiod", stringRule(values.IsValidReturnPeriod))
	must("financialyear", stringRule(values.IsValidFinancialYear))
	must("decimal", stringRule(func(s string) bool {
		_, err := decimal.NewFromString(s)
		return err == nil
	}))
	return v
}

func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return ok(fl.Field().String())
	}
}

// decode reads a JSON body into v and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return h.validateStruct(v)
}

func (h *Handler) validateStruct(v interface{}) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}
	fields := make(map[string][]string)
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return &fieldErrors{fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Must be a valid UUID"
	case "email":
		return "Must be a valid email address"
	case "ip":
		return "Must be a valid IP address"
	case "numeric":
		return "Must contain only digits"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "gstin":
		return "Must be a valid 15-character GSTIN"
	case "statecode":
		return "Must be a two-digit state code"
	case "returnperiod":
		return "Must be a return period in MMYY format"
	case "financialyear":
		return "Must be a financial year in YYYY-YY format"
	case "decimal":
		return "Must be a decimal number"
	default:
		return fmt.Sprintf("Failed %s validation", fe.Tag())
	}
}
