package domain

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "github.com/spsc/goldledger/pkg/errors"
)

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-Z\s]{3,}$`)
	phonePattern      = regexp.MustCompile(`^[0-9]{10}$`)
)

// NewValidator returns a validator with the ledger's custom rules registered:
//
//	personname - letters and spaces only, at least 3 characters
//	phone      - exactly 10 digits
//	money      - non-negative decimal with at most 2 fractional digits
func NewValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		return !d.IsNegative() && d.Exponent() >= -2
	})

	return v
}

// messages for violated rules, keyed by json field name. Every field reports
// its own message regardless of which tag tripped.
var fieldMessages = map[string]string{
	"applicationNumber": "application number is invalid, only alphanumeric characters are allowed",
	"username":          "username must be at least 3 characters long and contain only letters and spaces",
	"address":           "address must be at least 10 characters long",
	"goldGramWeight":    "gold gram weight must be a non-negative number with up to 2 decimal places",
	"amount":            "amount must be a non-negative number with up to 2 decimal places",
	"startDate":         "start date is not valid, use YYYY-MM-DD format",
	"endDate":           "end date is not valid, use YYYY-MM-DD format",
	"phoneNumber":       "phone number must be a valid 10-digit number",
	"borrowedMoney":     "borrowed money must be a non-negative number with up to 2 decimal places",
}

// ValidateEntryInput applies every per-field rule independently and reports
// all violated fields together, never failing fast on the first one.
func ValidateEntryInput(v *validator.Validate, in EntryInput) []apperrors.FieldError {
	err := v.Struct(in)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []apperrors.FieldError{{Field: "input", Message: err.Error()}}
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = "invalid value"
		}
		fields = append(fields, apperrors.FieldError{Field: fe.Field(), Message: msg})
	}
	return fields
}
