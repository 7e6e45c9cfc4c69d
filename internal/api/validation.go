package api

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest is the raw ingress create payload. Value stays
// raw so "100.555" and 100.555 both reach the same validation.
type CreateTransactionRequest struct {
	AccountExternalIDDebit  string          `json:"accountExternalIdDebit"`
	AccountExternalIDCredit string          `json:"accountExternalIdCredit"`
	TransferTypeID          int             `json:"transferTypeId"`
	Value                   json.RawMessage `json:"value"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var minValue = decimal.NewFromFloat(0.01)

// ValidateCreate checks the create payload and returns the parsed value
// together with any field errors. All fields are validated so a client
// sees every problem at once.
func ValidateCreate(req CreateTransactionRequest) (decimal.Decimal, []FieldError) {
	var errs []FieldError

	if !isUUIDv4(req.AccountExternalIDDebit) {
		errs = append(errs, FieldError{
			Field:   "accountExternalIdDebit",
			Message: "must be a valid UUIDv4",
		})
	}
	if !isUUIDv4(req.AccountExternalIDCredit) {
		errs = append(errs, FieldError{
			Field:   "accountExternalIdCredit",
			Message: "must be a valid UUIDv4",
		})
	}
	if req.TransferTypeID < 1 {
		errs = append(errs, FieldError{
			Field:   "transferTypeId",
			Message: "must be an integer of at least 1",
		})
	}

	value, valueErrs := validateValue(req.Value)
	errs = append(errs, valueErrs...)

	return value, errs
}

func validateValue(raw json.RawMessage) (decimal.Decimal, []FieldError) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, []FieldError{{Field: "value", Message: "is required"}}
	}

	// Accept the value as a JSON number or a quoted decimal string;
	// stripping the quotes puts both through the same parse.
	value, err := decimal.NewFromString(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	if err != nil {
		return decimal.Zero, []FieldError{{Field: "value", Message: "must be a decimal number"}}
	}
	if value.LessThan(minValue) {
		return value, []FieldError{{Field: "value", Message: "must be at least 0.01"}}
	}
	if value.Exponent() < -2 {
		return value, []FieldError{{Field: "value", Message: "must have at most 2 decimal places"}}
	}
	return value, nil
}

func isUUIDv4(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4
}
