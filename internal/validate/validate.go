// Package validate checks canonical records before they are written.
package validate

import (
	"database/sql"
	"errors"
	"reflect"
	"regexp"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/telemetry"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

func validateIdentifier(fl validator.FieldLevel) bool {
	return identifierRegex.MatchString(fl.Field().String())
}

// nullable values validate as their inner value, or as absent when unset.
func nullValue(field reflect.Value) any {
	switch v := field.Interface().(type) {
	case decimal.NullDecimal:
		if v.Valid {
			return v.Decimal.InexactFloat64()
		}
	case sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	}
	return nil
}

type Validator struct {
	validate *validator.Validate
	required []inventory.Column
	api      telemetry.API
}

func New(required []inventory.Column, api telemetry.API) *Validator {
	v := validator.New()
	_ = v.RegisterValidation("identifier", validateIdentifier)
	v.RegisterCustomTypeFunc(nullValue, decimal.NullDecimal{}, sql.NullInt64{}, sql.NullBool{})
	return &Validator{validate: v, required: required, api: api}
}

// Validate returns a *inventory.ValidationError naming every failing column.
// Disagreement between quantity and availability is only reported.
func (v *Validator) Validate(rec inventory.CanonicalRecord) error {
	var fields []string
	var errs []error

	err := v.validate.Struct(rec)
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		for _, fe := range invalid {
			fields = append(fields, fe.StructField())
			errs = append(errs, fe)
		}
	} else if err != nil {
		return &inventory.ValidationError{JoinKey: rec.JoinKey, Err: err}
	}

	for _, c := range v.required {
		if rec.IsBlank(c) {
			fields = append(fields, c.String())
			errs = append(errs, &requiredError{column: c})
		}
	}
	if len(errs) > 0 {
		return &inventory.ValidationError{
			JoinKey: rec.JoinKey,
			Fields:  fields,
			Err:     errors.Join(errs...),
		}
	}

	if rec.QuantityAvailable.Valid && rec.QuantityAvailable.Int64 > 0 &&
		rec.AvailableForSale.Valid && !rec.AvailableForSale.Bool {
		v.api.ReportWarning(
			"availability-mismatch",
			"join_key", rec.JoinKey,
			"quantity", rec.QuantityAvailable.Int64,
		)
	}
	return nil
}

// ValidateAll splits records into accepted ones, in input order, and
// rejections. Every rejection is reported with its join key.
func (v *Validator) ValidateAll(records []inventory.CanonicalRecord) ([]inventory.CanonicalRecord, []*inventory.ValidationError) {
	accepted := make([]inventory.CanonicalRecord, 0, len(records))
	var rejected []*inventory.ValidationError
	for _, rec := range records {
		err := v.Validate(rec)
		if err == nil {
			accepted = append(accepted, rec)
			continue
		}
		var verr *inventory.ValidationError
		if !errors.As(err, &verr) {
			verr = &inventory.ValidationError{JoinKey: rec.JoinKey, Err: err}
		}
		rejected = append(rejected, verr)
		v.api.ReportWarning(
			"rejected",
			"join_key", verr.JoinKey,
			"fields", verr.Fields,
			"err", verr.Err,
		)
	}
	return accepted, rejected
}

type requiredError struct {
	column inventory.Column
}

func (e *requiredError) Error() string {
	return e.column.String() + " is required"
}
