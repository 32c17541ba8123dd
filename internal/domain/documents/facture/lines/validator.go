package lines

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"facturation/internal/domain/catalogs"
)

// ConsistencyWarning is an advisory about a line whose unit is not linked
// to its service in the catalog. It never blocks submission.
type ConsistencyWarning struct {
	Index       int    `json:"index"`
	Order       int    `json:"order"`
	ServiceCode string `json:"serviceCode"`
	UnitCode    string `json:"unitCode"`
	Message     string `json:"message"`
}

// Validator checks line fields against the configured limits and the catalog.
type Validator struct {
	cfg     Config
	catalog *catalogs.Catalog
}

// NewValidator creates a validator. Zero limits in cfg take their defaults.
func NewValidator(cfg Config, catalog *catalogs.Catalog) *Validator {
	if catalog == nil {
		catalog = catalogs.Empty()
	}
	return &Validator{cfg: cfg.withDefaults(), catalog: catalog}
}

// ValidateLine returns every rule the line violates, or nil.
// Rules are independent; all violations are reported together.
func (v *Validator) ValidateLine(line LineItem) FieldErrors {
	errs := FieldErrors{}

	desc := strings.TrimSpace(line.Description)
	switch {
	case desc == "":
		errs[FieldDescription] = "Description is required"
	case utf8.RuneCountInString(line.Description) > v.cfg.MaxDescriptionLength:
		errs[FieldDescription] = fmt.Sprintf("Description must not exceed %d characters", v.cfg.MaxDescriptionLength)
	}

	if utf8.RuneCountInString(line.DatesDescription) > v.cfg.MaxDatesDescriptionLength {
		errs[FieldDatesDescription] = fmt.Sprintf("Dates description must not exceed %d characters", v.cfg.MaxDatesDescriptionLength)
	}

	switch {
	case strings.TrimSpace(line.ServiceCode) == "":
		errs[FieldServiceCode] = "Service is required"
	case !v.catalog.HasService(line.ServiceCode):
		errs[FieldServiceCode] = fmt.Sprintf("Unknown service %q", line.ServiceCode)
	}

	switch {
	case strings.TrimSpace(line.UnitCode) == "":
		errs[FieldUnitCode] = "Unit is required"
	case !v.catalog.HasUnit(line.UnitCode):
		errs[FieldUnitCode] = fmt.Sprintf("Unknown unit %q", line.UnitCode)
	}

	switch {
	case !line.Quantity.Valid:
		errs[FieldQuantity] = "Quantity must be a number"
	case !line.Quantity.Decimal.IsPositive():
		errs[FieldQuantity] = "Quantity must be greater than 0"
	case line.Quantity.Decimal.GreaterThan(v.cfg.MaxQuantity):
		errs[FieldQuantity] = fmt.Sprintf("Quantity must not exceed %s", v.cfg.MaxQuantity.String())
	}

	switch {
	case !line.UnitPrice.Valid:
		errs[FieldUnitPrice] = "Unit price must be a number"
	case line.UnitPrice.Decimal.IsNegative():
		errs[FieldUnitPrice] = "Unit price must not be negative"
	case line.UnitPrice.Decimal.GreaterThan(v.cfg.MaxUnitPrice):
		errs[FieldUnitPrice] = fmt.Sprintf("Unit price must not exceed %s", v.cfg.MaxUnitPrice.String())
	}

	if line.Quantity.Valid && line.UnitPrice.Valid {
		expected := line.Quantity.Decimal.Mul(line.UnitPrice.Decimal)
		if line.LineTotal.Sub(expected).Abs().GreaterThan(v.cfg.TotalTolerance) {
			errs[FieldLineTotal] = "Line total does not match quantity × unit price"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateAll validates every line. Lines without violations are absent from the map.
func (v *Validator) ValidateAll(lines []LineItem) ValidationErrorMap {
	out := ValidationErrorMap{}
	for i, line := range lines {
		if errs := v.ValidateLine(line); errs != nil {
			out[i] = errs
		}
	}
	return out
}

// IsSubmittable is the gate for the submit action: a non-empty collection
// whose lines all carry a description, a service, a unit, a positive quantity
// and a positive unit price. It checks neither length limits, catalog
// membership nor the total; ValidateAll covers those.
func (v *Validator) IsSubmittable(lines []LineItem) bool {
	if len(lines) == 0 {
		return false
	}
	return lo.EveryBy(lines, func(l LineItem) bool {
		return strings.TrimSpace(l.Description) != "" &&
			strings.TrimSpace(l.ServiceCode) != "" &&
			strings.TrimSpace(l.UnitCode) != "" &&
			l.Quantity.Valid && l.Quantity.Decimal.IsPositive() &&
			l.UnitPrice.Valid && l.UnitPrice.Decimal.IsPositive()
	})
}

// CheckConsistency lists lines whose selected unit is not linked to their
// selected service. Lines missing either code, or referring to a service the
// catalog does not know, are skipped.
func (v *Validator) CheckConsistency(lines []LineItem) []ConsistencyWarning {
	var warnings []ConsistencyWarning
	for i, l := range lines {
		if l.ServiceCode == "" || l.UnitCode == "" || !v.catalog.HasService(l.ServiceCode) {
			continue
		}
		if v.catalog.IsUnitLinked(l.ServiceCode, l.UnitCode) {
			continue
		}
		warnings = append(warnings, ConsistencyWarning{
			Index:       i,
			Order:       l.Order,
			ServiceCode: l.ServiceCode,
			UnitCode:    l.UnitCode,
			Message:     fmt.Sprintf("Line %d: unit %q is not linked to service %q", l.Order, l.UnitCode, l.ServiceCode),
		})
	}
	return warnings
}
