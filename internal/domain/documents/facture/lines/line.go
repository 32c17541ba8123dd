// Package lines implements the facture line editor: an ordered, copy-on-write
// collection of line items with catalog enrichment, field validation, totals
// and drag reordering.
package lines

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"facturation/internal/core/id"
	"facturation/internal/core/types"
)

// ServiceRef is the service descriptor attached to a line for display.
type ServiceRef struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	DefaultUnitCode string `json:"defaultUnitCode,omitempty"`

	// Unknown marks a placeholder for a code missing from the catalog
	Unknown bool `json:"unknown,omitempty"`
}

// UnitRef is the unit descriptor attached to a line for display.
type UnitRef struct {
	Code string `json:"code"`
	Name string `json:"name"`

	// Synthesized marks a descriptor built from a code missing from the catalog
	Synthesized bool `json:"synthesized,omitempty"`
}

// LineItem is one billable row of a facture.
// Descriptor pointers are never mutated after being attached; updates replace them.
type LineItem struct {
	// ID is the persisted row identity; nil for lines not saved yet
	ID *id.ID `json:"id,omitempty"`

	// Order is 1-based and dense across the collection
	Order int `json:"order"`

	Description      string `json:"description"`
	DatesDescription string `json:"datesDescription,omitempty"`

	ServiceCode string      `json:"serviceCode"`
	Service     *ServiceRef `json:"service,omitempty"`

	UnitCode string   `json:"unitCode"`
	Unit     *UnitRef `json:"unit,omitempty"`

	Quantity  types.NullDecimal `json:"quantity"`
	UnitPrice types.NullDecimal `json:"unitPrice"`

	// LineTotal is derived from Quantity and UnitPrice
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Field names a line attribute addressed by UpdateField and by validation errors.
type Field string

const (
	FieldDescription      Field = "description"
	FieldDatesDescription Field = "datesDescription"
	FieldServiceCode      Field = "serviceCode"
	FieldUnitCode         Field = "unitCode"
	FieldUnit             Field = "unit"
	FieldQuantity         Field = "quantity"
	FieldUnitPrice        Field = "unitPrice"
	FieldLineTotal        Field = "lineTotal"
)

// Patch is a set of field changes applied to one line in a single transition.
// Nil members are left untouched.
type Patch struct {
	Description      *string            `json:"description,omitempty"`
	DatesDescription *string            `json:"datesDescription,omitempty"`
	ServiceCode      *string            `json:"serviceCode,omitempty"`
	UnitCode         *string            `json:"unitCode,omitempty"`
	Unit             *UnitRef           `json:"unit,omitempty"`
	Quantity         *types.NullDecimal `json:"quantity,omitempty"`
	UnitPrice        *types.NullDecimal `json:"unitPrice,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Description == nil &&
		p.DatesDescription == nil &&
		p.ServiceCode == nil &&
		p.UnitCode == nil &&
		p.Unit == nil &&
		p.Quantity == nil &&
		p.UnitPrice == nil
}

// Merge returns p with the members set in o applied on top.
func (p Patch) Merge(o Patch) Patch {
	if o.Description != nil {
		p.Description = o.Description
	}
	if o.DatesDescription != nil {
		p.DatesDescription = o.DatesDescription
	}
	if o.ServiceCode != nil {
		p.ServiceCode = o.ServiceCode
	}
	if o.UnitCode != nil {
		p.UnitCode = o.UnitCode
	}
	if o.Unit != nil {
		p.Unit = o.Unit
	}
	if o.Quantity != nil {
		p.Quantity = o.Quantity
	}
	if o.UnitPrice != nil {
		p.UnitPrice = o.UnitPrice
	}
	return p
}

// PatchFor converts a single (field, value) pair into a Patch.
//
// Text fields accept string or *string. FieldUnit accepts UnitRef, *UnitRef or
// a unit code string. Numeric fields accept decimal.Decimal, types.NullDecimal,
// int, int64, float64 or a user-entered string; text that is not a number
// becomes an absent value, which validation reports. nil clears the field.
func PatchFor(field Field, value any) (Patch, error) {
	var p Patch

	switch field {
	case FieldDescription, FieldDatesDescription, FieldServiceCode, FieldUnitCode:
		s, err := textValue(field, value)
		if err != nil {
			return p, err
		}
		switch field {
		case FieldDescription:
			p.Description = &s
		case FieldDatesDescription:
			p.DatesDescription = &s
		case FieldServiceCode:
			p.ServiceCode = &s
		default:
			p.UnitCode = &s
		}

	case FieldUnit:
		switch v := value.(type) {
		case nil:
			empty := ""
			p.UnitCode = &empty
		case UnitRef:
			p.Unit = &v
		case *UnitRef:
			if v == nil {
				empty := ""
				p.UnitCode = &empty
			} else {
				u := *v
				p.Unit = &u
			}
		case string:
			p.UnitCode = &v
		default:
			return p, fmt.Errorf("field %s: unsupported value type %T", field, value)
		}

	case FieldQuantity, FieldUnitPrice:
		n, err := numericValue(field, value)
		if err != nil {
			return p, err
		}
		if field == FieldQuantity {
			p.Quantity = &n
		} else {
			p.UnitPrice = &n
		}

	case FieldLineTotal:
		return p, fmt.Errorf("field %s is derived from quantity and unit price", field)

	default:
		return p, fmt.Errorf("unknown field %q", field)
	}

	return p, nil
}

func textValue(field Field, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	default:
		return "", fmt.Errorf("field %s: unsupported value type %T", field, value)
	}
}

func numericValue(field Field, value any) (types.NullDecimal, error) {
	switch v := value.(type) {
	case nil:
		return types.NullDecimal{}, nil
	case types.NullDecimal:
		return v, nil
	case *types.NullDecimal:
		if v == nil {
			return types.NullDecimal{}, nil
		}
		return *v, nil
	case decimal.Decimal:
		return types.NewNullDecimal(v), nil
	case int:
		return types.NewNullDecimal(decimal.NewFromInt(int64(v))), nil
	case int64:
		return types.NewNullDecimal(decimal.NewFromInt(v)), nil
	case float64:
		return types.NewNullDecimal(decimal.NewFromFloat(v)), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return types.NullDecimal{}, nil
		}
		d, err := types.ParseDecimal(v)
		if err != nil {
			return types.NullDecimal{}, nil
		}
		return types.NewNullDecimal(d), nil
	default:
		return types.NullDecimal{}, fmt.Errorf("field %s: unsupported value type %T", field, value)
	}
}

// Result reports the outcome of a store operation.
type Result int

const (
	// ResultOK means the operation was applied (or was a legitimate no-op).
	ResultOK Result = iota
	// ResultIndexOutOfRange means an index did not address an existing line.
	ResultIndexOutOfRange
	// ResultRejected means the operation is not allowed in the current state
	// (read-only collection, removing the last line, derived field...).
	ResultRejected
)

// OK reports whether the operation was applied.
func (r Result) OK() bool {
	return r == ResultOK
}

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultIndexOutOfRange:
		return "index_out_of_range"
	case ResultRejected:
		return "rejected"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// FieldErrors maps a field to its human-readable error message.
type FieldErrors map[Field]string

// ValidationErrorMap maps a line index to its field errors.
// Indices without errors are absent.
type ValidationErrorMap map[int]FieldErrors

// Clone returns a deep copy.
func (m ValidationErrorMap) Clone() ValidationErrorMap {
	out := make(ValidationErrorMap, len(m))
	for i, fe := range m {
		c := make(FieldErrors, len(fe))
		for f, msg := range fe {
			c[f] = msg
		}
		out[i] = c
	}
	return out
}

// permute re-keys the map after the collection was rearranged.
// perm[newIndex] holds the old index of the line now at newIndex.
func (m ValidationErrorMap) permute(perm []int) ValidationErrorMap {
	out := make(ValidationErrorMap, len(m))
	for newIdx, oldIdx := range perm {
		if fe, ok := m[oldIdx]; ok {
			out[newIdx] = fe
		}
	}
	return out
}

// withoutFields drops the given fields from the errors of one line.
func (m ValidationErrorMap) withoutFields(index int, fields []Field) ValidationErrorMap {
	if _, ok := m[index]; !ok || len(fields) == 0 {
		return m
	}

	out := m.Clone()
	for _, f := range fields {
		delete(out[index], f)
	}
	if len(out[index]) == 0 {
		delete(out, index)
	}
	return out
}
