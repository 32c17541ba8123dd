// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"facturation/internal/core/apperror"
	"facturation/internal/core/id"
	"facturation/internal/core/types"
	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
	"facturation/internal/domain/documents/facture"
	"facturation/internal/domain/documents/facture/lines"
)

// --- Requests ---

// LineRequest is a facture line as sent by the client.
type LineRequest struct {
	ID               *string           `json:"id"`
	Description      string            `json:"description"`
	DatesDescription string            `json:"datesDescription"`
	ServiceCode      string            `json:"serviceCode"`
	UnitCode         string            `json:"unitCode"`
	Quantity         types.NullDecimal `json:"quantity"`
	UnitPrice        types.NullDecimal `json:"unitPrice"`
}

// ToLine converts the request into a persisted-shape line numbered lineNo.
func (r LineRequest) ToLine(lineNo int) (facture.Line, error) {
	lineID, err := id.ParseOptional(r.ID)
	if err != nil {
		return facture.Line{}, apperror.NewInvalidInput("invalid line id").
			WithDetail("line", lineNo).
			WithCause(err)
	}
	return facture.Line{
		LineID:           lineID,
		LineNo:           lineNo,
		Description:      r.Description,
		DatesDescription: r.DatesDescription,
		ServiceCode:      r.ServiceCode,
		UnitCode:         r.UnitCode,
		Quantity:         r.Quantity,
		UnitPrice:        r.UnitPrice,
		Amount:           lines.LineTotal(r.Quantity, r.UnitPrice),
	}, nil
}

// ToLines converts request lines, numbering them from 1.
func ToLines(in []LineRequest) ([]facture.Line, error) {
	out := make([]facture.Line, 0, len(in))
	for i, r := range in {
		l, err := r.ToLine(i + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// OpenEditorRequest opens an edit session. With FactureID the facture is
// loaded from storage and the remaining fields are ignored.
type OpenEditorRequest struct {
	FactureID string `json:"factureId"`

	// Number marks an already issued facture edited without storage
	Number string `json:"number"`

	ClientName string            `json:"clientName"`
	Date       *time.Time        `json:"date"`
	Comment    string            `json:"comment"`
	Ristourne  types.NullDecimal `json:"ristourne"`
	Lines      []LineRequest     `json:"lines"`
	ReadOnly   bool              `json:"readOnly"`
}

// ToFacture builds the facture described by the request.
func (r OpenEditorRequest) ToFacture() (*facture.Facture, error) {
	doc := facture.NewFacture(r.ClientName)
	doc.Number = r.Number
	doc.Comment = r.Comment
	if r.Date != nil {
		doc.Date = r.Date.UTC()
	}
	if r.Ristourne.Valid {
		if r.Ristourne.Decimal.IsNegative() {
			return nil, apperror.NewValidation("ristourne must not be negative").
				WithDetail("field", "ristourne")
		}
		doc.Ristourne = r.Ristourne.Decimal
	}

	l, err := ToLines(r.Lines)
	if err != nil {
		return nil, err
	}
	doc.Lines = l
	return doc, nil
}

// AddLineRequest appends a line. A nil DefaultServiceCode uses the configured one.
type AddLineRequest struct {
	DefaultServiceCode *string           `json:"defaultServiceCode"`
	DefaultUnits       map[string]string `json:"defaultUnits"`
}

// ReorderRequest moves the line at Source to Target.
type ReorderRequest struct {
	Source *int `json:"source" binding:"required"`
	Target *int `json:"target" binding:"required"`
}

// DragRequest addresses a line during a drag gesture.
type DragRequest struct {
	Index *int `json:"index" binding:"required"`
}

// RistourneRequest sets the flat discount.
type RistourneRequest struct {
	Amount types.NullDecimal `json:"amount"`
}

// HeaderRequest updates the facture header.
type HeaderRequest struct {
	ClientName string     `json:"clientName"`
	Date       *time.Time `json:"date"`
	Comment    string     `json:"comment"`
}

// ReplaceLinesRequest swaps the whole line set.
type ReplaceLinesRequest struct {
	Lines []LineRequest `json:"lines"`
}

// DecodeLinePatch turns a PATCH body into a line patch. Each key is one
// field; text fields take a string or null, "unit" takes a {code, name}
// object, a code string or null, numeric fields take a number, a string or
// null. Numeric text that does not parse is kept as an absent value and
// reported by validation.
func DecodeLinePatch(body map[string]json.RawMessage) (lines.Patch, error) {
	var p lines.Patch
	if len(body) == 0 {
		return p, apperror.NewInvalidInput("patch is empty")
	}

	// Stable order so the reported field is deterministic.
	keys := lo.Keys(body)
	sort.Strings(keys)

	for _, key := range keys {
		field := lines.Field(key)
		value, err := decodeFieldValue(field, body[key])
		if err != nil {
			return lines.Patch{}, apperror.NewInvalidInput(err.Error()).WithDetail("field", key)
		}
		fp, err := lines.PatchFor(field, value)
		if err != nil {
			return lines.Patch{}, apperror.NewInvalidInput(err.Error()).WithDetail("field", key)
		}
		p = p.Merge(fp)
	}
	return p, nil
}

func decodeFieldValue(field lines.Field, raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("field %s: %w", field, err)
	}

	switch field {
	case lines.FieldUnit:
		if _, ok := v.(map[string]any); ok {
			var ref lines.UnitRef
			if err := json.Unmarshal(raw, &ref); err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			return ref, nil
		}
		return v, nil

	case lines.FieldQuantity, lines.FieldUnitPrice:
		switch n := v.(type) {
		case nil:
			return nil, nil
		case float64:
			// Keep the literal text so decimals are not routed through float64.
			return string(raw), nil
		case string:
			return n, nil
		default:
			return nil, fmt.Errorf("field %s: expected a number", field)
		}

	default:
		return v, nil
	}
}

// --- Responses ---

// ServiceResponse is a catalog service with its linked units.
type ServiceResponse struct {
	Code            string               `json:"code"`
	Name            string               `json:"name"`
	DefaultUnitCode *string              `json:"defaultUnitCode,omitempty"`
	Units           []LinkedUnitResponse `json:"units"`
}

// LinkedUnitResponse is one unit linked to a service.
type LinkedUnitResponse struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// UnitResponse is a catalog unit.
type UnitResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
}

// CatalogResponse lists the current catalog.
type CatalogResponse struct {
	Services []ServiceResponse `json:"services"`
	Units    []UnitResponse    `json:"units"`
	LoadedAt *time.Time        `json:"loadedAt,omitempty"`
}

// FromCatalog creates CatalogResponse from a catalog snapshot.
func FromCatalog(c *catalogs.Catalog, loadedAt time.Time) CatalogResponse {
	resp := CatalogResponse{
		Services: lo.Map(c.Services(), func(s *service.Service, _ int) ServiceResponse {
			return ServiceResponse{
				Code:            s.Code,
				Name:            s.Name,
				DefaultUnitCode: s.DefaultUnitCode,
				Units: lo.Map(s.LinkedUnits, func(l service.LinkedUnit, _ int) LinkedUnitResponse {
					return LinkedUnitResponse{Code: l.Code, Name: l.Name, IsDefault: l.IsDefault}
				}),
			}
		}),
		Units: lo.Map(c.Units(), func(u *unit.Unit, _ int) UnitResponse {
			return UnitResponse{Code: u.Code, Name: u.Name, Symbol: u.Symbol}
		}),
	}
	if !loadedAt.IsZero() {
		resp.LoadedAt = &loadedAt
	}
	return resp
}

// EditorResponse is the state of an edit session.
type EditorResponse struct {
	SessionID string `json:"sessionId"`
	facture.Snapshot
}

// NewEditorResponse wraps a snapshot with its session id.
func NewEditorResponse(sessionID string, s facture.Snapshot) EditorResponse {
	return EditorResponse{SessionID: sessionID, Snapshot: s}
}

// ValidationResponse is the outcome of a validation run.
type ValidationResponse struct {
	Valid       bool                     `json:"valid"`
	Submittable bool                     `json:"submittable"`
	Errors      lines.ValidationErrorMap `json:"errors"`
}

// DragOverResponse reports whether the dragged line may be dropped on the hovered index.
type DragOverResponse struct {
	Accepted bool `json:"accepted"`
}

// SubmitResponse is the persisted facture.
type SubmitResponse struct {
	Facture *facture.Facture `json:"facture"`
}

// RistourneAmount returns the requested discount, zero when absent.
func (r RistourneRequest) RistourneAmount() decimal.Decimal {
	return r.Amount.OrZero()
}
