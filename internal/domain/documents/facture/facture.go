// Package facture provides the Facture document and its edit session.
package facture

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"facturation/internal/core/apperror"
	"facturation/internal/core/entity"
	"facturation/internal/core/id"
	"facturation/internal/core/types"
	"facturation/internal/domain/documents/facture/lines"
)

// Facture is an invoice as the backend stores it.
type Facture struct {
	entity.Document

	// ClientName is the billed party
	ClientName string `db:"client_name" json:"clientName"`

	// Ristourne is a flat discount subtracted from the gross total
	Ristourne decimal.Decimal `db:"ristourne" json:"ristourne"`

	// Totals (calculated from lines)
	TotalGross decimal.Decimal `db:"total_gross" json:"totalGross"`
	TotalNet   decimal.Decimal `db:"total_net" json:"totalNet"`

	// Table part: billed lines
	Lines []Line `db:"-" json:"lines"`
}

// Line is the persisted shape of a facture line: plain codes, no descriptors.
type Line struct {
	LineID *id.ID `db:"line_id" json:"lineId,omitempty"`
	LineNo int    `db:"line_no" json:"lineNo"`

	Description      string `db:"description" json:"description"`
	DatesDescription string `db:"dates_description" json:"datesDescription,omitempty"`

	ServiceCode string `db:"service_code" json:"serviceCode"`
	UnitCode    string `db:"unit_code" json:"unitCode"`

	Quantity  types.NullDecimal `db:"quantity" json:"quantity"`
	UnitPrice types.NullDecimal `db:"unit_price" json:"unitPrice"`
	Amount    decimal.Decimal   `db:"amount" json:"amount"`
}

// NewFacture creates a new, unsaved facture dated today.
func NewFacture(clientName string) *Facture {
	return &Facture{
		Document:   entity.NewDocument(),
		ClientName: clientName,
		Lines:      make([]Line, 0),
	}
}

// Validate implements entity.Validatable.
// Line content is checked by the editor; this covers the header.
func (f *Facture) Validate(ctx context.Context) error {
	if err := f.Document.Validate(ctx); err != nil {
		return err
	}

	if strings.TrimSpace(f.ClientName) == "" {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientName")
	}

	if f.Ristourne.IsNegative() {
		return apperror.NewValidation("ristourne must not be negative").
			WithDetail("field", "ristourne")
	}

	if len(f.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	return nil
}

// recalculateTotals updates document totals from lines.
func (f *Facture) recalculateTotals() {
	gross := decimal.Zero
	for _, l := range f.Lines {
		gross = gross.Add(l.Amount)
	}
	f.TotalGross = gross
	f.TotalNet = lines.NetTotal(gross, f.Ristourne)
}

// ToLineItems converts persisted lines into editor lines.
func ToLineItems(in []Line) []lines.LineItem {
	return lo.Map(in, func(l Line, _ int) lines.LineItem {
		return lines.LineItem{
			ID:               l.LineID,
			Order:            l.LineNo,
			Description:      l.Description,
			DatesDescription: l.DatesDescription,
			ServiceCode:      l.ServiceCode,
			UnitCode:         l.UnitCode,
			Quantity:         l.Quantity,
			UnitPrice:        l.UnitPrice,
			LineTotal:        l.Amount,
		}
	})
}

// FromLineItems maps editor lines back to the persisted shape, dropping descriptors.
func FromLineItems(in []lines.LineItem) []Line {
	return lo.Map(in, func(l lines.LineItem, _ int) Line {
		return Line{
			LineID:           l.ID,
			LineNo:           l.Order,
			Description:      strings.TrimSpace(l.Description),
			DatesDescription: strings.TrimSpace(l.DatesDescription),
			ServiceCode:      l.ServiceCode,
			UnitCode:         l.UnitCode,
			Quantity:         l.Quantity,
			UnitPrice:        l.UnitPrice,
			Amount:           l.LineTotal,
		}
	})
}
