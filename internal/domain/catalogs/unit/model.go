// Package unit provides the Unit catalog (units a facture line is billed in: hour, day, flat fee...).
package unit

import (
	"context"

	"facturation/internal/core/entity"
)

// Unit represents a billing unit.
type Unit struct {
	entity.Catalog

	// Symbol is the short label printed on factures (e.g. "h", "d")
	Symbol string `db:"symbol" json:"symbol,omitempty"`
}

// NewUnit creates a new Unit with required fields.
func NewUnit(code, name string) *Unit {
	return &Unit{
		Catalog: entity.NewCatalog(code, name),
	}
}

// Validate implements entity.Validatable interface.
func (u *Unit) Validate(ctx context.Context) error {
	return u.Catalog.Validate(ctx)
}

// Label returns the symbol when set, the display name otherwise.
func (u *Unit) Label() string {
	if u.Symbol != "" {
		return u.Symbol
	}
	return u.DisplayName()
}
