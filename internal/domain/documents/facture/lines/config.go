package lines

import (
	"github.com/shopspring/decimal"
)

// Config parameterizes a line editor. It is passed explicitly at construction
// time; nothing is read from process-wide state.
type Config struct {
	// DefaultServiceCode pre-fills the blank line of a new facture
	DefaultServiceCode string

	// DefaultUnitsByService maps service code to the unit code preselected for it.
	// Consulted before the service's own default unit.
	DefaultUnitsByService map[string]string

	MaxDescriptionLength      int
	MaxDatesDescriptionLength int
	MaxQuantity               decimal.Decimal
	MaxUnitPrice              decimal.Decimal

	// TotalTolerance is the accepted absolute gap between lineTotal and quantity × unitPrice
	TotalTolerance decimal.Decimal

	// CopyPrefix decorates the description of a copied line
	CopyPrefix string

	// DeriveQuantityFromDates sets quantity to the number of dates found in datesDescription
	DeriveQuantityFromDates bool
}

// DefaultConfig returns the limits the facture backend enforces.
func DefaultConfig() Config {
	return Config{
		DefaultUnitsByService:     map[string]string{},
		MaxDescriptionLength:      200,
		MaxDatesDescriptionLength: 100,
		MaxQuantity:               decimal.NewFromInt(1_000_000),
		MaxUnitPrice:              decimal.NewFromInt(1_000_000),
		TotalTolerance:            decimal.New(1, -2),
		CopyPrefix:                "Copy of ",
		DeriveQuantityFromDates:   true,
	}
}

// withDefaults fills zero-valued limits from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultUnitsByService == nil {
		c.DefaultUnitsByService = d.DefaultUnitsByService
	}
	if c.MaxDescriptionLength <= 0 {
		c.MaxDescriptionLength = d.MaxDescriptionLength
	}
	if c.MaxDatesDescriptionLength <= 0 {
		c.MaxDatesDescriptionLength = d.MaxDatesDescriptionLength
	}
	if !c.MaxQuantity.IsPositive() {
		c.MaxQuantity = d.MaxQuantity
	}
	if !c.MaxUnitPrice.IsPositive() {
		c.MaxUnitPrice = d.MaxUnitPrice
	}
	if !c.TotalTolerance.IsPositive() {
		c.TotalTolerance = d.TotalTolerance
	}
	if c.CopyPrefix == "" {
		c.CopyPrefix = d.CopyPrefix
	}
	return c
}
