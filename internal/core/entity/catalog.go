package entity

import (
	"context"
	"strings"

	"facturation/internal/core/apperror"
)

// Catalog is the base type for reference data (services, units).
// Reference data is identified by its business code, not by a surrogate ID.
type Catalog struct {
	// Code is the business identifier referenced by facture lines
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`
}

// NewCatalog creates a new Catalog entry.
func NewCatalog(code, name string) Catalog {
	return Catalog{
		Code: code,
		Name: name,
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Code) == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}

	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name").
			WithDetail("code", c.Code)
	}

	return nil
}

// DisplayName returns the name, falling back to the code.
func (c *Catalog) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Code
}
