// Package service provides the Service catalog (billable services a facture line refers to).
package service

import (
	"context"

	"github.com/samber/lo"

	"facturation/internal/core/apperror"
	"facturation/internal/core/entity"
)

// LinkedUnit is a unit a service may be billed in.
type LinkedUnit struct {
	Code string `db:"unit_code" json:"code"`
	Name string `db:"unit_name" json:"name"`

	// IsDefault marks the unit preselected when the service is chosen
	IsDefault bool `db:"is_default" json:"isDefault"`
}

// Service represents a billable service.
type Service struct {
	entity.Catalog

	// DefaultUnitCode is the service's own default-unit reference
	DefaultUnitCode *string `db:"default_unit_code" json:"defaultUnitCode,omitempty"`

	// LinkedUnits lists the units this service may be billed in.
	// Empty means the catalog carries no linkage information for it.
	LinkedUnits []LinkedUnit `db:"-" json:"linkedUnits,omitempty"`
}

// NewService creates a new Service with required fields.
func NewService(code, name string) *Service {
	return &Service{
		Catalog: entity.NewCatalog(code, name),
	}
}

// WithDefaultUnit sets the service's default unit reference.
func (s *Service) WithDefaultUnit(unitCode string) *Service {
	s.DefaultUnitCode = lo.ToPtr(unitCode)
	return s
}

// WithLinkedUnit appends a linked unit.
func (s *Service) WithLinkedUnit(code, name string, isDefault bool) *Service {
	s.LinkedUnits = append(s.LinkedUnits, LinkedUnit{Code: code, Name: name, IsDefault: isDefault})
	return s
}

// Validate implements entity.Validatable interface.
func (s *Service) Validate(ctx context.Context) error {
	if err := s.Catalog.Validate(ctx); err != nil {
		return err
	}

	defaults := lo.CountBy(s.LinkedUnits, func(l LinkedUnit) bool { return l.IsDefault })
	if defaults > 1 {
		return apperror.NewValidation("only one linked unit can be the default").
			WithDetail("field", "linkedUnits").
			WithDetail("code", s.Code)
	}

	return nil
}

// DefaultLinkedUnit returns the linked unit flagged as default, if any.
func (s *Service) DefaultLinkedUnit() (LinkedUnit, bool) {
	return lo.Find(s.LinkedUnits, func(l LinkedUnit) bool { return l.IsDefault })
}

// HasLinkage reports whether the catalog declares which units the service accepts.
func (s *Service) HasLinkage() bool {
	return len(s.LinkedUnits) > 0 || (s.DefaultUnitCode != nil && *s.DefaultUnitCode != "")
}

// AcceptsUnit reports whether unitCode is compatible with the service.
// A service without linkage information accepts any unit.
func (s *Service) AcceptsUnit(unitCode string) bool {
	if !s.HasLinkage() {
		return true
	}
	if s.DefaultUnitCode != nil && *s.DefaultUnitCode == unitCode {
		return true
	}
	return lo.ContainsBy(s.LinkedUnits, func(l LinkedUnit) bool { return l.Code == unitCode })
}
