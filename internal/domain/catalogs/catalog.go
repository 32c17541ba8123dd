// Package catalogs holds the read-only reference data (services and units)
// shared by every facture editor session.
package catalogs

import (
	"context"
	"fmt"

	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
)

// Catalog is an immutable snapshot of services and units.
// Lookups return the first entry declared with a given code.
type Catalog struct {
	services []*service.Service
	units    []*unit.Unit

	servicesByCode map[string]*service.Service
	unitsByCode    map[string]*unit.Unit
}

// NewCatalog builds a snapshot. Nil entries are skipped.
func NewCatalog(services []*service.Service, units []*unit.Unit) *Catalog {
	c := &Catalog{
		services:       make([]*service.Service, 0, len(services)),
		units:          make([]*unit.Unit, 0, len(units)),
		servicesByCode: make(map[string]*service.Service, len(services)),
		unitsByCode:    make(map[string]*unit.Unit, len(units)),
	}

	for _, s := range services {
		if s == nil {
			continue
		}
		c.services = append(c.services, s)
		if _, seen := c.servicesByCode[s.Code]; !seen {
			c.servicesByCode[s.Code] = s
		}
	}

	for _, u := range units {
		if u == nil {
			continue
		}
		c.units = append(c.units, u)
		if _, seen := c.unitsByCode[u.Code]; !seen {
			c.unitsByCode[u.Code] = u
		}
	}

	return c
}

// Empty returns a catalog with no services and no units.
func Empty() *Catalog {
	return NewCatalog(nil, nil)
}

// Services returns the services in declaration order.
func (c *Catalog) Services() []*service.Service {
	out := make([]*service.Service, len(c.services))
	copy(out, c.services)
	return out
}

// Units returns the units in declaration order.
func (c *Catalog) Units() []*unit.Unit {
	out := make([]*unit.Unit, len(c.units))
	copy(out, c.units)
	return out
}

// Service looks up a service by code.
func (c *Catalog) Service(code string) (*service.Service, bool) {
	s, ok := c.servicesByCode[code]
	return s, ok
}

// Unit looks up a unit by code.
func (c *Catalog) Unit(code string) (*unit.Unit, bool) {
	u, ok := c.unitsByCode[code]
	return u, ok
}

// HasService reports whether code exists in the service catalog.
func (c *Catalog) HasService(code string) bool {
	_, ok := c.servicesByCode[code]
	return ok
}

// HasUnit reports whether code exists in the unit catalog.
func (c *Catalog) HasUnit(code string) bool {
	_, ok := c.unitsByCode[code]
	return ok
}

// IsUnitLinked reports whether unitCode may be used with serviceCode.
// Unknown services are never linked.
func (c *Catalog) IsUnitLinked(serviceCode, unitCode string) bool {
	s, ok := c.servicesByCode[serviceCode]
	if !ok {
		return false
	}
	return s.AcceptsUnit(unitCode)
}

// Validate checks every entry of the snapshot.
func (c *Catalog) Validate(ctx context.Context) error {
	for _, s := range c.services {
		if err := s.Validate(ctx); err != nil {
			return fmt.Errorf("service %q: %w", s.Code, err)
		}
	}
	for _, u := range c.units {
		if err := u.Validate(ctx); err != nil {
			return fmt.Errorf("unit %q: %w", u.Code, err)
		}
	}
	return nil
}

// Source loads a catalog snapshot.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// StaticSource serves a fixed set of services and units.
type StaticSource struct {
	Services []*service.Service
	Units    []*unit.Unit
}

// Load implements Source.
func (s StaticSource) Load(ctx context.Context) (*Catalog, error) {
	c := NewCatalog(s.Services, s.Units)
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
