package lines

import (
	"strings"

	"facturation/internal/domain/catalogs"
	"facturation/pkg/logger"
)

// Resolver attaches catalog descriptors to bare service and unit codes.
// It never fails: misses degrade to placeholder descriptors and are logged.
type Resolver struct {
	catalog      *catalogs.Catalog
	defaultUnits map[string]string
	log          *logger.Logger
}

// NewResolver creates a resolver over a read-only catalog snapshot.
// defaultUnits is the per-service default unit table consulted first by DefaultUnitFor.
func NewResolver(catalog *catalogs.Catalog, defaultUnits map[string]string, log *logger.Logger) *Resolver {
	if catalog == nil {
		catalog = catalogs.Empty()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		catalog:      catalog,
		defaultUnits: defaultUnits,
		log:          log.WithComponent("lines.resolver"),
	}
}

// Catalog returns the snapshot the resolver reads from.
func (r *Resolver) Catalog() *catalogs.Catalog {
	return r.catalog
}

// ResolveService returns the descriptor for code, an Unknown placeholder when
// the catalog has no such service, or nil for a blank code.
func (r *Resolver) ResolveService(code string) *ServiceRef {
	if strings.TrimSpace(code) == "" {
		return nil
	}

	s, ok := r.catalog.Service(code)
	if !ok {
		r.log.Debugw("service not found in catalog", "service_code", code)
		return &ServiceRef{Code: code, Name: code, Unknown: true}
	}

	ref := &ServiceRef{Code: s.Code, Name: s.Name}
	if s.DefaultUnitCode != nil {
		ref.DefaultUnitCode = *s.DefaultUnitCode
	}
	return ref
}

// ResolveUnit returns the descriptor for code. A code missing from the
// catalog yields a synthesized {code, name: code} descriptor; blank yields nil.
func (r *Resolver) ResolveUnit(code string) *UnitRef {
	if strings.TrimSpace(code) == "" {
		return nil
	}

	u, ok := r.catalog.Unit(code)
	if !ok {
		r.log.Debugw("unit not found in catalog", "unit_code", code)
		return &UnitRef{Code: code, Name: code, Synthesized: true}
	}
	return &UnitRef{Code: u.Code, Name: u.Name}
}

// ResolveUnitObject resolves a unit supplied as a full object.
// The catalog entry wins; otherwise the supplied object is kept as is,
// falling back to its code as name.
func (r *Resolver) ResolveUnitObject(ref UnitRef) *UnitRef {
	if strings.TrimSpace(ref.Code) == "" {
		return nil
	}
	if u, ok := r.catalog.Unit(ref.Code); ok {
		return &UnitRef{Code: u.Code, Name: u.Name}
	}
	if ref.Name == "" {
		ref.Name = ref.Code
		ref.Synthesized = true
	}
	return &ref
}

// DefaultUnitFor resolves the unit preselected for serviceCode. Sources are
// tried in order: overrides, the configured per-service table, the service's
// own default unit, then the linked unit flagged as default.
// Returns nil when nothing resolves.
func (r *Resolver) DefaultUnitFor(serviceCode string, overrides map[string]string) *UnitRef {
	if strings.TrimSpace(serviceCode) == "" {
		return nil
	}

	if code := overrides[serviceCode]; code != "" {
		return r.ResolveUnit(code)
	}
	if code := r.defaultUnits[serviceCode]; code != "" {
		return r.ResolveUnit(code)
	}

	s, ok := r.catalog.Service(serviceCode)
	if !ok {
		return nil
	}
	if s.DefaultUnitCode != nil && *s.DefaultUnitCode != "" {
		return r.ResolveUnit(*s.DefaultUnitCode)
	}
	if l, ok := s.DefaultLinkedUnit(); ok && l.Code != "" {
		if u, found := r.catalog.Unit(l.Code); found {
			return &UnitRef{Code: u.Code, Name: u.Name}
		}
		name := l.Name
		if name == "" {
			name = l.Code
		}
		return &UnitRef{Code: l.Code, Name: name}
	}

	r.log.Debugw("no default unit for service", "service_code", serviceCode)
	return nil
}

// enrich attaches descriptors to a line, keeping already-resolved
// descriptors whose code still matches.
func (r *Resolver) enrich(line LineItem) LineItem {
	if line.Service == nil || line.Service.Code != line.ServiceCode {
		line.Service = r.ResolveService(line.ServiceCode)
	}
	if line.Unit == nil || line.Unit.Code != line.UnitCode {
		line.Unit = r.ResolveUnit(line.UnitCode)
	}
	return line
}
