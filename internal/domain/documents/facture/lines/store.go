package lines

import (
	"slices"

	"github.com/shopspring/decimal"

	"facturation/internal/core/id"
	"facturation/internal/core/types"
	"facturation/internal/domain/catalogs"
	"facturation/pkg/logger"
)

// Options tune a Store.
type Options struct {
	// ReadOnly rejects every mutation except expansion toggling
	ReadOnly bool

	// EditingExisting starts every line collapsed, as for a persisted facture
	EditingExisting bool

	// OnChange receives a copy of the lines after every committed mutation
	OnChange func([]LineItem)

	Logger *logger.Logger
}

// Store is the single source of truth for the lines of one facture being
// edited, together with their expansion state and validation errors.
//
// Every committed mutation replaces the line slice with a fresh one and bumps
// Version once. Store is not safe for concurrent use; the owner serializes access.
type Store struct {
	cfg       Config
	opts      Options
	resolver  *Resolver
	validator *Validator
	log       *logger.Logger

	lines    []LineItem
	expanded []bool
	errors   ValidationErrorMap
	version  uint64
}

// NewStore creates a store seeded with initial (see Initialize).
func NewStore(cfg Config, catalog *catalogs.Catalog, initial []LineItem, opts Options) *Store {
	cfg = cfg.withDefaults()

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Store{
		cfg:       cfg,
		opts:      opts,
		resolver:  NewResolver(catalog, cfg.DefaultUnitsByService, log),
		validator: NewValidator(cfg, catalog),
		log:       log.WithComponent("lines.store"),
	}
	s.Initialize(initial, opts.ReadOnly, opts.EditingExisting)
	return s
}

// Initialize reseeds the store from externally supplied lines.
//
// Descriptors already attached to the input are kept when their code matches.
// Lines are ordered by their Order (unnumbered last) and renumbered 1..N.
// An empty input yields one blank line unless the store is read-only.
// Lines start collapsed when read-only or editing an existing facture.
// An initial validation pass is run. OnChange is not called.
func (s *Store) Initialize(initial []LineItem, readOnly, editingExisting bool) {
	s.opts.ReadOnly = readOnly
	s.opts.EditingExisting = editingExisting

	s.lines = s.seed(initial)
	s.expanded = make([]bool, len(s.lines))
	open := !readOnly && !editingExisting
	for i := range s.expanded {
		s.expanded[i] = open
	}
	s.errors = s.validator.ValidateAll(s.lines)
	s.version++
}

func (s *Store) seed(initial []LineItem) []LineItem {
	lines := make([]LineItem, 0, max(len(initial), 1))
	for _, in := range initial {
		line := in
		if in.Service != nil {
			ref := *in.Service
			line.Service = &ref
		}
		if in.Unit != nil {
			ref := *in.Unit
			line.Unit = &ref
		}
		if line.ServiceCode == "" && line.Service != nil {
			line.ServiceCode = line.Service.Code
		}
		if line.UnitCode == "" && line.Unit != nil {
			line.UnitCode = line.Unit.Code
		}
		line = s.resolver.enrich(line)
		line.LineTotal = LineTotal(line.Quantity, line.UnitPrice)
		lines = append(lines, line)
	}

	slices.SortStableFunc(lines, func(a, b LineItem) int {
		switch {
		case a.Order == b.Order:
			return 0
		case a.Order <= 0:
			return 1
		case b.Order <= 0:
			return -1
		case a.Order < b.Order:
			return -1
		default:
			return 1
		}
	})

	if len(lines) == 0 && !s.opts.ReadOnly {
		lines = append(lines, s.blankLine(s.cfg.DefaultServiceCode, nil))
	}

	renumber(lines)
	return lines
}

// blankLine builds a new line with quantity 1 and price 0, pre-filled with
// serviceCode and its default unit when given.
func (s *Store) blankLine(serviceCode string, defaultUnits map[string]string) LineItem {
	line := LineItem{
		Quantity:  types.NewNullDecimal(decimal.NewFromInt(1)),
		UnitPrice: types.NewNullDecimal(decimal.Zero),
	}
	if serviceCode != "" {
		line.ServiceCode = serviceCode
		line.Service = s.resolver.ResolveService(serviceCode)
		if u := s.resolver.DefaultUnitFor(serviceCode, defaultUnits); u != nil {
			line.UnitCode = u.Code
			line.Unit = u
		}
	}
	line.LineTotal = LineTotal(line.Quantity, line.UnitPrice)
	return line
}

// commit installs a new state and bumps the version.
func (s *Store) commit(lines []LineItem, expanded []bool, errs ValidationErrorMap, notify bool) {
	s.lines = lines
	s.expanded = expanded
	s.errors = errs
	s.version++

	if notify && s.opts.OnChange != nil {
		s.opts.OnChange(slices.Clone(lines))
	}
}

// AssignIDs records the persisted identity of each line, by position, once
// the lines were saved. Lines that already have an ID keep it. Saving is not
// an edit: neither the version nor OnChange is affected.
func (s *Store) AssignIDs(ids []*id.ID) {
	lines := slices.Clone(s.lines)
	for i := range lines {
		if i >= len(ids) || ids[i] == nil || lines[i].ID != nil {
			continue
		}
		v := *ids[i]
		lines[i].ID = &v
	}
	s.lines = lines
}

func (s *Store) inRange(index int) bool {
	return index >= 0 && index < len(s.lines)
}

func (s *Store) reject(op string, reason string, keysAndValues ...any) Result {
	s.log.Debugw("operation rejected", append([]any{"op", op, "reason", reason}, keysAndValues...)...)
	return ResultRejected
}

// AddLine appends a new expanded line. When defaultServiceCode is set the
// line is pre-filled with it and its default unit, looked up in defaultUnits
// first and then as DefaultUnitFor does; the unit stays empty if none resolves.
func (s *Store) AddLine(defaultServiceCode string, defaultUnits map[string]string) Result {
	if s.opts.ReadOnly {
		return s.reject("add_line", "read_only")
	}

	lines := append(slices.Clone(s.lines), s.blankLine(defaultServiceCode, defaultUnits))
	renumber(lines)
	expanded := append(slices.Clone(s.expanded), true)

	s.commit(lines, expanded, s.errors.Clone(), true)
	return ResultOK
}

// UpdateField sets one field of one line. See UpdateFields for side effects.
// FieldLineTotal and values of an unsupported type are rejected.
func (s *Store) UpdateField(index int, field Field, value any) Result {
	p, err := PatchFor(field, value)
	if err != nil {
		return s.reject("update_field", err.Error(), "index", index, "field", field)
	}
	return s.UpdateFields(index, p)
}

// UpdateFields applies a patch to one line in a single transition.
//
// A new service code resolves its descriptor and replaces the unit with the
// service's default unit, or clears it when none resolves; a unit given in
// the same patch wins over that default. Unit codes and unit objects are
// resolved against the catalog. A dates description may set the quantity to
// the number of dates it lists; an explicit quantity in the same patch wins.
// The line total is recomputed once. Errors of the touched fields are cleared.
func (s *Store) UpdateFields(index int, p Patch) Result {
	if s.opts.ReadOnly {
		return s.reject("update_fields", "read_only", "index", index)
	}
	if !s.inRange(index) {
		return ResultIndexOutOfRange
	}
	if p.IsEmpty() {
		return ResultOK
	}

	line := s.lines[index]
	var touched []Field

	if p.Description != nil {
		line.Description = *p.Description
		touched = append(touched, FieldDescription)
	}

	if p.DatesDescription != nil {
		line.DatesDescription = *p.DatesDescription
		touched = append(touched, FieldDatesDescription)
		if s.cfg.DeriveQuantityFromDates {
			if n := CountDates(line.DatesDescription); n > 0 {
				line.Quantity = types.NewNullDecimal(decimal.NewFromInt(int64(n)))
				touched = append(touched, FieldQuantity)
			}
		}
	}

	if p.ServiceCode != nil && *p.ServiceCode != line.ServiceCode {
		line.ServiceCode = *p.ServiceCode
		line.Service = s.resolver.ResolveService(line.ServiceCode)
		if u := s.resolver.DefaultUnitFor(line.ServiceCode, nil); u != nil {
			line.UnitCode = u.Code
			line.Unit = u
		} else {
			line.UnitCode = ""
			line.Unit = nil
		}
		touched = append(touched, FieldServiceCode, FieldUnitCode)
	}

	if p.UnitCode != nil {
		line.UnitCode = *p.UnitCode
		line.Unit = s.resolver.ResolveUnit(line.UnitCode)
		touched = append(touched, FieldUnitCode)
	}

	if p.Unit != nil {
		line.Unit = s.resolver.ResolveUnitObject(*p.Unit)
		line.UnitCode = ""
		if line.Unit != nil {
			line.UnitCode = line.Unit.Code
		}
		touched = append(touched, FieldUnitCode)
	}

	if p.Quantity != nil {
		line.Quantity = *p.Quantity
		touched = append(touched, FieldQuantity)
	}

	if p.UnitPrice != nil {
		line.UnitPrice = *p.UnitPrice
		touched = append(touched, FieldUnitPrice)
	}

	if slices.Contains(touched, FieldQuantity) || slices.Contains(touched, FieldUnitPrice) {
		line.LineTotal = LineTotal(line.Quantity, line.UnitPrice)
		touched = append(touched, FieldLineTotal)
	}

	lines := slices.Clone(s.lines)
	lines[index] = line

	s.commit(lines, slices.Clone(s.expanded), s.errors.withoutFields(index, touched), true)
	return ResultOK
}

// RemoveLine deletes a line and renumbers the rest. Errors and expansion
// state of later lines shift down with them. The last line cannot be removed.
func (s *Store) RemoveLine(index int) Result {
	if s.opts.ReadOnly {
		return s.reject("remove_line", "read_only", "index", index)
	}
	if !s.inRange(index) {
		return ResultIndexOutOfRange
	}
	if len(s.lines) == 1 {
		return s.reject("remove_line", "last_line", "index", index)
	}

	perm := make([]int, 0, len(s.lines)-1)
	for i := range s.lines {
		if i != index {
			perm = append(perm, i)
		}
	}

	s.rearrange(perm)
	return ResultOK
}

// CopyLine appends a duplicate of a line without its persisted identity.
// The description gets the copy prefix, truncated to the description limit.
func (s *Store) CopyLine(index int) Result {
	if s.opts.ReadOnly {
		return s.reject("copy_line", "read_only", "index", index)
	}
	if !s.inRange(index) {
		return ResultIndexOutOfRange
	}

	dup := s.lines[index]
	dup.ID = nil
	dup.Description = truncateRunes(s.cfg.CopyPrefix+dup.Description, s.cfg.MaxDescriptionLength)

	lines := append(slices.Clone(s.lines), dup)
	renumber(lines)
	expanded := append(slices.Clone(s.expanded), true)

	s.commit(lines, expanded, s.errors.Clone(), true)
	return ResultOK
}

// ToggleExpansion flips the open/closed state of a line. It is presentational
// only: allowed on read-only stores and not reported through OnChange.
func (s *Store) ToggleExpansion(index int) Result {
	if !s.inRange(index) {
		return ResultIndexOutOfRange
	}

	expanded := slices.Clone(s.expanded)
	expanded[index] = !expanded[index]

	s.commit(s.lines, expanded, s.errors, false)
	return ResultOK
}

// Reorder moves the line at source to target and renumbers the collection.
// Errors and expansion state travel with the line.
func (s *Store) Reorder(source, target int) Result {
	if s.opts.ReadOnly {
		return s.reject("reorder", "read_only", "source", source, "target", target)
	}
	if !s.inRange(source) || !s.inRange(target) {
		return ResultIndexOutOfRange
	}
	if source == target {
		return ResultOK
	}

	perm := make([]int, len(s.lines))
	for i := range perm {
		perm[i] = i
	}
	perm = slices.Delete(perm, source, source+1)
	perm = slices.Insert(perm, target, source)

	s.rearrange(perm)
	return ResultOK
}

// rearrange commits a new order; perm[newIndex] is the old index.
func (s *Store) rearrange(perm []int) {
	lines := make([]LineItem, len(perm))
	expanded := make([]bool, len(perm))
	for newIdx, oldIdx := range perm {
		lines[newIdx] = s.lines[oldIdx]
		expanded[newIdx] = s.expanded[oldIdx]
	}
	renumber(lines)

	s.commit(lines, expanded, s.errors.Clone().permute(perm), true)
}

// Replace swaps the whole line set, as Initialize does, keeping the current
// mode, and reports the change through OnChange.
func (s *Store) Replace(lines []LineItem) Result {
	if s.opts.ReadOnly {
		return s.reject("replace", "read_only")
	}

	seeded := s.seed(lines)
	expanded := make([]bool, len(seeded))
	open := !s.opts.EditingExisting
	for i := range expanded {
		expanded[i] = open
	}

	s.commit(seeded, expanded, s.validator.ValidateAll(seeded), true)
	return ResultOK
}

// Validate runs every per-field rule over all lines and keeps the result
// as the current error map.
func (s *Store) Validate() ValidationErrorMap {
	s.errors = s.validator.ValidateAll(s.lines)
	return s.errors.Clone()
}

// ValidateLine validates a single line (blur) and updates its errors.
func (s *Store) ValidateLine(index int) (FieldErrors, Result) {
	if !s.inRange(index) {
		return nil, ResultIndexOutOfRange
	}

	errs := s.validator.ValidateLine(s.lines[index])
	next := s.errors.Clone()
	if errs == nil {
		delete(next, index)
	} else {
		next[index] = errs
	}
	s.errors = next
	return errs, ResultOK
}

// Errors returns the current error map.
func (s *Store) Errors() ValidationErrorMap {
	return s.errors.Clone()
}

// IsSubmittable reports whether the lines pass the submit gate.
func (s *Store) IsSubmittable() bool {
	return s.validator.IsSubmittable(s.lines)
}

// Warnings returns the advisory service/unit linkage mismatches.
func (s *Store) Warnings() []ConsistencyWarning {
	return s.validator.CheckConsistency(s.lines)
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []LineItem {
	return slices.Clone(s.lines)
}

// Line returns the line at index.
func (s *Store) Line(index int) (LineItem, bool) {
	if !s.inRange(index) {
		return LineItem{}, false
	}
	return s.lines[index], true
}

// Len returns the number of lines.
func (s *Store) Len() int {
	return len(s.lines)
}

// Expanded reports whether the line at index is open.
func (s *Store) Expanded(index int) bool {
	return s.inRange(index) && s.expanded[index]
}

// ExpansionStates returns the open/closed state of every line.
func (s *Store) ExpansionStates() []bool {
	return slices.Clone(s.expanded)
}

// Total returns the sum of the line totals.
func (s *Store) Total() decimal.Decimal {
	return CollectionTotal(s.lines)
}

// Version increments once per committed mutation.
func (s *Store) Version() uint64 {
	return s.version
}

// ReadOnly reports whether mutations are rejected.
func (s *Store) ReadOnly() bool {
	return s.opts.ReadOnly
}

// Resolver returns the resolver used for enrichment.
func (s *Store) Resolver() *Resolver {
	return s.resolver
}

func renumber(lines []LineItem) {
	for i := range lines {
		lines[i].Order = i + 1
	}
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
