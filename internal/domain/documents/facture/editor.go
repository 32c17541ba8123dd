package facture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"facturation/internal/core/apperror"
	"facturation/internal/core/id"
	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/documents/facture/lines"
	"facturation/pkg/logger"
)

// EditorOptions configure an edit session.
type EditorOptions struct {
	// ReadOnly opens the facture for consultation only
	ReadOnly bool

	// OnChange receives the enriched lines after every committed line mutation
	OnChange func([]lines.LineItem)

	// OnSubmit persists a submitted facture. Optional.
	OnSubmit func(ctx context.Context, f *Facture) error

	Logger *logger.Logger
}

// Editor is one facture edit session: the header, the ristourne and the line
// store, plus the unsaved-changes flag. It is safe for concurrent use.
type Editor struct {
	mu sync.Mutex

	header    Facture
	ristourne decimal.Decimal
	store     *lines.Store
	drag      *lines.DragController
	dirty     bool

	onChange func([]lines.LineItem)
	onSubmit func(ctx context.Context, f *Facture) error
	log      *logger.Logger
}

// NewEditor opens an edit session over doc. A nil doc starts a new facture.
// A new facture gets one blank line pre-filled with the configured default service.
func NewEditor(cfg lines.Config, catalog *catalogs.Catalog, doc *Facture, opts EditorOptions) *Editor {
	if doc == nil {
		doc = NewFacture("")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	e := &Editor{
		header:    *doc,
		ristourne: doc.Ristourne,
		onChange:  opts.OnChange,
		onSubmit:  opts.OnSubmit,
		log:       log.WithComponent("facture.editor").With("facture_id", doc.ID.String()),
	}
	e.header.Lines = nil

	e.store = lines.NewStore(cfg, catalog, ToLineItems(doc.Lines), lines.Options{
		ReadOnly:        opts.ReadOnly,
		EditingExisting: !doc.IsNew(),
		OnChange:        e.handleChange,
		Logger:          log,
	})
	e.drag = lines.NewDragController(e.store)

	return e
}

// handleChange runs under e.mu, inside the store operation that committed.
func (e *Editor) handleChange(l []lines.LineItem) {
	e.dirty = true
	if e.onChange != nil {
		e.onChange(l)
	}
}

// resultError maps a rejected store operation to an AppError.
func (e *Editor) resultError(res lines.Result, index int, rejectCode, rejectMsg string) error {
	switch res {
	case lines.ResultOK:
		return nil
	case lines.ResultIndexOutOfRange:
		return apperror.NewIndexOutOfRange(index, e.store.Len())
	default:
		if e.store.ReadOnly() {
			return apperror.NewBusinessRule(apperror.CodeReadOnly, "Facture is read-only")
		}
		return apperror.NewBusinessRule(rejectCode, rejectMsg).WithDetail("index", index)
	}
}

func (e *Editor) checkWritable() error {
	if e.store.ReadOnly() {
		return apperror.NewBusinessRule(apperror.CodeReadOnly, "Facture is read-only")
	}
	return nil
}

// ID returns the facture identifier.
func (e *Editor) ID() id.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.header.ID
}

// Header returns the facture header without lines.
func (e *Editor) Header() Facture {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.header
	h.Ristourne = e.ristourne
	return h
}

// SetHeader updates the client, date and comment. A zero date keeps the current one.
func (e *Editor) SetHeader(clientName string, date time.Time, comment string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkWritable(); err != nil {
		return err
	}
	e.header.ClientName = clientName
	if !date.IsZero() {
		e.header.Date = date
	}
	e.header.Comment = comment
	e.dirty = true
	return nil
}

// AddLine appends a line pre-filled with serviceCode and its default unit.
// defaultUnits overrides the configured per-service default units.
func (e *Editor) AddLine(serviceCode string, defaultUnits map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultError(e.store.AddLine(serviceCode, defaultUnits), -1, apperror.CodeBusinessRule, "Line cannot be added")
}

// UpdateField sets one field of one line.
func (e *Editor) UpdateField(index int, field lines.Field, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.store.UpdateField(index, field, value)
	if res == lines.ResultRejected && !e.store.ReadOnly() {
		if _, err := lines.PatchFor(field, value); err != nil {
			return apperror.NewInvalidInput(err.Error()).WithDetail("field", string(field))
		}
	}
	return e.resultError(res, index, apperror.CodeBusinessRule, "Field cannot be updated")
}

// UpdateFields applies a patch to one line atomically.
func (e *Editor) UpdateFields(index int, p lines.Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultError(e.store.UpdateFields(index, p), index, apperror.CodeBusinessRule, "Line cannot be updated")
}

// RemoveLine deletes a line. The last line cannot be removed.
func (e *Editor) RemoveLine(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultError(e.store.RemoveLine(index), index, apperror.CodeLastLineRequired, "A facture needs at least one line")
}

// CopyLine appends a copy of a line.
func (e *Editor) CopyLine(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultError(e.store.CopyLine(index), index, apperror.CodeBusinessRule, "Line cannot be copied")
}

// ToggleExpansion opens or closes the detail form of a line.
func (e *Editor) ToggleExpansion(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resultError(e.store.ToggleExpansion(index), index, apperror.CodeBusinessRule, "Line cannot be toggled")
}

// Reorder moves a line from source to target.
func (e *Editor) Reorder(source, target int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.store.Reorder(source, target)
	if res == lines.ResultIndexOutOfRange && source >= 0 && source < e.store.Len() {
		return e.resultError(res, target, "", "")
	}
	return e.resultError(res, source, apperror.CodeBusinessRule, "Lines cannot be reordered")
}

// DragStart begins a drag gesture on a line.
func (e *Editor) DragStart(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag.Start(index)
}

// DragOver reports whether the dragged line may be dropped on index.
func (e *Editor) DragOver(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag.Over(index)
}

// DragDrop commits the drag gesture onto index.
func (e *Editor) DragDrop(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	source, dragging := e.drag.Dragging()
	if !dragging {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "No line is being dragged")
	}
	res := e.drag.Drop(index)
	if res == lines.ResultIndexOutOfRange {
		return apperror.NewIndexOutOfRange(index, e.store.Len()).WithDetail("source", source)
	}
	return e.resultError(res, index, apperror.CodeBusinessRule, "Lines cannot be reordered")
}

// DragEnd cancels the drag gesture, if any.
func (e *Editor) DragEnd() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag.End()
}

// SetRistourne sets the flat discount.
func (e *Editor) SetRistourne(amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkWritable(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return apperror.NewValidation("ristourne must not be negative").
			WithDetail("field", "ristourne")
	}
	if !amount.Equal(e.ristourne) {
		e.ristourne = amount
		e.dirty = true
	}
	return nil
}

// ReplaceLines swaps the whole line set and resets the ristourne to zero.
func (e *Editor) ReplaceLines(in []Line) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkWritable(); err != nil {
		return err
	}
	e.store.Replace(ToLineItems(in))
	e.ristourne = decimal.Zero
	e.log.Debugw("lines replaced, ristourne reset", "lines", len(in))
	return nil
}

// Validate runs every field rule and returns the error map.
func (e *Editor) Validate() lines.ValidationErrorMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Validate()
}

// ValidateLine validates one line (field blur).
func (e *Editor) ValidateLine(index int) (lines.FieldErrors, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs, res := e.store.ValidateLine(index)
	return errs, e.resultError(res, index, "", "")
}

// Snapshot is a consistent view of the session for rendering.
type Snapshot struct {
	Header      Facture                    `json:"header"`
	Lines       []lines.LineItem           `json:"lines"`
	Expanded    []bool                     `json:"expanded"`
	Errors      lines.ValidationErrorMap   `json:"errors"`
	Warnings    []lines.ConsistencyWarning `json:"warnings"`
	Totals      lines.Totals               `json:"totals"`
	Submittable bool                       `json:"submittable"`
	ReadOnly    bool                       `json:"readOnly"`
	Dirty       bool                       `json:"dirty"`
	Version     uint64                     `json:"version"`
}

// Snapshot returns the current state of the session.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	header := e.header
	header.Ristourne = e.ristourne
	current := e.store.Lines()

	return Snapshot{
		Header:      header,
		Lines:       current,
		Expanded:    e.store.ExpansionStates(),
		Errors:      e.store.Errors(),
		Warnings:    e.store.Warnings(),
		Totals:      lines.ComputeTotals(current, e.ristourne),
		Submittable: e.store.IsSubmittable(),
		ReadOnly:    e.store.ReadOnly(),
		Dirty:       e.dirty,
		Version:     e.store.Version(),
	}
}

// Lines returns the current lines.
func (e *Editor) Lines() []lines.LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Lines()
}

// Totals returns gross, ristourne and net amounts.
func (e *Editor) Totals() lines.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lines.ComputeTotals(e.store.Lines(), e.ristourne)
}

// Warnings returns the advisory service/unit mismatches.
func (e *Editor) Warnings() []lines.ConsistencyWarning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Warnings()
}

// Dirty reports whether anything changed since the session opened or was last submitted.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Submit validates the lines and, when they pass the submit gate, returns the
// facture in its persisted shape after handing it to OnSubmit.
func (e *Editor) Submit(ctx context.Context) (*Facture, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkWritable(); err != nil {
		return nil, err
	}

	errs := e.store.Validate()
	if !e.store.IsSubmittable() {
		e.log.WithContext(ctx).Infow("submit refused", "invalid_lines", len(errs))
		return nil, apperror.NewNotSubmittable(errs)
	}

	doc := e.header
	doc.Ristourne = e.ristourne
	doc.Lines = FromLineItems(e.store.Lines())
	doc.recalculateTotals()

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	if e.onSubmit != nil {
		if err := e.onSubmit(ctx, &doc); err != nil {
			return nil, fmt.Errorf("submit facture %s: %w", doc.ID, err)
		}
	}

	e.store.AssignIDs(lo.Map(doc.Lines, func(l Line, _ int) *id.ID { return l.LineID }))
	e.header = doc
	e.header.Lines = nil
	e.dirty = false

	e.log.WithContext(ctx).Infow("facture submitted",
		"lines", len(doc.Lines),
		"total_net", doc.TotalNet.String(),
	)
	return &doc, nil
}
