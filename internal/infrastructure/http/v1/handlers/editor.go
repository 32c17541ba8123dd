package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"facturation/internal/core/apperror"
	appctx "facturation/internal/core/context"
	"facturation/internal/core/id"
	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/documents/facture"
	"facturation/internal/domain/documents/facture/lines"
	"facturation/internal/infrastructure/http/v1/dto"
	"facturation/internal/infrastructure/session"
	"facturation/pkg/logger"
)

// EditorHandler exposes facture edit sessions over HTTP.
type EditorHandler struct {
	*BaseHandler
	sessions *session.Store
	catalog  catalogs.Source
	cfg      lines.Config
	repo     facture.Repository
	log      *logger.Logger
}

// EditorHandlerConfig configures the editor handler.
type EditorHandlerConfig struct {
	Sessions *session.Store
	Catalog  catalogs.Source
	Lines    lines.Config

	// Repository persists submitted factures; nil keeps them in the session only
	Repository facture.Repository

	Logger *logger.Logger
}

// NewEditorHandler creates a new editor handler.
func NewEditorHandler(base *BaseHandler, cfg EditorHandlerConfig) *EditorHandler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &EditorHandler{
		BaseHandler: base,
		sessions:    cfg.Sessions,
		catalog:     cfg.Catalog,
		cfg:         cfg.Lines,
		repo:        cfg.Repository,
		log:         log,
	}
}

// bindOptionalJSON binds the body when there is one. An empty body leaves obj untouched.
func (h *EditorHandler) bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.Body == nil {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// session resolves the :id session and tags the request context with it.
func (h *EditorHandler) session(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	c.Request = c.Request.WithContext(appctx.WithSession(c.Request.Context(), sess.ID))
	return sess, true
}

// state answers with the session's current snapshot.
func (h *EditorHandler) state(c *gin.Context, sess *session.Session) {
	h.OK(c, dto.NewEditorResponse(sess.ID, sess.Editor.Snapshot()))
}

// Open starts an edit session.
// POST /api/v1/facture-editors
func (h *EditorHandler) Open(c *gin.Context) {
	var req dto.OpenEditorRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	doc, err := h.loadFacture(ctx, req)
	if err != nil {
		h.Error(c, err)
		return
	}

	catalog, err := h.catalog.Load(ctx)
	if err != nil {
		h.Error(c, apperror.NewInternal(err).WithDetail("component", "catalog"))
		return
	}

	editor := facture.NewEditor(h.cfg, catalog, doc, facture.EditorOptions{
		ReadOnly: req.ReadOnly,
		OnSubmit: h.onSubmit(),
		Logger:   h.log,
	})
	sess := h.sessions.Create(ctx, editor)

	h.Created(c, dto.NewEditorResponse(sess.ID, editor.Snapshot()))
}

func (h *EditorHandler) loadFacture(ctx context.Context, req dto.OpenEditorRequest) (*facture.Facture, error) {
	if req.FactureID == "" {
		return req.ToFacture()
	}
	if h.repo == nil {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "Facture storage is not configured")
	}
	docID, err := id.Parse(req.FactureID)
	if err != nil {
		return nil, apperror.NewInvalidInput("invalid facture id").
			WithDetail("factureId", req.FactureID).
			WithCause(err)
	}
	return h.repo.GetByID(ctx, docID)
}

func (h *EditorHandler) onSubmit() func(ctx context.Context, f *facture.Facture) error {
	if h.repo == nil {
		return nil
	}
	return h.repo.Save
}

// Get returns the session state.
// GET /api/v1/facture-editors/:id
func (h *EditorHandler) Get(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	h.state(c, sess)
}

// Close discards the session and its unsaved changes.
// DELETE /api/v1/facture-editors/:id
func (h *EditorHandler) Close(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// AddLine appends a line.
// POST /api/v1/facture-editors/:id/lines
func (h *EditorHandler) AddLine(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.AddLineRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	serviceCode := h.cfg.DefaultServiceCode
	if req.DefaultServiceCode != nil {
		serviceCode = *req.DefaultServiceCode
	}
	if err := sess.Editor.AddLine(serviceCode, req.DefaultUnits); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.NewEditorResponse(sess.ID, sess.Editor.Snapshot()))
}

// UpdateLine applies a field patch to one line.
// PATCH /api/v1/facture-editors/:id/lines/:index
func (h *EditorHandler) UpdateLine(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := h.ParseIndexParam(c, "index")
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if !h.BindJSON(c, &body) {
		return
	}
	patch, err := dto.DecodeLinePatch(body)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := sess.Editor.UpdateFields(index, patch); err != nil {
		h.Error(c, err)
		return
	}
	h.state(c, sess)
}

// RemoveLine deletes one line.
// DELETE /api/v1/facture-editors/:id/lines/:index
func (h *EditorHandler) RemoveLine(c *gin.Context) {
	h.lineOp(c, (*facture.Editor).RemoveLine)
}

// CopyLine appends a copy of one line.
// POST /api/v1/facture-editors/:id/lines/:index/copy
func (h *EditorHandler) CopyLine(c *gin.Context) {
	h.lineOp(c, (*facture.Editor).CopyLine)
}

// ToggleLine opens or closes the detail form of one line.
// POST /api/v1/facture-editors/:id/lines/:index/toggle
func (h *EditorHandler) ToggleLine(c *gin.Context) {
	h.lineOp(c, (*facture.Editor).ToggleExpansion)
}

func (h *EditorHandler) lineOp(c *gin.Context, op func(*facture.Editor, int) error) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := h.ParseIndexParam(c, "index")
	if !ok {
		return
	}
	if err := op(sess.Editor, index); err != nil {
		h.Error(c, err)
		return
	}
	h.state(c, sess)
}

// ValidateLine validates one line, as a field blur does.
// POST /api/v1/facture-editors/:id/lines/:index/validate
func (h *EditorHandler) ValidateLine(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := h.ParseIndexParam(c, "index")
	if !ok {
		return
	}
	errs, err := sess.Editor.ValidateLine(index)
	if err != nil {
		h.Error(c, err)
		return
	}
	if errs == nil {
		errs = lines.FieldErrors{}
	}
	h.OK(c, gin.H{"index": index, "valid": len(errs) == 0, "errors": errs})
}

// Reorder moves a line.
// POST /api/v1/facture-editors/:id/reorder
func (h *EditorHandler) Reorder(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.ReorderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := sess.Editor.Reorder(*req.Source, *req.Target); err != nil {
		h.Error(c, err)
		return
	}
	h.state(c, sess)
}

// DragStart begins a drag gesture.
// POST /api/v1/facture-editors/:id/drag/start
func (h *EditorHandler) DragStart(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.DragRequest
	if !h.BindJSON(c, &req) {
		return
	}
	sess.Editor.DragStart(*req.Index)
	h.NoContent(c)
}

// DragOver reports whether the dragged line may be dropped on an index.
// POST /api/v1/facture-editors/:id/drag/over
func (h *EditorHandler) DragOver(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.DragRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.OK(c, dto.DragOverResponse{Accepted: sess.Editor.DragOver(*req.Index)})
}

// DragDrop commits the drag gesture.
// POST /api/v1/facture-editors/:id/drag/drop
func (h *EditorHandler) DragDrop(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.DragRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := sess.Editor.DragDrop(*req.Index); err != nil {
		h.Error(c, err)
		return
	}
	h.state(c, sess)
}

// DragEnd cancels the drag gesture.
// POST /api/v1/facture-editors/:id/drag/end
func (h *EditorHandler) DragEnd(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Editor.DragEnd()
	h.NoContent(c)
}

// Validate runs every field rule.
// POST /api/v1/facture-editors/:id/validate
func (h *EditorHandler) Validate(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	errs := sess.Editor.Validate()
	h.OK(c, dto.ValidationResponse{
		Valid:       len(errs) == 0,
		Submittable: sess.Editor.Snapshot().Submittable,
		Errors:      errs,
	})
}

// SetRistourne sets the flat discount.
// PUT /api/v1/facture-editors/:id/ristourne
func (h *EditorHandler) SetRistourne(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.RistourneRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !req.Amount.Valid {
		h.Error(c, apperror.NewValidation("ristourne amount is required").WithDetail("field", "amount"))
		return
	}
	if err := sess.Editor.SetRistourne(req.RistourneAmount()); err != nil {
		h.Error(c, err)
		return
	}
	h.state(c, sess)
}

// SetHeader updates client, date and comment.
// PUT /api/v1/facture-editors/:id/header
func (h *EditorHandler) SetHeader(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.HeaderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var date time.Time
	if req.Date != nil {
		date = req.Date.UTC()
	}
	if err := sess.Editor.SetHeader(req.ClientName, date, req.Comment); err != nil {
		h.Error(c, err)
		return
	}
	h.state(c, sess)
}

// ReplaceLines swaps the whole line set and resets the ristourne.
// PUT /api/v1/facture-editors/:id/lines
func (h *EditorHandler) ReplaceLines(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req dto.ReplaceLinesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := dto.ToLines(req.Lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := sess.Editor.ReplaceLines(in); err != nil {
		h.Error(c, err)
		return
	}
	h.state(c, sess)
}

// Submit validates and persists the facture.
// POST /api/v1/facture-editors/:id/submit
func (h *EditorHandler) Submit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	doc, err := sess.Editor.Submit(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SubmitResponse{Facture: doc})
}
