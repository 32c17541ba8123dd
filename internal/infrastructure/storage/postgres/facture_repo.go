package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"facturation/internal/core/apperror"
	"facturation/internal/core/id"
	"facturation/internal/domain/documents/facture"
	"facturation/pkg/numerator"
)

const (
	factureTable      = "doc_factures"
	factureLinesTable = "doc_facture_lines"
)

var factureLineCols = []string{
	"line_id", "line_no", "description", "dates_description",
	"service_code", "unit_code", "quantity", "unit_price", "amount",
}

// FactureRepo implements facture.Repository.
type FactureRepo struct {
	txm       *TxManager
	numerator *numerator.Service
	numbering numerator.Config
	cols      []string
}

var _ facture.Repository = (*FactureRepo)(nil)

// NewFactureRepo creates a facture repository numbering new factures with prefix.
func NewFactureRepo(txm *TxManager, prefix string) *FactureRepo {
	return &FactureRepo{
		txm: txm,
		numerator: numerator.NewWithQuerierFunc(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		numbering: numerator.DefaultConfig(prefix),
		cols:      ExtractDBColumns[facture.Facture](),
	}
}

// GetByID implements facture.Repository.
func (r *FactureRepo) GetByID(ctx context.Context, docID id.ID) (*facture.Facture, error) {
	ctx, span := tracer.Start(ctx, "facture.get",
		trace.WithAttributes(attribute.String("facture.id", docID.String())))
	defer span.End()

	doc := &facture.Facture{}
	err := r.txm.ReadOnly(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)

		sql, args, err := r.selectHeader(docID).ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		if err := pgxscan.Get(ctx, q, doc, sql, args...); err != nil {
			if pgxscan.NotFound(err) {
				return apperror.NewNotFound("facture", docID.String())
			}
			return databaseError("get facture", err)
		}

		sql, args, err = selectLines(docID).ToSql()
		if err != nil {
			return fmt.Errorf("build lines query: %w", err)
		}
		if err := pgxscan.Select(ctx, q, &doc.Lines, sql, args...); err != nil {
			return databaseError("get lines", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return doc, nil
}

// Save implements facture.Repository. Lines without an ID receive one.
func (r *FactureRepo) Save(ctx context.Context, doc *facture.Facture) error {
	ctx, span := tracer.Start(ctx, "facture.save",
		trace.WithAttributes(
			attribute.String("facture.id", doc.ID.String()),
			attribute.Int("facture.lines", len(doc.Lines)),
		))
	defer span.End()

	for i := range doc.Lines {
		if doc.Lines[i].LineID == nil {
			lineID := id.New()
			doc.Lines[i].LineID = &lineID
		}
	}

	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.IsNew() {
			number, err := r.numerator.GetNextNumber(ctx, r.numbering, doc.Date)
			if err != nil {
				return databaseError("assign number", err)
			}
			doc.Number = number
			if err := r.insert(ctx, doc); err != nil {
				doc.Number = ""
				return err
			}
		} else if err := r.update(ctx, doc); err != nil {
			return err
		}
		return r.saveLines(ctx, doc.ID, doc.Lines)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.String("facture.number", doc.Number))
	return nil
}

// ContinueNumbering makes the next facture dated in period follow
// lastNumber, the last invoice issued by a previous system.
func (r *FactureRepo) ContinueNumbering(ctx context.Context, lastNumber string, period time.Time) error {
	last := numerator.ParseNumber(r.numbering, period, lastNumber)
	if last < 0 {
		return apperror.NewInvalidInput("number does not follow the facture numbering").
			WithDetail("number", lastNumber).
			WithDetail("year", period.Year())
	}

	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.numerator.SetLastNumber(ctx, r.numbering, period, last); err != nil {
			return databaseError("continue numbering", err)
		}
		return nil
	})
}

func (r *FactureRepo) insert(ctx context.Context, doc *facture.Facture) error {
	sql, args, err := r.insertHeader(doc).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return databaseError("insert "+factureTable, err)
	}
	return nil
}

func (r *FactureRepo) update(ctx context.Context, doc *facture.Facture) error {
	sql, args, err := r.updateHeader(doc).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return databaseError("update "+factureTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("facture", doc.ID.String())
	}
	doc.Touch()
	return nil
}

// saveLines replaces the stored lines of a facture (delete existing + insert new).
func (r *FactureRepo) saveLines(ctx context.Context, docID id.ID, lines []facture.Line) error {
	querier := r.txm.GetQuerier(ctx)

	sql, args, err := builder().
		Delete(factureLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return databaseError("delete existing lines", err)
	}

	if len(lines) == 0 {
		return nil
	}

	sql, args, err = insertLines(docID, lines).ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return databaseError("insert lines", err)
	}
	return nil
}

func (r *FactureRepo) selectHeader(docID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(r.cols...).
		From(factureTable).
		Where(squirrel.Eq{"id": docID})
}

func (r *FactureRepo) insertHeader(doc *facture.Facture) squirrel.InsertBuilder {
	return builder().
		Insert(factureTable).
		SetMap(pick(StructToMap(doc), r.cols))
}

// updateHeader rewrites the mutable header columns, guarded by the version the caller read.
func (r *FactureRepo) updateHeader(doc *facture.Facture) squirrel.UpdateBuilder {
	data := pick(StructToMap(doc), r.cols)
	for _, col := range []string{"id", "created_at", "version", "updated_at"} {
		delete(data, col)
	}

	return builder().
		Update(factureTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": doc.Version})
}

func selectLines(docID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(factureLineCols...).
		From(factureLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")
}

func insertLines(docID id.ID, lines []facture.Line) squirrel.InsertBuilder {
	q := builder().
		Insert(factureLinesTable).
		Columns(append([]string{"document_id"}, factureLineCols...)...)

	for _, l := range lines {
		q = q.Values(
			docID, l.LineID, l.LineNo, l.Description, l.DatesDescription,
			l.ServiceCode, l.UnitCode, l.Quantity, l.UnitPrice, l.Amount,
		)
	}
	return q
}
