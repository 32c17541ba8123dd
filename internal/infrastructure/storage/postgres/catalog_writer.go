package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
	"facturation/internal/infrastructure/cache"
	"facturation/pkg/logger"
)

// ImportCatalog upserts every unit, service and service/unit link of catalog
// in one transaction, then notifies catalog listeners. Rows absent from
// catalog are left untouched; imported rows are unmarked for deletion and
// links of imported services are replaced.
func ImportCatalog(ctx context.Context, txm *TxManager, catalog *catalogs.Catalog) error {
	ctx, span := tracer.Start(ctx, "catalog.import")
	defer span.End()

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)

		for _, stmt := range importStatements(catalog) {
			sql, args, err := stmt.ToSql()
			if err != nil {
				return fmt.Errorf("build import query: %w", err)
			}
			if _, err := q.Exec(ctx, sql, args...); err != nil {
				return databaseError("import catalog", err)
			}
		}

		if _, err := q.Exec(ctx, "SELECT pg_notify($1, $2)", cache.CatalogChangedChannel, "import"); err != nil {
			return databaseError("notify catalog change", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger.Info(ctx, "catalog imported",
		"services", len(catalog.Services()),
		"units", len(catalog.Units()))
	return nil
}

// importStatements lists the statements of an import in execution order.
func importStatements(catalog *catalogs.Catalog) []squirrel.Sqlizer {
	var stmts []squirrel.Sqlizer

	if units := catalog.Units(); len(units) > 0 {
		stmts = append(stmts, upsertUnits(units))
	}

	services := catalog.Services()
	if len(services) == 0 {
		return stmts
	}
	stmts = append(stmts, upsertServices(services))

	codes := make([]string, 0, len(services))
	for _, s := range services {
		codes = append(codes, s.Code)
	}
	stmts = append(stmts, builder().Delete(serviceUnitTable).Where(squirrel.Eq{"service_code": codes}))

	if links := insertServiceUnits(services); links != nil {
		stmts = append(stmts, links)
	}
	return stmts
}

func upsertUnits(units []*unit.Unit) squirrel.InsertBuilder {
	q := builder().Insert(unitTable).Columns("code", "name", "symbol", "deletion_mark")
	for _, u := range units {
		q = q.Values(u.Code, u.Name, u.Symbol, false)
	}
	return q.Suffix("ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, symbol = EXCLUDED.symbol, deletion_mark = FALSE")
}

func upsertServices(services []*service.Service) squirrel.InsertBuilder {
	q := builder().Insert(serviceTable).Columns("code", "name", "default_unit_code", "deletion_mark")
	for _, s := range services {
		q = q.Values(s.Code, s.Name, s.DefaultUnitCode, false)
	}
	return q.Suffix("ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, default_unit_code = EXCLUDED.default_unit_code, deletion_mark = FALSE")
}

// insertServiceUnits returns nil when no service carries linked units.
func insertServiceUnits(services []*service.Service) squirrel.Sqlizer {
	q := builder().Insert(serviceUnitTable).Columns("service_code", "unit_code", "is_default")
	n := 0
	for _, s := range services {
		for _, l := range s.LinkedUnits {
			q = q.Values(s.Code, l.Code, l.IsDefault)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return q
}
