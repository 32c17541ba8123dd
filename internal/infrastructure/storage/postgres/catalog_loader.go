package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"go.opentelemetry.io/otel/attribute"

	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
	"facturation/pkg/logger"
)

const (
	serviceTable     = "cat_services"
	unitTable        = "cat_units"
	serviceUnitTable = "cat_service_units"
)

// CatalogLoader reads the service and unit catalogs into an immutable snapshot.
// It implements catalogs.Source.
type CatalogLoader struct {
	txm *TxManager
}

var _ catalogs.Source = (*CatalogLoader)(nil)

// NewCatalogLoader creates a loader over txm.
func NewCatalogLoader(txm *TxManager) *CatalogLoader {
	return &CatalogLoader{txm: txm}
}

// builder returns a squirrel builder with PostgreSQL placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// linkRow is one service/unit linkage as stored.
type linkRow struct {
	ServiceCode string `db:"service_code"`
	service.LinkedUnit
}

// Load implements catalogs.Source. Entries marked for deletion are skipped.
func (l *CatalogLoader) Load(ctx context.Context) (*catalogs.Catalog, error) {
	ctx, span := tracer.Start(ctx, "catalog.load")
	defer span.End()

	var (
		services []*service.Service
		units    []*unit.Unit
		links    []linkRow
	)

	err := l.txm.ReadOnly(ctx, func(ctx context.Context) error {
		q := l.txm.GetQuerier(ctx)

		sql, args, err := selectServices().ToSql()
		if err != nil {
			return fmt.Errorf("build services query: %w", err)
		}
		if err := pgxscan.Select(ctx, q, &services, sql, args...); err != nil {
			return databaseError("select services", err)
		}

		sql, args, err = selectUnits().ToSql()
		if err != nil {
			return fmt.Errorf("build units query: %w", err)
		}
		if err := pgxscan.Select(ctx, q, &units, sql, args...); err != nil {
			return databaseError("select units", err)
		}

		sql, args, err = selectLinks().ToSql()
		if err != nil {
			return fmt.Errorf("build links query: %w", err)
		}
		if err := pgxscan.Select(ctx, q, &links, sql, args...); err != nil {
			return databaseError("select service units", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	attachLinks(services, links)

	span.SetAttributes(
		attribute.Int("catalog.services", len(services)),
		attribute.Int("catalog.units", len(units)),
	)
	logger.Info(ctx, "catalog loaded", "services", len(services), "units", len(units), "links", len(links))

	c := catalogs.NewCatalog(services, units)
	if err := c.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

func selectServices() squirrel.SelectBuilder {
	return builder().
		Select(ExtractDBColumns[service.Service]()...).
		From(serviceTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("code")
}

func selectUnits() squirrel.SelectBuilder {
	return builder().
		Select(ExtractDBColumns[unit.Unit]()...).
		From(unitTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("code")
}

func selectLinks() squirrel.SelectBuilder {
	return builder().
		Select(
			"su.service_code",
			"su.unit_code",
			"COALESCE(u.name, '') AS unit_name",
			"su.is_default",
		).
		From(serviceUnitTable + " su").
		LeftJoin(unitTable + " u ON u.code = su.unit_code").
		OrderBy("su.service_code", "su.unit_code")
}

// attachLinks distributes linkage rows to their services.
// Rows naming an unknown service are ignored.
func attachLinks(services []*service.Service, links []linkRow) {
	byCode := make(map[string]*service.Service, len(services))
	for _, s := range services {
		byCode[s.Code] = s
	}
	for _, l := range links {
		if s, ok := byCode[l.ServiceCode]; ok {
			s.LinkedUnits = append(s.LinkedUnits, l.LinkedUnit)
		}
	}
}
