package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
)

func TestImportStatements(t *testing.T) {
	catalog := catalogs.NewCatalog(
		[]*service.Service{
			service.NewService("CONSEIL", "Conseil").WithLinkedUnit("HEURE", "Heure", true).WithLinkedUnit("JOUR", "Jour", false),
			service.NewService("FORFAIT", "Forfait").WithDefaultUnit("UNITE"),
		},
		[]*unit.Unit{unit.NewUnit("HEURE", "Heure"), unit.NewUnit("JOUR", "Jour"), unit.NewUnit("UNITE", "Unité")},
	)

	stmts := importStatements(catalog)
	require.Len(t, stmts, 4)

	sql, args, err := stmts[0].ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO cat_units")
	assert.Contains(t, sql, "ON CONFLICT (code) DO UPDATE")
	assert.Len(t, args, 12)

	sql, args, err = stmts[1].ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO cat_services")
	assert.Len(t, args, 8)

	sql, args, err = stmts[2].ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "DELETE FROM cat_service_units WHERE service_code IN")
	assert.Equal(t, []any{"CONSEIL", "FORFAIT"}, args)

	sql, args, err = stmts[3].ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO cat_service_units")
	assert.Equal(t, []any{"CONSEIL", "HEURE", true, "CONSEIL", "JOUR", false}, args)
}

func TestImportStatements_NoLinks(t *testing.T) {
	catalog := catalogs.NewCatalog(
		[]*service.Service{service.NewService("FORFAIT", "Forfait")},
		nil,
	)

	stmts := importStatements(catalog)
	require.Len(t, stmts, 2)

	sql, _, err := stmts[1].ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "DELETE FROM cat_service_units")

	assert.Empty(t, importStatements(catalogs.Empty()))
}
