package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/core/apperror"
	"facturation/internal/core/id"
	"facturation/internal/core/types"
	"facturation/internal/domain/documents/facture"
	"facturation/pkg/numerator"
)

func newTestRepo() *FactureRepo {
	return &FactureRepo{
		numbering: numerator.DefaultConfig("FAC"),
		cols:      ExtractDBColumns[facture.Facture](),
	}
}

func TestFactureRepo_SelectHeader(t *testing.T) {
	docID := id.New()

	sql, args, err := newTestRepo().selectHeader(docID).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM doc_factures WHERE id = $1")
	assert.Contains(t, sql, "client_name")
	assert.Contains(t, sql, "total_net")
	assert.Equal(t, []any{docID.String()}, args, "squirrel.Eq passes ids through driver.Valuer")
}

func TestFactureRepo_InsertHeader(t *testing.T) {
	doc := facture.NewFacture("ACME")
	doc.Number = "FAC-2026-00001"
	doc.Ristourne = decimal.NewFromInt(10)

	sql, args, err := newTestRepo().insertHeader(doc).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO doc_factures")
	assert.NotContains(t, sql, "lines")
	assert.Len(t, args, len(ExtractDBColumns[facture.Facture]()))
	assert.Contains(t, args, "ACME")
	assert.Contains(t, args, "FAC-2026-00001")
}

func TestFactureRepo_UpdateHeader(t *testing.T) {
	doc := facture.NewFacture("ACME")
	doc.Number = "FAC-2026-00001"
	doc.Version = 3

	sql, args, err := newTestRepo().updateHeader(doc).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE doc_factures SET")
	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "updated_at = NOW()")
	assert.Contains(t, sql, "WHERE id = $")
	assert.Contains(t, sql, "AND version = $")
	assert.NotContains(t, sql, "created_at")

	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, doc.ID.String(), args[len(args)-2])
	assert.Equal(t, 3, args[len(args)-1])
}

func TestFactureRepo_SelectLines(t *testing.T) {
	docID := id.New()

	sql, args, err := selectLines(docID).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT line_id, line_no, description, dates_description, service_code, unit_code, quantity, unit_price, amount "+
			"FROM doc_facture_lines WHERE document_id = $1 ORDER BY line_no",
		sql)
	assert.Equal(t, []any{docID.String()}, args)
}

func TestFactureRepo_InsertLines(t *testing.T) {
	docID := id.New()
	lineID := id.New()
	lines := []facture.Line{
		{
			LineID:      &lineID,
			LineNo:      1,
			Description: "Audit",
			ServiceCode: "CONSEIL",
			UnitCode:    "HEURE",
			Quantity:    types.NewNullDecimal(decimal.NewFromInt(2)),
			UnitPrice:   types.NewNullDecimal(decimal.NewFromInt(100)),
			Amount:      decimal.NewFromInt(200),
		},
		{LineNo: 2, Description: "Forfait", ServiceCode: "FORFAIT", UnitCode: "UNITE"},
	}

	sql, args, err := insertLines(docID, lines).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO doc_facture_lines (document_id,line_id,line_no,")
	assert.Contains(t, sql, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10),($11,")
	assert.Len(t, args, 20)
	assert.Equal(t, docID, args[0])
	assert.Equal(t, &lineID, args[1])
	assert.Equal(t, "Forfait", args[13])
}

func TestDatabaseError(t *testing.T) {
	cause := errors.New("connection reset by peer")

	err := databaseError("insert lines", cause)

	assert.True(t, apperror.HasCode(err, apperror.CodeDatabase))
	assert.ErrorIs(t, err, cause)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Database error", appErr.Message)
	assert.Contains(t, appErr.Err.Error(), "insert lines")
}

func TestFactureRepo_ContinueNumbering_RejectsForeignNumbers(t *testing.T) {
	period := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	for _, number := range []string{"", "FAC-2025-00042", "DEV-2026-00042", "FAC-2026-x"} {
		t.Run(number, func(t *testing.T) {
			err := newTestRepo().ContinueNumbering(context.Background(), number, period)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput), "got %v", err)
		})
	}
}
