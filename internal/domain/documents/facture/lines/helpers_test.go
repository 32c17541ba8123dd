package lines

import (
	"testing"

	"github.com/shopspring/decimal"

	"facturation/internal/core/types"
	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
)

func testCatalog() *catalogs.Catalog {
	return catalogs.NewCatalog(
		[]*service.Service{
			service.NewService("CONSEIL", "Conseil").
				WithLinkedUnit("HEURE", "Heure", true).
				WithLinkedUnit("JOUR", "Jour", false),
			service.NewService("FORFAIT", "Forfait").WithDefaultUnit("UNITE"),
			service.NewService("DIVERS", "Divers"),
		},
		[]*unit.Unit{
			unit.NewUnit("HEURE", "Heure"),
			unit.NewUnit("JOUR", "Jour"),
			unit.NewUnit("UNITE", "Unité"),
		},
	)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) types.NullDecimal {
	return types.NewNullDecimal(dec(s))
}

func conseilLine(description, quantity, price string) LineItem {
	q, p := nd(quantity), nd(price)
	return LineItem{
		Description: description,
		ServiceCode: "CONSEIL",
		UnitCode:    "HEURE",
		Quantity:    q,
		UnitPrice:   p,
		LineTotal:   LineTotal(q, p),
	}
}

func assertDenseOrder(t *testing.T, lines []LineItem) {
	t.Helper()
	for i, l := range lines {
		if l.Order != i+1 {
			t.Fatalf("line %d has order %d, want %d", i, l.Order, i+1)
		}
	}
}
