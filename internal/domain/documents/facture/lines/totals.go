package lines

import (
	"github.com/shopspring/decimal"

	"facturation/internal/core/types"
)

// Totals is the amount summary of a facture.
type Totals struct {
	Gross     decimal.Decimal `json:"gross"`
	Ristourne decimal.Decimal `json:"ristourne"`
	Net       decimal.Decimal `json:"net"`
}

// LineTotal returns round(quantity × unitPrice, 2), or zero when either is absent.
func LineTotal(quantity, unitPrice types.NullDecimal) decimal.Decimal {
	if !quantity.Valid || !unitPrice.Valid {
		return decimal.Zero
	}
	return types.Round2(quantity.Decimal.Mul(unitPrice.Decimal))
}

// CollectionTotal sums the line totals.
func CollectionTotal(lines []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}

// NetTotal subtracts the discount from gross, floored at zero.
func NetTotal(gross, ristourne decimal.Decimal) decimal.Decimal {
	return types.ClampZero(gross.Sub(ristourne))
}

// ComputeTotals builds the full summary for lines and a discount.
func ComputeTotals(lines []LineItem, ristourne decimal.Decimal) Totals {
	gross := CollectionTotal(lines)
	return Totals{
		Gross:     gross,
		Ristourne: ristourne,
		Net:       NetTotal(gross, ristourne),
	}
}
